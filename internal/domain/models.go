// internal/domain/models.go
package domain

import "time"

// SkuKey identifies one inventory stream: a (store, product) pair.
type SkuKey struct {
	StoreID   string `json:"store_id"`
	ProductID string `json:"product_id"`
}

func (k SkuKey) String() string {
	return k.StoreID + "/" + k.ProductID
}

// Observation is one cleaned daily row of the retail dataset.
type Observation struct {
	Date           time.Time `json:"date" db:"date"`
	StoreID        string    `json:"store_id" db:"store_id"`
	ProductID      string    `json:"product_id" db:"product_id"`
	Category       string    `json:"category,omitempty" db:"category"`
	Region         string    `json:"region,omitempty" db:"region"`
	UnitsSold      int       `json:"units_sold" db:"units_sold"`
	InventoryLevel int       `json:"inventory_level" db:"inventory_level"`
	Price          float64   `json:"price,omitempty" db:"price"`
	IsPromo        bool      `json:"is_promo,omitempty" db:"is_promo"`
	IsHoliday      bool      `json:"is_holiday,omitempty" db:"is_holiday"`
	StockoutFlag   bool      `json:"stockout_flag,omitempty" db:"stockout_flag"`
}

// Key returns the SKU the observation belongs to.
func (o Observation) Key() SkuKey {
	return SkuKey{StoreID: o.StoreID, ProductID: o.ProductID}
}

// ForecastPoint is one row of an externally produced forecast table.
type ForecastPoint struct {
	StoreID   string    `json:"store_id"`
	ProductID string    `json:"product_id"`
	Date      time.Time `json:"date"`
	Forecast  float64   `json:"forecast"`
}

// MergedRow is an observation joined with its (possibly backfilled) forecast.
// EndingInventory here is the bookkeeping value inventory_level - units_sold;
// it may go negative and is distinct from the simulator's ending inventory.
type MergedRow struct {
	Observation
	Forecast        float64 `json:"forecast"`
	Backfilled      bool    `json:"backfilled,omitempty"`
	EndingInventory int     `json:"ending_inventory"`
}

// SeriesPoint is one day of simulator input.
type SeriesPoint struct {
	Date           time.Time `json:"date"`
	Demand         int       `json:"units_sold"`
	Forecast       float64   `json:"forecast"`
	InventoryLevel int       `json:"inventory_level"`
}

// SkuTimeSeries is the date-ascending series for a single SKU. Dates are
// unique but need not be contiguous; gaps count as consecutive steps.
type SkuTimeSeries struct {
	Key    SkuKey        `json:"key"`
	Points []SeriesPoint `json:"points"`
}

// SimulationRecord is one day of simulator output. Records are appended in
// date order and never mutated afterwards.
type SimulationRecord struct {
	Date            time.Time `json:"date" db:"date"`
	Demand          int       `json:"demand" db:"demand"`
	Forecast        float64   `json:"forecast" db:"forecast"`
	StartInventory  int       `json:"start_inventory" db:"start_inventory"`
	UnitsSold       int       `json:"units_sold" db:"units_sold"`
	StockoutQty     int       `json:"stockout_qty" db:"stockout_qty"`
	OrderQty        int       `json:"order_qty" db:"order_qty"`
	EndingInventory int       `json:"ending_inventory" db:"ending_inventory"`
	HoldingCost     float64   `json:"holding_cost" db:"holding_cost"`
	StockoutCost    float64   `json:"stockout_cost" db:"stockout_cost"`
	OrderCost       float64   `json:"order_cost" db:"order_cost"`
	TotalCost       float64   `json:"total_cost" db:"total_cost"`
}

// Summary reduces one SKU's ledger to the scalars reporting cares about.
type Summary struct {
	Days               int     `json:"days" db:"days"`
	TotalCost          float64 `json:"total_cost" db:"total_cost"`
	TotalStockout      int     `json:"total_stockout" db:"total_stockout"`
	OrdersPlaced       int     `json:"orders_placed" db:"orders_placed"`
	TotalSales         int     `json:"total_sales" db:"total_sales"`
	TotalHoldingCost   float64 `json:"total_holding_cost" db:"total_holding_cost"`
	TotalStockoutCost  float64 `json:"total_stockout_cost" db:"total_stockout_cost"`
	TotalOrderCost     float64 `json:"total_order_cost" db:"total_order_cost"`
	AvgEndingInventory float64 `json:"avg_ending_inventory" db:"avg_ending_inventory"`
}

// SimulationRun is a persisted simulation invocation: the parameters it ran
// with plus its summary.
type SimulationRun struct {
	ID                int64     `json:"-" db:"id"`
	RunUUID           string    `json:"run_uuid" db:"run_uuid"`
	StoreID           string    `json:"store_id" db:"store_id"`
	ProductID         string    `json:"product_id" db:"product_id"`
	LeadTimeDays      int       `json:"lead_time_days" db:"lead_time_days"`
	SafetyStockFactor float64   `json:"safety_stock_factor" db:"safety_stock_factor"`
	HoldingCostRate   float64   `json:"holding_cost_rate" db:"holding_cost_rate"`
	StockoutCostRate  float64   `json:"stockout_cost_rate" db:"stockout_cost_rate"`
	FixedOrderCost    float64   `json:"fixed_order_cost" db:"fixed_order_cost"`
	InitialInventory  *int      `json:"initial_inventory,omitempty" db:"initial_inventory"`
	Days              int       `json:"days" db:"days"`
	TotalCost         float64   `json:"total_cost" db:"total_cost"`
	TotalStockout     int       `json:"total_stockout" db:"total_stockout"`
	OrdersPlaced      int       `json:"orders_placed" db:"orders_placed"`
	TotalSales        int       `json:"total_sales" db:"total_sales"`
	Source            string    `json:"source" db:"source"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// RunFilter narrows run-history queries.
type RunFilter struct {
	StoreIDs   []string `json:"store_ids"`
	ProductIDs []string `json:"product_ids"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}

// KPIRow is one aggregated row of a KPI report.
type KPIRow struct {
	StoreID       string  `json:"store_id,omitempty"`
	ProductID     string  `json:"product_id,omitempty"`
	Category      string  `json:"category,omitempty"`
	Region        string  `json:"region,omitempty"`
	StockoutRate  float64 `json:"stockout_rate"`
	OverstockRate float64 `json:"overstock_rate"`
	TotalSales    int     `json:"total_sales"`
	TotalForecast float64 `json:"total_forecast"`
	AvgInventory  float64 `json:"avg_inventory"`
}

// ForecastRow is one row of the forecast API response.
type ForecastRow struct {
	Date      time.Time `json:"date"`
	UnitsSold int       `json:"units_sold"`
	Forecast  float64   `json:"forecast"`
}
