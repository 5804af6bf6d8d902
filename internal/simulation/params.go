package simulation

import "fmt"

// Params holds the reorder policy knobs for a single simulation run. The
// zero value is not usable; start from DefaultParams and override.
type Params struct {
	// LeadTimeDays is the delay between placing an order and receiving it.
	// Zero means same-day receipt.
	LeadTimeDays int `json:"lead_time_days" yaml:"lead_time_days"`

	// SafetyStockFactor scales the forecast-over-lead-time reorder point.
	SafetyStockFactor float64 `json:"safety_stock_factor" yaml:"safety_stock_factor"`

	// HoldingCostRate is the cost per unit held at end of day.
	HoldingCostRate float64 `json:"holding_cost_rate" yaml:"holding_cost_rate"`

	// StockoutCostRate is the cost per unit of unmet demand.
	StockoutCostRate float64 `json:"stockout_cost_rate" yaml:"stockout_cost_rate"`

	// OrderCostFixed is charged once per order placed, regardless of size.
	OrderCostFixed float64 `json:"fixed_order_cost" yaml:"fixed_order_cost"`

	// InitialInventory overrides the starting on-hand level. When nil the
	// run starts from the first point's recorded inventory level.
	InitialInventory *int `json:"initial_inventory,omitempty" yaml:"initial_inventory,omitempty"`
}

// DefaultParams returns the baseline reorder policy.
func DefaultParams() Params {
	return Params{
		LeadTimeDays:      2,
		SafetyStockFactor: 1.2,
		HoldingCostRate:   0.1,
		StockoutCostRate:  1.0,
		OrderCostFixed:    10.0,
	}
}

// Validate checks the policy ranges. Lead time may be zero but not negative;
// the safety stock factor must be strictly positive; cost rates must not be
// negative.
func (p Params) Validate() error {
	if p.LeadTimeDays < 0 {
		return fmt.Errorf("%w: lead_time_days must be >= 0, got %d", ErrInvalidParameter, p.LeadTimeDays)
	}
	if p.SafetyStockFactor <= 0 {
		return fmt.Errorf("%w: safety_stock_factor must be > 0, got %g", ErrInvalidParameter, p.SafetyStockFactor)
	}
	if p.HoldingCostRate < 0 {
		return fmt.Errorf("%w: holding_cost_rate must be >= 0, got %g", ErrInvalidParameter, p.HoldingCostRate)
	}
	if p.StockoutCostRate < 0 {
		return fmt.Errorf("%w: stockout_cost_rate must be >= 0, got %g", ErrInvalidParameter, p.StockoutCostRate)
	}
	if p.OrderCostFixed < 0 {
		return fmt.Errorf("%w: fixed_order_cost must be >= 0, got %g", ErrInvalidParameter, p.OrderCostFixed)
	}
	return nil
}
