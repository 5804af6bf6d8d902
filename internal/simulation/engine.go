package simulation

import (
	"fmt"
	"math"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// state carries the mutable fold state across days. Each run owns its own
// instance; nothing is shared between SKUs.
type state struct {
	onHand       int
	orderPending bool
}

// Run folds the reorder policy over one SKU's daily series and returns the
// per-day ledger, one record per input point in date order.
//
// Each day proceeds in a fixed order: demand is served first (unmet demand
// is lost, never backordered), then the reorder decision is taken, and only
// then does an order placed lead_time_days ago arrive. A receipt therefore
// counts toward the same day's ending inventory and holding cost, but cannot
// influence that day's reorder decision. At most one order is outstanding at
// a time.
func Run(series domain.SkuTimeSeries, params Params) ([]domain.SimulationRecord, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := validatePoints(series.Points); err != nil {
		return nil, err
	}

	st := state{onHand: startingInventory(params, series.Points)}
	records := make([]domain.SimulationRecord, 0, len(series.Points))

	for i, pt := range series.Points {
		startInv := st.onHand

		sales := min(st.onHand, pt.Demand)
		stockoutQty := max(0, pt.Demand-st.onHand)
		st.onHand -= sales

		orderQty := 0
		reorderPoint := int(params.SafetyStockFactor * pt.Forecast * float64(params.LeadTimeDays))
		if st.onHand < reorderPoint && !st.orderPending {
			orderQty = int(math.Max(1, pt.Forecast*float64(params.LeadTimeDays)*params.SafetyStockFactor))
			st.orderPending = true
		}

		// Receipt happens after the reorder check so an arrival never
		// suppresses the same day's order decision. With a zero lead time
		// the order placed above is received immediately.
		if i >= params.LeadTimeDays {
			arriving := orderQty
			if params.LeadTimeDays > 0 {
				arriving = records[i-params.LeadTimeDays].OrderQty
			}
			if arriving > 0 {
				st.onHand += arriving
				st.orderPending = false
			}
		}

		endingInv := st.onHand
		holdingCost := float64(endingInv) * params.HoldingCostRate
		stockoutCost := float64(stockoutQty) * params.StockoutCostRate
		orderCost := 0.0
		if orderQty > 0 {
			orderCost = params.OrderCostFixed
		}

		records = append(records, domain.SimulationRecord{
			Date:            pt.Date,
			Demand:          pt.Demand,
			Forecast:        pt.Forecast,
			StartInventory:  startInv,
			UnitsSold:       sales,
			StockoutQty:     stockoutQty,
			OrderQty:        orderQty,
			EndingInventory: endingInv,
			HoldingCost:     holdingCost,
			StockoutCost:    stockoutCost,
			OrderCost:       orderCost,
			TotalCost:       holdingCost + stockoutCost + orderCost,
		})
	}

	return records, nil
}

// startingInventory resolves the opening on-hand level: an explicit override
// wins, otherwise the first point's recorded inventory is used. Points must
// be non-empty by the time this is called.
func startingInventory(params Params, points []domain.SeriesPoint) int {
	if params.InitialInventory != nil {
		return *params.InitialInventory
	}
	return points[0].InventoryLevel
}

func validatePoints(points []domain.SeriesPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: series has no points", ErrInvalidInput)
	}
	for i, pt := range points {
		if pt.Demand < 0 {
			return fmt.Errorf("%w: negative demand %d at index %d", ErrInvalidInput, pt.Demand, i)
		}
		if pt.Forecast < 0 {
			return fmt.Errorf("%w: negative forecast %g at index %d", ErrInvalidInput, pt.Forecast, i)
		}
		if i == 0 {
			continue
		}
		if pt.Date.Equal(points[i-1].Date) {
			return fmt.Errorf("%w: duplicate date %s at index %d", ErrInvalidInput, pt.Date.Format("2006-01-02"), i)
		}
		if pt.Date.Before(points[i-1].Date) {
			return fmt.Errorf("%w: series not sorted by date at index %d", ErrInvalidInput, i)
		}
	}
	return nil
}
