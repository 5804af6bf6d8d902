package simulation

import "github.com/andresuchdata/stocksim/internal/domain"

// Summarize reduces a run ledger to headline figures. An empty ledger yields
// the zero Summary.
func Summarize(records []domain.SimulationRecord) domain.Summary {
	s := domain.Summary{Days: len(records)}
	if len(records) == 0 {
		return s
	}

	endingSum := 0
	for _, r := range records {
		s.TotalCost += r.TotalCost
		s.TotalHoldingCost += r.HoldingCost
		s.TotalStockoutCost += r.StockoutCost
		s.TotalOrderCost += r.OrderCost
		s.TotalStockout += r.StockoutQty
		s.TotalSales += r.UnitsSold
		if r.OrderQty > 0 {
			s.OrdersPlaced++
		}
		endingSum += r.EndingInventory
	}
	s.AvgEndingInventory = float64(endingSum) / float64(len(records))

	return s
}
