package kpi

import (
	"sort"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// Row flags are derived on the fly rather than stored: a stockout is an
// ending inventory below zero, an overstock an ending inventory above twice
// the global mean daily sales.

func isStockout(row domain.MergedRow) bool {
	return row.EndingInventory < 0
}

func isOverstock(row domain.MergedRow, threshold float64) bool {
	return float64(row.EndingInventory) > threshold
}

// accumulator folds merged rows for one group.
type accumulator struct {
	rows          int
	stockouts     int
	overstocks    int
	totalSales    int
	totalForecast float64
	inventorySum  int
}

func (a *accumulator) add(row domain.MergedRow, overstockThreshold float64) {
	a.rows++
	if isStockout(row) {
		a.stockouts++
	}
	if isOverstock(row, overstockThreshold) {
		a.overstocks++
	}
	a.totalSales += row.UnitsSold
	a.totalForecast += row.Forecast
	a.inventorySum += row.EndingInventory
}

func (a *accumulator) fill(out *domain.KPIRow) {
	out.StockoutRate = float64(a.stockouts) / float64(a.rows)
	out.OverstockRate = float64(a.overstocks) / float64(a.rows)
	out.TotalSales = a.totalSales
	out.TotalForecast = a.totalForecast
	out.AvgInventory = float64(a.inventorySum) / float64(a.rows)
}

// ByProduct aggregates per (store_id, product_id). meanUnitsSold is the
// dataset-wide mean used for the overstock threshold. Output is sorted by
// store then product.
func ByProduct(rows []domain.MergedRow, meanUnitsSold float64) []domain.KPIRow {
	threshold := meanUnitsSold * 2
	groups := make(map[domain.SkuKey]*accumulator)
	for _, row := range rows {
		key := row.Key()
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{}
			groups[key] = acc
		}
		acc.add(row, threshold)
	}

	out := make([]domain.KPIRow, 0, len(groups))
	for key, acc := range groups {
		row := domain.KPIRow{StoreID: key.StoreID, ProductID: key.ProductID}
		acc.fill(&row)
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StoreID != out[j].StoreID {
			return out[i].StoreID < out[j].StoreID
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

// ByCategory aggregates per category, sorted by category name.
func ByCategory(rows []domain.MergedRow, meanUnitsSold float64) []domain.KPIRow {
	threshold := meanUnitsSold * 2
	groups := make(map[string]*accumulator)
	for _, row := range rows {
		acc, ok := groups[row.Category]
		if !ok {
			acc = &accumulator{}
			groups[row.Category] = acc
		}
		acc.add(row, threshold)
	}

	out := make([]domain.KPIRow, 0, len(groups))
	for category, acc := range groups {
		row := domain.KPIRow{Category: category}
		acc.fill(&row)
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// ByRegion aggregates per region, sorted by region name.
func ByRegion(rows []domain.MergedRow, meanUnitsSold float64) []domain.KPIRow {
	threshold := meanUnitsSold * 2
	groups := make(map[string]*accumulator)
	for _, row := range rows {
		acc, ok := groups[row.Region]
		if !ok {
			acc = &accumulator{}
			groups[row.Region] = acc
		}
		acc.add(row, threshold)
	}

	out := make([]domain.KPIRow, 0, len(groups))
	for region, acc := range groups {
		row := domain.KPIRow{Region: region}
		acc.fill(&row)
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}

// ByScope dispatches to the aggregation matching scope.
func ByScope(scope domain.KPIScope, rows []domain.MergedRow, meanUnitsSold float64) []domain.KPIRow {
	switch scope {
	case domain.ScopeCategory:
		return ByCategory(rows, meanUnitsSold)
	case domain.ScopeRegion:
		return ByRegion(rows, meanUnitsSold)
	default:
		return ByProduct(rows, meanUnitsSold)
	}
}
