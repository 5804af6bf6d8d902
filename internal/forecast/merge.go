package forecast

import (
	"time"

	"github.com/andresuchdata/stocksim/internal/dataset"
	"github.com/andresuchdata/stocksim/internal/domain"
)

// rollingWindow is the trailing window, in days, used to backfill missing
// forecasts from observed demand.
const rollingWindow = 7

const dateKeyLayout = "2006-01-02"

// Index answers (SKU, date) forecast lookups.
type Index map[domain.SkuKey]map[string]float64

// NewIndex builds a lookup from loaded forecast points. Later duplicates win.
func NewIndex(points []domain.ForecastPoint) Index {
	idx := make(Index)
	for _, p := range points {
		key := domain.SkuKey{StoreID: p.StoreID, ProductID: p.ProductID}
		if idx[key] == nil {
			idx[key] = make(map[string]float64)
		}
		idx[key][p.Date.Format(dateKeyLayout)] = p.Forecast
	}
	return idx
}

// Lookup returns the forecast for a SKU on a date, if one was provided.
func (idx Index) Lookup(key domain.SkuKey, date time.Time) (float64, bool) {
	byDate, ok := idx[key]
	if !ok {
		return 0, false
	}
	v, ok := byDate[date.Format(dateKeyLayout)]
	return v, ok
}

// Merge left-joins forecasts onto every dataset row. Rows without a provided
// forecast are backfilled with the trailing rolling mean of that SKU's demand
// (window includes the current day, so the first row falls back to its own
// demand). Output preserves the dataset's (store, product, date) order.
func Merge(ds *dataset.Dataset, idx Index) []domain.MergedRow {
	merged := make([]domain.MergedRow, 0, ds.Len())
	for _, key := range ds.Keys() {
		obs := ds.Observations(key)
		demands := make([]int, len(obs))
		for i, o := range obs {
			demands[i] = o.UnitsSold
		}
		for i, o := range obs {
			fc, ok := idx.Lookup(key, o.Date)
			if !ok {
				fc = trailingMean(demands, i)
			}
			merged = append(merged, domain.MergedRow{
				Observation:     o,
				Forecast:        fc,
				Backfilled:      !ok,
				EndingInventory: o.InventoryLevel - o.UnitsSold,
			})
		}
	}
	return merged
}

// FillSeries overlays forecasts onto a simulation series, backfilling missing
// days the same way Merge does. The input is not mutated.
func FillSeries(series domain.SkuTimeSeries, idx Index) domain.SkuTimeSeries {
	demands := make([]int, len(series.Points))
	for i, p := range series.Points {
		demands[i] = p.Demand
	}

	points := make([]domain.SeriesPoint, len(series.Points))
	copy(points, series.Points)
	for i := range points {
		if fc, ok := idx.Lookup(series.Key, points[i].Date); ok {
			points[i].Forecast = fc
		} else {
			points[i].Forecast = trailingMean(demands, i)
		}
	}
	return domain.SkuTimeSeries{Key: series.Key, Points: points}
}

// trailingMean averages demands over the window ending at i, inclusive.
func trailingMean(demands []int, i int) float64 {
	start := i - rollingWindow + 1
	if start < 0 {
		start = 0
	}
	sum := 0
	for _, d := range demands[start : i+1] {
		sum += d
	}
	return float64(sum) / float64(i-start+1)
}
