package dataset

import (
	"sort"
	"time"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// Dataset is an immutable snapshot of the canonical inventory table, indexed
// by SKU. Build one with New or Load and share it freely across goroutines.
type Dataset struct {
	rows          []domain.Observation
	byKey         map[domain.SkuKey][]domain.Observation
	keys          []domain.SkuKey
	meanUnitsSold float64
	minDate       time.Time
	maxDate       time.Time
}

// New indexes the given observations. Rows are sorted by store, product, and
// date; the input slice is not retained.
func New(rows []domain.Observation) *Dataset {
	sorted := make([]domain.Observation, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.Date.Before(b.Date)
	})

	ds := &Dataset{
		rows:  sorted,
		byKey: make(map[domain.SkuKey][]domain.Observation),
	}

	totalSold := 0
	for _, row := range sorted {
		key := row.Key()
		if _, seen := ds.byKey[key]; !seen {
			ds.keys = append(ds.keys, key)
		}
		ds.byKey[key] = append(ds.byKey[key], row)

		totalSold += row.UnitsSold
		if ds.minDate.IsZero() || row.Date.Before(ds.minDate) {
			ds.minDate = row.Date
		}
		if row.Date.After(ds.maxDate) {
			ds.maxDate = row.Date
		}
	}
	if len(sorted) > 0 {
		ds.meanUnitsSold = float64(totalSold) / float64(len(sorted))
	}
	return ds
}

// Rows returns all observations in (store, product, date) order. Callers must
// not mutate the returned slice.
func (d *Dataset) Rows() []domain.Observation {
	return d.rows
}

// Keys returns every SKU in sorted order.
func (d *Dataset) Keys() []domain.SkuKey {
	return d.keys
}

// Observations returns one SKU's rows in date order, or nil when the SKU is
// not present.
func (d *Dataset) Observations(key domain.SkuKey) []domain.Observation {
	return d.byKey[key]
}

// Series converts one SKU's observations to simulation input points. The
// forecast column starts at zero; callers overlay forecasts before running.
func (d *Dataset) Series(key domain.SkuKey) (domain.SkuTimeSeries, bool) {
	obs, ok := d.byKey[key]
	if !ok {
		return domain.SkuTimeSeries{}, false
	}
	points := make([]domain.SeriesPoint, 0, len(obs))
	for _, row := range obs {
		points = append(points, domain.SeriesPoint{
			Date:           row.Date,
			Demand:         row.UnitsSold,
			InventoryLevel: row.InventoryLevel,
		})
	}
	return domain.SkuTimeSeries{Key: key, Points: points}, true
}

// Len returns the total row count.
func (d *Dataset) Len() int {
	return len(d.rows)
}

// NumSKUs returns the distinct SKU count.
func (d *Dataset) NumSKUs() int {
	return len(d.keys)
}

// MeanUnitsSold is the global mean of units_sold across all rows. The
// overstock threshold is twice this value.
func (d *Dataset) MeanUnitsSold() float64 {
	return d.meanUnitsSold
}

// DateRange returns the earliest and latest observation dates. Both are zero
// for an empty dataset.
func (d *Dataset) DateRange() (time.Time, time.Time) {
	return d.minDate, d.maxDate
}
