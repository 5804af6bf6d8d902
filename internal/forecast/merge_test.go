package forecast

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/andresuchdata/stocksim/internal/dataset"
	"github.com/andresuchdata/stocksim/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func obsRows(key domain.SkuKey, demands []int) []domain.Observation {
	rows := make([]domain.Observation, 0, len(demands))
	for i, d := range demands {
		rows = append(rows, domain.Observation{
			Date:           day(i),
			StoreID:        key.StoreID,
			ProductID:      key.ProductID,
			Category:       "Groceries",
			Region:         "North",
			UnitsSold:      d,
			InventoryLevel: 100,
		})
	}
	return rows
}

func TestMergeJoinsAndBackfills(t *testing.T) {
	key := domain.SkuKey{StoreID: "S001", ProductID: "P0001"}
	ds := dataset.New(obsRows(key, []int{10, 20, 30, 40}))

	idx := NewIndex([]domain.ForecastPoint{
		{Date: day(1), StoreID: "S001", ProductID: "P0001", Forecast: 22.5},
	})

	merged := Merge(ds, idx)
	if len(merged) != 4 {
		t.Fatalf("merged rows = %d, want 4", len(merged))
	}

	// Day 1 has a provided forecast.
	if merged[1].Backfilled || merged[1].Forecast != 22.5 {
		t.Errorf("day 1 = forecast %g backfilled %v, want 22.5 provided", merged[1].Forecast, merged[1].Backfilled)
	}

	// Day 0 backfills to its own demand; day 3 to the mean of days 0..3.
	if !merged[0].Backfilled || merged[0].Forecast != 10.0 {
		t.Errorf("day 0 = forecast %g backfilled %v, want 10 backfilled", merged[0].Forecast, merged[0].Backfilled)
	}
	if !merged[3].Backfilled || merged[3].Forecast != 25.0 {
		t.Errorf("day 3 = forecast %g, want trailing mean 25", merged[3].Forecast)
	}

	// Ending inventory derives from the observation and may go negative.
	if merged[0].EndingInventory != 90 {
		t.Errorf("day 0 ending inventory = %d, want 90", merged[0].EndingInventory)
	}
}

func TestMergeTrailingWindowCapsAtSeven(t *testing.T) {
	key := domain.SkuKey{StoreID: "S001", ProductID: "P0001"}
	ds := dataset.New(obsRows(key, []int{10, 20, 30, 40, 50, 60, 70, 80, 90}))

	merged := Merge(ds, Index{})
	// Day 8 averages days 2..8 only.
	if merged[8].Forecast != 60.0 {
		t.Errorf("day 8 forecast = %g, want 60", merged[8].Forecast)
	}
}

func TestMergeNegativeEndingInventory(t *testing.T) {
	key := domain.SkuKey{StoreID: "S001", ProductID: "P0001"}
	rows := obsRows(key, []int{150})
	rows[0].InventoryLevel = 100

	merged := Merge(dataset.New(rows), Index{})
	if merged[0].EndingInventory != -50 {
		t.Errorf("ending inventory = %d, want -50", merged[0].EndingInventory)
	}
}

func TestFillSeries(t *testing.T) {
	key := domain.SkuKey{StoreID: "S001", ProductID: "P0001"}
	series := domain.SkuTimeSeries{
		Key: key,
		Points: []domain.SeriesPoint{
			{Date: day(0), Demand: 10, InventoryLevel: 50},
			{Date: day(1), Demand: 20},
			{Date: day(2), Demand: 30},
		},
	}
	idx := NewIndex([]domain.ForecastPoint{
		{Date: day(2), StoreID: "S001", ProductID: "P0001", Forecast: 28.0},
	})

	filled := FillSeries(series, idx)
	want := []float64{10.0, 15.0, 28.0}
	for i, w := range want {
		if filled.Points[i].Forecast != w {
			t.Errorf("point %d forecast = %g, want %g", i, filled.Points[i].Forecast, w)
		}
	}
	if series.Points[0].Forecast != 0 {
		t.Errorf("input series mutated")
	}
	if filled.Points[0].InventoryLevel != 50 {
		t.Errorf("inventory level not carried over")
	}
}

func TestCheckHistory(t *testing.T) {
	key := domain.SkuKey{StoreID: "S001", ProductID: "P0001"}
	short := domain.SkuTimeSeries{Key: key, Points: make([]domain.SeriesPoint, 5)}
	long := domain.SkuTimeSeries{Key: key, Points: make([]domain.SeriesPoint, 30)}

	if err := CheckHistory(short, 10); !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("short series: got %v, want ErrInsufficientHistory", err)
	}
	if err := CheckHistory(long, 10); err != nil {
		t.Errorf("long series: %v", err)
	}
	// Zero minPoints falls back to the default of 30.
	if err := CheckHistory(short, 0); !errors.Is(err, ErrInsufficientHistory) {
		t.Errorf("default gate: got %v, want ErrInsufficientHistory", err)
	}
	if err := CheckHistory(long, 0); err != nil {
		t.Errorf("default gate at exactly 30 points: %v", err)
	}
}

func TestEvaluate(t *testing.T) {
	base := domain.Observation{StoreID: "S001", ProductID: "P0001"}
	mk := func(units int, fc float64, backfilled bool) domain.MergedRow {
		o := base
		o.UnitsSold = units
		return domain.MergedRow{Observation: o, Forecast: fc, Backfilled: backfilled}
	}

	rows := []domain.MergedRow{
		mk(10, 12, false),
		mk(0, 3, false),
		mk(5, 5, false),
		mk(7, 99, true),
	}

	acc := Evaluate(rows)
	if acc.RowsEvaluated != 3 {
		t.Errorf("rows evaluated = %d, want 3 (backfilled excluded)", acc.RowsEvaluated)
	}
	wantRMSE := math.Sqrt(13.0 / 3.0)
	if math.Abs(acc.RMSE-wantRMSE) > 1e-9 {
		t.Errorf("RMSE = %g, want %g", acc.RMSE, wantRMSE)
	}
	// Zero-demand row is excluded from MAPE.
	if math.Abs(acc.MAPE-0.1) > 1e-9 {
		t.Errorf("MAPE = %g, want 0.1", acc.MAPE)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	acc := Evaluate(nil)
	if acc.RMSE != 0 || acc.MAPE != 0 || acc.RowsEvaluated != 0 {
		t.Errorf("empty evaluation not zero: %+v", acc)
	}

	onlyBackfilled := []domain.MergedRow{{Forecast: 5, Backfilled: true}}
	if acc := Evaluate(onlyBackfilled); acc.RowsEvaluated != 0 {
		t.Errorf("backfilled-only evaluation counted rows: %+v", acc)
	}
}

func TestLoadCSVReader(t *testing.T) {
	csv := "date,store_id,product_id,category,region,forecast\n" +
		"2022-01-01,S001,P0001,Groceries,North,12.5\n" +
		"2022-01-02,S001,P0001,Groceries,North,13.25\n"
	points, err := LoadCSVReader(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadCSVReader: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2", len(points))
	}
	if points[0].Forecast != 12.5 || points[0].StoreID != "S001" {
		t.Errorf("point 0 = %+v", points[0])
	}
}

func TestLoadCSVReaderAliases(t *testing.T) {
	csv := "ds,store,sku,yhat\n2022-01-01,S001,P0001,9.75\n"
	points, err := LoadCSVReader(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("LoadCSVReader: %v", err)
	}
	if points[0].Forecast != 9.75 || points[0].ProductID != "P0001" {
		t.Errorf("point = %+v", points[0])
	}
}

func TestLoadCSVReaderMissingColumn(t *testing.T) {
	csv := "date,store_id,product_id\n2022-01-01,S001,P0001\n"
	_, err := LoadCSVReader(strings.NewReader(csv))
	if err == nil || !strings.Contains(err.Error(), "missing required column: forecast") {
		t.Errorf("got %v, want missing forecast column error", err)
	}
}
