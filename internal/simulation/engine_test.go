package simulation

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/andresuchdata/stocksim/internal/domain"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// flatSeries builds n days of constant demand and forecast. The first point
// carries the recorded inventory level used when no override is set.
func flatSeries(n, demand int, forecast float64, inv0 int) domain.SkuTimeSeries {
	points := make([]domain.SeriesPoint, 0, n)
	for i := 0; i < n; i++ {
		inv := 0
		if i == 0 {
			inv = inv0
		}
		points = append(points, domain.SeriesPoint{
			Date:           day(i),
			Demand:         demand,
			Forecast:       forecast,
			InventoryLevel: inv,
		})
	}
	return domain.SkuTimeSeries{
		Key:    domain.SkuKey{StoreID: "S001", ProductID: "P0001"},
		Points: points,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRunAmpleInventoryNoStockouts(t *testing.T) {
	series := flatSeries(10, 5, 5.0, 50)
	records, err := Run(series, DefaultParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("got %d records, want 10", len(records))
	}

	wantEnding := []int{45, 40, 35, 30, 25, 20, 15, 10, 5, 12}
	wantOrder := []int{0, 0, 0, 0, 0, 0, 0, 12, 0, 0}
	for i, r := range records {
		if r.StockoutQty != 0 {
			t.Errorf("day %d: stockout %d, want 0", i, r.StockoutQty)
		}
		if r.UnitsSold != 5 {
			t.Errorf("day %d: units sold %d, want 5", i, r.UnitsSold)
		}
		if r.EndingInventory != wantEnding[i] {
			t.Errorf("day %d: ending inventory %d, want %d", i, r.EndingInventory, wantEnding[i])
		}
		if r.OrderQty != wantOrder[i] {
			t.Errorf("day %d: order qty %d, want %d", i, r.OrderQty, wantOrder[i])
		}
		if !almostEqual(r.HoldingCost, float64(r.EndingInventory)*0.1) {
			t.Errorf("day %d: holding cost %g, want %g", i, r.HoldingCost, float64(r.EndingInventory)*0.1)
		}
	}

	// Order placed on day 7 arrives on day 9, after that day's (blocked)
	// reorder decision, and counts toward day 9's ending inventory.
	if records[9].EndingInventory != 12 {
		t.Errorf("day 9 ending inventory %d, want 12 after receipt", records[9].EndingInventory)
	}
	if !almostEqual(records[7].OrderCost, 10.0) {
		t.Errorf("day 7 order cost %g, want 10", records[7].OrderCost)
	}
	if !almostEqual(records[7].TotalCost, 11.0) {
		t.Errorf("day 7 total cost %g, want 11", records[7].TotalCost)
	}
}

func TestRunDemandSpikeLosesUnmetDemand(t *testing.T) {
	series := domain.SkuTimeSeries{
		Key: domain.SkuKey{StoreID: "S001", ProductID: "P0001"},
		Points: []domain.SeriesPoint{
			{Date: day(0), Demand: 100, Forecast: 50, InventoryLevel: 10},
			{Date: day(1), Demand: 5, Forecast: 5},
		},
	}
	records, err := Run(series, DefaultParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	r0 := records[0]
	if r0.UnitsSold != 10 {
		t.Errorf("units sold %d, want 10", r0.UnitsSold)
	}
	if r0.StockoutQty != 90 {
		t.Errorf("stockout qty %d, want 90", r0.StockoutQty)
	}
	if r0.EndingInventory != 0 {
		t.Errorf("ending inventory %d, want 0", r0.EndingInventory)
	}
	if r0.OrderQty != 120 {
		t.Errorf("order qty %d, want 120", r0.OrderQty)
	}
	if !almostEqual(r0.StockoutCost, 90.0) {
		t.Errorf("stockout cost %g, want 90", r0.StockoutCost)
	}
	if !almostEqual(r0.TotalCost, 100.0) {
		t.Errorf("total cost %g, want 100", r0.TotalCost)
	}

	// Day 1 demand is lost, not carried: sales drop to zero while the
	// day-0 order is still in transit.
	r1 := records[1]
	if r1.UnitsSold != 0 || r1.StockoutQty != 5 {
		t.Errorf("day 1: sold %d stockout %d, want 0 and 5", r1.UnitsSold, r1.StockoutQty)
	}
	if r1.OrderQty != 0 {
		t.Errorf("day 1: order qty %d, want 0 while an order is outstanding", r1.OrderQty)
	}
}

func TestRunPendingOrderBlocksReorders(t *testing.T) {
	params := DefaultParams()
	params.LeadTimeDays = 3

	series := flatSeries(7, 10, 10.0, 60)
	records, err := Run(series, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantOrder := []int{0, 0, 36, 0, 0, 0, 36}
	wantEnding := []int{50, 40, 30, 20, 10, 36, 26}
	for i, r := range records {
		if r.OrderQty != wantOrder[i] {
			t.Errorf("day %d: order qty %d, want %d", i, r.OrderQty, wantOrder[i])
		}
		if r.EndingInventory != wantEnding[i] {
			t.Errorf("day %d: ending inventory %d, want %d", i, r.EndingInventory, wantEnding[i])
		}
	}

	// Day 5 receives the day-2 order, yet places no order of its own: the
	// decision ran while the order was still marked outstanding.
	if records[5].OrderQty != 0 {
		t.Errorf("day 5 placed an order despite same-day receipt")
	}
	// Day 6 may reorder again now that the receipt cleared the flag.
	if records[6].OrderQty == 0 {
		t.Errorf("day 6 placed no order after receipt cleared the outstanding flag")
	}
}

func TestRunZeroLeadTime(t *testing.T) {
	params := DefaultParams()
	params.LeadTimeDays = 0

	series := flatSeries(3, 10, 10.0, 15)
	records, err := Run(series, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// With zero lead time the reorder point is always zero and on-hand
	// inventory never drops below it, so no order is ever placed.
	wantEnding := []int{5, 0, 0}
	wantStockout := []int{0, 5, 10}
	for i, r := range records {
		if r.OrderQty != 0 {
			t.Errorf("day %d: order qty %d, want 0", i, r.OrderQty)
		}
		if r.EndingInventory != wantEnding[i] {
			t.Errorf("day %d: ending inventory %d, want %d", i, r.EndingInventory, wantEnding[i])
		}
		if r.StockoutQty != wantStockout[i] {
			t.Errorf("day %d: stockout qty %d, want %d", i, r.StockoutQty, wantStockout[i])
		}
	}
}

func TestRunInitialInventoryOverride(t *testing.T) {
	series := flatSeries(3, 5, 5.0, 50)
	params := DefaultParams()
	override := 100
	params.InitialInventory = &override

	records, err := Run(series, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if records[0].StartInventory != 100 {
		t.Errorf("start inventory %d, want override 100", records[0].StartInventory)
	}
}

func TestRunNegativeInitialInventory(t *testing.T) {
	series := flatSeries(2, 3, 3.0, 50)
	params := DefaultParams()
	override := -5
	params.InitialInventory = &override

	records, err := Run(series, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A negative opening position is preserved in the ledger: sales go
	// negative to restore on-hand to zero and the full demand plus the
	// deficit is counted as stockout.
	r0 := records[0]
	if r0.StartInventory != -5 {
		t.Errorf("start inventory %d, want -5", r0.StartInventory)
	}
	if r0.UnitsSold != -5 {
		t.Errorf("units sold %d, want -5", r0.UnitsSold)
	}
	if r0.StockoutQty != 8 {
		t.Errorf("stockout qty %d, want 8", r0.StockoutQty)
	}
	if r0.EndingInventory != 0 {
		t.Errorf("ending inventory %d, want 0", r0.EndingInventory)
	}
	if r0.OrderQty <= 0 {
		t.Errorf("order qty %d, want an order below the reorder point", r0.OrderQty)
	}
	if r0.HoldingCost != 0 {
		t.Errorf("holding cost %g, want 0", r0.HoldingCost)
	}
}

func TestRunDeterministic(t *testing.T) {
	series := volatileSeries()
	first, err := Run(series, DefaultParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := Run(series, DefaultParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated runs over the same input diverged")
	}
}

func TestRunLedgerInvariants(t *testing.T) {
	series := volatileSeries()
	params := DefaultParams()
	records, err := Run(series, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(records) != len(series.Points) {
		t.Fatalf("got %d records, want %d", len(records), len(series.Points))
	}

	lastOrderDay := -1
	for i, r := range records {
		if !r.Date.Equal(series.Points[i].Date) {
			t.Errorf("day %d: record date %s, want %s", i, r.Date, series.Points[i].Date)
		}
		if r.EndingInventory < 0 {
			t.Errorf("day %d: negative ending inventory %d", i, r.EndingInventory)
		}
		if r.HoldingCost < 0 || r.StockoutCost < 0 || r.OrderCost < 0 || r.TotalCost < 0 {
			t.Errorf("day %d: negative cost component", i)
		}
		if !almostEqual(r.TotalCost, r.HoldingCost+r.StockoutCost+r.OrderCost) {
			t.Errorf("day %d: total cost %g does not equal component sum", i, r.TotalCost)
		}
		if r.OrderQty > 0 {
			// An order placed on day i arrives on day i+lead, after that
			// day's decision, so the next order is at least lead+1 later.
			if lastOrderDay >= 0 && i-lastOrderDay <= params.LeadTimeDays {
				t.Errorf("day %d: order placed while day-%d order was outstanding", i, lastOrderDay)
			}
			lastOrderDay = i
		}
	}
}

func TestRunValidatesSeries(t *testing.T) {
	valid := flatSeries(3, 5, 5.0, 20)

	unsorted := flatSeries(3, 5, 5.0, 20)
	unsorted.Points[2].Date = day(0)

	duplicate := flatSeries(3, 5, 5.0, 20)
	duplicate.Points[1].Date = duplicate.Points[0].Date

	negDemand := flatSeries(3, 5, 5.0, 20)
	negDemand.Points[1].Demand = -1

	negForecast := flatSeries(3, 5, 5.0, 20)
	negForecast.Points[2].Forecast = -0.5

	tests := []struct {
		name   string
		series domain.SkuTimeSeries
	}{
		{"empty series", domain.SkuTimeSeries{Key: valid.Key}},
		{"unsorted dates", unsorted},
		{"duplicate dates", duplicate},
		{"negative demand", negDemand},
		{"negative forecast", negForecast},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(tt.series, DefaultParams())
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("got %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRunValidatesParams(t *testing.T) {
	series := flatSeries(3, 5, 5.0, 20)

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"negative lead time", func(p *Params) { p.LeadTimeDays = -1 }},
		{"zero safety stock factor", func(p *Params) { p.SafetyStockFactor = 0 }},
		{"negative safety stock factor", func(p *Params) { p.SafetyStockFactor = -0.3 }},
		{"negative holding cost rate", func(p *Params) { p.HoldingCostRate = -0.1 }},
		{"negative stockout cost rate", func(p *Params) { p.StockoutCostRate = -1 }},
		{"negative order cost", func(p *Params) { p.OrderCostFixed = -10 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := DefaultParams()
			tt.mutate(&params)
			_, err := Run(series, params)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("got %v, want ErrInvalidParameter", err)
			}
		})
	}
}

// volatileSeries exercises reorder, receipt, and stockout paths together.
func volatileSeries() domain.SkuTimeSeries {
	demands := []int{30, 0, 25, 5, 40, 0, 10, 35, 0, 20, 15, 5, 30, 0, 25}
	points := make([]domain.SeriesPoint, 0, len(demands))
	for i, d := range demands {
		inv := 0
		if i == 0 {
			inv = 40
		}
		points = append(points, domain.SeriesPoint{
			Date:           day(i),
			Demand:         d,
			Forecast:       12.0,
			InventoryLevel: inv,
		})
	}
	return domain.SkuTimeSeries{
		Key:    domain.SkuKey{StoreID: "S002", ProductID: "P0042"},
		Points: points,
	}
}
