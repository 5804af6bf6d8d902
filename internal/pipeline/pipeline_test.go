package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/andresuchdata/stocksim/internal/dataset"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/forecast"
	"github.com/andresuchdata/stocksim/internal/simulation"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1+n, 0, 0, 0, 0, time.UTC)
}

func flatRows(store, product string, days, demand, startInv int) []domain.Observation {
	rows := make([]domain.Observation, 0, days)
	inv := startInv
	for i := 0; i < days; i++ {
		rows = append(rows, domain.Observation{
			Date:           day(i),
			StoreID:        store,
			ProductID:      product,
			Category:       "Groceries",
			Region:         "North",
			UnitsSold:      demand,
			InventoryLevel: inv,
		})
		inv -= demand
	}
	return rows
}

// testDataset has two SKUs above the history gate and one below it.
func testDataset() *dataset.Dataset {
	var rows []domain.Observation
	rows = append(rows, flatRows("S001", "P0001", 10, 5, 50)...)
	rows = append(rows, flatRows("S001", "P0002", 8, 3, 30)...)
	rows = append(rows, flatRows("S002", "P0001", 2, 4, 20)...)
	return dataset.New(rows)
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Workers:          4,
		RetryAttempts:    3,
		FlushRows:        7,
		FlushBytes:       1 << 20,
		ArtifactsDir:     t.TempDir(),
		MinHistoryPoints: 5,
	}
}

func TestOrchestratorRun(t *testing.T) {
	cfg := testConfig(t)
	o := NewOrchestrator(nil, testDataset(), forecast.Index{}, simulation.DefaultParams(), cfg)

	result, err := o.Run(context.Background(), RunOptions{
		PolicyName:     "default",
		WriteLedgerCSV: true,
		CollectLedgers: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	run := result.Run
	if run.Status != StatusCompleted {
		t.Errorf("Status = %s, want completed", run.Status)
	}
	if run.TotalSKUs != 3 || run.ProcessedSKUs != 2 || run.SkippedSKUs != 1 || run.FailedSKUs != 0 {
		t.Errorf("counters = total %d processed %d skipped %d failed %d, want 3/2/1/0",
			run.TotalSKUs, run.ProcessedSKUs, run.SkippedSKUs, run.FailedSKUs)
	}
	if run.TotalRows != 18 {
		t.Errorf("TotalRows = %d, want 18", run.TotalRows)
	}
	if run.RunUUID == "" {
		t.Error("run has no UUID")
	}
	if run.CompletedAt == nil {
		t.Error("run has no CompletedAt")
	}

	if len(result.Summaries) != 2 {
		t.Fatalf("len(Summaries) = %d, want 2", len(result.Summaries))
	}
	if result.Summaries[0].Key.ProductID != "P0001" || result.Summaries[1].Key.ProductID != "P0002" {
		t.Errorf("summaries not sorted: %+v", result.Summaries)
	}
	if result.Summaries[0].Summary.TotalSales != 50 {
		t.Errorf("P0001 TotalSales = %d, want 50", result.Summaries[0].Summary.TotalSales)
	}

	p1 := domain.SkuKey{StoreID: "S001", ProductID: "P0001"}
	p2 := domain.SkuKey{StoreID: "S001", ProductID: "P0002"}
	if len(result.Ledgers[p1]) != 10 || len(result.Ledgers[p2]) != 8 {
		t.Errorf("ledger lengths = %d / %d, want 10 / 8", len(result.Ledgers[p1]), len(result.Ledgers[p2]))
	}
	if _, ok := result.Ledgers[domain.SkuKey{StoreID: "S002", ProductID: "P0001"}]; ok {
		t.Error("skipped SKU has a ledger")
	}
}

func TestOrchestratorWritesLedgerCSV(t *testing.T) {
	cfg := testConfig(t)
	o := NewOrchestrator(nil, testDataset(), forecast.Index{}, simulation.DefaultParams(), cfg)

	if _, err := o.Run(context.Background(), RunOptions{WriteLedgerCSV: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	file, err := os.Open(filepath.Join(cfg.ArtifactsDir, LedgerFileName))
	if err != nil {
		t.Fatalf("open ledger csv: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read ledger csv: %v", err)
	}

	// Header plus 10 + 8 data rows; the FlushRows threshold of 7 forces
	// multiple flushes, which must not duplicate or truncate rows.
	if len(records) != 19 {
		t.Fatalf("csv rows = %d, want 19", len(records))
	}
	if !reflect.DeepEqual(records[0], ledgerHeader) {
		t.Errorf("header = %v", records[0])
	}

	perSKU := map[string]int{}
	for _, rec := range records[1:] {
		if len(rec) != len(ledgerHeader) {
			t.Fatalf("row width = %d, want %d", len(rec), len(ledgerHeader))
		}
		perSKU[rec[0]+"/"+rec[1]]++
	}
	if perSKU["S001/P0001"] != 10 || perSKU["S001/P0002"] != 8 {
		t.Errorf("per-SKU rows = %v, want 10 and 8", perSKU)
	}
}

func TestOrchestratorDeterministic(t *testing.T) {
	run := func() []SKUSummary {
		cfg := testConfig(t)
		o := NewOrchestrator(nil, testDataset(), forecast.Index{}, simulation.DefaultParams(), cfg)
		result, err := o.Run(context.Background(), RunOptions{})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return result.Summaries
	}

	if first, second := run(), run(); !reflect.DeepEqual(first, second) {
		t.Error("two identical runs produced different summaries")
	}
}

func TestOrchestratorRejectsInvalidParams(t *testing.T) {
	cfg := testConfig(t)
	params := simulation.DefaultParams()
	params.SafetyStockFactor = -1

	o := NewOrchestrator(nil, testDataset(), forecast.Index{}, params, cfg)
	if _, err := o.Run(context.Background(), RunOptions{}); err == nil {
		t.Fatal("Run accepted invalid params")
	}
}

func TestOrchestratorGateAllSKUs(t *testing.T) {
	cfg := testConfig(t)
	cfg.MinHistoryPoints = 100

	o := NewOrchestrator(nil, testDataset(), forecast.Index{}, simulation.DefaultParams(), cfg)
	result, err := o.Run(context.Background(), RunOptions{WriteLedgerCSV: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Run.SkippedSKUs != 3 || result.Run.ProcessedSKUs != 0 {
		t.Errorf("counters = skipped %d processed %d, want 3 / 0",
			result.Run.SkippedSKUs, result.Run.ProcessedSKUs)
	}
	if len(result.Summaries) != 0 {
		t.Errorf("summaries = %d, want 0", len(result.Summaries))
	}
	// Nothing was aggregated, so no artifact should exist.
	if _, err := os.Stat(filepath.Join(cfg.ArtifactsDir, LedgerFileName)); !os.IsNotExist(err) {
		t.Errorf("ledger artifact exists for an all-skipped run (stat err = %v)", err)
	}
}

func TestAggregatorFlushThreshold(t *testing.T) {
	cfg := testConfig(t)
	cfg.FlushRows = 3
	a := NewLedgerAggregator(cfg)

	records := func(n int) []domain.SimulationRecord {
		out := make([]domain.SimulationRecord, n)
		for i := range out {
			out[i] = domain.SimulationRecord{Date: day(i), Demand: 1, UnitsSold: 1}
		}
		return out
	}

	key := domain.SkuKey{StoreID: "S001", ProductID: "P0001"}
	if err := a.Add(key, records(2)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if ledgers, rows := a.BufferStats(); ledgers != 1 || rows != 2 {
		t.Errorf("buffer after first add = %d ledgers / %d rows, want 1 / 2", ledgers, rows)
	}

	// Crossing the threshold flushes everything buffered.
	if err := a.Add(key, records(2)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if ledgers, rows := a.BufferStats(); ledgers != 0 || rows != 0 {
		t.Errorf("buffer after flush = %d ledgers / %d rows, want 0 / 0", ledgers, rows)
	}

	if err := a.Add(key, records(1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	file, err := os.Open(a.Path())
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if len(rows) != 6 {
		t.Errorf("artifact rows = %d, want header + 5", len(rows))
	}
}

func TestAggregatorFinalizeWithoutData(t *testing.T) {
	cfg := testConfig(t)
	a := NewLedgerAggregator(cfg)

	if err := a.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if _, err := os.Stat(a.Path()); !os.IsNotExist(err) {
		t.Errorf("artifact created with no data (stat err = %v)", err)
	}
}
