package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// LedgerFileName is the aggregated simulation artifact.
const LedgerFileName = "inventory_simulation.csv"

// Rough estimate used for the size-based flush trigger.
const bytesPerRecordEstimate = 100

var ledgerHeader = []string{
	"store_id", "product_id", "date",
	"demand", "forecast", "start_inventory", "units_sold", "stockout_qty",
	"order_qty", "ending_inventory",
	"holding_cost", "stockout_cost", "order_cost", "total_cost",
}

type bufferedLedger struct {
	key     domain.SkuKey
	records []domain.SimulationRecord
}

// LedgerAggregator buffers per-SKU ledgers and flushes them into a single
// CSV once the row or size threshold is reached. The header is written once;
// later flushes append.
type LedgerAggregator struct {
	config Config

	mu         sync.Mutex
	buffer     []bufferedLedger
	bufferRows int
	bufferSize int64

	file   *os.File
	writer *csv.Writer
	path   string
}

// NewLedgerAggregator prepares an aggregator writing into the configured
// artifacts directory. The file is created on the first flush.
func NewLedgerAggregator(config Config) *LedgerAggregator {
	return &LedgerAggregator{
		config: config,
		path:   filepath.Join(config.ArtifactsDir, LedgerFileName),
	}
}

// Path returns the artifact location.
func (a *LedgerAggregator) Path() string {
	return a.path
}

// Add buffers one SKU's ledger and flushes when a threshold is crossed.
func (a *LedgerAggregator) Add(key domain.SkuKey, records []domain.SimulationRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffer = append(a.buffer, bufferedLedger{key: key, records: records})
	a.bufferRows += len(records)
	a.bufferSize += int64(len(records) * bytesPerRecordEstimate)

	shouldFlush := a.bufferRows >= a.config.FlushRows ||
		a.bufferSize >= a.config.FlushBytes

	if shouldFlush {
		return a.flushLocked()
	}
	return nil
}

// Finalize flushes whatever is buffered and closes the artifact. It is safe
// to call when nothing was ever added; no file is created in that case.
func (a *LedgerAggregator) Finalize() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.flushLocked(); err != nil {
		return err
	}

	if a.file == nil {
		return nil
	}

	a.writer.Flush()
	if err := a.writer.Error(); err != nil {
		a.file.Close()
		return fmt.Errorf("failed to flush ledger csv: %w", err)
	}
	err := a.file.Close()
	a.file = nil
	a.writer = nil
	return err
}

// BufferStats returns current buffer statistics.
func (a *LedgerAggregator) BufferStats() (ledgerCount, rowCount int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffer), a.bufferRows
}

// flushLocked writes the buffered ledgers. Must be called with a.mu held.
func (a *LedgerAggregator) flushLocked() error {
	if len(a.buffer) == 0 {
		return nil
	}

	if a.file == nil {
		if err := os.MkdirAll(a.config.ArtifactsDir, 0755); err != nil {
			return fmt.Errorf("failed to create artifacts directory: %w", err)
		}
		file, err := os.Create(a.path)
		if err != nil {
			return fmt.Errorf("failed to create ledger csv: %w", err)
		}
		a.file = file
		a.writer = csv.NewWriter(file)
		if err := a.writer.Write(ledgerHeader); err != nil {
			return fmt.Errorf("failed to write ledger header: %w", err)
		}
	}

	rows := 0
	for _, ledger := range a.buffer {
		for _, rec := range ledger.records {
			record := []string{
				ledger.key.StoreID,
				ledger.key.ProductID,
				rec.Date.Format("2006-01-02"),
				strconv.Itoa(rec.Demand),
				fmtLedgerFloat(rec.Forecast),
				strconv.Itoa(rec.StartInventory),
				strconv.Itoa(rec.UnitsSold),
				strconv.Itoa(rec.StockoutQty),
				strconv.Itoa(rec.OrderQty),
				strconv.Itoa(rec.EndingInventory),
				fmtLedgerFloat(rec.HoldingCost),
				fmtLedgerFloat(rec.StockoutCost),
				fmtLedgerFloat(rec.OrderCost),
				fmtLedgerFloat(rec.TotalCost),
			}
			if err := a.writer.Write(record); err != nil {
				return fmt.Errorf("failed to write ledger row: %w", err)
			}
			rows++
		}
	}

	a.writer.Flush()
	if err := a.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush ledger csv: %w", err)
	}

	log.Debug().
		Int("ledgers", len(a.buffer)).
		Int("rows", rows).
		Str("path", a.path).
		Msg("ledger buffer flushed")

	a.buffer = a.buffer[:0]
	a.bufferRows = 0
	a.bufferSize = 0
	return nil
}

func fmtLedgerFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
