package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/pkg/logger"
)

// DBFileName is the default artifact name for the SQLite export.
const DBFileName = "retail.db"

const dateLayout = "2006-01-02"

// Artifacts bundles everything one export writes: the merged dataset, the
// per-SKU simulation ledgers, and the KPI reports.
type Artifacts struct {
	Merged  []domain.MergedRow
	Ledgers map[domain.SkuKey][]domain.SimulationRecord
	KPIs    map[domain.KPIScope][]domain.KPIRow
}

// Tables are dropped and recreated on every export so the file always
// reflects exactly one pipeline run.
const schema = `
DROP TABLE IF EXISTS inventory_clean;
CREATE TABLE inventory_clean (
	date TEXT NOT NULL,
	store_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	region TEXT NOT NULL DEFAULT '',
	units_sold INTEGER NOT NULL,
	inventory_level INTEGER NOT NULL,
	price REAL NOT NULL DEFAULT 0,
	is_promo INTEGER NOT NULL DEFAULT 0,
	is_holiday INTEGER NOT NULL DEFAULT 0,
	stockout_flag INTEGER NOT NULL DEFAULT 0,
	ending_inventory INTEGER NOT NULL DEFAULT 0
);

DROP TABLE IF EXISTS forecast;
CREATE TABLE forecast (
	date TEXT NOT NULL,
	store_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	forecast REAL NOT NULL,
	backfilled INTEGER NOT NULL DEFAULT 0
);

DROP TABLE IF EXISTS inventory_simulation;
CREATE TABLE inventory_simulation (
	store_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	date TEXT NOT NULL,
	demand INTEGER NOT NULL,
	forecast REAL NOT NULL,
	start_inventory INTEGER NOT NULL,
	units_sold INTEGER NOT NULL,
	stockout_qty INTEGER NOT NULL,
	order_qty INTEGER NOT NULL,
	ending_inventory INTEGER NOT NULL,
	holding_cost REAL NOT NULL,
	stockout_cost REAL NOT NULL,
	order_cost REAL NOT NULL,
	total_cost REAL NOT NULL
);

DROP TABLE IF EXISTS inventory_kpi_product;
CREATE TABLE inventory_kpi_product (
	store_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	stockout_rate REAL NOT NULL,
	overstock_rate REAL NOT NULL,
	total_sales INTEGER NOT NULL,
	total_forecast REAL NOT NULL,
	avg_inventory REAL NOT NULL
);

DROP TABLE IF EXISTS inventory_kpi_category;
CREATE TABLE inventory_kpi_category (
	category TEXT NOT NULL,
	stockout_rate REAL NOT NULL,
	overstock_rate REAL NOT NULL,
	total_sales INTEGER NOT NULL,
	total_forecast REAL NOT NULL,
	avg_inventory REAL NOT NULL
);

DROP TABLE IF EXISTS inventory_kpi_region;
CREATE TABLE inventory_kpi_region (
	region TEXT NOT NULL,
	stockout_rate REAL NOT NULL,
	overstock_rate REAL NOT NULL,
	total_sales INTEGER NOT NULL,
	total_forecast REAL NOT NULL,
	avg_inventory REAL NOT NULL
);
`

const indexes = `
CREATE INDEX IF NOT EXISTS idx_inventory_clean_store_date ON inventory_clean (store_id, date);
CREATE INDEX IF NOT EXISTS idx_inventory_clean_product_date ON inventory_clean (product_id, date);
CREATE INDEX IF NOT EXISTS idx_forecast_sku_date ON forecast (store_id, product_id, date);
CREATE INDEX IF NOT EXISTS idx_inventory_simulation_sku_date ON inventory_simulation (store_id, product_id, date);
`

// Export writes the artifact bundle to a SQLite database at dbPath,
// replacing any previous contents. The file is self-contained and readable
// by any SQLite client.
func Export(ctx context.Context, dbPath string, a Artifacts) error {
	log := logger.Component("export")

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create export dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dbPath, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create export schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin export tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertMerged(ctx, tx, a.Merged); err != nil {
		return err
	}
	ledgerRows, err := insertLedgers(ctx, tx, a.Ledgers)
	if err != nil {
		return err
	}
	if err := insertKPIs(ctx, tx, a.KPIs); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create export indexes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit export: %w", err)
	}

	log.Info().
		Str("path", dbPath).
		Int("merged_rows", len(a.Merged)).
		Int("ledger_rows", ledgerRows).
		Int("skus", len(a.Ledgers)).
		Msg("SQLite export written")
	return nil
}

func insertMerged(ctx context.Context, tx *sql.Tx, rows []domain.MergedRow) error {
	cleanStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inventory_clean (
			date, store_id, product_id, category, region,
			units_sold, inventory_level, price, is_promo, is_holiday,
			stockout_flag, ending_inventory
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare inventory_clean insert: %w", err)
	}
	defer cleanStmt.Close()

	forecastStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO forecast (date, store_id, product_id, forecast, backfilled)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare forecast insert: %w", err)
	}
	defer forecastStmt.Close()

	for _, row := range rows {
		date := row.Date.Format(dateLayout)
		if _, err := cleanStmt.ExecContext(ctx,
			date, row.StoreID, row.ProductID, row.Category, row.Region,
			row.UnitsSold, row.InventoryLevel, row.Price, boolInt(row.IsPromo), boolInt(row.IsHoliday),
			boolInt(row.StockoutFlag), row.EndingInventory,
		); err != nil {
			return fmt.Errorf("failed to insert inventory_clean row: %w", err)
		}
		if _, err := forecastStmt.ExecContext(ctx,
			date, row.StoreID, row.ProductID, row.Forecast, boolInt(row.Backfilled),
		); err != nil {
			return fmt.Errorf("failed to insert forecast row: %w", err)
		}
	}
	return nil
}

func insertLedgers(ctx context.Context, tx *sql.Tx, ledgers map[domain.SkuKey][]domain.SimulationRecord) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inventory_simulation (
			store_id, product_id, date, demand, forecast,
			start_inventory, units_sold, stockout_qty, order_qty, ending_inventory,
			holding_cost, stockout_cost, order_cost, total_cost
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare inventory_simulation insert: %w", err)
	}
	defer stmt.Close()

	keys := make([]domain.SkuKey, 0, len(ledgers))
	for key := range ledgers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].StoreID != keys[j].StoreID {
			return keys[i].StoreID < keys[j].StoreID
		}
		return keys[i].ProductID < keys[j].ProductID
	})

	total := 0
	for _, key := range keys {
		for _, rec := range ledgers[key] {
			if _, err := stmt.ExecContext(ctx,
				key.StoreID, key.ProductID, rec.Date.Format(dateLayout), rec.Demand, rec.Forecast,
				rec.StartInventory, rec.UnitsSold, rec.StockoutQty, rec.OrderQty, rec.EndingInventory,
				rec.HoldingCost, rec.StockoutCost, rec.OrderCost, rec.TotalCost,
			); err != nil {
				return 0, fmt.Errorf("failed to insert ledger row for %s: %w", key, err)
			}
			total++
		}
	}
	return total, nil
}

func insertKPIs(ctx context.Context, tx *sql.Tx, kpis map[domain.KPIScope][]domain.KPIRow) error {
	type tableSpec struct {
		insert string
		args   func(domain.KPIRow) []any
	}
	specs := map[domain.KPIScope]tableSpec{
		domain.ScopeProduct: {
			insert: `INSERT INTO inventory_kpi_product (store_id, product_id, stockout_rate, overstock_rate, total_sales, total_forecast, avg_inventory) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			args: func(r domain.KPIRow) []any {
				return []any{r.StoreID, r.ProductID, r.StockoutRate, r.OverstockRate, r.TotalSales, r.TotalForecast, r.AvgInventory}
			},
		},
		domain.ScopeCategory: {
			insert: `INSERT INTO inventory_kpi_category (category, stockout_rate, overstock_rate, total_sales, total_forecast, avg_inventory) VALUES (?, ?, ?, ?, ?, ?)`,
			args: func(r domain.KPIRow) []any {
				return []any{r.Category, r.StockoutRate, r.OverstockRate, r.TotalSales, r.TotalForecast, r.AvgInventory}
			},
		},
		domain.ScopeRegion: {
			insert: `INSERT INTO inventory_kpi_region (region, stockout_rate, overstock_rate, total_sales, total_forecast, avg_inventory) VALUES (?, ?, ?, ?, ?, ?)`,
			args: func(r domain.KPIRow) []any {
				return []any{r.Region, r.StockoutRate, r.OverstockRate, r.TotalSales, r.TotalForecast, r.AvgInventory}
			},
		},
	}

	for _, scope := range []domain.KPIScope{domain.ScopeProduct, domain.ScopeCategory, domain.ScopeRegion} {
		rows, ok := kpis[scope]
		if !ok {
			continue
		}
		spec := specs[scope]
		stmt, err := tx.PrepareContext(ctx, spec.insert)
		if err != nil {
			return fmt.Errorf("failed to prepare kpi %s insert: %w", scope, err)
		}
		for _, row := range rows {
			if _, err := stmt.ExecContext(ctx, spec.args(row)...); err != nil {
				stmt.Close()
				return fmt.Errorf("failed to insert kpi %s row: %w", scope, err)
			}
		}
		stmt.Close()
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
