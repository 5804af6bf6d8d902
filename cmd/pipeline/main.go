// cmd/pipeline is the batch CLI: it fetches dataset files, simulates every
// SKU, writes KPI reports, and exports artifacts. Run tracking in Postgres
// is optional; without --db-url the pipeline still produces all artifacts.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocksim/pkg/logger"
)

type ctxKey string

const dbKey ctxKey = "db"

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Postgres connection string for run tracking (optional)",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func newMigrationsDirFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "migrations-dir",
		Usage:   "Directory containing SQL migrations to apply before the run",
		Value:   "./scripts/migrations",
		EnvVars: []string{"MIGRATIONS_DIR"},
	}
}

// initDB opens the tracking database when --db-url is set and stores the
// handle on the CLI context. Missing db-url just disables tracking.
func initDB(c *cli.Context) error {
	dbURL := c.String("db-url")
	if dbURL == "" {
		logger.Log.Info().Msg("No db-url provided, run tracking disabled")
		return nil
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if dir := c.String("migrations-dir"); dir != "" {
		if _, statErr := os.Stat(dir); statErr == nil {
			if err := runMigrations(c.Context, db, dir); err != nil {
				db.Close()
				return err
			}
		}
	}

	c.Context = context.WithValue(c.Context, dbKey, db)
	return nil
}

func closeDB(c *cli.Context) error {
	if db, ok := c.Context.Value(dbKey).(*sql.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func dbFromContext(ctx context.Context) *sql.DB {
	db, _ := ctx.Value(dbKey).(*sql.DB)
	return db
}

// runMigrations applies every .sql file in dir in lexical order. Files are
// named NNNN_description.sql so ordering is the apply order.
func runMigrations(ctx context.Context, db *sql.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, name := range files {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(raw)); err != nil {
			return fmt.Errorf("migration %s failed: %w", name, err)
		}
		logger.Log.Info().Str("migration", name).Msg("Applied migration")
	}
	return nil
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logger.Log.Debug().Err(err).Msg("No .env file loaded")
	}

	app := &cli.App{
		Name:  "pipeline",
		Usage: "Batch reorder simulation over the retail inventory dataset",
		Commands: []*cli.Command{
			{
				Name:   "simulate",
				Usage:  "Simulate every SKU and stream the ledger into inventory_simulation.csv",
				Flags:  simulateFlags(),
				Before: initDB,
				After:  closeDB,
				Action: runSimulate,
			},
			{
				Name:   "kpi",
				Usage:  "Write per-product, per-category and per-region KPI reports",
				Flags:  kpiFlags(),
				Action: runKPI,
			},
			{
				Name:   "export",
				Usage:  "Write the merged dataset, ledgers and KPIs to a SQLite artifact",
				Flags:  exportFlags(),
				Action: runExport,
			},
			{
				Name:   "fetch",
				Usage:  "Fetch dataset files from Google Drive or object storage",
				Flags:  fetchFlags(),
				Action: runFetch,
			},
			{
				Name:   "all",
				Usage:  "Run simulate, kpi and export in one pass",
				Flags:  allFlags(),
				Before: initDB,
				After:  closeDB,
				Action: runAll,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("Pipeline failed")
	}
}
