package main

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocksim/internal/dataset"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/forecast"
	"github.com/andresuchdata/stocksim/internal/kpi"
	"github.com/andresuchdata/stocksim/internal/pipeline"
	"github.com/andresuchdata/stocksim/internal/policy"
	"github.com/andresuchdata/stocksim/internal/simulation"
	"github.com/andresuchdata/stocksim/pkg/logger"
)

func datasetFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "dataset",
			Usage:   "Path to the retail inventory CSV",
			Value:   "./data/retail_store_inventory.csv",
			EnvVars: []string{"DATASET_PATH"},
		},
		&cli.StringFlag{
			Name:    "forecast",
			Usage:   "Optional forecast CSV; missing values are backfilled from demand",
			EnvVars: []string{"FORECAST_PATH"},
		},
		&cli.IntFlag{
			Name:    "min-history",
			Usage:   "Minimum observations a SKU needs before it is simulated",
			Value:   forecast.DefaultMinPoints,
			EnvVars: []string{"MIN_HISTORY_POINTS"},
		},
	}
}

func policyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "policy",
			Usage:   "Named policy preset to simulate with",
			EnvVars: []string{"SIM_POLICY"},
		},
		&cli.StringFlag{
			Name:    "policy-dir",
			Usage:   "Directory containing YAML policy presets",
			Value:   "./configs/policies",
			EnvVars: []string{"POLICY_DIR"},
		},
		&cli.IntFlag{Name: "lead-time-days", Usage: "Override lead time in days"},
		&cli.Float64Flag{Name: "safety-stock-factor", Usage: "Override safety stock factor"},
		&cli.Float64Flag{Name: "holding-cost-rate", Usage: "Override holding cost per unit per day"},
		&cli.Float64Flag{Name: "stockout-cost-rate", Usage: "Override stockout cost per missed unit"},
		&cli.Float64Flag{Name: "fixed-order-cost", Usage: "Override fixed cost per order placed"},
		&cli.IntFlag{Name: "initial-inventory", Usage: "Override starting inventory for every SKU"},
	}
}

func workerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "Number of concurrent simulation workers",
			Value:   runtime.NumCPU(),
			EnvVars: []string{"PIPELINE_WORKERS"},
		},
		&cli.StringFlag{
			Name:    "artifacts-dir",
			Usage:   "Directory receiving pipeline artifacts",
			Value:   "./data_out",
			EnvVars: []string{"ARTIFACTS_DIR"},
		},
	}
}

func simulateFlags() []cli.Flag {
	flags := []cli.Flag{newDBURLFlag(), newMigrationsDirFlag()}
	flags = append(flags, datasetFlags()...)
	flags = append(flags, policyFlags()...)
	flags = append(flags, workerFlags()...)
	return flags
}

func kpiFlags() []cli.Flag {
	flags := datasetFlags()
	flags = append(flags, &cli.StringFlag{
		Name:    "artifacts-dir",
		Usage:   "Directory receiving KPI reports",
		Value:   "./data_out",
		EnvVars: []string{"ARTIFACTS_DIR"},
	})
	return flags
}

func allFlags() []cli.Flag {
	flags := simulateFlags()
	flags = append(flags, uploadFlag())
	return flags
}

// loadInputs reads the dataset and, when provided, the forecast table.
func loadInputs(c *cli.Context) (*dataset.Dataset, forecast.Index, error) {
	ds, err := dataset.Load(c.String("dataset"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	idx := forecast.Index{}
	if path := c.String("forecast"); path != "" {
		points, err := forecast.LoadCSV(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load forecast: %w", err)
		}
		idx = forecast.NewIndex(points)
	}
	return ds, idx, nil
}

// resolveParams merges defaults, the named preset, and explicit flag
// overrides, in that order.
func resolveParams(c *cli.Context) (simulation.Params, string, error) {
	params := simulation.DefaultParams()

	policyName := c.String("policy")
	if policyName != "" {
		presets, err := policy.LoadDir(c.String("policy-dir"))
		if err != nil {
			return params, "", fmt.Errorf("failed to load policies: %w", err)
		}
		preset, ok := presets[policyName]
		if !ok {
			return params, "", fmt.Errorf("unknown policy %q in %s (have: %v)",
				policyName, c.String("policy-dir"), policy.Names(presets))
		}
		params = preset.Params
	}

	var ov policy.Overrides
	if c.IsSet("lead-time-days") {
		v := c.Int("lead-time-days")
		ov.LeadTimeDays = &v
	}
	if c.IsSet("safety-stock-factor") {
		v := c.Float64("safety-stock-factor")
		ov.SafetyStockFactor = &v
	}
	if c.IsSet("holding-cost-rate") {
		v := c.Float64("holding-cost-rate")
		ov.HoldingCostRate = &v
	}
	if c.IsSet("stockout-cost-rate") {
		v := c.Float64("stockout-cost-rate")
		ov.StockoutCostRate = &v
	}
	if c.IsSet("fixed-order-cost") {
		v := c.Float64("fixed-order-cost")
		ov.OrderCostFixed = &v
	}
	if c.IsSet("initial-inventory") {
		v := c.Int("initial-inventory")
		ov.InitialInventory = &v
	}
	params = ov.Apply(params)

	if err := params.Validate(); err != nil {
		return params, "", err
	}
	return params, policyName, nil
}

func pipelineConfig(c *cli.Context) pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Workers = c.Int("workers")
	cfg.ArtifactsDir = c.String("artifacts-dir")
	cfg.MinHistoryPoints = c.Int("min-history")
	return cfg
}

func runSimulate(c *cli.Context) error {
	log := logger.Component("pipeline")

	ds, idx, err := loadInputs(c)
	if err != nil {
		return err
	}
	params, policyName, err := resolveParams(c)
	if err != nil {
		return err
	}

	orch := pipeline.NewOrchestrator(dbFromContext(c.Context), ds, idx, params, pipelineConfig(c))
	result, err := orch.Run(c.Context, pipeline.RunOptions{
		PolicyName:     policyName,
		WriteLedgerCSV: true,
	})
	if err != nil {
		return err
	}

	logRunSummary(log, result, orch.LedgerPath())
	return nil
}

func runKPI(c *cli.Context) error {
	log := logger.Component("pipeline")

	ds, idx, err := loadInputs(c)
	if err != nil {
		return err
	}

	merged := forecast.Merge(ds, idx)
	acc := forecast.Evaluate(merged)
	log.Info().
		Float64("rmse", acc.RMSE).
		Float64("mape", acc.MAPE).
		Int("rows_evaluated", acc.RowsEvaluated).
		Msg("Forecast accuracy")

	_, err = writeKPIReports(c.String("artifacts-dir"), merged, ds.MeanUnitsSold())
	return err
}

func runAll(c *cli.Context) error {
	log := logger.Component("pipeline")

	ds, idx, err := loadInputs(c)
	if err != nil {
		return err
	}
	params, policyName, err := resolveParams(c)
	if err != nil {
		return err
	}

	orch := pipeline.NewOrchestrator(dbFromContext(c.Context), ds, idx, params, pipelineConfig(c))
	result, err := orch.Run(c.Context, pipeline.RunOptions{
		PolicyName:     policyName,
		WriteLedgerCSV: true,
		CollectLedgers: true,
	})
	if err != nil {
		return err
	}
	logRunSummary(log, result, orch.LedgerPath())

	merged := forecast.Merge(ds, idx)
	kpis, err := writeKPIReports(c.String("artifacts-dir"), merged, ds.MeanUnitsSold())
	if err != nil {
		return err
	}

	if err := writeSQLite(c, merged, result.Ledgers, kpis); err != nil {
		return err
	}

	if c.Bool("upload") {
		return uploadArtifacts(c.Context, c.String("artifacts-dir"))
	}
	return nil
}

func writeKPIReports(artifactsDir string, merged []domain.MergedRow, meanUnitsSold float64) (map[domain.KPIScope][]domain.KPIRow, error) {
	log := logger.Component("pipeline")

	kpis := make(map[domain.KPIScope][]domain.KPIRow, 3)
	for _, scope := range []domain.KPIScope{domain.ScopeProduct, domain.ScopeCategory, domain.ScopeRegion} {
		rows := kpi.ByScope(scope, merged, meanUnitsSold)
		kpis[scope] = rows

		path := filepath.Join(artifactsDir, kpi.FileName(scope))
		if err := kpi.WriteCSV(path, scope, rows); err != nil {
			return nil, err
		}
		log.Info().Str("path", path).Int("rows", len(rows)).Msg("KPI report written")
	}
	return kpis, nil
}

func logRunSummary(log zerolog.Logger, result *pipeline.RunResult, ledgerPath string) {
	run := result.Run
	log.Info().
		Str("run_uuid", run.RunUUID).
		Int("skus", run.TotalSKUs).
		Int("processed", run.ProcessedSKUs).
		Int("skipped", run.SkippedSKUs).
		Int("failed", run.FailedSKUs).
		Int("ledger_rows", run.TotalRows).
		Str("ledger", ledgerPath).
		Msg("Simulation pipeline completed")
}
