package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/export"
	"github.com/andresuchdata/stocksim/internal/forecast"
	"github.com/andresuchdata/stocksim/internal/pipeline"
	"github.com/andresuchdata/stocksim/internal/storage"
	"github.com/andresuchdata/stocksim/pkg/logger"
)

func uploadFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "upload",
		Usage:   "Upload artifacts to the configured MinIO bucket afterwards",
		EnvVars: []string{"UPLOAD_ARTIFACTS"},
	}
}

func exportFlags() []cli.Flag {
	flags := datasetFlags()
	flags = append(flags, policyFlags()...)
	flags = append(flags, workerFlags()...)
	flags = append(flags, uploadFlag())
	return flags
}

// runExport re-simulates in memory and writes the SQLite artifact alongside
// the KPI CSVs. The engine is deterministic, so the exported ledgers match
// what simulate wrote for the same inputs; runs here are not tracked.
func runExport(c *cli.Context) error {
	ds, idx, err := loadInputs(c)
	if err != nil {
		return err
	}
	params, policyName, err := resolveParams(c)
	if err != nil {
		return err
	}

	orch := pipeline.NewOrchestrator(nil, ds, idx, params, pipelineConfig(c))
	result, err := orch.Run(c.Context, pipeline.RunOptions{
		PolicyName:     policyName,
		CollectLedgers: true,
	})
	if err != nil {
		return err
	}

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

func writeSQLite(c *cli.Context, merged []domain.MergedRow, ledgers map[domain.SkuKey][]domain.SimulationRecord, kpis map[domain.KPIScope][]domain.KPIRow) error {
	dbPath := filepath.Join(c.String("artifacts-dir"), export.DBFileName)
	return export.Export(c.Context, dbPath, export.Artifacts{
		Merged:  merged,
		Ledgers: ledgers,
		KPIs:    kpis,
	})
}

// uploadArtifacts pushes every CSV and SQLite artifact in dir to object
// storage under the artifacts/ prefix.
func uploadArtifacts(ctx context.Context, dir string) error {
	log := logger.Component("pipeline")

	client, err := storage.NewMinIOClient(minioConfigFromEnv())
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read artifacts dir: %w", err)
	}

	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".csv" && ext != ".db" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read artifact %s: %w", entry.Name(), err)
		}
		key := path.Join("artifacts", entry.Name())
		if err := client.UploadObject(ctx, key, data); err != nil {
			return err
		}
		log.Info().Str("key", key).Int("bytes", len(data)).Msg("Artifact uploaded")
		uploaded++
	}

	if uploaded == 0 {
		log.Warn().Str("dir", dir).Msg("No artifacts found to upload")
	}
	return nil
}
