package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocksim/internal/dataset"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/forecast"
	"github.com/andresuchdata/stocksim/internal/simulation"
)

// Orchestrator fans one simulation job per SKU out over a bounded worker
// pool and tracks the run in Postgres when a database handle is provided.
type Orchestrator struct {
	ds     *dataset.Dataset
	idx    forecast.Index
	params simulation.Params
	cfg    Config
	repo   *Repository

	aggregator *LedgerAggregator

	mu        sync.Mutex
	summaries []SKUSummary
	ledgers   map[domain.SkuKey][]domain.SimulationRecord
}

// NewOrchestrator creates an orchestrator over the loaded dataset. db may be
// nil; run tracking is then disabled and only artifacts are produced.
func NewOrchestrator(db *sql.DB, ds *dataset.Dataset, idx forecast.Index, params simulation.Params, cfg Config) *Orchestrator {
	var repo *Repository
	if db != nil {
		repo = NewRepository(db)
	}
	return &Orchestrator{
		ds:     ds,
		idx:    idx,
		params: params,
		cfg:    cfg,
		repo:   repo,
	}
}

// Run simulates every SKU in the dataset. SKUs failing the history gate are
// skipped with a warning and recorded on the run; any other job error fails
// the whole run.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if err := o.params.Validate(); err != nil {
		return nil, err
	}

	keys := o.ds.Keys()
	if len(keys) == 0 {
		return nil, fmt.Errorf("dataset has no SKUs to simulate")
	}

	run := &PipelineRun{
		RunUUID:    uuid.New().String(),
		PolicyName: opts.PolicyName,
		Status:     StatusPending,
		TotalSKUs:  len(keys),
		StartedAt:  time.Now(),
	}
	if o.repo != nil {
		if err := o.repo.CreatePipelineRun(ctx, run); err != nil {
			return nil, fmt.Errorf("failed to create pipeline run: %w", err)
		}
	}

	log.Info().
		Str("run_uuid", run.RunUUID).
		Str("policy", opts.PolicyName).
		Int("skus", len(keys)).
		Int("workers", o.cfg.Workers).
		Msg("pipeline run starting")

	jobs := make([]*SKUJob, len(keys))
	for i, key := range keys {
		job := &SKUJob{
			PipelineRunID: run.ID,
			StoreID:       key.StoreID,
			ProductID:     key.ProductID,
			Status:        JobStatusPending,
		}
		if o.repo != nil {
			if err := o.repo.CreateSKUJob(ctx, job); err != nil {
				return nil, fmt.Errorf("failed to create sku job: %w", err)
			}
		}
		jobs[i] = job
	}

	run.Status = StatusProcessing
	if err := o.updateRun(ctx, run); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.summaries = make([]SKUSummary, 0, len(keys))
	o.ledgers = nil
	if opts.CollectLedgers {
		o.ledgers = make(map[domain.SkuKey][]domain.SimulationRecord, len(keys))
	}
	o.aggregator = nil
	if opts.WriteLedgerCSV {
		o.aggregator = NewLedgerAggregator(o.cfg)
	}
	o.mu.Unlock()

	if err := o.processJobsParallel(ctx, run, jobs); err != nil {
		o.failRun(ctx, run, err)
		return nil, err
	}

	if o.aggregator != nil {
		if err := o.aggregator.Finalize(); err != nil {
			err = fmt.Errorf("ledger aggregation failed: %w", err)
			o.failRun(ctx, run, err)
			return nil, err
		}
	}

	run.Status = StatusCompleted
	now := time.Now()
	run.CompletedAt = &now
	if err := o.updateRun(ctx, run); err != nil {
		return nil, err
	}

	// The pool completes jobs in arbitrary order; sort for deterministic
	// artifacts and logs.
	sort.Slice(o.summaries, func(i, j int) bool {
		a, b := o.summaries[i].Key, o.summaries[j].Key
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		return a.ProductID < b.ProductID
	})

	log.Info().
		Str("run_uuid", run.RunUUID).
		Int("processed", run.ProcessedSKUs).
		Int("skipped", run.SkippedSKUs).
		Int("rows", run.TotalRows).
		Msg("pipeline run completed")

	return &RunResult{
		Run:       run,
		Summaries: o.summaries,
		Ledgers:   o.ledgers,
	}, nil
}

// LedgerPath returns the ledger artifact location for this configuration.
func (o *Orchestrator) LedgerPath() string {
	return NewLedgerAggregator(o.cfg).Path()
}

func (o *Orchestrator) updateRun(ctx context.Context, run *PipelineRun) error {
	if o.repo == nil {
		return nil
	}
	if err := o.repo.UpdatePipelineRun(ctx, run); err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}
	return nil
}

func (o *Orchestrator) failRun(ctx context.Context, run *PipelineRun, cause error) {
	run.Status = StatusFailed
	run.ErrorMessage = cause.Error()
	now := time.Now()
	run.CompletedAt = &now
	if err := o.updateRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_uuid", run.RunUUID).Msg("failed to record run failure")
	}
}
