package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocksim/internal/forecast"
	"github.com/andresuchdata/stocksim/internal/simulation"
)

// processJobsParallel runs the SKU jobs on a bounded worker pool. The first
// job error is returned after all workers drain; skipped SKUs are not
// errors.
func (o *Orchestrator) processJobsParallel(ctx context.Context, run *PipelineRun, jobs []*SKUJob) error {
	workerCount := o.cfg.Workers
	if workerCount < 1 {
		workerCount = 1
	}

	jobChan := make(chan *SKUJob, len(jobs))
	errChan := make(chan error, workerCount)
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for job := range jobChan {
				if err := o.processJob(ctx, run, job); err != nil {
					log.Error().
						Err(err).
						Int("worker", workerID).
						Str("sku", job.Key().String()).
						Msg("sku job failed")
					select {
					case errChan <- err:
					default:
					}
				}
			}
		}(i)
	}

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			close(jobChan)
			wg.Wait()
			return ctx.Err()
		case jobChan <- job:
		}
	}
	close(jobChan)

	wg.Wait()
	close(errChan)

	// Reading a drained closed channel yields nil.
	if err := <-errChan; err != nil {
		return err
	}
	return nil
}

// processJob simulates one SKU end to end.
func (o *Orchestrator) processJob(ctx context.Context, run *PipelineRun, job *SKUJob) error {
	start := time.Now()

	job.Status = JobStatusProcessing
	if err := o.updateJob(ctx, job); err != nil {
		return err
	}

	series, ok := o.ds.Series(job.Key())
	if !ok {
		return o.markJobFailed(ctx, run, job, fmt.Errorf("sku %s missing from dataset", job.Key()))
	}

	if err := forecast.CheckHistory(series, o.cfg.MinHistoryPoints); err != nil {
		if errors.Is(err, forecast.ErrInsufficientHistory) {
			return o.markJobSkipped(ctx, run, job, err)
		}
		return o.markJobFailed(ctx, run, job, err)
	}

	filled := forecast.FillSeries(series, o.idx)
	records, err := simulation.Run(filled, o.params)
	if err != nil {
		return o.markJobFailed(ctx, run, job, fmt.Errorf("simulation failed: %w", err))
	}
	summary := simulation.Summarize(records)

	if o.aggregator != nil {
		if err := o.aggregator.Add(job.Key(), records); err != nil {
			return o.markJobFailed(ctx, run, job, fmt.Errorf("ledger aggregation failed: %w", err))
		}
	}

	o.mu.Lock()
	o.summaries = append(o.summaries, SKUSummary{Key: job.Key(), Summary: summary})
	if o.ledgers != nil {
		o.ledgers[job.Key()] = records
	}
	run.ProcessedSKUs++
	run.TotalRows += len(records)
	o.mu.Unlock()

	job.Status = JobStatusCompleted
	now := time.Now()
	job.ProcessedAt = &now
	if err := o.updateJob(ctx, job); err != nil {
		return err
	}

	if o.repo != nil {
		if err := o.repo.IncrementProcessedSKUs(ctx, run.ID); err != nil {
			log.Warn().Err(err).Msg("failed to increment processed skus")
		}
		if err := o.repo.AddRowCount(ctx, run.ID, len(records)); err != nil {
			log.Warn().Err(err).Msg("failed to add row count")
		}
	}

	log.Debug().
		Str("sku", job.Key().String()).
		Int("rows", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("sku job completed")

	return nil
}

// markJobSkipped records a history-gate skip. Skips keep the run going.
func (o *Orchestrator) markJobSkipped(ctx context.Context, run *PipelineRun, job *SKUJob, cause error) error {
	log.Warn().
		Str("sku", job.Key().String()).
		Msg(cause.Error())

	job.Status = JobStatusSkipped
	job.ErrorMessage = cause.Error()
	now := time.Now()
	job.ProcessedAt = &now
	if err := o.updateJob(ctx, job); err != nil {
		return err
	}

	o.mu.Lock()
	run.SkippedSKUs++
	o.mu.Unlock()

	if o.repo != nil {
		if err := o.repo.IncrementSkippedSKUs(ctx, run.ID); err != nil {
			log.Warn().Err(err).Msg("failed to increment skipped skus")
		}
	}
	return nil
}

// markJobFailed records the failure and bumps the retry counter. The error
// is returned so the pool can fail the run.
func (o *Orchestrator) markJobFailed(ctx context.Context, run *PipelineRun, job *SKUJob, cause error) error {
	job.Status = JobStatusFailed
	job.ErrorMessage = cause.Error()
	job.RetryCount++
	if err := o.updateJob(ctx, job); err != nil {
		log.Warn().Err(err).Str("sku", job.Key().String()).Msg("failed to update job status")
	}

	o.mu.Lock()
	run.FailedSKUs++
	o.mu.Unlock()

	if o.repo != nil {
		if err := o.repo.IncrementFailedSKUs(ctx, run.ID); err != nil {
			log.Warn().Err(err).Msg("failed to increment failed skus")
		}
		if job.RetryCount < o.cfg.RetryAttempts {
			log.Warn().
				Str("sku", job.Key().String()).
				Int("attempt", job.RetryCount).
				Int("max", o.cfg.RetryAttempts).
				Msg("sku job eligible for retry")
		}
	}

	return cause
}

func (o *Orchestrator) updateJob(ctx context.Context, job *SKUJob) error {
	if o.repo == nil {
		return nil
	}
	if err := o.repo.UpdateSKUJob(ctx, job); err != nil {
		return fmt.Errorf("failed to update sku job: %w", err)
	}
	return nil
}

// RetryFailed re-runs failed SKU jobs that still have retry budget.
// Summaries and run counters are refreshed; the ledger artifact is rebuilt
// only by a full run.
func (o *Orchestrator) RetryFailed(ctx context.Context) error {
	if o.repo == nil {
		return fmt.Errorf("retry requires run tracking")
	}

	jobs, err := o.repo.GetFailedSKUJobs(ctx, o.cfg.RetryAttempts)
	if err != nil {
		return fmt.Errorf("failed to load failed jobs: %w", err)
	}
	if len(jobs) == 0 {
		log.Info().Msg("no failed sku jobs to retry")
		return nil
	}

	log.Info().Int("jobs", len(jobs)).Msg("retrying failed sku jobs")

	jobsByRun := make(map[int64][]*SKUJob)
	for _, job := range jobs {
		jobsByRun[job.PipelineRunID] = append(jobsByRun[job.PipelineRunID], job)
	}

	for runID, runJobs := range jobsByRun {
		run, err := o.repo.GetPipelineRun(ctx, runID)
		if err != nil {
			log.Warn().Err(err).Int64("run_id", runID).Msg("failed to load run for retry")
			continue
		}

		o.mu.Lock()
		o.summaries = nil
		o.ledgers = nil
		o.aggregator = nil
		o.mu.Unlock()

		if err := o.processJobsParallel(ctx, run, runJobs); err != nil {
			log.Warn().Err(err).Str("run_uuid", run.RunUUID).Msg("retry pass failed")
			continue
		}

		if err := o.updateRun(ctx, run); err != nil {
			log.Warn().Err(err).Str("run_uuid", run.RunUUID).Msg("failed to update retried run")
		}
	}

	return nil
}
