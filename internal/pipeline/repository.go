package pipeline

import (
	"context"
	"database/sql"
	"errors"
)

// Repository handles database operations for pipeline run tracking. It works
// against database/sql so the CLI can use the pgx stdlib driver.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new pipeline repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// CreatePipelineRun inserts a new run record and fills its ID.
func (r *Repository) CreatePipelineRun(ctx context.Context, run *PipelineRun) error {
	query := `
		INSERT INTO pipeline_runs (
			run_uuid, policy_name, status, total_skus,
			processed_skus, skipped_skus, failed_skus, total_rows, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	return r.db.QueryRowContext(
		ctx, query,
		run.RunUUID, run.PolicyName, run.Status, run.TotalSKUs,
		run.ProcessedSKUs, run.SkippedSKUs, run.FailedSKUs, run.TotalRows, run.StartedAt,
	).Scan(&run.ID)
}

// UpdatePipelineRun persists the run's status and counters.
func (r *Repository) UpdatePipelineRun(ctx context.Context, run *PipelineRun) error {
	query := `
		UPDATE pipeline_runs
		SET status = $1, processed_skus = $2, skipped_skus = $3, failed_skus = $4,
		    total_rows = $5, completed_at = $6, error_message = $7
		WHERE id = $8
	`

	_, err := r.db.ExecContext(
		ctx, query,
		run.Status, run.ProcessedSKUs, run.SkippedSKUs, run.FailedSKUs,
		run.TotalRows, run.CompletedAt, run.ErrorMessage, run.ID,
	)
	return err
}

const pipelineRunColumns = `
	id, run_uuid, policy_name, status, total_skus,
	processed_skus, skipped_skus, failed_skus, total_rows,
	started_at, completed_at, error_message
`

func scanPipelineRun(row interface{ Scan(...any) error }) (*PipelineRun, error) {
	run := &PipelineRun{}
	err := row.Scan(
		&run.ID, &run.RunUUID, &run.PolicyName, &run.Status, &run.TotalSKUs,
		&run.ProcessedSKUs, &run.SkippedSKUs, &run.FailedSKUs, &run.TotalRows,
		&run.StartedAt, &run.CompletedAt, &run.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetPipelineRun retrieves a pipeline run by ID.
func (r *Repository) GetPipelineRun(ctx context.Context, id int64) (*PipelineRun, error) {
	query := `SELECT` + pipelineRunColumns + `FROM pipeline_runs WHERE id = $1`
	return scanPipelineRun(r.db.QueryRowContext(ctx, query, id))
}

// GetPipelineRunByUUID retrieves a run by its correlation UUID. A missing
// run returns (nil, nil).
func (r *Repository) GetPipelineRunByUUID(ctx context.Context, runUUID string) (*PipelineRun, error) {
	query := `SELECT` + pipelineRunColumns + `FROM pipeline_runs WHERE run_uuid = $1`
	run, err := scanPipelineRun(r.db.QueryRowContext(ctx, query, runUUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRecentPipelineRuns retrieves the most recent runs, newest first.
func (r *Repository) GetRecentPipelineRuns(ctx context.Context, limit int) ([]*PipelineRun, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT` + pipelineRunColumns + `
		FROM pipeline_runs
		ORDER BY started_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*PipelineRun
	for rows.Next() {
		run, err := scanPipelineRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateSKUJob inserts a new SKU job record and fills its ID.
func (r *Repository) CreateSKUJob(ctx context.Context, job *SKUJob) error {
	query := `
		INSERT INTO pipeline_sku_jobs (
			pipeline_run_id, store_id, product_id, status, error_message
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	return r.db.QueryRowContext(
		ctx, query,
		job.PipelineRunID, job.StoreID, job.ProductID, job.Status, job.ErrorMessage,
	).Scan(&job.ID)
}

// UpdateSKUJob persists a job's status, error and retry count.
func (r *Repository) UpdateSKUJob(ctx context.Context, job *SKUJob) error {
	query := `
		UPDATE pipeline_sku_jobs
		SET status = $1, error_message = $2, processed_at = $3, retry_count = $4
		WHERE id = $5
	`

	_, err := r.db.ExecContext(
		ctx, query,
		job.Status, job.ErrorMessage, job.ProcessedAt, job.RetryCount, job.ID,
	)
	return err
}

// GetSKUJobsByRunID retrieves all SKU jobs for a pipeline run.
func (r *Repository) GetSKUJobsByRunID(ctx context.Context, runID int64) ([]*SKUJob, error) {
	query := `
		SELECT id, pipeline_run_id, store_id, product_id, status,
		       error_message, processed_at, retry_count
		FROM pipeline_sku_jobs
		WHERE pipeline_run_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSKUJobs(rows)
}

// GetFailedSKUJobs retrieves failed jobs that still have retry budget.
func (r *Repository) GetFailedSKUJobs(ctx context.Context, maxRetries int) ([]*SKUJob, error) {
	query := `
		SELECT id, pipeline_run_id, store_id, product_id, status,
		       error_message, processed_at, retry_count
		FROM pipeline_sku_jobs
		WHERE status = $1 AND retry_count < $2
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, JobStatusFailed, maxRetries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSKUJobs(rows)
}

func scanSKUJobs(rows *sql.Rows) ([]*SKUJob, error) {
	var jobs []*SKUJob
	for rows.Next() {
		job := &SKUJob{}
		err := rows.Scan(
			&job.ID, &job.PipelineRunID, &job.StoreID, &job.ProductID,
			&job.Status, &job.ErrorMessage, &job.ProcessedAt, &job.RetryCount,
		)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// IncrementProcessedSKUs atomically increments the processed counter.
func (r *Repository) IncrementProcessedSKUs(ctx context.Context, runID int64) error {
	query := `UPDATE pipeline_runs SET processed_skus = processed_skus + 1 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, runID)
	return err
}

// IncrementSkippedSKUs atomically increments the skipped counter.
func (r *Repository) IncrementSkippedSKUs(ctx context.Context, runID int64) error {
	query := `UPDATE pipeline_runs SET skipped_skus = skipped_skus + 1 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, runID)
	return err
}

// IncrementFailedSKUs atomically increments the failed counter.
func (r *Repository) IncrementFailedSKUs(ctx context.Context, runID int64) error {
	query := `UPDATE pipeline_runs SET failed_skus = failed_skus + 1 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, runID)
	return err
}

// AddRowCount atomically adds to the total ledger row count.
func (r *Repository) AddRowCount(ctx context.Context, runID int64, count int) error {
	query := `UPDATE pipeline_runs SET total_rows = total_rows + $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, count, runID)
	return err
}
