package pipeline

import (
	"runtime"
	"time"

	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/forecast"
)

// Config holds tuning knobs for a pipeline invocation.
type Config struct {
	Workers          int    // Number of concurrent simulation workers
	RetryAttempts    int    // Max attempts per SKU job before it stays failed
	FlushRows        int    // Ledger rows to buffer before flushing to CSV
	FlushBytes       int64  // Estimated buffer size to trigger a flush
	ArtifactsDir     string // Directory for aggregated CSV artifacts
	MinHistoryPoints int    // History gate threshold per SKU
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:          runtime.NumCPU(),
		RetryAttempts:    3,
		FlushRows:        50_000,
		FlushBytes:       10 * 1024 * 1024, // 10MB
		ArtifactsDir:     "./data_out",
		MinHistoryPoints: forecast.DefaultMinPoints,
	}
}

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// JobStatus represents the state of a single SKU simulation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusSkipped    JobStatus = "skipped"
)

// PipelineRun tracks a single batch invocation over the whole dataset.
type PipelineRun struct {
	ID            int64
	RunUUID       string
	PolicyName    string
	Status        RunStatus
	TotalSKUs     int
	ProcessedSKUs int
	SkippedSKUs   int
	FailedSKUs    int
	TotalRows     int
	StartedAt     time.Time
	CompletedAt   *time.Time
	ErrorMessage  string
}

// SKUJob tracks the simulation of a single SKU within a run.
type SKUJob struct {
	ID            int64
	PipelineRunID int64
	StoreID       string
	ProductID     string
	Status        JobStatus
	ErrorMessage  string
	ProcessedAt   *time.Time
	RetryCount    int
}

// Key returns the SKU the job simulates.
func (j *SKUJob) Key() domain.SkuKey {
	return domain.SkuKey{StoreID: j.StoreID, ProductID: j.ProductID}
}

// SKUSummary pairs a SKU with its simulation summary.
type SKUSummary struct {
	Key     domain.SkuKey
	Summary domain.Summary
}

// RunOptions selects what a pipeline run produces beyond the summaries.
type RunOptions struct {
	PolicyName     string
	WriteLedgerCSV bool // stream every ledger into inventory_simulation.csv
	CollectLedgers bool // keep every ledger in memory for the caller
}

// RunResult is what the orchestrator hands back to the caller.
type RunResult struct {
	Run       *PipelineRun
	Summaries []SKUSummary
	// Ledgers is populated only when RunOptions.CollectLedgers is set.
	Ledgers map[domain.SkuKey][]domain.SimulationRecord
}
