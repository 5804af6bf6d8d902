package repository

import (
	"context"

	"github.com/andresuchdata/stocksim/internal/domain"
)

// RunRepository persists API-triggered simulation runs with their ledgers.
type RunRepository interface {
	// SaveRun stores the run header and its records in one transaction and
	// fills in the generated row ID.
	SaveRun(ctx context.Context, run *domain.SimulationRun, records []domain.SimulationRecord) error

	// GetRun loads a run and its ledger by run UUID. A missing run returns
	// (nil, nil, nil).
	GetRun(ctx context.Context, runUUID string) (*domain.SimulationRun, []domain.SimulationRecord, error)

	// ListRuns returns a filtered, paginated page of runs plus the total
	// match count.
	ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.SimulationRun, int, error)
}
