package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocksim/internal/cache"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/forecast"
	"github.com/andresuchdata/stocksim/internal/policy"
	"github.com/andresuchdata/stocksim/internal/repository"
	"github.com/andresuchdata/stocksim/internal/simulation"
)

// SimulationService runs reorder simulations against the loaded dataset and,
// when asked, persists runs through the repository.
type SimulationService struct {
	data     *DatasetService
	presets  map[string]policy.Preset
	defaults simulation.Params
	cache    cache.SummaryCache
	repo     repository.RunRepository
}

// NewSimulationService wires the simulation entry point. repo may be nil when
// the server runs without a database; persistence requests then fail with
// ErrPersistenceUnavailable. A nil cache degrades to a no-op.
func NewSimulationService(data *DatasetService, presets map[string]policy.Preset, defaults simulation.Params, cacheImpl cache.SummaryCache, repo repository.RunRepository) *SimulationService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopSummaryCache()
	}
	if presets == nil {
		presets = map[string]policy.Preset{}
	}
	return &SimulationService{
		data:     data,
		presets:  presets,
		defaults: defaults,
		cache:    cacheImpl,
		repo:     repo,
	}
}

// SimulateRequest names one simulation: the SKU, an optional preset, the
// request-level parameter overrides, and the output options.
type SimulateRequest struct {
	Key           domain.SkuKey
	Policy        string
	Overrides     policy.Overrides
	Persist       bool
	IncludeLedger bool
}

// SimulateResult is the API-facing outcome. The embedded Summary flattens
// into the JSON body; RunUUID is set only for persisted runs and Ledger only
// when the request asked for it.
type SimulateResult struct {
	StoreID   string            `json:"store_id"`
	ProductID string            `json:"product_id"`
	Params    simulation.Params `json:"params"`
	domain.Summary
	RunUUID string                    `json:"run_uuid,omitempty"`
	Ledger  []domain.SimulationRecord `json:"ledger,omitempty"`
}

// ResolveParams merges the configured defaults, the named preset, and the
// request overrides, then validates the result. Precedence: overrides beat
// the preset, the preset beats the defaults.
func (s *SimulationService) ResolveParams(policyName string, overrides policy.Overrides) (simulation.Params, error) {
	base := s.defaults
	if policyName != "" {
		preset, ok := s.presets[policyName]
		if !ok {
			return simulation.Params{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, policyName)
		}
		base = preset.Params
	}

	params := overrides.Apply(base)
	if err := params.Validate(); err != nil {
		return simulation.Params{}, err
	}
	return params, nil
}

// Policies lists the loaded preset names, sorted.
func (s *SimulationService) Policies() []string {
	return policy.Names(s.presets)
}

// Simulate resolves parameters, runs the engine over the SKU's series, and
// returns the summary. Summary-only requests go through the cache; persisted
// runs are written with a fresh run UUID.
func (s *SimulationService) Simulate(ctx context.Context, req SimulateRequest) (*SimulateResult, error) {
	params, err := s.ResolveParams(req.Policy, req.Overrides)
	if err != nil {
		return nil, err
	}

	series, ok := s.data.Dataset().Series(req.Key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSKUNotFound, req.Key)
	}

	result := &SimulateResult{
		StoreID:   req.Key.StoreID,
		ProductID: req.Key.ProductID,
		Params:    params,
	}

	// Summary-only requests can be served straight from the cache; ledger
	// and persist requests always run the engine.
	cacheable := !req.IncludeLedger && !req.Persist
	if cacheable {
		if summary, ok, err := s.cache.GetSummary(ctx, req.Key, params); err == nil && ok {
			result.Summary = *summary
			return result, nil
		} else if err != nil {
			log.Warn().Err(err).Msg("simulate: cache get failed")
		}
	}

	filled := forecast.FillSeries(series, s.data.Index())
	records, err := simulation.Run(filled, params)
	if err != nil {
		return nil, err
	}

	summary := simulation.Summarize(records)
	result.Summary = summary

	if err := s.cache.SetSummary(ctx, req.Key, params, &summary); err != nil {
		log.Warn().Err(err).Msg("simulate: cache set failed")
	}

	if req.IncludeLedger {
		result.Ledger = records
	}

	if req.Persist {
		run, err := s.persistRun(ctx, req.Key, params, summary, records)
		if err != nil {
			return nil, err
		}
		result.RunUUID = run.RunUUID
	}

	return result, nil
}

func (s *SimulationService) persistRun(ctx context.Context, key domain.SkuKey, params simulation.Params, summary domain.Summary, records []domain.SimulationRecord) (*domain.SimulationRun, error) {
	if s.repo == nil {
		return nil, ErrPersistenceUnavailable
	}

	run := &domain.SimulationRun{
		RunUUID:           uuid.New().String(),
		StoreID:           key.StoreID,
		ProductID:         key.ProductID,
		LeadTimeDays:      params.LeadTimeDays,
		SafetyStockFactor: params.SafetyStockFactor,
		HoldingCostRate:   params.HoldingCostRate,
		StockoutCostRate:  params.StockoutCostRate,
		FixedOrderCost:    params.OrderCostFixed,
		InitialInventory:  params.InitialInventory,
		Days:              summary.Days,
		TotalCost:         summary.TotalCost,
		TotalStockout:     summary.TotalStockout,
		OrdersPlaced:      summary.OrdersPlaced,
		TotalSales:        summary.TotalSales,
		Source:            "api",
	}

	start := time.Now()
	if err := s.repo.SaveRun(ctx, run, records); err != nil {
		return nil, fmt.Errorf("failed to persist run: %w", err)
	}
	log.Debug().
		Str("run_uuid", run.RunUUID).
		Int("records", len(records)).
		Dur("elapsed", time.Since(start)).
		Msg("simulation run persisted")
	return run, nil
}

// GetRun loads a persisted run with its ledger. A nil run means not found.
func (s *SimulationService) GetRun(ctx context.Context, runUUID string) (*domain.SimulationRun, []domain.SimulationRecord, error) {
	if s.repo == nil {
		return nil, nil, ErrPersistenceUnavailable
	}
	return s.repo.GetRun(ctx, runUUID)
}

// ListRuns returns a filtered page of persisted runs plus the total count.
func (s *SimulationService) ListRuns(ctx context.Context, filter domain.RunFilter) ([]domain.SimulationRun, int, error) {
	if s.repo == nil {
		return nil, 0, ErrPersistenceUnavailable
	}
	return s.repo.ListRuns(ctx, filter)
}
