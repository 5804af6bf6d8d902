package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocksim/internal/cache"
	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/dataset"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/forecast"
)

// DatasetService owns the in-memory dataset and everything derived from it:
// the forecast index and the merged observation/forecast rows. Reload swaps
// the whole snapshot atomically so readers never observe a half-loaded state.
type DatasetService struct {
	datasetPath  string
	forecastPath string

	summaryCache cache.SummaryCache
	kpiCache     cache.KPICache

	mu     sync.RWMutex
	ds     *dataset.Dataset
	idx    forecast.Index
	merged []domain.MergedRow
	byKey  map[domain.SkuKey][]domain.MergedRow
}

// DatasetStats describes the loaded snapshot.
type DatasetStats struct {
	Rows      int       `json:"rows"`
	SKUs      int       `json:"skus"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// NewDatasetService loads the dataset (and the optional forecast table) and
// keeps the paths for later reloads. Nil caches degrade to no-ops.
func NewDatasetService(cfg config.DatasetConfig, summaryCache cache.SummaryCache, kpiCache cache.KPICache) (*DatasetService, error) {
	if summaryCache == nil {
		summaryCache = cache.NewNoopSummaryCache()
	}
	if kpiCache == nil {
		kpiCache = cache.NewNoopKPICache()
	}

	s := &DatasetService{
		datasetPath:  cfg.DatasetPath,
		forecastPath: cfg.ForecastPath,
		summaryCache: summaryCache,
		kpiCache:     kpiCache,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DatasetService) load() error {
	ds, err := dataset.Load(s.datasetPath)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	idx := forecast.Index{}
	if s.forecastPath != "" {
		points, err := forecast.LoadCSV(s.forecastPath)
		if err != nil {
			return fmt.Errorf("failed to load forecast table: %w", err)
		}
		idx = forecast.NewIndex(points)
	}

	merged := forecast.Merge(ds, idx)
	byKey := groupByKey(merged)

	s.mu.Lock()
	s.ds = ds
	s.idx = idx
	s.merged = merged
	s.byKey = byKey
	s.mu.Unlock()

	start, end := ds.DateRange()
	log.Info().
		Int("rows", ds.Len()).
		Int("skus", ds.NumSKUs()).
		Time("start_date", start).
		Time("end_date", end).
		Msg("dataset loaded")
	return nil
}

// groupByKey subslices the merged rows per SKU. Merge emits rows grouped by
// key in sorted order, so each group is one contiguous window.
func groupByKey(merged []domain.MergedRow) map[domain.SkuKey][]domain.MergedRow {
	byKey := make(map[domain.SkuKey][]domain.MergedRow)
	start := 0
	for i := 1; i <= len(merged); i++ {
		if i == len(merged) || merged[i].Key() != merged[start].Key() {
			byKey[merged[start].Key()] = merged[start:i:i]
			start = i
		}
	}
	return byKey
}

// Reload re-reads the source files, swaps the snapshot, and invalidates both
// caches. Cache invalidation failures are logged and do not fail the reload.
func (s *DatasetService) Reload(ctx context.Context) (DatasetStats, error) {
	if err := s.load(); err != nil {
		return DatasetStats{}, err
	}

	if err := s.summaryCache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("dataset reload: summary cache invalidation failed")
	}
	if err := s.kpiCache.InvalidateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("dataset reload: kpi cache invalidation failed")
	}

	return s.Stats(), nil
}

// Dataset returns the current snapshot.
func (s *DatasetService) Dataset() *dataset.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds
}

// Index returns the current forecast index.
func (s *DatasetService) Index() forecast.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx
}

// MergedRows returns every observation joined with its forecast, sorted by
// store, product, date. Callers must not mutate the returned slice.
func (s *DatasetService) MergedRows() []domain.MergedRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.merged
}

// MergedRowsFor returns the merged rows of a single SKU, date ascending.
func (s *DatasetService) MergedRowsFor(key domain.SkuKey) ([]domain.MergedRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.byKey[key]
	return rows, ok
}

// Stats reports the size and date range of the loaded snapshot.
func (s *DatasetService) Stats() DatasetStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start, end := s.ds.DateRange()
	return DatasetStats{
		Rows:      s.ds.Len(),
		SKUs:      s.ds.NumSKUs(),
		StartDate: start,
		EndDate:   end,
	}
}
