package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stocksim/internal/cache"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/kpi"
)

// KPIService serves aggregated KPI reports with a cache in front of the
// in-memory aggregation.
type KPIService struct {
	data  *DatasetService
	cache cache.KPICache
}

func NewKPIService(data *DatasetService, cacheImpl cache.KPICache) *KPIService {
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopKPICache()
	}
	return &KPIService{data: data, cache: cacheImpl}
}

// Report aggregates the merged rows at the requested scope. Cache errors are
// logged and the report is recomputed.
func (s *KPIService) Report(ctx context.Context, scope domain.KPIScope) ([]domain.KPIRow, error) {
	if rows, ok, err := s.cache.GetReport(ctx, scope); err == nil && ok {
		return rows, nil
	} else if err != nil {
		log.Warn().Err(err).Str("scope", string(scope)).Msg("kpi: cache get failed")
	}

	rows := kpi.ByScope(scope, s.data.MergedRows(), s.data.Dataset().MeanUnitsSold())

	if err := s.cache.SetReport(ctx, scope, rows); err != nil {
		log.Warn().Err(err).Str("scope", string(scope)).Msg("kpi: cache set failed")
	}
	return rows, nil
}
