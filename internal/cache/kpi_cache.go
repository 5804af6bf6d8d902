package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/domain"
)

const kpiKeyPrefix = "kpi:report"

// KPICache stores aggregated KPI reports per scope. Reports are recomputed
// from the in-memory dataset on a miss, so a short TTL keeps them fresh
// without hammering the aggregation on every request.
type KPICache interface {
	GetReport(ctx context.Context, scope domain.KPIScope) ([]domain.KPIRow, bool, error)
	SetReport(ctx context.Context, scope domain.KPIScope, rows []domain.KPIRow) error
	InvalidateAll(ctx context.Context) error
}

// NewKPICache returns a Redis-backed cache when caching is enabled and a
// no-op cache otherwise.
func NewKPICache(cfg config.CacheConfig) (KPICache, error) {
	if !cfg.Enabled {
		return &noopKPICache{}, nil
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisKPICache{
		client: client,
		ttl:    ttlSeconds(cfg.KPITTLSeconds),
	}, nil
}

type redisKPICache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *redisKPICache) GetReport(ctx context.Context, scope domain.KPIScope) ([]domain.KPIRow, bool, error) {
	payload, err := c.client.Get(ctx, buildKPIKey(scope)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kpi cache get failed: %w", err)
	}

	var rows []domain.KPIRow
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return nil, false, fmt.Errorf("kpi cache decode failed: %w", err)
	}
	return rows, true, nil
}

func (c *redisKPICache) SetReport(ctx context.Context, scope domain.KPIScope, rows []domain.KPIRow) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("kpi cache encode failed: %w", err)
	}

	if err := c.client.Set(ctx, buildKPIKey(scope), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("kpi cache set failed: %w", err)
	}
	return nil
}

func (c *redisKPICache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, kpiKeyPrefix+":", 200)
}

// NewNoopKPICache returns a cache that never hits.
func NewNoopKPICache() KPICache {
	return &noopKPICache{}
}

type noopKPICache struct{}

func (noopKPICache) GetReport(context.Context, domain.KPIScope) ([]domain.KPIRow, bool, error) {
	return nil, false, nil
}

func (noopKPICache) SetReport(context.Context, domain.KPIScope, []domain.KPIRow) error {
	return nil
}

func (noopKPICache) InvalidateAll(context.Context) error { return nil }

func buildKPIKey(scope domain.KPIScope) string {
	return kpiKeyPrefix + ":" + string(scope)
}
