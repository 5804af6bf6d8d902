package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/stocksim/internal/config"
	"github.com/andresuchdata/stocksim/internal/domain"
	"github.com/andresuchdata/stocksim/internal/simulation"
)

const summaryKeyPrefix = "simulation:summary"

// SummaryCache stores simulation summaries keyed by SKU and parameter set.
// Get returns (nil, false, nil) on a miss so callers can fall through to the
// engine without treating a miss as a failure.
type SummaryCache interface {
	GetSummary(ctx context.Context, key domain.SkuKey, params simulation.Params) (*domain.Summary, bool, error)
	SetSummary(ctx context.Context, key domain.SkuKey, params simulation.Params, summary *domain.Summary) error
	InvalidateAll(ctx context.Context) error
}

// NewSummaryCache returns a Redis-backed cache when caching is enabled and a
// no-op cache otherwise.
func NewSummaryCache(cfg config.CacheConfig) (SummaryCache, error) {
	if !cfg.Enabled {
		return &noopSummaryCache{}, nil
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisSummaryCache{
		client: client,
		ttl:    ttlSeconds(cfg.SummaryTTLSeconds),
	}, nil
}

type redisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *redisSummaryCache) GetSummary(ctx context.Context, key domain.SkuKey, params simulation.Params) (*domain.Summary, bool, error) {
	payload, err := c.client.Get(ctx, buildSummaryKey(key, params)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("summary cache get failed: %w", err)
	}

	var summary domain.Summary
	if err := json.Unmarshal([]byte(payload), &summary); err != nil {
		return nil, false, fmt.Errorf("summary cache decode failed: %w", err)
	}
	return &summary, true, nil
}

func (c *redisSummaryCache) SetSummary(ctx context.Context, key domain.SkuKey, params simulation.Params, summary *domain.Summary) error {
	if summary == nil {
		return nil
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("summary cache encode failed: %w", err)
	}

	if err := c.client.Set(ctx, buildSummaryKey(key, params), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("summary cache set failed: %w", err)
	}
	return nil
}

func (c *redisSummaryCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, summaryKeyPrefix+":", 200)
}

// NewNoopSummaryCache returns a cache that never hits. Callers that do not
// configure Redis still get a valid SummaryCache.
func NewNoopSummaryCache() SummaryCache {
	return &noopSummaryCache{}
}

type noopSummaryCache struct{}

func (noopSummaryCache) GetSummary(context.Context, domain.SkuKey, simulation.Params) (*domain.Summary, bool, error) {
	return nil, false, nil
}

func (noopSummaryCache) SetSummary(context.Context, domain.SkuKey, simulation.Params, *domain.Summary) error {
	return nil
}

func (noopSummaryCache) InvalidateAll(context.Context) error { return nil }

// buildSummaryKey hashes the SKU and every simulation parameter so that two
// requests share a cache entry only when the engine would produce identical
// ledgers for them.
func buildSummaryKey(key domain.SkuKey, params simulation.Params) string {
	initial := "default"
	if params.InitialInventory != nil {
		initial = strconv.Itoa(*params.InitialInventory)
	}

	parts := []string{
		"store=" + key.StoreID,
		"product=" + key.ProductID,
		"lead_time_days=" + strconv.Itoa(params.LeadTimeDays),
		"safety_stock_factor=" + formatRate(params.SafetyStockFactor),
		"holding_cost_rate=" + formatRate(params.HoldingCostRate),
		"stockout_cost_rate=" + formatRate(params.StockoutCostRate),
		"fixed_order_cost=" + formatRate(params.OrderCostFixed),
		"initial_inventory=" + initial,
	}
	sort.Strings(parts)

	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return summaryKeyPrefix + ":" + hex.EncodeToString(sum[:])
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
