package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// MetricsCache implements domain.MetricsCache using Redis hashes. Each
// symbol's rows live in a hash at key "metrics:{symbol}" with one field
// per data source holding the JSON-encoded metrics, so a symbol switch
// clears every source with a single DEL.
type MetricsCache struct {
	rdb *redis.Client
}

// NewMetricsCache creates a MetricsCache backed by the given Client.
func NewMetricsCache(c *Client) *MetricsCache {
	return &MetricsCache{rdb: c.Underlying()}
}

func metricsKey(symbol domain.Symbol) string {
	return "metrics:" + string(symbol)
}

// Set stores the latest metrics row for a (source, symbol) pair.
func (mc *MetricsCache) Set(ctx context.Context, source domain.DataSource, symbol domain.Symbol, m domain.CurrentPriceMetrics) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: encode metrics %s/%s: %w", source, symbol, err)
	}
	if err := mc.rdb.HSet(ctx, metricsKey(symbol), string(source), payload).Err(); err != nil {
		return fmt.Errorf("redis: set metrics %s/%s: %w", source, symbol, err)
	}
	return nil
}

// Get retrieves the latest metrics row for a (source, symbol) pair. It
// returns domain.ErrNotFound when no row exists.
func (mc *MetricsCache) Get(ctx context.Context, source domain.DataSource, symbol domain.Symbol) (domain.CurrentPriceMetrics, error) {
	raw, err := mc.rdb.HGet(ctx, metricsKey(symbol), string(source)).Result()
	if err == redis.Nil {
		return domain.CurrentPriceMetrics{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CurrentPriceMetrics{}, fmt.Errorf("redis: get metrics %s/%s: %w", source, symbol, err)
	}

	var m domain.CurrentPriceMetrics
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return domain.CurrentPriceMetrics{}, fmt.Errorf("redis: decode metrics %s/%s: %w", source, symbol, err)
	}
	return m, nil
}

// Snapshot returns every cached row for a symbol keyed by source,
// skipping fields that fail to decode.
func (mc *MetricsCache) Snapshot(ctx context.Context, symbol domain.Symbol) (map[domain.DataSource]domain.CurrentPriceMetrics, error) {
	vals, err := mc.rdb.HGetAll(ctx, metricsKey(symbol)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: snapshot metrics %s: %w", symbol, err)
	}

	out := make(map[domain.DataSource]domain.CurrentPriceMetrics, len(vals))
	for src, raw := range vals {
		var m domain.CurrentPriceMetrics
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		out[domain.DataSource(src)] = m
	}
	return out, nil
}

// Reset drops every cached row for the symbol across all sources.
func (mc *MetricsCache) Reset(ctx context.Context, symbol domain.Symbol) error {
	if err := mc.rdb.Del(ctx, metricsKey(symbol)).Err(); err != nil {
		return fmt.Errorf("redis: reset metrics %s: %w", symbol, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MetricsCache = (*MetricsCache)(nil)
