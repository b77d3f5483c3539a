package domain

import (
	"context"
	"time"
)

// MetricsCache mirrors the latest metrics row per (source, symbol) into a
// shared cache so other processes (and the WebSocket hub) can read them
// without touching the in-memory store.
type MetricsCache interface {
	Set(ctx context.Context, source DataSource, symbol Symbol, m CurrentPriceMetrics) error
	Get(ctx context.Context, source DataSource, symbol Symbol) (CurrentPriceMetrics, error)
	// Reset drops every cached row for the given symbol across all sources.
	Reset(ctx context.Context, symbol Symbol) error
}

// SignalBus provides pub/sub fan-out of metric-update events to interested
// consumers, primarily the WebSocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// RateLimiter answers whether a keyed request fits under a sliding-window
// limit. The HTTP layer uses it to cap history queries per client.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager hands out distributed locks so periodic jobs (the tick
// archiver) run on a single instance at a time.
type LockManager interface {
	// Acquire obtains the lock or returns ErrLockHeld. The returned func
	// releases it and is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
