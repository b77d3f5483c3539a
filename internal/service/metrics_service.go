// Package service coordinates the metrics store with its side channels:
// the Redis metrics mirror, the pub/sub bus feeding the WebSocket hub, and
// the tick recorder that persists live points for later replay.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
	"github.com/alanyoungcy/pricedash/internal/metrics"
)

// PricesChannel is the SignalBus channel metric updates are published on.
const PricesChannel = "prices"

// Recorder persists normalized live points. Implementations must be safe
// for concurrent use.
type Recorder interface {
	Record(ctx context.Context, p domain.SourcedPoint)
}

// MetricsService is the single entry point every producer writes through.
// Each accepted point updates the in-memory store and is then mirrored to
// the cache, published on the bus, and (for live sources) recorded for
// replay. Side-channel failures are logged, never propagated: the in-memory
// table is the source of truth.
type MetricsService struct {
	store    *metrics.Store
	cache    domain.MetricsCache
	bus      domain.SignalBus
	recorder Recorder
	logger   *slog.Logger
}

// NewMetricsService creates a MetricsService. cache, bus, and recorder may
// each be nil when the corresponding subsystem is disabled.
func NewMetricsService(
	store *metrics.Store,
	cache domain.MetricsCache,
	bus domain.SignalBus,
	recorder Recorder,
	logger *slog.Logger,
) *MetricsService {
	return &MetricsService{
		store:    store,
		cache:    cache,
		bus:      bus,
		recorder: recorder,
		logger:   logger.With(slog.String("component", "metrics_service")),
	}
}

// Store exposes the underlying metrics table for read paths.
func (s *MetricsService) Store() *metrics.Store { return s.store }

// AddDataPoint routes one canonical point into the metrics table. Rejected
// points (stale symbol, unknown identifiers) are dropped silently at debug
// level; they are routine during instrument switches.
func (s *MetricsService) AddDataPoint(ctx context.Context, source domain.DataSource, symbol domain.Symbol, p domain.PricePoint) error {
	if err := s.store.AddDataPoint(source, symbol, p); err != nil {
		if errors.Is(err, domain.ErrStaleSymbol) {
			s.logger.DebugContext(ctx, "dropped stale point",
				slog.String("source", string(source)),
				slog.String("symbol", string(symbol)),
			)
			return nil
		}
		return err
	}

	m, ok := s.store.Metrics(source, symbol)
	if !ok {
		return nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, source, symbol, m); err != nil {
			s.logger.WarnContext(ctx, "metrics cache set failed",
				slog.String("source", string(source)),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":         "metrics_update",
			"source":        source,
			"symbol":        symbol,
			"price":         m.Price,
			"change":        m.Change,
			"changePercent": m.ChangePercent,
			"timestamp":     m.Timestamp.Format(time.RFC3339Nano),
		})
		if err := s.bus.Publish(ctx, PricesChannel, evt); err != nil {
			s.logger.WarnContext(ctx, "metrics publish failed",
				slog.String("error", err.Error()),
			)
		}
	}

	// Replayed points are already on disk; recording them again would
	// duplicate history.
	if s.recorder != nil && source != domain.SourceHistorical && !symbol.IsReplay() {
		s.recorder.Record(ctx, domain.SourcedPoint{
			Source:    source,
			Symbol:    symbol,
			Price:     p.Price,
			Bid:       p.Bid,
			Ask:       p.Ask,
			Timestamp: p.Timestamp.UnixMilli(),
		})
	}

	return nil
}

// Reset atomically swaps the metrics table to the new symbol and clears the
// cached rows of the previous selection.
func (s *MetricsService) Reset(ctx context.Context, symbol domain.Symbol) {
	prev := s.store.Selected()
	s.store.Reset(symbol)

	if s.cache != nil && prev != domain.SymbolNone {
		if err := s.cache.Reset(ctx, prev); err != nil {
			s.logger.WarnContext(ctx, "metrics cache reset failed",
				slog.String("symbol", string(prev)),
				slog.String("error", err.Error()),
			)
		}
	}
}
