package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/pricedash/internal/domain"
	"github.com/alanyoungcy/pricedash/internal/replay"
	"github.com/alanyoungcy/pricedash/internal/server/handler"
	"github.com/alanyoungcy/pricedash/internal/service"
	"github.com/alanyoungcy/pricedash/internal/stream"
)

var (
	_ handler.SymbolController = (*AppState)(nil)
	_ handler.ReplayController = (*AppState)(nil)
)

// AppState is the shared selection state behind the HTTP handlers. It owns
// the single selected instrument and fans a switch out to the metrics
// table, the connection orchestrator, and the replay engine.
type AppState struct {
	// runCtx outlives any single HTTP request; replay sessions started from
	// a request handler must not die with that request.
	runCtx context.Context

	orchestrator *stream.Orchestrator
	metricsSvc   *service.MetricsService
	engine       *replay.Engine
	logger       *slog.Logger

	mu       sync.Mutex
	selected domain.Symbol
}

// newAppState creates an AppState. orchestrator and engine may be nil when
// the corresponding subsystem is not running in this mode.
func newAppState(
	runCtx context.Context,
	orchestrator *stream.Orchestrator,
	metricsSvc *service.MetricsService,
	engine *replay.Engine,
	logger *slog.Logger,
) *AppState {
	return &AppState{
		runCtx:       runCtx,
		orchestrator: orchestrator,
		metricsSvc:   metricsSvc,
		engine:       engine,
		logger:       logger.With(slog.String("component", "app_state")),
		selected:     domain.SymbolNone,
	}
}

// Selected returns the currently selected instrument.
func (s *AppState) Selected() domain.Symbol {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SetSymbol switches the selection. The metrics table is reset first so no
// point from the previous instrument can land after the switch, then the
// connection set is rebuilt and any replay session from the previous
// selection is cancelled.
func (s *AppState) SetSymbol(ctx context.Context, symbol domain.Symbol) error {
	if !domain.KnownSymbol(symbol) {
		return fmt.Errorf("app: set symbol %q: %w", symbol, domain.ErrUnknownSymbol)
	}

	s.mu.Lock()
	if s.selected == symbol {
		s.mu.Unlock()
		return nil
	}
	s.selected = symbol
	s.mu.Unlock()

	s.metricsSvc.Reset(ctx, symbol)

	if s.engine != nil {
		if symbol.IsReplay() {
			// Idle until a cursor arrives.
			s.engine.Stop()
		} else {
			s.engine.SetCursor(s.runCtx, replay.Cursor{Symbol: symbol})
		}
	}

	if s.orchestrator != nil {
		s.orchestrator.SetSymbol(s.runCtx, symbol)
	}

	s.logger.InfoContext(ctx, "instrument selected", slog.String("symbol", string(symbol)))
	return nil
}

// SetReplayCursor starts a replay session at startAt for the selected
// replay instrument.
func (s *AppState) SetReplayCursor(ctx context.Context, startAt int64, speed float64) error {
	if s.engine == nil {
		return domain.ErrReplayClosed
	}

	s.mu.Lock()
	selected := s.selected
	s.mu.Unlock()

	if !selected.IsReplay() {
		return fmt.Errorf("app: %q is not a replay instrument: %w", selected, domain.ErrReplayClosed)
	}

	s.engine.SetCursor(s.runCtx, replay.Cursor{
		Symbol:  selected,
		StartAt: startAt,
		Speed:   speed,
	})
	s.logger.InfoContext(ctx, "replay cursor set",
		slog.String("symbol", string(selected)),
		slog.Int64("start_at", startAt),
		slog.Float64("speed", speed),
	)
	return nil
}

// SetReplaySpeed adjusts the active session's playback speed.
func (s *AppState) SetReplaySpeed(speed float64) {
	if s.engine == nil {
		return
	}
	s.engine.SetSpeed(speed)
}

// ReplayState reports the replay engine's phase.
func (s *AppState) ReplayState() string {
	if s.engine == nil {
		return replay.StateClosed.String()
	}
	return s.engine.State().String()
}
