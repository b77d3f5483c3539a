package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/pricedash/internal/adapter"
	"github.com/alanyoungcy/pricedash/internal/domain"
	"github.com/alanyoungcy/pricedash/internal/metrics"
	"github.com/alanyoungcy/pricedash/internal/notify"
	"github.com/alanyoungcy/pricedash/internal/rate"
	"github.com/alanyoungcy/pricedash/internal/recorder"
	"github.com/alanyoungcy/pricedash/internal/replay"
	"github.com/alanyoungcy/pricedash/internal/server"
	"github.com/alanyoungcy/pricedash/internal/server/handler"
	"github.com/alanyoungcy/pricedash/internal/server/ws"
	"github.com/alanyoungcy/pricedash/internal/service"
	"github.com/alanyoungcy/pricedash/internal/stream"
)

// notifyTimeout bounds detached notification sends fired from callbacks.
const notifyTimeout = 10 * time.Second

// FullMode runs every subsystem: live feeds, the tick recorder, the replay
// engine, the retention sweep, and the HTTP + WebSocket API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	rec := a.startRecorder(ctx, g, deps)
	store, svc := a.buildMetrics(deps, rec)
	orch := a.startFeeds(ctx, g, svc)
	engine := a.buildReplayEngine(deps, svc)

	state := newAppState(ctx, orch, svc, engine, a.logger)
	a.selectDefault(ctx, state)

	a.startArchiveLoop(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, state, store)
	}

	g.Go(func() error {
		<-ctx.Done()
		engine.Close()
		orch.Close()
		return nil
	})

	return g.Wait()
}

// CollectorMode runs live feeds and the tick recorder with no HTTP surface.
// Metrics still flow to the cache and the pub/sub bus so server-mode
// instances on the same Redis can stream them.
func (a *App) CollectorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting collector mode")

	g, ctx := errgroup.WithContext(ctx)

	rec := a.startRecorder(ctx, g, deps)
	_, svc := a.buildMetrics(deps, rec)
	orch := a.startFeeds(ctx, g, svc)

	state := newAppState(ctx, orch, svc, nil, a.logger)
	a.selectDefault(ctx, state)

	a.startArchiveLoop(ctx, g, deps)

	g.Go(func() error {
		<-ctx.Done()
		orch.Close()
		return nil
	})

	return g.Wait()
}

// ServerMode runs the HTTP + WebSocket API and the replay engine over an
// existing tick store. No live connections are opened and nothing is
// recorded.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	if !a.cfg.Server.Enabled {
		return fmt.Errorf("server mode requires server.enabled")
	}

	g, ctx := errgroup.WithContext(ctx)

	store, svc := a.buildMetrics(deps, nil)
	engine := a.buildReplayEngine(deps, svc)

	state := newAppState(ctx, nil, svc, engine, a.logger)
	a.selectDefault(ctx, state)

	a.startHTTPServer(ctx, g, deps, state, store)

	g.Go(func() error {
		<-ctx.Done()
		engine.Close()
		return nil
	})

	return g.Wait()
}

// buildMetrics creates the in-memory metrics table and the service that
// routes every accepted point to the cache, the bus, and the recorder.
func (a *App) buildMetrics(deps *Dependencies, rec *recorder.Recorder) (*metrics.Store, *service.MetricsService) {
	store := metrics.NewStore()
	var sink service.Recorder
	if rec != nil {
		sink = rec
	}
	svc := service.NewMetricsService(store, deps.MetricsCache, deps.SignalBus, sink, a.logger)
	return store, svc
}

// startRecorder starts the buffered tick recorder, or returns nil when
// recording is disabled.
func (a *App) startRecorder(ctx context.Context, g *errgroup.Group, deps *Dependencies) *recorder.Recorder {
	if !a.cfg.Recorder.Enabled {
		a.logger.InfoContext(ctx, "tick recording disabled")
		return nil
	}
	rec := recorder.New(deps.TickStore, a.logger,
		recorder.WithFlushSize(a.cfg.Recorder.FlushSize),
		recorder.WithFlushInterval(a.cfg.Recorder.FlushInterval.Duration),
	)
	g.Go(func() error {
		return rec.Run(ctx)
	})
	return rec
}

// startFeeds starts the USDT rate converter and builds the live connection
// orchestrator. Connections open on the first SetSymbol.
func (a *App) startFeeds(ctx context.Context, g *errgroup.Group, svc *service.MetricsService) *stream.Orchestrator {
	conv := rate.New(a.logger,
		rate.WithBaseURL(a.cfg.Rate.HermesURL),
		rate.WithRefresh(a.cfg.Rate.Refresh.Duration),
	)
	g.Go(func() error {
		err := conv.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	runner := stream.NewWSRunner(a.endpoints(), svc, conv, a.logger)
	return stream.NewOrchestrator(runner, a.logger)
}

// buildReplayEngine creates the paced replay engine backed by the history
// query endpoint. Aborted sessions raise a replay_failed notification.
func (a *App) buildReplayEngine(deps *Dependencies, sink replay.PointSink) *replay.Engine {
	historyURL := a.cfg.Replay.HistoryURL
	if historyURL == "" {
		// Default to this process's own query endpoint.
		historyURL = fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)
	}
	client := replay.NewClient(historyURL, a.logger, replay.WithAPIKey(a.cfg.Server.APIKey))

	notifier := deps.Notifier
	return replay.NewEngine(client, sink, a.logger, replay.WithOnError(func(err error) {
		nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		_ = notifier.Notify(nctx, notify.EventReplayFailed, "Replay session aborted", err.Error())
	}))
}

// selectDefault applies the configured startup selection, if any.
func (a *App) selectDefault(ctx context.Context, state *AppState) {
	if a.cfg.DefaultSymbol == "" {
		return
	}
	if err := state.SetSymbol(ctx, domain.Symbol(a.cfg.DefaultSymbol)); err != nil {
		a.logger.WarnContext(ctx, "default symbol rejected",
			slog.String("symbol", a.cfg.DefaultSymbol),
			slog.String("error", err.Error()),
		)
	}
}

// startArchiveLoop runs the retention sweep on its interval. Failures are
// logged and notified, never fatal; a held lock means another instance is
// already sweeping.
func (a *App) startArchiveLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled || deps.Archiver == nil {
		return
	}
	interval := a.cfg.Archive.Interval.Duration
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}

			before := time.Now().UTC().Add(-retention)
			n, err := deps.Archiver.ArchiveTicks(ctx, before)
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.DebugContext(ctx, "archive sweep skipped, lock held elsewhere")
				continue
			}
			if err != nil {
				a.logger.ErrorContext(ctx, "archive sweep failed", slog.String("error", err.Error()))
				nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
				_ = deps.Notifier.Notify(nctx, notify.EventArchiveFailed, "Tick archive failed", err.Error())
				cancel()
				continue
			}
			if n > 0 {
				a.logger.InfoContext(ctx, "archive sweep complete",
					slog.Int64("ticks", n),
					slog.Time("before", before),
				)
			}
		}
	})
}

// startHTTPServer builds the REST + WebSocket surface and adds its serve
// and shutdown goroutines to the errgroup.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	state *AppState,
	store *metrics.Store,
) {
	hub := ws.NewHub(deps.SignalBus, store.Selected, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Symbols: handler.NewSymbolHandler(state, a.logger),
		Metrics: handler.NewMetricsHandler(store, a.logger),
		Replay:  handler.NewReplayHandler(state, deps.TickStore, a.logger),
		History: handler.NewHistoryHandler(deps.TickStore, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening", slog.Int("port", a.cfg.Server.Port))
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}

// endpoints maps the feed configuration onto the adapter endpoint set.
func (a *App) endpoints() adapter.Endpoints {
	f := a.cfg.Feeds
	return adapter.Endpoints{
		BinanceWS:  f.BinanceWS,
		BybitWS:    f.BybitWS,
		CoinbaseWS: f.CoinbaseWS,
		OKXWS:      f.OKXWS,
		PythWS:     f.PythWS,
		LazerWS:    f.LazerWS,
		LazerToken: f.LazerToken,
		FinnhubWS:  f.FinnhubWS,
		FinnhubKey: f.FinnhubKey,
		TiingoWS:   f.TiingoWS,
		TiingoKey:  f.TiingoKey,
	}
}
