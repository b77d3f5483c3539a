// Package server exposes the HTTP + WebSocket API: instrument selection,
// metrics snapshots, replay control, the historical query contract, and
// the live update stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
	"github.com/alanyoungcy/pricedash/internal/server/handler"
	"github.com/alanyoungcy/pricedash/internal/server/middleware"
	"github.com/alanyoungcy/pricedash/internal/server/ws"
)

const (
	// historyRateLimit caps history queries per client IP per window.
	historyRateLimit  = 30
	historyRateWindow = time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Symbols *handler.SymbolHandler
	Metrics *handler.MetricsHandler
	Replay  *handler.ReplayHandler
	History *handler.HistoryHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered, wrapped in the
// logging, CORS, and auth middleware. limiter may be nil to disable
// history rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Instrument catalogue and selection.
	mux.HandleFunc("GET /api/symbols", handlers.Symbols.ListSymbols)
	mux.HandleFunc("GET /api/symbol", handlers.Symbols.GetSelected)
	mux.HandleFunc("PUT /api/symbol", handlers.Symbols.SetSymbol)

	// Metrics snapshots.
	mux.HandleFunc("GET /api/metrics/{symbol}", handlers.Metrics.GetMetrics)

	// Replay control.
	mux.HandleFunc("GET /api/replay", handlers.Replay.GetReplay)
	mux.HandleFunc("PUT /api/replay", handlers.Replay.SetReplay)

	// Historical query contract. Rate limited: one history page can be a
	// thousand rows.
	var history http.Handler = http.HandlerFunc(handlers.History.GetHistory)
	if limiter != nil {
		history = middleware.RateLimit(limiter, historyRateLimit, historyRateWindow)(history)
	}
	mux.Handle("GET /history/{symbol}", history)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
