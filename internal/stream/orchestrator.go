package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alanyoungcy/pricedash/internal/adapter"
	"github.com/alanyoungcy/pricedash/internal/domain"
)

// Runner opens and drives one (source, symbol) connection, blocking until
// the context is cancelled. The Orchestrator is tested against this
// interface with fakes.
type Runner interface {
	Run(ctx context.Context, source domain.DataSource, symbol domain.Symbol) error
}

// WSRunner is the production Runner: it builds the source's adapter from
// the registry and drives it through a Connection.
type WSRunner struct {
	registry  map[domain.DataSource]adapter.Factory
	endpoints adapter.Endpoints
	sink      PointSink
	rates     RateSource
	logger    *slog.Logger
}

// NewWSRunner creates the production Runner.
func NewWSRunner(endpoints adapter.Endpoints, sink PointSink, rates RateSource, logger *slog.Logger) *WSRunner {
	return &WSRunner{
		registry:  adapter.Registry(),
		endpoints: endpoints,
		sink:      sink,
		rates:     rates,
		logger:    logger,
	}
}

// Run drives the source's adapter until ctx is cancelled.
func (r *WSRunner) Run(ctx context.Context, source domain.DataSource, symbol domain.Symbol) error {
	factory, ok := r.registry[source]
	if !ok {
		return domain.ErrUnknownSource
	}
	a := factory(symbol, r.endpoints)
	return NewConnection(a, symbol, r.sink, r.rates, r.logger).Run(ctx)
}

// Orchestrator owns the connection set. Every SetSymbol recomputes which
// sources apply to the new selection, tears down every prior connection,
// and opens fresh ones; exactly one connection exists per enabled source at
// any time, and none survive an instrument switch.
type Orchestrator struct {
	runner Runner
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	subs   []domain.Subscription
}

// NewOrchestrator creates an Orchestrator with no open connections.
func NewOrchestrator(runner Runner, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		runner: runner,
		logger: logger.With(slog.String("component", "orchestrator")),
	}
}

// SetSymbol switches the active connection set to the sources applicable
// to the new symbol. It blocks until every prior connection has fully
// stopped before opening new ones, so connections can never leak across
// switches.
func (o *Orchestrator) SetSymbol(ctx context.Context, symbol domain.Symbol) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.teardownLocked()

	sources := domain.SourcesFor(symbol)
	o.subs = make([]domain.Subscription, 0, len(sources))
	if len(sources) == 0 {
		o.logger.Info("no sources for selection", slog.String("symbol", string(symbol)))
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for _, source := range sources {
		o.subs = append(o.subs, domain.Subscription{Source: source, Symbol: symbol, Enabled: true})

		// The historical source has no socket; the replay engine is its
		// producer.
		if source == domain.SourceHistorical {
			continue
		}

		o.wg.Add(1)
		go func(source domain.DataSource) {
			defer o.wg.Done()
			err := o.runner.Run(runCtx, source, symbol)
			if runCtx.Err() == nil && err != nil {
				o.logger.Error("connection runner stopped",
					slog.String("source", string(source)),
					slog.String("error", err.Error()),
				)
			}
		}(source)
	}

	o.logger.Info("connections opened",
		slog.String("symbol", string(symbol)),
		slog.Int("sources", len(sources)),
	)
}

// Subscriptions returns the current subscription set.
func (o *Orchestrator) Subscriptions() []domain.Subscription {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.Subscription, len(o.subs))
	copy(out, o.subs)
	return out
}

// Close tears down every open connection.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.teardownLocked()
	o.subs = nil
}

// teardownLocked cancels the active connection group and waits for every
// runner goroutine to exit. Caller must hold o.mu.
func (o *Orchestrator) teardownLocked() {
	if o.cancel == nil {
		return
	}
	o.cancel()
	o.cancel = nil
	o.wg.Wait()
}
