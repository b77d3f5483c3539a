// Package recorder batches live ticks into the tick store so every point
// that crossed the metrics pipeline is available for later replay.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

const (
	// defaultFlushSize triggers a flush once this many points are buffered.
	defaultFlushSize = 200

	// defaultFlushInterval bounds how long a partial buffer may sit
	// unflushed during quiet markets.
	defaultFlushInterval = 2 * time.Second

	// flushTimeout caps one InsertBatch call.
	flushTimeout = 10 * time.Second
)

// Recorder buffers incoming points and writes them to the tick store in
// batches. Record never blocks on the database; a full buffer is handed to
// the flush path and the write happens on the Run goroutine.
type Recorder struct {
	store  domain.TickStore
	logger *slog.Logger

	flushSize     int
	flushInterval time.Duration

	mu  sync.Mutex
	buf []domain.SourcedPoint

	kick chan struct{}
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithFlushSize overrides the buffered-point threshold.
func WithFlushSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.flushSize = n
		}
	}
}

// WithFlushInterval overrides the periodic flush interval.
func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

// New creates a Recorder writing to store.
func New(store domain.TickStore, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:         store,
		logger:        logger.With(slog.String("component", "recorder")),
		flushSize:     defaultFlushSize,
		flushInterval: defaultFlushInterval,
		kick:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.buf = make([]domain.SourcedPoint, 0, r.flushSize)
	return r
}

// Record buffers one point. When the buffer reaches the flush threshold it
// nudges the Run loop; the call itself never touches the database.
func (r *Recorder) Record(_ context.Context, p domain.SourcedPoint) {
	r.mu.Lock()
	r.buf = append(r.buf, p)
	full := len(r.buf) >= r.flushSize
	r.mu.Unlock()

	if full {
		select {
		case r.kick <- struct{}{}:
		default:
		}
	}
}

// Run flushes the buffer on the interval, on kick, and once more on
// shutdown. It blocks until ctx is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final drain with a fresh context; the caller's is done.
			drainCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			r.flush(drainCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			r.flush(ctx)
		case <-r.kick:
			r.flush(ctx)
		}
	}
}

// flush swaps out the buffer and writes it in one batch. Failed batches
// are logged and dropped; replay history tolerates gaps, and retrying
// here would back up the live pipeline.
func (r *Recorder) flush(ctx context.Context) {
	r.mu.Lock()
	if len(r.buf) == 0 {
		r.mu.Unlock()
		return
	}
	batch := r.buf
	r.buf = make([]domain.SourcedPoint, 0, r.flushSize)
	r.mu.Unlock()

	flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	if err := r.store.InsertBatch(flushCtx, batch); err != nil {
		r.logger.Warn("tick batch insert failed",
			slog.Int("count", len(batch)),
			slog.String("error", err.Error()),
		)
		return
	}
	r.logger.Debug("flushed tick batch", slog.Int("count", len(batch)))
}
