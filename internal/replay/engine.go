package replay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// State names the engine's lifecycle phase for one cursor.
type State int

const (
	StateIdle State = iota
	StateFetching
	StatePlaying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Cursor identifies one replay session. Changing Symbol or StartAt starts a
// new session; Speed may be adjusted mid-flight without resetting position.
type Cursor struct {
	Symbol  domain.Symbol
	StartAt int64 // Unix milliseconds
	Speed   float64
}

// Fetcher pages through recorded history. Satisfied by *Client.
type Fetcher interface {
	FetchBatch(ctx context.Context, symbol domain.Symbol, startAt int64, sources []domain.DataSource) (domain.HistoryBatch, error)
}

// PointSink receives replayed points. Satisfied by the metrics service.
type PointSink interface {
	AddDataPoint(ctx context.Context, source domain.DataSource, symbol domain.Symbol, point domain.PricePoint) error
}

// prefetchFraction is the share of the current batch played before the next
// batch fetch begins.
const prefetchFraction = 4 // one quarter

// Engine drives paced replay of recorded points into a PointSink. Each
// SetCursor call increments a generation counter; goroutines from earlier
// generations observe the bump and stop emitting, so a rapid sequence of
// cursor changes never interleaves output from stale sessions.
type Engine struct {
	fetcher Fetcher
	sink    PointSink
	logger  *slog.Logger
	sleep   sleepFunc
	onError func(error)

	mu     sync.Mutex
	state  State
	gen    uint64
	cursor Cursor
	wg     sync.WaitGroup
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithOnError installs a callback invoked when a replay session aborts
// after exhausting fetch retries.
func WithOnError(fn func(error)) EngineOption {
	return func(e *Engine) { e.onError = fn }
}

// NewEngine creates an idle Engine.
func NewEngine(fetcher Fetcher, sink PointSink, logger *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		fetcher: fetcher,
		sink:    sink,
		logger:  logger.With(slog.String("component", "replay_engine")),
		sleep:   defaultSleep,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports the engine's current phase.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Cursor returns the active cursor.
func (e *Engine) Cursor() Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// SetSpeed adjusts playback speed without restarting the session. Values
// that are not strictly positive are ignored.
func (e *Engine) SetSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	e.mu.Lock()
	e.cursor.Speed = speed
	e.mu.Unlock()
}

// SetCursor starts a replay session for cursor, cancelling any previous
// session. A cursor whose symbol is not a replay instrument closes the
// engine's current session and leaves it stopped.
func (e *Engine) SetCursor(ctx context.Context, cursor Cursor) {
	e.mu.Lock()
	e.gen++
	gen := e.gen

	if !cursor.Symbol.IsReplay() {
		e.state = StateClosed
		e.cursor = Cursor{}
		e.mu.Unlock()
		return
	}
	if cursor.Speed <= 0 {
		cursor.Speed = 1
	}
	e.cursor = cursor
	e.state = StateIdle
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		e.run(ctx, gen, cursor)
	}()
}

// Stop cancels any active session and returns the engine to idle with no
// cursor. Unlike Close, the engine remains usable.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.gen++
	e.state = StateIdle
	e.cursor = Cursor{}
	e.mu.Unlock()
}

// Close cancels any active session and marks the engine closed.
func (e *Engine) Close() {
	e.mu.Lock()
	e.gen++
	e.state = StateClosed
	e.mu.Unlock()
	e.wg.Wait()
}

// stale reports whether gen has been superseded by a newer cursor.
func (e *Engine) stale(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen != gen
}

// setState transitions to next only while gen is still current.
func (e *Engine) setState(gen uint64, next State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return false
	}
	e.state = next
	return true
}

// speed reads the playback speed, which SetSpeed may change mid-session.
func (e *Engine) speed(gen uint64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen || e.cursor.Speed <= 0 {
		return 1
	}
	return e.cursor.Speed
}

type fetchResult struct {
	batch domain.HistoryBatch
	err   error
}

func (e *Engine) run(ctx context.Context, gen uint64, cursor Cursor) {
	sources := domain.SourcesFor(cursor.Symbol.TrimReplaySuffix())
	startAt := cursor.StartAt
	var pending chan fetchResult

	for {
		if e.stale(gen) {
			return
		}

		var batch domain.HistoryBatch
		if pending != nil {
			res := <-pending
			pending = nil
			if res.err != nil {
				e.abort(gen, res.err)
				return
			}
			batch = res.batch
		} else {
			if !e.setState(gen, StateFetching) {
				return
			}
			var err error
			batch, err = e.fetcher.FetchBatch(ctx, cursor.Symbol, startAt, sources)
			if err != nil {
				e.abort(gen, err)
				return
			}
		}
		if e.stale(gen) {
			return
		}

		if len(batch.Data) == 0 {
			if !batch.HasNext {
				e.setState(gen, StateIdle)
				return
			}
			// Empty window with more history beyond it: skip ahead a
			// minute rather than hammering the same range.
			startAt += time.Minute.Milliseconds()
			continue
		}

		lastTS := batch.Data[len(batch.Data)-1].Timestamp
		nextStart := lastTS + 1
		prefetchAt := len(batch.Data) / prefetchFraction

		if !e.setState(gen, StatePlaying) {
			return
		}
		for i, pt := range batch.Data {
			if e.stale(gen) {
				return
			}
			if err := e.sink.AddDataPoint(ctx, pt.Source, cursor.Symbol, pt.Point()); err != nil {
				if errors.Is(err, domain.ErrStaleSymbol) {
					return
				}
				e.logger.Warn("replay point rejected", slog.String("error", err.Error()))
			}

			if i == prefetchAt && batch.HasNext && pending == nil {
				pending = e.prefetch(ctx, cursor.Symbol, nextStart, sources)
			}

			if i+1 < len(batch.Data) {
				gap := time.Duration(batch.Data[i+1].Timestamp-pt.Timestamp) * time.Millisecond
				if gap > 0 {
					paced := time.Duration(float64(gap) / e.speed(gen))
					if err := e.sleep(ctx, paced); err != nil {
						return
					}
				}
			}
		}

		if !batch.HasNext && pending == nil {
			e.setState(gen, StateIdle)
			return
		}
		startAt = nextStart
	}
}

// prefetch fetches the next batch concurrently with playback of the
// current one.
func (e *Engine) prefetch(ctx context.Context, symbol domain.Symbol, startAt int64, sources []domain.DataSource) chan fetchResult {
	ch := make(chan fetchResult, 1)
	go func() {
		batch, err := e.fetcher.FetchBatch(ctx, symbol, startAt, sources)
		ch <- fetchResult{batch: batch, err: err}
	}()
	return ch
}

// abort surfaces a fatal session error and parks the engine idle.
func (e *Engine) abort(gen uint64, err error) {
	if e.stale(gen) {
		return
	}
	e.logger.Error("replay session aborted", slog.String("error", err.Error()))
	if e.onError != nil {
		e.onError(err)
	}
	e.setState(gen, StateIdle)
}
