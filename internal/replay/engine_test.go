package replay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// scriptedFetcher returns canned batches in order and records the startAt
// of every call.
type scriptedFetcher struct {
	mu      sync.Mutex
	calls   []int64
	batches []domain.HistoryBatch
	errs    []error
	loop    *domain.HistoryBatch // returned forever once the script runs out
}

func (f *scriptedFetcher) FetchBatch(_ context.Context, _ domain.Symbol, startAt int64, _ []domain.DataSource) (domain.HistoryBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, startAt)
	if i < len(f.errs) && f.errs[i] != nil {
		return domain.HistoryBatch{}, f.errs[i]
	}
	if i < len(f.batches) {
		return f.batches[i], nil
	}
	if f.loop != nil {
		return *f.loop, nil
	}
	return domain.HistoryBatch{}, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *scriptedFetcher) callAt(i int) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

type recordSink struct {
	mu     sync.Mutex
	points []domain.PricePoint
	srcs   []domain.DataSource
	err    error
}

func (s *recordSink) AddDataPoint(_ context.Context, source domain.DataSource, _ domain.Symbol, point domain.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, point)
	s.srcs = append(s.srcs, source)
	return s.err
}

func (s *recordSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

// delayRecorder substitutes for real sleeping and records every requested
// pause.
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *delayRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *delayRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}

func waitForReplay(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func batchOf(hasNext bool, timestamps ...int64) domain.HistoryBatch {
	b := domain.HistoryBatch{HasNext: hasNext}
	for _, ts := range timestamps {
		b.Data = append(b.Data, domain.SourcedPoint{
			Source:    domain.SourceBinance,
			Symbol:    "BTC",
			Price:     100,
			Timestamp: ts,
		})
	}
	return b
}

func TestEnginePacingScalesGapsBySpeed(t *testing.T) {
	fetcher := &scriptedFetcher{batches: []domain.HistoryBatch{
		batchOf(false, 0, 1000, 3000),
	}}
	sink := &recordSink{}
	rec := &delayRecorder{}

	e := NewEngine(fetcher, sink, discardLogger())
	e.sleep = rec.sleep
	e.SetCursor(context.Background(), Cursor{
		Symbol:  domain.Symbol("BTC").AddReplaySuffix(),
		StartAt: 0,
		Speed:   2,
	})
	defer e.Close()

	waitForReplay(t, func() bool {
		return sink.count() == 3 && e.State() == StateIdle
	})

	got := rec.recorded()
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(got) != len(want) {
		t.Fatalf("recorded %d delays, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEngineAdvancesPastEmptyWindows(t *testing.T) {
	fetcher := &scriptedFetcher{batches: []domain.HistoryBatch{
		batchOf(true),
		batchOf(true),
		batchOf(false, 200_000),
	}}
	sink := &recordSink{}

	e := NewEngine(fetcher, sink, discardLogger())
	e.sleep = (&delayRecorder{}).sleep
	e.SetCursor(context.Background(), Cursor{
		Symbol: domain.Symbol("BTC").AddReplaySuffix(),
		Speed:  1,
	})
	defer e.Close()

	waitForReplay(t, func() bool {
		return sink.count() == 1 && e.State() == StateIdle
	})

	if n := fetcher.callCount(); n != 3 {
		t.Fatalf("fetch calls = %d, want 3", n)
	}
	if got := fetcher.callAt(1); got != 60_000 {
		t.Errorf("second fetch startAt = %d, want 60000", got)
	}
	if got := fetcher.callAt(2); got != 120_000 {
		t.Errorf("third fetch startAt = %d, want 120000", got)
	}
}

func TestEnginePagesFromLastTimestamp(t *testing.T) {
	fetcher := &scriptedFetcher{batches: []domain.HistoryBatch{
		batchOf(true, 0, 100, 200, 300, 400, 500, 600, 700),
		batchOf(false, 10_000),
	}}
	sink := &recordSink{}

	e := NewEngine(fetcher, sink, discardLogger())
	e.sleep = (&delayRecorder{}).sleep
	e.SetCursor(context.Background(), Cursor{
		Symbol: domain.Symbol("BTC").AddReplaySuffix(),
		Speed:  1,
	})
	defer e.Close()

	waitForReplay(t, func() bool {
		return sink.count() == 9 && e.State() == StateIdle
	})

	if n := fetcher.callCount(); n != 2 {
		t.Fatalf("fetch calls = %d, want 2", n)
	}
	if got := fetcher.callAt(1); got != 701 {
		t.Errorf("second fetch startAt = %d, want 701", got)
	}
}

func TestEngineSurfacesFetchFailure(t *testing.T) {
	boom := errors.New("boom")
	fetcher := &scriptedFetcher{errs: []error{boom}}
	sink := &recordSink{}

	var mu sync.Mutex
	var seen error
	e := NewEngine(fetcher, sink, discardLogger(), WithOnError(func(err error) {
		mu.Lock()
		seen = err
		mu.Unlock()
	}))
	e.sleep = (&delayRecorder{}).sleep
	e.SetCursor(context.Background(), Cursor{
		Symbol: domain.Symbol("BTC").AddReplaySuffix(),
		Speed:  1,
	})
	defer e.Close()

	waitForReplay(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen != nil && e.State() == StateIdle
	})

	mu.Lock()
	defer mu.Unlock()
	if !errors.Is(seen, boom) {
		t.Errorf("onError got %v, want %v", seen, boom)
	}
	if sink.count() != 0 {
		t.Errorf("sink received %d points, want 0", sink.count())
	}
}

func TestEngineClosesOnLiveSymbol(t *testing.T) {
	fetcher := &scriptedFetcher{}
	e := NewEngine(fetcher, &recordSink{}, discardLogger())

	e.SetCursor(context.Background(), Cursor{Symbol: "BTC", Speed: 1})

	if got := e.State(); got != StateClosed {
		t.Fatalf("state = %v, want %v", got, StateClosed)
	}
	if n := fetcher.callCount(); n != 0 {
		t.Errorf("fetch calls = %d, want 0", n)
	}
}

func TestEngineCloseStopsEndlessReplay(t *testing.T) {
	endless := batchOf(true, 0, 10)
	fetcher := &scriptedFetcher{loop: &endless}
	sink := &recordSink{}

	e := NewEngine(fetcher, sink, discardLogger())
	e.sleep = (&delayRecorder{}).sleep
	e.SetCursor(context.Background(), Cursor{
		Symbol: domain.Symbol("BTC").AddReplaySuffix(),
		Speed:  1,
	})

	waitForReplay(t, func() bool { return sink.count() > 0 })

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	if got := e.State(); got != StateClosed {
		t.Errorf("state = %v, want %v", got, StateClosed)
	}
}

func TestEngineStaleSinkStopsSession(t *testing.T) {
	fetcher := &scriptedFetcher{batches: []domain.HistoryBatch{
		batchOf(false, 0, 100, 200),
	}}
	sink := &recordSink{err: domain.ErrStaleSymbol}

	e := NewEngine(fetcher, sink, discardLogger())
	e.sleep = (&delayRecorder{}).sleep
	e.SetCursor(context.Background(), Cursor{
		Symbol: domain.Symbol("BTC").AddReplaySuffix(),
		Speed:  1,
	})
	defer e.Close()

	waitForReplay(t, func() bool { return sink.count() == 1 })
	time.Sleep(20 * time.Millisecond)
	if n := sink.count(); n != 1 {
		t.Errorf("sink received %d points after stale rejection, want 1", n)
	}
}
