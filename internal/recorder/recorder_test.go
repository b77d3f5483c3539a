package recorder

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

type captureStore struct {
	mu      sync.Mutex
	batches [][]domain.SourcedPoint
}

func (s *captureStore) InsertBatch(_ context.Context, points []domain.SourcedPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, points)
	return nil
}

func (s *captureStore) Query(context.Context, domain.TickQuery) (domain.HistoryBatch, error) {
	return domain.HistoryBatch{}, nil
}

func (s *captureStore) LastTimestamp(context.Context, domain.Symbol) (time.Time, error) {
	return time.Time{}, nil
}

func (s *captureStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *captureStore) ListBefore(context.Context, time.Time, int) ([]domain.SourcedPoint, error) {
	return nil, nil
}

func (s *captureStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func point(ts int64) domain.SourcedPoint {
	return domain.SourcedPoint{
		Source:    domain.SourceBinance,
		Symbol:    "BTC",
		Price:     100,
		Timestamp: ts,
	}
}

func TestRecorderFlushesWhenBufferFills(t *testing.T) {
	store := &captureStore{}
	r := New(store, slog.New(slog.DiscardHandler), WithFlushSize(3), WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	for i := range 3 {
		r.Record(ctx, point(int64(i)))
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && store.total() < 3 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := store.total(); got != 3 {
		t.Fatalf("flushed %d points, want 3", got)
	}

	cancel()
	<-done
}

func TestRecorderDrainsOnShutdown(t *testing.T) {
	store := &captureStore{}
	r := New(store, slog.New(slog.DiscardHandler), WithFlushSize(100), WithFlushInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	r.Record(ctx, point(1))
	r.Record(ctx, point(2))
	cancel()
	<-done

	if got := store.total(); got != 2 {
		t.Fatalf("drained %d points, want 2", got)
	}
}

func TestRecorderFlushesOnInterval(t *testing.T) {
	store := &captureStore{}
	r := New(store, slog.New(slog.DiscardHandler), WithFlushSize(100), WithFlushInterval(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	r.Record(ctx, point(1))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && store.total() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if got := store.total(); got != 1 {
		t.Fatalf("flushed %d points, want 1", got)
	}

	cancel()
	<-done
}
