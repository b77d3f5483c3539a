package replay

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

func TestClientFetchBatch(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"source":"binance","symbol":"BTC","price":60000,"timestamp":1700000000000}],"hasNext":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	batch, err := c.FetchBatch(context.Background(), domain.Symbol("BTC").AddReplaySuffix(), 1700000000000, []domain.DataSource{domain.SourceBinance, domain.SourcePyth})
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}

	if gotPath != "/history/BTC.hist" {
		t.Errorf("path = %q, want /history/BTC.hist", gotPath)
	}
	if got := gotQuery["startAt"]; len(got) != 1 || got[0] != "2023-11-14T22:13:20Z" {
		t.Errorf("startAt = %v, want 2023-11-14T22:13:20Z", got)
	}
	if got := gotQuery["datasources[]"]; len(got) != 2 || got[0] != "binance" || got[1] != "pyth" {
		t.Errorf("datasources[] = %v", got)
	}
	if got := gotQuery["limit"]; len(got) != 1 || got[0] != "1000" {
		t.Errorf("limit = %v, want 1000", got)
	}

	if !batch.HasNext {
		t.Error("HasNext = false, want true")
	}
	if len(batch.Data) != 1 || batch.Data[0].Price != 60000 || batch.Data[0].Source != domain.SourceBinance {
		t.Errorf("unexpected batch data: %+v", batch.Data)
	}
}

func TestClientRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":[],"hasNext":false}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	rec := &delayRecorder{}
	c.sleep = rec.sleep

	if _, err := c.FetchBatch(context.Background(), "BTC.hist", 0, nil); err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
	if got := len(rec.recorded()); got != 2 {
		t.Errorf("backoff sleeps = %d, want 2", got)
	}
}

func TestClientExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, discardLogger())
	rec := &delayRecorder{}
	c.sleep = rec.sleep

	_, err := c.FetchBatch(context.Background(), "BTC.hist", 0, nil)
	if !errors.Is(err, domain.ErrRetriesExceeded) {
		t.Fatalf("err = %v, want ErrRetriesExceeded", err)
	}
	if got := calls.Load(); got != 5 {
		t.Errorf("requests = %d, want 5", got)
	}

	delays := rec.recorded()
	if len(delays) != 4 {
		t.Fatalf("backoff sleeps = %d, want 4", len(delays))
	}
	for i, d := range delays {
		attempt := i + 1
		lo := time.Duration(float64(retryBase) * math.Exp(float64(attempt)))
		hi := time.Duration(float64(lo) * 1.1)
		if d < lo || d > hi {
			t.Errorf("delay[%d] = %v, want within [%v, %v]", i, d, lo, hi)
		}
	}
}

func TestClientStopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL, discardLogger())
	c.sleep = func(context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	}

	if _, err := c.FetchBatch(ctx, "BTC.hist", 0, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
