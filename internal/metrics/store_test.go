package metrics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

func point(price float64) domain.PricePoint {
	return domain.PricePoint{Price: price, Timestamp: time.Now()}
}

func TestChangeDerivation(t *testing.T) {
	s := NewStore()
	s.Reset("BTC")

	prices := []float64{100, 110, 99}
	for _, p := range prices {
		if err := s.AddDataPoint(domain.SourceBinance, "BTC", point(p)); err != nil {
			t.Fatalf("AddDataPoint(%v): %v", p, err)
		}
	}

	m, ok := s.Metrics(domain.SourceBinance, "BTC")
	if !ok {
		t.Fatal("no metrics after three points")
	}
	if m.Change != 99-110 {
		t.Errorf("change = %v, want %v", m.Change, 99-110)
	}
	wantPct := (99.0 - 110.0) / 110.0 * 100
	if math.Abs(m.ChangePercent-wantPct) > 1e-12 {
		t.Errorf("changePercent = %v, want %v", m.ChangePercent, wantPct)
	}
}

func TestFirstPointHasZeroChange(t *testing.T) {
	s := NewStore()
	s.Reset("ETH")

	if err := s.AddDataPoint(domain.SourceBybit, "ETH", point(3000)); err != nil {
		t.Fatal(err)
	}
	m, _ := s.Metrics(domain.SourceBybit, "ETH")
	if m.Change != 0 || m.ChangePercent != 0 {
		t.Errorf("first point change = (%v, %v), want zeros", m.Change, m.ChangePercent)
	}
}

func TestZeroPreviousPriceSkipsPercent(t *testing.T) {
	s := NewStore()
	s.Reset("BTC")

	s.AddDataPoint(domain.SourceBinance, "BTC", point(0))
	s.AddDataPoint(domain.SourceBinance, "BTC", point(5))

	m, _ := s.Metrics(domain.SourceBinance, "BTC")
	if m.Change != 5 {
		t.Errorf("change = %v, want 5", m.Change)
	}
	if m.ChangePercent != 0 {
		t.Errorf("changePercent = %v, want 0 for non-positive previous", m.ChangePercent)
	}
}

func TestSymbolSwitchIsolation(t *testing.T) {
	s := NewStore()
	s.Reset("BTC")
	s.AddDataPoint(domain.SourceBinance, "BTC", point(100))

	s.Reset("ETH")

	// Late point for the previously selected symbol must be a no-op.
	err := s.AddDataPoint(domain.SourceBinance, "BTC", point(101))
	if !errors.Is(err, domain.ErrStaleSymbol) {
		t.Errorf("stale add err = %v, want ErrStaleSymbol", err)
	}
	if _, ok := s.Metrics(domain.SourceBinance, "BTC"); ok {
		t.Error("metrics table still contains rows for the old symbol")
	}

	// New symbol starts from a clean slate.
	s.AddDataPoint(domain.SourceBinance, "ETH", point(3000))
	m, ok := s.Metrics(domain.SourceBinance, "ETH")
	if !ok || m.Change != 0 {
		t.Errorf("post-switch metrics = (%+v, %v)", m, ok)
	}
}

func TestRejectUnknownIdentifiers(t *testing.T) {
	s := NewStore()
	s.Reset("BTC")

	if err := s.AddDataPoint("nasdaq", "BTC", point(1)); !errors.Is(err, domain.ErrUnknownSource) {
		t.Errorf("unknown source err = %v", err)
	}
	if err := s.AddDataPoint(domain.SourceBinance, "DOGE", point(1)); !errors.Is(err, domain.ErrUnknownSymbol) {
		t.Errorf("unknown symbol err = %v", err)
	}
}

func TestSourcesAreIndependent(t *testing.T) {
	s := NewStore()
	s.Reset("BTC")

	s.AddDataPoint(domain.SourceBinance, "BTC", point(100))
	s.AddDataPoint(domain.SourceBinance, "BTC", point(110))
	s.AddDataPoint(domain.SourceBybit, "BTC", point(200))

	bin, _ := s.Metrics(domain.SourceBinance, "BTC")
	byb, _ := s.Metrics(domain.SourceBybit, "BTC")
	if bin.Change != 10 {
		t.Errorf("binance change = %v, want 10", bin.Change)
	}
	if byb.Change != 0 {
		t.Errorf("bybit change = %v, want 0 (first observation)", byb.Change)
	}

	snap := s.Snapshot("BTC")
	if len(snap) != 2 {
		t.Errorf("snapshot has %d sources, want 2", len(snap))
	}
}
