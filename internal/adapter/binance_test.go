package adapter

import (
	"math"
	"strconv"
	"testing"
)

func TestBinanceNormalizeMidPrice(t *testing.T) {
	a := NewBinance("BTC", "")

	tests := []struct {
		bid, ask, rate float64
	}{
		{50000, 50010, 1},
		{50000, 50010, 0.9997},
		{1.5, 2.5, 1.0002},
		{0.00012, 0.00013, 1},
	}
	for _, tt := range tests {
		raw := []byte(`{"s":"BTCUSDT","b":"` + formatF(tt.bid) + `","B":"1","a":"` + formatF(tt.ask) + `","A":"2"}`)
		p, ok := a.Normalize(raw, tt.rate)
		if !ok {
			t.Fatalf("Normalize(%v, %v) rejected", tt.bid, tt.ask)
		}
		want := (tt.bid + tt.ask) / 2 * tt.rate
		if math.Abs(p.Price-want) > 1e-12*want {
			t.Errorf("mid price = %v, want %v", p.Price, want)
		}
	}
}

func TestBinanceNormalizeDropsWireNoise(t *testing.T) {
	a := NewBinance("BTC", "")

	cases := map[string]string{
		"wrong symbol": `{"s":"ETHUSDT","b":"1","a":"2"}`,
		"garbage":      `not json at all`,
		"bad bid":      `{"s":"BTCUSDT","b":"x","a":"2"}`,
		"empty":        `{}`,
	}
	for name, raw := range cases {
		if _, ok := a.Normalize([]byte(raw), 1); ok {
			t.Errorf("%s: expected rejection", name)
		}
	}
}

func TestBinanceNormalizeDropsWithoutRate(t *testing.T) {
	a := NewBinance("BTC", "")
	raw := []byte(`{"s":"BTCUSDT","b":"50000","a":"50010"}`)
	if _, ok := a.Normalize(raw, 0); ok {
		t.Error("point emitted with zero quote rate")
	}
}

func formatF(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
