package adapter

import (
	"testing"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

func TestBybitNormalizeSnapshotAndDelta(t *testing.T) {
	a := NewBybit("ETH", "")

	snapshot := `{
		"topic": "orderbook.1.ETHUSDT",
		"type": "snapshot",
		"data": {"s": "ETHUSDT", "b": [["3000", "5"]], "a": [["3002", "4"]]}
	}`
	p, ok := a.Normalize([]byte(snapshot), 1)
	if !ok {
		t.Fatal("snapshot rejected")
	}
	if p.Price != 3001 {
		t.Errorf("mid = %v, want 3001", p.Price)
	}

	delta := `{
		"topic": "orderbook.1.ETHUSDT",
		"type": "delta",
		"data": {"s": "ETHUSDT", "b": [["3001", "2"]], "a": [["3003", "1"]]}
	}`
	p, ok = a.Normalize([]byte(delta), 0.5)
	if !ok {
		t.Fatal("delta rejected")
	}
	if p.Price != 3002*0.5 {
		t.Errorf("converted mid = %v, want %v", p.Price, 3002*0.5)
	}
}

func TestBybitNormalizeDropsAcksAndEmptySides(t *testing.T) {
	a := NewBybit("ETH", "")

	cases := map[string]string{
		"subscribe ack": `{"success": true, "op": "subscribe"}`,
		"other topic":   `{"topic":"orderbook.1.BTCUSDT","type":"snapshot","data":{"b":[["1","1"]],"a":[["2","1"]]}}`,
		"empty asks":    `{"topic":"orderbook.1.ETHUSDT","type":"delta","data":{"b":[["1","1"]],"a":[]}}`,
		"garbage":       `}{`,
	}
	for name, raw := range cases {
		if _, ok := a.Normalize([]byte(raw), 1); ok {
			t.Errorf("%s: expected rejection", name)
		}
	}

	// No rate, no point.
	snapshot := `{"topic":"orderbook.1.ETHUSDT","type":"snapshot","data":{"b":[["1","1"]],"a":[["2","1"]]}}`
	if _, ok := a.Normalize([]byte(snapshot), 0); ok {
		t.Error("point emitted with zero quote rate")
	}
}

func TestOKXNormalize(t *testing.T) {
	a := NewOKX("SOL", "")

	raw := `{
		"arg": {"channel": "tickers", "instId": "SOL-USDT"},
		"data": [{"instId": "SOL-USDT", "bidPx": "150", "askPx": "151", "ts": "1700000000000"}]
	}`
	p, ok := a.Normalize([]byte(raw), 1)
	if !ok {
		t.Fatal("ticker rejected")
	}
	if p.Price != 150.5 {
		t.Errorf("mid = %v, want 150.5", p.Price)
	}
	if p.Timestamp.UnixMilli() != 1700000000000 {
		t.Errorf("timestamp = %v", p.Timestamp)
	}

	if _, ok := a.Normalize([]byte("pong"), 1); ok {
		t.Error("pong echo emitted a point")
	}
	if _, ok := a.Normalize([]byte(`{"event":"subscribe","arg":{"channel":"tickers"}}`), 1); ok {
		t.Error("subscribe ack emitted a point")
	}

	msg, interval := a.Heartbeat()
	if msg != "ping" || interval != okxPingInterval {
		t.Errorf("heartbeat = (%v, %v)", msg, interval)
	}
}

func TestFinnhubNormalize(t *testing.T) {
	a := NewFinnhub("EUR/USD", "", "key")

	raw := `{"type":"trade","data":[
		{"s":"OANDA:GBP_USD","p":1.27,"t":1700000000000,"v":1},
		{"s":"OANDA:EUR_USD","p":1.0852,"t":1700000000500,"v":2}
	]}`
	p, ok := a.Normalize([]byte(raw), 0)
	if !ok {
		t.Fatal("trade rejected")
	}
	if p.Price != 1.0852 {
		t.Errorf("price = %v, want 1.0852", p.Price)
	}

	if _, ok := a.Normalize([]byte(`{"type":"ping"}`), 0); ok {
		t.Error("ping emitted a point")
	}
}

func TestTiingoNormalize(t *testing.T) {
	a := NewTiingo("EUR/USD", "", "key")

	raw := `{"messageType":"A","service":"fx","data":["Q","eurusd","2023-11-14T12:00:00.000000Z",1000000,1.0850,1.0852,1000000,1.0854]}`
	p, ok := a.Normalize([]byte(raw), 0)
	if !ok {
		t.Fatal("quote rejected")
	}
	if p.Price != 1.0852 || p.Bid != 1.0850 || p.Ask != 1.0854 {
		t.Errorf("quote = (%v, %v, %v)", p.Bid, p.Price, p.Ask)
	}

	if _, ok := a.Normalize([]byte(`{"messageType":"H","service":"fx"}`), 0); ok {
		t.Error("heartbeat emitted a point")
	}
	if _, ok := a.Normalize([]byte(`{"messageType":"A","service":"fx","data":["Q","gbpusd","",0,1,1,0,1]}`), 0); ok {
		t.Error("other ticker emitted a point")
	}
}

func TestHistoricalNormalize(t *testing.T) {
	a := NewHistorical(domain.Symbol("BTC").AddReplaySuffix())

	raw := `{"source":"binance","symbol":"BTC","price":50000,"timestamp":1700000000000}`
	p, ok := a.Normalize([]byte(raw), 0)
	if !ok {
		t.Fatal("recorded point rejected")
	}
	if p.Price != 50000 {
		t.Errorf("price = %v", p.Price)
	}

	if _, ok := a.Normalize([]byte(`{"symbol":"ETH","price":1,"timestamp":1}`), 0); ok {
		t.Error("other symbol emitted a point")
	}
}
