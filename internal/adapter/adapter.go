// Package adapter contains one stream adapter per market-data source. An
// adapter owns everything source-specific: the endpoint, the subscribe
// handshake, the optional heartbeat, and the normalization of that source's
// raw wire messages into canonical domain.PricePoints. The connection layer
// in internal/stream is source-agnostic and drives adapters purely through
// the Adapter interface.
package adapter

import (
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// SendFunc writes a JSON value to the underlying socket.
type SendFunc func(v any) error

// Adapter normalizes one source's wire messages for one bound symbol.
// Adapters are cheap, single-connection objects: the orchestrator constructs
// a fresh one each time a (source, symbol) subscription is opened and drops
// it on teardown.
type Adapter interface {
	// Source names the adapter.
	Source() domain.DataSource

	// URL returns the WebSocket endpoint to dial for the bound symbol. An
	// empty URL means the source is not socket-backed (the synthetic
	// historical adapter) and the connection layer must skip it.
	URL() string

	// OnConnect is invoked once per established connection, before any
	// message is read. Adapters use it to issue subscribe/auth frames.
	OnConnect(send SendFunc) error

	// Heartbeat returns a message to send on the given interval for the
	// life of the connection, or a zero interval when the source needs no
	// client-side keepalive beyond protocol pings.
	Heartbeat() (msg any, interval time.Duration)

	// Normalize parses one raw wire message into a canonical price point.
	// quoteRate is the current USDT→USD conversion rate; adapters for
	// USDT-quoted sources multiply by it and drop points while it is zero.
	// Malformed or irrelevant messages (wrong symbol, subscription acks,
	// heartbeat echoes) report ok=false; Normalize never panics on wire
	// noise.
	Normalize(raw []byte, quoteRate float64) (p domain.PricePoint, ok bool)
}

// Endpoints collects the per-source connection URLs so tests and operators
// can point adapters at local stand-ins. Zero values fall back to the
// production endpoints.
type Endpoints struct {
	BinanceWS  string
	BybitWS    string
	CoinbaseWS string
	OKXWS      string
	PythWS     string
	LazerWS    string
	LazerToken string
	FinnhubWS  string
	FinnhubKey string
	TiingoWS   string
	TiingoKey  string
}

// Factory builds an adapter bound to the given symbol.
type Factory func(symbol domain.Symbol, eps Endpoints) Adapter

// Registry maps every catalogued data source to its adapter factory. The
// orchestrator iterates this map instead of switching on source names.
func Registry() map[domain.DataSource]Factory {
	return map[domain.DataSource]Factory{
		domain.SourceBinance: func(s domain.Symbol, e Endpoints) Adapter {
			return NewBinance(s, e.BinanceWS)
		},
		domain.SourceBybit: func(s domain.Symbol, e Endpoints) Adapter {
			return NewBybit(s, e.BybitWS)
		},
		domain.SourceCoinbase: func(s domain.Symbol, e Endpoints) Adapter {
			return NewCoinbase(s, e.CoinbaseWS)
		},
		domain.SourceOKX: func(s domain.Symbol, e Endpoints) Adapter {
			return NewOKX(s, e.OKXWS)
		},
		domain.SourcePyth: func(s domain.Symbol, e Endpoints) Adapter {
			return NewPyth(s, e.PythWS)
		},
		domain.SourceLazer: func(s domain.Symbol, e Endpoints) Adapter {
			return NewLazer(s, e.LazerWS, e.LazerToken)
		},
		domain.SourceFinnhub: func(s domain.Symbol, e Endpoints) Adapter {
			return NewFinnhub(s, e.FinnhubWS, e.FinnhubKey)
		},
		domain.SourceTiingo: func(s domain.Symbol, e Endpoints) Adapter {
			return NewTiingo(s, e.TiingoWS, e.TiingoKey)
		},
		domain.SourceHistorical: func(s domain.Symbol, _ Endpoints) Adapter {
			return NewHistorical(s)
		},
	}
}
