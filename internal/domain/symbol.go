// Package domain defines the canonical market-data model shared by every
// layer of pricedash: symbols, data sources, price points, and derived
// metrics, together with the cache and store interfaces implemented under
// internal/cache and internal/store.
package domain

import "strings"

// Symbol identifies a tradable instrument, e.g. "BTC", "EUR/USD" or "AAPL".
// Symbols belonging to the historical-replay catalogue carry the
// ReplaySuffix marker so they never collide with their live counterpart.
type Symbol string

// SymbolNone is the "no selection" sentinel. No connection is opened and no
// metrics are kept while it is selected.
const SymbolNone Symbol = ""

// ReplaySuffix marks a symbol as belonging to the historical-replay
// catalogue ("BTC.hist" replays recorded BTC ticks).
const ReplaySuffix = ".hist"

// AssetClass groups symbols by the kind of instrument they represent. The
// set of applicable data sources is a pure function of the asset class.
type AssetClass int

const (
	AssetClassNone AssetClass = iota
	AssetClassCrypto
	AssetClassFX
	AssetClassEquity
	AssetClassFuture
	AssetClassReplay
)

// String returns a lowercase name for the asset class.
func (c AssetClass) String() string {
	switch c {
	case AssetClassCrypto:
		return "crypto"
	case AssetClassFX:
		return "fx"
	case AssetClassEquity:
		return "equity"
	case AssetClassFuture:
		return "future"
	case AssetClassReplay:
		return "replay"
	default:
		return "none"
	}
}

// catalogue is the fixed instrument set the dashboard supports. Replay
// symbols are not listed; they are derived from live symbols via
// AddReplaySuffix.
var catalogue = map[Symbol]AssetClass{
	"BTC":     AssetClassCrypto,
	"ETH":     AssetClassCrypto,
	"SOL":     AssetClassCrypto,
	"EUR/USD": AssetClassFX,
	"GBP/USD": AssetClassFX,
	"AAPL":    AssetClassEquity,
	"TSLA":    AssetClassEquity,
	"ES":      AssetClassFuture,
}

// ClassOf classifies a symbol. Replay-suffixed symbols classify as
// AssetClassReplay regardless of their live counterpart's class; unknown
// symbols and SymbolNone classify as AssetClassNone.
func ClassOf(s Symbol) AssetClass {
	if s == SymbolNone {
		return AssetClassNone
	}
	if s.IsReplay() {
		if _, ok := catalogue[s.TrimReplaySuffix()]; ok {
			return AssetClassReplay
		}
		return AssetClassNone
	}
	if class, ok := catalogue[s]; ok {
		return class
	}
	return AssetClassNone
}

// KnownSymbol reports whether s is a member of the instrument catalogue,
// either directly or as the replay variant of a catalogued symbol.
func KnownSymbol(s Symbol) bool {
	return ClassOf(s) != AssetClassNone
}

// Catalogue returns every selectable symbol: the live catalogue plus the
// replay variant of each entry.
func Catalogue() []Symbol {
	out := make([]Symbol, 0, 2*len(catalogue))
	for s := range catalogue {
		out = append(out, s, s.AddReplaySuffix())
	}
	return out
}

// IsReplay reports whether the symbol carries the replay marker.
func (s Symbol) IsReplay() bool {
	return strings.HasSuffix(string(s), ReplaySuffix)
}

// AddReplaySuffix returns the replay variant of the symbol. It is
// idempotent: adding the suffix to a replay symbol is a no-op.
func (s Symbol) AddReplaySuffix() Symbol {
	if s == SymbolNone || s.IsReplay() {
		return s
	}
	return s + ReplaySuffix
}

// TrimReplaySuffix returns the live counterpart of a replay symbol. For any
// non-replay symbol x, x.AddReplaySuffix().TrimReplaySuffix() == x.
func (s Symbol) TrimReplaySuffix() Symbol {
	return Symbol(strings.TrimSuffix(string(s), ReplaySuffix))
}
