package adapter

import (
	"encoding/json"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// Historical is the synthetic adapter backing replay symbols. It has no
// socket; the replay engine feeds recorded points through the same
// normalization contract so downstream code cannot tell replay from live.
type Historical struct {
	symbol domain.Symbol
}

// NewHistorical creates the synthetic adapter for a replay symbol.
func NewHistorical(symbol domain.Symbol) *Historical {
	return &Historical{symbol: symbol}
}

func (h *Historical) Source() domain.DataSource { return domain.SourceHistorical }

// URL is empty: the connection layer must not dial for this source.
func (h *Historical) URL() string { return "" }

func (h *Historical) OnConnect(SendFunc) error { return nil }

func (h *Historical) Heartbeat() (any, time.Duration) { return nil, 0 }

// Normalize accepts a JSON-encoded domain.SourcedPoint, as recorded by the
// tick store. Recorded prices are already in USD; the quote rate is ignored.
func (h *Historical) Normalize(raw []byte, _ float64) (domain.PricePoint, bool) {
	var sp domain.SourcedPoint
	if err := json.Unmarshal(raw, &sp); err != nil {
		return domain.PricePoint{}, false
	}
	if sp.Symbol != h.symbol.TrimReplaySuffix() && sp.Symbol != h.symbol {
		return domain.PricePoint{}, false
	}
	if sp.Timestamp == 0 {
		return domain.PricePoint{}, false
	}
	return sp.Point(), true
}
