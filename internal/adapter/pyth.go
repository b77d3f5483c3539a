package adapter

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

const defaultPythWS = "wss://hermes.pyth.network/ws"

// pythFeedIDs maps catalogue symbols to their price-feed identifiers. The
// wire carries only the feed id, never the symbol name.
var pythFeedIDs = map[domain.Symbol]string{
	"BTC":     "e62df6c8b4a85fe1a67db44dc12de5db330f7ac66b72dc658afedf0f4a415b43",
	"ETH":     "ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
	"SOL":     "ef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d",
	"EUR/USD": "a995d00bb36a63cef7fd2c287dc105fc8f3d93779f062f09551b0af3e81ec30b",
	"GBP/USD": "84c2dde9633d93d1bcad84e7dc41c9d56578b7ec52fabedc1f335d673df0a7c1",
	"AAPL":    "49f6b65cb1de6b10eaf75e7c03ca029c306d0357e91b5311b175084a5ad55688",
	"TSLA":    "16dad506d7db8da01c87581c87ca897a012a153557d4d578c3b9c9e1bc0632f1",
}

// Pyth streams typed price-update envelopes from the oracle network. Wire
// prices are mantissa+exponent, never decimal floats; scaling is exact
// power-of-ten arithmetic. Prices are already in USD.
type Pyth struct {
	symbol domain.Symbol
	feedID string
	wsURL  string
}

// NewPyth creates a Pyth adapter bound to the given symbol.
func NewPyth(symbol domain.Symbol, wsURL string) *Pyth {
	if wsURL == "" {
		wsURL = defaultPythWS
	}
	return &Pyth{
		symbol: symbol,
		feedID: pythFeedIDs[symbol],
		wsURL:  wsURL,
	}
}

func (p *Pyth) Source() domain.DataSource { return domain.SourcePyth }

func (p *Pyth) URL() string { return p.wsURL }

// OnConnect subscribes to the bound symbol's feed id. Symbols without a
// catalogued feed id get no subscription; the connection stays silent.
func (p *Pyth) OnConnect(send SendFunc) error {
	if p.feedID == "" {
		return nil
	}
	return send(map[string]any{
		"type": "subscribe",
		"ids":  []string{p.feedID},
	})
}

func (p *Pyth) Heartbeat() (any, time.Duration) { return nil, 0 }

// pythUpdate is the price_update envelope of the oracle stream.
type pythUpdate struct {
	Type      string `json:"type"`
	PriceFeed struct {
		ID    string `json:"id"`
		Price struct {
			Price       string `json:"price"`
			Conf        string `json:"conf"`
			Expo        int    `json:"expo"`
			PublishTime int64  `json:"publish_time"`
		} `json:"price"`
	} `json:"price_feed"`
}

func (p *Pyth) Normalize(raw []byte, _ float64) (domain.PricePoint, bool) {
	var msg pythUpdate
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PricePoint{}, false
	}
	// Subscription responses carry type "response".
	if msg.Type != "price_update" || msg.PriceFeed.ID != p.feedID || p.feedID == "" {
		return domain.PricePoint{}, false
	}

	mantissa, err := strconv.ParseInt(msg.PriceFeed.Price.Price, 10, 64)
	if err != nil {
		return domain.PricePoint{}, false
	}

	ts := time.Now().UTC()
	if msg.PriceFeed.Price.PublishTime > 0 {
		ts = time.Unix(msg.PriceFeed.Price.PublishTime, 0).UTC()
	}

	return domain.PricePoint{
		Price:     ScalePrice(mantissa, msg.PriceFeed.Price.Expo),
		Timestamp: ts,
	}, true
}

// pow10 holds exact powers of ten; every entry is exactly representable in
// a float64, so multiplying (or dividing) by one rounds at most once.
var pow10 = [...]float64{
	1, 1e1, 1e2, 1e3, 1e4, 1e5, 1e6, 1e7, 1e8, 1e9, 1e10, 1e11, 1e12,
	1e13, 1e14, 1e15, 1e16, 1e17, 1e18, 1e19, 1e20, 1e21, 1e22,
}

// ScalePrice computes mantissa · 10^expo using exact power-of-ten factors
// rather than math.Pow, keeping integer mantissas with |expo| ≤ 12 exact.
func ScalePrice(mantissa int64, expo int) float64 {
	switch {
	case expo == 0:
		return float64(mantissa)
	case expo > 0:
		if expo < len(pow10) {
			return float64(mantissa) * pow10[expo]
		}
		v := float64(mantissa)
		for i := 0; i < expo; i++ {
			v *= 10
		}
		return v
	default:
		n := -expo
		if n < len(pow10) {
			return float64(mantissa) / pow10[n]
		}
		v := float64(mantissa)
		for i := 0; i < n; i++ {
			v /= 10
		}
		return v
	}
}
