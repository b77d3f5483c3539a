package adapter

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

const defaultBinanceWS = "wss://stream.binance.com:9443/ws"

// Binance streams best-bid/ask bookTicker frames for the USDT-quoted pair
// of the bound symbol. Prices arrive in USDT and are converted to USD with
// the quote rate.
type Binance struct {
	symbol domain.Symbol
	pair   string // e.g. BTCUSDT
	wsBase string
}

// NewBinance creates a Binance adapter bound to the given symbol. wsBase
// overrides the production stream endpoint when non-empty.
func NewBinance(symbol domain.Symbol, wsBase string) *Binance {
	if wsBase == "" {
		wsBase = defaultBinanceWS
	}
	return &Binance{
		symbol: symbol,
		pair:   strings.ToUpper(string(symbol)) + "USDT",
		wsBase: strings.TrimRight(wsBase, "/"),
	}
}

func (b *Binance) Source() domain.DataSource { return domain.SourceBinance }

// URL subscribes via the stream path, so no subscribe frame is needed.
func (b *Binance) URL() string {
	return b.wsBase + "/" + strings.ToLower(b.pair) + "@bookTicker"
}

func (b *Binance) OnConnect(SendFunc) error { return nil }

func (b *Binance) Heartbeat() (any, time.Duration) { return nil, 0 }

// binanceBookTicker is the bookTicker frame: symbol, best bid/ask with
// quantities.
type binanceBookTicker struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	BidQty string `json:"B"`
	Ask    string `json:"a"`
	AskQty string `json:"A"`
}

func (b *Binance) Normalize(raw []byte, quoteRate float64) (domain.PricePoint, bool) {
	if quoteRate == 0 {
		return domain.PricePoint{}, false
	}

	var msg binanceBookTicker
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PricePoint{}, false
	}
	if !strings.EqualFold(msg.Symbol, b.pair) {
		return domain.PricePoint{}, false
	}

	bid, err := strconv.ParseFloat(msg.Bid, 64)
	if err != nil {
		return domain.PricePoint{}, false
	}
	ask, err := strconv.ParseFloat(msg.Ask, 64)
	if err != nil {
		return domain.PricePoint{}, false
	}

	return domain.PricePoint{
		Price:     domain.MidPrice(bid, ask) * quoteRate,
		Bid:       bid * quoteRate,
		Ask:       ask * quoteRate,
		Timestamp: time.Now().UTC(),
	}, true
}
