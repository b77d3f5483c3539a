package adapter

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

const defaultBybitWS = "wss://stream.bybit.com/v5/public/spot"

// Bybit streams top-of-book orderbook.1 frames for the USDT-quoted pair.
// Both snapshot and delta frames carry full best bid/ask arrays at depth 1,
// so no local ladder is needed.
type Bybit struct {
	symbol domain.Symbol
	pair   string // e.g. BTCUSDT
	topic  string // orderbook.1.BTCUSDT
	wsURL  string
}

// NewBybit creates a Bybit adapter bound to the given symbol.
func NewBybit(symbol domain.Symbol, wsURL string) *Bybit {
	if wsURL == "" {
		wsURL = defaultBybitWS
	}
	pair := strings.ToUpper(string(symbol)) + "USDT"
	return &Bybit{
		symbol: symbol,
		pair:   pair,
		topic:  "orderbook.1." + pair,
		wsURL:  wsURL,
	}
}

func (b *Bybit) Source() domain.DataSource { return domain.SourceBybit }

func (b *Bybit) URL() string { return b.wsURL }

// OnConnect subscribes to the depth-1 orderbook topic.
func (b *Bybit) OnConnect(send SendFunc) error {
	return send(map[string]any{
		"op":   "subscribe",
		"args": []string{b.topic},
	})
}

func (b *Bybit) Heartbeat() (any, time.Duration) { return nil, 0 }

// bybitOrderbook is the v5 orderbook envelope. Bids and asks are
// [price, size] string pairs, best level first.
type bybitOrderbook struct {
	Topic string `json:"topic"`
	Type  string `json:"type"` // "snapshot" or "delta"
	Data  struct {
		Symbol string     `json:"s"`
		Bids   [][]string `json:"b"`
		Asks   [][]string `json:"a"`
	} `json:"data"`
}

func (b *Bybit) Normalize(raw []byte, quoteRate float64) (domain.PricePoint, bool) {
	if quoteRate == 0 {
		return domain.PricePoint{}, false
	}

	var msg bybitOrderbook
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PricePoint{}, false
	}
	// Subscription acks and pong echoes have no topic.
	if msg.Topic != b.topic {
		return domain.PricePoint{}, false
	}
	if msg.Type != "snapshot" && msg.Type != "delta" {
		return domain.PricePoint{}, false
	}
	if len(msg.Data.Bids) == 0 || len(msg.Data.Asks) == 0 ||
		len(msg.Data.Bids[0]) == 0 || len(msg.Data.Asks[0]) == 0 {
		return domain.PricePoint{}, false
	}

	bid, err := strconv.ParseFloat(msg.Data.Bids[0][0], 64)
	if err != nil {
		return domain.PricePoint{}, false
	}
	ask, err := strconv.ParseFloat(msg.Data.Asks[0][0], 64)
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
