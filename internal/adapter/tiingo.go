package adapter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

const defaultTiingoWS = "wss://api.tiingo.com/fx"

// tiingoTickers maps catalogue FX symbols to the provider's concatenated
// lowercase tickers.
var tiingoTickers = map[domain.Symbol]string{
	"EUR/USD": "eurusd",
	"GBP/USD": "gbpusd",
}

// Tiingo streams positional-array FX quote frames. Quotes carry bid, mid,
// and ask; prices are in USD terms already.
type Tiingo struct {
	symbol domain.Symbol
	ticker string
	wsURL  string
	apiKey string
}

// NewTiingo creates a Tiingo adapter bound to the given symbol.
func NewTiingo(symbol domain.Symbol, wsURL, apiKey string) *Tiingo {
	if wsURL == "" {
		wsURL = defaultTiingoWS
	}
	return &Tiingo{
		symbol: symbol,
		ticker: tiingoTickers[symbol],
		wsURL:  wsURL,
		apiKey: apiKey,
	}
}

func (t *Tiingo) Source() domain.DataSource { return domain.SourceTiingo }

func (t *Tiingo) URL() string { return t.wsURL }

// OnConnect authenticates and subscribes to the bound ticker.
func (t *Tiingo) OnConnect(send SendFunc) error {
	if t.ticker == "" {
		return nil
	}
	return send(map[string]any{
		"eventName":     "subscribe",
		"authorization": t.apiKey,
		"eventData": map[string]any{
			"thresholdLevel": 5,
			"tickers":        []string{t.ticker},
		},
	})
}

func (t *Tiingo) Heartbeat() (any, time.Duration) { return nil, 0 }

// tiingoFrame is the quote envelope. Data is positional:
// [type, ticker, timestamp, bidSize, bidPrice, midPrice, askSize, askPrice].
type tiingoFrame struct {
	MessageType string `json:"messageType"` // "A" data, "I" info, "H" heartbeat
	Service     string `json:"service"`
	Data        []any  `json:"data"`
}

func (t *Tiingo) Normalize(raw []byte, _ float64) (domain.PricePoint, bool) {
	var msg tiingoFrame
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PricePoint{}, false
	}
	// "I" subscribe responses and "H" heartbeats are dropped.
	if msg.MessageType != "A" || msg.Service != "fx" || len(msg.Data) < 8 || t.ticker == "" {
		return domain.PricePoint{}, false
	}

	ticker, ok := msg.Data[1].(string)
	if !ok || !strings.EqualFold(ticker, t.ticker) {
		return domain.PricePoint{}, false
	}

	bid, okBid := msg.Data[4].(float64)
	mid, okMid := msg.Data[5].(float64)
	ask, okAsk := msg.Data[7].(float64)
	if !okMid {
		return domain.PricePoint{}, false
	}

	p := domain.PricePoint{Price: mid, Timestamp: time.Now().UTC()}
	if okBid && okAsk {
		p.Bid = bid
		p.Ask = ask
	}
	if stamp, ok := msg.Data[2].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
			p.Timestamp = parsed.UTC()
		}
	}
	return p, true
}
