package adapter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

const defaultFinnhubWS = "wss://ws.finnhub.io"

// finnhubSymbols maps catalogue FX symbols to the provider's OANDA-routed
// tickers.
var finnhubSymbols = map[domain.Symbol]string{
	"EUR/USD": "OANDA:EUR_USD",
	"GBP/USD": "OANDA:GBP_USD",
}

// Finnhub streams last-trade frames for FX instruments. Prices arrive in
// USD terms already; no rate conversion applies.
type Finnhub struct {
	symbol domain.Symbol
	ticker string
	wsURL  string
	apiKey string
}

// NewFinnhub creates a Finnhub adapter bound to the given symbol.
func NewFinnhub(symbol domain.Symbol, wsURL, apiKey string) *Finnhub {
	if wsURL == "" {
		wsURL = defaultFinnhubWS
	}
	return &Finnhub{
		symbol: symbol,
		ticker: finnhubSymbols[symbol],
		wsURL:  wsURL,
		apiKey: apiKey,
	}
}

func (f *Finnhub) Source() domain.DataSource { return domain.SourceFinnhub }

func (f *Finnhub) URL() string {
	if f.wsURL == "" {
		return ""
	}
	u := f.wsURL
	if f.apiKey != "" {
		u += "?token=" + f.apiKey
	}
	return u
}

// OnConnect subscribes to the bound ticker.
func (f *Finnhub) OnConnect(send SendFunc) error {
	if f.ticker == "" {
		return nil
	}
	return send(map[string]string{
		"type":   "subscribe",
		"symbol": f.ticker,
	})
}

func (f *Finnhub) Heartbeat() (any, time.Duration) { return nil, 0 }

// finnhubTrades is the trade message: a batch of last prices.
type finnhubTrades struct {
	Type string `json:"type"`
	Data []struct {
		Symbol    string  `json:"s"`
		Price     float64 `json:"p"`
		Timestamp int64   `json:"t"` // Unix milliseconds
		Volume    float64 `json:"v"`
	} `json:"data"`
}

func (f *Finnhub) Normalize(raw []byte, _ float64) (domain.PricePoint, bool) {
	var msg finnhubTrades
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PricePoint{}, false
	}
	// The server interleaves {"type":"ping"} frames.
	if msg.Type != "trade" || f.ticker == "" {
		return domain.PricePoint{}, false
	}

	// Take the newest trade for our ticker; batches are append-ordered.
	for i := len(msg.Data) - 1; i >= 0; i-- {
		trade := msg.Data[i]
		if !strings.EqualFold(trade.Symbol, f.ticker) {
			continue
		}
		ts := time.Now().UTC()
		if trade.Timestamp > 0 {
			ts = time.UnixMilli(trade.Timestamp).UTC()
		}
		return domain.PricePoint{
			Price:     trade.Price,
			Timestamp: ts,
		}, true
	}
	return domain.PricePoint{}, false
}
