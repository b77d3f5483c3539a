package adapter

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

const defaultOKXWS = "wss://ws.okx.com:8443/ws/v5/public"

// okxPingInterval keeps the connection alive; OKX drops sockets that stay
// silent for 30 seconds.
const okxPingInterval = 25 * time.Second

// OKX streams the tickers channel for the USDT-quoted instrument and sends
// a periodic text "ping" keepalive.
type OKX struct {
	symbol domain.Symbol
	instID string // e.g. BTC-USDT
	wsURL  string
}

// NewOKX creates an OKX adapter bound to the given symbol.
func NewOKX(symbol domain.Symbol, wsURL string) *OKX {
	if wsURL == "" {
		wsURL = defaultOKXWS
	}
	return &OKX{
		symbol: symbol,
		instID: strings.ToUpper(string(symbol)) + "-USDT",
		wsURL:  wsURL,
	}
}

func (o *OKX) Source() domain.DataSource { return domain.SourceOKX }

func (o *OKX) URL() string { return o.wsURL }

// OnConnect subscribes to the tickers channel for the bound instrument.
func (o *OKX) OnConnect(send SendFunc) error {
	return send(map[string]any{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": "tickers", "instId": o.instID},
		},
	})
}

func (o *OKX) Heartbeat() (any, time.Duration) {
	return "ping", okxPingInterval
}

// okxTickers is the tickers push envelope.
type okxTickers struct {
	Arg struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data []struct {
		InstID string `json:"instId"`
		BidPx  string `json:"bidPx"`
		AskPx  string `json:"askPx"`
		Ts     string `json:"ts"`
	} `json:"data"`
}

func (o *OKX) Normalize(raw []byte, quoteRate float64) (domain.PricePoint, bool) {
	if quoteRate == 0 {
		return domain.PricePoint{}, false
	}
	// The server echoes "pong" as plain text.
	if string(raw) == "pong" {
		return domain.PricePoint{}, false
	}

	var msg okxTickers
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PricePoint{}, false
	}
	if msg.Arg.Channel != "tickers" || len(msg.Data) == 0 {
		return domain.PricePoint{}, false
	}

	tick := msg.Data[0]
	if tick.InstID != o.instID {
		return domain.PricePoint{}, false
	}

	bid, err := strconv.ParseFloat(tick.BidPx, 64)
	if err != nil {
		return domain.PricePoint{}, false
	}
	ask, err := strconv.ParseFloat(tick.AskPx, 64)
	if err != nil {
		return domain.PricePoint{}, false
	}

	ts := time.Now().UTC()
	if ms, err := strconv.ParseInt(tick.Ts, 10, 64); err == nil {
		ts = time.UnixMilli(ms).UTC()
	}

	return domain.PricePoint{
		Price:     domain.MidPrice(bid, ask) * quoteRate,
		Bid:       bid * quoteRate,
		Ask:       ask * quoteRate,
		Timestamp: ts,
	}, true
}
