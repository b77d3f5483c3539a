package adapter

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

const defaultLazerWS = "wss://pyth-lazer.dourolabs.app/v1/stream"

// lazerPingInterval re-arms the authenticated session; the service closes
// sockets that have not pinged within a minute.
const lazerPingInterval = 30 * time.Second

// lazerExpo is the fixed price exponent of the low-latency feed.
const lazerExpo = -8

// lazerFeedIDs maps catalogue symbols to the low-latency service's small
// integer feed ids.
var lazerFeedIDs = map[domain.Symbol]int{
	"BTC": 1,
	"ETH": 2,
	"SOL": 6,
}

// Lazer streams the low-latency oracle variant. Feeds are identified by
// small integers, prices are mantissa strings with a fixed exponent, and
// the session requires a bearer token plus a periodic ping.
type Lazer struct {
	symbol domain.Symbol
	feedID int
	wsURL  string
	token  string
}

// NewLazer creates a Lazer adapter bound to the given symbol.
func NewLazer(symbol domain.Symbol, wsURL, token string) *Lazer {
	if wsURL == "" {
		wsURL = defaultLazerWS
	}
	return &Lazer{
		symbol: symbol,
		feedID: lazerFeedIDs[symbol],
		wsURL:  wsURL,
		token:  token,
	}
}

func (l *Lazer) Source() domain.DataSource { return domain.SourceLazer }

func (l *Lazer) URL() string { return l.wsURL }

// OnConnect authenticates and subscribes to the bound feed.
func (l *Lazer) OnConnect(send SendFunc) error {
	if l.feedID == 0 {
		return nil
	}
	return send(map[string]any{
		"type":           "subscribe",
		"subscriptionId": 1,
		"token":          l.token,
		"priceFeedIds":   []int{l.feedID},
		"properties":     []string{"price"},
		"formats":        []string{"json"},
	})
}

func (l *Lazer) Heartbeat() (any, time.Duration) {
	return map[string]any{"type": "ping"}, lazerPingInterval
}

// lazerStream is the streamUpdated envelope of the low-latency feed.
type lazerStream struct {
	Type           string `json:"type"`
	SubscriptionID int    `json:"subscriptionId"`
	Parsed         struct {
		TimestampUs string `json:"timestampUs"`
		PriceFeeds  []struct {
			PriceFeedID int    `json:"priceFeedId"`
			Price       string `json:"price"`
		} `json:"priceFeeds"`
	} `json:"parsed"`
}

func (l *Lazer) Normalize(raw []byte, _ float64) (domain.PricePoint, bool) {
	var msg lazerStream
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PricePoint{}, false
	}
	// "subscribed" acks and "pong" echoes are dropped.
	if msg.Type != "streamUpdated" || l.feedID == 0 {
		return domain.PricePoint{}, false
	}

	for _, feed := range msg.Parsed.PriceFeeds {
		if feed.PriceFeedID != l.feedID {
			continue
		}
		mantissa, err := strconv.ParseInt(feed.Price, 10, 64)
		if err != nil {
			return domain.PricePoint{}, false
		}

		ts := time.Now().UTC()
		if us, err := strconv.ParseInt(msg.Parsed.TimestampUs, 10, 64); err == nil {
			ts = time.UnixMicro(us).UTC()
		}

		return domain.PricePoint{
			Price:     ScalePrice(mantissa, lazerExpo),
			Timestamp: ts,
		}, true
	}
	return domain.PricePoint{}, false
}
