package adapter

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

const defaultCoinbaseWS = "wss://advanced-trade-ws.coinbase.com"

// Coinbase streams the level2 channel, which only delivers an initial
// snapshot followed by incremental level updates. The adapter therefore
// maintains local bid/ask ladders (price level → quantity) and recomputes
// the best bid/ask after every mutation. The product is USD-quoted, so no
// rate conversion applies.
type Coinbase struct {
	symbol  domain.Symbol
	product string // e.g. BTC-USD
	wsURL   string

	bids map[string]string
	asks map[string]string
}

// NewCoinbase creates a Coinbase adapter bound to the given symbol.
func NewCoinbase(symbol domain.Symbol, wsURL string) *Coinbase {
	if wsURL == "" {
		wsURL = defaultCoinbaseWS
	}
	return &Coinbase{
		symbol:  symbol,
		product: string(symbol) + "-USD",
		wsURL:   wsURL,
		bids:    make(map[string]string),
		asks:    make(map[string]string),
	}
}

func (c *Coinbase) Source() domain.DataSource { return domain.SourceCoinbase }

func (c *Coinbase) URL() string { return c.wsURL }

// OnConnect subscribes to the level2 channel for the bound product.
func (c *Coinbase) OnConnect(send SendFunc) error {
	return send(map[string]any{
		"type":        "subscribe",
		"product_ids": []string{c.product},
		"channel":     "level2",
	})
}

func (c *Coinbase) Heartbeat() (any, time.Duration) { return nil, 0 }

type coinbaseLevel struct {
	Side        string `json:"side"` // "bid" or "offer"
	PriceLevel  string `json:"price_level"`
	NewQuantity string `json:"new_quantity"`
}

type coinbaseEvent struct {
	Type      string          `json:"type"` // "snapshot" or "update"
	ProductID string          `json:"product_id"`
	Bids      []coinbaseLevel `json:"bids"`
	Asks      []coinbaseLevel `json:"asks"`
	Updates   []coinbaseLevel `json:"updates"`
}

type coinbaseEnvelope struct {
	Channel string          `json:"channel"`
	Type    string          `json:"type"`
	Events  []coinbaseEvent `json:"events"`
}

func (c *Coinbase) Normalize(raw []byte, _ float64) (domain.PricePoint, bool) {
	var msg coinbaseEnvelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PricePoint{}, false
	}
	// Subscription confirmations and heartbeats arrive on other channels.
	if msg.Channel != "l2_data" || len(msg.Events) == 0 {
		return domain.PricePoint{}, false
	}

	mutated := false
	for _, event := range msg.Events {
		if event.ProductID != c.product {
			continue
		}
		switch event.Type {
		case "snapshot":
			c.applySnapshot(event)
			mutated = true
		case "update":
			if c.applyUpdates(event.Updates) {
				mutated = true
			}
		}
	}
	if !mutated {
		return domain.PricePoint{}, false
	}

	bid, ask, ok := c.bbo()
	if !ok {
		return domain.PricePoint{}, false
	}
	return domain.PricePoint{
		Price:     domain.MidPrice(bid, ask),
		Bid:       bid,
		Ask:       ask,
		Timestamp: time.Now().UTC(),
	}, true
}

// applySnapshot replaces both ladders with the snapshot contents. Levels
// with zero quantity are not stored.
func (c *Coinbase) applySnapshot(event coinbaseEvent) {
	c.bids = make(map[string]string, len(event.Bids))
	c.asks = make(map[string]string, len(event.Asks))
	for _, lvl := range event.Bids {
		if qty, err := strconv.ParseFloat(lvl.NewQuantity, 64); err == nil && qty > 0 {
			c.bids[lvl.PriceLevel] = lvl.NewQuantity
		}
	}
	for _, lvl := range event.Asks {
		if qty, err := strconv.ParseFloat(lvl.NewQuantity, 64); err == nil && qty > 0 {
			c.asks[lvl.PriceLevel] = lvl.NewQuantity
		}
	}
}

// applyUpdates applies incremental level changes. Quantity 0 removes the
// level; anything else sets it.
func (c *Coinbase) applyUpdates(updates []coinbaseLevel) bool {
	applied := false
	for _, u := range updates {
		var ladder map[string]string
		switch u.Side {
		case "bid":
			ladder = c.bids
		case "offer":
			ladder = c.asks
		default:
			continue
		}

		qty, err := strconv.ParseFloat(u.NewQuantity, 64)
		if err != nil {
			continue
		}
		if qty == 0 {
			delete(ladder, u.PriceLevel)
		} else {
			ladder[u.PriceLevel] = u.NewQuantity
		}
		applied = true
	}
	return applied
}

// bbo scans the ladders for the highest bid and lowest ask.
func (c *Coinbase) bbo() (bid, ask float64, ok bool) {
	if len(c.bids) == 0 || len(c.asks) == 0 {
		return 0, 0, false
	}

	first := true
	for lvl := range c.bids {
		p, err := strconv.ParseFloat(lvl, 64)
		if err != nil {
			continue
		}
		if first || p > bid {
			bid = p
			first = false
		}
	}
	if first {
		return 0, 0, false
	}

	first = true
	for lvl := range c.asks {
		p, err := strconv.ParseFloat(lvl, 64)
		if err != nil {
			continue
		}
		if first || p < ask {
			ask = p
			first = false
		}
	}
	if first {
		return 0, 0, false
	}

	return bid, ask, true
}
