package domain

import "time"

// PricePoint is the canonical shape every adapter normalizes into. Prices
// are always expressed in USD regardless of the source's quote currency.
// Bid and Ask are zero when the source only publishes a single price.
type PricePoint struct {
	Price     float64
	Bid       float64
	Ask       float64
	Timestamp time.Time
}

// SourcedPoint is a PricePoint tagged with its origin, as persisted by the
// tick store and returned by the historical query service.
type SourcedPoint struct {
	Source DataSource `json:"source"`
	Symbol Symbol     `json:"symbol"`
	Price  float64    `json:"price"`
	Bid    float64    `json:"bid,omitempty"`
	Ask    float64    `json:"ask,omitempty"`
	// Timestamp is Unix milliseconds; replay pacing is computed from the
	// difference between consecutive values.
	Timestamp int64 `json:"timestamp"`
}

// Point converts the stored representation back into a canonical PricePoint.
func (p SourcedPoint) Point() PricePoint {
	return PricePoint{
		Price:     p.Price,
		Bid:       p.Bid,
		Ask:       p.Ask,
		Timestamp: time.UnixMilli(p.Timestamp),
	}
}

// MidPrice returns the average of best bid and best ask.
func MidPrice(bid, ask float64) float64 {
	return (bid + ask) / 2
}
