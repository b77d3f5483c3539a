package domain

import "time"

// CurrentPriceMetrics is the derived latest-value row kept per
// (source, symbol). Change and ChangePercent compare against the metric's
// own previous price, so the first observation always reports zero change.
type CurrentPriceMetrics struct {
	Price         float64   `json:"price"`
	Bid           float64   `json:"bid,omitempty"`
	Ask           float64   `json:"ask,omitempty"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Timestamp     time.Time `json:"timestamp"`
}

// NextMetrics derives the metrics row for a new point given the previous
// row, if any. With no previous row the change fields are zero.
func NextMetrics(prev *CurrentPriceMetrics, p PricePoint) CurrentPriceMetrics {
	m := CurrentPriceMetrics{
		Price:     p.Price,
		Bid:       p.Bid,
		Ask:       p.Ask,
		Timestamp: p.Timestamp,
	}
	if prev == nil {
		return m
	}
	m.Change = p.Price - prev.Price
	if prev.Price > 0 {
		m.ChangePercent = m.Change / prev.Price * 100
	}
	return m
}
