// Package rate fetches the USDT→USD conversion rate that USDT-quoted
// adapters apply before emitting canonical points. The rate comes from the
// oracle network's REST endpoint and is refreshed on an interval; until the
// first successful fetch the rate is unavailable and USDT-quoted points are
// dropped at the adapter boundary.
package rate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/pricedash/internal/adapter"
	"github.com/alanyoungcy/pricedash/internal/domain"
)

// usdtFeedID is the USDT/USD feed on the oracle network.
const usdtFeedID = "2b89b9dc8fdf9f34709a5b106b472f0f39bb6ca9ce04b0fd7f2e971688e2e53b"

const defaultEndpoint = "https://hermes.pyth.network/v2/updates/price/latest?ids[]=" + usdtFeedID

// defaultRefresh is how often the rate is re-fetched once available.
const defaultRefresh = time.Minute

// Converter holds the latest fetched rate. The zero value is unusable; use
// New.
type Converter struct {
	endpoint string
	refresh  time.Duration
	client   *http.Client
	logger   *slog.Logger

	mu      sync.RWMutex
	rate    float64
	fetched bool
	lastErr error
}

// Option mutates a Converter during construction.
type Option func(*Converter)

// WithEndpoint overrides the rate endpoint, primarily for tests.
func WithEndpoint(url string) Option {
	return func(c *Converter) { c.endpoint = url }
}

// WithBaseURL points the converter at a different oracle REST host while
// keeping the standard feed path.
func WithBaseURL(base string) Option {
	return func(c *Converter) {
		c.endpoint = strings.TrimRight(base, "/") + "/v2/updates/price/latest?ids[]=" + usdtFeedID
	}
}

// WithRefresh overrides the refresh interval.
func WithRefresh(d time.Duration) Option {
	return func(c *Converter) { c.refresh = d }
}

// New creates a Converter. Call Run to start fetching.
func New(logger *slog.Logger, opts ...Option) *Converter {
	c := &Converter{
		endpoint: defaultEndpoint,
		refresh:  defaultRefresh,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger.With(slog.String("component", "rate_converter")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rate returns the current USDT→USD rate and whether one is available.
func (c *Converter) Rate() (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rate, c.fetched
}

// Err returns the error from the most recent fetch attempt, or nil. A
// non-nil error does not invalidate an earlier successful rate.
func (c *Converter) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Run fetches the rate immediately and then on every refresh interval until
// the context is cancelled. Fetch failures are recorded and logged, never
// fatal.
func (c *Converter) Run(ctx context.Context) error {
	c.fetchOnce(ctx)

	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.fetchOnce(ctx)
		}
	}
}

func (c *Converter) fetchOnce(ctx context.Context) {
	rate, err := c.Fetch(ctx)

	c.mu.Lock()
	c.lastErr = err
	if err == nil {
		c.rate = rate
		c.fetched = true
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.WarnContext(ctx, "rate fetch failed", slog.String("error", err.Error()))
		return
	}
	c.logger.DebugContext(ctx, "rate refreshed", slog.Float64("rate", rate))
}

// rateResponse is the oracle REST envelope; the consumed value is
// parsed[0].price.price scaled by 10^expo.
type rateResponse struct {
	Parsed []struct {
		Price struct {
			Price string `json:"price"`
			Expo  int    `json:"expo"`
		} `json:"price"`
	} `json:"parsed"`
}

// Fetch performs a single rate request and returns the scaled value.
func (c *Converter) Fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("rate: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rate: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate: fetch: unexpected status %d", resp.StatusCode)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("rate: decode response: %w", err)
	}
	if len(body.Parsed) == 0 {
		return 0, fmt.Errorf("rate: %w: empty parsed array", domain.ErrRateUnavailable)
	}

	mantissa, err := strconv.ParseInt(body.Parsed[0].Price.Price, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("rate: parse mantissa: %w", err)
	}

	rate := adapter.ScalePrice(mantissa, body.Parsed[0].Price.Expo)
	if rate <= 0 {
		return 0, fmt.Errorf("rate: %w: non-positive rate %v", domain.ErrRateUnavailable, rate)
	}
	return rate, nil
}
