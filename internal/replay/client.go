// Package replay re-emits recorded history through the metrics pipeline at
// a user-controlled speed, preserving the original inter-tick timing
// ratios. It fetches paginated batches from the historical query service
// with bounded retry and paces each point so downstream consumers cannot
// tell replay from live data.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

const (
	// BatchSize is the maximum number of points requested per fetch.
	BatchSize = 1000

	// maxAttempts bounds the retry loop; the error surfaces only after
	// the final attempt fails.
	maxAttempts = 5

	// retryBase seeds the exponential backoff between attempts.
	retryBase = 100 * time.Millisecond

	// jitterFrac is the maximum proportional jitter added to each delay.
	jitterFrac = 0.10
)

// sleepFunc suspends for d or until ctx is cancelled. Injectable in tests.
type sleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client fetches history batches over HTTP, retrying failed requests with
// exponential backoff and jitter.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	sleep   sleepFunc
	logger  *slog.Logger
}

// ClientOption mutates a Client during construction.
type ClientOption func(*Client)

// WithAPIKey attaches an X-API-Key header to every request, for query
// services behind key authentication.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) { c.apiKey = key }
}

// NewClient creates a Client for the query service at baseURL.
func NewClient(baseURL string, logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		sleep:   defaultSleep,
		logger:  logger.With(slog.String("component", "history_client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchBatch requests up to BatchSize points for the symbol at or after
// startAt (Unix milliseconds) across the given sources. A failed request is
// retried up to maxAttempts times with delay retryBase·e^attempt plus up to
// 10% jitter; only the final failure is surfaced.
func (c *Client) FetchBatch(ctx context.Context, symbol domain.Symbol, startAt int64, sources []domain.DataSource) (domain.HistoryBatch, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		batch, err := c.fetchOnce(ctx, symbol, startAt, sources)
		if err == nil {
			return batch, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return domain.HistoryBatch{}, ctx.Err()
		}
		if attempt == maxAttempts {
			break
		}

		delay := backoffDelay(attempt)
		c.logger.Warn("history fetch failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return domain.HistoryBatch{}, err
		}
	}
	return domain.HistoryBatch{}, fmt.Errorf("replay: %w after %d attempts: %w", domain.ErrRetriesExceeded, maxAttempts, lastErr)
}

// backoffDelay computes retryBase·e^attempt with up to jitterFrac of
// proportional jitter.
func backoffDelay(attempt int) time.Duration {
	base := float64(retryBase) * math.Exp(float64(attempt))
	return time.Duration(base * (1 + jitterFrac*rand.Float64()))
}

func (c *Client) fetchOnce(ctx context.Context, symbol domain.Symbol, startAt int64, sources []domain.DataSource) (domain.HistoryBatch, error) {
	u, err := url.Parse(c.baseURL + "/history/" + url.PathEscape(string(symbol)))
	if err != nil {
		return domain.HistoryBatch{}, fmt.Errorf("replay: build url: %w", err)
	}

	q := u.Query()
	q.Set("startAt", time.UnixMilli(startAt).UTC().Format(time.RFC3339Nano))
	q.Set("limit", fmt.Sprint(BatchSize))
	for _, src := range sources {
		q.Add("datasources[]", string(src))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.HistoryBatch{}, fmt.Errorf("replay: build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.HistoryBatch{}, fmt.Errorf("replay: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.HistoryBatch{}, fmt.Errorf("replay: fetch: unexpected status %d", resp.StatusCode)
	}

	var batch domain.HistoryBatch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return domain.HistoryBatch{}, fmt.Errorf("replay: decode batch: %w", err)
	}
	return batch, nil
}
