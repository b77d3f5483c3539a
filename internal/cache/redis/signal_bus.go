package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/pricedash/internal/domain"
)

// SignalBus implements domain.SignalBus using Redis Pub/Sub. Metric
// updates published here fan out to every WebSocket hub instance.
type SignalBus struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish sends a raw byte payload to a Redis Pub/Sub channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a Redis Pub/Sub subscription and returns a read-only
// channel of raw payloads. The subscription ends, and the channel closes,
// when the context is cancelled or the bus is closed.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = sb.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channel)
	}

	// Verify the subscription is established before handing it out.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	sb.mu.Lock()
	sb.subs = append(sb.subs, pubsub)
	sb.mu.Unlock()

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close terminates every active subscription. The underlying connection
// belongs to the Client and is closed separately.
func (sb *SignalBus) Close() error {
	sb.mu.Lock()
	subs := sb.subs
	sb.subs = nil
	sb.mu.Unlock()

	var firstErr error
	for _, ps := range subs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// hasPattern reports whether the channel name includes glob-style
// wildcards, in which case PSubscribe must be used instead of Subscribe.
func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
