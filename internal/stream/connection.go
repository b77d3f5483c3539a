// Package stream owns the live-connection machinery: a source-agnostic
// WebSocket runner that drives any adapter, and the Orchestrator that keeps
// exactly the connection set implied by the currently selected symbol.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/pricedash/internal/adapter"
	"github.com/alanyoungcy/pricedash/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends protocol pings at this interval. Must be less than
	// pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second

	// handshakeTimeout bounds the WebSocket dial.
	handshakeTimeout = 15 * time.Second
)

// PointSink receives canonical points from every live connection.
type PointSink interface {
	AddDataPoint(ctx context.Context, source domain.DataSource, symbol domain.Symbol, p domain.PricePoint) error
}

// RateSource supplies the current USDT→USD rate to USDT-quoted adapters.
type RateSource interface {
	Rate() (float64, bool)
}

// Connection runs one adapter against its source endpoint: dial, subscribe
// handshake, optional heartbeat, read loop, and reconnect with exponential
// backoff until the context is cancelled.
type Connection struct {
	adapter adapter.Adapter
	symbol  domain.Symbol
	sink    PointSink
	rates   RateSource
	logger  *slog.Logger
}

// NewConnection creates a Connection for the given adapter and symbol.
func NewConnection(a adapter.Adapter, symbol domain.Symbol, sink PointSink, rates RateSource, logger *slog.Logger) *Connection {
	return &Connection{
		adapter: a,
		symbol:  symbol,
		sink:    sink,
		rates:   rates,
		logger: logger.With(
			slog.String("component", "connection"),
			slog.String("source", string(a.Source())),
			slog.String("symbol", string(symbol)),
		),
	}
}

// Run blocks until ctx is cancelled, reconnecting on every socket error.
// Sources without a URL (the synthetic historical adapter) return
// immediately; the replay engine owns that path.
func (c *Connection) Run(ctx context.Context) error {
	url := c.adapter.URL()
	if url == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.runOnce(ctx, url)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("connection dropped, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// runOnce performs a single connect/subscribe/read cycle and returns the
// error that ended it.
func (c *Connection) runOnce(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("stream: dial %s: %w", c.adapter.Source(), err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if s, ok := v.(string); ok {
			return conn.WriteMessage(websocket.TextMessage, []byte(s))
		}
		return conn.WriteJSON(v)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	if err := c.adapter.OnConnect(send); err != nil {
		return fmt.Errorf("stream: handshake %s: %w", c.adapter.Source(), err)
	}
	c.logger.Info("connected")

	// Keepalive goroutines: protocol pings, plus the adapter's own
	// heartbeat frame when it declares one.
	pingCtx, cancelPings := context.WithCancel(ctx)
	defer cancelPings()
	go c.pingLoop(pingCtx, conn, &writeMu)
	if msg, interval := c.adapter.Heartbeat(); interval > 0 {
		go c.heartbeatLoop(pingCtx, send, msg, interval)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("stream: read %s: %w: %w", c.adapter.Source(), domain.ErrWSDisconnect, err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		rate, _ := c.rates.Rate()
		p, ok := c.adapter.Normalize(raw, rate)
		if !ok {
			continue // wire noise is routine
		}

		if err := c.sink.AddDataPoint(ctx, c.adapter.Source(), c.symbol, p); err != nil {
			c.logger.Warn("sink rejected point", slog.String("error", err.Error()))
		}
	}
}

func (c *Connection) pingLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Connection) heartbeatLoop(ctx context.Context, send adapter.SendFunc, msg any, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := send(msg); err != nil {
				return
			}
		}
	}
}
