package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"TradeDeck/internal/domain/models"
	drepo "TradeDeck/internal/domain/repository"
	applogger "TradeDeck/pkg/logger"
)

// Topic is the realtime topic carrying trading push events.
const Topic = "trading"

// Client implements an EventStream backed by the brokerage WebSocket
// endpoint. It handles the handshake, topic subscription, ping keepalive
// and reconnect; payload interpretation stays with the consumer.
type Client struct {
	url            string
	token          string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	metrics        drepo.Metrics
	logger         *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a new brokerage EventStream.
func New(url string, reconnectDelay, pingInterval time.Duration, metrics drepo.Metrics, logger *applogger.Logger) drepo.EventStream {
	return &Client{
		url:            url,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		metrics:        metrics,
		logger:         logger,
	}
}

// Connect establishes the WebSocket connection with the session token.
func (c *Client) Connect(ctx context.Context, token string) error {
	u := fmt.Sprintf("%s?token=%s", c.url, token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.conn = conn
	c.token = token
	c.connected = true
	c.logger.Info("stream connected")
	return nil
}

// Subscribe subscribes to the trading topic.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("stream not connected")
	}
	msg := map[string]string{"type": "subscribe", "topic": Topic}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe %s: %w", Topic, err)
	}
	c.logger.Info("stream subscribed", applogger.String("topic", Topic))
	return nil
}

// Read streams raw event envelopes and errors. Frames that are not valid
// envelopes (acks, heartbeats) are skipped; payload validation happens at
// the consumer boundary.
func (c *Client) Read(ctx context.Context) (<-chan *models.Envelope, <-chan error) {
	events := make(chan *models.Envelope, 256)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				var env models.Envelope
				if err := json.Unmarshal(b, &env); err != nil {
					// ignore non-event frames
					continue
				}
				if env.Type == "" || len(env.Data) == 0 {
					continue
				}
				if !deliver(ctx, events, &env, c.metrics) {
					return
				}
			}
		}
	}()

	return events, errs
}

// deliver queues an envelope for the consumer. Ticks may be dropped and
// counted when the buffer is full; lifecycle events are never dropped,
// the read loop blocks until the consumer drains. Returns false only
// when the context ended mid-wait.
func deliver(ctx context.Context, events chan<- *models.Envelope, env *models.Envelope, metrics drepo.Metrics) bool {
	if env.Type == models.EventPriceUpdate {
		select {
		case events <- env:
		default:
			metrics.RecordEventDiscarded(string(env.Type), "backpressure")
		}
		return true
	}
	select {
	case events <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

// Reconnect closes and reconnects with the last token, then resubscribes.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx, c.token); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
