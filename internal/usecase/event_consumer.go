package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"TradeDeck/internal/domain/models"
	drepo "TradeDeck/internal/domain/repository"
	mid "TradeDeck/internal/middleware"
	"TradeDeck/internal/store"
	applogger "TradeDeck/pkg/logger"
)

// reconnectRetryDelay spaces repeated reconnect attempts when the stream
// keeps failing.
const reconnectRetryDelay = 3 * time.Second

// EventConsumer reads push events from the trading stream and feeds them
// into the reconciliation store, the notification list and the journal.
type EventConsumer struct {
	stream    drepo.EventStream
	token     string
	st        *store.Store
	notifs    *store.NotificationList
	refresher *Refresher
	journal   drepo.Journal
	pipe      *mid.PricePipeline
	metrics   drepo.Metrics
	logger    *applogger.Logger
}

// NewEventConsumer creates a new EventConsumer instance.
func NewEventConsumer(
	stream drepo.EventStream,
	token string,
	st *store.Store,
	notifs *store.NotificationList,
	refresher *Refresher,
	journal drepo.Journal,
	pipe *mid.PricePipeline,
	metrics drepo.Metrics,
	logger *applogger.Logger,
) *EventConsumer {
	return &EventConsumer{
		stream:    stream,
		token:     token,
		st:        st,
		notifs:    notifs,
		refresher: refresher,
		journal:   journal,
		pipe:      pipe,
		metrics:   metrics,
		logger:    logger,
	}
}

// IsConnected reports whether the trading stream is connected.
func (c *EventConsumer) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and launches the consume loop.
func (c *EventConsumer) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx, c.token); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	evCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, evCh, errCh)
	return nil
}

func (c *EventConsumer) consume(ctx context.Context, evCh <-chan *models.Envelope, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok || err != nil {
				if err != nil {
					c.metrics.RecordError("stream")
				}
				if !c.recover(ctx) {
					return
				}
				evCh, errCh = c.stream.Read(ctx)
			}
		case env, ok := <-evCh:
			if !ok {
				if !c.recover(ctx) {
					return
				}
				evCh, errCh = c.stream.Read(ctx)
				continue
			}
			if env == nil {
				continue
			}
			c.dispatch(ctx, env)
		}
	}
}

// recover reconnects the stream, retrying until it succeeds or the
// context ends, then refetches both collections: events may have been
// missed while disconnected.
func (c *EventConsumer) recover(ctx context.Context) bool {
	for {
		err := c.stream.Reconnect(ctx)
		if err == nil {
			break
		}
		c.logger.Error("stream reconnect failed", applogger.Error(err))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(reconnectRetryDelay):
		}
	}

	if err := c.refresher.RefreshAll(ctx); err != nil {
		c.logger.Warn("refetch after reconnect failed", applogger.Error(err))
	}
	return true
}

func (c *EventConsumer) dispatch(ctx context.Context, env *models.Envelope) {
	switch env.Type {
	case models.EventOrderUpdate:
		c.handleOrderUpdate(ctx, env.Data)
	case models.EventPriceUpdate:
		c.handlePriceUpdate(ctx, env.Data)
	case models.EventRecipeSignal:
		c.handleRecipeSignal(ctx, env.Data)
	default:
		c.metrics.RecordEventDiscarded(string(env.Type), "unknown_type")
	}
}

func (c *EventConsumer) handleOrderUpdate(ctx context.Context, data json.RawMessage) {
	var e models.OrderUpdateEvent
	if err := json.Unmarshal(data, &e); err != nil {
		c.metrics.RecordEventDiscarded(string(models.EventOrderUpdate), "malformed")
		return
	}

	applied, err := c.st.ApplyOrderUpdate(&e)
	if errors.Is(err, store.ErrUnknownOrder) || errors.Is(err, store.ErrOrderConflict) {
		c.logger.Warn("order state diverged, refetching",
			applogger.String("order_id", e.OrderID),
			applogger.Error(err))
		if rErr := c.refresher.RefreshOrders(ctx); rErr != nil {
			c.logger.Error("forced order refetch failed", applogger.Error(rErr))
		}
		return
	}
	if err != nil {
		c.metrics.RecordEventDiscarded(string(models.EventOrderUpdate), "invalid")
		return
	}
	if !applied {
		return
	}

	if jErr := c.journal.RecordOrderUpdate(ctx, &e); jErr != nil {
		c.logger.Warn("journal order update failed", applogger.Error(jErr))
	}
}

func (c *EventConsumer) handlePriceUpdate(ctx context.Context, data json.RawMessage) {
	var e models.PriceUpdateEvent
	if err := json.Unmarshal(data, &e); err != nil {
		c.metrics.RecordEventDiscarded(string(models.EventPriceUpdate), "malformed")
		return
	}
	if err := e.Validate(); err != nil {
		c.metrics.RecordEventDiscarded(string(models.EventPriceUpdate), "invalid")
		return
	}
	c.st.ApplyPriceUpdate(&e)
	if c.pipe != nil {
		_ = c.pipe.Process(ctx, &e)
	}
}

func (c *EventConsumer) handleRecipeSignal(ctx context.Context, data json.RawMessage) {
	var e models.RecipeSignalEvent
	if err := json.Unmarshal(data, &e); err != nil {
		c.metrics.RecordEventDiscarded(string(models.EventRecipeSignal), "malformed")
		return
	}
	if err := e.Validate(); err != nil {
		c.metrics.RecordEventDiscarded(string(models.EventRecipeSignal), "invalid")
		return
	}

	n := c.notifs.Add(&e)
	c.metrics.RecordEventApplied(string(models.EventRecipeSignal))
	c.logger.Info("recipe signal",
		applogger.String("recipe_id", e.RecipeID),
		applogger.String("signal_type", string(e.SignalType)),
		applogger.String("notification_id", n.ID))

	if jErr := c.journal.RecordRecipeSignal(ctx, &e); jErr != nil {
		c.logger.Warn("journal recipe signal failed", applogger.Error(jErr))
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *EventConsumer) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
