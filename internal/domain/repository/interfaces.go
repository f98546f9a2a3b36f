package repository

import (
	"context"
	"time"

	"TradeDeck/internal/domain/models"
)

// Brokerage is the REST backend the session talks to. It owns recipes,
// orders and positions; the client only caches what it returns.
type Brokerage interface {
	GetRecipe(ctx context.Context, id string) (*models.Recipe, error)
	SaveRecipe(ctx context.Context, r *models.Recipe) (*models.Recipe, error)
	ActivateRecipe(ctx context.Context, id string) (*models.Recipe, error)
	ExecuteRecipe(ctx context.Context, id string) (*models.ExecutionResult, error)
	ListRecipeOrders(ctx context.Context, recipeID string, limit int) ([]*models.Order, error)

	ListPositions(ctx context.Context) ([]*models.Position, error)
	ListOrders(ctx context.Context, limit int) ([]*models.Order, error)
	SubmitOrder(ctx context.Context, req *models.ManualOrderRequest) (*models.Order, error)

	GetSearchJob(ctx context.Context, id string) (*models.SearchJob, error)
}

// EventStream is the persistent duplex channel delivering push events for
// the "trading" topic. Reconnection is the stream's own concern; consumers
// must tolerate duplicate delivery.
type EventStream interface {
	Connect(ctx context.Context, token string) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Envelope, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Journal records reconciled order transitions and recipe signals for
// downstream analytics. Append-only; failures never block reconciliation.
type Journal interface {
	RecordOrderUpdate(ctx context.Context, e *models.OrderUpdateEvent) error
	RecordRecipeSignal(ctx context.Context, e *models.RecipeSignalEvent) error
	Close() error
}

// TickStore persists price ticks for dashboard chart history.
type TickStore interface {
	StoreBatch(ctx context.Context, ticks []*models.PriceUpdateEvent) error
	Query(ctx context.Context, stockCode string, from, to time.Time, limit int) ([]*models.PriceUpdateEvent, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational metrics for the session engine.
type Metrics interface {
	RecordEventApplied(eventType string)
	RecordEventDiscarded(eventType, reason string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordOpenPositions(n int)
	RecordLatency(op string, seconds float64)
}
