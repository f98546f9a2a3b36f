package repository

import (
	"context"
	"time"

	"TradeDeck/internal/domain/models"
	"TradeDeck/internal/domain/repository"
)

// NoopJournal is used when journaling is disabled.
type NoopJournal struct{}

func NewNoopJournal() repository.Journal { return NoopJournal{} }

func (NoopJournal) RecordOrderUpdate(context.Context, *models.OrderUpdateEvent) error { return nil }
func (NoopJournal) RecordRecipeSignal(context.Context, *models.RecipeSignalEvent) error {
	return nil
}
func (NoopJournal) Close() error { return nil }

// NoopTickStore is used when tick history is disabled.
type NoopTickStore struct{}

func NewNoopTickStore() repository.TickStore { return NoopTickStore{} }

func (NoopTickStore) StoreBatch(context.Context, []*models.PriceUpdateEvent) error { return nil }
func (NoopTickStore) Query(context.Context, string, time.Time, time.Time, int) ([]*models.PriceUpdateEvent, error) {
	return nil, nil
}
func (NoopTickStore) Health(context.Context) error                                 { return nil }
func (NoopTickStore) Close() error                                                 { return nil }
