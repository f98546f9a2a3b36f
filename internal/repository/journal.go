package repository

import (
	"context"
	"time"

	"TradeDeck/internal/domain/models"
	"TradeDeck/internal/domain/repository"
	pkgkafka "TradeDeck/pkg/kafka"
)

// KafkaJournal implements Journal on a Kafka topic pair. Records are
// keyed so per-order and per-recipe ordering is preserved within a
// partition.
type KafkaJournal struct {
	producer     *pkgkafka.Producer
	ordersTopic  string
	signalsTopic string
}

// NewKafkaJournal creates a Kafka-backed journal.
func NewKafkaJournal(producer *pkgkafka.Producer, ordersTopic, signalsTopic string) repository.Journal {
	return &KafkaJournal{
		producer:     producer,
		ordersTopic:  ordersTopic,
		signalsTopic: signalsTopic,
	}
}

func (j *KafkaJournal) RecordOrderUpdate(ctx context.Context, e *models.OrderUpdateEvent) error {
	record := map[string]interface{}{
		"order_id":        e.OrderID,
		"recipe_id":       e.RecipeID,
		"status":          string(e.Status),
		"filled_quantity": e.FilledQuantity,
		"version":         e.Version,
		"recorded_at":     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if e.AvgFillPrice != nil {
		record["avg_fill_price"] = e.AvgFillPrice.String()
	}
	return j.producer.Publish(ctx, j.ordersTopic, []byte(e.OrderID), record)
}

func (j *KafkaJournal) RecordRecipeSignal(ctx context.Context, e *models.RecipeSignalEvent) error {
	record := map[string]interface{}{
		"recipe_id":   e.RecipeID,
		"recipe_name": e.RecipeName,
		"signal_type": string(e.SignalType),
		"stock_code":  e.StockCode,
		"recorded_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	return j.producer.Publish(ctx, j.signalsTopic, []byte(e.RecipeID), record)
}

func (j *KafkaJournal) Close() error {
	return j.producer.Close()
}
