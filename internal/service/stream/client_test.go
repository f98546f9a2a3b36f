package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeDeck/internal/domain/models"
)

type countingMetrics struct {
	discarded map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{discarded: make(map[string]int)}
}

func (m *countingMetrics) RecordEventApplied(string) {}
func (m *countingMetrics) RecordEventDiscarded(eventType, reason string) {
	m.discarded[eventType+"/"+reason]++
}
func (m *countingMetrics) RecordError(string)              {}
func (m *countingMetrics) RecordLastPrice(string, float64) {}
func (m *countingMetrics) RecordOpenPositions(int)         {}
func (m *countingMetrics) RecordLatency(string, float64)   {}

func envelope(t models.EventType) *models.Envelope {
	return &models.Envelope{Type: t, Data: []byte(`{}`)}
}

func TestDeliverDropsAndCountsTicksWhenFull(t *testing.T) {
	m := newCountingMetrics()
	events := make(chan *models.Envelope, 1)
	events <- envelope(models.EventPriceUpdate)

	ok := deliver(context.Background(), events, envelope(models.EventPriceUpdate), m)
	assert.True(t, ok)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, m.discarded["price_update/backpressure"])
}

func TestDeliverNeverDropsOrderEvents(t *testing.T) {
	m := newCountingMetrics()
	events := make(chan *models.Envelope, 1)
	events <- envelope(models.EventPriceUpdate)

	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		require.True(t, deliver(context.Background(), events, envelope(models.EventOrderUpdate), m))
	}()

	// the order event waits for the consumer instead of dropping
	<-events
	<-delivered
	got := <-events
	assert.Equal(t, models.EventOrderUpdate, got.Type)
	assert.Empty(t, m.discarded)
}

func TestDeliverUnblocksOnContextEnd(t *testing.T) {
	m := newCountingMetrics()
	events := make(chan *models.Envelope, 1)
	events <- envelope(models.EventPriceUpdate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, deliver(ctx, events, envelope(models.EventOrderUpdate), m))
}
