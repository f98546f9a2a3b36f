package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeDeck/internal/domain/models"
)

func signalEvent() *models.RecipeSignalEvent {
	return &models.RecipeSignalEvent{
		RecipeID:   "r-1",
		RecipeName: "momentum basket",
		SignalType: models.SignalKindEntry,
		StockCode:  "600519",
	}
}

func TestNotificationAckRemoves(t *testing.T) {
	l := NewNotificationList(0)
	n := l.Add(signalEvent())

	require.Len(t, l.List(), 1)
	assert.True(t, l.Ack(n.ID))
	assert.Empty(t, l.List())
	assert.False(t, l.Ack(n.ID))
}

func TestNotificationAutoDismissAfterTTL(t *testing.T) {
	l := NewNotificationList(10 * time.Second)
	now := time.Now()
	l.now = func() time.Time { return now }

	n := l.Add(signalEvent())
	require.Len(t, l.List(), 1)

	now = now.Add(11 * time.Second)
	assert.Empty(t, l.List())
	assert.False(t, l.Ack(n.ID))
}

func TestNotificationListOldestFirst(t *testing.T) {
	l := NewNotificationList(time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	first := l.Add(signalEvent())
	now = now.Add(time.Second)
	second := l.Add(signalEvent())

	got := l.List()
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
}
