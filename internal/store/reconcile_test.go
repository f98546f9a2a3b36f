package store

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeDeck/internal/domain/models"
	applogger "TradeDeck/pkg/logger"
)

type fakeMetrics struct {
	applied   map[string]int
	discarded map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{applied: map[string]int{}, discarded: map[string]int{}}
}

func (m *fakeMetrics) RecordEventApplied(t string)               { m.applied[t]++ }
func (m *fakeMetrics) RecordEventDiscarded(t, reason string)     { m.discarded[t+"/"+reason]++ }
func (m *fakeMetrics) RecordError(string)                        {}
func (m *fakeMetrics) RecordLastPrice(string, float64)           {}
func (m *fakeMetrics) RecordOpenPositions(int)                   {}
func (m *fakeMetrics) RecordLatency(string, float64)             {}

func newTestStore(t *testing.T) (*Store, *fakeMetrics) {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	m := newFakeMetrics()
	return New(l, m), m
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func position(code string, qty int, cost string) *models.Position {
	return &models.Position{ID: "pos-" + code, StockCode: code, Quantity: qty, AvgCostPrice: dec(cost)}
}

func order(id string, status models.OrderStatus, version uint64) *models.Order {
	return &models.Order{
		ID:        id,
		StockCode: "600519",
		Side:      models.SideBuy,
		Type:      models.TypeMarket,
		Quantity:  100,
		Status:    status,
		Version:   version,
		CreatedAt: time.Now(),
	}
}

func TestFetchMovesCollectionOutOfEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	assert.False(t, s.PositionsLoaded())

	tok := s.BeginPositionsFetch()
	require.True(t, s.ApplyPositionsFetch(tok, []*models.Position{position("600519", 100, "1700")}))
	assert.True(t, s.PositionsLoaded())
	assert.Len(t, s.Positions(), 1)
}

func TestSlowFetchDiscardedAfterNewerFetchApplied(t *testing.T) {
	s, _ := newTestStore(t)

	// fetch A issued first, fetch B issued later but resolves first
	tokA := s.BeginOrdersFetch()
	tokB := s.BeginOrdersFetch()

	require.True(t, s.ApplyOrdersFetch(tokB, []*models.Order{order("o-2", models.StatusSubmitted, 1)}))
	assert.False(t, s.ApplyOrdersFetch(tokA, []*models.Order{order("o-1", models.StatusSubmitted, 1)}))

	orders := s.Orders(0)
	require.Len(t, orders, 1)
	assert.Equal(t, "o-2", orders[0].ID)
}

func TestInFlightFetchDiscardedAfterPushEvent(t *testing.T) {
	s, _ := newTestStore(t)

	tok := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok, []*models.Order{order("o-1", models.StatusSubmitted, 1)}))

	// a refetch goes out, then a push lands before it resolves
	slow := s.BeginOrdersFetch()
	applied, err := s.ApplyOrderUpdate(&models.OrderUpdateEvent{
		OrderID: "o-1", Status: models.StatusFilled, FilledQuantity: 100, Version: 2,
	})
	require.NoError(t, err)
	require.True(t, applied)

	// the stale snapshot must not roll the fill back
	assert.False(t, s.ApplyOrdersFetch(slow, []*models.Order{order("o-1", models.StatusSubmitted, 1)}))
	assert.Equal(t, models.StatusFilled, s.Order("o-1").Status)
}

func TestOrderUpdateIdempotentUnderDuplicateDelivery(t *testing.T) {
	s, _ := newTestStore(t)
	tok := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok, []*models.Order{order("o-1", models.StatusSubmitted, 1)}))

	ev := &models.OrderUpdateEvent{OrderID: "o-1", Status: models.StatusFilled, FilledQuantity: 100, Version: 2}
	applied, err := s.ApplyOrderUpdate(ev)
	require.NoError(t, err)
	require.True(t, applied)
	first := s.Order("o-1")

	// channel reconnect replays the same event
	applied, err = s.ApplyOrderUpdate(ev)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, first, s.Order("o-1"))
}

func TestStaleVersionDiscarded(t *testing.T) {
	s, m := newTestStore(t)
	tok := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok, []*models.Order{order("o-1", models.StatusSubmitted, 5)}))

	applied, err := s.ApplyOrderUpdate(&models.OrderUpdateEvent{
		OrderID: "o-1", Status: models.StatusFilled, FilledQuantity: 100, Version: 3,
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.StatusSubmitted, s.Order("o-1").Status)
	assert.Equal(t, 1, m.discarded["order_update/stale_version"])
}

func TestTerminalStatusNeverRegresses(t *testing.T) {
	s, m := newTestStore(t)
	tok := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok, []*models.Order{order("o-1", models.StatusFilled, 3)}))

	applied, err := s.ApplyOrderUpdate(&models.OrderUpdateEvent{
		OrderID: "o-1", Status: models.StatusSubmitted, Version: 4,
	})
	assert.ErrorIs(t, err, ErrOrderConflict)
	assert.False(t, applied)
	assert.Equal(t, models.StatusFilled, s.Order("o-1").Status)
	assert.Equal(t, 1, m.discarded["order_update/transition_conflict"])
}

func TestSkippedTransitionSurfacesConflict(t *testing.T) {
	s, m := newTestStore(t)
	tok := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok, []*models.Order{order("o-1", models.StatusPending, 1)}))

	// the submitted event was lost; filled arrives with a newer version
	applied, err := s.ApplyOrderUpdate(&models.OrderUpdateEvent{
		OrderID: "o-1", Status: models.StatusFilled, FilledQuantity: 100, Version: 3,
	})
	assert.ErrorIs(t, err, ErrOrderConflict)
	assert.False(t, applied)
	assert.Equal(t, models.StatusPending, s.Order("o-1").Status)
	assert.Equal(t, 1, m.discarded["order_update/transition_conflict"])
}

func TestUnknownOrderTriggersConflict(t *testing.T) {
	s, _ := newTestStore(t)
	tok := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok, nil))

	applied, err := s.ApplyOrderUpdate(&models.OrderUpdateEvent{
		OrderID: "ghost", Status: models.StatusFilled, Version: 1,
	})
	assert.ErrorIs(t, err, ErrUnknownOrder)
	assert.False(t, applied)
	assert.Empty(t, s.Orders(0))
}

func TestPendingPlaceholderReplacedNotDuplicated(t *testing.T) {
	s, _ := newTestStore(t)
	tok := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok, nil))

	ph := order("o-9", models.StatusPending, 0)
	ph.ClientRef = "client-ref-1"
	s.InsertPendingOrder(ph)
	require.Len(t, s.Orders(0), 1)
	assert.True(t, s.Order("o-9").IsPlaceholder())

	applied, err := s.ApplyOrderUpdate(&models.OrderUpdateEvent{
		OrderID: "o-9", Status: models.StatusSubmitted, Version: 1,
	})
	require.NoError(t, err)
	require.True(t, applied)

	orders := s.Orders(0)
	require.Len(t, orders, 1)
	assert.Equal(t, models.StatusSubmitted, orders[0].Status)
	assert.False(t, orders[0].IsPlaceholder())
}

func TestPlaceholderSurvivesSnapshotWithoutIt(t *testing.T) {
	s, _ := newTestStore(t)
	tok := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok, nil))

	ph := order("o-9", models.StatusPending, 0)
	ph.ClientRef = "client-ref-1"
	s.InsertPendingOrder(ph)

	tok2 := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok2, []*models.Order{order("o-1", models.StatusFilled, 2)}))

	assert.NotNil(t, s.Order("o-9"), "unconfirmed placeholder must not vanish on refetch")
	assert.NotNil(t, s.Order("o-1"))
}

func TestPriceUpdateNeverCreatesPosition(t *testing.T) {
	s, _ := newTestStore(t)
	tok := s.BeginPositionsFetch()
	require.True(t, s.ApplyPositionsFetch(tok, []*models.Position{position("600519", 100, "1700")}))

	touched := s.ApplyPriceUpdate(&models.PriceUpdateEvent{StockCode: "000001", Price: dec("12.5")})
	assert.False(t, touched)
	assert.Len(t, s.Positions(), 1)
}

func TestPriceUpdateMarksExistingPosition(t *testing.T) {
	s, _ := newTestStore(t)
	tok := s.BeginPositionsFetch()
	require.True(t, s.ApplyPositionsFetch(tok, []*models.Position{position("600519", 100, "1700")}))

	require.True(t, s.ApplyPriceUpdate(&models.PriceUpdateEvent{StockCode: "600519", Price: dec("1750")}))

	p := s.Positions()[0]
	require.NotNil(t, p.CurrentPrice)
	assert.True(t, p.CurrentPrice.Equal(dec("1750")))
	require.NotNil(t, p.UnrealizedPnL)
	assert.True(t, p.UnrealizedPnL.Equal(dec("5000")))
}

func TestPositionsFetchReappliesLastQuote(t *testing.T) {
	s, _ := newTestStore(t)
	tok := s.BeginPositionsFetch()
	require.True(t, s.ApplyPositionsFetch(tok, []*models.Position{position("600519", 100, "1700")}))
	require.True(t, s.ApplyPriceUpdate(&models.PriceUpdateEvent{StockCode: "600519", Price: dec("1750")}))

	// a refetch resolves with no mark price; the session quote is kept
	tok2 := s.BeginPositionsFetch()
	require.True(t, s.ApplyPositionsFetch(tok2, []*models.Position{position("600519", 200, "1710")}))

	p := s.Positions()[0]
	assert.Equal(t, 200, p.Quantity)
	require.NotNil(t, p.CurrentPrice)
	assert.True(t, p.CurrentPrice.Equal(dec("1750")))
}

func TestClosedPositionEvicted(t *testing.T) {
	s, _ := newTestStore(t)
	tok := s.BeginPositionsFetch()
	require.True(t, s.ApplyPositionsFetch(tok, []*models.Position{
		position("600519", 100, "1700"),
		position("000001", 0, "12"),
	}))
	positions := s.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "600519", positions[0].StockCode)
}

func TestSubscribeNotifiesUntilUnsubscribed(t *testing.T) {
	s, _ := newTestStore(t)
	var got []Change
	unsub := s.Subscribe(func(c Change) { got = append(got, c) })

	tok := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok, nil))
	require.Len(t, got, 1)
	assert.Equal(t, CollectionOrders, got[0].Collection)

	unsub()
	tok2 := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok2, nil))
	assert.Len(t, got, 1, "no updates after unsubscribe")
}

func TestCloseTearsDownSession(t *testing.T) {
	s, _ := newTestStore(t)
	tok := s.BeginOrdersFetch()
	require.True(t, s.ApplyOrdersFetch(tok, []*models.Order{order("o-1", models.StatusSubmitted, 1)}))

	s.Close()
	assert.Empty(t, s.Orders(0))
	applied, err := s.ApplyOrderUpdate(&models.OrderUpdateEvent{
		OrderID: "o-1", Status: models.StatusFilled, Version: 2,
	})
	assert.NoError(t, err)
	assert.False(t, applied)
	assert.Empty(t, s.Orders(0))
}
