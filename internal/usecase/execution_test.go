package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeDeck/internal/domain/models"
)

func newExecFixture(t *testing.T, fb *fakeBrokerage) *ExecutionService {
	t.Helper()
	st := testStore(t)
	refresher := NewRefresher(fb, st, 0, testLogger(t))
	return NewExecutionService(fb, st, refresher, fakeMetrics{}, testLogger(t))
}

func TestExecuteRequiresSavedRecipe(t *testing.T) {
	svc := newExecFixture(t, newFakeBrokerage())

	_, err := svc.Execute(context.Background(), "")
	assert.ErrorIs(t, err, ErrRecipeNotSaved)
}

func TestExecuteRefetchesOrdersAfterSuccess(t *testing.T) {
	fb := newFakeBrokerage()
	fb.recipeOrds = []*models.Order{{
		ID:        "o-1",
		StockCode: "600519",
		Side:      models.SideBuy,
		Type:      models.TypeMarket,
		Quantity:  100,
		Status:    models.StatusSubmitted,
		Version:   1,
		RecipeID:  "rcp-1",
	}}

	st := testStore(t)
	refresher := NewRefresher(fb, st, 0, testLogger(t))
	svc := NewExecutionService(fb, st, refresher, fakeMetrics{}, testLogger(t))

	res, err := svc.Execute(context.Background(), "rcp-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalSubmitted)

	// the batch summary alone cannot update order state; the refetch must
	orders := st.Orders(0)
	require.Len(t, orders, 1)
	assert.Equal(t, "o-1", orders[0].ID)
}

func TestExecuteSingleFlightPerRecipe(t *testing.T) {
	fb := newFakeBrokerage()
	started := make(chan struct{})
	release := make(chan struct{})
	fb.executeFn = func(_ context.Context, id string) (*models.ExecutionResult, error) {
		close(started)
		<-release
		return &models.ExecutionResult{RecipeID: id, TotalSubmitted: 2}, nil
	}

	svc := newExecFixture(t, fb)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Execute(context.Background(), "rcp-1")
		done <- err
	}()

	<-started
	_, err := svc.Execute(context.Background(), "rcp-1")
	assert.ErrorIs(t, err, ErrExecutionInFlight)

	close(release)
	require.NoError(t, <-done)

	// slot is released after completion
	fb.executeFn = nil
	_, err = svc.Execute(context.Background(), "rcp-1")
	assert.NoError(t, err)
}

func TestExecuteBackendFailureLeavesStoreUntouched(t *testing.T) {
	fb := newFakeBrokerage()
	fb.executeFn = func(context.Context, string) (*models.ExecutionResult, error) {
		return nil, errors.New("backend down")
	}

	st := testStore(t)
	refresher := NewRefresher(fb, st, 0, testLogger(t))
	svc := NewExecutionService(fb, st, refresher, fakeMetrics{}, testLogger(t))

	_, err := svc.Execute(context.Background(), "rcp-1")
	require.Error(t, err)
	assert.False(t, st.OrdersLoaded())
}

func TestExecutePartialFailureStillReturnsSummary(t *testing.T) {
	fb := newFakeBrokerage()
	fb.executeFn = func(_ context.Context, id string) (*models.ExecutionResult, error) {
		return &models.ExecutionResult{RecipeID: id, TotalSubmitted: 3, TotalFailed: 1}, nil
	}

	svc := newExecFixture(t, fb)

	res, err := svc.Execute(context.Background(), "rcp-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalSubmitted)
	assert.Equal(t, 1, res.TotalFailed)
}

func TestSubmitManualOrderInsertsPendingPlaceholder(t *testing.T) {
	fb := newFakeBrokerage()
	st := testStore(t)
	refresher := NewRefresher(fb, st, 0, testLogger(t))
	svc := NewExecutionService(fb, st, refresher, fakeMetrics{}, testLogger(t))

	lp := 1700.0
	ph, err := svc.SubmitManualOrder(context.Background(), &models.ManualOrderRequest{
		StockCode:  "600519",
		Side:       "buy",
		OrderType:  "limit",
		Quantity:   100,
		LimitPrice: &lp,
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", ph.ID)
	assert.Equal(t, models.StatusPending, ph.Status)
	assert.NotEmpty(t, ph.ClientRef)
	assert.True(t, ph.IsPlaceholder())

	stored := st.Order("srv-1")
	require.NotNil(t, stored)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestSubmitManualOrderFailureInsertsNothing(t *testing.T) {
	fb := newFakeBrokerage()
	fb.submitFn = func(context.Context, *models.ManualOrderRequest) (*models.Order, error) {
		return nil, errors.New("rejected at gateway")
	}
	st := testStore(t)
	refresher := NewRefresher(fb, st, 0, testLogger(t))
	svc := NewExecutionService(fb, st, refresher, fakeMetrics{}, testLogger(t))

	_, err := svc.SubmitManualOrder(context.Background(), &models.ManualOrderRequest{
		StockCode: "600519",
		Side:      "buy",
		OrderType: "market",
		Quantity:  100,
	})
	require.Error(t, err)
	assert.Nil(t, st.Order("srv-1"))

	// placeholder timing must not matter for later fetches
	tok := st.BeginOrdersFetch()
	require.True(t, st.ApplyOrdersFetch(tok, nil))
	assert.Empty(t, st.Orders(0))
}
