package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"TradeDeck/internal/domain/models"
	"TradeDeck/internal/store"
	applogger "TradeDeck/pkg/logger"
)

type fakeBrokerage struct {
	mu sync.Mutex

	recipes   map[string]*models.Recipe
	positions []*models.Position
	orders    []*models.Order
	jobs      map[string]*models.SearchJob

	executeFn  func(ctx context.Context, id string) (*models.ExecutionResult, error)
	submitFn   func(ctx context.Context, req *models.ManualOrderRequest) (*models.Order, error)
	getJobFn   func(ctx context.Context, id string) (*models.SearchJob, error)
	saveCalls  int
	execCalls  int
	listCalls  int
	lastLimit  int
	jobCalls   int
	recipeOrds []*models.Order
}

func newFakeBrokerage() *fakeBrokerage {
	return &fakeBrokerage{
		recipes: map[string]*models.Recipe{},
		jobs:    map[string]*models.SearchJob{},
	}
}

func (f *fakeBrokerage) GetRecipe(_ context.Context, id string) (*models.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.recipes[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, ErrRecipeNotSaved
}

func (f *fakeBrokerage) SaveRecipe(_ context.Context, r *models.Recipe) (*models.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	cp := *r
	if cp.ID == "" {
		cp.ID = "rcp-1"
	}
	f.recipes[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeBrokerage) ActivateRecipe(_ context.Context, id string) (*models.Recipe, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recipes[id]
	if !ok {
		return nil, ErrRecipeNotSaved
	}
	cp := *r
	cp.IsActive = true
	f.recipes[id] = &cp
	return &cp, nil
}

func (f *fakeBrokerage) ExecuteRecipe(ctx context.Context, id string) (*models.ExecutionResult, error) {
	f.mu.Lock()
	f.execCalls++
	fn := f.executeFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}
	return &models.ExecutionResult{RecipeID: id, TotalSubmitted: 1}, nil
}

func (f *fakeBrokerage) ListRecipeOrders(_ context.Context, _ string, _ int) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.recipeOrds, nil
}

func (f *fakeBrokerage) ListPositions(context.Context) ([]*models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions, nil
}

func (f *fakeBrokerage) ListOrders(_ context.Context, limit int) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	f.lastLimit = limit
	return f.orders, nil
}

func (f *fakeBrokerage) SubmitOrder(ctx context.Context, req *models.ManualOrderRequest) (*models.Order, error) {
	if f.submitFn != nil {
		return f.submitFn(ctx, req)
	}
	return &models.Order{ID: "srv-1", StockCode: req.StockCode, Status: models.StatusPending}, nil
}

func (f *fakeBrokerage) GetSearchJob(ctx context.Context, id string) (*models.SearchJob, error) {
	f.mu.Lock()
	f.jobCalls++
	fn := f.getJobFn
	job := f.jobs[id]
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, id)
	}
	if job != nil {
		cp := *job
		return &cp, nil
	}
	return &models.SearchJob{ID: id, Status: models.SearchJobRunning}, nil
}

type fakeMetrics struct{}

func (fakeMetrics) RecordEventApplied(string)           {}
func (fakeMetrics) RecordEventDiscarded(string, string) {}
func (fakeMetrics) RecordError(string)                  {}
func (fakeMetrics) RecordLastPrice(string, float64)     {}
func (fakeMetrics) RecordOpenPositions(int)             {}
func (fakeMetrics) RecordLatency(string, float64)       {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(testLogger(t), fakeMetrics{})
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
