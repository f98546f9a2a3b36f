package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"TradeDeck/internal/domain/models"
	drepo "TradeDeck/internal/domain/repository"
	"TradeDeck/internal/store"
	applogger "TradeDeck/pkg/logger"
)

// ExecutionService drives the one-shot recipe execution cycle and manual
// order submission. Execution is fire-and-confirm: the batch summary
// cannot reconstruct individual order state, so a successful call is
// always followed by a forced order refetch.
type ExecutionService struct {
	brokerage drepo.Brokerage
	st        *store.Store
	refresher *Refresher
	metrics   drepo.Metrics
	logger    *applogger.Logger

	mu       sync.Mutex
	inFlight map[string]bool // recipe id -> execution running
}

// NewExecutionService creates an ExecutionService.
func NewExecutionService(
	brokerage drepo.Brokerage,
	st *store.Store,
	refresher *Refresher,
	metrics drepo.Metrics,
	logger *applogger.Logger,
) *ExecutionService {
	return &ExecutionService{
		brokerage: brokerage,
		st:        st,
		refresher: refresher,
		metrics:   metrics,
		logger:    logger,
		inFlight:  make(map[string]bool),
	}
}

// Execute submits the recipe for execution. At most one execution per
// recipe is in flight; a concurrent second call gets
// ErrExecutionInFlight. A backend failure leaves the store untouched.
func (s *ExecutionService) Execute(ctx context.Context, recipeID string) (*models.ExecutionResult, error) {
	if recipeID == "" {
		return nil, ErrRecipeNotSaved
	}

	s.mu.Lock()
	if s.inFlight[recipeID] {
		s.mu.Unlock()
		return nil, ErrExecutionInFlight
	}
	s.inFlight[recipeID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, recipeID)
		s.mu.Unlock()
	}()

	start := time.Now()
	res, err := s.brokerage.ExecuteRecipe(ctx, recipeID)
	if err != nil {
		s.metrics.RecordError("execute")
		return nil, fmt.Errorf("execute recipe %s: %w", recipeID, err)
	}
	s.metrics.RecordLatency("execute", time.Since(start).Seconds())

	if res.TotalFailed > 0 {
		// partial failure is informational, never blocking
		s.logger.Warn("execution partially failed",
			applogger.String("recipe_id", recipeID),
			applogger.Int("submitted", res.TotalSubmitted),
			applogger.Int("failed", res.TotalFailed))
	} else {
		s.logger.Info("execution submitted",
			applogger.String("recipe_id", recipeID),
			applogger.Int("submitted", res.TotalSubmitted))
	}

	// mandatory confirm: counts alone cannot tell us which orders exist now
	if err := s.refresher.RefreshRecipeOrders(ctx, recipeID); err != nil {
		s.logger.Warn("post-execution order refetch failed", applogger.Error(err))
	}

	return res, nil
}

// SubmitManualOrder sends a one-off order to the backend and inserts the
// synthetic pending placeholder into the store. The placeholder carries
// the broker-assigned id and is replaced by the first matching push event
// or refetch.
func (s *ExecutionService) SubmitManualOrder(ctx context.Context, req *models.ManualOrderRequest) (*models.Order, error) {
	submitted, err := s.brokerage.SubmitOrder(ctx, req)
	if err != nil {
		s.metrics.RecordError("submit_order")
		return nil, fmt.Errorf("submit order: %w", err)
	}

	ph := &models.Order{
		ID:        submitted.ID,
		StockCode: req.StockCode,
		Side:      models.OrderSide(req.Side),
		Type:      models.OrderType(req.OrderType),
		Quantity:  req.Quantity,
		Status:    models.StatusPending,
		CreatedAt: time.Now(),
		ClientRef: uuid.NewString(),
	}
	if req.LimitPrice != nil {
		lp := decimal.NewFromFloat(*req.LimitPrice)
		ph.LimitPrice = &lp
	}
	s.st.InsertPendingOrder(ph)

	s.logger.Info("manual order submitted",
		applogger.String("order_id", ph.ID),
		applogger.String("stock_code", ph.StockCode),
		applogger.String("side", string(ph.Side)))
	return ph, nil
}
