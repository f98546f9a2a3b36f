package usecase

import (
	"context"
	"fmt"

	drepo "TradeDeck/internal/domain/repository"
	"TradeDeck/internal/store"
	applogger "TradeDeck/pkg/logger"
)

const defaultOrderFetchLimit = 200

// Refresher issues full refetches of the reconciliation collections. Every
// fetch goes through the store's token protocol so a slow response can
// never clobber a newer push event.
type Refresher struct {
	brokerage  drepo.Brokerage
	st         *store.Store
	fetchLimit int
	logger     *applogger.Logger
}

// NewRefresher creates a Refresher. fetchLimit caps every order list
// request; a non-positive value falls back to the default.
func NewRefresher(brokerage drepo.Brokerage, st *store.Store, fetchLimit int, logger *applogger.Logger) *Refresher {
	if fetchLimit <= 0 {
		fetchLimit = defaultOrderFetchLimit
	}
	return &Refresher{brokerage: brokerage, st: st, fetchLimit: fetchLimit, logger: logger}
}

// RefreshPositions replaces the positions collection from the backend.
func (r *Refresher) RefreshPositions(ctx context.Context) error {
	tok := r.st.BeginPositionsFetch()
	rows, err := r.brokerage.ListPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}
	if !r.st.ApplyPositionsFetch(tok, rows) {
		r.logger.Debug("positions refetch superseded")
	}
	return nil
}

// RefreshOrders replaces the orders collection from the backend.
func (r *Refresher) RefreshOrders(ctx context.Context) error {
	tok := r.st.BeginOrdersFetch()
	rows, err := r.brokerage.ListOrders(ctx, r.fetchLimit)
	if err != nil {
		return fmt.Errorf("fetch orders: %w", err)
	}
	if !r.st.ApplyOrdersFetch(tok, rows) {
		r.logger.Debug("orders refetch superseded")
	}
	return nil
}

// RefreshRecipeOrders refetches the order list scoped to one recipe.
func (r *Refresher) RefreshRecipeOrders(ctx context.Context, recipeID string) error {
	tok := r.st.BeginOrdersFetch()
	rows, err := r.brokerage.ListRecipeOrders(ctx, recipeID, r.fetchLimit)
	if err != nil {
		return fmt.Errorf("fetch recipe orders: %w", err)
	}
	if !r.st.ApplyOrdersPartialFetch(tok, rows) {
		r.logger.Debug("recipe orders refetch superseded",
			applogger.String("recipe_id", recipeID))
	}
	return nil
}

// RefreshAll refetches both collections. The first error is returned but
// does not stop the other collection from refreshing.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	errPos := r.RefreshPositions(ctx)
	errOrd := r.RefreshOrders(ctx)
	if errPos != nil {
		return errPos
	}
	return errOrd
}
