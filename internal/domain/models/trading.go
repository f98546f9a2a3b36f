package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the trade direction.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// IsValid checks if the side is one of the known values.
func (s OrderSide) IsValid() bool { return s == SideBuy || s == SideSell }

// OrderType is the execution style of an order.
type OrderType string

const (
	TypeMarket OrderType = "market"
	TypeLimit  OrderType = "limit"
)

// OrderStatus is the server-authoritative lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusSubmitted OrderStatus = "submitted"
	StatusFilled    OrderStatus = "filled"
	StatusFailed    OrderStatus = "failed"
	StatusCancelled OrderStatus = "cancelled"
	StatusRejected  OrderStatus = "rejected"
)

// IsTerminal reports whether the status can never transition again.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusFailed, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// legal transitions, driven exclusively by server events
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusSubmitted, StatusRejected},
	StatusSubmitted: {StatusFilled, StatusFailed, StatusCancelled},
}

// CanTransition reports whether moving from s to next is a legal order
// state change. Re-applying the same status is allowed (idempotent under
// duplicate delivery).
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, t := range orderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Order is the client-held view of a brokerage order.
type Order struct {
	ID             string           `json:"id"`
	RecipeID       string           `json:"recipe_id,omitempty"`
	StockCode      string           `json:"stock_code"`
	Side           OrderSide        `json:"side"`
	Type           OrderType        `json:"order_type"`
	Quantity       int              `json:"quantity"`
	LimitPrice     *decimal.Decimal `json:"limit_price,omitempty"`
	Status         OrderStatus      `json:"status"`
	FilledQuantity int              `json:"filled_quantity"`
	AvgFillPrice   *decimal.Decimal `json:"avg_fill_price,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`

	// Version is the server-assigned monotonic version per order; stale
	// push events (version <= applied) are discarded.
	Version uint64 `json:"version,omitempty"`

	// ClientRef marks an optimistic placeholder inserted locally after a
	// successful submit. Cleared when the first server event replaces it.
	ClientRef string `json:"client_ref,omitempty"`
}

// IsPlaceholder reports whether this record is a local pending placeholder
// that has not yet been confirmed by the server.
func (o *Order) IsPlaceholder() bool { return o.ClientRef != "" }

// Position is the client-held view of an open position.
type Position struct {
	ID            string           `json:"id"`
	StockCode     string           `json:"stock_code"`
	StockName     string           `json:"stock_name,omitempty"`
	Quantity      int              `json:"quantity"`
	AvgCostPrice  decimal.Decimal  `json:"avg_cost_price"`
	CurrentPrice  *decimal.Decimal `json:"current_price,omitempty"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl,omitempty"`
	RealizedPnL   decimal.Decimal  `json:"realized_pnl"`
}

// ApplyPrice updates the mark price and recomputes unrealized P&L.
func (p *Position) ApplyPrice(price decimal.Decimal) {
	p.CurrentPrice = &price
	pnl := price.Sub(p.AvgCostPrice).Mul(decimal.NewFromInt(int64(p.Quantity)))
	p.UnrealizedPnL = &pnl
}
