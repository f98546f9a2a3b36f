package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EventType tags payloads delivered on the realtime "trading" topic.
type EventType string

const (
	EventOrderUpdate  EventType = "order_update"
	EventPriceUpdate  EventType = "price_update"
	EventRecipeSignal EventType = "recipe_signal"
)

// Envelope is the raw frame shape on the channel: a type tag plus an
// undecoded payload. Payloads are validated at this boundary, never deeper.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// OrderUpdateEvent is a server push for one order's lifecycle change.
type OrderUpdateEvent struct {
	RecipeID       string           `json:"recipe_id,omitempty"`
	OrderID        string           `json:"order_id"`
	Status         OrderStatus      `json:"status"`
	FilledQuantity int              `json:"filled_quantity"`
	AvgFillPrice   *decimal.Decimal `json:"avg_fill_price,omitempty"`
	Version        uint64           `json:"version"`
}

// Validate checks the fields the store relies on.
func (e *OrderUpdateEvent) Validate() error {
	if e.OrderID == "" {
		return fmt.Errorf("order_update: missing order_id")
	}
	switch e.Status {
	case StatusPending, StatusSubmitted, StatusFilled, StatusFailed, StatusCancelled, StatusRejected:
	default:
		return fmt.Errorf("order_update: unknown status %q", e.Status)
	}
	if e.FilledQuantity < 0 {
		return fmt.Errorf("order_update: negative filled_quantity")
	}
	return nil
}

// PriceUpdateEvent is a server push with the latest quote for a symbol.
type PriceUpdateEvent struct {
	StockCode string           `json:"stock_code"`
	Price     decimal.Decimal  `json:"price"`
	Change    *decimal.Decimal `json:"change,omitempty"`
	ChangePct *decimal.Decimal `json:"change_pct,omitempty"`
	Volume    *int64           `json:"volume,omitempty"`
	High      *decimal.Decimal `json:"high,omitempty"`
	Low       *decimal.Decimal `json:"low,omitempty"`
}

// Validate checks the fields the store relies on.
func (e *PriceUpdateEvent) Validate() error {
	if e.StockCode == "" {
		return fmt.Errorf("price_update: missing stock_code")
	}
	if e.Price.IsNegative() {
		return fmt.Errorf("price_update: negative price")
	}
	return nil
}

// SignalKind distinguishes entry and exit recipe signals.
type SignalKind string

const (
	SignalKindEntry SignalKind = "entry"
	SignalKindExit  SignalKind = "exit"
)

// RecipeSignalEvent is a server push announcing an entry/exit decision for
// an active recipe.
type RecipeSignalEvent struct {
	RecipeID   string     `json:"recipe_id"`
	RecipeName string     `json:"recipe_name,omitempty"`
	SignalType SignalKind `json:"signal_type"`
	StockCode  string     `json:"stock_code"`
}

// Validate checks the fields the notification list relies on.
func (e *RecipeSignalEvent) Validate() error {
	if e.RecipeID == "" {
		return fmt.Errorf("recipe_signal: missing recipe_id")
	}
	if e.SignalType != SignalKindEntry && e.SignalType != SignalKindExit {
		return fmt.Errorf("recipe_signal: unknown signal_type %q", e.SignalType)
	}
	return nil
}

// Notification is a transient, acknowledgeable recipe signal shown to the
// user. Unacknowledged notifications expire and are dropped.
type Notification struct {
	ID           string     `json:"id"`
	RecipeID     string     `json:"recipe_id"`
	RecipeName   string     `json:"recipe_name,omitempty"`
	SignalType   SignalKind `json:"signal_type"`
	StockCode    string     `json:"stock_code"`
	ReceivedAt   time.Time  `json:"received_at"`
	Acknowledged bool       `json:"acknowledged"`
}
