package models

// Requests for the trading HTTP endpoints. Defined in domain for consistency and reuse.

type ManualOrderRequest struct {
	StockCode  string   `json:"stock_code" validate:"required"`
	Side       string   `json:"side" validate:"required,oneof=buy sell"`
	OrderType  string   `json:"order_type" default:"market" validate:"oneof=market limit"`
	Quantity   int      `json:"quantity" validate:"required,gt=0"`
	LimitPrice *float64 `json:"limit_price,omitempty" validate:"omitempty,gt=0"`
}

type OrdersQueryRequest struct {
	Limit    int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
	RecipeID string `query:"recipe_id" json:"recipe_id"`
}

type SaveRecipeRequest struct {
	Name              string             `json:"name" validate:"required"`
	Description       string             `json:"description"`
	Signals           []SignalEntry      `json:"signals" validate:"dive"`
	Combinator        Combinator         `json:"combinator"`
	CustomFilters     map[string]float64 `json:"custom_filters"`
	TargetInstruments []string           `json:"target_instruments" validate:"required,min=1"`
	Risk              RiskConfig         `json:"risk_config"`
}

type EvaluateRequest struct {
	Signals    []SignalEntry   `json:"signals" validate:"required,min=1,dive"`
	Combinator Combinator      `json:"combinator" validate:"required"`
	Outputs    map[string]bool `json:"outputs" validate:"required"`
}

type EvaluateResponse struct {
	Fired      bool `json:"fired"`
	TrueCount  int  `json:"true_count"`
	EffectiveK int  `json:"effective_k,omitempty"`
}
