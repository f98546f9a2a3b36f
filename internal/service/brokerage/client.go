package brokerage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"TradeDeck/internal/domain/models"
	drepo "TradeDeck/internal/domain/repository"
	xhttp "TradeDeck/pkg/http"
)

// Client implements the Brokerage interface against the REST backend.
// Every call is a plain request/response; the backend owns all state.
type Client struct {
	baseURL string
	token   string
	http    *xhttp.Client
}

// New creates a brokerage client.
func New(baseURL, token string, timeout time.Duration) drepo.Brokerage {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.token}
}

func (c *Client) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	var r models.Recipe
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     fmt.Sprintf("%s/recipes/%s", c.baseURL, id),
		Headers: c.headers(),
	}, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveRecipe persists the complete recipe document. A draft posts to the
// collection and gets its id assigned; a saved recipe puts the full
// replacement document.
func (c *Client) SaveRecipe(ctx context.Context, r *models.Recipe) (*models.Recipe, error) {
	method := xhttp.MethodPost
	url := fmt.Sprintf("%s/recipes", c.baseURL)
	if !r.IsDraft() {
		method = xhttp.MethodPut
		url = fmt.Sprintf("%s/recipes/%s", c.baseURL, r.ID)
	}

	var saved models.Recipe
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  method,
		URL:     url,
		Headers: c.headers(),
		Body:    r,
	}, &saved)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *Client) ActivateRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	var r models.Recipe
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     fmt.Sprintf("%s/recipes/%s/activate", c.baseURL, id),
		Headers: c.headers(),
	}, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ExecuteRecipe(ctx context.Context, id string) (*models.ExecutionResult, error) {
	var res models.ExecutionResult
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     fmt.Sprintf("%s/recipes/%s/execute", c.baseURL, id),
		Headers: c.headers(),
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.RecipeID == "" {
		res.RecipeID = id
	}
	return &res, nil
}

func (c *Client) ListRecipeOrders(ctx context.Context, recipeID string, limit int) ([]*models.Order, error) {
	var rows []*models.Order
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         fmt.Sprintf("%s/recipes/%s/orders", c.baseURL, recipeID),
		Headers:     c.headers(),
		QueryParams: map[string][]string{"limit": {strconv.Itoa(limit)}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) ListPositions(ctx context.Context) ([]*models.Position, error) {
	var rows []*models.Position
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     fmt.Sprintf("%s/trading/positions", c.baseURL),
		Headers: c.headers(),
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) ListOrders(ctx context.Context, limit int) ([]*models.Order, error) {
	var rows []*models.Order
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         fmt.Sprintf("%s/trading/orders", c.baseURL),
		Headers:     c.headers(),
		QueryParams: map[string][]string{"limit": {strconv.Itoa(limit)}},
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) SubmitOrder(ctx context.Context, req *models.ManualOrderRequest) (*models.Order, error) {
	var o models.Order
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     fmt.Sprintf("%s/trading/orders", c.baseURL),
		Headers: c.headers(),
		Body:    req,
	}, &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) GetSearchJob(ctx context.Context, id string) (*models.SearchJob, error) {
	var job models.SearchJob
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     fmt.Sprintf("%s/strategies/search-jobs/%s", c.baseURL, id),
		Headers: c.headers(),
	}, &job)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
