package api

import (
	"context"
	"time"

	models "TradeDeck/internal/domain/models"
	domrepo "TradeDeck/internal/domain/repository"
	"TradeDeck/internal/store"
	"TradeDeck/internal/usecase"
	xhttp "TradeDeck/pkg/http"
	xlogger "TradeDeck/pkg/logger"

	"github.com/labstack/echo/v4"
)

// TradingHandler exposes the reconciled trading state and the manual
// order path over HTTP.
type TradingHandler struct {
	logger    *xlogger.Logger
	st        *store.Store
	notifs    *store.NotificationList
	exec      *usecase.ExecutionService
	refresher *usecase.Refresher
	poller    *usecase.JobPoller
	ticks     domrepo.TickStore
}

func NewTradingHandler(
	logger *xlogger.Logger,
	st *store.Store,
	notifs *store.NotificationList,
	exec *usecase.ExecutionService,
	refresher *usecase.Refresher,
	poller *usecase.JobPoller,
	ticks domrepo.TickStore,
) *TradingHandler {
	return &TradingHandler{
		logger:    logger,
		st:        st,
		notifs:    notifs,
		exec:      exec,
		refresher: refresher,
		poller:    poller,
		ticks:     ticks,
	}
}

func (h *TradingHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/positions", h.Positions)
	g.GET("/orders", h.Orders)
	g.POST("/orders", h.SubmitOrder)
	g.POST("/refresh", h.Refresh)
	g.GET("/notifications", h.Notifications)
	g.POST("/notifications/:id/ack", h.AckNotification)
	g.GET("/search-jobs/:id", h.SearchJob)
	g.GET("/prices/:code/history", h.PriceHistory)
}

// Positions answers from the store alone; it never calls the backend.
func (h *TradingHandler) Positions(c echo.Context) error {
	rows := h.st.Positions()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TradingHandler) Orders(c echo.Context) error {
	req := &models.OrdersQueryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.st.Orders(req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TradingHandler) SubmitOrder(c echo.Context) error {
	req := &models.ManualOrderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	order, err := h.exec.SubmitManualOrder(c.Request().Context(), req)
	if err != nil {
		if usecase.IsValidationError(err) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		h.logger.Error("manual order failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, order)
}

// Refresh forces a full refetch of both collections.
func (h *TradingHandler) Refresh(c echo.Context) error {
	if err := h.refresher.RefreshAll(c.Request().Context()); err != nil {
		h.logger.Error("forced refresh failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *TradingHandler) Notifications(c echo.Context) error {
	rows := h.notifs.List()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TradingHandler) AckNotification(c echo.Context) error {
	id := c.Param("id")
	if !h.notifs.Ack(id) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("notification %s not found", id))
	}
	return xhttp.NoContentResponse(c)
}

// PriceHistory serves recorded ticks for one symbol, newest first.
func (h *TradingHandler) PriceHistory(c echo.Context) error {
	code := c.Param("code")
	if code == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("missing stock code"))
	}
	now := time.Now()
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), now)
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 500)

	rows, err := h.ticks.Query(c.Request().Context(), code, from, to, limit)
	if err != nil {
		h.logger.Error("price history query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// SearchJob starts or joins the poller for a job and returns the latest
// snapshot. Polling outlives the request; it stops on terminal status or
// session close.
func (h *TradingHandler) SearchJob(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("missing job id"))
	}
	job := h.poller.Track(context.WithoutCancel(c.Request().Context()), id)
	if job == nil {
		// first poll has not resolved yet
		return xhttp.SuccessResponse(c, &models.SearchJob{ID: id, Status: models.SearchJobRunning})
	}
	return xhttp.SuccessResponse(c, job)
}
