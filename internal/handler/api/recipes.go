package api

import (
	"errors"

	models "TradeDeck/internal/domain/models"
	"TradeDeck/internal/usecase"
	xhttp "TradeDeck/pkg/http"
	xlogger "TradeDeck/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RecipesHandler exposes recipe CRUD, evaluation and execution.
type RecipesHandler struct {
	logger  *xlogger.Logger
	recipes *usecase.RecipeService
	exec    *usecase.ExecutionService
}

func NewRecipesHandler(logger *xlogger.Logger, recipes *usecase.RecipeService, exec *usecase.ExecutionService) *RecipesHandler {
	return &RecipesHandler{logger: logger, recipes: recipes, exec: exec}
}

func (h *RecipesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/recipes")
	g.POST("/evaluate", h.Evaluate)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.POST("/:id/activate", h.Activate)
	g.POST("/:id/execute", h.Execute)
}

func (h *RecipesHandler) Get(c echo.Context) error {
	r, err := h.recipes.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("recipe fetch failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, r)
}

func (h *RecipesHandler) Create(c echo.Context) error {
	req := &models.SaveRecipeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	saved, err := h.save(c, "", req)
	if saved == nil {
		return err
	}
	return xhttp.CreatedResponse(c, saved)
}

func (h *RecipesHandler) Update(c echo.Context) error {
	req := &models.SaveRecipeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	saved, err := h.save(c, c.Param("id"), req)
	if saved == nil {
		return err
	}
	return xhttp.SuccessResponse(c, saved)
}

func (h *RecipesHandler) save(c echo.Context, id string, req *models.SaveRecipeRequest) (*models.Recipe, error) {
	r := &models.Recipe{
		ID:                id,
		Name:              req.Name,
		Description:       req.Description,
		Signals:           req.Signals,
		Combinator:        req.Combinator,
		CustomFilters:     req.CustomFilters,
		TargetInstruments: req.TargetInstruments,
		Risk:              req.Risk,
	}
	saved, err := h.recipes.Save(c.Request().Context(), r)
	if err != nil {
		if usecase.IsValidationError(err) {
			return nil, xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		h.logger.Error("recipe save failed", xlogger.Error(err))
		return nil, xhttp.AppErrorResponse(c, err)
	}
	return saved, nil
}

func (h *RecipesHandler) Activate(c echo.Context) error {
	r, err := h.recipes.Activate(c.Request().Context(), c.Param("id"))
	if err != nil {
		if usecase.IsValidationError(err) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		h.logger.Error("recipe activate failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, r)
}

func (h *RecipesHandler) Execute(c echo.Context) error {
	res, err := h.exec.Execute(c.Request().Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrExecutionInFlight):
			return xhttp.AppErrorResponse(c, xhttp.ConflictError("execution already in flight"))
		case errors.Is(err, usecase.ErrRecipeNotSaved):
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("recipe must be saved before execution"))
		default:
			h.logger.Error("recipe execute failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
	}
	return xhttp.SuccessResponse(c, res)
}

// Evaluate runs the combinator over caller-supplied signal outputs. Pure;
// nothing is persisted.
func (h *RecipesHandler) Evaluate(c echo.Context) error {
	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ids := make([]string, 0, len(req.Signals))
	for _, s := range req.Signals {
		ids = append(ids, s.SignalID)
	}

	res := &models.EvaluateResponse{
		Fired: usecase.EvaluateCombinator(req.Outputs, ids, req.Combinator),
	}
	for _, id := range ids {
		if req.Outputs[id] {
			res.TrueCount++
		}
	}
	if req.Combinator.Mode == models.CombinatorAtLeast {
		res.EffectiveK = usecase.EffectiveK(ids, req.Combinator)
	}
	return xhttp.SuccessResponse(c, res)
}
