package pool

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/labpool/labpool/internal/platform/auth"
	"github.com/labpool/labpool/pkg/pagination"
)

type Handler struct {
	svc     *Service
	queries *QueryFacade
}

func NewHandler(svc *Service, queries *QueryFacade) *Handler {
	return &Handler{svc: svc, queries: queries}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("technician", "admin")

	g := api.Group("/pool", role)
	g.GET("/items/available", h.ListAvailable)
	g.GET("/items/mine", h.ListMine)
	g.GET("/items/:id", h.GetItem)
	g.POST("/items", h.CreateItem)
	g.POST("/items/:id/claim", h.ClaimItem)
	g.POST("/items/:id/start", h.StartItem)
	g.POST("/items/:id/complete", h.CompleteItem)
	g.POST("/items/:id/cancel", h.CancelItem)
}

type createRequest struct {
	Kind    Kind            `json:"kind"`
	Urgency Urgency         `json:"urgency"`
	Payload json.RawMessage `json:"payload"`
}

type completeRequest struct {
	Results []ResultEntry `json:"results"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) CreateItem(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.CreateItem(c.Request().Context(), req.Kind, req.Urgency, req.Payload)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) GetItem(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	item, err := h.svc.GetItem(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) ListAvailable(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := AvailableFilter{
		Urgency: Urgency(c.QueryParam("urgency")),
		Kind:    Kind(c.QueryParam("kind")),
	}
	items, total, err := h.queries.ListAvailable(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListMine(c echo.Context) error {
	workerID, err := auth.WorkerIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "worker identity required")
	}
	pg := pagination.FromContext(c)
	f := MineFilter{
		Status:          Status(c.QueryParam("status")),
		IncludeTerminal: c.QueryParam("include_terminal") == "true",
	}
	items, total, err := h.queries.ListMine(c.Request().Context(), workerID, f, pg.Limit, pg.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ClaimItem(c echo.Context) error {
	id, workerID, err := itemAndWorker(c)
	if err != nil {
		return err
	}
	item, err := h.svc.Claim(c.Request().Context(), id, workerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) StartItem(c echo.Context) error {
	id, workerID, err := itemAndWorker(c)
	if err != nil {
		return err
	}
	item, err := h.svc.Start(c.Request().Context(), id, workerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) CompleteItem(c echo.Context) error {
	id, workerID, err := itemAndWorker(c)
	if err != nil {
		return err
	}
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item, err := h.svc.Complete(c.Request().Context(), id, workerID, req.Results)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func (h *Handler) CancelItem(c echo.Context) error {
	id, workerID, err := itemAndWorker(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	force := auth.HasRole(c, "admin")
	item, err := h.svc.Cancel(c.Request().Context(), id, workerID, req.Reason, force)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, item)
}

func itemAndWorker(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	workerID, err := auth.WorkerIDFromContext(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "worker identity required")
	}
	return id, workerID, nil
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// writeError maps domain errors to the API error envelope. Unrecognized
// errors become opaque 500s so internals never leak to callers.
func writeError(c echo.Context, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, errorEnvelope{Error: errorBody{
			Code: "VALIDATION_ERROR", Message: ve.Error(), Fields: ve.Fields,
		}})
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound, errorEnvelope{Error: errorBody{
			Code: "NOT_FOUND", Message: "item not found",
		}})
	case errors.Is(err, ErrAlreadyClaimed):
		return c.JSON(http.StatusConflict, errorEnvelope{Error: errorBody{
			Code: "ALREADY_CLAIMED", Message: err.Error(),
		}})
	case errors.Is(err, ErrNotOwner):
		return c.JSON(http.StatusForbidden, errorEnvelope{Error: errorBody{
			Code: "NOT_OWNER", Message: err.Error(),
		}})
	case errors.Is(err, ErrInvalidTransition):
		return c.JSON(http.StatusConflict, errorEnvelope{Error: errorBody{
			Code: "INVALID_TRANSITION", Message: err.Error(),
		}})
	case errors.Is(err, ErrConflict):
		return c.JSON(http.StatusConflict, errorEnvelope{Error: errorBody{
			Code: "CONFLICT", Message: "item was modified concurrently, retry",
		}})
	default:
		return c.JSON(http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Code: "INTERNAL", Message: "internal error",
		}})
	}
}
