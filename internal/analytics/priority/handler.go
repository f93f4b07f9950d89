package priority

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinicops/internal/platform/auth"
	"github.com/clinicops/clinicops/internal/records"
)

// Handler exposes priority scoring over HTTP.
type Handler struct {
	scorer *Scorer
}

// NewHandler creates a new priority handler.
func NewHandler(scorer *Scorer) *Handler {
	return &Handler{scorer: scorer}
}

// RegisterRoutes registers the priority endpoints on the analytics group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	g.GET("/alerts/:id/priority", h.GetPriority)
	g.POST("/alerts/priority", h.ScoreBatch)
}

// GetPriority scores a single alert.
func (h *Handler) GetPriority(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid alert id")
	}
	result, err := h.scorer.Score(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, records.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "alert not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// BatchRequest is the body of a batch scoring request.
type BatchRequest struct {
	AlertIDs []uuid.UUID `json:"alert_ids"`
}

// ScoreBatch scores a batch of alerts with bounded concurrency. Individual
// failures come back as minimum-priority defaults, never as a batch error.
func (h *Handler) ScoreBatch(c echo.Context) error {
	var req BatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.AlertIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "alert_ids is required")
	}
	results, err := h.scorer.ScoreMany(c.Request().Context(), req.AlertIDs)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}
