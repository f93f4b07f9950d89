package kpi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinicops/internal/platform/auth"
)

// Handler exposes KPI calculation over HTTP.
type Handler struct {
	calc *Calculator
}

// NewHandler creates a new KPI handler.
func NewHandler(calc *Calculator) *Handler {
	return &Handler{calc: calc}
}

// RegisterRoutes registers the KPI endpoint on the analytics group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	g.GET("/kpis", h.Calculate)
}

// Calculate computes the KPI snapshot for the requested window. Dates are
// RFC 3339; when omitted the window is period_days ending at now.
func (h *Handler) Calculate(c echo.Context) error {
	var opts Options

	if raw := c.QueryParam("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid start_date")
		}
		opts.StartDate = &t
	}
	if raw := c.QueryParam("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid end_date")
		}
		opts.EndDate = &t
	}
	if raw := c.QueryParam("period_days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid period_days")
		}
		opts.PeriodDays = v
	}

	metrics, err := h.calc.Calculate(c.Request().Context(), opts)
	if err != nil {
		if errors.Is(err, ErrInvalidOptions) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, metrics)
}
