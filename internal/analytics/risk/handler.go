package risk

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinicops/internal/platform/auth"
)

// Handler exposes risk analytics over HTTP.
type Handler struct {
	calc *Calculator
}

// NewHandler creates a new risk handler.
func NewHandler(calc *Calculator) *Handler {
	return &Handler{calc: calc}
}

// RegisterRoutes registers the risk endpoints on the analytics group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/risk", auth.RequireRole("admin", "physician", "nurse"))
	g.GET("/distribution", h.Distribution)
	g.GET("/calibration", h.Calibration)
	g.GET("/patterns", h.Patterns)
}

func (h *Handler) Distribution(c echo.Context) error {
	opts, err := optionsFromQuery(c)
	if err != nil {
		return err
	}
	dist, err := h.calc.Distribution(c.Request().Context(), opts)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, dist)
}

func (h *Handler) Calibration(c echo.Context) error {
	opts, err := optionsFromQuery(c)
	if err != nil {
		return err
	}
	cal, err := h.calc.PredictedVsActual(c.Request().Context(), opts)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, cal)
}

func (h *Handler) Patterns(c echo.Context) error {
	opts, err := optionsFromQuery(c)
	if err != nil {
		return err
	}
	patterns, err := h.calc.Patterns(c.Request().Context(), opts)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, patterns)
}

func optionsFromQuery(c echo.Context) (Options, error) {
	var opts Options
	if raw := c.QueryParam("period_days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return opts, echo.NewHTTPError(http.StatusBadRequest, "invalid period_days")
		}
		opts.PeriodDays = v
	}
	return opts, nil
}

func mapError(err error) error {
	if errors.Is(err, ErrInvalidOptions) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
