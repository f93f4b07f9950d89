package pattern

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/clinicops/clinicops/internal/platform/auth"
)

// Handler exposes pattern detection over HTTP.
type Handler struct {
	detector *Detector
}

// NewHandler creates a new pattern handler.
func NewHandler(detector *Detector) *Handler {
	return &Handler{detector: detector}
}

// RegisterRoutes registers the pattern endpoints on the analytics group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	g.GET("/patterns", h.Detect)
}

// Detect runs pattern detection with options from the query string.
func (h *Handler) Detect(c echo.Context) error {
	opts := Options{
		LookbackDays:   intParam(c, "lookback_days"),
		MinOccurrences: intParam(c, "min_occurrences"),
		MaxPatterns:    intParam(c, "max_patterns"),
	}
	patterns, err := h.detector.Detect(c.Request().Context(), opts)
	if err != nil {
		if errors.Is(err, ErrInvalidOptions) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if patterns == nil {
		patterns = []*Pattern{}
	}
	return c.JSON(http.StatusOK, patterns)
}

// intParam parses an integer query parameter, returning 0 (take the
// default) when absent and a negative sentinel when malformed so that
// validation rejects it.
func intParam(c echo.Context, name string) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
