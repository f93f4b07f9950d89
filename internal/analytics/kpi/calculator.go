package kpi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clinicops/clinicops/internal/platform/cache"
	"github.com/clinicops/clinicops/internal/records"
)

// ErrInvalidOptions is returned when calculation options fail validation.
var ErrInvalidOptions = errors.New("invalid KPI options")

// Trend is the direction of the confirmation-rate change between the
// current window and the immediately preceding one.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// trendThreshold is the fixed significance threshold: changes smaller than
// this (in percentage points of relative change) read as stable.
const trendThreshold = 5.0

// Options configures a KPI calculation. When StartDate/EndDate are nil the
// window is the PeriodDays ending at now.
type Options struct {
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	PeriodDays int        `json:"period_days"` // default 30
}

// Metrics is the computed KPI snapshot for one window. Rates are
// percentages rounded to one decimal; AvgResolutionTimeMinutes is nil when
// no alerts were resolved in the window, which is distinct from an average
// of zero.
type Metrics struct {
	Window                   records.Window            `json:"window"`
	TotalAppointments        int                       `json:"total_appointments"`
	BookingSuccessRate       float64                   `json:"booking_success_rate"`
	NoShowRate               float64                   `json:"no_show_rate"`
	CancellationRate         float64                   `json:"cancellation_rate"`
	AvgResolutionTimeMinutes *float64                  `json:"avg_resolution_time_minutes"`
	AlertVolumeByType        map[records.AlertType]int `json:"alert_volume_by_type"`
	ConfirmationRate         float64                   `json:"confirmation_rate"`
	ConfirmationRateChange   float64                   `json:"confirmation_rate_change"`
	TrendDirection           Trend                     `json:"trend_direction"`
}

// Calculator computes rate-based KPIs over a snapshot window. A non-nil
// cache memoizes results per window; passing nil disables caching (tests,
// ad-hoc recomputation).
type Calculator struct {
	store records.Store
	cache *cache.Cache
	now   func() time.Time
}

// NewCalculator creates a Calculator over the given record store.
func NewCalculator(store records.Store, c *cache.Cache) *Calculator {
	return &Calculator{store: store, cache: c, now: time.Now}
}

// Calculate computes the KPI snapshot for the window described by opts.
func (c *Calculator) Calculate(ctx context.Context, opts Options) (*Metrics, error) {
	window, err := c.resolveWindow(opts)
	if err != nil {
		return nil, err
	}

	key := cacheKey(window)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			if m, ok := v.(*Metrics); ok {
				return m.clone(), nil
			}
		}
	}

	previous := window.Previous()

	var currentByStatus, previousByStatus map[records.AppointmentStatus]int
	var resolvedAlerts []*records.Alert
	var alertVolume map[records.AlertType]int

	// The four window queries are independent reads; minor skew between
	// them is an accepted approximation, so they run concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		currentByStatus, err = c.store.GroupAppointmentsByStatus(gctx, window)
		return err
	})
	g.Go(func() error {
		var err error
		previousByStatus, err = c.store.GroupAppointmentsByStatus(gctx, previous)
		return err
	})
	g.Go(func() error {
		resolved := true
		var err error
		resolvedAlerts, err = c.store.QueryAlerts(gctx, records.AlertFilter{Window: &window, Resolved: &resolved})
		return err
	})
	g.Go(func() error {
		var err error
		alertVolume, err = c.store.GroupAlertsByType(gctx, window)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("kpi window queries: %w", err)
	}

	m := buildMetrics(window, currentByStatus, previousByStatus, resolvedAlerts, alertVolume)
	if c.cache != nil {
		// The cache holds its own copy so callers mutating a returned
		// snapshot cannot poison later reads.
		c.cache.Set(key, m.clone())
	}
	return m, nil
}

// clone deep-copies the metrics so cached and returned snapshots never share
// mutable state.
func (m *Metrics) clone() *Metrics {
	out := *m
	out.AlertVolumeByType = make(map[records.AlertType]int, len(m.AlertVolumeByType))
	for typ, n := range m.AlertVolumeByType {
		out.AlertVolumeByType[typ] = n
	}
	if m.AvgResolutionTimeMinutes != nil {
		avg := *m.AvgResolutionTimeMinutes
		out.AvgResolutionTimeMinutes = &avg
	}
	return &out
}

func (c *Calculator) resolveWindow(opts Options) (records.Window, error) {
	if opts.PeriodDays < 0 {
		return records.Window{}, fmt.Errorf("%w: period_days must be >= 0, got %d", ErrInvalidOptions, opts.PeriodDays)
	}
	if opts.StartDate != nil && opts.EndDate != nil {
		if !opts.StartDate.Before(*opts.EndDate) {
			return records.Window{}, fmt.Errorf("%w: start_date must precede end_date", ErrInvalidOptions)
		}
		return records.Window{Start: *opts.StartDate, End: *opts.EndDate}, nil
	}
	if opts.StartDate != nil || opts.EndDate != nil {
		return records.Window{}, fmt.Errorf("%w: start_date and end_date must be given together", ErrInvalidOptions)
	}
	days := opts.PeriodDays
	if days == 0 {
		days = 30
	}
	return records.LastDays(c.now(), days), nil
}

func buildMetrics(window records.Window,
	current, previous map[records.AppointmentStatus]int,
	resolvedAlerts []*records.Alert,
	alertVolume map[records.AlertType]int) *Metrics {

	total := 0
	for _, n := range current {
		total += n
	}

	completed := current[records.AppointmentCompleted]
	confirmed := current[records.AppointmentConfirmed]
	noShow := current[records.AppointmentNoShow]
	cancelled := current[records.AppointmentCancelled]

	m := &Metrics{
		Window:             window,
		TotalAppointments:  total,
		BookingSuccessRate: rate(completed+confirmed, total),
		NoShowRate:         rate(noShow, total),
		CancellationRate:   rate(cancelled, total),
		AlertVolumeByType:  fillVolume(alertVolume),
	}

	if len(resolvedAlerts) > 0 {
		var totalMinutes float64
		for _, a := range resolvedAlerts {
			if a.ResolvedAt == nil {
				continue
			}
			totalMinutes += a.ResolvedAt.Sub(a.CreatedAt).Minutes()
		}
		avg := round1(totalMinutes / float64(len(resolvedAlerts)))
		m.AvgResolutionTimeMinutes = &avg
	}

	m.ConfirmationRate = confirmationRate(current)
	previousRate := confirmationRate(previous)
	m.ConfirmationRateChange = rateChange(previousRate, m.ConfirmationRate)

	switch {
	case math.Abs(m.ConfirmationRateChange) < trendThreshold:
		m.TrendDirection = TrendStable
	case m.ConfirmationRateChange > 0:
		m.TrendDirection = TrendUp
	default:
		m.TrendDirection = TrendDown
	}
	return m
}

// rate returns numerator/denominator as a percentage rounded to one decimal,
// and 0 (never NaN) for an empty denominator.
func rate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return round1(float64(numerator) / float64(denominator) * 100)
}

// confirmationRate is confirmed / (confirmed + requested) as a percentage.
func confirmationRate(byStatus map[records.AppointmentStatus]int) float64 {
	confirmed := byStatus[records.AppointmentConfirmed]
	requested := byStatus[records.AppointmentRequested]
	return rate(confirmed, confirmed+requested)
}

// rateChange computes the relative change between two rates. A previous of
// zero cannot be divided; by definition a move from 0 to anything positive
// is a 100% improvement, and 0 to 0 is no change.
func rateChange(previous, current float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return round1((current - previous) / previous * 100)
}

// fillVolume copies the grouped counts, ensuring every known alert type is
// present with a zero default.
func fillVolume(grouped map[records.AlertType]int) map[records.AlertType]int {
	volume := make(map[records.AlertType]int, len(records.AlertTypes()))
	for _, t := range records.AlertTypes() {
		volume[t] = grouped[t]
	}
	return volume
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func cacheKey(w records.Window) string {
	return "kpi:" + w.Start.UTC().Format(time.RFC3339) + ":" + w.End.UTC().Format(time.RFC3339)
}
