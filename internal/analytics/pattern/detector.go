package pattern

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinicops/internal/records"
)

// ErrInvalidOptions is returned when detection options fail validation.
var ErrInvalidOptions = errors.New("invalid detection options")

// Severity classifies how serious a detected pattern is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Type identifies which sub-detector produced a pattern.
type Type string

const (
	TypeTimeSlotNoShow   Type = "time_slot_no_show"
	TypeProviderFailure  Type = "provider_failure"
	TypeAlertSpike       Type = "alert_type_spike"
	TypeDayOfWeekAnomaly Type = "day_of_week_anomaly"
)

// Pattern is a recurring failure cluster surfaced from the lookback window.
type Pattern struct {
	Type        Type                   `json:"type"`
	Description string                 `json:"description"`
	Count       int                    `json:"count"`
	Severity    Severity               `json:"severity"`
	Metadata    map[string]interface{} `json:"metadata"`
	DetectedAt  time.Time              `json:"detected_at"`
}

// Options configures a detection run. Zero-valued fields take the stated
// defaults; explicitly negative values are rejected.
type Options struct {
	LookbackDays   int `json:"lookback_days"`   // default 30
	MinOccurrences int `json:"min_occurrences"` // default 3
	MaxPatterns    int `json:"max_patterns"`    // default 10
}

func (o *Options) applyDefaults() error {
	if o.LookbackDays == 0 {
		o.LookbackDays = 30
	}
	if o.MinOccurrences == 0 {
		o.MinOccurrences = 3
	}
	if o.MaxPatterns == 0 {
		o.MaxPatterns = 10
	}
	if o.LookbackDays < 1 {
		return fmt.Errorf("%w: lookback_days must be >= 1, got %d", ErrInvalidOptions, o.LookbackDays)
	}
	if o.MinOccurrences < 1 {
		return fmt.Errorf("%w: min_occurrences must be >= 1, got %d", ErrInvalidOptions, o.MinOccurrences)
	}
	if o.MaxPatterns < 1 {
		return fmt.Errorf("%w: max_patterns must be >= 1, got %d", ErrInvalidOptions, o.MaxPatterns)
	}
	return nil
}

// Detector scans a lookback window for recurring failure clusters across
// four independent dimensions.
type Detector struct {
	store records.Store
	now   func() time.Time
}

// NewDetector creates a Detector over the given record store.
func NewDetector(store records.Store) *Detector {
	return &Detector{store: store, now: time.Now}
}

// Detect runs all sub-detectors over the lookback window, unions their
// findings, sorts by severity rank descending (ties broken by count
// descending), and truncates to MaxPatterns. The ordering determines what
// callers see first when the list is truncated.
func (d *Detector) Detect(ctx context.Context, opts Options) ([]*Pattern, error) {
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	now := d.now()
	window := records.LastDays(now, opts.LookbackDays)

	var patterns []*Pattern

	slot, err := d.detectTimeSlotNoShows(ctx, window, opts.MinOccurrences, now)
	if err != nil {
		return nil, fmt.Errorf("time-slot detection: %w", err)
	}
	patterns = append(patterns, slot...)

	prov, err := d.detectProviderFailures(ctx, window, opts.MinOccurrences, now)
	if err != nil {
		return nil, fmt.Errorf("provider detection: %w", err)
	}
	patterns = append(patterns, prov...)

	spikes, err := d.detectAlertSpikes(ctx, window, opts.MinOccurrences, now)
	if err != nil {
		return nil, fmt.Errorf("alert-spike detection: %w", err)
	}
	patterns = append(patterns, spikes...)

	days, err := d.detectDayOfWeekAnomalies(ctx, window, opts.MinOccurrences, now)
	if err != nil {
		return nil, fmt.Errorf("day-of-week detection: %w", err)
	}
	patterns = append(patterns, days...)

	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].Severity.rank() != patterns[j].Severity.rank() {
			return patterns[i].Severity.rank() > patterns[j].Severity.rank()
		}
		return patterns[i].Count > patterns[j].Count
	})

	if len(patterns) > opts.MaxPatterns {
		patterns = patterns[:opts.MaxPatterns]
	}
	return patterns, nil
}

// detectTimeSlotNoShows groups no-show appointments by (weekday, hour) and
// emits one pattern per cell reaching the occurrence threshold.
func (d *Detector) detectTimeSlotNoShows(ctx context.Context, w records.Window, minOccurrences int, now time.Time) ([]*Pattern, error) {
	status := records.AppointmentNoShow
	appts, err := d.store.QueryAppointments(ctx, records.AppointmentFilter{Window: &w, Status: &status})
	if err != nil {
		return nil, err
	}

	type slotKey struct {
		day  time.Weekday
		hour int
	}
	counts := make(map[slotKey]int)
	for _, a := range appts {
		counts[slotKey{a.ScheduledAt.Weekday(), a.ScheduledAt.Hour()}]++
	}

	var patterns []*Pattern
	for key, count := range counts {
		if count < minOccurrences {
			continue
		}
		severity := SeverityInfo
		switch {
		case count >= 10:
			severity = SeverityCritical
		case count >= 5:
			severity = SeverityWarning
		}
		patterns = append(patterns, &Pattern{
			Type:        TypeTimeSlotNoShow,
			Description: fmt.Sprintf("%d no-shows on %ss at %02d:00", count, key.day, key.hour),
			Count:       count,
			Severity:    severity,
			Metadata: map[string]interface{}{
				"day_of_week": key.day.String(),
				"hour":        key.hour,
			},
			DetectedAt: now,
		})
	}
	return patterns, nil
}

// detectProviderFailures groups no-show and cancelled appointments by
// provider. Appointments without a provider are skipped.
func (d *Detector) detectProviderFailures(ctx context.Context, w records.Window, minOccurrences int, now time.Time) ([]*Pattern, error) {
	appts, err := d.store.QueryAppointments(ctx, records.AppointmentFilter{Window: &w})
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int)
	for _, a := range appts {
		if a.ProviderID == nil {
			continue
		}
		if a.Status == records.AppointmentNoShow || a.Status == records.AppointmentCancelled {
			counts[*a.ProviderID]++
		}
	}

	var flagged []uuid.UUID
	for id, count := range counts {
		if count >= minOccurrences {
			flagged = append(flagged, id)
		}
	}
	if len(flagged) == 0 {
		return nil, nil
	}

	providers, err := d.store.FindProvidersByIDs(ctx, flagged)
	if err != nil {
		return nil, err
	}

	var patterns []*Pattern
	for _, id := range flagged {
		count := counts[id]
		severity := SeverityInfo
		switch {
		case count >= 15:
			severity = SeverityCritical
		case count >= 5:
			severity = SeverityWarning
		}
		label := id.String()
		if p, ok := providers[id]; ok {
			label = p.Name
		}
		patterns = append(patterns, &Pattern{
			Type:        TypeProviderFailure,
			Description: fmt.Sprintf("%d no-shows/cancellations for provider %s", count, label),
			Count:       count,
			Severity:    severity,
			Metadata: map[string]interface{}{
				"provider_id":   id.String(),
				"provider_name": label,
			},
			DetectedAt: now,
		})
	}
	return patterns, nil
}

// Alert-spike severity thresholds. Error handoffs are intrinsically more
// urgent, so they escalate at lower volume.
var (
	handoffErrorThresholds = struct{ warning, critical int }{3, 7}
	defaultSpikeThresholds = struct{ warning, critical int }{10, 25}
)

// detectAlertSpikes counts alerts by type over the window.
func (d *Detector) detectAlertSpikes(ctx context.Context, w records.Window, minOccurrences int, now time.Time) ([]*Pattern, error) {
	counts, err := d.store.GroupAlertsByType(ctx, w)
	if err != nil {
		return nil, err
	}

	var patterns []*Pattern
	for typ, count := range counts {
		if count < minOccurrences {
			continue
		}
		thresholds := defaultSpikeThresholds
		if typ == records.AlertHandoffError {
			thresholds = handoffErrorThresholds
		}
		severity := SeverityInfo
		switch {
		case count >= thresholds.critical:
			severity = SeverityCritical
		case count >= thresholds.warning:
			severity = SeverityWarning
		}
		patterns = append(patterns, &Pattern{
			Type:        TypeAlertSpike,
			Description: fmt.Sprintf("%d %s alerts in window", count, typ),
			Count:       count,
			Severity:    severity,
			Metadata: map[string]interface{}{
				"alert_type": string(typ),
			},
			DetectedAt: now,
		})
	}
	return patterns, nil
}

// detectDayOfWeekAnomalies flags weekdays whose failure rate is at least
// 1.5x the window-wide average. The severity mapping round(ratio*10) against
// {20, 30} is kept exactly as observed in production.
func (d *Detector) detectDayOfWeekAnomalies(ctx context.Context, w records.Window, minOccurrences int, now time.Time) ([]*Pattern, error) {
	appts, err := d.store.QueryAppointments(ctx, records.AppointmentFilter{Window: &w})
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, nil
	}

	totals := make(map[time.Weekday]int)
	failures := make(map[time.Weekday]int)
	var totalFailures int
	for _, a := range appts {
		day := a.ScheduledAt.Weekday()
		totals[day]++
		if a.Status == records.AppointmentNoShow || a.Status == records.AppointmentCancelled {
			failures[day]++
			totalFailures++
		}
	}
	avgRate := float64(totalFailures) / float64(len(appts))
	if avgRate == 0 {
		return nil, nil
	}

	var patterns []*Pattern
	for day, count := range failures {
		if count < minOccurrences {
			continue
		}
		rate := float64(count) / float64(totals[day])
		ratio := rate / avgRate
		if ratio < 1.5 {
			continue
		}
		score := int(math.Round(ratio * 10))
		severity := SeverityInfo
		switch {
		case score >= 30:
			severity = SeverityCritical
		case score >= 20:
			severity = SeverityWarning
		}
		patterns = append(patterns, &Pattern{
			Type: TypeDayOfWeekAnomaly,
			Description: fmt.Sprintf("%ss fail at %.0f%% vs %.0f%% average (%d failures)",
				day, rate*100, avgRate*100, count),
			Count:    count,
			Severity: severity,
			Metadata: map[string]interface{}{
				"day_of_week":  day.String(),
				"failure_rate": rate,
				"average_rate": avgRate,
				"ratio":        ratio,
			},
			DetectedAt: now,
		})
	}
	return patterns, nil
}
