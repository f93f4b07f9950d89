package risk

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

// ErrInvalidOptions is returned when analysis options fail validation.
var ErrInvalidOptions = errors.New("invalid risk analysis options")

// Level is the deterministic bucketing of an upstream no-show risk score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Levels lists the buckets in ascending order.
func Levels() []Level { return []Level{LevelLow, LevelMedium, LevelHigh} }

// LevelForScore buckets a 0-100 risk score. The thresholds are fixed:
// [0,40) low, [40,70) medium, [70,100] high.
func LevelForScore(score int) Level {
	switch {
	case score < 40:
		return LevelLow
	case score < 70:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Options configures a risk analysis run over the trailing PeriodDays.
type Options struct {
	PeriodDays int `json:"period_days"` // default 30
}

func (o *Options) window(now time.Time) (records.Window, error) {
	if o.PeriodDays < 0 {
		return records.Window{}, fmt.Errorf("%w: period_days must be >= 0, got %d", ErrInvalidOptions, o.PeriodDays)
	}
	days := o.PeriodDays
	if days == 0 {
		days = 30
	}
	return records.LastDays(now, days), nil
}

// BucketCount is the count and share of reminders in one risk bucket.
type BucketCount struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Distribution is the breakdown of scored reminders across risk buckets.
// Reminders without a score are excluded entirely.
type Distribution struct {
	Window  records.Window        `json:"window"`
	Total   int                   `json:"total"`
	Buckets map[Level]BucketCount `json:"buckets"`
}

// BucketAccuracy compares a bucket's predicted risk level against actual
// attendance outcomes.
type BucketAccuracy struct {
	Total    int     `json:"total"`
	NoShows  int     `json:"no_shows"`
	Attended int     `json:"attended"`
	Accuracy float64 `json:"accuracy"`
}

// Calibration holds predicted-vs-actual accuracy per risk bucket.
type Calibration struct {
	Window  records.Window           `json:"window"`
	Buckets map[Level]BucketAccuracy `json:"buckets"`
}

// RateCell is a no-show rate over a grouped slice of appointments.
type RateCell struct {
	Total      int     `json:"total"`
	NoShows    int     `json:"no_shows"`
	NoShowRate float64 `json:"no_show_rate"`
}

// ServiceRate is a RateCell labeled with its service.
type ServiceRate struct {
	Service string `json:"service"`
	RateCell
}

// NoShowPatterns groups no-show rates by day-of-week, coarse time-slot, and
// service label. All seven weekdays and all four slots are always present;
// the service view keeps only the top ten services by volume.
type NoShowPatterns struct {
	Window      records.Window      `json:"window"`
	ByDayOfWeek map[string]RateCell `json:"by_day_of_week"`
	ByTimeSlot  map[string]RateCell `json:"by_time_slot"`
	ByService   []ServiceRate       `json:"by_service"`
}

// Calculator derives risk-level analytics from upstream-scored reminders.
// All three operations are independent snapshot reads.
type Calculator struct {
	store records.Store
	now   func() time.Time
}

// NewCalculator creates a Calculator over the given record store.
func NewCalculator(store records.Store) *Calculator {
	return &Calculator{store: store, now: time.Now}
}

// Distribution buckets the window's scored reminders into the three risk
// levels with one-decimal percentages. With zero qualifying reminders every
// bucket is returned zero-filled rather than omitted.
func (c *Calculator) Distribution(ctx context.Context, opts Options) (*Distribution, error) {
	window, err := opts.window(c.now())
	if err != nil {
		return nil, err
	}
	reminders, err := c.store.QueryRiskScoredReminders(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("risk distribution: %w", err)
	}

	counts := make(map[Level]int)
	total := 0
	for _, r := range reminders {
		if r.RiskScore == nil {
			continue
		}
		counts[LevelForScore(*r.RiskScore)]++
		total++
	}

	dist := &Distribution{Window: window, Total: total, Buckets: make(map[Level]BucketCount)}
	for _, lvl := range Levels() {
		bc := BucketCount{Count: counts[lvl]}
		if total > 0 {
			bc.Percentage = round1(float64(counts[lvl]) / float64(total) * 100)
		}
		dist.Buckets[lvl] = bc
	}
	return dist, nil
}

// PredictedVsActual correlates each scored reminder's predicted risk level
// with its appointment's real outcome. Only appointments already in the past
// carry an outcome, and only no_show, completed, and confirmed statuses are
// usable outcomes. Accuracy is asymmetric by bucket: high risk is "correct"
// on a no-show, low risk on attendance, and medium counts whichever outcome
// dominates — a pragmatic compatibility choice, not a calibration target.
func (c *Calculator) PredictedVsActual(ctx context.Context, opts Options) (*Calibration, error) {
	now := c.now()
	window, err := opts.window(now)
	if err != nil {
		return nil, err
	}
	reminders, err := c.store.QueryRiskScoredReminders(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("risk calibration: %w", err)
	}

	var apptIDs []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, r := range reminders {
		if r.RiskScore == nil || seen[r.AppointmentID] {
			continue
		}
		seen[r.AppointmentID] = true
		apptIDs = append(apptIDs, r.AppointmentID)
	}
	appointments, err := c.store.FindAppointmentsByIDs(ctx, apptIDs)
	if err != nil {
		return nil, fmt.Errorf("risk calibration appointments: %w", err)
	}

	buckets := make(map[Level]*BucketAccuracy)
	for _, lvl := range Levels() {
		buckets[lvl] = &BucketAccuracy{}
	}
	for _, r := range reminders {
		if r.RiskScore == nil {
			continue
		}
		appt, ok := appointments[r.AppointmentID]
		if !ok || !appt.ScheduledAt.Before(now) {
			continue
		}
		bucket := buckets[LevelForScore(*r.RiskScore)]
		switch appt.Status {
		case records.AppointmentNoShow:
			bucket.Total++
			bucket.NoShows++
		case records.AppointmentCompleted, records.AppointmentConfirmed:
			bucket.Total++
			bucket.Attended++
		}
	}

	cal := &Calibration{Window: window, Buckets: make(map[Level]BucketAccuracy)}
	for lvl, b := range buckets {
		if b.Total > 0 {
			var correct int
			switch lvl {
			case LevelHigh:
				correct = b.NoShows
			case LevelLow:
				correct = b.Attended
			default:
				correct = b.NoShows
				if b.Attended > correct {
					correct = b.Attended
				}
			}
			b.Accuracy = round1(float64(correct) / float64(b.Total) * 100)
		}
		cal.Buckets[lvl] = *b
	}
	return cal, nil
}

// Time-slot boundaries for the coarse slot view.
const (
	SlotMorning   = "morning"   // 06:00-12:00
	SlotAfternoon = "afternoon" // 12:00-18:00
	SlotEvening   = "evening"   // 18:00-22:00
	SlotOther     = "other"
)

func slotForHour(hour int) string {
	switch {
	case hour >= 6 && hour < 12:
		return SlotMorning
	case hour >= 12 && hour < 18:
		return SlotAfternoon
	case hour >= 18 && hour < 22:
		return SlotEvening
	default:
		return SlotOther
	}
}

// Patterns surfaces no-show rates by day-of-week, time-slot, and service.
// Long-tail services beyond the top ten by volume are dropped from the
// service view only, not from the day or slot groupings.
func (c *Calculator) Patterns(ctx context.Context, opts Options) (*NoShowPatterns, error) {
	window, err := opts.window(c.now())
	if err != nil {
		return nil, err
	}
	appts, err := c.store.QueryAppointments(ctx, records.AppointmentFilter{Window: &window})
	if err != nil {
		return nil, fmt.Errorf("risk patterns: %w", err)
	}

	byDay := make(map[string]RateCell, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		byDay[d.String()] = RateCell{}
	}
	bySlot := map[string]RateCell{
		SlotMorning: {}, SlotAfternoon: {}, SlotEvening: {}, SlotOther: {},
	}
	byService := make(map[string]RateCell)

	bump := func(cell RateCell, noShow bool) RateCell {
		cell.Total++
		if noShow {
			cell.NoShows++
		}
		return cell
	}
	for _, a := range appts {
		noShow := a.Status == records.AppointmentNoShow
		day := a.ScheduledAt.Weekday().String()
		byDay[day] = bump(byDay[day], noShow)
		slot := slotForHour(a.ScheduledAt.Hour())
		bySlot[slot] = bump(bySlot[slot], noShow)
		byService[a.ServiceLabel] = bump(byService[a.ServiceLabel], noShow)
	}

	finalize := func(m map[string]RateCell) {
		for k, cell := range m {
			if cell.Total > 0 {
				cell.NoShowRate = round1(float64(cell.NoShows) / float64(cell.Total) * 100)
			}
			m[k] = cell
		}
	}
	finalize(byDay)
	finalize(bySlot)
	finalize(byService)

	services := make([]ServiceRate, 0, len(byService))
	for label, cell := range byService {
		services = append(services, ServiceRate{Service: label, RateCell: cell})
	}
	sort.Slice(services, func(i, j int) bool {
		if services[i].Total != services[j].Total {
			return services[i].Total > services[j].Total
		}
		return services[i].Service < services[j].Service
	})
	if len(services) > 10 {
		services = services[:10]
	}

	return &NoShowPatterns{
		Window:      window,
		ByDayOfWeek: byDay,
		ByTimeSlot:  bySlot,
		ByService:   services,
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
