package priority

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clinicops/clinicops/internal/records"
)

const (
	// DefaultBatchConcurrency bounds in-flight queries during batch scoring
	// so the record store is not overwhelmed.
	DefaultBatchConcurrency = 10

	minScore = 1
	maxScore = 100
)

// Factors breaks a priority score into its four independent contributions.
type Factors struct {
	Type                 int `json:"type"`
	Age                  int `json:"age"`
	PatientHistory       int `json:"patient_history"`
	AppointmentProximity int `json:"appointment_proximity"`
}

// Result is the scored urgency of a single alert. Score is always in
// [1, 100]; the explanation names only the non-zero factors.
type Result struct {
	AlertID     uuid.UUID `json:"alert_id"`
	Score       int       `json:"score"`
	Factors     Factors   `json:"factors"`
	Explanation string    `json:"explanation"`
}

// Scorer computes alert urgency scores from the record store. It is a pure
// reader: concurrent calls share no mutable state.
type Scorer struct {
	store       records.Store
	concurrency int
	now         func() time.Time
}

// NewScorer creates a Scorer. concurrency bounds ScoreMany's parallel
// fan-out; values below 1 fall back to the default.
func NewScorer(store records.Store, concurrency int) *Scorer {
	if concurrency < 1 {
		concurrency = DefaultBatchConcurrency
	}
	return &Scorer{store: store, concurrency: concurrency, now: time.Now}
}

// Score computes the 1-100 urgency score of a single alert. Returns an error
// wrapping records.ErrNotFound when the alert id does not resolve.
func (s *Scorer) Score(ctx context.Context, alertID uuid.UUID) (*Result, error) {
	alert, err := s.store.FindAlertByID(ctx, alertID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var f Factors
	f.Type = typeWeight(alert.Priority)
	f.Age = ageWeight(now.Sub(alert.CreatedAt))

	if alert.PatientID != nil {
		history, err := s.store.FindPatientAppointmentHistory(ctx, *alert.PatientID)
		if err != nil {
			return nil, fmt.Errorf("patient history for alert %s: %w", alertID, err)
		}
		f.PatientHistory = historyWeight(history)
	}

	if alert.AppointmentID != nil {
		appt, err := s.store.FindAppointmentByID(ctx, *alert.AppointmentID)
		if err != nil {
			return nil, fmt.Errorf("linked appointment for alert %s: %w", alertID, err)
		}
		f.AppointmentProximity = proximityWeight(appt, now)
	}

	raw := f.Type + f.Age + f.PatientHistory + f.AppointmentProximity
	return &Result{
		AlertID:     alertID,
		Score:       clamp(raw),
		Factors:     f,
		Explanation: explain(alert, f, now),
	}, nil
}

// ScoreMany scores a batch of alerts with bounded concurrency. A failure on
// any single alert is substituted with the minimum-priority default rather
// than failing the batch; results keep the input order.
func (s *Scorer) ScoreMany(ctx context.Context, alertIDs []uuid.UUID) ([]*Result, error) {
	results := make([]*Result, len(alertIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range alertIDs {
		i, id := i, id
		g.Go(func() error {
			res, err := s.Score(gctx, id)
			if err != nil {
				results[i] = fallbackResult(id)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// fallbackResult is the documented safe default substituted when a single
// alert in a batch cannot be scored.
func fallbackResult(id uuid.UUID) *Result {
	return &Result{
		AlertID:     id,
		Score:       minScore,
		Explanation: "score unavailable, defaulted to minimum priority",
	}
}

func clamp(raw int) int {
	if raw < minScore {
		return minScore
	}
	if raw > maxScore {
		return maxScore
	}
	return raw
}

func typeWeight(p records.AlertPriority) int {
	switch p {
	case records.AlertPriorityUrgent:
		return 40
	case records.AlertPriorityHigh:
		return 25
	default:
		return 10
	}
}

func ageWeight(age time.Duration) int {
	switch {
	case age >= 24*time.Hour:
		return 20
	case age >= 12*time.Hour:
		return 15
	case age >= 6*time.Hour:
		return 10
	case age >= 2*time.Hour:
		return 5
	default:
		return 0
	}
}

// historyWeight derives a weight from the patient's all-time appointment
// status distribution. The no-show and cancellation components are
// independently additive.
func historyWeight(history []*records.Appointment) int {
	if len(history) == 0 {
		return 0
	}
	var noShows, cancellations int
	for _, a := range history {
		switch a.Status {
		case records.AppointmentNoShow:
			noShows++
		case records.AppointmentCancelled:
			cancellations++
		}
	}

	weight := 0
	noShowRate := float64(noShows) / float64(len(history))
	switch {
	case noShowRate > 0.20:
		weight += 15
	case noShowRate > 0.10:
		weight += 8
	}
	switch {
	case cancellations >= 3:
		weight += 10
	case cancellations >= 2:
		weight += 5
	}
	return weight
}

// proximityWeight weights how soon the linked appointment happens. Cancelled
// and completed appointments, and appointments already in the past, carry no
// urgency.
func proximityWeight(appt *records.Appointment, now time.Time) int {
	if appt.Status == records.AppointmentCancelled || appt.Status == records.AppointmentCompleted {
		return 0
	}
	until := appt.ScheduledAt.Sub(now)
	if until < 0 {
		return 0
	}
	switch {
	case until <= 2*time.Hour:
		return 25
	case until <= 6*time.Hour:
		return 20
	case until <= 24*time.Hour:
		return 15
	case until <= 48*time.Hour:
		return 8
	default:
		return 0
	}
}

// explain joins the non-zero factors in the fixed order type, age,
// patient history, proximity.
func explain(alert *records.Alert, f Factors, now time.Time) string {
	var parts []string
	if f.Type > 0 {
		parts = append(parts, fmt.Sprintf("%s priority (+%d)", alert.Priority, f.Type))
	}
	if f.Age > 0 {
		hours := int(now.Sub(alert.CreatedAt).Hours())
		parts = append(parts, fmt.Sprintf("open for %dh (+%d)", hours, f.Age))
	}
	if f.PatientHistory > 0 {
		parts = append(parts, fmt.Sprintf("patient no-show/cancellation history (+%d)", f.PatientHistory))
	}
	if f.AppointmentProximity > 0 {
		parts = append(parts, fmt.Sprintf("appointment approaching (+%d)", f.AppointmentProximity))
	}
	return strings.Join(parts, "; ")
}
