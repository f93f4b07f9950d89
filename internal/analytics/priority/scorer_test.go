package priority

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinicops/internal/records"
)

// -- Mock Store --

type mockStore struct {
	alerts       map[uuid.UUID]*records.Alert
	appointments map[uuid.UUID]*records.Appointment
	history      map[uuid.UUID][]*records.Appointment
}

func newMockStore() *mockStore {
	return &mockStore{
		alerts:       make(map[uuid.UUID]*records.Alert),
		appointments: make(map[uuid.UUID]*records.Appointment),
		history:      make(map[uuid.UUID][]*records.Appointment),
	}
}

func (m *mockStore) FindAlertByID(_ context.Context, id uuid.UUID) (*records.Alert, error) {
	a, ok := m.alerts[id]
	if !ok {
		return nil, records.ErrNotFound
	}
	return a, nil
}

func (m *mockStore) FindAppointmentByID(_ context.Context, id uuid.UUID) (*records.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, records.ErrNotFound
	}
	return a, nil
}

func (m *mockStore) FindPatientAppointmentHistory(_ context.Context, patientID uuid.UUID) ([]*records.Appointment, error) {
	return m.history[patientID], nil
}

func (m *mockStore) QueryAppointments(_ context.Context, _ records.AppointmentFilter) ([]*records.Appointment, error) {
	return nil, nil
}

func (m *mockStore) GroupAppointmentsByStatus(_ context.Context, _ records.Window) (map[records.AppointmentStatus]int, error) {
	return nil, nil
}

func (m *mockStore) QueryAlerts(_ context.Context, _ records.AlertFilter) ([]*records.Alert, error) {
	return nil, nil
}

func (m *mockStore) GroupAlertsByType(_ context.Context, _ records.Window) (map[records.AlertType]int, error) {
	return nil, nil
}

func (m *mockStore) QueryRiskScoredReminders(_ context.Context, _ records.Window) ([]*records.RiskScoredReminder, error) {
	return nil, nil
}

func (m *mockStore) FindAppointmentsByIDs(_ context.Context, _ []uuid.UUID) (map[uuid.UUID]*records.Appointment, error) {
	return nil, nil
}

func (m *mockStore) FindProvidersByIDs(_ context.Context, _ []uuid.UUID) (map[uuid.UUID]*records.Provider, error) {
	return nil, nil
}

var testNow = time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)

func newTestScorer(store records.Store) *Scorer {
	s := NewScorer(store, 4)
	s.now = func() time.Time { return testNow }
	return s
}

// -- Tests --

func TestScoreUrgentAgedAlert(t *testing.T) {
	store := newMockStore()
	alertID := uuid.New()
	store.alerts[alertID] = &records.Alert{
		ID:        alertID,
		Type:      records.AlertHandoffError,
		Priority:  records.AlertPriorityUrgent,
		Status:    records.AlertNew,
		CreatedAt: testNow.Add(-30 * time.Hour),
	}

	s := newTestScorer(store)
	res, err := s.Score(context.Background(), alertID)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if res.Score != 60 {
		t.Errorf("expected score 60 (40 type + 20 age), got %d", res.Score)
	}
	if res.Factors.Type != 40 || res.Factors.Age != 20 {
		t.Errorf("unexpected factors: %+v", res.Factors)
	}
	if res.Factors.PatientHistory != 0 || res.Factors.AppointmentProximity != 0 {
		t.Errorf("expected zero history/proximity factors, got %+v", res.Factors)
	}
	if res.Explanation == "" {
		t.Error("expected non-empty explanation")
	}
}

func TestScoreClampsAtMaximum(t *testing.T) {
	store := newMockStore()
	alertID := uuid.New()
	patientID := uuid.New()
	apptID := uuid.New()

	store.alerts[alertID] = &records.Alert{
		ID:            alertID,
		Priority:      records.AlertPriorityUrgent,
		PatientID:     &patientID,
		AppointmentID: &apptID,
		CreatedAt:     testNow.Add(-25 * time.Hour),
	}
	// 10 appointments: 3 no-shows (30% > 20% -> +15) and 3 cancellations (+10).
	for i := 0; i < 3; i++ {
		store.history[patientID] = append(store.history[patientID],
			&records.Appointment{Status: records.AppointmentNoShow},
			&records.Appointment{Status: records.AppointmentCancelled})
	}
	for i := 0; i < 4; i++ {
		store.history[patientID] = append(store.history[patientID],
			&records.Appointment{Status: records.AppointmentCompleted})
	}
	store.appointments[apptID] = &records.Appointment{
		ID:          apptID,
		Status:      records.AppointmentConfirmed,
		ScheduledAt: testNow.Add(time.Hour),
	}

	s := newTestScorer(store)
	res, err := s.Score(context.Background(), alertID)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	// Raw 40+20+25+25 = 110, clamped to 100.
	if res.Score != 100 {
		t.Errorf("expected clamped score 100, got %d", res.Score)
	}
}

func TestScoreUnknownAlert(t *testing.T) {
	s := newTestScorer(newMockStore())
	_, err := s.Score(context.Background(), uuid.New())
	if !errors.Is(err, records.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScoreManyPreservesOrderAndSubstitutesFallback(t *testing.T) {
	store := newMockStore()
	goodID := uuid.New()
	badID := uuid.New()
	store.alerts[goodID] = &records.Alert{
		ID:        goodID,
		Priority:  records.AlertPriorityHigh,
		CreatedAt: testNow.Add(-time.Hour),
	}

	s := newTestScorer(store)
	results, err := s.ScoreMany(context.Background(), []uuid.UUID{badID, goodID})
	if err != nil {
		t.Fatalf("ScoreMany failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].AlertID != badID || results[0].Score != 1 {
		t.Errorf("expected fallback result first, got %+v", results[0])
	}
	if results[0].Explanation != "score unavailable, defaulted to minimum priority" {
		t.Errorf("unexpected fallback explanation: %q", results[0].Explanation)
	}
	if results[1].AlertID != goodID || results[1].Score != 25 {
		t.Errorf("expected high-priority score 25 second, got %+v", results[1])
	}
}

func TestAgeWeight(t *testing.T) {
	cases := []struct {
		age  time.Duration
		want int
	}{
		{time.Hour, 0},
		{2 * time.Hour, 5},
		{6 * time.Hour, 10},
		{12 * time.Hour, 15},
		{24 * time.Hour, 20},
		{72 * time.Hour, 20},
	}
	for _, tc := range cases {
		if got := ageWeight(tc.age); got != tc.want {
			t.Errorf("ageWeight(%v) = %d, want %d", tc.age, got, tc.want)
		}
	}
}

func TestHistoryWeight(t *testing.T) {
	build := func(noShows, cancelled, completed int) []*records.Appointment {
		var appts []*records.Appointment
		for i := 0; i < noShows; i++ {
			appts = append(appts, &records.Appointment{Status: records.AppointmentNoShow})
		}
		for i := 0; i < cancelled; i++ {
			appts = append(appts, &records.Appointment{Status: records.AppointmentCancelled})
		}
		for i := 0; i < completed; i++ {
			appts = append(appts, &records.Appointment{Status: records.AppointmentCompleted})
		}
		return appts
	}

	cases := []struct {
		name string
		hist []*records.Appointment
		want int
	}{
		{"empty", nil, 0},
		{"clean record", build(0, 0, 10), 0},
		{"no-show rate above 20%", build(3, 0, 7), 15},
		{"no-show rate above 10%", build(2, 0, 15), 8},
		{"two cancellations", build(0, 2, 8), 5},
		{"three cancellations", build(0, 3, 7), 10},
		{"both components add", build(3, 3, 4), 25},
	}
	for _, tc := range cases {
		if got := historyWeight(tc.hist); got != tc.want {
			t.Errorf("%s: historyWeight = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestProximityWeight(t *testing.T) {
	appt := func(status records.AppointmentStatus, until time.Duration) *records.Appointment {
		return &records.Appointment{Status: status, ScheduledAt: testNow.Add(until)}
	}

	cases := []struct {
		name string
		appt *records.Appointment
		want int
	}{
		{"within 2h", appt(records.AppointmentConfirmed, time.Hour), 25},
		{"within 6h", appt(records.AppointmentConfirmed, 5 * time.Hour), 20},
		{"within 24h", appt(records.AppointmentConfirmed, 20 * time.Hour), 15},
		{"within 48h", appt(records.AppointmentConfirmed, 40 * time.Hour), 8},
		{"beyond 48h", appt(records.AppointmentConfirmed, 72 * time.Hour), 0},
		{"already past", appt(records.AppointmentConfirmed, -time.Hour), 0},
		{"cancelled", appt(records.AppointmentCancelled, time.Hour), 0},
		{"completed", appt(records.AppointmentCompleted, time.Hour), 0},
	}
	for _, tc := range cases {
		if got := proximityWeight(tc.appt, testNow); got != tc.want {
			t.Errorf("%s: proximityWeight = %d, want %d", tc.name, got, tc.want)
		}
	}
}
