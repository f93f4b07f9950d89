package records

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by single-entity lookups when the id does not
// resolve to a record.
var ErrNotFound = errors.New("record not found")

// AppointmentFilter narrows an appointment query. Nil fields are ignored.
// The window applies to scheduled_at.
type AppointmentFilter struct {
	Window     *Window
	Status     *AppointmentStatus
	ProviderID *uuid.UUID
	PatientID  *uuid.UUID
}

// AlertFilter narrows an alert query. Nil fields are ignored. The window
// applies to created_at, except when Resolved is true: alerts are then
// selected by resolved_at falling inside the window, which is what
// resolution-latency aggregation needs.
type AlertFilter struct {
	Window   *Window
	Type     *AlertType
	Resolved *bool
}

// Store is the read-only query interface over operational records. The
// analytics engine never mutates records; implementations must expose
// snapshot reads only.
type Store interface {
	QueryAppointments(ctx context.Context, f AppointmentFilter) ([]*Appointment, error)
	GroupAppointmentsByStatus(ctx context.Context, w Window) (map[AppointmentStatus]int, error)
	QueryAlerts(ctx context.Context, f AlertFilter) ([]*Alert, error)
	GroupAlertsByType(ctx context.Context, w Window) (map[AlertType]int, error)
	QueryRiskScoredReminders(ctx context.Context, w Window) ([]*RiskScoredReminder, error)
	FindAlertByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	FindAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	FindAppointmentsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Appointment, error)
	FindPatientAppointmentHistory(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error)
	FindProvidersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Provider, error)
}
