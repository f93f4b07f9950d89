package records

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the lifecycle state of an appointment. Exactly one
// status applies at any time.
type AppointmentStatus string

const (
	AppointmentRequested AppointmentStatus = "requested"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// AppointmentStatuses lists every known appointment status.
func AppointmentStatuses() []AppointmentStatus {
	return []AppointmentStatus{
		AppointmentRequested, AppointmentConfirmed, AppointmentCompleted,
		AppointmentCancelled, AppointmentNoShow,
	}
}

// Appointment maps to the appointment table. scheduled_at is immutable once
// set; rescheduling creates a new effective value upstream, not tracked here.
type Appointment struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	PatientID    uuid.UUID         `db:"patient_id" json:"patient_id"`
	ProviderID   *uuid.UUID        `db:"provider_id" json:"provider_id,omitempty"`
	ServiceLabel string            `db:"service_label" json:"service_label"`
	ScheduledAt  time.Time         `db:"scheduled_at" json:"scheduled_at"`
	Status       AppointmentStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// AlertType is the failure category an alert reports.
type AlertType string

const (
	AlertStuckConversation      AlertType = "stuck_conversation"
	AlertPendingPreCheckin      AlertType = "pending_pre_checkin"
	AlertUnconfirmedAppointment AlertType = "unconfirmed_appointment"
	AlertHandoffNormal          AlertType = "handoff_normal"
	AlertHandoffError           AlertType = "handoff_error"
)

// AlertTypes lists every known alert type.
func AlertTypes() []AlertType {
	return []AlertType{
		AlertStuckConversation, AlertPendingPreCheckin,
		AlertUnconfirmedAppointment, AlertHandoffNormal, AlertHandoffError,
	}
}

// AlertPriority is the upstream-assigned urgency class of an alert.
type AlertPriority string

const (
	AlertPriorityLow    AlertPriority = "low"
	AlertPriorityHigh   AlertPriority = "high"
	AlertPriorityUrgent AlertPriority = "urgent"
)

// AlertStatus is the workflow state of an alert.
type AlertStatus string

const (
	AlertNew        AlertStatus = "new"
	AlertInProgress AlertStatus = "in_progress"
	AlertResolved   AlertStatus = "resolved"
	AlertDismissed  AlertStatus = "dismissed"
)

// Alert maps to the alert table. ResolvedAt is set iff the status is
// resolved or dismissed.
type Alert struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	Type          AlertType     `db:"type" json:"type"`
	Priority      AlertPriority `db:"priority" json:"priority"`
	Status        AlertStatus   `db:"status" json:"status"`
	PatientID     *uuid.UUID    `db:"patient_id" json:"patient_id,omitempty"`
	AppointmentID *uuid.UUID    `db:"appointment_id" json:"appointment_id,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	ResolvedAt    *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
}

// RiskScoredReminder maps to the reminder table. RiskScore (0-100) is
// produced upstream; a nil score means the reminder was sent before scoring
// ran and is excluded from distribution math. Multiple reminders may exist
// per appointment and each is counted independently.
type RiskScoredReminder struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	RiskScore     *int      `db:"risk_score" json:"risk_score,omitempty"`
	SentAt        time.Time `db:"sent_at" json:"sent_at"`
}

// Provider is a reference entity used for grouping and labeling only.
type Provider struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

// Patient is a reference entity used for grouping and labeling only.
type Patient struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

// Window is a half-open [Start, End) time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Previous returns the immediately preceding window of equal length.
func (w Window) Previous() Window {
	length := w.End.Sub(w.Start)
	return Window{Start: w.Start.Add(-length), End: w.Start}
}

// LastDays builds a window covering the given number of days ending at now.
func LastDays(now time.Time, days int) Window {
	return Window{Start: now.AddDate(0, 0, -days), End: now}
}
