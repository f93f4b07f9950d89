package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type storePG struct{ pool *pgxpool.Pool }

// NewStorePG creates a PostgreSQL-backed Store. All queries are SELECTs; the
// engine holds no write path to the record tables.
func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{pool: pool} }

const apptCols = `id, patient_id, provider_id, service_label, scheduled_at, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.ProviderID, &a.ServiceLabel,
		&a.ScheduledAt, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (s *storePG) QueryAppointments(ctx context.Context, f AppointmentFilter) ([]*Appointment, error) {
	query := `SELECT ` + apptCols + ` FROM appointment WHERE 1=1`
	var args []interface{}
	idx := 1

	if f.Window != nil {
		query += fmt.Sprintf(` AND scheduled_at >= $%d AND scheduled_at < $%d`, idx, idx+1)
		args = append(args, f.Window.Start, f.Window.End)
		idx += 2
	}
	if f.Status != nil {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, *f.Status)
		idx++
	}
	if f.ProviderID != nil {
		query += fmt.Sprintf(` AND provider_id = $%d`, idx)
		args = append(args, *f.ProviderID)
		idx++
	}
	if f.PatientID != nil {
		query += fmt.Sprintf(` AND patient_id = $%d`, idx)
		args = append(args, *f.PatientID)
		idx++
	}
	query += ` ORDER BY scheduled_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (s *storePG) GroupAppointmentsByStatus(ctx context.Context, w Window) (map[AppointmentStatus]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM appointment
		WHERE scheduled_at >= $1 AND scheduled_at < $2
		GROUP BY status`, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("group appointments by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[AppointmentStatus]int)
	for rows.Next() {
		var status AppointmentStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

const alertCols = `id, type, priority, status, patient_id, appointment_id, created_at, resolved_at`

func scanAlert(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.Type, &a.Priority, &a.Status,
		&a.PatientID, &a.AppointmentID, &a.CreatedAt, &a.ResolvedAt)
	return &a, err
}

func (s *storePG) QueryAlerts(ctx context.Context, f AlertFilter) ([]*Alert, error) {
	query := `SELECT ` + alertCols + ` FROM alert WHERE 1=1`
	var args []interface{}
	idx := 1

	timeCol := "created_at"
	if f.Resolved != nil {
		if *f.Resolved {
			query += ` AND resolved_at IS NOT NULL`
			timeCol = "resolved_at"
		} else {
			query += ` AND resolved_at IS NULL`
		}
	}
	if f.Window != nil {
		query += fmt.Sprintf(` AND %s >= $%d AND %s < $%d`, timeCol, idx, timeCol, idx+1)
		args = append(args, f.Window.Start, f.Window.End)
		idx += 2
	}
	if f.Type != nil {
		query += fmt.Sprintf(` AND type = $%d`, idx)
		args = append(args, *f.Type)
		idx++
	}
	query += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var items []*Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (s *storePG) GroupAlertsByType(ctx context.Context, w Window) (map[AlertType]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT type, COUNT(*) FROM alert
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY type`, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("group alerts by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[AlertType]int)
	for rows.Next() {
		var typ AlertType
		var count int
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		counts[typ] = count
	}
	return counts, rows.Err()
}

func (s *storePG) QueryRiskScoredReminders(ctx context.Context, w Window) ([]*RiskScoredReminder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, appointment_id, risk_score, sent_at FROM reminder
		WHERE sent_at >= $1 AND sent_at < $2
		ORDER BY sent_at`, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var items []*RiskScoredReminder
	for rows.Next() {
		var r RiskScoredReminder
		if err := rows.Scan(&r.ID, &r.AppointmentID, &r.RiskScore, &r.SentAt); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		items = append(items, &r)
	}
	return items, rows.Err()
}

func (s *storePG) FindAlertByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := scanAlert(s.pool.QueryRow(ctx, `SELECT `+alertCols+` FROM alert WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find alert: %w", err)
	}
	return a, nil
}

func (s *storePG) FindAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find appointment: %w", err)
	}
	return a, nil
}

func (s *storePG) FindAppointmentsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Appointment, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*Appointment{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID]*Appointment, len(ids))
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		result[a.ID] = a
	}
	return result, rows.Err()
}

func (s *storePG) FindPatientAppointmentHistory(ctx context.Context, patientID uuid.UUID) ([]*Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+apptCols+` FROM appointment
		WHERE patient_id = $1
		ORDER BY scheduled_at`, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient history: %w", err)
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (s *storePG) FindProvidersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Provider, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*Provider{}, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM provider WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("find providers: %w", err)
	}
	defer rows.Close()

	result := make(map[uuid.UUID]*Provider, len(ids))
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		result[p.ID] = &p
	}
	return result, rows.Err()
}
