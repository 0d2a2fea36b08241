package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/servicehub/booking-api/internal/model"
	apperr "github.com/servicehub/booking-api/pkg/errors"
)

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, title, description, start_time, end_time,
			service_type, service_id, client_id, staff_id,
			location, status, reminders, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.Title,
		appointment.Description,
		appointment.StartTime,
		appointment.EndTime,
		appointment.ServiceType,
		appointment.ServiceID,
		appointment.ClientID,
		appointment.StaffID,
		appointment.Location,
		appointment.Status,
		appointment.Reminders,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, title, description, start_time, end_time,
			   service_type, service_id, client_id, staff_id,
			   location, status, reminders, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET title = $1, description = $2, start_time = $3, end_time = $4,
			staff_id = $5, location = $6, status = $7, reminders = $8,
			updated_at = $9
		WHERE id = $10
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		appointment.Title,
		appointment.Description,
		appointment.StartTime,
		appointment.EndTime,
		appointment.StaffID,
		appointment.Location,
		appointment.Status,
		appointment.Reminders,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperr.NotFound("appointment", nil)
	}

	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `
		SELECT id, title, description, start_time, end_time,
			   service_type, service_id, client_id, staff_id,
			   location, status, reminders, created_at, updated_at
		FROM appointments
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters.ClientID != uuid.Nil && filters.StaffID != uuid.Nil {
		query += fmt.Sprintf(" AND (client_id = $%d OR staff_id = $%d)", argCount, argCount+1)
		args = append(args, filters.ClientID, filters.StaffID)
		argCount += 2
	} else if filters.ClientID != uuid.Nil {
		query += fmt.Sprintf(" AND client_id = $%d", argCount)
		args = append(args, filters.ClientID)
		argCount++
	} else if filters.StaffID != uuid.Nil {
		query += fmt.Sprintf(" AND staff_id = $%d", argCount)
		args = append(args, filters.StaffID)
		argCount++
	}

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, filters.Status)
		argCount++
	}

	if filters.ServiceType != "" {
		query += fmt.Sprintf(" AND service_type = $%d", argCount)
		args = append(args, filters.ServiceType)
		argCount++
	}

	if !filters.StartDate.IsZero() {
		query += fmt.Sprintf(" AND start_time >= $%d", argCount)
		args = append(args, filters.StartDate)
		argCount++
	}

	if !filters.EndDate.IsZero() {
		query += fmt.Sprintf(" AND start_time <= $%d", argCount)
		args = append(args, filters.EndDate)
		argCount++
	}

	query += " ORDER BY start_time ASC"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
		args = append(args, filters.Limit, filters.Offset)
	}

	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListWithDueReminders(ctx context.Context, now time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT id, title, description, start_time, end_time,
			   service_type, service_id, client_id, staff_id,
			   location, status, reminders, created_at, updated_at
		FROM appointments
		WHERE status IN ('scheduled', 'rescheduled')
		AND EXISTS (
			SELECT 1 FROM jsonb_array_elements(reminders) AS r
			WHERE (r->>'sent')::bool = false
			AND (r->>'fire_time')::timestamptz <= $1
		)
		ORDER BY start_time ASC
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments with due reminders: %w", err)
	}
	return appointments, nil
}

// MarkReminderSent flips a single reminder's sent flag in place. The write is
// scoped to one array element so it cannot clobber a concurrent lifecycle
// mutation of the rest of the record, and the sent = false guard makes the
// call idempotent. A zero row count means the flag was already set.
func (r *appointmentRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, index int) error {
	query := `
		UPDATE appointments
		SET reminders = jsonb_set(reminders, ARRAY[$2::text, 'sent'], 'true'::jsonb),
			updated_at = $3
		WHERE id = $1
		AND (reminders->($2::int)->>'sent')::bool = false
	`
	_, err := r.db.ExecContext(ctx, query, id, index, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}
