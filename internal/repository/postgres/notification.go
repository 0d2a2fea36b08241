package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/servicehub/booking-api/internal/model"
)

func (r *notificationRepository) Enqueue(ctx context.Context, notification *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, kind, recipient_id, recipient, subject, body,
			appointment_id, status, retry_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		notification.ID,
		notification.Kind,
		notification.RecipientID,
		notification.Recipient,
		notification.Subject,
		notification.Body,
		notification.AppointmentID,
		notification.Status,
		notification.RetryCount,
		notification.CreatedAt,
		notification.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// GetPendingWithLock claims a batch of deliverable rows. SKIP LOCKED keeps
// concurrent dispatcher instances from double-claiming the same row.
func (r *notificationRepository) GetPendingWithLock(ctx context.Context, limit int) ([]*model.Notification, error) {
	query := `
		SELECT id, kind, recipient_id, recipient, subject, body,
			   appointment_id, status, retry_count, last_error,
			   created_at, updated_at
		FROM notifications
		WHERE status IN ('pending', 'retrying')
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	var notifications []*model.Notification
	err := r.db.SelectContext(ctx, &notifications, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET status = 'processed', updated_at = $2
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("failed to mark notification processed: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string, dead bool) error {
	status := model.NotificationStatusRetrying
	if dead {
		status = model.NotificationStatusDead
	}
	query := `
		UPDATE notifications
		SET status = $2, retry_count = retry_count + 1, last_error = $3, updated_at = $4
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id, status, lastError, time.Now()); err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}
