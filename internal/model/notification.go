package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationKindRequested     NotificationKind = "appointment_requested"
	NotificationKindAssigned      NotificationKind = "appointment_assigned"
	NotificationKindStatusChanged NotificationKind = "appointment_status_changed"
	NotificationKindCancelled     NotificationKind = "appointment_cancelled"
	NotificationKindReassigned    NotificationKind = "appointment_reassigned"
	NotificationKindReminder      NotificationKind = "appointment_reminder"
)

type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusProcessed NotificationStatus = "processed"
	NotificationStatusRetrying  NotificationStatus = "retrying"
	NotificationStatusDead      NotificationStatus = "dead"
)

// Notification is an outbox row. Lifecycle operations and the reminder
// scheduler only ever enqueue; the dispatcher worker owns delivery.
type Notification struct {
	ID            uuid.UUID          `db:"id" json:"id"`
	Kind          NotificationKind   `db:"kind" json:"kind"`
	RecipientID   uuid.UUID          `db:"recipient_id" json:"recipient_id"`
	Recipient     string             `db:"recipient" json:"recipient"`
	Subject       string             `db:"subject" json:"subject"`
	Body          string             `db:"body" json:"body"`
	AppointmentID uuid.UUID          `db:"appointment_id" json:"appointment_id"`
	Status        NotificationStatus `db:"status" json:"status"`
	RetryCount    int                `db:"retry_count" json:"retry_count"`
	LastError     *string            `db:"last_error" json:"last_error,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}
