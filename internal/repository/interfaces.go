package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/servicehub/booking-api/internal/model"
)

// All repository interfaces in one file
type (
	// AppointmentRepository owns appointment records. Reminder sent flags
	// are updated through MarkReminderSent only, as a field-scoped write
	// that cannot race with whole-record updates.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		ListWithDueReminders(ctx context.Context, now time.Time) ([]*model.Appointment, error)
		MarkReminderSent(ctx context.Context, id uuid.UUID, index int) error
	}

	// UserDirectory is the slice of the user store this subsystem needs.
	UserDirectory interface {
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Exists(ctx context.Context, id uuid.UUID) (bool, error)
		FindAdministrator(ctx context.Context) (*model.User, error)
	}

	// ServiceDirectory resolves the staff member currently responsible for
	// a service-domain record. Returns uuid.Nil when the record exists but
	// has nobody assigned, and a ReferenceNotFound error when the record
	// itself is missing.
	ServiceDirectory interface {
		ResolveStaff(ctx context.Context, serviceType model.ServiceType, serviceID uuid.UUID) (uuid.UUID, error)
	}

	// NotificationRepository is the outbound notification outbox.
	NotificationRepository interface {
		Enqueue(ctx context.Context, notification *model.Notification) error
		GetPendingWithLock(ctx context.Context, limit int) ([]*model.Notification, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, lastError string, dead bool) error
	}
)
