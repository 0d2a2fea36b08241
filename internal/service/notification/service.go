package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/servicehub/booking-api/internal/model"
	"github.com/servicehub/booking-api/internal/repository"
	"github.com/servicehub/booking-api/pkg/metrics"
)

// Service enqueues outbound notifications. Delivery is owned by the outbox
// dispatcher; an enqueue here never blocks on SMTP or the broker.
type Service interface {
	Notify(ctx context.Context, kind model.NotificationKind, recipient *model.User, apt *model.Appointment, extra map[string]string) error
}

type service struct {
	repo    repository.NotificationRepository
	metrics *metrics.Metrics
}

func NewService(repo repository.NotificationRepository, m *metrics.Metrics) Service {
	return &service{repo: repo, metrics: m}
}

func (s *service) Notify(ctx context.Context, kind model.NotificationKind, recipient *model.User, apt *model.Appointment, extra map[string]string) error {
	subject, body := render(kind, recipient, apt, extra)

	now := time.Now()
	notification := &model.Notification{
		ID:            uuid.New(),
		Kind:          kind,
		RecipientID:   recipient.ID,
		Recipient:     recipient.Email,
		Subject:       subject,
		Body:          body,
		AppointmentID: apt.ID,
		Status:        model.NotificationStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Enqueue(ctx, notification); err != nil {
		return fmt.Errorf("failed to enqueue %s notification: %w", kind, err)
	}

	if s.metrics != nil {
		s.metrics.NotificationsQueued.Inc()
	}
	return nil
}

func render(kind model.NotificationKind, recipient *model.User, apt *model.Appointment, extra map[string]string) (string, string) {
	when := apt.StartTime.Format(time.RFC1123)

	switch kind {
	case model.NotificationKindRequested:
		return fmt.Sprintf("Appointment requested: %s", apt.Title),
			fmt.Sprintf("Hi %s,\n\nYour appointment %q has been scheduled for %s.", recipient.Name, apt.Title, when)
	case model.NotificationKindAssigned:
		return fmt.Sprintf("New appointment assigned: %s", apt.Title),
			fmt.Sprintf("Hi %s,\n\nYou have been assigned the appointment %q on %s.", recipient.Name, apt.Title, when)
	case model.NotificationKindStatusChanged:
		return fmt.Sprintf("Appointment update: %s", apt.Title),
			fmt.Sprintf("Hi %s,\n\nThe status of your appointment %q is now %s.", recipient.Name, apt.Title, apt.Status)
	case model.NotificationKindCancelled:
		body := fmt.Sprintf("Hi %s,\n\nThe appointment %q scheduled for %s has been cancelled.", recipient.Name, apt.Title, when)
		if reason := extra["reason"]; reason != "" {
			body += fmt.Sprintf("\nReason: %s", reason)
		}
		return fmt.Sprintf("Appointment cancelled: %s", apt.Title), body
	case model.NotificationKindReassigned:
		return fmt.Sprintf("Appointment reassignment: %s", apt.Title),
			fmt.Sprintf("Hi %s,\n\nThe appointment %q on %s has been reassigned.", recipient.Name, apt.Title, when)
	case model.NotificationKindReminder:
		lead := extra["lead"]
		if lead == "" {
			lead = "soon"
		}
		return fmt.Sprintf("Reminder: %s", apt.Title),
			fmt.Sprintf("Hi %s,\n\nYour appointment %q starts in %s (%s).", recipient.Name, apt.Title, lead, when)
	default:
		return fmt.Sprintf("Appointment notice: %s", apt.Title),
			fmt.Sprintf("Hi %s,\n\nThere is an update on your appointment %q.", recipient.Name, apt.Title)
	}
}
