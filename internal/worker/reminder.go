package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/servicehub/booking-api/internal/model"
	"github.com/servicehub/booking-api/internal/repository"
	"github.com/servicehub/booking-api/internal/service/notification"
	"github.com/servicehub/booking-api/pkg/logger"
	"github.com/servicehub/booking-api/pkg/metrics"
)

// ReminderScheduler periodically scans for due, unsent reminders and
// dispatches them. Idempotency rests entirely on the persisted sent flag, so
// a restart mid-scan costs at most a duplicate delivery, never a lost one.
type ReminderScheduler struct {
	repo     repository.AppointmentRepository
	users    repository.UserDirectory
	notifSvc notification.Service
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
	nowFn    func() time.Time
}

func NewReminderScheduler(
	repo repository.AppointmentRepository,
	users repository.UserDirectory,
	notifSvc notification.Service,
	interval time.Duration,
	log *logger.Logger,
	m *metrics.Metrics,
) *ReminderScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderScheduler{
		repo:     repo,
		users:    users,
		notifSvc: notifSvc,
		interval: interval,
		logger:   log,
		metrics:  m,
		nowFn:    time.Now,
	}
}

// Start runs the scan loop until the context is cancelled. The first scan
// fires immediately so reminders that came due while the process was down
// are not delayed by a full interval.
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.logger.Info("starting reminder scheduler", "interval", s.interval.String())

	if err := s.Scan(ctx); err != nil {
		s.logger.Error(err, "reminder scan failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down reminder scheduler")
			return
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil {
				s.logger.Error(err, "reminder scan failed")
			}
		}
	}
}

// Scan processes every due unsent reminder once. A dispatch failure for one
// reminder leaves it unsent for the next pass and never blocks the others.
func (s *ReminderScheduler) Scan(ctx context.Context) error {
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.ReminderScanLatency)
		defer timer.ObserveDuration()
	}

	now := s.nowFn()
	appointments, err := s.repo.ListWithDueReminders(ctx, now)
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.ReminderScanBacklog.Set(float64(len(appointments)))
	}

	for _, apt := range appointments {
		s.processAppointment(ctx, apt, now)
	}
	return nil
}

func (s *ReminderScheduler) processAppointment(ctx context.Context, apt *model.Appointment, now time.Time) {
	for i, reminder := range apt.Reminders {
		if reminder.Sent || reminder.FireTime.After(now) {
			continue
		}

		if err := s.dispatch(ctx, apt, reminder); err != nil {
			s.logger.Error(err, "failed to dispatch reminder",
				"appointment_id", apt.ID.String(), "fire_time", reminder.FireTime.Format(time.RFC3339))
			if s.metrics != nil {
				s.metrics.RemindersFailed.Inc()
			}
			continue
		}

		// Marked sent only after the dispatch attempt succeeded.
		if err := s.repo.MarkReminderSent(ctx, apt.ID, i); err != nil {
			s.logger.Error(err, "failed to mark reminder sent",
				"appointment_id", apt.ID.String())
			continue
		}
		if s.metrics != nil {
			s.metrics.RemindersSent.Inc()
		}
	}
}

func (s *ReminderScheduler) dispatch(ctx context.Context, apt *model.Appointment, reminder model.Reminder) error {
	client, err := s.users.Get(ctx, apt.ClientID)
	if err != nil {
		return err
	}
	extra := map[string]string{"lead": leadBucket(apt.StartTime.Sub(reminder.FireTime))}
	return s.notifSvc.Notify(ctx, model.NotificationKindReminder, client, apt, extra)
}

// leadBucket renders the reminder offset as a human-readable lead time.
func leadBucket(lead time.Duration) string {
	switch {
	case lead >= 24*time.Hour:
		return "1 day"
	case lead >= time.Hour:
		return "1 hour"
	default:
		return "soon"
	}
}
