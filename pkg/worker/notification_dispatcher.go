package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/servicehub/booking-api/internal/email"
	"github.com/servicehub/booking-api/internal/model"
	"github.com/servicehub/booking-api/internal/repository"
	"github.com/servicehub/booking-api/pkg/logger"
	"github.com/servicehub/booking-api/pkg/messaging"
	"github.com/servicehub/booking-api/pkg/metrics"
)

type NotificationDispatcherConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
}

// NotificationDispatcher drains the notification outbox: each row is
// published to the broker for in-app consumers and delivered over email.
// Appointment-state durability never depends on this worker.
type NotificationDispatcher struct {
	repo     repository.NotificationRepository
	broker   messaging.Broker
	emailSvc email.Service
	config   NotificationDispatcherConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewNotificationDispatcher(
	repo repository.NotificationRepository,
	broker messaging.Broker,
	emailSvc email.Service,
	config NotificationDispatcherConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *NotificationDispatcher {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}

	return &NotificationDispatcher{
		repo:     repo,
		broker:   broker,
		emailSvc: emailSvc,
		config:   config,
		logger:   log,
		metrics:  m,
	}
}

func (d *NotificationDispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Info("starting notification dispatcher")

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutting down notification dispatcher")
			return
		case <-ticker.C:
			if err := d.processBatch(ctx); err != nil {
				d.logger.Error(err, "failed to process notification batch")
			}
		}
	}
}

func (d *NotificationDispatcher) processBatch(ctx context.Context) error {
	if d.metrics != nil {
		timer := prometheus.NewTimer(d.metrics.DispatchLatency)
		defer timer.ObserveDuration()
	}

	notifications, err := d.repo.GetPendingWithLock(ctx, d.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending notifications: %w", err)
	}

	for _, n := range notifications {
		if err := d.deliver(ctx, n); err != nil {
			d.logger.Error(err, "failed to deliver notification",
				"notification_id", n.ID.String(), "kind", string(n.Kind))
			continue
		}
	}
	return nil
}

func (d *NotificationDispatcher) deliver(ctx context.Context, n *model.Notification) error {
	if err := d.broker.Publish(ctx, "notifications", n); err != nil {
		d.logger.Warn("broker publish failed, delivery continues over email",
			"notification_id", n.ID.String(), "error", err.Error())
	}

	if err := d.emailSvc.SendCustom(ctx, n.Recipient, n.Subject, n.Body); err != nil {
		if d.metrics != nil {
			d.metrics.NotificationsFailed.WithLabelValues(string(n.Kind)).Inc()
		}
		dead := n.RetryCount+1 >= d.config.RetryAttempts
		if markErr := d.repo.MarkFailed(ctx, n.ID, err.Error(), dead); markErr != nil {
			d.logger.Error(markErr, "failed to update notification status",
				"notification_id", n.ID.String())
		}
		return err
	}

	if d.metrics != nil {
		d.metrics.NotificationsDispatched.WithLabelValues(string(n.Kind)).Inc()
	}
	return d.repo.MarkProcessed(ctx, n.ID)
}
