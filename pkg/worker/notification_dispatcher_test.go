package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicehub/booking-api/internal/model"
	"github.com/servicehub/booking-api/pkg/logger"
)

type fakeNotificationRepo struct {
	rows map[uuid.UUID]*model.Notification
}

func (r *fakeNotificationRepo) Enqueue(_ context.Context, n *model.Notification) error {
	r.rows[n.ID] = n
	return nil
}

func (r *fakeNotificationRepo) GetPendingWithLock(_ context.Context, limit int) ([]*model.Notification, error) {
	var out []*model.Notification
	for _, n := range r.rows {
		if n.Status == model.NotificationStatusPending || n.Status == model.NotificationStatusRetrying {
			out = append(out, n)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.rows[id].Status = model.NotificationStatusProcessed
	return nil
}

func (r *fakeNotificationRepo) MarkFailed(_ context.Context, id uuid.UUID, lastError string, dead bool) error {
	n := r.rows[id]
	n.RetryCount++
	n.LastError = &lastError
	n.Status = model.NotificationStatusRetrying
	if dead {
		n.Status = model.NotificationStatusDead
	}
	return nil
}

type fakeBroker struct {
	published []string
	fail      bool
}

func (b *fakeBroker) Publish(_ context.Context, topic string, _ interface{}) error {
	if b.fail {
		return fmt.Errorf("redis down")
	}
	b.published = append(b.published, topic)
	return nil
}

func (b *fakeBroker) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBroker) Close() error { return nil }

type fakeEmail struct {
	sent []string
	fail bool
}

func (e *fakeEmail) SendCustom(_ context.Context, to, _, _ string) error {
	if e.fail {
		return fmt.Errorf("smtp timeout")
	}
	e.sent = append(e.sent, to)
	return nil
}

func pendingNotification() *model.Notification {
	return &model.Notification{
		ID:            uuid.New(),
		Kind:          model.NotificationKindReminder,
		RecipientID:   uuid.New(),
		Recipient:     "client@example.com",
		Subject:       "Reminder: Tax filing session",
		Body:          "Your appointment starts in 1 hour.",
		AppointmentID: uuid.New(),
		Status:        model.NotificationStatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func newDispatcher(repo *fakeNotificationRepo, broker *fakeBroker, mail *fakeEmail) *NotificationDispatcher {
	return NewNotificationDispatcher(repo, broker, mail, NotificationDispatcherConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
	}, logger.NewLogger(nil), nil)
}

func TestDispatcherDeliversBatch(t *testing.T) {
	repo := &fakeNotificationRepo{rows: map[uuid.UUID]*model.Notification{}}
	broker := &fakeBroker{}
	mail := &fakeEmail{}
	n := pendingNotification()
	repo.rows[n.ID] = n

	require.NoError(t, newDispatcher(repo, broker, mail).processBatch(context.Background()))

	assert.Equal(t, model.NotificationStatusProcessed, n.Status)
	assert.Equal(t, []string{"notifications"}, broker.published)
	assert.Equal(t, []string{"client@example.com"}, mail.sent)
}

func TestDispatcherBrokerFailureStillEmails(t *testing.T) {
	repo := &fakeNotificationRepo{rows: map[uuid.UUID]*model.Notification{}}
	broker := &fakeBroker{fail: true}
	mail := &fakeEmail{}
	n := pendingNotification()
	repo.rows[n.ID] = n

	require.NoError(t, newDispatcher(repo, broker, mail).processBatch(context.Background()))

	assert.Equal(t, model.NotificationStatusProcessed, n.Status)
	assert.Len(t, mail.sent, 1)
}

func TestDispatcherRetriesThenDeadLetters(t *testing.T) {
	repo := &fakeNotificationRepo{rows: map[uuid.UUID]*model.Notification{}}
	broker := &fakeBroker{}
	mail := &fakeEmail{fail: true}
	n := pendingNotification()
	repo.rows[n.ID] = n
	d := newDispatcher(repo, broker, mail)

	require.NoError(t, d.processBatch(context.Background()))
	assert.Equal(t, model.NotificationStatusRetrying, n.Status)
	assert.Equal(t, 1, n.RetryCount)
	require.NotNil(t, n.LastError)
	assert.Contains(t, *n.LastError, "smtp timeout")

	require.NoError(t, d.processBatch(context.Background()))
	assert.Equal(t, model.NotificationStatusDead, n.Status)
	assert.Equal(t, 2, n.RetryCount)

	// Dead rows are no longer picked up.
	require.NoError(t, d.processBatch(context.Background()))
	assert.Equal(t, 2, n.RetryCount)
}
