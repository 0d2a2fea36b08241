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
	apperr "github.com/servicehub/booking-api/pkg/errors"
	"github.com/servicehub/booking-api/pkg/logger"
)

type fakeAppointmentRepo struct {
	appointments map[uuid.UUID]*model.Appointment
}

func (r *fakeAppointmentRepo) Create(_ context.Context, apt *model.Appointment) error {
	r.appointments[apt.ID] = apt
	return nil
}

func (r *fakeAppointmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	apt, ok := r.appointments[id]
	if !ok {
		return nil, apperr.NotFound("appointment", nil)
	}
	return apt, nil
}

func (r *fakeAppointmentRepo) Update(_ context.Context, apt *model.Appointment) error {
	r.appointments[apt.ID] = apt
	return nil
}

func (r *fakeAppointmentRepo) List(_ context.Context, _ *model.AppointmentFilters) ([]*model.Appointment, error) {
	return nil, nil
}

func (r *fakeAppointmentRepo) ListWithDueReminders(_ context.Context, now time.Time) ([]*model.Appointment, error) {
	var out []*model.Appointment
	for _, apt := range r.appointments {
		if apt.Status != model.AppointmentStatusScheduled && apt.Status != model.AppointmentStatusRescheduled {
			continue
		}
		for _, rem := range apt.Reminders {
			if !rem.Sent && !rem.FireTime.After(now) {
				cp := *apt
				cp.Reminders = append(model.Reminders(nil), apt.Reminders...)
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeAppointmentRepo) MarkReminderSent(_ context.Context, id uuid.UUID, index int) error {
	apt, ok := r.appointments[id]
	if !ok || index < 0 || index >= len(apt.Reminders) {
		return apperr.NotFound("reminder", nil)
	}
	apt.Reminders[index].Sent = true
	return nil
}

type fakeUserDirectory struct {
	users map[uuid.UUID]*model.User
}

func (d *fakeUserDirectory) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, apperr.NotFound("user", nil)
	}
	return u, nil
}

func (d *fakeUserDirectory) GetByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, apperr.NotFound("user", nil)
}

func (d *fakeUserDirectory) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := d.users[id]
	return ok, nil
}

func (d *fakeUserDirectory) FindAdministrator(_ context.Context) (*model.User, error) {
	return nil, apperr.NotFound("administrator", nil)
}

type dispatched struct {
	kind          model.NotificationKind
	appointmentID uuid.UUID
	lead          string
}

type fakeNotifier struct {
	sent     []dispatched
	failOnce map[uuid.UUID]bool
}

func (n *fakeNotifier) Notify(_ context.Context, kind model.NotificationKind, _ *model.User, apt *model.Appointment, extra map[string]string) error {
	if n.failOnce[apt.ID] {
		delete(n.failOnce, apt.ID)
		return fmt.Errorf("smtp unavailable")
	}
	n.sent = append(n.sent, dispatched{kind: kind, appointmentID: apt.ID, lead: extra["lead"]})
	return nil
}

type schedulerEnv struct {
	scheduler *ReminderScheduler
	repo      *fakeAppointmentRepo
	notifier  *fakeNotifier
	clientID  uuid.UUID
}

func newSchedulerEnv(t *testing.T, now time.Time) *schedulerEnv {
	t.Helper()
	clientID := uuid.New()
	repo := &fakeAppointmentRepo{appointments: make(map[uuid.UUID]*model.Appointment)}
	users := &fakeUserDirectory{users: map[uuid.UUID]*model.User{
		clientID: {ID: clientID, Email: "client@example.com", Name: "Cora Client", Role: model.RoleClient},
	}}
	notifier := &fakeNotifier{failOnce: map[uuid.UUID]bool{}}

	s := NewReminderScheduler(repo, users, notifier, time.Minute, logger.NewLogger(nil), nil)
	s.nowFn = func() time.Time { return now }

	return &schedulerEnv{scheduler: s, repo: repo, notifier: notifier, clientID: clientID}
}

func (e *schedulerEnv) addAppointment(start time.Time, status model.AppointmentStatus) *model.Appointment {
	apt := &model.Appointment{
		ID:          uuid.New(),
		Title:       "Tax filing session",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		ServiceType: model.ServiceTypeTax,
		ClientID:    e.clientID,
		StaffID:     uuid.New(),
		Status:      status,
		Reminders:   model.NewReminderSchedule(start),
	}
	e.repo.appointments[apt.ID] = apt
	return apt
}

func TestScanDispatchesDueReminders(t *testing.T) {
	now := time.Now().Truncate(time.Second)

	t.Run("one day reminder exactly at its fire time", func(t *testing.T) {
		e := newSchedulerEnv(t, now)
		apt := e.addAppointment(now.Add(24*time.Hour), model.AppointmentStatusScheduled)

		require.NoError(t, e.scheduler.Scan(context.Background()))

		require.Len(t, e.notifier.sent, 1)
		assert.Equal(t, model.NotificationKindReminder, e.notifier.sent[0].kind)
		assert.Equal(t, "1 day", e.notifier.sent[0].lead)
		assert.True(t, e.repo.appointments[apt.ID].Reminders[0].Sent)
		assert.False(t, e.repo.appointments[apt.ID].Reminders[1].Sent)
	})

	t.Run("future reminders stay untouched", func(t *testing.T) {
		e := newSchedulerEnv(t, now)
		e.addAppointment(now.Add(25*time.Hour), model.AppointmentStatusScheduled)

		require.NoError(t, e.scheduler.Scan(context.Background()))
		assert.Empty(t, e.notifier.sent)
	})

	t.Run("cancelled appointments are skipped", func(t *testing.T) {
		e := newSchedulerEnv(t, now)
		e.addAppointment(now.Add(30*time.Minute), model.AppointmentStatusCancelled)

		require.NoError(t, e.scheduler.Scan(context.Background()))
		assert.Empty(t, e.notifier.sent)
	})

	t.Run("both reminders overdue fire in one pass", func(t *testing.T) {
		e := newSchedulerEnv(t, now)
		apt := e.addAppointment(now.Add(30*time.Minute), model.AppointmentStatusRescheduled)

		require.NoError(t, e.scheduler.Scan(context.Background()))

		require.Len(t, e.notifier.sent, 2)
		assert.True(t, e.repo.appointments[apt.ID].Reminders[0].Sent)
		assert.True(t, e.repo.appointments[apt.ID].Reminders[1].Sent)
	})
}

func TestScanIsIdempotent(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	e := newSchedulerEnv(t, now)
	e.addAppointment(now.Add(time.Hour), model.AppointmentStatusScheduled)

	require.NoError(t, e.scheduler.Scan(context.Background()))
	require.NoError(t, e.scheduler.Scan(context.Background()))

	assert.Len(t, e.notifier.sent, 2, "one per due reminder, never re-sent")
}

func TestScanFailureIsolation(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	e := newSchedulerEnv(t, now)

	failing := e.addAppointment(now.Add(time.Hour), model.AppointmentStatusScheduled)
	healthy := e.addAppointment(now.Add(time.Hour), model.AppointmentStatusScheduled)
	e.notifier.failOnce[failing.ID] = true

	require.NoError(t, e.scheduler.Scan(context.Background()))

	var healthyCount int
	for _, d := range e.notifier.sent {
		if d.appointmentID == healthy.ID {
			healthyCount++
		}
	}
	assert.Equal(t, 2, healthyCount, "24h and 1h reminders for the healthy appointment")

	// The failed reminder stays unsent and is retried on the next pass.
	failedRems := e.repo.appointments[failing.ID].Reminders
	assert.False(t, failedRems[0].Sent)

	require.NoError(t, e.scheduler.Scan(context.Background()))
	assert.True(t, e.repo.appointments[failing.ID].Reminders[0].Sent)
	assert.True(t, e.repo.appointments[failing.ID].Reminders[1].Sent)
}

func TestLeadBucket(t *testing.T) {
	assert.Equal(t, "1 day", leadBucket(24*time.Hour))
	assert.Equal(t, "1 hour", leadBucket(time.Hour))
	assert.Equal(t, "1 hour", leadBucket(90*time.Minute))
	assert.Equal(t, "soon", leadBucket(30*time.Minute))
}
