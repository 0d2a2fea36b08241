package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	active := []AppointmentStatus{AppointmentStatusScheduled, AppointmentStatusRescheduled}
	for _, from := range active {
		assert.True(t, from.CanTransition(AppointmentStatusCompleted), "%s -> completed", from)
		assert.True(t, from.CanTransition(AppointmentStatusCancelled), "%s -> cancelled", from)
		assert.True(t, from.CanTransition(AppointmentStatusRescheduled), "%s -> rescheduled", from)
		assert.False(t, from.CanTransition(AppointmentStatusScheduled), "%s -> scheduled", from)
	}

	terminal := []AppointmentStatus{AppointmentStatusCompleted, AppointmentStatusCancelled}
	all := []AppointmentStatus{AppointmentStatusScheduled, AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusRescheduled}
	for _, from := range terminal {
		for _, to := range all {
			assert.False(t, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestParseAppointmentStatus(t *testing.T) {
	got, ok := ParseAppointmentStatus("rescheduled")
	assert.True(t, ok)
	assert.Equal(t, AppointmentStatusRescheduled, got)

	_, ok = ParseAppointmentStatus("postponed")
	assert.False(t, ok)

	_, ok = ParseAppointmentStatus("Scheduled")
	assert.False(t, ok, "status values are case sensitive")
}

func TestParseServiceType(t *testing.T) {
	got, ok := ParseServiceType("real_estate")
	assert.True(t, ok)
	assert.Equal(t, ServiceTypeRealEstate, got)

	_, ok = ParseServiceType("legal")
	assert.False(t, ok)
}

func TestNewReminderSchedule(t *testing.T) {
	start := time.Date(2026, 9, 15, 14, 0, 0, 0, time.UTC)
	reminders := NewReminderSchedule(start)

	require.Len(t, reminders, 2)
	assert.Equal(t, start.Add(-24*time.Hour), reminders[0].FireTime)
	assert.Equal(t, start.Add(-time.Hour), reminders[1].FireTime)
	assert.False(t, reminders[0].Sent)
	assert.False(t, reminders[1].Sent)
}

func TestRemindersScan(t *testing.T) {
	raw := []byte(`[{"fire_time":"2026-09-14T14:00:00Z","sent":true},{"fire_time":"2026-09-15T13:00:00Z","sent":false}]`)

	var r Reminders
	require.NoError(t, r.Scan(raw))
	require.Len(t, r, 2)
	assert.True(t, r[0].Sent)
	assert.False(t, r[1].Sent)

	var empty Reminders
	require.NoError(t, empty.Scan(nil))
	assert.Nil(t, empty)

	assert.Error(t, r.Scan(42))
}
