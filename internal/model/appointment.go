package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled   AppointmentStatus = "scheduled"
	AppointmentStatusCompleted   AppointmentStatus = "completed"
	AppointmentStatusCancelled   AppointmentStatus = "cancelled"
	AppointmentStatusRescheduled AppointmentStatus = "rescheduled"
)

// ParseAppointmentStatus validates a raw status value.
func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	switch AppointmentStatus(s) {
	case AppointmentStatusScheduled, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusRescheduled:
		return AppointmentStatus(s), true
	}
	return "", false
}

// statusTransitions is the full transition table. Cancelled and completed
// have no outgoing transitions; re-cancelling a cancelled appointment is
// rejected like any other transition out of a terminal state.
var statusTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusScheduled:   {AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusRescheduled},
	AppointmentStatusRescheduled: {AppointmentStatusCompleted, AppointmentStatusCancelled, AppointmentStatusRescheduled},
}

// CanTransition reports whether the state machine permits from -> to.
func (s AppointmentStatus) CanTransition(to AppointmentStatus) bool {
	for _, next := range statusTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type ServiceType string

const (
	ServiceTypeRealEstate ServiceType = "real_estate"
	ServiceTypeInsurance  ServiceType = "insurance"
	ServiceTypeVisa       ServiceType = "visa"
	ServiceTypeTax        ServiceType = "tax"
	ServiceTypeOther      ServiceType = "other"
)

func ParseServiceType(s string) (ServiceType, bool) {
	switch ServiceType(s) {
	case ServiceTypeRealEstate, ServiceTypeInsurance, ServiceTypeVisa,
		ServiceTypeTax, ServiceTypeOther:
		return ServiceType(s), true
	}
	return "", false
}

// Reminder offsets relative to the appointment start time.
var ReminderLeadTimes = []time.Duration{24 * time.Hour, time.Hour}

type Reminder struct {
	FireTime time.Time `json:"fire_time"`
	Sent     bool      `json:"sent"`
}

// Reminders is stored as a JSONB column on the appointment row.
type Reminders []Reminder

func (r Reminders) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *Reminders) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	case nil:
		*r = nil
		return nil
	default:
		return fmt.Errorf("unsupported reminders type %T", src)
	}
}

// NewReminderSchedule builds the standard two-entry schedule for a start time.
func NewReminderSchedule(startTime time.Time) Reminders {
	reminders := make(Reminders, 0, len(ReminderLeadTimes))
	for _, lead := range ReminderLeadTimes {
		reminders = append(reminders, Reminder{FireTime: startTime.Add(-lead)})
	}
	return reminders
}

type Appointment struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	Title       string            `db:"title" json:"title"`
	Description string            `db:"description" json:"description,omitempty"`
	StartTime   time.Time         `db:"start_time" json:"start_time"`
	EndTime     time.Time         `db:"end_time" json:"end_time"`
	ServiceType ServiceType       `db:"service_type" json:"service_type"`
	ServiceID   *uuid.UUID        `db:"service_id" json:"service_id,omitempty"`
	ClientID    uuid.UUID         `db:"client_id" json:"client_id"`
	StaffID     uuid.UUID         `db:"staff_id" json:"staff_id"`
	Location    string            `db:"location" json:"location,omitempty"`
	Status      AppointmentStatus `db:"status" json:"status"`
	Reminders   Reminders         `db:"reminders" json:"reminders"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`

	// Materialized identities, populated by the lifecycle service.
	Client *User `db:"-" json:"client,omitempty"`
	Staff  *User `db:"-" json:"staff,omitempty"`
}

type CreateAppointmentRequest struct {
	Title       string     `json:"title" binding:"required,max=200"`
	Description string     `json:"description" binding:"max=2000"`
	StartTime   time.Time  `json:"start_time" binding:"required,future"`
	EndTime     time.Time  `json:"end_time" binding:"required,gtfield=StartTime"`
	ServiceType string     `json:"service_type" binding:"required,oneof=real_estate insurance visa tax other"`
	ServiceID   *uuid.UUID `json:"service_id"`
	Location    string     `json:"location" binding:"max=500"`
}

type UpdateAppointmentRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Location    *string    `json:"location"`
	Status      *string    `json:"status"`
	StaffID     *uuid.UUID `json:"staff_id"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

type ReassignAppointmentRequest struct {
	StaffID uuid.UUID `json:"staff_id" binding:"required"`
}

type ChangeStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes" binding:"max=1000"`
}

type AppointmentFilters struct {
	ClientID    uuid.UUID
	StaffID     uuid.UUID
	Status      AppointmentStatus
	ServiceType ServiceType
	StartDate   time.Time
	EndDate     time.Time
	Limit       int
	Offset      int
}
