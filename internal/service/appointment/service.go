package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/servicehub/booking-api/internal/model"
	"github.com/servicehub/booking-api/internal/repository"
	"github.com/servicehub/booking-api/internal/service/notification"
	apperr "github.com/servicehub/booking-api/pkg/errors"
	"github.com/servicehub/booking-api/pkg/logger"
)

type Service struct {
	repo     repository.AppointmentRepository
	users    repository.UserDirectory
	resolver *StaffResolver
	notifSvc notification.Service
	logger   *logger.Logger
}

func NewService(
	repo repository.AppointmentRepository,
	users repository.UserDirectory,
	resolver *StaffResolver,
	notifSvc notification.Service,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		resolver: resolver,
		notifSvc: notifSvc,
		logger:   log,
	}
}

// RequestAppointment creates a new appointment on behalf of the client actor.
func (s *Service) RequestAppointment(ctx context.Context, actor model.Actor, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	serviceType, ok := model.ParseServiceType(req.ServiceType)
	if !ok {
		return nil, apperr.BadRequest(fmt.Sprintf("unknown service type %q", req.ServiceType), nil)
	}

	if !req.EndTime.After(req.StartTime) {
		return nil, apperr.BadRequest("end time must be after start time", nil)
	}

	serviceID := req.ServiceID
	if serviceType == model.ServiceTypeOther {
		serviceID = nil
	}

	staffID, err := s.resolver.Resolve(ctx, serviceType, serviceID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	apt := &model.Appointment{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		ServiceType: serviceType,
		ServiceID:   serviceID,
		ClientID:    actor.ID,
		StaffID:     staffID,
		Location:    req.Location,
		Status:      model.AppointmentStatusScheduled,
		Reminders:   model.NewReminderSchedule(req.StartTime),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	s.notify(ctx, model.NotificationKindRequested, apt.ClientID, apt, nil)
	s.notify(ctx, model.NotificationKindAssigned, apt.StaffID, apt, nil)

	s.materialize(ctx, apt)
	return apt, nil
}

// GetAppointment returns a single appointment, scoped to the actor's role.
func (s *Service) GetAppointment(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && apt.ClientID != actor.ID && apt.StaffID != actor.ID {
		return nil, apperr.Forbidden("appointment belongs to another user")
	}
	s.materialize(ctx, apt)
	return apt, nil
}

// ListAppointments applies the role-based default scope before filtering:
// clients see their own bookings, staff see assigned-or-own, admins see all.
func (s *Service) ListAppointments(ctx context.Context, actor model.Actor, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}

	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleStaff:
		filters.ClientID = actor.ID
		filters.StaffID = actor.ID
	default:
		filters.ClientID = actor.ID
		filters.StaffID = uuid.Nil
	}

	appointments, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	s.materialize(ctx, appointments...)
	return appointments, nil
}

// UpdateAppointment applies a partial update. The assigned staff member and
// administrators may edit any appointment; the client may edit their own
// while it is still scheduled. Only administrators may touch the staff
// binding through this path.
func (s *Service) UpdateAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.IsAdmin(), apt.StaffID == actor.ID:
	case apt.ClientID == actor.ID && apt.Status == model.AppointmentStatusScheduled:
	default:
		return nil, apperr.Forbidden("not allowed to update this appointment")
	}

	if req.StaffID != nil && !actor.IsAdmin() {
		return nil, apperr.Forbidden("only administrators may reassign staff")
	}

	priorStatus := apt.Status
	priorStart := apt.StartTime

	if req.Title != nil {
		apt.Title = *req.Title
	}
	if req.Description != nil {
		apt.Description = *req.Description
	}
	if req.StartTime != nil {
		apt.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		apt.EndTime = *req.EndTime
	}
	if req.Location != nil {
		apt.Location = *req.Location
	}
	if req.Status != nil {
		status, ok := model.ParseAppointmentStatus(*req.Status)
		if !ok {
			return nil, apperr.InvalidStatus(*req.Status)
		}
		apt.Status = status
	}
	if req.StaffID != nil {
		exists, err := s.users.Exists(ctx, *req.StaffID)
		if err != nil {
			return nil, fmt.Errorf("failed to check staff user: %w", err)
		}
		if !exists {
			return nil, apperr.NotFound("staff user", nil)
		}
		apt.StaffID = *req.StaffID
	}

	if !apt.EndTime.After(apt.StartTime) {
		return nil, apperr.BadRequest("end time must be after start time", nil)
	}

	// A moved start time invalidates the unsent part of the reminder
	// schedule; already-sent reminders stay sent.
	if !apt.StartTime.Equal(priorStart) {
		rescheduled := model.NewReminderSchedule(apt.StartTime)
		for i := range rescheduled {
			if i < len(apt.Reminders) && apt.Reminders[i].Sent {
				rescheduled[i] = apt.Reminders[i]
			}
		}
		apt.Reminders = rescheduled
	}

	if err := s.repo.Update(ctx, apt); err != nil {
		return nil, err
	}

	if apt.Status != priorStatus {
		s.notify(ctx, model.NotificationKindStatusChanged, apt.ClientID, apt, nil)
	}

	s.materialize(ctx, apt)
	return apt, nil
}

// CancelAppointment moves a scheduled or rescheduled appointment into the
// terminal cancelled state.
func (s *Service) CancelAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, reason string) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() && apt.ClientID != actor.ID && apt.StaffID != actor.ID {
		return nil, apperr.Forbidden("not allowed to cancel this appointment")
	}

	if apt.Status != model.AppointmentStatusScheduled && apt.Status != model.AppointmentStatusRescheduled {
		return nil, apperr.InvalidTransition(string(apt.Status), string(model.AppointmentStatusCancelled))
	}

	apt.Status = model.AppointmentStatusCancelled
	if reason != "" {
		apt.Description = appendNote(apt.Description, "Cancelled: "+reason)
	}

	if err := s.repo.Update(ctx, apt); err != nil {
		return nil, err
	}

	extra := map[string]string{"reason": reason}
	if actor.ID != apt.ClientID {
		s.notify(ctx, model.NotificationKindCancelled, apt.ClientID, apt, extra)
	}
	if actor.ID != apt.StaffID {
		s.notify(ctx, model.NotificationKindCancelled, apt.StaffID, apt, extra)
	}

	s.materialize(ctx, apt)
	return apt, nil
}

// ReassignAppointment binds the appointment to a different staff member.
// Administrators only. Reassigning to the already-assigned staff member is a
// no-op that still refreshes updated_at and sends no notifications.
func (s *Service) ReassignAppointment(ctx context.Context, actor model.Actor, id uuid.UUID, newStaffID uuid.UUID) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() {
		return nil, apperr.Forbidden("only administrators may reassign appointments")
	}

	exists, err := s.users.Exists(ctx, newStaffID)
	if err != nil {
		return nil, fmt.Errorf("failed to check staff user: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("staff user", nil)
	}

	previousStaffID := apt.StaffID
	apt.StaffID = newStaffID

	if err := s.repo.Update(ctx, apt); err != nil {
		return nil, err
	}

	if previousStaffID != newStaffID {
		s.notify(ctx, model.NotificationKindAssigned, newStaffID, apt, nil)
		s.notify(ctx, model.NotificationKindReassigned, previousStaffID, apt, nil)
		s.notify(ctx, model.NotificationKindReassigned, apt.ClientID, apt, nil)
	}

	s.materialize(ctx, apt)
	return apt, nil
}

// ChangeStatus moves the appointment through the state machine. Permitted
// for the assigned staff member or an administrator.
func (s *Service) ChangeStatus(ctx context.Context, actor model.Actor, id uuid.UUID, rawStatus string, notes string) (*model.Appointment, error) {
	status, ok := model.ParseAppointmentStatus(rawStatus)
	if !ok {
		return nil, apperr.InvalidStatus(rawStatus)
	}

	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() && apt.StaffID != actor.ID {
		return nil, apperr.Forbidden("not allowed to change the status of this appointment")
	}

	if !apt.Status.CanTransition(status) {
		return nil, apperr.InvalidTransition(string(apt.Status), string(status))
	}

	apt.Status = status
	if notes != "" {
		apt.Description = appendNote(apt.Description, notes)
	}

	if err := s.repo.Update(ctx, apt); err != nil {
		return nil, err
	}

	s.notify(ctx, model.NotificationKindStatusChanged, apt.ClientID, apt, nil)

	s.materialize(ctx, apt)
	return apt, nil
}

// materialize fills in the client and staff identities on each record.
// Lookup failures leave the identifier-only view; they never fail the
// operation that produced the records.
func (s *Service) materialize(ctx context.Context, appointments ...*model.Appointment) {
	cache := make(map[uuid.UUID]*model.User)
	lookup := func(id uuid.UUID) *model.User {
		if u, ok := cache[id]; ok {
			return u
		}
		u, err := s.users.Get(ctx, id)
		if err != nil {
			s.logger.Warn("failed to materialize user", "user_id", id.String())
			u = nil
		}
		cache[id] = u
		return u
	}
	for _, apt := range appointments {
		apt.Client = lookup(apt.ClientID)
		apt.Staff = lookup(apt.StaffID)
	}
}

// notify enqueues a single notification. Failures are logged and swallowed:
// delivery problems never undo the state change that triggered them.
func (s *Service) notify(ctx context.Context, kind model.NotificationKind, recipientID uuid.UUID, apt *model.Appointment, extra map[string]string) {
	recipient, err := s.users.Get(ctx, recipientID)
	if err != nil {
		s.logger.Error(err, "failed to load notification recipient",
			"recipient_id", recipientID.String(), "appointment_id", apt.ID.String())
		return
	}
	if err := s.notifSvc.Notify(ctx, kind, recipient, apt, extra); err != nil {
		s.logger.Error(err, "failed to enqueue notification",
			"kind", string(kind), "appointment_id", apt.ID.String())
	}
}

func appendNote(description, note string) string {
	if description == "" {
		return note
	}
	return description + "\n" + note
}
