package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/servicehub/booking-api/internal/model"
	"github.com/servicehub/booking-api/internal/repository"
	apperr "github.com/servicehub/booking-api/pkg/errors"
)

// StaffResolver decides which staff member a new appointment is bound to.
// Professionals already responsible for the underlying service record take
// priority; everything else falls back to a single accountable administrator.
type StaffResolver struct {
	directory repository.ServiceDirectory
	users     repository.UserDirectory
	fallback  uuid.UUID
}

// NewStaffResolver creates a resolver. fallbackStaffID may be uuid.Nil, in
// which case the oldest administrator in the user directory is used instead.
func NewStaffResolver(directory repository.ServiceDirectory, users repository.UserDirectory, fallbackStaffID uuid.UUID) *StaffResolver {
	return &StaffResolver{
		directory: directory,
		users:     users,
		fallback:  fallbackStaffID,
	}
}

// Resolve returns the staff identifier for a new appointment. It never
// returns uuid.Nil without an error.
func (r *StaffResolver) Resolve(ctx context.Context, serviceType model.ServiceType, serviceID *uuid.UUID) (uuid.UUID, error) {
	if serviceID != nil && serviceType != model.ServiceTypeOther {
		staffID, err := r.directory.ResolveStaff(ctx, serviceType, *serviceID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to resolve staff from %s catalog: %w", serviceType, err)
		}
		if staffID != uuid.Nil {
			return staffID, nil
		}
	}

	if r.fallback != uuid.Nil {
		return r.fallback, nil
	}

	admin, err := r.users.FindAdministrator(ctx)
	if err != nil {
		if apperr.IsCode(err, apperr.ErrNotFound) {
			return uuid.Nil, apperr.NoAdminAvailable()
		}
		return uuid.Nil, fmt.Errorf("failed to find administrator: %w", err)
	}
	return admin.ID, nil
}
