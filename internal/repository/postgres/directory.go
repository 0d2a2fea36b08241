package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/servicehub/booking-api/internal/model"
	apperr "github.com/servicehub/booking-api/pkg/errors"
)

// catalogQueries maps each service domain to the lookup returning the
// identifier of whoever is currently responsible for the record. Real estate
// prefers the assigned agent and falls back to the property owner; the other
// catalogs carry a single nullable assignee.
var catalogQueries = map[model.ServiceType]struct {
	resource string
	query    string
}{
	model.ServiceTypeRealEstate: {
		resource: "property",
		query:    `SELECT COALESCE(agent_id, owner_id) FROM properties WHERE id = $1`,
	},
	model.ServiceTypeInsurance: {
		resource: "insurance policy",
		query:    `SELECT agent_id FROM insurance_policies WHERE id = $1`,
	},
	model.ServiceTypeVisa: {
		resource: "visa application",
		query:    `SELECT agent_id FROM visa_applications WHERE id = $1`,
	},
	model.ServiceTypeTax: {
		resource: "tax case",
		query:    `SELECT professional_id FROM tax_cases WHERE id = $1`,
	},
}

func (d *serviceDirectory) ResolveStaff(ctx context.Context, serviceType model.ServiceType, serviceID uuid.UUID) (uuid.UUID, error) {
	lookup, ok := catalogQueries[serviceType]
	if !ok {
		return uuid.Nil, nil
	}

	var assignee uuid.NullUUID
	err := d.db.GetContext(ctx, &assignee, lookup.query, serviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, apperr.ReferenceNotFound(lookup.resource)
		}
		return uuid.Nil, fmt.Errorf("failed to resolve staff for %s: %w", lookup.resource, err)
	}
	if !assignee.Valid {
		return uuid.Nil, nil
	}
	return assignee.UUID, nil
}
