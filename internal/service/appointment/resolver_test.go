package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicehub/booking-api/internal/model"
	apperr "github.com/servicehub/booking-api/pkg/errors"
)

func TestStaffResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("catalog assignment wins", func(t *testing.T) {
		listing := uuid.New()
		dir := &fakeDirectory{staff: map[uuid.UUID]uuid.UUID{listing: staffID}}
		r := NewStaffResolver(dir, testUsers(), uuid.Nil)

		got, err := r.Resolve(ctx, model.ServiceTypeRealEstate, &listing)
		require.NoError(t, err)
		assert.Equal(t, staffID, got)
	})

	t.Run("unassigned record falls back to configured staff", func(t *testing.T) {
		listing := uuid.New()
		fallback := uuid.New()
		dir := &fakeDirectory{staff: map[uuid.UUID]uuid.UUID{}}
		r := NewStaffResolver(dir, testUsers(), fallback)

		got, err := r.Resolve(ctx, model.ServiceTypeRealEstate, &listing)
		require.NoError(t, err)
		assert.Equal(t, fallback, got)
	})

	t.Run("unassigned record without fallback picks the oldest administrator", func(t *testing.T) {
		listing := uuid.New()
		dir := &fakeDirectory{staff: map[uuid.UUID]uuid.UUID{}}
		users := testUsers()

		younger := &model.User{ID: uuid.New(), Email: "admin2@example.com", Role: model.RoleAdmin, CreatedAt: time.Unix(2000, 0)}
		users.users[younger.ID] = younger

		r := NewStaffResolver(dir, users, uuid.Nil)
		got, err := r.Resolve(ctx, model.ServiceTypeTax, &listing)
		require.NoError(t, err)
		assert.Equal(t, adminID, got)
	})

	t.Run("other skips the catalog even with a service id", func(t *testing.T) {
		id := uuid.New()
		dir := &fakeDirectory{missing: map[uuid.UUID]bool{id: true}}
		r := NewStaffResolver(dir, testUsers(), uuid.Nil)

		got, err := r.Resolve(ctx, model.ServiceTypeOther, &id)
		require.NoError(t, err)
		assert.Equal(t, adminID, got)
	})

	t.Run("missing catalog record propagates", func(t *testing.T) {
		id := uuid.New()
		dir := &fakeDirectory{missing: map[uuid.UUID]bool{id: true}}
		r := NewStaffResolver(dir, testUsers(), uuid.Nil)

		_, err := r.Resolve(ctx, model.ServiceTypeVisa, &id)
		assert.True(t, apperr.IsCode(err, apperr.ErrReferenceNotFound))
	})

	t.Run("no administrator in the directory", func(t *testing.T) {
		dir := &fakeDirectory{}
		users := newFakeUserDirectory(
			&model.User{ID: clientID, Email: "client@example.com", Role: model.RoleClient},
		)
		r := NewStaffResolver(dir, users, uuid.Nil)

		_, err := r.Resolve(ctx, model.ServiceTypeInsurance, nil)
		assert.True(t, apperr.IsCode(err, apperr.ErrNoAdminAvailable))
	})
}
