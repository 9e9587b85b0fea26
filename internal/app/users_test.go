package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealsfly_review/internal/domain"
)

func TestRegisterLoginApproveFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.restaurant(t, "Gatekept", 12.9, 77.6)

	u, err := f.users.Register(ctx, "Nina", "  Nina ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "nina", u.Username)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.False(t, u.Approved)

	tok, lu, err := f.auth.Login(ctx, "NINA", "hunter22", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, u.ID, lu.ID)
	sess, err := f.auth.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.Session{UserID: u.ID, Role: domain.RoleUser}, sess)

	_, err = f.tasks.Assign(ctx, sess, r.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.users.ApproveUser(ctx, f.admin, u.ID)
	require.NoError(t, err)

	// Same token: approval is read from the store on every call.
	_, err = f.tasks.Assign(ctx, sess, r.ID)
	require.NoError(t, err)

	me, err := f.users.Me(ctx, sess)
	require.NoError(t, err)
	assert.True(t, me.Approved)
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.Register(ctx, "A", "alpha", "12345")
	assert.ErrorIs(t, err, domain.ErrInvalid)
	_, err = f.users.Register(ctx, "", "alpha", "123456")
	assert.ErrorIs(t, err, domain.ErrInvalid)
	_, err = f.users.Register(ctx, "A", "alpha", "123456")
	require.NoError(t, err)
	_, err = f.users.Register(ctx, "B", "ALPHA", "123456")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.reviewer(t, "uma", true)

	_, _, err := f.auth.Login(ctx, "uma", "wrong", domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, _, err = f.auth.Login(ctx, "nobody", "password1", domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, _, err = f.auth.Login(ctx, "uma", "password1", domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.auth.VerifyToken("garbage")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestDeleteUser_ReleasesPendingRestaurants(t *testing.T) {
	onEachStore(t, func(t *testing.T, f *fixture) {
		ctx := context.Background()
		held := f.restaurant(t, "Held", 12.9, 77.6)
		reviewed := f.restaurant(t, "Reviewed", 12.9, 77.6)
		u := f.reviewer(t, "uma", true)

		_, err := f.tasks.Assign(ctx, u, held.ID)
		require.NoError(t, err)
		task, err := f.tasks.Assign(ctx, u, reviewed.ID)
		require.NoError(t, err)
		_, err = f.reviews.SubmitReview(ctx, u, task.ID, validImages())
		require.NoError(t, err)

		users, err := f.users.ListUsers(ctx, f.admin)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, 1, users[0].TasksCompleted)

		assert.ErrorIs(t, f.users.DeleteUser(ctx, u, u.UserID), domain.ErrForbidden)
		assert.ErrorIs(t, f.users.DeleteUser(ctx, f.admin, f.admin.UserID), domain.ErrForbidden)
		require.NoError(t, f.users.DeleteUser(ctx, f.admin, u.UserID))
		assert.ErrorIs(t, f.users.DeleteUser(ctx, f.admin, u.UserID), domain.ErrNotFound)

		got, _ := f.store.GetRestaurant(ctx, held.ID)
		assert.Equal(t, domain.StatusNotStarted, got.ReviewStatus)
		got, _ = f.store.GetRestaurant(ctx, reviewed.ID)
		assert.Equal(t, domain.StatusCompleted, got.ReviewStatus)
		assert.Contains(t, f.events.types(), domain.EventTaskReleased)
	})
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.reviewer(t, "uma", true)

	assert.ErrorIs(t, f.auth.ChangePassword(ctx, u, "password1", "password2"), domain.ErrForbidden)
	assert.ErrorIs(t, f.auth.ChangePassword(ctx, f.admin, "nope", "new-secret"), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.auth.ChangePassword(ctx, f.admin, "secret-pass", "abc"), domain.ErrInvalid)
	require.NoError(t, f.auth.ChangePassword(ctx, f.admin, "secret-pass", "new-secret"))

	_, _, err := f.auth.Login(ctx, "root", "new-secret", domain.RoleAdmin)
	require.NoError(t, err)
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, created, err := f.users.EnsureAdmin(ctx, "Root", "ROOT", "whatever")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, f.admin.UserID, a.ID)

	f.reviewer(t, "uma", true)
	_, _, err = f.users.EnsureAdmin(ctx, "Uma", "uma", "password1")
	assert.ErrorIs(t, err, domain.ErrConflict)
}
