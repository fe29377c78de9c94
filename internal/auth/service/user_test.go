package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUsers_GetAndDelete(t *testing.T) {
	f := newFixture(t)
	f.register(t, "gone@example.com", "password1")

	res, err := f.session.Login(f.ctx, "gone@example.com", "password1")
	require.NoError(t, err)

	u, err := f.users.GetUserByID(f.ctx, res.User.ID)
	require.NoError(t, err)
	require.Equal(t, "gone@example.com", u.Email)

	require.NoError(t, f.users.DeleteUser(f.ctx, u.ID))

	_, err = f.users.GetUserByID(f.ctx, u.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
	require.ErrorIs(t, f.users.DeleteUser(f.ctx, u.ID), ErrUserNotFound)

	// The refresh token died with the user.
	_, err = f.session.Refresh(f.ctx, res.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}
