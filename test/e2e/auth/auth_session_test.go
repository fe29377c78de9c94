package auth_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/pkg/authsdk"
)

func TestRegisterLoginProfile(t *testing.T) {
	t.Parallel()
	client := setupAuthService(t)

	user, session := registerAndLogin(t, client, "alice@example.com")

	me, err := session.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, user.ID, me.ID)
	require.Equal(t, "alice@example.com", me.Email)

	login, err := client.Login(t.Context(), "alice@example.com", userPassword)
	require.NoError(t, err)
	require.Equal(t, user.ID, login.User.ID)
	assertTokenResponse(t, &login.TokenResponse)

	_, err = client.Register(t.Context(), "alice@example.com", userPassword)
	assertCode(t, err, authsdk.ErrorCodeConflict)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	client := setupAuthService(t)
	registerAndLogin(t, client, "bob@example.com")

	_, wrongPassword := client.Login(t.Context(), "bob@example.com", "not-the-password")
	_, unknownEmail := client.Login(t.Context(), "nobody@example.com", userPassword)

	assertCode(t, wrongPassword, authsdk.ErrorCodeInvalidCredentials)
	assertCode(t, unknownEmail, authsdk.ErrorCodeInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestRefreshRotatesTokens(t *testing.T) {
	t.Parallel()
	client := setupAuthService(t)
	registerAndLogin(t, client, "carol@example.com")

	login, err := client.Login(t.Context(), "carol@example.com", userPassword)
	require.NoError(t, err)

	rotated, err := client.Refresh(t.Context(), login.RefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, rotated)
	require.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	again, err := client.Refresh(t.Context(), rotated.RefreshToken)
	require.NoError(t, err)
	assertTokenResponse(t, again)
}

func TestRefreshReuseRevokesFamily(t *testing.T) {
	t.Parallel()
	client := setupAuthService(t)
	registerAndLogin(t, client, "dave@example.com")

	login, err := client.Login(t.Context(), "dave@example.com", userPassword)
	require.NoError(t, err)

	rotated, err := client.Refresh(t.Context(), login.RefreshToken)
	require.NoError(t, err)

	// Replaying the spent token looks like theft
	_, err = client.Refresh(t.Context(), login.RefreshToken)
	assertCode(t, err, authsdk.ErrorCodeInvalidGrant)

	// and takes the legitimate successor down with it
	_, err = client.Refresh(t.Context(), rotated.RefreshToken)
	assertCode(t, err, authsdk.ErrorCodeInvalidGrant)

	// Other sessions of the same user are untouched
	other, err := client.AuthenticateWithPassword(t.Context(), "dave@example.com", userPassword)
	require.NoError(t, err)
	require.NoError(t, other.Refresh(t.Context()))
}

func TestConcurrentRefreshHasOneWinner(t *testing.T) {
	t.Parallel()
	client := setupAuthService(t)
	registerAndLogin(t, client, "erin@example.com")

	login, err := client.Login(t.Context(), "erin@example.com", userPassword)
	require.NoError(t, err)

	const racers = 5
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Refresh(t.Context(), login.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, wins, 1)
}

func TestLogoutEndsSession(t *testing.T) {
	t.Parallel()
	client := setupAuthService(t)
	registerAndLogin(t, client, "frank@example.com")

	session, err := client.AuthenticateWithPassword(t.Context(), "frank@example.com", userPassword)
	require.NoError(t, err)

	accessToken := session.AccessToken()
	refreshToken := session.RefreshToken()
	require.NoError(t, session.Logout(t.Context()))
	require.True(t, session.Closed())

	_, err = client.Refresh(t.Context(), refreshToken)
	assertCode(t, err, authsdk.ErrorCodeInvalidGrant)

	// The access token is deny-listed for the rest of its life
	replay := client.NewSessionFromTokens(accessToken, "", 900)
	_, err = replay.Me(t.Context())
	assertCode(t, err, authsdk.ErrorCodeInvalidToken)
}

func TestPasswordResetRequestIsAlwaysAccepted(t *testing.T) {
	t.Parallel()
	client := setupAuthService(t)
	registerAndLogin(t, client, "grace@example.com")

	require.NoError(t, client.RequestPasswordReset(t.Context(), "grace@example.com"))
	require.NoError(t, client.RequestPasswordReset(t.Context(), "ghost@example.com"))

	err := client.ResetPassword(t.Context(), "not-a-reset-token", "New-Password-123")
	assertCode(t, err, authsdk.ErrorCodeInvalidToken)
}
