package service

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/kv"
)

func TestSession_RegisterThenLoginRefreshReplay(t *testing.T) {
	f := newFixture(t)

	u := f.register(t, "a@x.com", "pwd")
	require.Equal(t, int64(1), u.ID)

	res, err := f.session.Login(f.ctx, "a@x.com", "pwd")
	require.NoError(t, err)
	require.Equal(t, int64(1), res.User.ID)
	require.Equal(t, "a@x.com", res.User.Email)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	require.Equal(t, "Bearer", res.TokenType)
	require.Equal(t, int64(15*60), res.ExpiresIn)

	original, err := f.session.RefreshCodec.Verify(res.RefreshToken)
	require.NoError(t, err)

	rotated, err := f.session.Refresh(f.ctx, res.RefreshToken)
	require.NoError(t, err)

	next, err := f.session.RefreshCodec.Verify(rotated.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, original.ID, next.ID)
	require.Equal(t, original.FamilyID, next.FamilyID)

	// Replay of the original token kills the family.
	_, err = f.session.Refresh(f.ctx, res.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
	require.NotErrorIs(t, err, ErrTokenTheftDetected)

	_, err = f.session.Refresh(f.ctx, rotated.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestSession_LoginFailuresAreUniform(t *testing.T) {
	f := newFixture(t)
	f.register(t, "known@example.com", "correct-horse")

	_, err := f.session.Login(f.ctx, "unknown@example.com", "whatever")
	require.ErrorIs(t, err, ErrAuthFailed)

	_, err = f.session.Login(f.ctx, "known@example.com", "wrong")
	require.ErrorIs(t, err, ErrAuthFailed)

	res, err := f.session.Login(f.ctx, "  KNOWN@example.com ", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, "known@example.com", res.User.Email)
}

func TestSession_RegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dup@example.com", "password1")

	_, err := f.session.Register(f.ctx, "DUP@example.com", "password2")
	require.ErrorIs(t, err, ErrUserExists)

	require.Len(t, f.mail.welcomes, 1)
	require.Equal(t, "dup@example.com", f.mail.welcomes[0].To)
	require.Equal(t, f.session.WelcomeURL, f.mail.welcomes[0].Link)
}

func TestSession_RegisterSurvivesMailerFailure(t *testing.T) {
	f := newFixture(t)
	f.mail.err = errStoreDown

	u, err := f.session.Register(f.ctx, "mailfail@example.com", "password1")
	require.NoError(t, err)
	require.NotZero(t, u.ID)
}

func TestSession_RefreshRejectsGarbageAndWrongPurpose(t *testing.T) {
	f := newFixture(t)
	f.register(t, "purpose@example.com", "password1")

	res, err := f.session.Login(f.ctx, "purpose@example.com", "password1")
	require.NoError(t, err)

	_, err = f.session.Refresh(f.ctx, "not-a-token")
	require.ErrorIs(t, err, ErrInvalidRefresh)

	// An access token is signed with a different secret.
	_, err = f.session.Refresh(f.ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestSession_RefreshFailsClosedOnStoreOutage(t *testing.T) {
	f := newFixture(t)
	f.register(t, "outage@example.com", "password1")

	res, err := f.session.Login(f.ctx, "outage@example.com", "password1")
	require.NoError(t, err)

	f.fast.failExists.Store(true)
	_, err = f.session.Refresh(f.ctx, res.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestSession_LogoutDenylistsEvenWithGarbageRefresh(t *testing.T) {
	f := newFixture(t)
	f.register(t, "logout@example.com", "password1")

	res, err := f.session.Login(f.ctx, "logout@example.com", "password1")
	require.NoError(t, err)

	claims, err := f.session.Authenticate(f.ctx, res.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.session.Logout(f.ctx, claims.ID, claims.ExpiresAt.Time, "garbage"))

	_, err = f.session.Authenticate(f.ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	// The family was left alone since the refresh token was unreadable.
	_, err = f.session.Refresh(f.ctx, res.RefreshToken)
	require.NoError(t, err)
}

func TestSession_LogoutRevokesFamily(t *testing.T) {
	f := newFixture(t)
	f.register(t, "family@example.com", "password1")

	res, err := f.session.Login(f.ctx, "family@example.com", "password1")
	require.NoError(t, err)
	claims, err := f.access.Verify(res.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.session.Logout(f.ctx, claims.ID, claims.ExpiresAt.Time, res.RefreshToken))

	_, err = f.session.Refresh(f.ctx, res.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestSession_LogoutSkipsDenylistForExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "expired@example.com", "password1")

	res, err := f.session.Login(f.ctx, "expired@example.com", "password1")
	require.NoError(t, err)
	claims, err := f.access.Verify(res.AccessToken)
	require.NoError(t, err)

	f.clock.Advance(f.access.TTL + time.Second)
	require.NoError(t, f.session.Logout(f.ctx, claims.ID, claims.ExpiresAt.Time, ""))

	exists, err := f.mem.Exists(f.ctx, kv.DenylistKey(claims.ID))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestSession_AuthenticateFailsOpenOnDenylistOutage(t *testing.T) {
	f := newFixture(t)
	f.register(t, "open@example.com", "password1")

	res, err := f.session.Login(f.ctx, "open@example.com", "password1")
	require.NoError(t, err)

	f.fast.failExists.Store(true)
	claims, err := f.session.Authenticate(f.ctx, res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "1", claims.Subject)
}

func TestSession_RevokeAccess(t *testing.T) {
	f := newFixture(t)
	f.register(t, "kill@example.com", "password1")

	res, err := f.session.Login(f.ctx, "kill@example.com", "password1")
	require.NoError(t, err)
	claims, err := f.access.Verify(res.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.session.RevokeAccess(f.ctx, claims.ID, time.Minute))
	_, err = f.session.Authenticate(f.ctx, res.AccessToken)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Deny-list entries expire with the token.
	f.clock.Advance(2 * time.Minute)
	exists, err := f.mem.Exists(f.ctx, kv.DenylistKey(claims.ID))
	require.NoError(t, err)
	require.False(t, exists)

	require.ErrorIs(t, f.session.RevokeAccess(f.ctx, "", time.Minute), ErrInvalidToken)
}

func TestSession_PasswordResetSingleUse(t *testing.T) {
	f := newFixture(t)
	f.register(t, "reset@example.com", "oldpass123")

	err := f.session.RequestPasswordReset(f.ctx, "nobody@example.com")
	require.ErrorIs(t, err, ErrUserNotFound)

	before, err := f.session.Login(f.ctx, "reset@example.com", "oldpass123")
	require.NoError(t, err)

	require.NoError(t, f.session.RequestPasswordReset(f.ctx, "reset@example.com"))
	mail := f.mail.lastReset(t)
	require.Equal(t, "reset@example.com", mail.To)

	link, err := url.Parse(mail.Link)
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	require.NoError(t, f.session.ResetPassword(f.ctx, token, "newpass123"))
	require.ErrorIs(t, f.session.ResetPassword(f.ctx, token, "newpass456"), ErrInvalidOrExpiredToken)

	_, err = f.session.Login(f.ctx, "reset@example.com", "oldpass123")
	require.ErrorIs(t, err, ErrAuthFailed)
	_, err = f.session.Login(f.ctx, "reset@example.com", "newpass123")
	require.NoError(t, err)

	// Sessions opened before the reset are gone.
	_, err = f.session.Refresh(f.ctx, before.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)
}

func TestSession_ResetPasswordRejectsBadTokens(t *testing.T) {
	f := newFixture(t)
	f.register(t, "badreset@example.com", "password1")

	require.ErrorIs(t, f.session.ResetPassword(f.ctx, "junk", "x"), ErrInvalidOrExpiredToken)

	require.NoError(t, f.session.RequestPasswordReset(f.ctx, "badreset@example.com"))
	link, err := url.Parse(f.mail.lastReset(t).Link)
	require.NoError(t, err)
	token := link.Query().Get("token")

	// The ticket expires with the token.
	f.clock.Advance(f.session.ResetTTL + time.Minute)
	require.ErrorIs(t, f.session.ResetPassword(f.ctx, token, "newpass123"), ErrInvalidOrExpiredToken)
}

func TestResetLink(t *testing.T) {
	require.Equal(t, "tok", resetLink("", "tok"))
	require.Equal(t, "https://x/reset?token=a.b", resetLink("https://x/reset", "a.b"))
	require.Equal(t, "https://x/r?lang=en&token=a%2Bb", resetLink("https://x/r?lang=en", "a+b"))
}

func TestSession_ExpiresInIgnoresSubSecondClock(t *testing.T) {
	f := newFixture(t)
	f.register(t, "fraction@example.com", "pwd")

	f.clock.Advance(999 * time.Millisecond)
	res, err := f.session.Login(f.ctx, "fraction@example.com", "pwd")
	require.NoError(t, err)
	require.Equal(t, int64(15*60), res.ExpiresIn)

	f.clock.Advance(1500 * time.Millisecond)
	rotated, err := f.session.Refresh(f.ctx, res.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, int64(15*60), rotated.ExpiresIn)
}
