package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/kv"
	"github.com/aussiebroadwan/gatehouse/internal/auth/metrics"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/cryptox"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// SessionService is the user-facing side of authentication and the only
// place that verifies passwords.
type SessionService struct {
	Store   store.Store
	Fast    kv.Store
	Ledger  *TokenLedger
	Access  *AccessTokenIssuer
	Hasher  PasswordHasher
	Mailer  Mailer
	Clock   Clock
	Metrics *metrics.Metrics

	// RefreshCodec and ResetCodec must use secrets distinct from each other
	// and from the access codec.
	RefreshCodec TokenCodec
	ResetCodec   TokenCodec

	Issuer       string
	ResetTTL     time.Duration
	ResetURL     string
	WelcomeURL   string
	StoreTimeout time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// Login checks credentials and opens a new refresh family.
func (s *SessionService) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	l := slogx.FromContext(ctx)

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn the same hashing work as a real mismatch.
			s.Hasher.Verify(password, s.dummy())
			s.Metrics.Login(metrics.ResultFailed)
			return domain.LoginResult{}, ErrAuthFailed
		}
		return domain.LoginResult{}, fmt.Errorf("login: load user: %w", err)
	}

	if !s.Hasher.Verify(password, user.PasswordHash) {
		s.Metrics.Login(metrics.ResultFailed)
		return domain.LoginResult{}, ErrAuthFailed
	}

	issued, err := s.Ledger.Issue(ctx, user.ID)
	if err != nil {
		return domain.LoginResult{}, fmt.Errorf("login: %w", err)
	}

	pair, err := s.pair(issued)
	if err != nil {
		// The family exists but its token never left the building.
		if rerr := s.Ledger.RevokeFamily(ctx, issued.FamilyID); rerr != nil {
			l.Warn("failed to revoke family after signing failure", slog.Any("error", rerr))
		}
		return domain.LoginResult{}, fmt.Errorf("login: %w", err)
	}

	s.Metrics.Login(metrics.ResultOK)
	l.Info("user logged in", slog.Int64("user_id", user.ID))

	return domain.LoginResult{User: user.Public(), TokenPair: pair}, nil
}

// Refresh rotates a refresh token. Every failure, including a detected
// replay, is reported as ErrInvalidRefresh. Store outages additionally wrap
// ErrStoreUnavailable so the transport can answer 503 instead of 401.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.RefreshCodec.Verify(refreshToken)
	if err != nil {
		s.Metrics.Rotation(metrics.ResultInvalid)
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	issued, err := s.Ledger.Rotate(ctx, claims.ID, claims.FamilyID)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenTheftDetected):
			s.Metrics.Rotation(metrics.ResultTheft)
			l.Warn("refresh rejected: token reuse",
				slog.String("family_id", claims.FamilyID),
				slog.String("user_id", claims.Subject),
				slog.String("token_fp", cryptox.FingerprintToken(refreshToken)),
			)
			return domain.TokenPair{}, ErrInvalidRefresh
		case errors.Is(err, ErrStoreUnavailable):
			s.Metrics.Rotation(metrics.ResultFailed)
			l.Error("refresh rejected: store unavailable", slog.Any("error", err))
			return domain.TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidRefresh, ErrStoreUnavailable)
		case errors.Is(err, ErrFamilyInactive):
			s.Metrics.Rotation(metrics.ResultInvalid)
			return domain.TokenPair{}, ErrInvalidRefresh
		default:
			s.Metrics.Rotation(metrics.ResultFailed)
			l.Error("refresh rejected", slog.Any("error", err))
			return domain.TokenPair{}, ErrInvalidRefresh
		}
	}

	pair, err := s.pair(issued)
	if err != nil {
		if rerr := s.Ledger.RevokeOne(ctx, issued.JTI); rerr != nil {
			l.Warn("failed to revoke rotated jti after signing failure", slog.Any("error", rerr))
		}
		s.Metrics.Rotation(metrics.ResultFailed)
		l.Error("refresh rejected: signing failed", slog.Any("error", err))
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	s.Metrics.Rotation(metrics.ResultOK)
	return pair, nil
}

// Logout deny-lists the access token for whatever lifetime it has left and
// then tears down the refresh family. Only the deny-list write can fail it.
func (s *SessionService) Logout(ctx context.Context, accessJTI string, accessExpiry time.Time, refreshToken string) error {
	l := slogx.FromContext(ctx)

	if ttl := accessExpiry.Sub(clockOrSystem(s.Clock).Now()); ttl > 0 {
		if err := s.RevokeAccess(ctx, accessJTI, ttl); err != nil {
			return err
		}
	}

	if refreshToken == "" {
		return nil
	}

	claims, err := s.RefreshCodec.Verify(refreshToken)
	if err != nil {
		l.Debug("logout with unverifiable refresh token", slog.Any("error", err))
		return nil
	}
	if err := s.Ledger.RevokeFamily(ctx, claims.FamilyID); err != nil {
		l.Warn("failed to revoke family on logout",
			slog.String("family_id", claims.FamilyID),
			slog.Any("error", err),
		)
	}
	return nil
}

// RevokeAccess deny-lists an access jti for ttl.
func (s *SessionService) RevokeAccess(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return ErrInvalidToken
	}
	if ttl <= 0 {
		return nil
	}

	sctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()
	if err := s.Fast.Set(sctx, kv.DenylistKey(jti), "1", ttl); err != nil {
		return fmt.Errorf("deny-list access token: %w", err)
	}

	s.Metrics.DenylistWrite()
	return nil
}

// Authenticate verifies an access token and rejects deny-listed jtis. A
// deny-list read failure is logged and the token is let through.
func (s *SessionService) Authenticate(ctx context.Context, token string) (jwtx.Claims, error) {
	claims, err := s.Access.Verify(token)
	if err != nil {
		return jwtx.Claims{}, err
	}

	sctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()
	denied, err := s.Fast.Exists(sctx, kv.DenylistKey(claims.ID))
	if err != nil {
		slogx.FromContext(ctx).Warn("deny-list check failed, allowing token",
			slog.String("jti", claims.ID),
			slog.Any("error", err),
		)
		return claims, nil
	}
	if denied {
		return jwtx.Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// Register creates a user and sends the welcome mail.
func (s *SessionService) Register(ctx context.Context, email, password string) (domain.PublicUser, error) {
	l := slogx.FromContext(ctx)

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.PublicUser{}, fmt.Errorf("register: hash password: %w", err)
	}

	now := clockOrSystem(s.Clock).Now()
	sctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()
	user, err := s.Store.Users().CreateUser(sctx, domain.User{
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.PublicUser{}, ErrUserExists
		}
		return domain.PublicUser{}, fmt.Errorf("register: %w", err)
	}

	if err := s.Mailer.SendWelcomeEmail(ctx, user.Email, s.WelcomeURL); err != nil {
		l.Error("failed to send welcome email", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}

	l.Info("user registered", slog.Int64("user_id", user.ID))
	return user.Public(), nil
}

// RequestPasswordReset mails a single-use reset link. Unknown emails return
// ErrUserNotFound; hiding that is up to the transport.
func (s *SessionService) RequestPasswordReset(ctx context.Context, email string) error {
	l := slogx.FromContext(ctx)

	user, err := s.userByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("password reset: load user: %w", err)
	}

	subject := strconv.FormatInt(user.ID, 10)
	claims := jwtx.NewClaims(subject, jwtx.PurposeReset, s.ResetTTL, s.Issuer, clockOrSystem(s.Clock).Now())

	sctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()
	if err := s.Fast.Set(sctx, kv.PasswordResetKey(claims.ID), subject, s.ResetTTL); err != nil {
		return fmt.Errorf("password reset: store ticket: %w", err)
	}

	token, err := s.ResetCodec.Sign(claims)
	if err != nil {
		return fmt.Errorf("password reset: sign: %w", err)
	}

	if err := s.Mailer.SendPasswordReset(ctx, user.Email, resetLink(s.ResetURL, token)); err != nil {
		l.Error("failed to send password reset email", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}

	s.Metrics.PasswordReset(metrics.ResetRequested)
	return nil
}

// ResetPassword consumes a reset token and sets a new password. Every
// refresh family of the user is revoked afterwards.
func (s *SessionService) ResetPassword(ctx context.Context, token, newPassword string) error {
	l := slogx.FromContext(ctx)

	claims, err := s.ResetCodec.Verify(token)
	if err != nil {
		s.Metrics.PasswordReset(metrics.ResetRejected)
		return ErrInvalidOrExpiredToken
	}

	sctx, cancel := storeCtx(ctx, s.StoreTimeout)
	owner, err := s.Fast.Take(sctx, kv.PasswordResetKey(claims.ID))
	cancel()
	if err != nil {
		if errors.Is(err, kv.ErrNil) {
			s.Metrics.PasswordReset(metrics.ResetRejected)
			return ErrInvalidOrExpiredToken
		}
		return fmt.Errorf("%w: consume reset ticket: %v", ErrStoreUnavailable, err)
	}
	if owner != claims.Subject {
		s.Metrics.PasswordReset(metrics.ResetRejected)
		return ErrInvalidOrExpiredToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("password reset: hash password: %w", err)
	}
	uctx, cancel := storeCtx(ctx, s.StoreTimeout)
	_, err = s.Store.Users().UpdateUser(uctx, userID, domain.UserUpdate{PasswordHash: &hash})
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("password reset: update user: %w", err)
	}

	if err := s.Ledger.RevokeUser(ctx, userID); err != nil {
		l.Warn("failed to revoke sessions after password reset", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	s.Metrics.PasswordReset(metrics.ResetCompleted)
	l.Info("password reset", slog.Int64("user_id", userID))
	return nil
}

// pair signs the access and refresh tokens for an issued refresh jti.
func (s *SessionService) pair(issued domain.IssuedRefresh) (domain.TokenPair, error) {
	access, err := s.Access.Sign(issued.UserID)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	now := clockOrSystem(s.Clock).Now()
	claims := jwtx.NewClaims(strconv.FormatInt(issued.UserID, 10), jwtx.PurposeRefresh, issued.AbsoluteExpiry.Sub(now), s.Issuer, now)
	claims.ID = issued.JTI
	claims.FamilyID = issued.FamilyID

	refresh, err := s.RefreshCodec.Sign(claims)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(access.Lifetime() / time.Second),
	}, nil
}

func (s *SessionService) userByEmail(ctx context.Context, email string) (domain.User, error) {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()
	return s.Store.Users().GetUserByEmail(ctx, normalizeEmail(email))
}

func (s *SessionService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.Hasher.Hash("gatehouse-dummy-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func resetLink(base, token string) string {
	if base == "" {
		return token
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}
