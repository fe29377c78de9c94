package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

type UserService struct {
	Store  store.Store
	Ledger *TokenLedger
	Authz  *AuthorizationResolver

	StoreTimeout time.Duration
}

// GetUserByID fetches the public view of a user.
func (s *UserService) GetUserByID(ctx context.Context, userID int64) (domain.PublicUser, error) {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PublicUser{}, ErrUserNotFound
		}
		return domain.PublicUser{}, err
	}
	return u.Public(), nil
}

// DeleteUser revokes the user's refresh families before the row goes, since
// the durable cascade alone would leave their fast index entries live.
func (s *UserService) DeleteUser(ctx context.Context, userID int64) error {
	l := slogx.FromContext(ctx)

	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return err
	}

	if err := s.Ledger.RevokeUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user: revoke sessions: %w", err)
	}

	sctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()
	if err := s.Store.Users().DeleteUser(sctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.Authz.InvalidateUserCache(ctx, userID); err != nil {
		l.Warn("failed to invalidate permission cache", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	l.Info("user deleted", slog.Int64("user_id", userID))
	return nil
}
