package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// RolesService manages roles and permissions. Every change that alters what
// a user is allowed to do invalidates the affected permission caches once
// the durable write has committed.
type RolesService struct {
	Store store.Store
	Authz *AuthorizationResolver

	// StoreTimeout bounds each operation's durable work.
	StoreTimeout time.Duration
}

func (s *RolesService) CreatePermission(ctx context.Context, name, description string) (domain.Permission, error) {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()

	p, err := s.Store.Permissions().CreatePermission(ctx, domain.Permission{
		Name:        strings.TrimSpace(name),
		Description: description,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Permission{}, ErrPermissionExists
		}
		return domain.Permission{}, err
	}
	return p, nil
}

func (s *RolesService) GetPermission(ctx context.Context, id int64) (domain.Permission, error) {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()

	p, err := s.Store.Permissions().GetPermissionByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Permission{}, ErrPermissionNotFound
		}
		return domain.Permission{}, err
	}
	return p, nil
}

func (s *RolesService) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()
	return s.Store.Permissions().ListPermissions(ctx)
}

// DeletePermission removes a permission from every role that grants it.
func (s *RolesService) DeletePermission(ctx context.Context, id int64) error {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()

	var holders []int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if holders, err = tx.Permissions().ListUserIDsWithPermission(ctx, id); err != nil {
			return err
		}
		return tx.Permissions().DeletePermission(ctx, id)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPermissionNotFound
		}
		return err
	}

	s.invalidate(ctx, holders...)
	return nil
}

func (s *RolesService) CreateRole(ctx context.Context, name, description string) (domain.Role, error) {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()

	r, err := s.Store.Roles().CreateRole(ctx, domain.Role{
		Name:        strings.TrimSpace(name),
		Description: description,
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Role{}, ErrRoleExists
		}
		return domain.Role{}, err
	}
	return r, nil
}

func (s *RolesService) GetRole(ctx context.Context, id int64) (domain.Role, error) {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()

	r, err := s.Store.Roles().GetRoleByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Role{}, ErrRoleNotFound
		}
		return domain.Role{}, err
	}
	return r, nil
}

func (s *RolesService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()
	return s.Store.Roles().ListRoles(ctx)
}

// SetRolePermissions replaces the permissions of a role in one transaction
// and invalidates every holder of the role after commit.
func (s *RolesService) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()

	var holders []int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.Roles().GetRoleByID(ctx, roleID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRoleNotFound
			}
			return err
		}

		for _, pid := range permissionIDs {
			if _, err := tx.Permissions().GetPermissionByID(ctx, pid); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("%w: %d", ErrPermissionNotFound, pid)
				}
				return err
			}
		}

		if err := tx.Roles().SetRolePermissions(ctx, roleID, permissionIDs); err != nil {
			return err
		}

		var err error
		holders, err = tx.Roles().ListUserIDsWithRole(ctx, roleID)
		return err
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, holders...)
	slogx.FromContext(ctx).Info("role permissions replaced",
		slog.Int64("role_id", roleID),
		slog.Int("permissions", len(permissionIDs)),
		slog.Int("affected_users", len(holders)),
	)
	return nil
}

// AssignRole grants a role to a user.
func (s *RolesService) AssignRole(ctx context.Context, userID, roleID int64) error {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()

	if _, err := s.Store.Users().GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return err
	}

	if err := s.Store.Roles().AssignRoleToUser(ctx, userID, roleID); err != nil {
		return err
	}

	s.invalidate(ctx, userID)
	return nil
}

// RemoveRole takes a role away from a user.
func (s *RolesService) RemoveRole(ctx context.Context, userID, roleID int64) error {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()

	if err := s.Store.Roles().RemoveRoleFromUser(ctx, userID, roleID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRoleNotFound
		}
		return err
	}

	s.invalidate(ctx, userID)
	return nil
}

func (s *RolesService) ListUserRoles(ctx context.Context, userID int64) ([]domain.Role, error) {
	ctx, cancel := storeCtx(ctx, s.StoreTimeout)
	defer cancel()
	return s.Store.Roles().ListRolesForUser(ctx, userID)
}

// invalidate is best effort: the cache entries expire on their own TTL.
func (s *RolesService) invalidate(ctx context.Context, userIDs ...int64) {
	if s.Authz == nil || len(userIDs) == 0 {
		return
	}
	if err := s.Authz.InvalidateUsersCache(ctx, userIDs...); err != nil {
		slogx.FromContext(ctx).Warn("failed to invalidate permission cache",
			slog.Int("users", len(userIDs)),
			slog.Any("error", err),
		)
	}
}
