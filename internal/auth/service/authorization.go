package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/kv"
	"github.com/aussiebroadwan/gatehouse/internal/auth/metrics"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// AuthorizationResolver answers permission questions for a user. Permission
// sets are cached in the fast store under permissions:user:<id>; anything
// that changes a user's roles, or a role's permissions, must call
// InvalidateUserCache afterwards.
type AuthorizationResolver struct {
	Store   store.Store
	Fast    kv.Store
	Metrics *metrics.Metrics

	CacheTTL     time.Duration
	StoreTimeout time.Duration
}

// GetPermissions returns the distinct permissions granted to the user through
// their roles. Cache failures fall through to the durable store.
func (a *AuthorizationResolver) GetPermissions(ctx context.Context, userID int64, useCache bool) ([]domain.Permission, error) {
	l := slogx.FromContext(ctx)
	key := kv.PermissionsKey(userID)

	if useCache {
		if perms, ok := a.cached(ctx, key); ok {
			return perms, nil
		}
	}

	dctx, cancel := storeCtx(ctx, a.StoreTimeout)
	perms, err := a.Store.Permissions().ListPermissionsForUser(dctx, userID)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}
	if perms == nil {
		perms = []domain.Permission{}
	}

	data, err := json.Marshal(perms)
	if err != nil {
		l.Warn("failed to encode permission cache entry", slog.Int64("user_id", userID), slog.Any("error", err))
		return perms, nil
	}

	sctx, cancel := storeCtx(ctx, a.StoreTimeout)
	defer cancel()
	if err := a.Fast.Set(sctx, key, string(data), a.CacheTTL); err != nil {
		l.Warn("failed to write permission cache", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	return perms, nil
}

func (a *AuthorizationResolver) cached(ctx context.Context, key string) ([]domain.Permission, bool) {
	sctx, cancel := storeCtx(ctx, a.StoreTimeout)
	defer cancel()

	raw, err := a.Fast.Get(sctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNil) {
			a.Metrics.PermissionCache(metrics.CacheMiss)
		} else {
			a.Metrics.PermissionCache(metrics.CacheError)
			slogx.FromContext(ctx).Warn("permission cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}

	var perms []domain.Permission
	if err := json.Unmarshal([]byte(raw), &perms); err != nil {
		a.Metrics.PermissionCache(metrics.CacheError)
		slogx.FromContext(ctx).Warn("permission cache entry corrupt", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}

	a.Metrics.PermissionCache(metrics.CacheHit)
	return perms, true
}

func (a *AuthorizationResolver) permissionNames(ctx context.Context, userID int64) (map[string]struct{}, error) {
	perms, err := a.GetPermissions(ctx, userID, true)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		names[p.Name] = struct{}{}
	}
	return names, nil
}

func (a *AuthorizationResolver) roleNames(ctx context.Context, userID int64) (map[string]struct{}, error) {
	sctx, cancel := storeCtx(ctx, a.StoreTimeout)
	defer cancel()
	roles, err := a.Store.Roles().ListRolesForUser(sctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}
	names := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		names[r.Name] = struct{}{}
	}
	return names, nil
}

func (a *AuthorizationResolver) HasPermission(ctx context.Context, userID int64, name string) (bool, error) {
	return a.HasAnyPermission(ctx, userID, name)
}

// HasAnyPermission is false for an empty list.
func (a *AuthorizationResolver) HasAnyPermission(ctx context.Context, userID int64, names ...string) (bool, error) {
	if len(names) == 0 {
		return false, nil
	}
	held, err := a.permissionNames(ctx, userID)
	if err != nil {
		return false, err
	}
	return containsAny(held, names), nil
}

// HasAllPermissions is true for an empty list.
func (a *AuthorizationResolver) HasAllPermissions(ctx context.Context, userID int64, names ...string) (bool, error) {
	if len(names) == 0 {
		return true, nil
	}
	held, err := a.permissionNames(ctx, userID)
	if err != nil {
		return false, err
	}
	return containsAll(held, names), nil
}

func (a *AuthorizationResolver) HasRole(ctx context.Context, userID int64, name string) (bool, error) {
	return a.HasAnyRole(ctx, userID, name)
}

func (a *AuthorizationResolver) HasAnyRole(ctx context.Context, userID int64, names ...string) (bool, error) {
	if len(names) == 0 {
		return false, nil
	}
	held, err := a.roleNames(ctx, userID)
	if err != nil {
		return false, err
	}
	return containsAny(held, names), nil
}

func (a *AuthorizationResolver) HasAllRoles(ctx context.Context, userID int64, names ...string) (bool, error) {
	if len(names) == 0 {
		return true, nil
	}
	held, err := a.roleNames(ctx, userID)
	if err != nil {
		return false, err
	}
	return containsAll(held, names), nil
}

// Can checks, in order: the exact permission "action:resource" (or "action"
// when resource is empty), the wildcard "action:*", then the admin role.
func (a *AuthorizationResolver) Can(ctx context.Context, userID int64, action, resource string) (bool, error) {
	exact, wildcard := action, action
	if resource != "" {
		exact = action + ":" + resource
		wildcard = action + ":*"
	}

	held, err := a.permissionNames(ctx, userID)
	if err != nil {
		return false, err
	}
	if _, ok := held[exact]; ok {
		return true, nil
	}
	if _, ok := held[wildcard]; ok {
		return true, nil
	}

	return a.HasRole(ctx, userID, domain.AdminRole)
}

// InvalidateUserCache drops the cached permission set of one user.
func (a *AuthorizationResolver) InvalidateUserCache(ctx context.Context, userID int64) error {
	return a.InvalidateUsersCache(ctx, userID)
}

// InvalidateUsersCache drops the cached permission sets of several users in
// one round trip.
func (a *AuthorizationResolver) InvalidateUsersCache(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, kv.PermissionsKey(id))
	}

	sctx, cancel := storeCtx(ctx, a.StoreTimeout)
	defer cancel()
	if _, err := a.Fast.Delete(sctx, keys...); err != nil {
		return fmt.Errorf("invalidate permission cache: %w", err)
	}
	return nil
}

func containsAny(set map[string]struct{}, names []string) bool {
	for _, n := range names {
		if _, ok := set[n]; ok {
			return true
		}
	}
	return false
}

func containsAll(set map[string]struct{}, names []string) bool {
	for _, n := range names {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}
