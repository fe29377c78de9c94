package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface for the durable credential store.
// Concrete drivers (sqlite, postgres) implement this. Sub-repositories are
// exposed as methods so a Tx can hand out the same repositories bound to the
// transaction, and so nobody accidentally opens a transaction inside one.
type Store interface {
	Users() Users
	RefreshFamilies() RefreshFamilies
	RefreshTokens() RefreshTokens
	Roles() Roles
	Permissions() Permissions

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user and returns it with its assigned id.
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)

	GetUserByID(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// UpdateUser applies the non-nil fields of upd and returns the new row.
	UpdateUser(ctx context.Context, id int64, upd domain.UserUpdate) (domain.User, error)

	DeleteUser(ctx context.Context, id int64) error
}

type RefreshFamilies interface {
	// CreateFamily inserts the family if it is not already present.
	CreateFamily(ctx context.Context, f domain.RefreshFamily) error

	GetFamily(ctx context.Context, familyID string) (domain.RefreshFamily, error)

	// ListFamilyIDsByUser returns every family ever created for the user.
	ListFamilyIDsByUser(ctx context.Context, userID int64) ([]string, error)

	// DeleteExpiredFamilies removes families whose absolute expiry is before
	// the cutoff. Their token rows go with them.
	DeleteExpiredFamilies(ctx context.Context, before time.Time) (int64, error)
}

type RefreshTokens interface {
	CreateToken(ctx context.Context, t domain.RefreshTokenRecord) error
	GetToken(ctx context.Context, jti string) (domain.RefreshTokenRecord, error)

	// RevokeToken sets revoked_at if it is still null. It reports whether
	// this call performed the revocation.
	RevokeToken(ctx context.Context, jti string, at time.Time) (bool, error)

	// ListJTIsByFamily returns every jti ever issued in the family.
	ListJTIsByFamily(ctx context.Context, familyID string) ([]string, error)

	// RevokeFamilyTokens revokes every not-yet-revoked token of the family
	// and returns how many rows changed.
	RevokeFamilyTokens(ctx context.Context, familyID string, at time.Time) (int64, error)
}

type Roles interface {
	CreateRole(ctx context.Context, r domain.Role) (domain.Role, error)
	GetRoleByID(ctx context.Context, id int64) (domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (domain.Role, error)
	ListRoles(ctx context.Context) ([]domain.Role, error)

	// ListRolesForUser returns the roles assigned to a user ordered by name.
	ListRolesForUser(ctx context.Context, userID int64) ([]domain.Role, error)

	// SetRolePermissions replaces the permission set of a role. Run it inside
	// a transaction so readers never observe the empty intermediate state.
	SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error

	AssignRoleToUser(ctx context.Context, userID, roleID int64) error
	RemoveRoleFromUser(ctx context.Context, userID, roleID int64) error

	// ListUserIDsWithRole returns the users holding the role.
	ListUserIDsWithRole(ctx context.Context, roleID int64) ([]int64, error)

	IsEmpty(ctx context.Context) (bool, error)
}

type Permissions interface {
	CreatePermission(ctx context.Context, p domain.Permission) (domain.Permission, error)
	GetPermissionByID(ctx context.Context, id int64) (domain.Permission, error)
	GetPermissionByName(ctx context.Context, name string) (domain.Permission, error)
	ListPermissions(ctx context.Context) ([]domain.Permission, error)
	DeletePermission(ctx context.Context, id int64) error

	// ListPermissionsForUser joins user_roles and role_permissions and returns
	// the distinct permissions of the user ordered by name.
	ListPermissionsForUser(ctx context.Context, userID int64) ([]domain.Permission, error)

	// ListUserIDsWithPermission returns the users holding the permission
	// through any of their roles.
	ListUserIDsWithPermission(ctx context.Context, permissionID int64) ([]int64, error)
}
