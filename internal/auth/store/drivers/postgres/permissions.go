package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/jackc/pgx/v5"
)

type permissionsRepo struct {
	db dbtx
}

func scanPermission(row pgx.Row) (domain.Permission, error) {
	var p domain.Permission
	err := row.Scan(&p.ID, &p.Name, &p.Description)
	return p, err
}

func (r *permissionsRepo) CreatePermission(ctx context.Context, p domain.Permission) (domain.Permission, error) {
	created, err := scanPermission(r.db.QueryRow(ctx, `
		INSERT INTO permissions (name, description, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, name, description`,
		p.Name, p.Description, time.Now().UTC(),
	))
	if err != nil {
		return domain.Permission{}, mapConstraint(err)
	}
	return created, nil
}

func (r *permissionsRepo) GetPermissionByID(ctx context.Context, id int64) (domain.Permission, error) {
	p, err := scanPermission(r.db.QueryRow(ctx,
		`SELECT id, name, description FROM permissions WHERE id = $1`, id))
	if err != nil {
		return domain.Permission{}, mapNotFound(err)
	}
	return p, nil
}

func (r *permissionsRepo) GetPermissionByName(ctx context.Context, name string) (domain.Permission, error) {
	p, err := scanPermission(r.db.QueryRow(ctx,
		`SELECT id, name, description FROM permissions WHERE name = $1`, name))
	if err != nil {
		return domain.Permission{}, mapNotFound(err)
	}
	return p, nil
}

func (r *permissionsRepo) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	return r.queryPermissions(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
}

func (r *permissionsRepo) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *permissionsRepo) ListPermissionsForUser(ctx context.Context, userID int64) ([]domain.Permission, error) {
	return r.queryPermissions(ctx, `
		SELECT DISTINCT p.id, p.name, p.description
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY p.name`, userID)
}

func (r *permissionsRepo) ListUserIDsWithPermission(ctx context.Context, permissionID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ur.user_id
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		WHERE rp.permission_id = $1
		ORDER BY ur.user_id`, permissionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *permissionsRepo) queryPermissions(ctx context.Context, query string, args ...any) ([]domain.Permission, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Permission, error) {
		return scanPermission(row)
	})
}
