package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/jackc/pgx/v5"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, password_hash, email_verified, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	created, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING `+userColumns,
		strings.ToLower(u.Email), u.PasswordHash, u.EmailVerified, u.CreatedAt,
	))
	if err != nil {
		return domain.User{}, mapConstraint(err)
	}
	return created, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) UpdateUser(ctx context.Context, id int64, upd domain.UserUpdate) (domain.User, error) {
	var email *string
	if upd.Email != nil {
		lowered := strings.ToLower(*upd.Email)
		email = &lowered
	}

	u, err := scanUser(r.db.QueryRow(ctx, `
		UPDATE users SET
			email          = COALESCE($1, email),
			password_hash  = COALESCE($2, password_hash),
			email_verified = COALESCE($3, email_verified),
			updated_at     = $4
		WHERE id = $5
		RETURNING `+userColumns,
		email, upd.PasswordHash, upd.EmailVerified, time.Now().UTC(), id,
	))
	if err != nil {
		return domain.User{}, mapConstraint(mapNotFound(err))
	}
	return u, nil
}

func (r *usersRepo) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
