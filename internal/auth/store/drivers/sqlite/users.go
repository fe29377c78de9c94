package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, password_hash, email_verified, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = u.CreatedAt

	row := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, email_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING `+userColumns,
		strings.ToLower(u.Email), u.PasswordHash, u.EmailVerified, u.CreatedAt, u.UpdatedAt,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapConstraint(err)
	}
	return created, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email))
	u, err := scanUser(row)
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

	row := r.db.QueryRowContext(ctx,
		`UPDATE users SET
		    email          = COALESCE(?, email),
		    password_hash  = COALESCE(?, password_hash),
		    email_verified = COALESCE(?, email_verified),
		    updated_at     = ?
		 WHERE id = ?
		 RETURNING `+userColumns,
		email, upd.PasswordHash, upd.EmailVerified, time.Now().UTC(), id,
	)
	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapConstraint(mapNotFound(err))
	}
	return u, nil
}

func (r *usersRepo) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
