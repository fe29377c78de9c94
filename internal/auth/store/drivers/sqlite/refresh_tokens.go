package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateToken(ctx context.Context, t domain.RefreshTokenRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (jti, family_id, issued_at, revoked_at) VALUES (?, ?, ?, ?)`,
		t.JTI, t.FamilyID, t.IssuedAt.UTC(), nullTime(t.RevokedAt),
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetToken(ctx context.Context, jti string) (domain.RefreshTokenRecord, error) {
	var (
		t       domain.RefreshTokenRecord
		revoked sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT jti, family_id, issued_at, revoked_at FROM refresh_tokens WHERE jti = ?`, jti,
	).Scan(&t.JTI, &t.FamilyID, &t.IssuedAt, &revoked)
	if err != nil {
		return domain.RefreshTokenRecord{}, mapNotFound(err)
	}
	t.RevokedAt = mapNullTimePtr(revoked)
	return t, nil
}

func (r *refreshTokensRepo) RevokeToken(ctx context.Context, jti string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE jti = ? AND revoked_at IS NULL`,
		at.UTC(), jti,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *refreshTokensRepo) ListJTIsByFamily(ctx context.Context, familyID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT jti FROM refresh_tokens WHERE family_id = ? ORDER BY issued_at`, familyID)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

func (r *refreshTokensRepo) RevokeFamilyTokens(ctx context.Context, familyID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE family_id = ? AND revoked_at IS NULL`,
		at.UTC(), familyID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
