package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/jackc/pgx/v5"
)

type refreshFamiliesRepo struct {
	db dbtx
}

func (r *refreshFamiliesRepo) CreateFamily(ctx context.Context, f domain.RefreshFamily) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO refresh_families (family_id, user_id, created_at, absolute_expiry)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (family_id) DO NOTHING`,
		f.FamilyID, f.UserID, f.CreatedAt.UTC(), f.AbsoluteExpiry.UTC(),
	)
	return err
}

func (r *refreshFamiliesRepo) GetFamily(ctx context.Context, familyID string) (domain.RefreshFamily, error) {
	var f domain.RefreshFamily
	err := r.db.QueryRow(ctx, `
		SELECT family_id, user_id, created_at, absolute_expiry
		FROM refresh_families WHERE family_id = $1`, familyID,
	).Scan(&f.FamilyID, &f.UserID, &f.CreatedAt, &f.AbsoluteExpiry)
	if err != nil {
		return domain.RefreshFamily{}, mapNotFound(err)
	}
	return f, nil
}

func (r *refreshFamiliesRepo) ListFamilyIDsByUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT family_id FROM refresh_families WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *refreshFamiliesRepo) DeleteExpiredFamilies(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_families WHERE absolute_expiry < $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type refreshTokensRepo struct {
	db dbtx
}

func (r *refreshTokensRepo) CreateToken(ctx context.Context, t domain.RefreshTokenRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO refresh_tokens (jti, family_id, issued_at, revoked_at) VALUES ($1, $2, $3, $4)`,
		t.JTI, t.FamilyID, t.IssuedAt.UTC(), t.RevokedAt,
	)
	return mapConstraint(err)
}

func (r *refreshTokensRepo) GetToken(ctx context.Context, jti string) (domain.RefreshTokenRecord, error) {
	var t domain.RefreshTokenRecord
	err := r.db.QueryRow(ctx,
		`SELECT jti, family_id, issued_at, revoked_at FROM refresh_tokens WHERE jti = $1`, jti,
	).Scan(&t.JTI, &t.FamilyID, &t.IssuedAt, &t.RevokedAt)
	if err != nil {
		return domain.RefreshTokenRecord{}, mapNotFound(err)
	}
	return t, nil
}

func (r *refreshTokensRepo) RevokeToken(ctx context.Context, jti string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $1 WHERE jti = $2 AND revoked_at IS NULL`,
		at.UTC(), jti,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *refreshTokensRepo) ListJTIsByFamily(ctx context.Context, familyID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT jti FROM refresh_tokens WHERE family_id = $1 ORDER BY issued_at`, familyID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *refreshTokensRepo) RevokeFamilyTokens(ctx context.Context, familyID string, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = $1 WHERE family_id = $2 AND revoked_at IS NULL`,
		at.UTC(), familyID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
