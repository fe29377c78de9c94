package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
)

type refreshFamiliesRepo struct {
	db dbtx
}

func (r *refreshFamiliesRepo) CreateFamily(ctx context.Context, f domain.RefreshFamily) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_families (family_id, user_id, created_at, absolute_expiry)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (family_id) DO NOTHING`,
		f.FamilyID, f.UserID, f.CreatedAt.UTC(), f.AbsoluteExpiry.UTC(),
	)
	return err
}

func (r *refreshFamiliesRepo) GetFamily(ctx context.Context, familyID string) (domain.RefreshFamily, error) {
	var f domain.RefreshFamily
	err := r.db.QueryRowContext(ctx,
		`SELECT family_id, user_id, created_at, absolute_expiry
		 FROM refresh_families WHERE family_id = ?`, familyID,
	).Scan(&f.FamilyID, &f.UserID, &f.CreatedAt, &f.AbsoluteExpiry)
	if err != nil {
		return domain.RefreshFamily{}, mapNotFound(err)
	}
	return f, nil
}

func (r *refreshFamiliesRepo) ListFamilyIDsByUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT family_id FROM refresh_families WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

func (r *refreshFamiliesRepo) DeleteExpiredFamilies(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_families WHERE absolute_expiry < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
