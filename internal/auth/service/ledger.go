package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/gatehouse/internal/auth/domain"
	"github.com/aussiebroadwan/gatehouse/internal/auth/kv"
	"github.com/aussiebroadwan/gatehouse/internal/auth/metrics"
	"github.com/aussiebroadwan/gatehouse/internal/auth/store"
	"github.com/aussiebroadwan/gatehouse/pkg/jwtx"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

// TokenLedger tracks refresh token families. The fast store answers "is this
// jti still usable" on the hot path; the durable store keeps the audit trail
// and is what revocation sweeps when the fast index is incomplete.
//
// Fast keys:
//
//	refresh:jti:<jti>         -> familyID, idle TTL
//	refresh:family:<familyID> -> set of jtis, absolute TTL
type TokenLedger struct {
	Store   store.Store
	Fast    kv.Store
	Clock   Clock
	Metrics *metrics.Metrics

	IdleTTL      time.Duration
	AbsoluteTTL  time.Duration
	StoreTimeout time.Duration
}

// Issue starts a new family for userID and returns its first jti.
func (l *TokenLedger) Issue(ctx context.Context, userID int64) (domain.IssuedRefresh, error) {
	if userID <= 0 {
		return domain.IssuedRefresh{}, fmt.Errorf("issue refresh: invalid user id %d", userID)
	}
	now := clockOrSystem(l.Clock).Now()

	issued := domain.IssuedRefresh{
		JTI:            jwtx.NewJTI(),
		FamilyID:       jwtx.NewJTI(),
		UserID:         userID,
		AbsoluteExpiry: now.Add(l.AbsoluteTTL),
	}

	// 1. Fast index first. A crash before the durable write leaves an entry
	// that nothing else references and that expires on its own.
	batch := kv.NewBatch().
		Set(kv.RefreshJTIKey(issued.JTI), issued.FamilyID, l.idleTTL(now, issued.AbsoluteExpiry)).
		AddMember(kv.RefreshFamilyKey(issued.FamilyID), issued.JTI, l.AbsoluteTTL)
	if err := l.exec(ctx, batch); err != nil {
		return domain.IssuedRefresh{}, fmt.Errorf("ledger: index new family: %w", err)
	}

	// 2. Durable family and first token row.
	dctx, cancel := storeCtx(ctx, l.StoreTimeout)
	defer cancel()
	err := l.Store.WithTx(dctx, func(tx store.Tx) error {
		if err := tx.RefreshFamilies().CreateFamily(dctx, domain.RefreshFamily{
			FamilyID:       issued.FamilyID,
			UserID:         userID,
			CreatedAt:      now,
			AbsoluteExpiry: issued.AbsoluteExpiry,
		}); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateToken(dctx, domain.RefreshTokenRecord{
			JTI:      issued.JTI,
			FamilyID: issued.FamilyID,
			IssuedAt: now,
		})
	})
	if err != nil {
		// 3. The token is not issued without its audit row; pull the index back.
		if _, derr := l.delete(ctx, kv.RefreshJTIKey(issued.JTI), kv.RefreshFamilyKey(issued.FamilyID)); derr != nil {
			slogx.FromContext(ctx).Warn("failed to unwind refresh index after durable write failure",
				slog.String("family_id", issued.FamilyID),
				slog.Any("error", derr),
			)
		}
		return domain.IssuedRefresh{}, fmt.Errorf("ledger: persist new family: %w", err)
	}

	return issued, nil
}

// IsValid reports whether jti is present in the fast index. Read errors are
// returned to the caller, which must treat them as "not valid".
func (l *TokenLedger) IsValid(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := storeCtx(ctx, l.StoreTimeout)
	defer cancel()
	return l.Fast.Exists(ctx, kv.RefreshJTIKey(jti))
}

// Rotate retires oldJTI and issues its successor in the same family.
//
// familyID comes from the verified refresh claims, never from the store, so
// a replayed jti can still be traced to the family it has to take down.
func (l *TokenLedger) Rotate(ctx context.Context, oldJTI, familyID string) (domain.IssuedRefresh, error) {
	log := slogx.FromContext(ctx).With(slog.String("family_id", familyID))
	now := clockOrSystem(l.Clock).Now()

	// 1. Validity check. Fails closed: one retry, then give up.
	valid, err := l.IsValid(ctx, oldJTI)
	if err != nil {
		valid, err = l.IsValid(ctx, oldJTI)
	}
	if err != nil {
		return domain.IssuedRefresh{}, fmt.Errorf("%w: check refresh jti: %v", ErrStoreUnavailable, err)
	}
	if !valid {
		return domain.IssuedRefresh{}, l.theft(ctx, familyID)
	}

	// 2. Claim the old jti. Exactly one concurrent caller removes the key;
	// everyone else saw a jti that is now gone and is treated as a replay.
	removed, err := l.delete(ctx, kv.RefreshJTIKey(oldJTI))
	if err != nil {
		return domain.IssuedRefresh{}, fmt.Errorf("%w: retire refresh jti: %v", ErrStoreUnavailable, err)
	}
	if removed == 0 {
		return domain.IssuedRefresh{}, l.theft(ctx, familyID)
	}

	// From here on the old jti is gone. A durable failure below leaves the
	// family intact but the client's retry with the same token finds no jti
	// and is handled as reuse, which revokes the family. Revoke-first accepts
	// that: a forced re-login beats two live successors.

	// 3. The family bounds the lifetime of every token in it.
	family, err := l.getFamily(ctx, familyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("refresh jti indexed for unknown family")
			return domain.IssuedRefresh{}, ErrFamilyInactive
		}
		return domain.IssuedRefresh{}, fmt.Errorf("ledger: load family: %w", err)
	}
	if family.Expired(now) {
		if err := l.RevokeFamily(ctx, familyID); err != nil {
			log.Warn("failed to revoke expired family", slog.Any("error", err))
		}
		return domain.IssuedRefresh{}, ErrFamilyInactive
	}

	next := domain.IssuedRefresh{
		JTI:            jwtx.NewJTI(),
		FamilyID:       familyID,
		UserID:         family.UserID,
		AbsoluteExpiry: family.AbsoluteExpiry,
	}

	// 4. Durable: archive the old row, record the new one.
	var alreadyRevoked bool
	dctx, cancel := storeCtx(ctx, l.StoreTimeout)
	defer cancel()
	err = l.Store.WithTx(dctx, func(tx store.Tx) error {
		flipped, err := tx.RefreshTokens().RevokeToken(dctx, oldJTI, now)
		if err != nil {
			return err
		}
		if !flipped {
			alreadyRevoked = true
			return nil
		}
		return tx.RefreshTokens().CreateToken(dctx, domain.RefreshTokenRecord{
			JTI:      next.JTI,
			FamilyID: familyID,
			IssuedAt: now,
		})
	})
	if err != nil {
		return domain.IssuedRefresh{}, fmt.Errorf("ledger: persist rotation: %w", err)
	}
	if alreadyRevoked {
		// Durable says the jti was already retired: the family is being torn
		// down or the fast index was stale.
		return domain.IssuedRefresh{}, l.theft(ctx, familyID)
	}

	// 5. Publish the successor, but only while the family set still exists.
	// A concurrent RevokeFamily deletes the set first, so it either sees the
	// new jti in durable or this batch fails.
	batch := kv.NewBatch().
		Require(kv.RefreshFamilyKey(familyID)).
		Set(kv.RefreshJTIKey(next.JTI), familyID, l.idleTTL(now, family.AbsoluteExpiry)).
		AddMember(kv.RefreshFamilyKey(familyID), next.JTI, 0)
	if err := l.exec(ctx, batch); err != nil {
		if _, rerr := l.revokeToken(ctx, next.JTI, now); rerr != nil {
			log.Warn("failed to revoke unpublished refresh jti", slog.Any("error", rerr))
		}
		if errors.Is(err, kv.ErrConflict) {
			return domain.IssuedRefresh{}, ErrFamilyInactive
		}
		return domain.IssuedRefresh{}, fmt.Errorf("%w: publish refresh jti: %v", ErrStoreUnavailable, err)
	}

	return next, nil
}

// RevokeOne kills a single refresh jti without touching the rest of its family.
func (l *TokenLedger) RevokeOne(ctx context.Context, jti string) error {
	if _, err := l.delete(ctx, kv.RefreshJTIKey(jti)); err != nil {
		return fmt.Errorf("ledger: drop refresh jti: %w", err)
	}
	if _, err := l.revokeToken(ctx, jti, clockOrSystem(l.Clock).Now()); err != nil {
		return fmt.Errorf("ledger: revoke refresh jti: %w", err)
	}
	return nil
}

// RevokeFamily invalidates every jti ever issued in the family. Calling it
// again on a revoked family changes nothing.
func (l *TokenLedger) RevokeFamily(ctx context.Context, familyID string) error {
	var errs []error

	// 1. Drop the membership set and whatever it lists.
	keys := []string{kv.RefreshFamilyKey(familyID)}
	members, err := l.members(ctx, kv.RefreshFamilyKey(familyID))
	if err != nil {
		errs = append(errs, fmt.Errorf("read family members: %w", err))
	}
	for _, jti := range members {
		keys = append(keys, kv.RefreshJTIKey(jti))
	}
	if _, err := l.delete(ctx, keys...); err != nil {
		errs = append(errs, fmt.Errorf("drop family index: %w", err))
	}

	// 2. Durable rows.
	if err := l.durable(ctx, func(ctx context.Context) error {
		_, err := l.Store.RefreshTokens().RevokeFamilyTokens(ctx, familyID, clockOrSystem(l.Clock).Now())
		return err
	}); err != nil {
		errs = append(errs, fmt.Errorf("revoke family rows: %w", err))
	}

	// 3. Sweep by the durable list, which also covers jtis the set lost
	// (expired set, or published after step 1 read it).
	var jtis []string
	if err := l.durable(ctx, func(ctx context.Context) (err error) {
		jtis, err = l.Store.RefreshTokens().ListJTIsByFamily(ctx, familyID)
		return err
	}); err != nil {
		errs = append(errs, fmt.Errorf("list family jtis: %w", err))
	}
	if len(jtis) > 0 {
		sweep := make([]string, 0, len(jtis))
		for _, jti := range jtis {
			sweep = append(sweep, kv.RefreshJTIKey(jti))
		}
		if _, err := l.delete(ctx, sweep...); err != nil {
			errs = append(errs, fmt.Errorf("sweep family index: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("ledger: revoke family %s: %w", familyID, errors.Join(errs...))
	}
	return nil
}

// RevokeUser revokes every family the user has ever held.
func (l *TokenLedger) RevokeUser(ctx context.Context, userID int64) error {
	var ids []string
	if err := l.durable(ctx, func(ctx context.Context) (err error) {
		ids, err = l.Store.RefreshFamilies().ListFamilyIDsByUser(ctx, userID)
		return err
	}); err != nil {
		return fmt.Errorf("ledger: list user families: %w", err)
	}

	var errs []error
	for _, id := range ids {
		if err := l.RevokeFamily(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// theft revokes the family synchronously and returns ErrTokenTheftDetected.
func (l *TokenLedger) theft(ctx context.Context, familyID string) error {
	log := slogx.FromContext(ctx)
	l.Metrics.TheftDetected()

	attrs := []any{slog.String("family_id", familyID)}
	if family, err := l.getFamily(ctx, familyID); err == nil {
		attrs = append(attrs, slog.Int64("user_id", family.UserID))
	}
	log.Warn("refresh token reuse detected, revoking family", attrs...)

	if err := l.RevokeFamily(ctx, familyID); err != nil {
		log.Error("failed to revoke family after reuse", slog.String("family_id", familyID), slog.Any("error", err))
	}
	return ErrTokenTheftDetected
}

// idleTTL never outlives the family.
func (l *TokenLedger) idleTTL(now, absoluteExpiry time.Time) time.Duration {
	ttl := l.IdleTTL
	if left := absoluteExpiry.Sub(now); ttl <= 0 || left < ttl {
		ttl = left
	}
	return ttl
}

// durable runs fn against the credential store under StoreTimeout.
func (l *TokenLedger) durable(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := storeCtx(ctx, l.StoreTimeout)
	defer cancel()
	return fn(ctx)
}

func (l *TokenLedger) getFamily(ctx context.Context, familyID string) (family domain.RefreshFamily, err error) {
	err = l.durable(ctx, func(ctx context.Context) error {
		family, err = l.Store.RefreshFamilies().GetFamily(ctx, familyID)
		return err
	})
	return family, err
}

func (l *TokenLedger) revokeToken(ctx context.Context, jti string, at time.Time) (flipped bool, err error) {
	err = l.durable(ctx, func(ctx context.Context) error {
		flipped, err = l.Store.RefreshTokens().RevokeToken(ctx, jti, at)
		return err
	})
	return flipped, err
}

func (l *TokenLedger) exec(ctx context.Context, b *kv.Batch) error {
	ctx, cancel := storeCtx(ctx, l.StoreTimeout)
	defer cancel()
	return l.Fast.Exec(ctx, b)
}

func (l *TokenLedger) delete(ctx context.Context, keys ...string) (int64, error) {
	ctx, cancel := storeCtx(ctx, l.StoreTimeout)
	defer cancel()
	return l.Fast.Delete(ctx, keys...)
}

func (l *TokenLedger) members(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := storeCtx(ctx, l.StoreTimeout)
	defer cancel()
	return l.Fast.Members(ctx, key)
}
