package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avelhart/hearthside-auth/internal/auth"
	"github.com/avelhart/hearthside-auth/internal/model"
)

// EphemeralTokenRepo issues and consumes the single-use tokens behind email
// verification, password reset and unsubscribe links. Each purpose lives in
// its own table, so a token issued for one purpose can never be redeemed
// for another.
type EphemeralTokenRepo struct {
	DB        *sql.DB
	VerifyTTL time.Duration
	ResetTTL  time.Duration
	UnsubTTL  time.Duration
}

func NewEphemeralTokenRepo(db *sql.DB, verifyTTL, resetTTL, unsubTTL time.Duration) *EphemeralTokenRepo {
	return &EphemeralTokenRepo{DB: db, VerifyTTL: verifyTTL, ResetTTL: resetTTL, UnsubTTL: unsubTTL}
}

func (r *EphemeralTokenRepo) table(p model.TokenPurpose) (string, time.Duration, error) {
	switch p {
	case model.PurposeVerifyEmail:
		return "verification_tokens", r.VerifyTTL, nil
	case model.PurposePasswordReset:
		return "password_reset_tokens", r.ResetTTL, nil
	case model.PurposeUnsubscribe:
		return "unsubscribe_tokens", r.UnsubTTL, nil
	}
	return "", 0, fmt.Errorf("unknown token purpose %q", p)
}

// Issue mints a token for the given purpose and returns the plaintext once;
// only the hash is stored.
func (r *EphemeralTokenRepo) Issue(ctx context.Context, userID string, purpose model.TokenPurpose) (string, error) {
	table, ttl, err := r.table(purpose)
	if err != nil {
		return "", err
	}
	secret, err := auth.NewSecret()
	if err != nil {
		return "", err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO "+table+" (id, user_id, token_hash, expires_at) VALUES (?,?,?,?)",
		uuid.NewString(), userID, auth.HashSecret(secret), time.Now().UTC().Add(ttl))
	if err != nil {
		return "", err
	}
	return secret, nil
}

// Consume redeems a token and returns the owning user id. Fails with
// ErrNotFound (no matching hash), ErrTokenExpired, or, for password resets,
// ErrTokenUsed. Reset tokens are marked used rather than deleted so a
// replay inside the expiry window is detected; other purposes are deleted
// outright.
func (r *EphemeralTokenRepo) Consume(ctx context.Context, raw string, purpose model.TokenPurpose) (string, error) {
	table, _, err := r.table(purpose)
	if err != nil {
		return "", err
	}
	hash := auth.HashSecret(raw)
	now := time.Now().UTC()

	if purpose == model.PurposePasswordReset {
		var (
			userID string
			exp    time.Time
			usedAt sql.NullTime
		)
		err := r.DB.QueryRowContext(ctx,
			"SELECT user_id, expires_at, used_at FROM "+table+" WHERE token_hash=? LIMIT 1",
			hash).Scan(&userID, &exp, &usedAt)
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		if err != nil {
			return "", err
		}
		if usedAt.Valid {
			return "", ErrTokenUsed
		}
		if now.After(exp) {
			return "", ErrTokenExpired
		}
		// The used_at guard makes the claim atomic: of two concurrent
		// consumers, only one update matches.
		res, err := r.DB.ExecContext(ctx,
			"UPDATE "+table+" SET used_at=? WHERE token_hash=? AND used_at IS NULL", now, hash)
		if err != nil {
			return "", err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return "", ErrTokenUsed
		}
		return userID, nil
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		userID string
		exp    time.Time
	)
	err = tx.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM "+table+" WHERE token_hash=? LIMIT 1 FOR UPDATE",
		hash).Scan(&userID, &exp)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if now.After(exp) {
		return "", ErrTokenExpired
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE token_hash=?", hash); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return userID, nil
}

// DeleteExpired sweeps all three tables. Best effort; the first failure is
// returned but prior deletes stand.
func (r *EphemeralTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	var total int64
	for _, table := range []string{"verification_tokens", "password_reset_tokens", "unsubscribe_tokens"} {
		res, err := r.DB.ExecContext(ctx, "DELETE FROM "+table+" WHERE expires_at < ?", now)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
