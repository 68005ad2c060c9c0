package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/avelhart/hearthside-auth/internal/auth"
	"github.com/avelhart/hearthside-auth/internal/model"
)

// RefreshTokenRepo owns the refresh-token chains: issue, rotate, revoke and
// sweep. Rotation is the one operation in the service that needs strict
// atomicity; it runs inside a transaction with a FOR UPDATE row lock so two
// concurrent refresh calls on the same secret can never both win.
type RefreshTokenRepo struct {
	DB  *sql.DB
	TTL time.Duration // fixed lifetime of every issued token
}

func NewRefreshTokenRepo(db *sql.DB, ttl time.Duration) *RefreshTokenRepo {
	return &RefreshTokenRepo{DB: db, TTL: ttl}
}

// Issue starts a new chain for a fresh login/registration/OAuth callback and
// returns the plaintext secret exactly once; only its hash is stored.
func (r *RefreshTokenRepo) Issue(ctx context.Context, userID, deviceName, clientIP string) (string, time.Time, error) {
	secret, err := auth.NewSecret()
	if err != nil {
		return "", time.Time{}, err
	}
	exp := time.Now().UTC().Add(r.TTL)
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, chain_id, user_id, token_hash, device_name, client_ip, status, expires_at)
		 VALUES (?,?,?,?,?,?,'active',?)`,
		uuid.NewString(), uuid.NewString(), userID, auth.HashSecret(secret),
		nullIfEmpty(deviceName), nullIfEmpty(clientIP), exp)
	if err != nil {
		return "", time.Time{}, err
	}
	return secret, exp, nil
}

// Rotate exchanges a presented secret for a successor in the same chain.
//
// Outcomes, per stored row state:
//   - no row            -> ErrTokenInvalid (fabricated or swept)
//   - active, expired   -> ErrTokenExpired (full re-login)
//   - active            -> old row marked rotated, successor inserted, both
//     committed atomically; returns the owner and the new plaintext secret
//   - rotated           -> reuse signal: the entire chain is revoked before
//     ErrTokenReused is returned (callers report it as plain invalid)
//   - revoked           -> ErrTokenInvalid
//
// A concurrent caller holding the same secret blocks on the row lock and
// then observes status 'rotated', which lands in the reuse branch; since
// the chain it revokes includes the winner's fresh token, a genuine race by
// the owner degrades to a forced re-login rather than a forked session.
func (r *RefreshTokenRepo) Rotate(ctx context.Context, secret, deviceName, clientIP string) (string, string, time.Time, error) {
	hash := auth.HashSecret(secret)
	now := time.Now().UTC()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", "", time.Time{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id      string
		chainID string
		userID  string
		status  string
		exp     time.Time
	)
	err = tx.QueryRowContext(ctx,
		"SELECT id, chain_id, user_id, status, expires_at FROM refresh_tokens WHERE token_hash=? LIMIT 1 FOR UPDATE",
		hash).Scan(&id, &chainID, &userID, &status, &exp)
	if err == sql.ErrNoRows {
		return "", "", time.Time{}, ErrTokenInvalid
	}
	if err != nil {
		return "", "", time.Time{}, err
	}

	switch model.ClassifyRotation(model.RefreshTokenStatus(status), exp, now) {
	case model.RotationExpired:
		return "", "", time.Time{}, ErrTokenExpired
	case model.RotationRevoked:
		return "", "", time.Time{}, ErrTokenInvalid
	case model.RotationReused:
		if _, err := tx.ExecContext(ctx,
			"UPDATE refresh_tokens SET status='revoked' WHERE chain_id=? AND status='active'",
			chainID); err != nil {
			return "", "", time.Time{}, err
		}
		if err := tx.Commit(); err != nil {
			return "", "", time.Time{}, err
		}
		return "", "", time.Time{}, ErrTokenReused
	}

	newSecret, err := auth.NewSecret()
	if err != nil {
		return "", "", time.Time{}, err
	}
	newExp := now.Add(r.TTL)
	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET status='rotated', last_used_at=? WHERE id=?",
		now, id); err != nil {
		return "", "", time.Time{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, chain_id, user_id, token_hash, device_name, client_ip, status, expires_at)
		 VALUES (?,?,?,?,?,?,'active',?)`,
		uuid.NewString(), chainID, userID, auth.HashSecret(newSecret),
		nullIfEmpty(deviceName), nullIfEmpty(clientIP), newExp); err != nil {
		return "", "", time.Time{}, err
	}
	if err := tx.Commit(); err != nil {
		return "", "", time.Time{}, err
	}
	return userID, newSecret, newExp, nil
}

// Revoke terminates the chain the presented secret belongs to (logout of one
// session). Unknown secrets report ErrTokenInvalid.
func (r *RefreshTokenRepo) Revoke(ctx context.Context, secret string) error {
	var chainID string
	err := r.DB.QueryRowContext(ctx,
		"SELECT chain_id FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		auth.HashSecret(secret)).Scan(&chainID)
	if err == sql.ErrNoRows {
		return ErrTokenInvalid
	}
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET status='revoked' WHERE chain_id=? AND status='active'", chainID)
	return err
}

// RevokeAllForUser terminates every chain the user owns. Used for logout
// everywhere, password change, and after a password reset.
func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET status='revoked' WHERE user_id=? AND status='active'", userID)
	return err
}

// DeleteExpired drops rows past expiry. Routine housekeeping, not security:
// an expired row already fails rotation.
func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
