package model

import "time"

// RefreshTokenStatus is the persisted state of one row in 'refresh_tokens'.
// Rotated rows are kept as tombstones so that presenting an old secret is
// distinguishable from presenting a fabricated one.
type RefreshTokenStatus string

const (
	RefreshActive  RefreshTokenStatus = "active"
	RefreshRotated RefreshTokenStatus = "rotated"
	RefreshRevoked RefreshTokenStatus = "revoked"
)

// RefreshToken mirrors the 'refresh_tokens' table. A chain is the lineage of
// rows sharing one chain_id, produced by successive rotations of a single
// login; at most one row per chain is active.
type RefreshToken struct {
	ID         string
	ChainID    string
	UserID     string
	TokenHash  string
	DeviceName string
	ClientIP   string
	Status     RefreshTokenStatus
	ExpiresAt  time.Time
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RotationOutcome is the tagged result of classifying a presented refresh
// secret against its stored row. Modelling the reused branch explicitly
// keeps theft detection from being skipped by accident.
type RotationOutcome int

const (
	// RotationActive: the row is live and may be rotated.
	RotationActive RotationOutcome = iota
	// RotationExpired: the row is live but past its expiry; full re-login.
	RotationExpired
	// RotationReused: the row was already rotated out; the chain is
	// presumed stolen and must be revoked wholesale.
	RotationReused
	// RotationRevoked: the row belongs to a chain revoked earlier.
	RotationRevoked
)

// ClassifyRotation maps a stored row's state to the rotation outcome.
func ClassifyRotation(status RefreshTokenStatus, expiresAt, now time.Time) RotationOutcome {
	switch status {
	case RefreshRotated:
		return RotationReused
	case RefreshRevoked:
		return RotationRevoked
	}
	if now.After(expiresAt) {
		return RotationExpired
	}
	return RotationActive
}
