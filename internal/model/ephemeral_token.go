package model

import "time"

// TokenPurpose selects the namespace (table) of a single-use token. Each
// purpose has its own table so a verification token can never be replayed
// as a password reset token.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify-email"
	PurposePasswordReset TokenPurpose = "password-reset"
	PurposeUnsubscribe   TokenPurpose = "unsubscribe"
)

// EphemeralToken mirrors one of the per-purpose token tables. UsedAt is only
// meaningful for password resets, where a consumed-but-unexpired token must
// not be redeemable a second time.
type EphemeralToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
