package model

import "time"

// Suppression reasons.
const (
	SuppressionBounce      = "bounce"
	SuppressionComplaint   = "complaint"
	SuppressionUnsubscribe = "unsubscribe"
	SuppressionManual      = "manual"
)

// EmailSuppression mirrors the 'email_suppressions' table. The two scopes
// toggle independently: an unsubscribe blocks marketing mail only, while a
// hard bounce eventually blocks transactional mail too.
type EmailSuppression struct {
	Email                 string    `json:"email"`
	SuppressTransactional bool      `json:"suppress_transactional"`
	SuppressMarketing     bool      `json:"suppress_marketing"`
	Reason                string    `json:"reason"`
	BounceCount           uint      `json:"bounce_count"`
	UpdatedAt             time.Time `json:"updated_at"`
}
