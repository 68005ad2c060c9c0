package model

import "time"

// User mirrors the 'users' table. IDs are ULIDs so rows sort by creation time.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Slug        string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Credential mirrors the 'credentials' table; at most one row per user.
// OAuth-only accounts have no credential row at all.
type Credential struct {
	UserID            string
	PasswordHash      string
	PasswordChangedAt time.Time
}

// ExternalLogin links one (provider, provider_user_id) pair to a local user.
type ExternalLogin struct {
	Provider       string
	ProviderUserID string
	UserID         string
	CreatedAt      time.Time
}
