// Package repository persists the identity schema over database/sql. The
// sentinel errors below are the recoverable, user-facing failure modes;
// handlers translate them into stable 4xx error codes. Anything else coming
// out of a repository is an infrastructure failure and surfaces as a 500.
package repository

import "errors"

var (
	// ErrNotFound: no row matched a point lookup.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail / ErrDuplicateSlug: users table uniqueness.
	ErrDuplicateEmail = errors.New("email already exists")
	ErrDuplicateSlug  = errors.New("slug already exists")

	// ErrDuplicateExternalLogin: the (provider, provider_user_id) pair is
	// already linked to some user.
	ErrDuplicateExternalLogin = errors.New("external login already linked")

	// ErrDuplicateRequest: the user already has a pending access request
	// for the same role.
	ErrDuplicateRequest = errors.New("access request already pending")

	// ErrUnknownRole: role name outside the fixed catalog.
	ErrUnknownRole = errors.New("unknown role")

	// ErrTokenInvalid: presented secret matches no usable token. Also what
	// callers see after reuse detection fires, so detection details are
	// never leaked.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired: token found but past its expiry; full re-login or a
	// fresh ephemeral token is required.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenReused: an already-rotated refresh secret was presented. The
	// whole chain has been revoked as a theft containment side effect.
	ErrTokenReused = errors.New("token reused")

	// ErrTokenUsed: a password reset token was already redeemed.
	ErrTokenUsed = errors.New("token already used")

	// ErrSuppressed: outbound mail blocked by the suppression list.
	ErrSuppressed = errors.New("email suppressed")
)
