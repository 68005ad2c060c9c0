package model

import "time"

// Access request review states.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// AccessRequest is a user's petition for an elevated role, reviewed by an
// admin.
type AccessRequest struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	RoleName  string     `json:"role"`
	Reason    string     `json:"reason"`
	Status    string     `json:"status"`
	DecidedBy *string    `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
