package handler

import (
	"context"
	"time"

	"github.com/avelhart/hearthside-auth/internal/model"
	"github.com/avelhart/hearthside-auth/internal/oauth"
	"github.com/avelhart/hearthside-auth/internal/queue"
)

// The store interfaces below are what handlers actually need from the
// repository layer. The concrete *Repo types in internal/repository satisfy
// them; tests substitute in-memory implementations.

type UserStore interface {
	Create(ctx context.Context, email, displayName, slug, passwordHash string) (model.User, error)
	CreateWithLogin(ctx context.Context, email, displayName, slug, provider, providerUserID string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	GetCredential(ctx context.Context, userID string) (model.Credential, error)
	SetPassword(ctx context.Context, userID, passwordHash string) error
	UpdateProfile(ctx context.Context, id, email, displayName, slug string) (model.User, error)
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type RoleStore interface {
	RolesForUser(ctx context.Context, userID string) ([]string, error)
	Grant(ctx context.Context, userID, roleName string, grantedBy *string) error
	Revoke(ctx context.Context, userID, roleName string) error
}

type RefreshStore interface {
	Issue(ctx context.Context, userID, deviceName, clientIP string) (string, time.Time, error)
	Rotate(ctx context.Context, secret, deviceName, clientIP string) (string, string, time.Time, error)
	Revoke(ctx context.Context, secret string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type EphemeralStore interface {
	Issue(ctx context.Context, userID string, purpose model.TokenPurpose) (string, error)
	Consume(ctx context.Context, raw string, purpose model.TokenPurpose) (string, error)
}

type LoginStore interface {
	FindUser(ctx context.Context, provider, providerUserID string) (string, error)
	Link(ctx context.Context, provider, providerUserID, userID string) error
}

type SuppressionStore interface {
	Suppress(ctx context.Context, email string, transactional, marketing bool, reason string) error
}

type RequestStore interface {
	Create(ctx context.Context, userID, roleName, reason string) (model.AccessRequest, error)
	ListByStatus(ctx context.Context, status string) ([]model.AccessRequest, error)
	Decide(ctx context.Context, id, adminID string, approve bool) (model.AccessRequest, error)
}

// EmailSender is the gated outbound-mail collaborator (internal/mailer).
type EmailSender interface {
	Send(ctx context.Context, ev queue.EmailRequestedEvent) error
}

// Exchanger swaps an OAuth authorization code for a provider profile.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (oauth.Profile, error)
}
