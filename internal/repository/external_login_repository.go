package repository

import (
	"context"
	"database/sql"
)

type ExternalLoginRepo struct{ DB *sql.DB }

func NewExternalLoginRepo(db *sql.DB) *ExternalLoginRepo { return &ExternalLoginRepo{DB: db} }

// FindUser resolves a (provider, provider_user_id) pair to a local user id.
func (r *ExternalLoginRepo) FindUser(ctx context.Context, provider, providerUserID string) (string, error) {
	var userID string
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id FROM external_logins WHERE provider=? AND provider_user_id=? LIMIT 1",
		provider, providerUserID).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return userID, err
}

// Link attaches an external identity to an existing local user. The primary
// key on (provider, provider_user_id) enforces one local account per
// external identity.
func (r *ExternalLoginRepo) Link(ctx context.Context, provider, providerUserID, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO external_logins (provider, provider_user_id, user_id) VALUES (?,?,?)",
		provider, providerUserID, userID)
	if isDuplicate(err) {
		return ErrDuplicateExternalLogin
	}
	return err
}
