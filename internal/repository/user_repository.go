package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/avelhart/hearthside-auth/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,display_name,slug,is_active,created_at,updated_at"

// Create inserts a user with a credential and the default 'user' role in one
// transaction, so an account can never exist without a way to authenticate.
func (r *UserRepo) Create(ctx context.Context, email, displayName, slug, passwordHash string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	id := ulid.Make().String()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO users (id, email, display_name, slug) VALUES (?,?,?,?)",
		id, email, displayName, slug); err != nil {
		return model.User{}, mapUserUniqueErr(err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO credentials (user_id, password_hash) VALUES (?,?)",
		id, passwordHash); err != nil {
		return model.User{}, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name=?",
		id, model.RoleUser); err != nil {
		return model.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

// CreateWithLogin inserts a user whose only way in is an external login; no
// credential row is written. Used by the OAuth callback when neither the
// provider id nor the email matches an existing account.
func (r *UserRepo) CreateWithLogin(ctx context.Context, email, displayName, slug, provider, providerUserID string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	id := ulid.Make().String()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO users (id, email, display_name, slug) VALUES (?,?,?,?)",
		id, email, displayName, slug); err != nil {
		return model.User{}, mapUserUniqueErr(err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO external_logins (provider, provider_user_id, user_id) VALUES (?,?,?)",
		provider, providerUserID, id); err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrDuplicateExternalLogin
		}
		return model.User{}, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role_id) SELECT ?, id FROM roles WHERE name=?",
		id, model.RoleUser); err != nil {
		return model.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getWhere(ctx, "email=?", email)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.getWhere(ctx, "id=?", id)
}

func (r *UserRepo) GetBySlug(ctx context.Context, slug string) (model.User, error) {
	return r.getWhere(ctx, "slug=?", slug)
}

func (r *UserRepo) getWhere(ctx context.Context, cond string, arg any) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+cond+" LIMIT 1", arg).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.Slug, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetCredential returns the password credential for a user. ErrNotFound
// means the account is OAuth-only.
func (r *UserRepo) GetCredential(ctx context.Context, userID string) (model.Credential, error) {
	var c model.Credential
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, password_hash, password_changed_at FROM credentials WHERE user_id=? LIMIT 1",
		userID).Scan(&c.UserID, &c.PasswordHash, &c.PasswordChangedAt)
	if err == sql.ErrNoRows {
		return model.Credential{}, ErrNotFound
	}
	return c, err
}

// SetPassword upserts the credential row. The upsert lets an OAuth-only
// account gain a password through the reset flow.
func (r *UserRepo) SetPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO credentials (user_id, password_hash, password_changed_at) VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE password_hash=VALUES(password_hash), password_changed_at=VALUES(password_changed_at)`,
		userID, passwordHash, time.Now().UTC())
	return err
}

// UpdateProfile rewrites email, display name and slug. Callers compare the
// returned user against the previous one to notice an email change.
func (r *UserRepo) UpdateProfile(ctx context.Context, id, email, displayName, slug string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET email=?, display_name=?, slug=? WHERE id=?",
		email, displayName, slug, id)
	if err != nil {
		return model.User{}, mapUserUniqueErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Zero rows can also mean a no-op update; confirm existence.
		if _, err := r.GetByID(ctx, id); err != nil {
			return model.User{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// Deactivate soft-disables the account; rows and links are kept for audit.
func (r *UserRepo) Deactivate(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET is_active=0 WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete hard-deletes the user; dependent rows go with it via FK cascade.
// Reserved for an explicit account-deletion request.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MySQL duplicate-key errors carry code 1062 and the violated index name.
func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

func mapUserUniqueErr(err error) error {
	if err == nil || !isDuplicate(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "uniq_users_slug"):
		return ErrDuplicateSlug
	case strings.Contains(msg, "uniq_users_email"):
		return ErrDuplicateEmail
	}
	return ErrDuplicateEmail
}
