package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/avelhart/hearthside-auth/internal/model"
)

type SuppressionRepo struct{ DB *sql.DB }

func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{DB: db} }

// Get returns the suppression record for an address, or ErrNotFound when the
// address has never been suppressed.
func (r *SuppressionRepo) Get(ctx context.Context, email string) (model.EmailSuppression, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var s model.EmailSuppression
	err := r.DB.QueryRowContext(ctx,
		`SELECT email, suppress_transactional, suppress_marketing, reason, bounce_count, updated_at
		 FROM email_suppressions WHERE email=? LIMIT 1`, email).
		Scan(&s.Email, &s.SuppressTransactional, &s.SuppressMarketing, &s.Reason, &s.BounceCount, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.EmailSuppression{}, ErrNotFound
	}
	return s, err
}

// Suppress upserts a suppression record. Scope flags only ever widen here;
// lifting a suppression is a manual DB operation. A bounce reason bumps the
// counter on every report.
func (r *SuppressionRepo) Suppress(ctx context.Context, email string, transactional, marketing bool, reason string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	bump := 0
	if reason == model.SuppressionBounce {
		bump = 1
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO email_suppressions (email, suppress_transactional, suppress_marketing, reason, bounce_count)
		 VALUES (?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE
		   suppress_transactional = suppress_transactional OR VALUES(suppress_transactional),
		   suppress_marketing     = suppress_marketing OR VALUES(suppress_marketing),
		   reason                 = VALUES(reason),
		   bounce_count           = bounce_count + ?`,
		email, transactional, marketing, reason, bump, bump)
	return err
}
