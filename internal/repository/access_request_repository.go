package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/avelhart/hearthside-auth/internal/model"
)

type AccessRequestRepo struct{ DB *sql.DB }

func NewAccessRequestRepo(db *sql.DB) *AccessRequestRepo { return &AccessRequestRepo{DB: db} }

// Create records a pending request. One pending request per (user, role) at
// a time; a second attempt reports ErrDuplicateRequest.
func (r *AccessRequestRepo) Create(ctx context.Context, userID, roleName, reason string) (model.AccessRequest, error) {
	var existing string
	err := r.DB.QueryRowContext(ctx,
		"SELECT id FROM access_requests WHERE user_id=? AND role_name=? AND status='pending' LIMIT 1",
		userID, roleName).Scan(&existing)
	if err == nil {
		return model.AccessRequest{}, ErrDuplicateRequest
	}
	if err != sql.ErrNoRows {
		return model.AccessRequest{}, err
	}

	id := uuid.NewString()
	if _, err := r.DB.ExecContext(ctx,
		"INSERT INTO access_requests (id, user_id, role_name, reason) VALUES (?,?,?,?)",
		id, userID, roleName, reason); err != nil {
		return model.AccessRequest{}, err
	}
	return r.getByID(ctx, id)
}

// ListByStatus returns requests in a review state, oldest first.
func (r *AccessRequestRepo) ListByStatus(ctx context.Context, status string) ([]model.AccessRequest, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, role_name, reason, status, decided_by, decided_at, created_at
		 FROM access_requests WHERE status=? ORDER BY created_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AccessRequest
	for rows.Next() {
		a, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Decide moves a pending request to approved/rejected, recording the acting
// admin. Deciding a request twice reports ErrNotFound: the pending row no
// longer exists from the caller's point of view.
func (r *AccessRequestRepo) Decide(ctx context.Context, id, adminID string, approve bool) (model.AccessRequest, error) {
	status := model.RequestRejected
	if approve {
		status = model.RequestApproved
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE access_requests SET status=?, decided_by=?, decided_at=? WHERE id=? AND status='pending'",
		status, adminID, time.Now().UTC(), id)
	if err != nil {
		return model.AccessRequest{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.AccessRequest{}, ErrNotFound
	}
	return r.getByID(ctx, id)
}

func (r *AccessRequestRepo) getByID(ctx context.Context, id string) (model.AccessRequest, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, role_name, reason, status, decided_by, decided_at, created_at
		 FROM access_requests WHERE id=? LIMIT 1`, id)
	a, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return model.AccessRequest{}, ErrNotFound
	}
	return a, err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanRequest(s rowScanner) (model.AccessRequest, error) {
	var (
		a         model.AccessRequest
		decidedBy sql.NullString
		decidedAt sql.NullTime
	)
	err := s.Scan(&a.ID, &a.UserID, &a.RoleName, &a.Reason, &a.Status, &decidedBy, &decidedAt, &a.CreatedAt)
	if err != nil {
		return model.AccessRequest{}, err
	}
	if decidedBy.Valid {
		a.DecidedBy = &decidedBy.String
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		a.DecidedAt = &t
	}
	return a, nil
}
