package repository

import (
	"context"
	"database/sql"

	"github.com/avelhart/hearthside-auth/internal/model"
)

type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// RolesForUser returns the user's effective roles, sorted by role id so the
// claim order is stable across mints.
func (r *RoleRepo) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT ro.name FROM user_roles ur
		 JOIN roles ro ON ro.id = ur.role_id
		 WHERE ur.user_id=? ORDER BY ro.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Grant adds a role to a user, recording who granted it. Granting a role the
// user already holds is a no-op.
func (r *RoleRepo) Grant(ctx context.Context, userID, roleName string, grantedBy *string) error {
	if !model.KnownRole(roleName) {
		return ErrUnknownRole
	}
	_, err := r.DB.ExecContext(ctx,
		`INSERT IGNORE INTO user_roles (user_id, role_id, granted_by)
		 SELECT ?, id, ? FROM roles WHERE name=?`,
		userID, grantedBy, roleName)
	return err
}

// Revoke removes a role from a user. Revoking an absent role is a no-op.
func (r *RoleRepo) Revoke(ctx context.Context, userID, roleName string) error {
	if !model.KnownRole(roleName) {
		return ErrUnknownRole
	}
	_, err := r.DB.ExecContext(ctx,
		"DELETE ur FROM user_roles ur JOIN roles ro ON ro.id=ur.role_id WHERE ur.user_id=? AND ro.name=?",
		userID, roleName)
	return err
}
