package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avelhart/hearthside-auth/internal/middleware"
)

// AdminHandler holds the console operations: direct role grants and
// revocations, account deactivation, and suppression-list management.
type AdminHandler struct {
	Users        UserStore
	Roles        RoleStore
	Tokens       RefreshStore
	Suppressions SuppressionStore
}

func NewAdminHandler(users UserStore, roles RoleStore, tokens RefreshStore, sup SuppressionStore) *AdminHandler {
	return &AdminHandler{Users: users, Roles: roles, Tokens: tokens, Suppressions: sup}
}

type grantRoleReq struct {
	Role string `json:"role" validate:"required"`
}

type suppressReq struct {
	Email         string `json:"email" validate:"required,email"`
	Transactional bool   `json:"transactional"`
	Marketing     bool   `json:"marketing"`
	Reason        string `json:"reason" validate:"required,oneof=bounce complaint unsubscribe manual"`
}

// GrantRole adds a role to a user, recording the acting admin as grantor.
func (h *AdminHandler) GrantRole(c echo.Context) error {
	var req grantRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID := c.Param("id")
	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		return fail(c, err)
	}
	adminID := middleware.UserID(c)
	if err := h.Roles.Grant(ctx, userID, req.Role, &adminID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokeRole removes a role. This is the explicit revocation path for
// email-verified and trusted-contact; nothing revokes those implicitly.
func (h *AdminHandler) RevokeRole(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID := c.Param("id")
	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		return fail(c, err)
	}
	if err := h.Roles.Revoke(ctx, userID, c.Param("role")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeactivateUser soft-disables an account and kills its sessions. The rows
// stay; only an explicit account-deletion request removes data.
func (h *AdminHandler) DeactivateUser(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID := c.Param("id")
	if err := h.Users.Deactivate(ctx, userID); err != nil {
		return fail(c, err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Suppress upserts a suppression record; the entry point for bounce and
// complaint reports relayed from the mail provider, and for manual blocks.
func (h *AdminHandler) Suppress(c echo.Context) error {
	var req suppressReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if !req.Transactional && !req.Marketing {
		// A bare bounce report still blocks marketing mail.
		req.Marketing = true
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Suppressions.Suppress(ctx, req.Email, req.Transactional, req.Marketing, req.Reason); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
