package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avelhart/hearthside-auth/internal/auth"
	"github.com/avelhart/hearthside-auth/internal/config"
	"github.com/avelhart/hearthside-auth/internal/middleware"
	"github.com/avelhart/hearthside-auth/internal/model"
	"github.com/avelhart/hearthside-auth/internal/queue"
	"github.com/avelhart/hearthside-auth/internal/repository"
)

// AuthHandler bundles dependencies for the session endpoints: registration,
// login, refresh rotation, revocation, profile and password management.
type AuthHandler struct {
	Cfg        config.Config
	Users      UserStore
	Roles      RoleStore
	Tokens     RefreshStore
	Ephemerals EphemeralStore
	Mail       EmailSender
}

func NewAuthHandler(cfg config.Config, users UserStore, roles RoleStore, tokens RefreshStore, eph EphemeralStore, mail EmailSender) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Roles: roles, Tokens: tokens, Ephemerals: eph, Mail: mail}
}

// ----- DTOs -----

type registerReq struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
type profileReq struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"required,max=100"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

// Register creates User+Credential+default role, queues a verification
// email, and returns a token pair immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	hash, err := auth.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.createWithFreshSlug(ctx, req.Email, req.DisplayName, hash)
	if err != nil {
		return fail(c, err)
	}

	h.sendVerification(ctx, c, u)

	roles, err := h.Roles.RolesForUser(ctx, u.ID)
	if err != nil {
		return fail(c, err)
	}
	device, ip := deviceInfo(c)
	resp, err := issueTokenPair(ctx, h.Cfg, h.Tokens, u, roles, device, ip)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// createWithFreshSlug retries slug collisions with a random suffix; email
// collisions surface to the caller.
func (h *AuthHandler) createWithFreshSlug(ctx context.Context, email, displayName, hash string) (model.User, error) {
	slug := slugify(displayName)
	u, err := h.Users.Create(ctx, email, displayName, slug, hash)
	for tries := 0; errors.Is(err, repository.ErrDuplicateSlug) && tries < 3; tries++ {
		u, err = h.Users.Create(ctx, email, displayName, slugWithSuffix(slug), hash)
	}
	return u, err
}

// sendVerification queues the address-confirmation mail. Best effort: a
// suppressed address or a broker hiccup must not fail registration.
func (h *AuthHandler) sendVerification(ctx context.Context, c echo.Context, u model.User) {
	token, err := h.Ephemerals.Issue(ctx, u.ID, model.PurposeVerifyEmail)
	if err != nil {
		c.Logger().Errorf("issue verification token: %v", err)
		return
	}
	if err := h.Mail.Send(ctx, queue.EmailRequestedEvent{
		To:       u.Email,
		Kind:     queue.EmailTransactional,
		Template: queue.TemplateVerifyEmail,
		Params:   map[string]string{"token": token, "name": u.DisplayName},
	}); err != nil {
		c.Logger().Warnf("queue verification mail for %s: %v", u.Email, err)
	}
}

// Login verifies the password and returns a new token pair. Unknown email,
// OAuth-only account and wrong password are indistinguishable to the caller.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
	}
	if err != nil {
		return fail(c, err)
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account_disabled"})
	}
	cred, err := h.Users.GetCredential(ctx, u.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
	}
	if err != nil {
		return fail(c, err)
	}
	if !auth.VerifyPassword(cred.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
	}

	roles, err := h.Roles.RolesForUser(ctx, u.ID)
	if err != nil {
		return fail(c, err)
	}
	device, ip := deviceInfo(c)
	resp, err := issueTokenPair(ctx, h.Cfg, h.Tokens, u, roles, device, ip)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates the presented secret and returns a new pair. The access
// token is re-minted from the user's current roles, not the stale claims of
// the old one, so role changes propagate here.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token_required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	device, ip := deviceInfo(c)
	userID, newSecret, exp, err := h.Tokens.Rotate(ctx, strings.TrimSpace(req.RefreshToken), device, ip)
	if err != nil {
		return fail(c, err)
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account_disabled"})
	}
	roles, err := h.Roles.RolesForUser(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	access, err := auth.NewAccessToken(h.Cfg.JWTSecret, auth.Claims{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Slug:        u.Slug,
		Roles:       roles,
	}, time.Duration(h.Cfg.AccessTTLMin)*time.Minute)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, authResp{
		User:    toUserPart(u, roles),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: newSecret, Expires: exp},
	})
}

// Revoke terminates the chain of one refresh secret (single-session logout).
func (h *AuthHandler) Revoke(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token_required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Tokens.Revoke(ctx, strings.TrimSpace(req.RefreshToken)); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokeAll signs the caller out everywhere.
func (h *AuthHandler) RevokeAll(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Tokens.RevokeAllForUser(ctx, middleware.UserID(c)); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the current user with a freshly minted access token, so role
// changes become visible without waiting for the old token to expire.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	roles, err := h.Roles.RolesForUser(ctx, u.ID)
	if err != nil {
		return fail(c, err)
	}
	access, err := auth.NewAccessToken(h.Cfg.JWTSecret, auth.Claims{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Slug:        u.Slug,
		Roles:       roles,
	}, time.Duration(h.Cfg.AccessTTLMin)*time.Minute)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":   toUserPart(u, roles),
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// UpdateProfile rewrites email, display name and slug. Changing the email
// drops the email-verified role and queues a fresh verification mail, since
// the new address is unproven.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID := middleware.UserID(c)
	before, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	u, err := h.Users.UpdateProfile(ctx, userID, req.Email, strings.TrimSpace(req.DisplayName), strings.TrimSpace(req.Slug))
	if err != nil {
		return fail(c, err)
	}

	if before.Email != u.Email {
		if err := h.Roles.Revoke(ctx, userID, model.RoleEmailVerified); err != nil {
			return fail(c, err)
		}
		h.sendVerification(ctx, c, u)
	}

	roles, err := h.Roles.RolesForUser(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u, roles)})
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every session, then issues a fresh pair so this device stays
// signed in.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID := middleware.UserID(c)
	cred, err := h.Users.GetCredential(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
	}
	if err != nil {
		return fail(c, err)
	}
	if !auth.VerifyPassword(cred.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid_credentials"})
	}

	hash, err := auth.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Users.SetPassword(ctx, userID, hash); err != nil {
		return fail(c, err)
	}
	// Credential changed: every existing session is out.
	if err := h.Tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fail(c, err)
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	roles, err := h.Roles.RolesForUser(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	device, ip := deviceInfo(c)
	resp, err := issueTokenPair(ctx, h.Cfg, h.Tokens, u, roles, device, ip)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DeleteAccount hard-deletes the caller on explicit request. Sessions go
// first so nothing can refresh mid-delete.
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID := middleware.UserID(c)
	if err := h.Tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fail(c, err)
	}
	if err := h.Users.Delete(ctx, userID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
