package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avelhart/hearthside-auth/internal/auth"
	"github.com/avelhart/hearthside-auth/internal/config"
	"github.com/avelhart/hearthside-auth/internal/middleware"
	"github.com/avelhart/hearthside-auth/internal/model"
	"github.com/avelhart/hearthside-auth/internal/queue"
	"github.com/avelhart/hearthside-auth/internal/repository"
)

// EmailHandler owns the ephemeral-token flows: email verification, password
// reset and unsubscribe.
type EmailHandler struct {
	Cfg          config.Config
	Users        UserStore
	Roles        RoleStore
	Tokens       RefreshStore
	Ephemerals   EphemeralStore
	Suppressions SuppressionStore
	Mail         EmailSender
}

func NewEmailHandler(cfg config.Config, users UserStore, roles RoleStore, tokens RefreshStore, eph EphemeralStore, sup SuppressionStore, mail EmailSender) *EmailHandler {
	return &EmailHandler{Cfg: cfg, Users: users, Roles: roles, Tokens: tokens, Ephemerals: eph, Suppressions: sup, Mail: mail}
}

type consumeTokenReq struct {
	Token string `json:"token" validate:"required"`
}
type resetRequestReq struct {
	Email string `json:"email" validate:"required,email"`
}
type resetPasswordReq struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// RequestVerification queues a fresh verification mail for the caller's own
// address. Unlike the silent reset request, suppression surfaces here: the
// user is asking about their own address and deserves to know.
func (h *EmailHandler) RequestVerification(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		return fail(c, err)
	}
	token, err := h.Ephemerals.Issue(ctx, u.ID, model.PurposeVerifyEmail)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Mail.Send(ctx, queue.EmailRequestedEvent{
		To:       u.Email,
		Kind:     queue.EmailTransactional,
		Template: queue.TemplateVerifyEmail,
		Params:   map[string]string{"token": token, "name": u.DisplayName},
	}); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "queued"})
}

// VerifyEmail consumes a verification token and grants email-verified.
func (h *EmailHandler) VerifyEmail(c echo.Context) error {
	var req consumeTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Ephemerals.Consume(ctx, req.Token, model.PurposeVerifyEmail)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Roles.Grant(ctx, userID, model.RoleEmailVerified, nil); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "verified"})
}

// RequestReset queues a password-reset mail. Always 202: whether the address
// exists, is OAuth-only, or is suppressed must not be observable, or the
// endpoint becomes an account oracle.
func (h *EmailHandler) RequestReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			c.Logger().Errorf("reset request lookup: %v", err)
		}
		return c.JSON(http.StatusAccepted, echo.Map{"status": "queued"})
	}
	token, err := h.Ephemerals.Issue(ctx, u.ID, model.PurposePasswordReset)
	if err != nil {
		c.Logger().Errorf("issue reset token: %v", err)
		return c.JSON(http.StatusAccepted, echo.Map{"status": "queued"})
	}
	if err := h.Mail.Send(ctx, queue.EmailRequestedEvent{
		To:       u.Email,
		Kind:     queue.EmailTransactional,
		Template: queue.TemplatePasswordReset,
		Params:   map[string]string{"token": token, "name": u.DisplayName},
	}); err != nil {
		c.Logger().Warnf("queue reset mail for %s: %v", u.Email, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "queued"})
}

// ResetPassword consumes a reset token and installs the new password. The
// token is single-use even before expiry (used_at marker), and a successful
// reset revokes every session since the credential changed.
func (h *EmailHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Ephemerals.Consume(ctx, req.Token, model.PurposePasswordReset)
	if err != nil {
		return fail(c, err)
	}
	hash, err := auth.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Users.SetPassword(ctx, userID, hash); err != nil {
		return fail(c, err)
	}
	if err := h.Tokens.RevokeAllForUser(ctx, userID); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Unsubscribe consumes an unsubscribe token and suppresses marketing mail
// to the owner's address. Transactional mail still flows.
func (h *EmailHandler) Unsubscribe(c echo.Context) error {
	var req consumeTokenReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Ephemerals.Consume(ctx, req.Token, model.PurposeUnsubscribe)
	if err != nil {
		return fail(c, err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return fail(c, err)
	}
	if err := h.Suppressions.Suppress(ctx, u.Email, false, true, model.SuppressionUnsubscribe); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
