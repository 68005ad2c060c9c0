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
	"github.com/avelhart/hearthside-auth/internal/model"
	"github.com/avelhart/hearthside-auth/internal/repository"
)

// ----- shared DTOs -----

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Slug        string   `json:"slug"`
	Roles       []string `json:"roles"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toUserPart(u model.User, roles []string) userPart {
	return userPart{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Slug: u.Slug, Roles: roles}
}

// issueTokenPair mints a fresh access token from the user's current roles
// and starts a new refresh chain.
func issueTokenPair(ctx context.Context, cfg config.Config, refresh RefreshStore, u model.User, roles []string, device, ip string) (authResp, error) {
	access, err := auth.NewAccessToken(cfg.JWTSecret, auth.Claims{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Slug:        u.Slug,
		Roles:       roles,
	}, time.Duration(cfg.AccessTTLMin)*time.Minute)
	if err != nil {
		return authResp{}, err
	}
	secret, exp, err := refresh.Issue(ctx, u.ID, device, ip)
	if err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    toUserPart(u, roles),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: secret, Expires: exp}, // plaintext goes out exactly once
	}, nil
}

func deviceInfo(c echo.Context) (device, ip string) {
	device = strings.TrimSpace(c.Request().UserAgent())
	if len(device) > 255 {
		device = device[:255]
	}
	return device, c.RealIP()
}

// fail maps repository sentinels onto stable error codes. Reused tokens are
// deliberately reported as plain token_invalid: the chain revocation already
// happened server-side and the response must not reveal theft detection.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrTokenReused), errors.Is(err, repository.ErrTokenInvalid):
		if errors.Is(err, repository.ErrTokenReused) {
			c.Logger().Warnf("auth: refresh token reuse detected from %s; chain revoked", c.RealIP())
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token_invalid"})
	case errors.Is(err, repository.ErrTokenExpired):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token_expired"})
	case errors.Is(err, repository.ErrTokenUsed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "token_already_used"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	case errors.Is(err, repository.ErrDuplicateEmail):
		return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate_email"})
	case errors.Is(err, repository.ErrDuplicateSlug):
		return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate_slug"})
	case errors.Is(err, repository.ErrDuplicateExternalLogin):
		return c.JSON(http.StatusConflict, echo.Map{"error": "duplicate_external_login"})
	case errors.Is(err, repository.ErrDuplicateRequest):
		return c.JSON(http.StatusConflict, echo.Map{"error": "request_already_pending"})
	case errors.Is(err, repository.ErrUnknownRole):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown_role"})
	case errors.Is(err, repository.ErrSuppressed):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "email_suppressed"})
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal"})
}
