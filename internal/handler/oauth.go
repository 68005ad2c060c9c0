package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avelhart/hearthside-auth/internal/config"
	"github.com/avelhart/hearthside-auth/internal/model"
	"github.com/avelhart/hearthside-auth/internal/oauth"
	"github.com/avelhart/hearthside-auth/internal/repository"
)

// OAuthHandler implements the provider callback. Three branches, one
// response shape: existing link logs in, matching email links, otherwise a
// new account is created. The account field tells the caller which one ran.
type OAuthHandler struct {
	Cfg      config.Config
	Provider Exchanger
	Logins   LoginStore
	Users    UserStore
	Roles    RoleStore
	Tokens   RefreshStore
}

func NewOAuthHandler(cfg config.Config, provider Exchanger, logins LoginStore, users UserStore, roles RoleStore, tokens RefreshStore) *OAuthHandler {
	return &OAuthHandler{Cfg: cfg, Provider: provider, Logins: logins, Users: users, Roles: roles, Tokens: tokens}
}

type oauthResp struct {
	authResp
	Account string `json:"account"` // existing | linked | created
}

// Callback handles GET /auth/oauth/:provider/callback?code=...
func (h *OAuthHandler) Callback(c echo.Context) error {
	if c.Param("provider") != h.Cfg.OAuthProvider {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown_provider"})
	}
	code := strings.TrimSpace(c.QueryParam("code"))
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code_required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	profile, err := h.Provider.Exchange(ctx, code)
	if err != nil {
		c.Logger().Warnf("oauth exchange failed: %v", err)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "oauth_exchange_failed"})
	}

	u, account, err := h.resolve(ctx, profile)
	if err != nil {
		return fail(c, err)
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account_disabled"})
	}

	roles, err := h.Roles.RolesForUser(ctx, u.ID)
	if err != nil {
		return fail(c, err)
	}
	device, ip := deviceInfo(c)
	pair, err := issueTokenPair(ctx, h.Cfg, h.Tokens, u, roles, device, ip)
	if err != nil {
		return fail(c, err)
	}
	status := http.StatusOK
	if account == "created" {
		status = http.StatusCreated
	}
	return c.JSON(status, oauthResp{authResp: pair, Account: account})
}

func (h *OAuthHandler) resolve(ctx context.Context, p oauth.Profile) (model.User, string, error) {
	// Branch 1: identity already linked.
	userID, err := h.Logins.FindUser(ctx, p.Provider, p.ProviderUserID)
	if err == nil {
		u, err := h.Users.GetByID(ctx, userID)
		return u, "existing", err
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, "", err
	}

	// Branch 2: same email already registered locally; link instead of
	// creating a duplicate account for the same person.
	u, err := h.Users.GetByEmail(ctx, p.Email)
	if err == nil {
		if err := h.Logins.Link(ctx, p.Provider, p.ProviderUserID, u.ID); err != nil {
			return model.User{}, "", err
		}
		return u, "linked", nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, "", err
	}

	// Branch 3: brand new account, external login only, default role.
	slug := slugify(p.DisplayName)
	u, err = h.Users.CreateWithLogin(ctx, p.Email, p.DisplayName, slug, p.Provider, p.ProviderUserID)
	for tries := 0; errors.Is(err, repository.ErrDuplicateSlug) && tries < 3; tries++ {
		u, err = h.Users.CreateWithLogin(ctx, p.Email, p.DisplayName, slugWithSuffix(slug), p.Provider, p.ProviderUserID)
	}
	if err != nil {
		return model.User{}, "", err
	}
	return u, "created", nil
}
