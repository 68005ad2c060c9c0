// Package middleware provides the request-side half of the auth core:
// bearer token verification, role checks, and rate limiting.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/avelhart/hearthside-auth/internal/auth"
)

// Context keys set by JWTAuth for downstream middleware and handlers.
const (
	CtxUserID = "user_id"
	CtxRoles  = "roles"
)

// JWTAuth validates a Bearer access token and stores the subject and role
// claims in the request context. Expired and invalid tokens both produce a
// 401 with the same body; the distinction only shows up in the debug log,
// so the response leaks nothing about why verification failed.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims, err := auth.ParseAccessToken(secret, raw)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					c.Logger().Debugf("auth: expired access token from %s", c.RealIP())
				} else {
					c.Logger().Debugf("auth: invalid access token from %s", c.RealIP())
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			}

			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxRoles, claims.Roles)
			return next(c)
		}
	}
}

// UserID returns the authenticated user id from the context, or "" when the
// request never passed JWTAuth.
func UserID(c echo.Context) string {
	if v, ok := c.Get(CtxUserID).(string); ok {
		return v
	}
	return ""
}

// Roles returns the role claims stored by JWTAuth.
func Roles(c echo.Context) []string {
	if v, ok := c.Get(CtxRoles).([]string); ok {
		return v
	}
	return nil
}
