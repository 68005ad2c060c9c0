// Package router wires handlers, auth middleware and rate limiting onto the
// Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/avelhart/hearthside-auth/internal/config"
	"github.com/avelhart/hearthside-auth/internal/handler"
	"github.com/avelhart/hearthside-auth/internal/middleware"
	"github.com/avelhart/hearthside-auth/internal/model"
)

// Handlers carries everything RegisterRoutes needs.
type Handlers struct {
	Auth     *handler.AuthHandler
	Email    *handler.EmailHandler
	OAuth    *handler.OAuthHandler
	Requests *handler.AccessRequestHandler
	Admin    *handler.AdminHandler
}

// RegisterRoutes sets up the whole endpoint surface. Abuse-prone public
// endpoints sit behind the Redis token bucket; everything under /v1 that
// reads the caller's identity goes through JWTAuth plus a role check.
func RegisterRoutes(e *echo.Echo, cfg config.Config, rlCfg config.RateLimitConfig, rdb *redis.Client, h Handlers) {
	e.Validator = handler.NewValidator()
	e.GET("/healthz", handler.Health)

	limited := middleware.NewTokenBucket(rlCfg, rdb)

	// Public session endpoints.
	pub := e.Group("/v1/auth")
	pub.POST("/register", h.Auth.Register, limited)
	pub.POST("/login", h.Auth.Login, limited)
	pub.POST("/refresh", h.Auth.Refresh)
	pub.POST("/revoke", h.Auth.Revoke)
	pub.POST("/verify-email", h.Email.VerifyEmail)
	pub.POST("/reset-password/request", h.Email.RequestReset, limited)
	pub.POST("/reset-password", h.Email.ResetPassword)
	pub.POST("/unsubscribe", h.Email.Unsubscribe)
	pub.GET("/oauth/:provider/callback", h.OAuth.Callback)

	// Endpoints requiring a valid access token with the base role.
	user := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret), middleware.RequireAnyRole(model.RoleUser, model.RoleAdmin))
	user.POST("/auth/revoke-all", h.Auth.RevokeAll)
	user.GET("/auth/me", h.Auth.Me)
	user.PUT("/auth/profile", h.Auth.UpdateProfile)
	user.PUT("/auth/change-password", h.Auth.ChangePassword)
	user.POST("/auth/verify-email/request", h.Email.RequestVerification, limited)
	user.POST("/access-requests", h.Requests.Create)
	user.DELETE("/auth/account", h.Auth.DeleteAccount)

	// Admin console. RequireAllRoles: an admin must also be a full user,
	// which account provisioning guarantees.
	admin := e.Group("/v1/admin", middleware.JWTAuth(cfg.JWTSecret), middleware.RequireAllRoles(model.RoleUser, model.RoleAdmin))
	admin.GET("/access-requests", h.Requests.List)
	admin.POST("/access-requests/:id/approve", h.Requests.Approve)
	admin.POST("/access-requests/:id/reject", h.Requests.Reject)
	admin.POST("/users/:id/roles", h.Admin.GrantRole)
	admin.DELETE("/users/:id/roles/:role", h.Admin.RevokeRole)
	admin.DELETE("/users/:id", h.Admin.DeactivateUser)
	admin.POST("/suppressions", h.Admin.Suppress)
}
