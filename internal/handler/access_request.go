package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avelhart/hearthside-auth/internal/middleware"
	"github.com/avelhart/hearthside-auth/internal/model"
)

// AccessRequestHandler covers the elevated-role petition workflow: users
// file requests, admins review them.
type AccessRequestHandler struct {
	Requests RequestStore
	Roles    RoleStore
}

func NewAccessRequestHandler(requests RequestStore, roles RoleStore) *AccessRequestHandler {
	return &AccessRequestHandler{Requests: requests, Roles: roles}
}

type accessRequestReq struct {
	Role   string `json:"role" validate:"required"`
	Reason string `json:"reason" validate:"required,max=2000"`
}

// Create files a request for an elevated role on behalf of the caller.
func (h *AccessRequestHandler) Create(c echo.Context) error {
	var req accessRequestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if !model.RequestableRoles[req.Role] {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role_not_requestable"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Requests.Create(ctx, middleware.UserID(c), req.Role, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// List returns requests by review status (default pending). Admin only.
func (h *AccessRequestHandler) List(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = model.RequestPending
	}
	switch status {
	case model.RequestPending, model.RequestApproved, model.RequestRejected:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	out, err := h.Requests.ListByStatus(ctx, status)
	if err != nil {
		return fail(c, err)
	}
	if out == nil {
		out = []model.AccessRequest{}
	}
	return c.JSON(http.StatusOK, out)
}

// Approve grants the requested role and records the deciding admin. The
// requester sees the new role on their next refresh or /auth/me call.
func (h *AccessRequestHandler) Approve(c echo.Context) error {
	return h.decide(c, true)
}

// Reject closes the request without granting anything.
func (h *AccessRequestHandler) Reject(c echo.Context) error {
	return h.decide(c, false)
}

func (h *AccessRequestHandler) decide(c echo.Context, approve bool) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	adminID := middleware.UserID(c)
	a, err := h.Requests.Decide(ctx, c.Param("id"), adminID, approve)
	if err != nil {
		return fail(c, err)
	}
	if approve {
		if err := h.Roles.Grant(ctx, a.UserID, a.RoleName, &adminID); err != nil {
			return fail(c, err)
		}
	}
	return c.JSON(http.StatusOK, a)
}
