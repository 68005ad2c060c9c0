package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAnyRole authorizes the request when the principal holds at least
// one of the given roles (OR semantics). The check is flat set membership
// over the JWT role claims; there is no role hierarchy here, admins simply
// hold 'user' as well.
func RequireAnyRole(roles ...string) echo.MiddlewareFunc {
	required := roleSet(roles)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, r := range Roles(c) {
				if required[r] {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
}

// RequireAllRoles authorizes the request only when the principal holds every
// one of the given roles (AND semantics). Declared explicitly at the route,
// never inferred.
func RequireAllRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			held := roleSet(Roles(c))
			for _, r := range roles {
				if !held[r] {
					return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
				}
			}
			return next(c)
		}
	}
}

func roleSet(roles []string) map[string]bool {
	m := make(map[string]bool, len(roles))
	for _, r := range roles {
		m[r] = true
	}
	return m
}
