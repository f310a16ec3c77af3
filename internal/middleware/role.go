package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireIdentity rejects guests with 401.  When roles are given the
// signed-in user must hold one of them, otherwise the request gets 403.
// It must run after Session.
func RequireIdentity(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[strings.ToUpper(r)] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := CurrentIdentity(c)
			if id == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "please log in to continue"})
			}
			if len(allowed) > 0 && !allowed[strings.ToUpper(id.User.Role)] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
