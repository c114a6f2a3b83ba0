package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

// PolicyKey is the lookup key of a route in a policy table: the method and
// the registered path pattern, e.g. "GET /chats/:id".
func PolicyKey(method, path string) string { return method + " " + path }

// Authorize evaluates the policy registered for the matched route.  Routes
// without an entry only require authentication.
func Authorize(perms *service.PermissionEvaluator, policies map[string]service.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := policies[PolicyKey(c.Request().Method, c.Path())]
			if !ok {
				return next(c)
			}
			id, ok := IdentityFrom(c)
			if !ok {
				return &service.Error{Kind: service.ErrUnauthorized, Message: "authentication required"}
			}
			if err := perms.Authorize(c.Request().Context(), id, p); err != nil {
				return err
			}
			return next(c)
		}
	}
}
