package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

// RequireRole aborts with 403 unless the authenticated caller's role is one
// of roles.  It must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok || !allowed[id.RoleName] {
				return &service.Error{Kind: service.ErrForbidden, Message: "insufficient role"}
			}
			return next(c)
		}
	}
}
