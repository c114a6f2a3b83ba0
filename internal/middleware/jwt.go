package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

// Authenticator turns a bearer token into an identity.  The auth service
// implements it by verifying the JWT and reloading the user and company, so
// a deactivated account is rejected even while its token is unexpired.
type Authenticator interface {
	Authenticate(ctx context.Context, bearer string) (service.Identity, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// JWTAuth validates the bearer token of every request and stores the
// caller's identity in the echo context.  Handlers read it with
// IdentityFrom.
func JWTAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return &service.Error{Kind: service.ErrUnauthorized, Message: "missing bearer token"}
			}
			id, err := auth.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			setIdentity(c, id)
			return next(c)
		}
	}
}
