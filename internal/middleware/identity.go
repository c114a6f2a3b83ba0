package middleware

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/logger"
	"github.com/iliyamo/chatdesk/internal/service"
)

const identityKey = "identity"

func setIdentity(c echo.Context, id service.Identity) {
	c.Set(identityKey, id)
	c.Set("user_id", id.UserID)
	c.Set("role", id.RoleName)
	l := logger.FromEcho(c).With(zap.String("user_id", id.UserID))
	c.Set(logger.EchoKey, l)
	c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context(), l)))
}

// IdentityFrom returns the authenticated caller, if any.
func IdentityFrom(c echo.Context) (service.Identity, bool) {
	id, ok := c.Get(identityKey).(service.Identity)
	return id, ok
}
