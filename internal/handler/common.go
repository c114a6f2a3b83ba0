package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/middleware"
	"github.com/iliyamo/chatdesk/internal/service"
)

// requestTimeout bounds the work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// identity returns the authenticated caller.  Routes using it sit behind
// JWTAuth, so a missing identity is a wiring error reported as 401.
func identity(c echo.Context) (service.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return id, &service.Error{Kind: service.ErrUnauthorized, Message: "authentication required"}
	}
	return id, nil
}

// companyID is the tenant the request operates on.
func companyID(c echo.Context) string { return middleware.CompanyID(c) }

// paging reads ?page= and ?limit=; bad values fall back to defaults.
func paging(c echo.Context) service.Paging {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return service.Paging{Page: page, Limit: limit}
}
