package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/logger"
	"github.com/iliyamo/chatdesk/internal/service"
)

const tenantKey = "tenant"

// Headers an edge proxy may set after rewriting a tenant subdomain.
const (
	HeaderTenantSlug = "X-Tenant-Slug"
	HeaderSubdomain  = "X-Subdomain"
)

// Tenant resolves the company scope of the request and stores it in the
// echo context.  It runs after JWTAuth on authenticated routes, where the
// identity's company is the fallback and a mismatching subdomain is
// rejected.
func Tenant(resolver *service.TenantResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			slug := req.Header.Get(HeaderTenantSlug)
			if slug == "" {
				slug = req.Header.Get(HeaderSubdomain)
			}
			var idp *service.Identity
			if id, ok := IdentityFrom(c); ok {
				idp = &id
			}
			tc, err := resolver.Resolve(req.Context(), req.Host, slug, idp)
			if err != nil {
				return err
			}
			c.Set(tenantKey, tc)
			if tc.CompanyID != "" {
				c.Set(logger.CompanyIDKey, tc.CompanyID)
			}
			return next(c)
		}
	}
}

// TenantOf returns the tenant resolved for the request.
func TenantOf(c echo.Context) service.TenantContext {
	tc, _ := c.Get(tenantKey).(service.TenantContext)
	return tc
}

// CompanyID is the company the request operates on: the resolved tenant, or
// the caller's own company when no tenant middleware ran.
func CompanyID(c echo.Context) string {
	if tc := TenantOf(c); tc.CompanyID != "" {
		return tc.CompanyID
	}
	if id, ok := IdentityFrom(c); ok {
		return id.CompanyID
	}
	return ""
}
