package router // package router wires handlers and middleware onto echo routes

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/handler"
	"github.com/iliyamo/chatdesk/internal/metrics"
	"github.com/iliyamo/chatdesk/internal/middleware"
	"github.com/iliyamo/chatdesk/internal/realtime"
	"github.com/iliyamo/chatdesk/internal/service"
)

// Handlers groups every HTTP handler of the API.
type Handlers struct {
	Health        *handler.HealthHandler
	Auth          *handler.AuthHandler
	Chats         *handler.ChatHandler
	Messages      *handler.MessageHandler
	Users         *handler.UserHandler
	Roles         *handler.RoleHandler
	Departments   *handler.DepartmentHandler
	Permissions   *handler.PermissionHandler
	Plans         *handler.PlanHandler
	Subscriptions *handler.SubscriptionHandler
	Companies     *handler.CompanyHandler
	Widget        *handler.WidgetHandler
	Analytics     *handler.AnalyticsHandler
	Admin         *handler.AdminHandler
	Gateway       *realtime.Gateway
}

// Guards are the middleware dependencies of the protected routes.
type Guards struct {
	Auth      middleware.Authenticator
	Tenants   *service.TenantResolver
	Perms     *service.PermissionEvaluator
	RateLimit echo.MiddlewareFunc // public widget traffic; nil disables
}

// Register installs the whole API on e.
func Register(e *echo.Echo, h Handlers, g Guards) {
	RegisterRoutes(e, h.Health)
	RegisterPublic(e, h, g.RateLimit)
	RegisterProtected(e, h, g)
}

// RegisterRoutes registers operational endpoints that never require
// authentication.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler) {
	e.GET("/healthz", health.Health)
	e.GET("/metrics", metrics.Handler())
}

// RegisterPublic registers registration, login and the widget-facing
// endpoints.  Widget traffic goes through the rate limiter.
func RegisterPublic(e *echo.Echo, h Handlers, limit echo.MiddlewareFunc) {
	e.POST("/companies/register", h.Auth.RegisterCompany)
	e.POST("/companies/auth/login", h.Auth.CompanyLogin)
	e.POST("/admin/auth/login", h.Auth.AdminLogin)
	e.POST("/auth/refresh", h.Auth.Refresh)
	e.POST("/auth/logout", h.Auth.Logout)
	e.GET("/companies/slug/:slug", h.Companies.BySlug)

	var mw []echo.MiddlewareFunc
	if limit != nil {
		mw = append(mw, limit)
	}
	e.POST("/chats", h.Chats.Create, mw...)
	e.GET("/widget/config/:widgetKey", h.Widget.Config, mw...)
	e.GET("/widget/online-agents", h.Widget.OnlineAgents, mw...)

	// realtime gateway; it authenticates the upgrade itself
	e.GET("/chat", h.Gateway.Handle)
}

// RegisterProtected registers every route that needs an access token.  The
// chain is JWTAuth, then tenant resolution, then the policy table.
func RegisterProtected(e *echo.Echo, h Handlers, g Guards) {
	api := e.Group("",
		middleware.JWTAuth(g.Auth),
		middleware.Tenant(g.Tenants),
		middleware.Authorize(g.Perms, Policies),
	)

	api.GET("/auth/me", h.Auth.Me)

	registerChatRoutes(api, h)
	registerTeamRoutes(api, h)
	registerAccountRoutes(api, h)
}
