package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/middleware"
	"github.com/iliyamo/chatdesk/internal/model"
)

// registerAccountRoutes covers companies, plans, subscriptions and the
// platform admin views.  The admin group is restricted to super admins.
func registerAccountRoutes(g *echo.Group, h Handlers) {
	g.POST("/companies", h.Companies.Create)
	g.GET("/companies", h.Companies.List)
	g.GET("/companies/me", h.Companies.Me)
	g.PATCH("/companies/me/widget-theme", h.Companies.UpdateWidgetTheme)
	g.GET("/companies/:id", h.Companies.Get)
	g.PATCH("/companies/:id", h.Companies.Update)
	g.DELETE("/companies/:id", h.Companies.Delete)

	g.GET("/plans", h.Plans.List)
	g.GET("/plans/:id", h.Plans.Get)
	g.POST("/plans", h.Plans.Create)
	g.PATCH("/plans/:id", h.Plans.Update)
	g.DELETE("/plans/:id", h.Plans.Delete)

	g.GET("/subscriptions", h.Subscriptions.Current)
	g.POST("/subscriptions", h.Subscriptions.Create)
	g.GET("/subscriptions/limits", h.Subscriptions.Limits)
	g.PATCH("/subscriptions/plan", h.Subscriptions.ChangePlan)
	g.POST("/subscriptions/upgrade", h.Subscriptions.Upgrade)
	g.POST("/subscriptions/cancel", h.Subscriptions.Cancel)

	admin := g.Group("/admin", middleware.RequireRole(model.RoleSuperAdmin))
	admin.GET("/stats", h.Admin.Stats)
	admin.GET("/companies", h.Admin.Companies)
	admin.GET("/users", h.Admin.Users)
}
