package router

import (
	"github.com/labstack/echo/v4"
)

// registerTeamRoutes covers the people side of a tenant: users, roles,
// departments and the permission catalogue.
func registerTeamRoutes(g *echo.Group, h Handlers) {
	g.POST("/users", h.Users.Create)
	g.GET("/users", h.Users.List)
	g.GET("/users/:id", h.Users.Get)
	g.PATCH("/users/:id", h.Users.Update)
	g.DELETE("/users/:id", h.Users.Delete)

	g.POST("/roles", h.Roles.Create)
	g.GET("/roles", h.Roles.List)
	g.GET("/roles/:id", h.Roles.Get)
	g.PATCH("/roles/:id", h.Roles.Update)
	g.DELETE("/roles/:id", h.Roles.Delete)

	g.POST("/departments", h.Departments.Create)
	g.GET("/departments", h.Departments.List)
	g.GET("/departments/:id", h.Departments.Get)
	g.PATCH("/departments/:id", h.Departments.Update)
	g.DELETE("/departments/:id", h.Departments.Delete)

	g.GET("/permissions", h.Permissions.List)
	g.GET("/permissions/:id", h.Permissions.Get)
}
