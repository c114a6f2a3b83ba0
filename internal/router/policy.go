package router

import (
	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/service"
)

func perm(names ...string) service.Policy { return service.Policy{Permissions: names} }

func roles(names ...string) service.Policy { return service.Policy{Roles: names} }

var (
	superAdmin = roles(model.RoleSuperAdmin)
	admins     = roles(model.RoleSuperAdmin, model.RoleCompanyAdmin)
)

// Policies maps "METHOD /path" to the access requirement of the route.
// Routes missing here only need a valid access token.
var Policies = map[string]service.Policy{
	"GET /chats":                 perm(service.PermViewAllChats),
	"GET /chats/queue":           perm(service.PermAssignChat),
	"GET /chats/:id":             perm(service.PermViewAllChats),
	"PATCH /chats/:id":           perm(service.PermAssignChat),
	"POST /chats/:id/assign":     perm(service.PermAssignChat),
	"GET /chats/:id/assignments": perm(service.PermViewAllChats),

	"GET /analytics/chats":  perm(service.PermViewReports),
	"GET /analytics/events": perm(service.PermViewReports),

	"POST /users":             perm(service.PermCreateAgent),
	"PATCH /users/:id":        perm(service.PermEditAgent),
	"DELETE /users/:id":       perm(service.PermDeleteAgent),
	"POST /roles":             perm(service.PermManageRoles),
	"GET /roles":              perm(service.PermManageRoles),
	"GET /roles/:id":          perm(service.PermManageRoles),
	"PATCH /roles/:id":        perm(service.PermManageRoles),
	"DELETE /roles/:id":       perm(service.PermManageRoles),
	"POST /departments":       perm(service.PermManageDepartments),
	"PATCH /departments/:id":  perm(service.PermManageDepartments),
	"DELETE /departments/:id": perm(service.PermManageDepartments),

	"POST /companies":                  superAdmin,
	"GET /companies":                   superAdmin,
	"PATCH /companies/me/widget-theme": admins,
	"PATCH /companies/:id":             admins,
	"DELETE /companies/:id":            admins,

	"POST /plans":       superAdmin,
	"PATCH /plans/:id":  superAdmin,
	"DELETE /plans/:id": superAdmin,

	"GET /subscriptions":          perm(service.PermBillingAccess),
	"POST /subscriptions":         perm(service.PermBillingAccess),
	"GET /subscriptions/limits":   perm(service.PermBillingAccess),
	"PATCH /subscriptions/plan":   perm(service.PermBillingAccess),
	"POST /subscriptions/upgrade": perm(service.PermBillingAccess),
	"POST /subscriptions/cancel":  perm(service.PermBillingAccess),
}
