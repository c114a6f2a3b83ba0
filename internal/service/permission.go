package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/iliyamo/chatdesk/internal/model"
)

// Permission names used by the route policy table.
const (
	PermCreateAgent       = "create_agent"
	PermEditAgent         = "edit_agent"
	PermDeleteAgent       = "delete_agent"
	PermAssignChat        = "assign_chat"
	PermViewAllChats      = "view_all_chats"
	PermViewReports       = "view_reports"
	PermBillingAccess     = "billing_access"
	PermManageRoles       = "manage_roles"
	PermManageDepartments = "manage_departments"
)

// Policy is the access requirement of one operation.  Roles is a role-name
// allowlist; Permissions must all be granted to the caller's role.  Both
// may be set, in which case both must hold.
type Policy struct {
	Permissions []string
	Roles       []string
}

// PermissionEvaluator resolves a role to its permission names and checks
// policies against them.  Permission sets are cached per role.
type PermissionEvaluator struct {
	roles RoleStore
	cache *sturdyc.Client[[]string]
}

// NewPermissionEvaluator caches permission sets for ttl.
func NewPermissionEvaluator(roles RoleStore, ttl time.Duration) *PermissionEvaluator {
	if ttl <= 0 {
		ttl = time.Minute
	}
	// capacity, shards, ttl, eviction percentage
	cache := sturdyc.New[[]string](1000, 10, ttl, 10)
	return &PermissionEvaluator{roles: roles, cache: cache}
}

// PermissionsForRole returns the permission names granted to roleID.
func (e *PermissionEvaluator) PermissionsForRole(ctx context.Context, roleID string) (map[string]bool, error) {
	names, err := e.cache.GetOrFetch(ctx, "role:"+roleID, func(ctx context.Context) ([]string, error) {
		return e.roles.PermissionNamesForRole(ctx, roleID)
	})
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

// Invalidate drops the cached permission set of a role after it changed.
func (e *PermissionEvaluator) Invalidate(roleID string) {
	e.cache.Delete("role:" + roleID)
}

// Authorize checks id against p.  Role allowlists are evaluated first;
// permission failures list what is missing.
func (e *PermissionEvaluator) Authorize(ctx context.Context, id Identity, p Policy) error {
	if len(p.Roles) > 0 && !containsString(p.Roles, id.RoleName) {
		return forbidden("insufficient role")
	}
	if len(p.Permissions) == 0 {
		return nil
	}
	granted, err := e.PermissionsForRole(ctx, id.RoleID)
	if err != nil {
		return err
	}
	if missing := MissingPermissions(granted, p.Permissions); len(missing) > 0 {
		err := forbidden("missing required permissions: %s", strings.Join(missing, ", "))
		err.Details = map[string]any{"missing": missing}
		return err
	}
	return nil
}

// MissingPermissions returns the required names absent from granted, sorted.
func MissingPermissions(granted map[string]bool, required []string) []string {
	var missing []string
	for _, r := range required {
		if !granted[r] {
			missing = append(missing, r)
		}
	}
	sort.Strings(missing)
	return missing
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ListPermissions returns the global catalogue, optionally one category.
func (e *PermissionEvaluator) ListPermissions(ctx context.Context, category string) ([]model.Permission, error) {
	return e.roles.ListPermissions(ctx, category)
}

// GetPermission returns one catalogue entry.
func (e *PermissionEvaluator) GetPermission(ctx context.Context, id string) (model.Permission, error) {
	p, err := e.roles.GetPermission(ctx, id)
	return p, translate(err, "permission")
}
