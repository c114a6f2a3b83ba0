package service_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/service"
	"github.com/iliyamo/chatdesk/internal/storetest"
)

func TestAuthorize(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	agent := service.Identity{UserID: "u1", RoleID: storetest.RoleAgent, RoleName: model.RoleAgent}
	admin := service.Identity{UserID: "u2", RoleID: storetest.RoleCompanyAdmin, RoleName: model.RoleCompanyAdmin}

	cases := []struct {
		name string
		id   service.Identity
		p    service.Policy
		ok   bool
	}{
		{"no requirement", agent, service.Policy{}, true},
		{"agent assigns", agent, service.Policy{Permissions: []string{service.PermAssignChat}}, true},
		{"agent reports", agent, service.Policy{Permissions: []string{service.PermViewReports}}, false},
		{"admin superset", admin, service.Policy{Permissions: []string{service.PermManageRoles, service.PermBillingAccess}}, true},
		{"role allowlist", admin, service.Policy{Roles: []string{model.RoleSuperAdmin}}, false},
		{"role allowlist hit", agent, service.Policy{Roles: []string{model.RoleAgent}}, true},
	}
	for _, tc := range cases {
		err := e.perms.Authorize(ctx, tc.id, tc.p)
		if (err == nil) != tc.ok {
			t.Errorf("%s: err = %v, want ok=%v", tc.name, err, tc.ok)
		}
		if err != nil && !errors.Is(err, service.ErrForbidden) {
			t.Errorf("%s: err kind = %v", tc.name, err)
		}
	}
}

func TestAuthorizeListsMissingPermissions(t *testing.T) {
	e := newEnv(t)
	agent := service.Identity{RoleID: storetest.RoleAgent, RoleName: model.RoleAgent}
	err := e.perms.Authorize(context.Background(), agent, service.Policy{
		Permissions: []string{service.PermViewReports, service.PermAssignChat, service.PermBillingAccess},
	})
	var se *service.Error
	if !errors.As(err, &se) {
		t.Fatalf("err = %v", err)
	}
	want := []string{service.PermBillingAccess, service.PermViewReports}
	if !reflect.DeepEqual(se.Details["missing"], want) {
		t.Fatalf("missing = %v, want %v", se.Details["missing"], want)
	}
	if se.Message != "missing required permissions: billing_access, view_reports" {
		t.Fatalf("message = %q", se.Message)
	}
}

func TestRoleUpdateInvalidatesPermissionCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)

	role, err := e.roles.Create(ctx, c.ID, service.RoleInput{Name: ptr("triage"), PermissionIDs: []string{"perm-view-all-chats"}})
	if err != nil {
		t.Fatal(err)
	}
	id := service.Identity{CompanyID: c.ID, RoleID: role.ID, RoleName: role.Name}
	policy := service.Policy{Permissions: []string{service.PermAssignChat}}
	if err := e.perms.Authorize(ctx, id, policy); err == nil {
		t.Fatal("triage must not assign yet")
	}
	if _, err := e.roles.Update(ctx, c.ID, role.ID, service.RoleInput{
		PermissionIDs: []string{"perm-view-all-chats", "perm-assign-chat"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := e.perms.Authorize(ctx, id, policy); err != nil {
		t.Fatalf("cached permission set survived update: %v", err)
	}
}

func TestRoleRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	other := e.store.AddCompany("globex", "plan-basic", model.SubscriptionActive)

	_, err := e.roles.Update(ctx, c.ID, storetest.RoleAgent, service.RoleInput{Name: ptr("x")})
	wantKind(t, err, service.ErrForbidden)
	wantKind(t, e.roles.Remove(ctx, c.ID, storetest.RoleAgent), service.ErrForbidden)

	_, err = e.roles.Create(ctx, c.ID, service.RoleInput{Name: ptr("bad"), PermissionIDs: []string{"perm-nope"}})
	wantKind(t, err, service.ErrNotFound)

	r, err := e.roles.Create(ctx, c.ID, service.RoleInput{Name: ptr("lead")})
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.roles.Create(ctx, c.ID, service.RoleInput{Name: ptr("lead")})
	wantKind(t, err, service.ErrConflict)
	_, err = e.roles.FindOne(ctx, other.ID, r.ID)
	wantKind(t, err, service.ErrForbidden)
	if _, err := e.roles.FindOne(ctx, other.ID, storetest.RoleAgent); err != nil {
		t.Fatalf("system role must be visible: %v", err)
	}

	e.store.AddUser(c.ID, r.ID, "lead@acme.io")
	wantKind(t, e.roles.Remove(ctx, c.ID, r.ID), service.ErrConflict)
}
