package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/service"
	"github.com/iliyamo/chatdesk/internal/storetest"
)

func TestRegisterCompany(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res, err := e.auth.RegisterCompany(ctx, service.RegisterInput{
		CompanyName: "Acme Support Ltd", Email: "Owner@Acme.io", Password: "pw123456", FirstName: "Olga",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Company.Slug != "acme-support-ltd" || !strings.HasPrefix(res.Company.WidgetKey, "widget_") {
		t.Fatalf("company = %+v", res.Company)
	}
	if res.User.RoleName != model.RoleCompanyAdmin || res.User.Email != "owner@acme.io" {
		t.Fatalf("admin = %+v", res.User)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatal("missing tokens")
	}
	sub, err := e.subs.Current(ctx, res.Company.ID)
	if err != nil || sub.Status != model.SubscriptionTrial || sub.Plan == nil || sub.Plan.Slug != "basic" {
		t.Fatalf("subscription = %+v, %v", sub, err)
	}

	_, err = e.auth.RegisterCompany(ctx, service.RegisterInput{CompanyName: "Acme Support Ltd", Email: "x@y.io", Password: "pw123456"})
	wantKind(t, err, service.ErrConflict)
	_, err = e.auth.RegisterCompany(ctx, service.RegisterInput{CompanyName: "Other", Email: "owner@acme.io", Password: "pw123456"})
	wantKind(t, err, service.ErrConflict)
}

func TestLoginAudiences(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	agent := e.store.AddUser(c.ID, storetest.RoleAgent, "a@acme.io")
	e.store.AddUser(c.ID, storetest.RoleSuperAdmin, "root@acme.io")

	if _, err := e.auth.Login(ctx, "a@acme.io", storetest.Password, service.AudienceCompany); err != nil {
		t.Fatal(err)
	}
	_, err := e.auth.Login(ctx, "a@acme.io", "wrong", service.AudienceCompany)
	wantKind(t, err, service.ErrUnauthorized)
	_, err = e.auth.Login(ctx, "nobody@acme.io", storetest.Password, service.AudienceCompany)
	wantKind(t, err, service.ErrUnauthorized)
	_, err = e.auth.Login(ctx, "a@acme.io", storetest.Password, service.AudienceAdmin)
	wantKind(t, err, service.ErrUnauthorized)
	_, err = e.auth.Login(ctx, "root@acme.io", storetest.Password, service.AudienceCompany)
	wantKind(t, err, service.ErrUnauthorized)
	if _, err := e.auth.Login(ctx, "root@acme.io", storetest.Password, service.AudienceAdmin); err != nil {
		t.Fatal(err)
	}

	e.store.SetUserActive(agent.ID, false)
	_, err = e.auth.Login(ctx, "a@acme.io", storetest.Password, service.AudienceCompany)
	wantKind(t, err, service.ErrUnauthorized)
}

func TestAuthenticateHonoursDeactivation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	e.store.AddUser(c.ID, storetest.RoleAgent, "a@acme.io")
	res, err := e.auth.Login(ctx, "a@acme.io", storetest.Password, service.AudienceCompany)
	if err != nil {
		t.Fatal(err)
	}

	id, err := e.auth.Authenticate(ctx, res.Tokens.AccessToken)
	if err != nil || id.CompanyID != c.ID || id.RoleName != model.RoleAgent {
		t.Fatalf("identity = %+v, %v", id, err)
	}
	_, err = e.auth.Authenticate(ctx, "garbage")
	wantKind(t, err, service.ErrUnauthorized)

	e.store.SetCompanyActive(c.ID, false)
	_, err = e.auth.Authenticate(ctx, res.Tokens.AccessToken)
	wantKind(t, err, service.ErrUnauthorized)
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	e.store.AddUser(c.ID, storetest.RoleAgent, "a@acme.io")
	first, _ := e.auth.Login(ctx, "a@acme.io", storetest.Password, service.AudienceCompany)

	second, err := e.auth.Refresh(ctx, first.Tokens.RefreshToken)
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.auth.Refresh(ctx, first.Tokens.RefreshToken)
	wantKind(t, err, service.ErrUnauthorized)

	if err := e.auth.Logout(ctx, second.Tokens.RefreshToken, true); err != nil {
		t.Fatal(err)
	}
	_, err = e.auth.Refresh(ctx, second.Tokens.RefreshToken)
	wantKind(t, err, service.ErrUnauthorized)
}

func TestEnsureSuperAdmin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	if err := e.auth.EnsureSuperAdmin(ctx, "Root@Platform.io", "root-password"); err != nil {
		t.Fatal(err)
	}
	// second call is a no-op
	if err := e.auth.EnsureSuperAdmin(ctx, "root@platform.io", "other-password"); err != nil {
		t.Fatal(err)
	}
	res, err := e.auth.Login(ctx, "root@platform.io", "root-password", service.AudienceAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if res.User.RoleName != model.RoleSuperAdmin || res.Company.Slug != "platform" {
		t.Fatalf("result = %+v / %+v", res.User, res.Company)
	}
	sub, err := e.subs.Current(ctx, res.Company.ID)
	if err != nil || sub.Status != model.SubscriptionActive {
		t.Fatalf("subscription = %+v, %v", sub, err)
	}

	wantKind(t, e.auth.EnsureSuperAdmin(ctx, "", "x"), service.ErrBadRequest)
}
