package service_test

import (
	"context"
	"testing"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/queue"
	"github.com/iliyamo/chatdesk/internal/service"
	"github.com/iliyamo/chatdesk/internal/storetest"
)

func TestUserCreateRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	acme := e.store.AddCompany("acme", "plan-pro", model.SubscriptionActive)
	globex := e.store.AddCompany("globex", "plan-pro", model.SubscriptionActive)
	sales := e.store.AddDepartment(acme.ID, "Sales")
	foreign := e.store.AddDepartment(globex.ID, "Ops")
	foreignRole, err := e.roles.Create(ctx, globex.ID, service.RoleInput{Name: ptr("ops")})
	if err != nil {
		t.Fatal(err)
	}

	u, err := e.users.Create(ctx, acme.ID, service.CreateUserInput{
		Email: "A@acme.io", Password: "pw123456", RoleID: storetest.RoleAgent, DepartmentIDs: []string{sales.ID, sales.ID},
	})
	if err != nil {
		t.Fatal(err)
	}
	if u.Email != "a@acme.io" || len(u.DepartmentIDs) != 1 {
		t.Fatalf("user = %+v", u)
	}

	_, err = e.users.Create(ctx, acme.ID, service.CreateUserInput{Email: "a@acme.io", Password: "pw123456", RoleID: storetest.RoleAgent})
	wantKind(t, err, service.ErrConflict)
	_, err = e.users.Create(ctx, acme.ID, service.CreateUserInput{Email: "b@acme.io", Password: "pw123456", RoleID: foreignRole.ID})
	wantKind(t, err, service.ErrForbidden)
	_, err = e.users.Create(ctx, acme.ID, service.CreateUserInput{
		Email: "c@acme.io", Password: "pw123456", RoleID: storetest.RoleAgent, DepartmentIDs: []string{foreign.ID},
	})
	wantKind(t, err, service.ErrForbidden)
	_, err = e.users.FindOne(ctx, globex.ID, u.ID)
	wantKind(t, err, service.ErrForbidden)

	if err := e.users.Deactivate(ctx, acme.ID, u.ID); err != nil {
		t.Fatal(err)
	}
	got, _ := e.users.FindOne(ctx, acme.ID, u.ID)
	if got.IsActive {
		t.Fatal("user still active")
	}
}

func TestDepartmentRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)

	sales, err := e.depts.Create(ctx, c.ID, service.DepartmentInput{Name: ptr("Sales")})
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.depts.Create(ctx, c.ID, service.DepartmentInput{Name: ptr("Sales")})
	wantKind(t, err, service.ErrConflict)
	if _, err := e.depts.Create(ctx, c.ID, service.DepartmentInput{Name: ptr("Billing")}); err != nil {
		t.Fatal(err)
	}
	_, err = e.depts.Create(ctx, c.ID, service.DepartmentInput{Name: ptr("Returns")})
	wantKind(t, err, service.ErrForbidden)

	if _, err := e.chats.Create(ctx, c.ID, service.CreateChatInput{DepartmentID: sales.ID}); err != nil {
		t.Fatal(err)
	}
	wantKind(t, e.depts.Remove(ctx, c.ID, sales.ID), service.ErrConflict)
}

func TestCompanyAccess(t *testing.T) {
	st := storetest.New()
	svc := service.NewCompanyService(st)
	ctx := context.Background()
	acme := st.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	globex := st.AddCompany("globex", "plan-basic", model.SubscriptionActive)
	admin := service.Identity{UserID: "u1", CompanyID: acme.ID, RoleName: model.RoleCompanyAdmin}
	root := service.Identity{UserID: "root", CompanyID: acme.ID, RoleName: model.RoleSuperAdmin}

	_, err := svc.FindOne(ctx, admin, globex.ID)
	wantKind(t, err, service.ErrForbidden)
	_, err = svc.Create(ctx, admin, service.CreateCompanyInput{Name: "New Co"})
	wantKind(t, err, service.ErrForbidden)
	_, err = svc.Create(ctx, root, service.CreateCompanyInput{Name: "Acme"})
	wantKind(t, err, service.ErrConflict)
	_, err = svc.Update(ctx, admin, acme.ID, service.UpdateCompanyInput{IsActive: ptr(false)})
	wantKind(t, err, service.ErrForbidden)

	c, err := svc.UpdateWidgetTheme(ctx, admin, model.JSONMap{"primaryColor": "#000"})
	if err != nil || c.WidgetTheme["primaryColor"] != "#000" {
		t.Fatalf("theme = %v, %v", c.WidgetTheme, err)
	}
	if err := svc.Deactivate(ctx, root, globex.ID); err != nil {
		t.Fatal(err)
	}
	page, err := svc.FindAll(ctx, root, service.Paging{})
	if err != nil || page.Total != 2 {
		t.Fatalf("companies = %+v, %v", page, err)
	}
}

func TestWidget(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	agent := e.store.AddUser(c.ID, storetest.RoleAgent, "a@acme.io")
	manager := e.store.AddUser(c.ID, storetest.RoleManager, "m@acme.io")
	e.store.AddUser(c.ID, storetest.RoleAgent, "idle@acme.io")

	cfg, err := e.widget.Config(ctx, c.WidgetKey)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Theme["primaryColor"] != "#007bff" || cfg.Theme["position"] != "bottom-right" || !cfg.IsActive {
		t.Fatalf("config = %+v", cfg)
	}
	_, err = e.widget.Config(ctx, "widget_unknown")
	wantKind(t, err, service.ErrNotFound)
	_, err = e.widget.ResolveWidgetKey(ctx, "")
	wantKind(t, err, service.ErrBadRequest)

	e.tracker.MarkOnline(ctx, c.ID, agent.ID)
	e.tracker.MarkOnline(ctx, c.ID, manager.ID)
	online, err := e.widget.OnlineAgents(ctx, c.WidgetKey)
	if err != nil || len(online) != 1 || online[0].ID != agent.ID {
		t.Fatalf("online = %+v, %v", online, err)
	}

	e.store.SetCompanyActive(c.ID, false)
	_, err = e.widget.Config(ctx, c.WidgetKey)
	wantKind(t, err, service.ErrForbidden)
}

func TestSubscriptionChanges(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-pro", model.SubscriptionActive)
	fresh := e.store.AddCompany("fresh", "", "")

	_, err := e.subs.Create(ctx, c.ID, "plan-basic")
	wantKind(t, err, service.ErrConflict)
	if _, err := e.subs.Create(ctx, fresh.ID, "plan-basic"); err != nil {
		t.Fatal(err)
	}

	_, err = e.subs.Upgrade(ctx, c.ID, "plan-basic")
	wantKind(t, err, service.ErrForbidden)
	sub, err := e.subs.Upgrade(ctx, c.ID, "plan-enterprise")
	if err != nil || sub.PlanID != "plan-enterprise" {
		t.Fatalf("upgrade = %+v, %v", sub, err)
	}
	if sub, err = e.subs.ChangePlan(ctx, c.ID, "plan-basic"); err != nil || sub.PlanID != "plan-basic" {
		t.Fatalf("downgrade = %+v, %v", sub, err)
	}
	sub, err = e.subs.Cancel(ctx, c.ID)
	if err != nil || sub.Status != model.SubscriptionCancelled || !sub.CancelAtPeriodEnd {
		t.Fatalf("cancel = %+v, %v", sub, err)
	}
	_, err = e.plans.CheckFeatureAccess(ctx, c.ID, service.FeatureReports)
	wantKind(t, err, service.ErrForbidden)
}

func TestPlanCatalogue(t *testing.T) {
	st := storetest.New()
	svc := service.NewPlanService(st)
	ctx := context.Background()
	st.AddCompany("acme", "plan-basic", model.SubscriptionActive)

	plans, err := svc.FindAll(ctx, true)
	if err != nil || len(plans) != 3 || plans[0].Slug != "basic" {
		t.Fatalf("plans = %v, %v", plans, err)
	}
	p, err := svc.Create(ctx, service.PlanInput{Name: ptr("Starter"), Price: ptr(9.0), MaxUsers: ptr(2)})
	if err != nil || p.Slug != "starter" {
		t.Fatalf("create = %+v, %v", p, err)
	}
	_, err = svc.Create(ctx, service.PlanInput{Name: ptr("Starter")})
	wantKind(t, err, service.ErrConflict)
	_, err = svc.Update(ctx, p.ID, service.PlanInput{MaxUsers: ptr(-1)})
	wantKind(t, err, service.ErrBadRequest)
	wantKind(t, svc.Remove(ctx, "plan-basic"), service.ErrConflict)
	if err := svc.Remove(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
}

func TestTrackRespectsReportsFeature(t *testing.T) {
	st := storetest.New()
	plans := service.NewPlanChecker(st, st, st)
	svc := service.NewAnalyticsService(st, st, st, plans)
	ctx := context.Background()
	paid := st.AddCompany("paid", "plan-basic", model.SubscriptionActive)
	lapsed := st.AddCompany("lapsed", "plan-basic", model.SubscriptionCancelled)

	for _, id := range []string{paid.ID, lapsed.ID} {
		if err := svc.Track(ctx, queue.ChatEvent{Type: queue.EventChatCreated, CompanyID: id, ChatID: "c1"}); err != nil {
			t.Fatalf("track: %v", err)
		}
	}
	events := st.Events()
	if len(events) != 1 || events[0].CompanyID != paid.ID {
		t.Fatalf("events = %+v", events)
	}
	page, err := svc.Events(ctx, paid.ID, "", service.Paging{})
	if err != nil || page.Total != 1 {
		t.Fatalf("events page = %+v, %v", page, err)
	}
}
