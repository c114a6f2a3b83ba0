package router_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/config"
	"github.com/iliyamo/chatdesk/internal/handler"
	"github.com/iliyamo/chatdesk/internal/middleware"
	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/presence"
	"github.com/iliyamo/chatdesk/internal/queue"
	"github.com/iliyamo/chatdesk/internal/realtime"
	"github.com/iliyamo/chatdesk/internal/router"
	"github.com/iliyamo/chatdesk/internal/service"
	"github.com/iliyamo/chatdesk/internal/storetest"
)

type app struct {
	e     *echo.Echo
	store *storetest.Store
	auth  *service.AuthService
}

// newApp wires the full API over the in-memory store, the way main does
// over MySQL.
func newApp(t *testing.T) *app {
	t.Helper()
	st := storetest.New()
	tracker := presence.NewTracker(presence.NewMemoryStore())
	checker := service.NewPlanChecker(st, st, st)
	perms := service.NewPermissionEvaluator(st, time.Minute)
	analytics := service.NewAnalyticsService(st, st, st, checker)
	authSvc := service.NewAuthService(service.AuthConfig{
		JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4,
	}, st, st, st, st, st)
	publisher := queue.Direct{Handle: analytics.Track}
	hub := realtime.NewHub(tracker, nil)
	chats := service.NewChatService(st, st, st, st, tracker, publisher, hub)
	messages := service.NewMessageService(st, st, chats, publisher)
	widget := service.NewWidgetService(st, st, checker, tracker)

	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = handler.NewValidator()
	router.Register(e, router.Handlers{
		Health:        &handler.HealthHandler{Presence: tracker},
		Auth:          handler.NewAuthHandler(authSvc),
		Chats:         handler.NewChatHandler(chats, widget),
		Messages:      handler.NewMessageHandler(messages, hub),
		Users:         handler.NewUserHandler(service.NewUserService(st, st, st, checker, 4)),
		Roles:         handler.NewRoleHandler(service.NewRoleService(st, st, checker, perms)),
		Departments:   handler.NewDepartmentHandler(service.NewDepartmentService(st, checker)),
		Permissions:   handler.NewPermissionHandler(perms),
		Plans:         handler.NewPlanHandler(service.NewPlanService(st)),
		Subscriptions: handler.NewSubscriptionHandler(service.NewSubscriptionService(st, checker)),
		Companies:     handler.NewCompanyHandler(service.NewCompanyService(st)),
		Widget:        handler.NewWidgetHandler(widget),
		Analytics:     handler.NewAnalyticsHandler(analytics),
		Admin:         handler.NewAdminHandler(service.NewAdminService(st, st, st)),
		Gateway:       realtime.NewGateway(hub, authSvc, widget, chats, messages, nil, nil),
	}, router.Guards{
		Auth:      authSvc,
		Tenants:   service.NewTenantResolver(st),
		Perms:     perms,
		RateLimit: middleware.NewWidgetLimiter(config.RateLimitConfig{}, nil),
	})
	return &app{e: e, store: st, auth: authSvc}
}

func (a *app) do(t *testing.T, method, path, token string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var rdr *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rdr = strings.NewReader(string(b))
	} else {
		rdr = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code, out
}

func (a *app) login(t *testing.T, email string, aud service.Audience) string {
	t.Helper()
	res, err := a.auth.Login(context.Background(), email, storetest.Password, aud)
	if err != nil {
		t.Fatal(err)
	}
	return res.Tokens.AccessToken
}

func TestEveryPolicyNamesARoute(t *testing.T) {
	a := newApp(t)
	routes := map[string]bool{}
	for _, r := range a.e.Routes() {
		routes[middleware.PolicyKey(r.Method, r.Path)] = true
	}
	for key := range router.Policies {
		if !routes[key] {
			t.Errorf("policy %q has no route", key)
		}
	}
}

func TestRegisterLoginAndMe(t *testing.T) {
	a := newApp(t)
	code, body := a.do(t, http.MethodPost, "/companies/register", "", map[string]string{
		"companyName": "Acme", "email": "owner@acme.io", "password": "long-password", "firstName": "Olga",
	})
	if code != http.StatusCreated {
		t.Fatalf("register: %d %v", code, body)
	}

	code, body = a.do(t, http.MethodPost, "/companies/auth/login", "", map[string]string{
		"email": "owner@acme.io", "password": "long-password",
	})
	if code != http.StatusOK {
		t.Fatalf("login: %d %v", code, body)
	}
	token := body["tokens"].(map[string]any)["accessToken"].(string)

	code, body = a.do(t, http.MethodGet, "/auth/me", token, nil)
	if code != http.StatusOK {
		t.Fatalf("me: %d %v", code, body)
	}
	if slug := body["company"].(map[string]any)["slug"]; slug != "acme" {
		t.Fatalf("company slug = %v", slug)
	}

	code, body = a.do(t, http.MethodPost, "/companies/register", "", map[string]string{
		"companyName": "Acme", "email": "not-an-email", "password": "x",
	})
	if code != http.StatusBadRequest || body["fields"] == nil {
		t.Fatalf("invalid register: %d %v", code, body)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	a := newApp(t)
	for _, path := range []string{"/chats", "/users", "/auth/me", "/admin/stats"} {
		code, body := a.do(t, http.MethodGet, path, "", nil)
		if code != http.StatusUnauthorized || body["error"] == nil {
			t.Errorf("GET %s: %d %v", path, code, body)
		}
	}
	code, _ := a.do(t, http.MethodGet, "/chats", "not-a-jwt", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("garbage token: %d", code)
	}
}

func TestPolicyEnforcement(t *testing.T) {
	a := newApp(t)
	c := a.store.AddCompany("acme", "plan-pro", model.SubscriptionActive)
	a.store.AddUser(c.ID, storetest.RoleAgent, "agent@acme.io")
	a.store.AddUser(c.ID, storetest.RoleCompanyAdmin, "admin@acme.io")
	a.store.AddUser(c.ID, storetest.RoleSuperAdmin, "root@acme.io")
	agent := a.login(t, "agent@acme.io", service.AudienceCompany)
	admin := a.login(t, "admin@acme.io", service.AudienceCompany)
	root := a.login(t, "root@acme.io", service.AudienceAdmin)

	cases := []struct {
		method, path, token string
		want                int
	}{
		{http.MethodGet, "/chats", agent, http.StatusOK},
		{http.MethodGet, "/chats/queue", agent, http.StatusOK},
		{http.MethodGet, "/roles", agent, http.StatusForbidden},
		{http.MethodGet, "/subscriptions", agent, http.StatusForbidden},
		{http.MethodGet, "/analytics/chats", agent, http.StatusForbidden},
		{http.MethodGet, "/admin/stats", agent, http.StatusForbidden},
		{http.MethodGet, "/companies", admin, http.StatusForbidden},
		{http.MethodGet, "/roles", admin, http.StatusOK},
		{http.MethodGet, "/subscriptions/limits", admin, http.StatusOK},
		{http.MethodGet, "/companies/me", agent, http.StatusOK},
		{http.MethodGet, "/permissions", agent, http.StatusOK},
		{http.MethodGet, "/admin/stats", root, http.StatusOK},
		{http.MethodGet, "/companies", root, http.StatusOK},
	}
	for _, tc := range cases {
		code, body := a.do(t, tc.method, tc.path, tc.token, nil)
		if code != tc.want {
			t.Errorf("%s %s: got %d want %d (%v)", tc.method, tc.path, code, tc.want, body)
		}
	}

	code, body := a.do(t, http.MethodGet, "/roles", agent, nil)
	if code == http.StatusForbidden && !strings.Contains(body["error"].(string), "manage_roles") {
		t.Fatalf("missing permission not named: %v", body)
	}
}

func TestTenantHeaderMustMatchToken(t *testing.T) {
	a := newApp(t)
	acme := a.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	a.store.AddCompany("globex", "plan-basic", model.SubscriptionActive)
	a.store.AddUser(acme.ID, storetest.RoleAgent, "agent@acme.io")
	token := a.login(t, "agent@acme.io", service.AudienceCompany)

	if code, _ := a.do(t, http.MethodGet, "/chats", token, nil, middleware.HeaderTenantSlug, "acme"); code != http.StatusOK {
		t.Fatalf("own tenant: %d", code)
	}
	if code, _ := a.do(t, http.MethodGet, "/chats", token, nil, middleware.HeaderTenantSlug, "globex"); code != http.StatusForbidden {
		t.Fatalf("foreign tenant: %d", code)
	}
	if code, _ := a.do(t, http.MethodGet, "/chats", token, nil, middleware.HeaderTenantSlug, "nobody"); code != http.StatusNotFound {
		t.Fatalf("unknown tenant: %d", code)
	}
}

func TestWidgetChatFlow(t *testing.T) {
	a := newApp(t)
	c := a.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	agentUser := a.store.AddUser(c.ID, storetest.RoleAgent, "agent@acme.io")
	agent := a.login(t, "agent@acme.io", service.AudienceCompany)

	code, body := a.do(t, http.MethodGet, "/widget/config/"+c.WidgetKey, "", nil)
	if code != http.StatusOK || body["widgetKey"] != c.WidgetKey {
		t.Fatalf("config: %d %v", code, body)
	}
	if code, _ := a.do(t, http.MethodGet, "/widget/config/widget_nope", "", nil); code != http.StatusNotFound {
		t.Fatalf("unknown widget: %d", code)
	}

	if code, _ := a.do(t, http.MethodPost, "/chats", "", map[string]string{"visitorName": "Ann"}); code != http.StatusBadRequest {
		t.Fatalf("missing widget key: %d", code)
	}
	code, body = a.do(t, http.MethodPost, "/chats", "", map[string]string{"visitorName": "Ann"},
		middleware.HeaderWidgetKey, c.WidgetKey)
	if code != http.StatusCreated || body["status"] != model.ChatPending {
		t.Fatalf("create chat: %d %v", code, body)
	}
	chatID := body["id"].(string)

	if code, _ := a.do(t, http.MethodPost, "/messages", agent,
		map[string]string{"chatId": chatID, "content": "hi", "senderType": "visitor"}); code != http.StatusBadRequest {
		t.Fatalf("agent posting as visitor: %d", code)
	}
	code, body = a.do(t, http.MethodPost, "/messages", agent, map[string]string{"chatId": chatID, "content": "hi there"})
	if code != http.StatusCreated || body["senderType"] != model.SenderAgent {
		t.Fatalf("agent message: %d %v", code, body)
	}
	code, body = a.do(t, http.MethodGet, "/messages/chat/"+chatID, agent, nil)
	if code != http.StatusOK || body["total"].(float64) != 1 {
		t.Fatalf("history: %d %v", code, body)
	}
	if code, body = a.do(t, http.MethodPost, "/messages/chat/"+chatID+"/read", agent, nil); code != http.StatusOK {
		t.Fatalf("mark read: %d %v", code, body)
	}

	code, body = a.do(t, http.MethodPost, "/chats/"+chatID+"/assign", agent, map[string]string{"agentId": agentUser.ID})
	if code != http.StatusOK || body["status"] != model.ChatAssigned {
		t.Fatalf("assign: %d %v", code, body)
	}
	if code, _ := a.do(t, http.MethodGet, "/chats/"+chatID+"/assignments", agent, nil); code != http.StatusOK {
		t.Fatalf("assignments: %d", code)
	}

	a.store.SetCompanyActive(c.ID, false)
	if code, _ := a.do(t, http.MethodPost, "/chats", "", map[string]string{"widgetKey": c.WidgetKey}); code != http.StatusForbidden {
		t.Fatalf("inactive company: %d", code)
	}
}
