package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/config"
	"github.com/iliyamo/chatdesk/internal/logger"
	"github.com/iliyamo/chatdesk/internal/service"
)

type stubAuth struct {
	id  service.Identity
	err error
}

func (s stubAuth) Authenticate(_ context.Context, bearer string) (service.Identity, error) {
	if bearer != "good" {
		return service.Identity{}, &service.Error{Kind: service.ErrUnauthorized, Message: "bad token"}
	}
	return s.id, s.err
}

func newCtx(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func ok(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestBearerToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := BearerToken(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("BearerToken(%q) = %q, %v", tc.in, got, ok)
		}
	}
}

func TestJWTAuthSetsIdentity(t *testing.T) {
	want := service.Identity{UserID: "u1", CompanyID: "c1", RoleName: "agent"}
	mw := JWTAuth(stubAuth{id: want})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c, _ := newCtx(req)
	if err := mw(ok)(c); !errors.Is(err, service.ErrUnauthorized) {
		t.Fatalf("missing token: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good")
	c, _ = newCtx(req)
	if err := mw(ok)(c); err != nil {
		t.Fatal(err)
	}
	got, found := IdentityFrom(c)
	if !found || got != want {
		t.Fatalf("identity = %+v, %v", got, found)
	}
	if CompanyID(c) != "c1" {
		t.Fatalf("company = %q", CompanyID(c))
	}
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole("super_admin")

	c, _ := newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	setIdentity(c, service.Identity{UserID: "u1", RoleName: "agent"})
	if err := mw(ok)(c); !errors.Is(err, service.ErrForbidden) {
		t.Fatalf("agent: %v", err)
	}

	c, _ = newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	setIdentity(c, service.Identity{UserID: "u2", RoleName: "super_admin"})
	if err := mw(ok)(c); err != nil {
		t.Fatalf("super admin: %v", err)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	mw := RequestID(zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "rid-1")
	c, rec := newCtx(req)
	var inner *zap.Logger
	err := mw(func(c echo.Context) error {
		inner = logger.FromContext(c.Request().Context())
		return nil
	})(c)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Header().Get(echo.HeaderXRequestID) != "rid-1" {
		t.Fatalf("header = %q", rec.Header().Get(echo.HeaderXRequestID))
	}
	if inner == nil || inner != logger.FromEcho(c) {
		t.Fatal("request logger not installed")
	}

	c, rec = newCtx(httptest.NewRequest(http.MethodGet, "/", nil))
	if err := mw(ok)(c); err != nil {
		t.Fatal(err)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatal("no generated request id")
	}
}

func TestRateKeyStrategies(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/chats", nil)
	req.Header.Set(HeaderWidgetKey, "widget_1")
	req.RemoteAddr = "10.0.0.9:5555"
	c, _ := newCtx(req)

	cases := map[string]string{
		"ip":        "rl:chat:ip:10.0.0.9",
		"widget":    "rl:chat:widget:widget_1",
		"widget_ip": "rl:chat:widget:widget_1:ip:10.0.0.9",
		"":          "rl:chat:widget:widget_1:ip:10.0.0.9",
	}
	for strategy, want := range cases {
		got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, "chat", c)
		if got != want {
			t.Errorf("%q: got %q want %q", strategy, got, want)
		}
	}

	c, _ = newCtx(httptest.NewRequest(http.MethodGet, "/widget/online-agents?widgetKey=widget_2", nil))
	if got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "widget"}, "read", c); got != "rl:read:widget:widget_2" {
		t.Errorf("query key: got %q", got)
	}
}

func TestWidgetLimiterWithoutRedisPassesThrough(t *testing.T) {
	mw := NewWidgetLimiter(config.RateLimitConfig{Enabled: true}, nil)
	c, rec := newCtx(httptest.NewRequest(http.MethodPost, "/chats", nil))
	if err := mw(ok)(c); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("err=%v code=%d", err, rec.Code)
	}
}
