package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/chatdesk/internal/presence"
	"github.com/iliyamo/chatdesk/internal/queue"
	"github.com/iliyamo/chatdesk/internal/service"
	"github.com/iliyamo/chatdesk/internal/storetest"
)

// recorder captures published events and company notifications.
type recorder struct {
	mu       sync.Mutex
	events   []queue.ChatEvent
	notified []string
}

func (r *recorder) Publish(_ context.Context, ev queue.ChatEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) NotifyCompany(companyID, event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, companyID+":"+event)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type env struct {
	store    *storetest.Store
	tracker  *presence.Tracker
	rec      *recorder
	plans    *service.PlanChecker
	perms    *service.PermissionEvaluator
	auth     *service.AuthService
	chats    *service.ChatService
	messages *service.MessageService
	users    *service.UserService
	roles    *service.RoleService
	depts    *service.DepartmentService
	widget   *service.WidgetService
	subs     *service.SubscriptionService
	stats    *service.AnalyticsService
}

func newEnv(t *testing.T) *env {
	return newEnvWithKV(t, presence.NewMemoryStore())
}

func newEnvWithKV(t *testing.T, kv presence.KV) *env {
	t.Helper()
	st := storetest.New()
	e := &env{store: st, tracker: presence.NewTracker(kv), rec: &recorder{}}
	e.plans = service.NewPlanChecker(st, st, st)
	e.perms = service.NewPermissionEvaluator(st, time.Minute)
	e.auth = service.NewAuthService(service.AuthConfig{
		JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4,
	}, st, st, st, st, st)
	e.chats = service.NewChatService(st, st, st, st, e.tracker, e.rec, e.rec)
	e.messages = service.NewMessageService(st, st, e.chats, e.rec)
	e.users = service.NewUserService(st, st, st, e.plans, 4)
	e.roles = service.NewRoleService(st, st, e.plans, e.perms)
	e.depts = service.NewDepartmentService(st, e.plans)
	e.widget = service.NewWidgetService(st, st, e.plans, e.tracker)
	e.subs = service.NewSubscriptionService(st, e.plans)
	e.stats = service.NewAnalyticsService(st, st, st, e.plans)
	return e
}

func wantKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("err = %v, want kind %v", err, kind)
	}
}

func ptr[T any](v T) *T { return &v }
