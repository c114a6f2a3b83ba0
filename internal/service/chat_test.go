package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/presence"
	"github.com/iliyamo/chatdesk/internal/queue"
	"github.com/iliyamo/chatdesk/internal/service"
	"github.com/iliyamo/chatdesk/internal/storetest"
)

func TestCreateChatQueuesAndDefaults(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)

	d, err := e.chats.Create(ctx, c.ID, service.CreateChatInput{VisitorName: "Ann"})
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != model.ChatPending || d.Priority != "normal" || d.Assignment != nil || d.MessageCount != 0 {
		t.Fatalf("unexpected chat %+v", d)
	}
	if len(d.VisitorID) < len("visitor_") || d.VisitorID[:8] != "visitor_" {
		t.Fatalf("visitor id = %q", d.VisitorID)
	}
	if got := e.tracker.QueuedChatIDs(ctx, c.ID); len(got) != 1 || got[0] != d.ID {
		t.Fatalf("queue = %v", got)
	}
	if got := e.rec.types(); len(got) != 1 || got[0] != queue.EventChatCreated {
		t.Fatalf("events = %v", got)
	}
}

func TestCreateChatChecksDepartment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	acme := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	globex := e.store.AddCompany("globex", "plan-basic", model.SubscriptionActive)
	other := e.store.AddDepartment(globex.ID, "Sales")

	_, err := e.chats.Create(ctx, acme.ID, service.CreateChatInput{DepartmentID: other.ID})
	wantKind(t, err, service.ErrForbidden)
	_, err = e.chats.Create(ctx, acme.ID, service.CreateChatInput{DepartmentID: "missing"})
	wantKind(t, err, service.ErrNotFound)
}

func TestChatIsolation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	acme := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	globex := e.store.AddCompany("globex", "plan-basic", model.SubscriptionActive)
	d, _ := e.chats.Create(ctx, acme.ID, service.CreateChatInput{})

	_, err := e.chats.FindOne(ctx, globex.ID, d.ID)
	wantKind(t, err, service.ErrForbidden)
	_, err = e.chats.FindOne(ctx, acme.ID, "no-such-chat")
	wantKind(t, err, service.ErrNotFound)
	_, err = e.messages.Create(ctx, globex.ID, service.CreateMessageInput{ChatID: d.ID, Content: "hi"})
	wantKind(t, err, service.ErrForbidden)

	page, err := e.chats.FindAll(ctx, globex.ID, service.ChatFilter{})
	if err != nil || page.Total != 0 {
		t.Fatalf("other tenant sees %d chats, err %v", page.Total, err)
	}
}

func TestUpdateChat(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	d, _ := e.chats.Create(ctx, c.ID, service.CreateChatInput{})

	_, err := e.chats.Update(ctx, c.ID, d.ID, service.UpdateChatInput{Status: ptr("archived")})
	wantKind(t, err, service.ErrBadRequest)
	_, err = e.chats.Update(ctx, c.ID, d.ID, service.UpdateChatInput{Rating: ptr(6)})
	wantKind(t, err, service.ErrBadRequest)

	closed, err := e.chats.Update(ctx, c.ID, d.ID, service.UpdateChatInput{Status: ptr(model.ChatClosed), Rating: ptr(5)})
	if err != nil {
		t.Fatal(err)
	}
	if closed.ClosedAt == nil || *closed.Rating != 5 {
		t.Fatalf("closed chat = %+v", closed)
	}
	if got := e.tracker.QueuedChatIDs(ctx, c.ID); len(got) != 0 {
		t.Fatalf("closed chat still queued: %v", got)
	}
	stamp := *closed.ClosedAt
	again, err := e.chats.Update(ctx, c.ID, d.ID, service.UpdateChatInput{Status: ptr(model.ChatClosed)})
	if err != nil || !again.ClosedAt.Equal(stamp) {
		t.Fatalf("closing twice moved closedAt: %v, %v", again.ClosedAt, err)
	}
	_, err = e.messages.Create(ctx, c.ID, service.CreateMessageInput{ChatID: d.ID, Content: "late"})
	wantKind(t, err, service.ErrConflict)
}

func TestConcurrentAssignLeavesOneActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-pro", model.SubscriptionActive)
	d, _ := e.chats.Create(ctx, c.ID, service.CreateChatInput{})
	var agents []model.User
	for _, email := range []string{"a@acme.io", "b@acme.io", "c@acme.io", "d@acme.io"} {
		agents = append(agents, e.store.AddUser(c.ID, storetest.RoleAgent, email))
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(a model.User) {
			defer wg.Done()
			if _, err := e.chats.Assign(ctx, c.ID, d.ID, a.ID, ""); err != nil {
				t.Errorf("assign: %v", err)
			}
		}(agents[i%len(agents)])
	}
	wg.Wait()

	if n := e.store.ActiveAssignmentCount(d.ID); n != 1 {
		t.Fatalf("active assignments = %d, want 1", n)
	}
	hist, _ := e.chats.Assignments(ctx, c.ID, d.ID)
	if len(hist) != 20 {
		t.Fatalf("history = %d rows, want 20", len(hist))
	}
	for _, a := range hist {
		if !a.IsActive && a.UnassignedAt == nil {
			t.Fatalf("inactive assignment %s without unassignedAt", a.ID)
		}
	}
	got, _ := e.chats.FindOne(ctx, c.ID, d.ID)
	if got.Status != model.ChatAssigned || got.Assignment == nil {
		t.Fatalf("chat after assign = %+v", got)
	}
	if q := e.tracker.QueuedChatIDs(ctx, c.ID); len(q) != 0 {
		t.Fatalf("assigned chat still queued: %v", q)
	}
}

func TestAssignRejectsForeignAgent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	acme := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	globex := e.store.AddCompany("globex", "plan-basic", model.SubscriptionActive)
	outsider := e.store.AddUser(globex.ID, storetest.RoleAgent, "x@globex.io")
	d, _ := e.chats.Create(ctx, acme.ID, service.CreateChatInput{})

	_, err := e.chats.Assign(ctx, acme.ID, d.ID, outsider.ID, "")
	wantKind(t, err, service.ErrNotFound)
	if n := e.store.ActiveAssignmentCount(d.ID); n != 0 {
		t.Fatalf("foreign agent got assigned")
	}
}

func TestQueueReconcilesWithDatabase(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	first, _ := e.chats.Create(ctx, c.ID, service.CreateChatInput{})
	second, _ := e.chats.Create(ctx, c.ID, service.CreateChatInput{})

	// the index names a chat the database no longer considers pending
	e.tracker.Enqueue(ctx, c.ID, "ghost")

	got, err := e.chats.Queue(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("queue = %v, want oldest first", got)
	}
	if ids := e.tracker.QueuedChatIDs(ctx, c.ID); len(ids) != 2 {
		t.Fatalf("stale id not removed: %v", ids)
	}
}

func TestVisitorMessageActivatesPendingChat(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	agent := e.store.AddUser(c.ID, storetest.RoleAgent, "a@acme.io")
	d, _ := e.chats.Create(ctx, c.ID, service.CreateChatInput{})

	m, err := e.messages.Create(ctx, c.ID, service.CreateMessageInput{ChatID: d.ID, Content: " hello "})
	if err != nil {
		t.Fatal(err)
	}
	if m.SenderType != model.SenderVisitor || m.MessageType != "text" || m.Content != "hello" {
		t.Fatalf("message = %+v", m)
	}
	chat, _ := e.chats.Get(ctx, c.ID, d.ID)
	if chat.Status != model.ChatActive {
		t.Fatalf("status = %s, want active", chat.Status)
	}

	reply, err := e.messages.Create(ctx, c.ID, service.CreateMessageInput{ChatID: d.ID, Content: "hi", SenderID: agent.ID})
	if err != nil || reply.SenderType != model.SenderAgent {
		t.Fatalf("agent reply = %+v, %v", reply, err)
	}
	_, err = e.messages.Create(ctx, c.ID, service.CreateMessageInput{ChatID: d.ID, Content: " "})
	wantKind(t, err, service.ErrBadRequest)

	n, err := e.messages.MarkAsRead(ctx, c.ID, d.ID, agent.ID)
	if err != nil || n != 1 {
		t.Fatalf("marked %d, err %v; want 1", n, err)
	}
	page, err := e.messages.ListByChat(ctx, c.ID, d.ID, service.Paging{})
	if err != nil || page.Total != 2 || page.Data[0].ID != m.ID {
		t.Fatalf("history = %+v, %v", page, err)
	}
}

func TestChatsSurviveUnavailablePresence(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	kv := presence.NewRedisStore(rdb, nil, presence.Options{MaxRetries: 1, BaseBackoff: 5 * time.Millisecond})
	kv.Start(ctx)

	e := newEnvWithKV(t, kv)
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)

	d, err := e.chats.Create(ctx, c.ID, service.CreateChatInput{})
	if err != nil {
		t.Fatalf("create with presence down: %v", err)
	}
	q, err := e.chats.Queue(ctx, c.ID)
	if err != nil || len(q) != 0 {
		t.Fatalf("queue with presence down = %v, %v", q, err)
	}
	if _, err := e.chats.FindOne(ctx, c.ID, d.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.messages.Create(ctx, c.ID, service.CreateMessageInput{ChatID: d.ID, Content: "anyone there?"}); err != nil {
		t.Fatalf("message with presence down: %v", err)
	}
	if chat, _ := e.chats.Get(ctx, c.ID, d.ID); chat.Status != model.ChatActive {
		t.Fatalf("status = %s, want active", chat.Status)
	}
	agents, err := e.widget.OnlineAgents(ctx, c.WidgetKey)
	if err != nil || len(agents) != 0 {
		t.Fatalf("online agents = %v, %v", agents, err)
	}
}

// gatedChats holds UpdateChat until released so another writer can run
// between the service's read and the store's write.
type gatedChats struct {
	*storetest.Store
	entered chan struct{}
	release chan struct{}
}

func (g *gatedChats) UpdateChat(ctx context.Context, companyID, id string, apply func(*model.Chat) error) (model.Chat, error) {
	close(g.entered)
	<-g.release
	return g.Store.UpdateChat(ctx, companyID, id, apply)
}

func TestUpdateKeepsConcurrentStatusChange(t *testing.T) {
	cases := []struct {
		name string
		race func(e *env, chats *service.ChatService, companyID, chatID, agentID string) error
		want string
	}{
		{"assign", func(e *env, chats *service.ChatService, companyID, chatID, agentID string) error {
			_, err := chats.Assign(context.Background(), companyID, chatID, agentID, "")
			return err
		}, model.ChatAssigned},
		{"first visitor message", func(e *env, chats *service.ChatService, companyID, chatID, _ string) error {
			return chats.MarkActive(context.Background(), companyID, chatID)
		}, model.ChatActive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
			agent := e.store.AddUser(c.ID, storetest.RoleAgent, "a@acme.io")
			gate := &gatedChats{Store: e.store, entered: make(chan struct{}), release: make(chan struct{})}
			chats := service.NewChatService(gate, e.store, e.store, e.store, e.tracker, e.rec, e.rec)
			d, err := chats.Create(ctx, c.ID, service.CreateChatInput{})
			if err != nil {
				t.Fatal(err)
			}

			done := make(chan error, 1)
			go func() {
				_, err := chats.Update(ctx, c.ID, d.ID, service.UpdateChatInput{Rating: ptr(4)})
				done <- err
			}()
			<-gate.entered
			if err := tc.race(e, chats, c.ID, d.ID, agent.ID); err != nil {
				t.Fatal(err)
			}
			close(gate.release)
			if err := <-done; err != nil {
				t.Fatal(err)
			}

			got, _ := chats.Get(ctx, c.ID, d.ID)
			if got.Status != tc.want || got.Rating == nil || *got.Rating != 4 {
				t.Fatalf("chat = status %s rating %v, want %s and 4", got.Status, got.Rating, tc.want)
			}
			if q := e.tracker.QueuedChatIDs(ctx, c.ID); len(q) != 0 {
				t.Fatalf("chat back in queue: %v", q)
			}
		})
	}
}

func TestUserSenderCannotPostAsVisitor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	agent := e.store.AddUser(c.ID, storetest.RoleAgent, "a@acme.io")
	d, _ := e.chats.Create(ctx, c.ID, service.CreateChatInput{})

	_, err := e.messages.Create(ctx, c.ID, service.CreateMessageInput{
		ChatID: d.ID, Content: "hi", SenderType: model.SenderVisitor, SenderID: agent.ID,
	})
	wantKind(t, err, service.ErrBadRequest)
	if chat, _ := e.chats.Get(ctx, c.ID, d.ID); chat.Status != model.ChatPending {
		t.Fatalf("status = %s, want pending", chat.Status)
	}
	if page, _ := e.messages.ListByChat(ctx, c.ID, d.ID, service.Paging{}); page.Total != 0 {
		t.Fatalf("stored %d messages", page.Total)
	}
}

func TestHistoryPagesFromNewest(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	c := e.store.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	d, _ := e.chats.Create(ctx, c.ID, service.CreateChatInput{})
	var ids []string
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		m, err := e.messages.Create(ctx, c.ID, service.CreateMessageInput{ChatID: d.ID, Content: text})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, m.ID)
	}

	cases := []struct {
		page int
		want []string
	}{
		{1, ids[3:]},
		{2, ids[1:3]},
		{3, ids[:1]},
	}
	for _, tc := range cases {
		page, err := e.messages.ListByChat(ctx, c.ID, d.ID, service.Paging{Page: tc.page, Limit: 2})
		if err != nil {
			t.Fatal(err)
		}
		if page.Total != 5 || len(page.Data) != len(tc.want) {
			t.Fatalf("page %d = %+v", tc.page, page)
		}
		for i, m := range page.Data {
			if m.ID != tc.want[i] {
				t.Errorf("page %d item %d = %s, want %s", tc.page, i, m.Content, tc.want[i])
			}
		}
	}
}
