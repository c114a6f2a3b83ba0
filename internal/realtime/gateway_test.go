package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/handler"
	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/presence"
	"github.com/iliyamo/chatdesk/internal/realtime"
	"github.com/iliyamo/chatdesk/internal/service"
	"github.com/iliyamo/chatdesk/internal/storetest"
)

type fixture struct {
	store   *storetest.Store
	tracker *presence.Tracker
	hub     *realtime.Hub
	auth    *service.AuthService
	chats   *service.ChatService
	srv     *httptest.Server
	company model.Company
	token   string
	agentID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.New()
	f := &fixture{store: st, tracker: presence.NewTracker(presence.NewMemoryStore())}
	f.hub = realtime.NewHub(f.tracker, nil)

	plans := service.NewPlanChecker(st, st, st)
	f.auth = service.NewAuthService(service.AuthConfig{
		JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4,
	}, st, st, st, st, st)
	f.chats = service.NewChatService(st, st, st, st, f.tracker, nil, f.hub)
	messages := service.NewMessageService(st, st, f.chats, nil)
	widget := service.NewWidgetService(st, st, plans, f.tracker)
	gw := realtime.NewGateway(f.hub, f.auth, widget, f.chats, messages, []string{"*"}, nil)

	f.company = st.AddCompany("acme", "plan-basic", model.SubscriptionActive)
	agent := st.AddUser(f.company.ID, storetest.RoleAgent, "agent@acme.io")
	f.agentID = agent.ID
	res, err := f.auth.Login(context.Background(), "agent@acme.io", storetest.Password, service.AudienceCompany)
	if err != nil {
		t.Fatal(err)
	}
	f.token = res.Tokens.AccessToken

	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.GET("/chat", gw.Handle)
	f.srv = httptest.NewServer(e)
	t.Cleanup(func() {
		f.hub.Close()
		f.srv.Close()
	})
	return f
}

// dial connects and consumes the ready frame.
func (f *fixture) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/chat?" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	if env := read(t, conn); env.Event != realtime.EventReady {
		t.Fatalf("first frame = %+v", env)
	}
	return conn
}

type inbound struct {
	ID    string          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func read(t *testing.T, conn *websocket.Conn) inbound {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var env inbound
	if err := wsjson.Read(ctx, conn, &env); err != nil {
		t.Fatal(err)
	}
	return env
}

// readUntil skips frames until one with the given event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) inbound {
	t.Helper()
	for i := 0; i < 10; i++ {
		if env := read(t, conn); env.Event == event {
			return env
		}
	}
	t.Fatalf("no %s frame", event)
	return inbound{}
}

func call(t *testing.T, conn *websocket.Conn, id, event string, data any) inbound {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, map[string]any{"id": id, "event": event, "data": data}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		env := read(t, conn)
		if env.Event == realtime.EventAck && env.ID == id {
			return env
		}
	}
	t.Fatalf("no ack for %s", id)
	return inbound{}
}

func TestRejectsUnauthenticatedUpgrade(t *testing.T) {
	f := newFixture(t)
	for _, q := range []string{"", "token=garbage", "widgetKey=widget_unknown"} {
		resp, err := http.Get(f.srv.URL + "/chat?" + q)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("query %q: status = %d, want 401", q, resp.StatusCode)
		}
	}
}

func TestVisitorAndAgentExchangeMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat, err := f.chats.Create(ctx, f.company.ID, service.CreateChatInput{VisitorID: "v-1"})
	if err != nil {
		t.Fatal(err)
	}

	agent := f.dial(t, "token="+f.token)
	visitor := f.dial(t, "widgetKey="+f.company.WidgetKey+"&visitorId=v-1")

	if !f.tracker.IsOnline(ctx, f.company.ID, f.agentID) {
		t.Fatal("agent should be online")
	}
	if ack := call(t, agent, "1", realtime.EventJoinChat, map[string]string{"chatId": chat.ID}); ack.Error != "" {
		t.Fatalf("agent join: %s", ack.Error)
	}
	if ack := call(t, visitor, "2", realtime.EventJoinChat, map[string]string{"chatId": chat.ID}); ack.Error != "" {
		t.Fatalf("visitor join: %s", ack.Error)
	}

	ack := call(t, visitor, "3", realtime.EventSendMessage, map[string]string{"chatId": chat.ID, "content": "hello"})
	if ack.Error != "" {
		t.Fatalf("send: %s", ack.Error)
	}
	var stored model.Message
	if err := json.Unmarshal(ack.Data, &stored); err != nil {
		t.Fatal(err)
	}
	if stored.SenderType != model.SenderVisitor || stored.Content != "hello" {
		t.Fatalf("stored = %+v", stored)
	}

	got := readUntil(t, agent, realtime.EventNewMessage)
	var pushed model.Message
	if err := json.Unmarshal(got.Data, &pushed); err != nil {
		t.Fatal(err)
	}
	if pushed.ID != stored.ID {
		t.Fatalf("pushed %s, stored %s", pushed.ID, stored.ID)
	}

	c, err := f.chats.Get(ctx, f.company.ID, chat.ID)
	if err != nil || c.Status != model.ChatActive {
		t.Fatalf("chat status = %s, %v", c.Status, err)
	}
}

func TestTypingReachesOthersOnly(t *testing.T) {
	f := newFixture(t)
	chat, _ := f.chats.Create(context.Background(), f.company.ID, service.CreateChatInput{VisitorID: "v-1"})
	agent := f.dial(t, "token="+f.token)
	visitor := f.dial(t, "widgetKey="+f.company.WidgetKey+"&visitorId=v-1")
	call(t, agent, "1", realtime.EventJoinChat, map[string]string{"chatId": chat.ID})
	call(t, visitor, "2", realtime.EventJoinChat, map[string]string{"chatId": chat.ID})

	// the sender's next frame is the ack, not its own typing event
	ack := call(t, visitor, "3", realtime.EventTyping, map[string]any{"chatId": chat.ID, "isTyping": true})
	if ack.Error != "" {
		t.Fatal(ack.Error)
	}
	got := readUntil(t, agent, realtime.EventTyping)
	var ev realtime.TypingEvent
	if err := json.Unmarshal(got.Data, &ev); err != nil {
		t.Fatal(err)
	}
	if !ev.IsTyping || ev.SenderType != model.SenderVisitor || ev.SenderID != "v-1" {
		t.Fatalf("typing = %+v", ev)
	}
}

func TestChatIsolationOnSocket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	globex := f.store.AddCompany("globex", "plan-basic", model.SubscriptionActive)
	foreign, _ := f.chats.Create(ctx, globex.ID, service.CreateChatInput{})
	mine, _ := f.chats.Create(ctx, f.company.ID, service.CreateChatInput{VisitorID: "v-2"})

	agent := f.dial(t, "token="+f.token)
	if ack := call(t, agent, "1", realtime.EventJoinChat, map[string]string{"chatId": foreign.ID}); ack.Error == "" {
		t.Fatal("joined a foreign company's chat")
	}
	if ack := call(t, agent, "2", realtime.EventSendMessage, map[string]string{"chatId": foreign.ID, "content": "x"}); ack.Error == "" {
		t.Fatal("wrote to a foreign company's chat")
	}

	visitor := f.dial(t, "widgetKey="+f.company.WidgetKey+"&visitorId=v-1")
	if ack := call(t, visitor, "3", realtime.EventJoinChat, map[string]string{"chatId": mine.ID}); ack.Error == "" {
		t.Fatal("visitor joined another visitor's chat")
	}
	if ack := call(t, visitor, "4", "dance", nil); ack.Error == "" {
		t.Fatal("unknown event accepted")
	}
}

func TestCompanyNotificationsSkipVisitors(t *testing.T) {
	f := newFixture(t)
	agent := f.dial(t, "token="+f.token)
	visitor := f.dial(t, "widgetKey="+f.company.WidgetKey)

	chat, err := f.chats.Create(context.Background(), f.company.ID, service.CreateChatInput{})
	if err != nil {
		t.Fatal(err)
	}
	got := readUntil(t, agent, "chat_queued")
	if !strings.Contains(string(got.Data), chat.ID) {
		t.Fatalf("notification = %s", got.Data)
	}
	// nothing is pending for the visitor, so its next frame is the ack
	ack := call(t, visitor, "1", realtime.EventTyping, map[string]any{"chatId": chat.ID})
	if ack.Error != "" {
		t.Fatal(ack.Error)
	}
}

func TestAgentGoesOfflineWithLastConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.dial(t, "token="+f.token)
	second := f.dial(t, "token="+f.token)

	first.Close(websocket.StatusNormalClosure, "")
	time.Sleep(100 * time.Millisecond)
	if !f.tracker.IsOnline(ctx, f.company.ID, f.agentID) {
		t.Fatal("agent with an open connection went offline")
	}

	second.Close(websocket.StatusNormalClosure, "")
	deadline := time.Now().Add(3 * time.Second)
	for f.tracker.IsOnline(ctx, f.company.ID, f.agentID) {
		if time.Now().After(deadline) {
			t.Fatal("agent still online after disconnecting")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
