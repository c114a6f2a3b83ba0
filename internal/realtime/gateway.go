package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/logger"
	"github.com/iliyamo/chatdesk/internal/middleware"
	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/service"
)

const frameTimeout = 5 * time.Second

// WidgetResolver maps a widget key to its active company.
type WidgetResolver interface {
	ResolveWidgetKey(ctx context.Context, key string) (model.Company, error)
}

// ChatReader loads a chat scoped to a company.
type ChatReader interface {
	Get(ctx context.Context, companyID, id string) (model.Chat, error)
}

// MessageWriter persists chat messages.
type MessageWriter interface {
	Create(ctx context.Context, companyID string, in service.CreateMessageInput) (model.Message, error)
}

// Gateway upgrades GET /chat to a websocket and serves the chat protocol.
type Gateway struct {
	hub      *Hub
	auth     middleware.Authenticator
	widgets  WidgetResolver
	chats    ChatReader
	messages MessageWriter
	origins  []string
	log      *zap.Logger
}

func NewGateway(hub *Hub, auth middleware.Authenticator, widgets WidgetResolver, chats ChatReader,
	messages MessageWriter, origins []string, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{hub: hub, auth: auth, widgets: widgets, chats: chats, messages: messages,
		origins: origins, log: log.Named("gateway")}
}

// Handle authenticates before upgrading, so rejected connections get a
// plain HTTP 401.
func (g *Gateway) Handle(c echo.Context) error {
	r := c.Request()
	p, err := g.authenticate(r)
	if err != nil {
		return err
	}

	conn, err := websocket.Accept(c.Response(), r, &websocket.AcceptOptions{OriginPatterns: g.origins})
	if err != nil {
		// Accept has already written the response.
		g.log.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}

	log := logger.FromEcho(c).With(
		zap.String("kind", p.Kind.String()),
		zap.String(logger.CompanyIDKey, p.CompanyID),
	)
	ctx := logger.WithContext(r.Context(), log)
	g.Serve(ctx, conn, p)
	return nil
}

// Serve runs an upgraded connection until it closes.
func (g *Gateway) Serve(ctx context.Context, conn *websocket.Conn, p Principal) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := logger.FromContext(ctx)
	client := newClient(conn, p, log)
	g.hub.register(ctx, client)
	defer func() {
		// presence updates must outlive the request context
		g.hub.unregister(context.WithoutCancel(ctx), client)
		client.close(websocket.StatusNormalClosure, "")
	}()

	go client.writeLoop(ctx)
	g.send(client, Envelope{Event: EventReady, Data: readyData(p)})
	log.Info("realtime connection opened")

	for {
		var f Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Debug("realtime read ended", zap.Error(err))
			}
			log.Info("realtime connection closed")
			return
		}
		g.dispatch(ctx, client, f)
	}
}

func readyData(p Principal) map[string]string {
	m := map[string]string{"kind": p.Kind.String(), "companyId": p.CompanyID}
	if p.UserID != "" {
		m["userId"] = p.UserID
	}
	if p.VisitorID != "" {
		m["visitorId"] = p.VisitorID
	}
	return m
}

// authenticate resolves the connection principal: an access token makes an
// agent, a widget key a visitor.  An invalid token never falls back to the
// widget key.
func (g *Gateway) authenticate(r *http.Request) (Principal, error) {
	q := r.URL.Query()
	token := q.Get("token")
	if t, ok := middleware.BearerToken(r.Header.Get(echo.HeaderAuthorization)); ok {
		token = t
	}
	ctx, cancel := context.WithTimeout(r.Context(), frameTimeout)
	defer cancel()

	if token != "" {
		id, err := g.auth.Authenticate(ctx, token)
		if err != nil {
			return Principal{}, unauthorized("invalid or expired token")
		}
		return Principal{Kind: KindAgent, CompanyID: id.CompanyID, UserID: id.UserID}, nil
	}
	if key := q.Get("widgetKey"); key != "" {
		co, err := g.widgets.ResolveWidgetKey(ctx, key)
		if err != nil {
			return Principal{}, unauthorized("invalid widget key")
		}
		return Principal{Kind: KindVisitor, CompanyID: co.ID, VisitorID: strings.TrimSpace(q.Get("visitorId"))}, nil
	}
	return Principal{}, unauthorized("authentication required")
}

func unauthorized(msg string) error {
	return &service.Error{Kind: service.ErrUnauthorized, Message: msg}
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, f Frame) {
	ctx, cancel := context.WithTimeout(ctx, frameTimeout)
	defer cancel()

	var (
		result any
		err    error
	)
	switch f.Event {
	case EventJoinChat:
		result, err = g.joinChat(ctx, c, f.Data)
	case EventSendMessage:
		result, err = g.sendMessage(ctx, c, f.Data)
	case EventTyping:
		result, err = g.typing(ctx, c, f.Data)
	default:
		err = &service.Error{Kind: service.ErrBadRequest, Message: "unknown event " + f.Event}
	}
	if f.ID == "" {
		return
	}
	ack := Envelope{ID: f.ID, Event: EventAck, Data: result}
	if err != nil {
		ack.Data = nil
		ack.Error = g.reason(ctx, f.Event, err)
	}
	g.send(c, ack)
}

// reason turns err into an ack error.  Internal failures are logged and
// reported generically.
func (g *Gateway) reason(ctx context.Context, event string, err error) string {
	var se *service.Error
	if errors.As(err, &se) {
		return se.Message
	}
	logger.FromContext(ctx).Error("realtime event failed", zap.String("event", event), zap.Error(err))
	return "internal error"
}

func (g *Gateway) send(c *Client, env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		c.log.Error("encode frame", zap.Error(err))
		return
	}
	if !c.enqueue(b) {
		go c.close(websocket.StatusPolicyViolation, "slow consumer")
	}
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return &service.Error{Kind: service.ErrBadRequest, Message: "data is required"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &service.Error{Kind: service.ErrBadRequest, Message: "malformed data"}
	}
	return nil
}

// chat loads a chat the connection may act on: same company, and for a
// visitor who identified themselves, their own chat.
func (g *Gateway) chat(ctx context.Context, c *Client, chatID string) (model.Chat, error) {
	if chatID == "" {
		return model.Chat{}, &service.Error{Kind: service.ErrBadRequest, Message: "chatId is required"}
	}
	chat, err := g.chats.Get(ctx, c.CompanyID, chatID)
	if err != nil {
		return chat, err
	}
	if c.Kind == KindVisitor && c.VisitorID != "" && chat.VisitorID != c.VisitorID {
		return model.Chat{}, &service.Error{Kind: service.ErrForbidden, Message: "chat belongs to another visitor"}
	}
	return chat, nil
}

func (g *Gateway) joinChat(ctx context.Context, c *Client, raw json.RawMessage) (any, error) {
	var in joinChatData
	if err := decode(raw, &in); err != nil {
		return nil, err
	}
	chat, err := g.chat(ctx, c, in.ChatID)
	if err != nil {
		return nil, err
	}
	g.hub.join(c, ChatRoom(chat.ID))
	return map[string]string{"chatId": chat.ID}, nil
}

func (g *Gateway) sendMessage(ctx context.Context, c *Client, raw json.RawMessage) (any, error) {
	var in sendMessageData
	if err := decode(raw, &in); err != nil {
		return nil, err
	}
	chat, err := g.chat(ctx, c, in.ChatID)
	if err != nil {
		return nil, err
	}
	msg := service.CreateMessageInput{
		ChatID:      chat.ID,
		Content:     in.Content,
		MessageType: in.MessageType,
		SenderType:  c.Kind.senderType(),
	}
	if c.Kind == KindAgent {
		msg.SenderID = c.UserID
	} else if c.VisitorID != "" {
		msg.Metadata = model.JSONMap{"visitorId": c.VisitorID}
	}
	return g.hub.PostMessage(chat.ID, func() (model.Message, error) {
		return g.messages.Create(ctx, c.CompanyID, msg)
	})
}

func (g *Gateway) typing(ctx context.Context, c *Client, raw json.RawMessage) (any, error) {
	var in typingData
	if err := decode(raw, &in); err != nil {
		return nil, err
	}
	chat, err := g.chat(ctx, c, in.ChatID)
	if err != nil {
		return nil, err
	}
	ev := TypingEvent{ChatID: chat.ID, IsTyping: in.IsTyping, SenderType: c.Kind.senderType()}
	if c.Kind == KindAgent {
		ev.SenderID = c.UserID
	} else {
		ev.SenderID = c.VisitorID
	}
	g.hub.broadcast(ChatRoom(chat.ID), Envelope{Event: EventTyping, Data: ev}, func(m *Client) bool {
		return m != c
	})
	return map[string]bool{"ok": true}, nil
}
