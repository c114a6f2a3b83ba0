package realtime

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/metrics"
	"github.com/iliyamo/chatdesk/internal/model"
	"github.com/iliyamo/chatdesk/internal/service"
)

const chatLockStripes = 256

// Hub tracks connections and room membership for this process.  It also
// maintains agent presence: an agent is online while at least one of their
// connections is open.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	agents  map[string]int // companyID/userID -> open connections

	chatLocks [chatLockStripes]sync.Mutex

	presence service.Presence
	log      *zap.Logger
}

func NewHub(presence service.Presence, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[string]map[*Client]struct{}),
		clients:  make(map[*Client]struct{}),
		agents:   make(map[string]int),
		presence: presence,
		log:      log.Named("realtime"),
	}
}

// register adds c to its company room and marks agents online.
func (h *Hub) register(ctx context.Context, c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.joinLocked(c, CompanyRoom(c.CompanyID))
	first := false
	if c.Kind == KindAgent {
		key := c.CompanyID + "/" + c.UserID
		h.agents[key]++
		first = h.agents[key] == 1
	}
	h.mu.Unlock()

	metrics.RealtimeConnections.WithLabelValues(c.Kind.String()).Inc()
	if first && h.presence != nil {
		h.presence.MarkOnline(ctx, c.CompanyID, c.UserID)
	}
}

// unregister removes c from every room.  The last connection of an agent
// marks them offline.
func (h *Hub) unregister(ctx context.Context, c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	last := false
	if c.Kind == KindAgent {
		key := c.CompanyID + "/" + c.UserID
		h.agents[key]--
		if h.agents[key] <= 0 {
			delete(h.agents, key)
			last = true
		}
	}
	h.mu.Unlock()

	metrics.RealtimeConnections.WithLabelValues(c.Kind.String()).Dec()
	if last && h.presence != nil {
		h.presence.MarkOffline(ctx, c.CompanyID, c.UserID)
	}
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	h.joinLocked(c, room)
	h.mu.Unlock()
}

func (h *Hub) joinLocked(c *Client, room string) {
	members := h.rooms[room]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members := h.rooms[room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize reports how many connections are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// broadcast sends an event to every member of room accepted by keep.
// Members whose buffer is full are disconnected.
func (h *Hub) broadcast(room string, env Envelope, keep func(*Client) bool) {
	b, err := json.Marshal(env)
	if err != nil {
		h.log.Error("encode broadcast", zap.String("event", env.Event), zap.Error(err))
		return
	}
	var slow []*Client
	h.mu.RLock()
	for c := range h.rooms[room] {
		if keep != nil && !keep(c) {
			continue
		}
		if !c.enqueue(b) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow consumer", zap.String("room", room), zap.String("kind", c.Kind.String()))
		go c.close(websocket.StatusPolicyViolation, "slow consumer")
	}
}

// BroadcastChat sends an event to everyone in a chat room.
func (h *Hub) BroadcastChat(chatID, event string, data any) {
	h.broadcast(ChatRoom(chatID), Envelope{Event: event, Data: data}, nil)
}

// NotifyCompany pushes a server event to the company's connected agents.
// Visitors share the company room but never see these events.
func (h *Hub) NotifyCompany(companyID, event string, data any) {
	h.broadcast(CompanyRoom(companyID), Envelope{Event: event, Data: data}, func(c *Client) bool {
		return c.Kind == KindAgent
	})
}

func (h *Hub) chatLock(chatID string) *sync.Mutex {
	f := fnv.New32a()
	_, _ = f.Write([]byte(chatID))
	return &h.chatLocks[f.Sum32()%chatLockStripes]
}

// PostMessage runs create under the chat's lock and broadcasts the stored
// message to the chat room before releasing it, so room members observe
// messages in persistence order.
func (h *Hub) PostMessage(chatID string, create func() (model.Message, error)) (model.Message, error) {
	mu := h.chatLock(chatID)
	mu.Lock()
	defer mu.Unlock()
	m, err := create()
	if err != nil {
		return m, err
	}
	h.BroadcastChat(chatID, EventNewMessage, m)
	return m, nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		all = append(all, c)
	}
	h.mu.RUnlock()
	var wg sync.WaitGroup
	for _, c := range all {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			c.close(websocket.StatusGoingAway, "server shutting down")
		}(c)
	}
	wg.Wait()
}
