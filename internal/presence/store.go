// Package presence tracks online agents and the pending-chat queue of every
// company in an ephemeral key/set store.  The store is an index, never the
// source of truth: callers reconcile what it returns against the database,
// and every operation degrades to an empty result when the backend is down.
package presence

import (
	"context"
	"time"
)

// State is the connection state of a backing store.
type State int32

const (
	Disconnected State = iota
	Connecting
	Ready
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	}
	return "disconnected"
}

// KV is the primitive key/set interface of a presence backend.  No method
// returns an error: unavailable backends answer with zero values.
type KV interface {
	Get(ctx context.Context, key string) string
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Del(ctx context.Context, keys ...string)
	SAdd(ctx context.Context, key string, members ...string)
	SRem(ctx context.Context, key string, members ...string)
	SMembers(ctx context.Context, key string) []string
	SIsMember(ctx context.Context, key, member string) bool
	SCard(ctx context.Context, key string) int64
	State() State
}

// QueueKey is the set of pending chat ids of a company.
func QueueKey(companyID string) string { return "chat:queue:" + companyID }

// OnlineKey is the set of online agent ids of a company.
func OnlineKey(companyID string) string { return "online:" + companyID }

// Tracker exposes the domain operations on top of a KV backend.
type Tracker struct {
	kv KV
}

func NewTracker(kv KV) *Tracker { return &Tracker{kv: kv} }

// Enqueue adds a chat to its company's pending queue.
func (t *Tracker) Enqueue(ctx context.Context, companyID, chatID string) {
	t.kv.SAdd(ctx, QueueKey(companyID), chatID)
}

// Dequeue removes chat ids from the company's pending queue.
func (t *Tracker) Dequeue(ctx context.Context, companyID string, chatIDs ...string) {
	if len(chatIDs) == 0 {
		return
	}
	t.kv.SRem(ctx, QueueKey(companyID), chatIDs...)
}

// QueuedChatIDs lists the queue members.  Order is unspecified.
func (t *Tracker) QueuedChatIDs(ctx context.Context, companyID string) []string {
	return t.kv.SMembers(ctx, QueueKey(companyID))
}

// MarkOnline records an agent as present.
func (t *Tracker) MarkOnline(ctx context.Context, companyID, userID string) {
	t.kv.SAdd(ctx, OnlineKey(companyID), userID)
}

// MarkOffline removes an agent's presence.
func (t *Tracker) MarkOffline(ctx context.Context, companyID, userID string) {
	t.kv.SRem(ctx, OnlineKey(companyID), userID)
}

// OnlineUserIDs lists the agents currently present.
func (t *Tracker) OnlineUserIDs(ctx context.Context, companyID string) []string {
	return t.kv.SMembers(ctx, OnlineKey(companyID))
}

// IsOnline reports whether an agent is present.
func (t *Tracker) IsOnline(ctx context.Context, companyID, userID string) bool {
	return t.kv.SIsMember(ctx, OnlineKey(companyID), userID)
}

// State reports the backend connection state.
func (t *Tracker) State() State { return t.kv.State() }
