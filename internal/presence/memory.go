package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a single-process KV, used when Redis is disabled and in
// tests.  It is always Ready.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memValue
	sets   map[string]map[string]struct{}
}

type memValue struct {
	v   string
	exp time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: map[string]memValue{}, sets: map[string]map[string]struct{}{}}
}

func (m *MemoryStore) State() State { return Ready }

func (m *MemoryStore) Get(_ context.Context, key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok || (!v.exp.IsZero() && time.Now().After(v.exp)) {
		return ""
	}
	return v.v
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := memValue{v: value}
	if ttl > 0 {
		v.exp = time.Now().Add(ttl)
	}
	m.values[key] = v
}

func (m *MemoryStore) Del(_ context.Context, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
		delete(m.sets, k)
	}
}

func (m *MemoryStore) SAdd(_ context.Context, key string, members ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = map[string]struct{}{}
		m.sets[key] = set
	}
	for _, v := range members {
		set[v] = struct{}{}
	}
}

func (m *MemoryStore) SRem(_ context.Context, key string, members ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sets[key]
	for _, v := range members {
		delete(set, v)
	}
	if len(set) == 0 {
		delete(m.sets, key)
	}
}

// SMembers returns the members sorted, for deterministic output.
func (m *MemoryStore) SMembers(_ context.Context, key string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sets[key]))
	for v := range m.sets[key] {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryStore) SIsMember(_ context.Context, key, member string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sets[key][member]
	return ok
}

func (m *MemoryStore) SCard(_ context.Context, key string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.sets[key]))
}
