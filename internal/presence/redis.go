package presence

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options tune reconnection of the Redis backend.
type Options struct {
	MaxRetries  int           // ping attempts per reconnect cycle
	BaseBackoff time.Duration // first wait between attempts, doubled each time
	MaxBackoff  time.Duration // ceiling of the wait
	OpTimeout   time.Duration // per-operation deadline
	OnState     func(State)   // observes transitions (metrics)
}

func (o *Options) defaults() {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 10
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = time.Second
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.OpTimeout <= 0 {
		o.OpTimeout = time.Second
	}
}

// RedisStore is a KV backed by go-redis.  It starts Disconnected; Start
// launches a reconnect cycle.  Any failed operation drops the state back to
// Disconnected and triggers a new cycle in the background.  A cycle makes at
// most MaxRetries attempts with capped exponential backoff, then gives up
// until the next operation asks again (no sooner than MaxBackoff later).
type RedisStore struct {
	rdb  *redis.Client
	log  *zap.Logger
	opts Options

	state        atomic.Int32
	reconnecting atomic.Bool
	warned       atomic.Bool // first failure of an outage is a warning, the rest debug

	mu        sync.Mutex
	life      context.Context
	lastCycle time.Time
}

func NewRedisStore(rdb *redis.Client, log *zap.Logger, opts Options) *RedisStore {
	opts.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	s := &RedisStore{rdb: rdb, log: log.Named("presence"), opts: opts, life: context.Background()}
	s.setState(Disconnected)
	return s
}

// Start begins connecting in the background.  ctx bounds the lifetime of
// every reconnect loop.
func (s *RedisStore) Start(ctx context.Context) {
	s.mu.Lock()
	s.life = ctx
	s.mu.Unlock()
	s.reconnect(true)
}

func (s *RedisStore) State() State { return State(s.state.Load()) }

func (s *RedisStore) setState(st State) {
	if State(s.state.Swap(int32(st))) != st && s.opts.OnState != nil {
		s.opts.OnState(st)
	}
}

// reconnect launches a cycle unless one is running.  Without force it also
// respects the cool-down after an exhausted cycle.
func (s *RedisStore) reconnect(force bool) {
	s.mu.Lock()
	if !force && time.Since(s.lastCycle) < s.opts.MaxBackoff {
		s.mu.Unlock()
		return
	}
	life := s.life
	s.mu.Unlock()
	if !s.reconnecting.CompareAndSwap(false, true) {
		return
	}
	go s.cycle(life)
}

func (s *RedisStore) cycle(ctx context.Context) {
	defer s.reconnecting.Store(false)
	s.setState(Connecting)
	backoff := s.opts.BaseBackoff
	for attempt := 1; attempt <= s.opts.MaxRetries; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
		err := s.rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			s.setState(Ready)
			s.warned.Store(false)
			s.log.Info("presence store ready", zap.Int("attempt", attempt))
			return
		}
		s.logFailure("presence store ping failed", err, zap.Int("attempt", attempt), zap.Duration("retry_in", backoff))
		if attempt == s.opts.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			s.setState(Disconnected)
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > s.opts.MaxBackoff {
			backoff = s.opts.MaxBackoff
		}
	}
	s.mu.Lock()
	s.lastCycle = time.Now()
	s.mu.Unlock()
	s.setState(Disconnected)
	s.logFailure("presence store unavailable, running degraded", nil, zap.Int("attempts", s.opts.MaxRetries))
}

func (s *RedisStore) logFailure(msg string, err error, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if s.warned.CompareAndSwap(false, true) {
		s.log.Warn(msg, fields...)
		return
	}
	s.log.Debug(msg, fields...)
}

// ready reports whether operations should reach Redis, kicking a
// reconnect cycle when they should not.
func (s *RedisStore) ready() bool {
	if s.State() == Ready {
		return true
	}
	s.reconnect(false)
	return false
}

// check inspects an operation error.  redis.Nil is a normal miss.
func (s *RedisStore) check(op string, err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return true
	}
	s.logFailure("presence store "+op+" failed", err)
	s.setState(Disconnected)
	s.reconnect(true)
	return false
}

func (s *RedisStore) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.OpTimeout)
}

func (s *RedisStore) Get(ctx context.Context, key string) string {
	if !s.ready() {
		return ""
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	v, err := s.rdb.Get(ctx, key).Result()
	if !s.check("get", err) {
		return ""
	}
	return v
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if !s.ready() {
		return
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	s.check("set", s.rdb.Set(ctx, key, value, ttl).Err())
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) {
	if !s.ready() || len(keys) == 0 {
		return
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	s.check("del", s.rdb.Del(ctx, keys...).Err())
}

func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) {
	if !s.ready() || len(members) == 0 {
		return
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	s.check("sadd", s.rdb.SAdd(ctx, key, toAny(members)...).Err())
}

func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) {
	if !s.ready() || len(members) == 0 {
		return
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	s.check("srem", s.rdb.SRem(ctx, key, toAny(members)...).Err())
}

func (s *RedisStore) SMembers(ctx context.Context, key string) []string {
	if !s.ready() {
		return []string{}
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	v, err := s.rdb.SMembers(ctx, key).Result()
	if !s.check("smembers", err) || v == nil {
		return []string{}
	}
	return v
}

func (s *RedisStore) SIsMember(ctx context.Context, key, member string) bool {
	if !s.ready() {
		return false
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	v, err := s.rdb.SIsMember(ctx, key, member).Result()
	return s.check("sismember", err) && v
}

func (s *RedisStore) SCard(ctx context.Context, key string) int64 {
	if !s.ready() {
		return 0
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	v, err := s.rdb.SCard(ctx, key).Result()
	if !s.check("scard", err) {
		return 0
	}
	return v
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
