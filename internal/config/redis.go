package config

// Redis backs the presence/queue store and the public rate limiter.  The
// client built here is lazy: it never dials at construction time.  The
// presence store owns connection state and reconnection.

import (
	"crypto/tls"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig groups the Redis connection and reconnect settings.
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand (used when host/port are not both set)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
//   REDIS_DISABLED – use the in-process presence store instead
//   REDIS_MAX_RETRIES – reconnect attempts per outage (default 10)
//   REDIS_MAX_BACKOFF – ceiling of the reconnect backoff (default 30s)
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	TLS        bool
	Disabled   bool
	MaxRetries int
	MaxBackoff time.Duration
}

func LoadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	tlsEnv := os.Getenv("REDIS_TLS")
	return RedisConfig{
		Addr:       addr,
		Password:   os.Getenv("REDIS_PASSWORD"),
		DB:         envInt("REDIS_DB", 0),
		TLS:        strings.EqualFold(tlsEnv, "true") || tlsEnv == "1",
		Disabled:   envBool("REDIS_DISABLED", false),
		MaxRetries: envInt("REDIS_MAX_RETRIES", 10),
		MaxBackoff: envDur("REDIS_MAX_BACKOFF", 30*time.Second),
	}
}

// NewRedisClient instantiates a Redis client from cfg.  Short dial/read
// timeouts keep a dead server from stalling requests; the client's own
// retries are disabled because reconnection is handled by the caller.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		TLSConfig:    tlsConf,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   -1,
	})
}
