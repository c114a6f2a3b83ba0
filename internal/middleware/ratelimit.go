package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/config"
	"github.com/iliyamo/chatdesk/internal/logger"
)

// HeaderWidgetKey carries the public widget key on anonymous widget calls.
const HeaderWidgetKey = "X-Widget-Key"

// gcraScript keeps one theoretical arrival time (ms) per key.  ARGV: now,
// emission interval, burst.  Returns {allowed, remaining, retry_after_ms}.
var gcraScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local tat = tonumber(redis.call('GET', KEYS[1])) or now
if tat < now then tat = now end
local next_tat = tat + interval
local wait = next_tat - now
local tolerance = interval * burst
if wait > tolerance then
	return {0, 0, math.ceil(wait - tolerance)}
end
redis.call('SET', KEYS[1], next_tat, 'PX', math.ceil(wait))
return {1, math.floor((tolerance - wait) / interval), 0}
`)

// NewWidgetLimiter meters the anonymous widget endpoints in Redis: POST
// (chat creation) against cfg.ChatCreate, everything else against
// cfg.WidgetRead.  A nil client or a Redis failure lets the request through
// so a limiter outage never blocks chat creation.
func NewWidgetLimiter(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			name, bucket := "read", cfg.WidgetRead
			if c.Request().Method == http.MethodPost {
				name, bucket = "chat", cfg.ChatCreate
			}
			key := rateKey(cfg, name, c)

			res, err := gcraScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(), bucket.Every.Milliseconds(), bucket.Burst).Int64Slice()
			if err != nil || len(res) != 3 {
				if cfg.Debug {
					logger.FromEcho(c).Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(bucket.Burst))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if res[0] != 1 {
				secs := (res[2] + 999) / 1000
				h.Set("Retry-After", strconv.FormatInt(secs, 10))
				logger.FromEcho(c).Info("rate limited", zap.String("key", key), zap.Int64("retry_ms", res[2]))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":      "rate limit exceeded",
					"retryAfter": secs,
				})
			}
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			return next(c)
		}
	}
}

// rateKey names the bucket a request draws from.
func rateKey(cfg config.RateLimitConfig, bucket string, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	parts := []string{cfg.Prefix, bucket}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "widget":
		parts = append(parts, "widget", widgetKey(c))
	case "ip":
		parts = append(parts, "ip", ip)
	default:
		parts = append(parts, "widget", widgetKey(c), "ip", ip)
	}
	return strings.Join(parts, ":")
}

// widgetKey finds the widget key of an anonymous call in the header, the
// path or the query string.
func widgetKey(c echo.Context) string {
	if k := c.Request().Header.Get(HeaderWidgetKey); k != "" {
		return k
	}
	if k := c.Param("widgetKey"); k != "" {
		return k
	}
	if k := c.QueryParam("widgetKey"); k != "" {
		return k
	}
	return "none"
}
