package config

import "time"

// Bucket is one rate: Burst requests at once, then one every Every.
type Bucket struct {
	Burst int
	Every time.Duration
}

// RateLimitConfig configures the limiter in front of the anonymous widget
// endpoints.  Chat creation and widget reads are metered separately so a
// page that polls online agents cannot exhaust the visitor's chat budget.
type RateLimitConfig struct {
	Enabled bool
	Prefix  string
	// KeyStrategy is one of "widget", "ip" or "widget_ip".
	KeyStrategy string
	ChatCreate  Bucket
	WidgetRead  Bucket
	Debug       bool
}

func LoadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:     envBool("RATE_LIMIT_ENABLED", true),
		Prefix:      envStr("RATE_LIMIT_PREFIX", "rl"),
		KeyStrategy: envStr("RATE_LIMIT_KEY_STRATEGY", "widget_ip"),
		ChatCreate:  loadBucket("RATE_LIMIT_CHAT", Bucket{Burst: 5, Every: 12 * time.Second}),
		WidgetRead:  loadBucket("RATE_LIMIT_WIDGET", Bucket{Burst: 30, Every: time.Second}),
		Debug:       envBool("RATE_LIMIT_DEBUG", false),
	}
}

// loadBucket reads <prefix>_BURST and <prefix>_EVERY.
func loadBucket(prefix string, def Bucket) Bucket {
	b := Bucket{
		Burst: envInt(prefix+"_BURST", def.Burst),
		Every: envDur(prefix+"_EVERY", def.Every),
	}
	if b.Burst < 1 {
		b.Burst = 1
	}
	if b.Every <= 0 {
		b.Every = def.Every
	}
	return b
}
