package config

import (
	"time"

	"github.com/spf13/viper"
)

// RateLimitConfig shapes the token bucket applied to mutating booking and
// payment routes.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"RATE_LIMIT_ENABLED"`
	Capacity       int           `mapstructure:"RATE_LIMIT_CAPACITY"`
	RefillTokens   int           `mapstructure:"RATE_LIMIT_REFILL_TOKENS"`
	RefillInterval time.Duration `mapstructure:"RATE_LIMIT_REFILL_INTERVAL"`
	TTL            time.Duration `mapstructure:"RATE_LIMIT_TTL"`
	KeyStrategy    string        `mapstructure:"RATE_LIMIT_KEY_STRATEGY"` // ip, session, ip_route or session_route
	Prefix         string        `mapstructure:"RATE_LIMIT_PREFIX"`
	Debug          bool          `mapstructure:"RATE_LIMIT_DEBUG"`
}

func rateLimitDefaults(v *viper.Viper) {
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_CAPACITY", 30)
	v.SetDefault("RATE_LIMIT_REFILL_TOKENS", 1)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", "1s")
	v.SetDefault("RATE_LIMIT_TTL", "10m")
	v.SetDefault("RATE_LIMIT_KEY_STRATEGY", "session_route")
	v.SetDefault("RATE_LIMIT_PREFIX", "filmpass:rl")
	v.SetDefault("RATE_LIMIT_DEBUG", false)
}

// normalize clamps values so the bucket always refills and keys outlive
// a full refill.
func (c *RateLimitConfig) normalize() {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	switch c.KeyStrategy {
	case "ip", "session", "ip_route", "session_route":
	default:
		c.KeyStrategy = "session_route"
	}
}
