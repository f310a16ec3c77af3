package config

import (
	"time"

	"github.com/spf13/viper"
)

// CacheConfig controls the Redis browse cache in front of the backend's
// theater and movie listings.  Seat maps, bookings and payments are never
// cached whatever these values say.
type CacheConfig struct {
	Enabled bool          `mapstructure:"CACHE_ENABLED"`
	TTL     time.Duration `mapstructure:"CACHE_TTL"`
	Prefix  string        `mapstructure:"CACHE_PREFIX"`
}

func cacheDefaults(v *viper.Viper) {
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("CACHE_PREFIX", "filmpass:browse")
}
