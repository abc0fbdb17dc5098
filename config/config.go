// Package config loads runtime settings from file and environment via viper.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RedisSettings configures the shared redis connection used by the cache
// backend, the pub/sub publisher and the distributed locker.
type RedisSettings struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CacheSettings configures the cache layer.
type CacheSettings struct {
	// Backend selects the adapter: "memory" or "redis".
	Backend         string        `mapstructure:"backend"`
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Namespace       string        `mapstructure:"namespace"`
}

// ScrollSettings configures bulk scroll operations.
type ScrollSettings struct {
	BatchSize int           `mapstructure:"batch_size"`
	Lease     time.Duration `mapstructure:"lease"`
}

// NotificationSettings configures change-event publishing.
type NotificationSettings struct {
	Channel string        `mapstructure:"channel"`
	Delay   time.Duration `mapstructure:"delay"`
}

// RetentionSettings configures the scheduled event cleanup.
type RetentionSettings struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

// Settings is the root configuration tree.
type Settings struct {
	Redis         RedisSettings        `mapstructure:"redis"`
	Cache         CacheSettings        `mapstructure:"cache"`
	Scroll        ScrollSettings       `mapstructure:"scroll"`
	Notifications NotificationSettings `mapstructure:"notifications"`
	Retention     RetentionSettings    `mapstructure:"retention"`
}

// Default returns the settings used when no file or environment overrides
// are present.
func Default() Settings {
	return Settings{
		Redis: RedisSettings{Addr: "localhost:6379"},
		Cache: CacheSettings{
			Backend:         "memory",
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
			Namespace:       "searchrepo",
		},
		Scroll: ScrollSettings{BatchSize: 500, Lease: 30 * time.Second},
		Notifications: NotificationSettings{
			Channel: "entity-changes",
			Delay:   1500 * time.Millisecond,
		},
		Retention: RetentionSettings{MaxAge: 90 * 24 * time.Hour},
	}
}

// Load reads settings from the given file path (optional) and the
// environment. Environment variables use the SEARCHREPO prefix with
// underscores, e.g. SEARCHREPO_REDIS_ADDR.
func Load(path string) (Settings, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("searchrepo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks cross-field constraints viper cannot express.
func (s Settings) Validate() error {
	switch s.Cache.Backend {
	case "memory", "redis":
	default:
		return &Error{Field: "cache.backend", Message: "must be memory or redis"}
	}
	if s.Cache.DefaultTTL <= 0 {
		return &Error{Field: "cache.default_ttl", Message: "must be greater than 0"}
	}
	if s.Scroll.BatchSize <= 0 {
		return &Error{Field: "scroll.batch_size", Message: "must be greater than 0"}
	}
	if s.Scroll.Lease <= 0 {
		return &Error{Field: "scroll.lease", Message: "must be greater than 0"}
	}
	if s.Notifications.Delay < 0 {
		return &Error{Field: "notifications.delay", Message: "must be non-negative"}
	}
	return nil
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.default_ttl", d.Cache.DefaultTTL)
	v.SetDefault("cache.cleanup_interval", d.Cache.CleanupInterval)
	v.SetDefault("cache.namespace", d.Cache.Namespace)
	v.SetDefault("scroll.batch_size", d.Scroll.BatchSize)
	v.SetDefault("scroll.lease", d.Scroll.Lease)
	v.SetDefault("notifications.channel", d.Notifications.Channel)
	v.SetDefault("notifications.delay", d.Notifications.Delay)
	v.SetDefault("retention.max_age", d.Retention.MaxAge)
}
