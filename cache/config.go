package cache

import "time"

// Config exposes cache configuration options for consumers of the cache
// package.
type Config struct {
	// DefaultTTL applies to Set calls made with a zero TTL.
	DefaultTTL time.Duration

	// CleanupInterval sets how often in-process backends sweep expired
	// entries. Zero uses the backend default.
	CleanupInterval time.Duration

	// Namespace prefixes every key written by backends that share a
	// keyspace with other applications (the redis adapter).
	Namespace string
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.DefaultTTL <= 0 {
		return &ConfigError{Field: "DefaultTTL", Message: "must be greater than 0"}
	}
	if c.CleanupInterval < 0 {
		return &ConfigError{Field: "CleanupInterval", Message: "must be non-negative"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
