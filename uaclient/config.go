package uaclient

import (
	"time"

	"github.com/arloliu/opcsub/types"
)

// Config configures the session adapter.
type Config struct {
	// MaxMonitoredItemsOverride replaces the server-advertised per-subscription
	// limit when > 0.
	MaxMonitoredItemsOverride uint32 `yaml:"maxMonitoredItemsOverride"`

	// MaxItemsPerCall caps monitored items created or deleted per service call.
	// Default: 1000
	MaxItemsPerCall int `yaml:"maxItemsPerCall"`

	// NotifyBuffer is the notification channel capacity per physical subscription.
	// Default: 256
	NotifyBuffer int `yaml:"notifyBuffer"`

	// LimitsTTL is how long operation limits read from the server are cached.
	// Default: 10 minutes
	LimitsTTL time.Duration `yaml:"limitsTtl"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		MaxItemsPerCall: 1000,
		NotifyBuffer:    256,
		LimitsTTL:       10 * time.Minute,
	}
}

// SetDefaults fills in missing values with production defaults.
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.MaxItemsPerCall <= 0 {
		cfg.MaxItemsPerCall = defaults.MaxItemsPerCall
	}
	if cfg.NotifyBuffer <= 0 {
		cfg.NotifyBuffer = defaults.NotifyBuffer
	}
	if cfg.LimitsTTL <= 0 {
		cfg.LimitsTTL = defaults.LimitsTTL
	}
}

// Option configures a Session with optional dependencies.
type Option func(*Session)

// WithLogger sets a logger.
func WithLogger(logger types.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock replaces time.Now for publish timestamps and limit caching.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}
