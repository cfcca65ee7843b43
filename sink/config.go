package sink

import (
	"fmt"
	"time"

	"github.com/arloliu/opcsub/types"
)

// Config configures a Sink.
type Config struct {
	// Prefix is the subject prefix. Default: "opcua.notifications"
	Prefix string `yaml:"prefix"`

	// Codec encodes notification payloads. Default: CBOR
	Codec Codec `yaml:"-"`

	// MaxRetries is the number of retries after a failed publish. Default: 3
	MaxRetries int `yaml:"maxRetries"`

	// RetryBackoff is the base delay between retries. Default: 100ms
	RetryBackoff time.Duration `yaml:"retryBackoff"`

	// RetryBackoffMax caps the delay between retries. Default: 2s
	RetryBackoffMax time.Duration `yaml:"retryBackoffMax"`

	// RetryMultiplier grows the delay between retries. Default: 2.0
	RetryMultiplier float64 `yaml:"retryMultiplier"`

	// RetrySeed makes retry jitter deterministic when non-zero (tests only).
	RetrySeed int64 `yaml:"-"`

	// Logger receives publish failures. Default: no-op
	Logger types.Logger `yaml:"-"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:          "opcua.notifications",
		Codec:           NewCBORCodec(),
		MaxRetries:      3,
		RetryBackoff:    100 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		RetryMultiplier: 2.0,
	}
}

// SetDefaults fills in missing values with production defaults.
//
// A negative MaxRetries disables retries.
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Prefix == "" {
		cfg.Prefix = defaults.Prefix
	}
	if cfg.Codec == nil {
		cfg.Codec = defaults.Codec
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaults.RetryBackoff
	}
	if cfg.RetryBackoffMax <= 0 {
		cfg.RetryBackoffMax = defaults.RetryBackoffMax
	}
	if cfg.RetryMultiplier < 1.0 {
		cfg.RetryMultiplier = defaults.RetryMultiplier
	}
}

// Validate checks the configuration after defaults were applied.
func (c *Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("%w: prefix is required", types.ErrInvalidConfig)
	}
	if c.Prefix[0] == '.' || c.Prefix[len(c.Prefix)-1] == '.' {
		return fmt.Errorf("%w: prefix %q must not start or end with '.'", types.ErrInvalidConfig, c.Prefix)
	}
	for _, r := range c.Prefix {
		if r == '*' || r == '>' || r == ' ' {
			return fmt.Errorf("%w: prefix %q must not contain wildcards or spaces", types.ErrInvalidConfig, c.Prefix)
		}
	}

	return nil
}
