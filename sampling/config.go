package sampling

import (
	"fmt"
	"time"

	"github.com/arloliu/opcsub/types"
)

// Config configures the sampling client.
type Config struct {
	// MinSamplingRate is the floor applied to requested sampling rates.
	// Default: 1 second
	MinSamplingRate time.Duration `yaml:"minSamplingRate"`

	// ReadTimeoutRatio is the read deadline as a fraction of the sampling rate.
	// Default: 0.5
	ReadTimeoutRatio float64 `yaml:"readTimeoutRatio"`
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		MinSamplingRate:  time.Second,
		ReadTimeoutRatio: 0.5,
	}
}

// SetDefaults fills in missing values with production defaults.
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.MinSamplingRate == 0 {
		cfg.MinSamplingRate = defaults.MinSamplingRate
	}
	if cfg.ReadTimeoutRatio == 0 {
		cfg.ReadTimeoutRatio = defaults.ReadTimeoutRatio
	}
}

// Validate checks configuration constraints.
//
// Returns:
//   - error: Wraps types.ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.MinSamplingRate <= 0 {
		return fmt.Errorf("%w: MinSamplingRate must be > 0, got %v", types.ErrInvalidConfig, cfg.MinSamplingRate)
	}
	if cfg.ReadTimeoutRatio <= 0 || cfg.ReadTimeoutRatio > 1 {
		return fmt.Errorf("%w: ReadTimeoutRatio must be in (0, 1], got %v", types.ErrInvalidConfig, cfg.ReadTimeoutRatio)
	}

	return nil
}
