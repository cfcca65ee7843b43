package opcsub

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/opcsub/sampling"
	"github.com/arloliu/opcsub/types"
)

// ============================================================================
// Timing Model
// ============================================================================
//
// The client reconciles registrations with the session in sync cycles:
//
// ┌─────────────────────────────────────────────────────────────────────────┐
// │ Trigger: registration added/closed, config change, TriggerSync        │
// │   • SyncDebounce: 100ms                                               │
// │     - Signals arriving inside the window collapse into one cycle      │
// └─────────────────────────────────────────────────────────────────────────┘
//
// ┌─────────────────────────────────────────────────────────────────────────┐
// │ Retry: a cycle that could not finish schedules another one            │
// │   • RetryDelay: 1m                                                    │
// │     - Creating or updating a virtual subscription failed              │
// │   • DisconnectedRetryDelay: 5s                                        │
// │     - The session was not connected; only removals were applied       │
// │   Pending retries only ever move earlier, never later.                │
// └─────────────────────────────────────────────────────────────────────────┘
//
// ============================================================================

// Config is the configuration for the subscription Client.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// SyncDebounce is how long the sync loop waits after a trigger before
	// running a cycle. Triggers inside the window are coalesced.
	// Default: 100ms
	SyncDebounce time.Duration `yaml:"syncDebounce"`

	// RetryDelay is the delay before retrying a cycle whose additions or
	// updates failed.
	// Default: 1 minute
	RetryDelay time.Duration `yaml:"retryDelay"`

	// DisconnectedRetryDelay is the delay before re-running a cycle that found
	// the session disconnected.
	// Default: 5 seconds
	DisconnectedRetryDelay time.Duration `yaml:"disconnectedRetryDelay"`

	// DefaultMaxMonitoredItems caps monitored items per physical subscription
	// when the server does not advertise a limit.
	// Default: 65536
	DefaultMaxMonitoredItems int `yaml:"defaultMaxMonitoredItems"`

	// OperationTimeout bounds the session calls a sync cycle makes for one
	// virtual subscription.
	// Default: 30 seconds
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// ShutdownTimeout bounds Close when the caller context has no deadline.
	// Default: 10 seconds
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// Sampling configures the periodic read path.
	Sampling sampling.Config `yaml:"sampling"`
}

// DefaultConfig returns a Config with production defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		SyncDebounce:             100 * time.Millisecond,
		RetryDelay:               time.Minute,
		DisconnectedRetryDelay:   5 * time.Second,
		DefaultMaxMonitoredItems: 65536,
		OperationTimeout:         30 * time.Second,
		ShutdownTimeout:          10 * time.Second,
		Sampling:                 sampling.DefaultConfig(),
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.SyncDebounce == 0 {
		cfg.SyncDebounce = defaults.SyncDebounce
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
	if cfg.DisconnectedRetryDelay == 0 {
		cfg.DisconnectedRetryDelay = defaults.DisconnectedRetryDelay
	}
	if cfg.DefaultMaxMonitoredItems == 0 {
		cfg.DefaultMaxMonitoredItems = defaults.DefaultMaxMonitoredItems
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	sampling.SetDefaults(&cfg.Sampling)
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - SyncDebounce >= 0
//   - RetryDelay > 0 and DisconnectedRetryDelay > 0
//   - DefaultMaxMonitoredItems > 0
//   - OperationTimeout > 0 and ShutdownTimeout > 0
//   - Sampling must be valid
//
// Returns:
//   - error: Wraps ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.SyncDebounce < 0 {
		return fmt.Errorf("%w: SyncDebounce must be >= 0, got %v", types.ErrInvalidConfig, cfg.SyncDebounce)
	}
	if cfg.RetryDelay <= 0 {
		return fmt.Errorf("%w: RetryDelay must be > 0, got %v", types.ErrInvalidConfig, cfg.RetryDelay)
	}
	if cfg.DisconnectedRetryDelay <= 0 {
		return fmt.Errorf("%w: DisconnectedRetryDelay must be > 0, got %v", types.ErrInvalidConfig, cfg.DisconnectedRetryDelay)
	}
	if cfg.DefaultMaxMonitoredItems <= 0 {
		return fmt.Errorf("%w: DefaultMaxMonitoredItems must be > 0, got %d", types.ErrInvalidConfig, cfg.DefaultMaxMonitoredItems)
	}
	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("%w: OperationTimeout must be > 0, got %v", types.ErrInvalidConfig, cfg.OperationTimeout)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: ShutdownTimeout must be > 0, got %v", types.ErrInvalidConfig, cfg.ShutdownTimeout)
	}

	return cfg.Sampling.Validate()
}

// ValidateWithWarnings logs warnings for values that are valid but unusual.
//
// This is called after Validate() in NewClient() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.SyncDebounce > time.Second {
		logger.Warn(
			"SyncDebounce is long, registration changes will apply slowly",
			"syncDebounce", cfg.SyncDebounce,
			"recommended", "100ms",
		)
	}

	if cfg.DisconnectedRetryDelay > cfg.RetryDelay {
		logger.Warn(
			"DisconnectedRetryDelay exceeds RetryDelay",
			"disconnectedRetryDelay", cfg.DisconnectedRetryDelay,
			"retryDelay", cfg.RetryDelay,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := opcsub.TestConfig()
//	client, err := opcsub.NewClient(&cfg, session)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.SyncDebounce = 10 * time.Millisecond
	cfg.RetryDelay = 200 * time.Millisecond
	cfg.DisconnectedRetryDelay = 50 * time.Millisecond
	cfg.OperationTimeout = 2 * time.Second
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.Sampling.MinSamplingRate = 10 * time.Millisecond

	return cfg
}

// ParseConfig decodes a YAML document into a Config and applies defaults.
//
// Parameters:
//   - data: YAML document
//
// Returns:
//   - Config: Decoded configuration with defaults applied
//   - error: Decode or validation error
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", types.ErrInvalidConfig, err)
	}
	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
//
// Parameters:
//   - path: File path
//
// Returns:
//   - Config: Decoded configuration with defaults applied
//   - error: Read, decode or validation error
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	return ParseConfig(data)
}
