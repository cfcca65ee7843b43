package sampling

import (
	"time"

	"github.com/arloliu/opcsub/types"
)

// Option configures a sampling Client with optional dependencies.
type Option func(*clientOptions)

type clientOptions struct {
	logger  types.Logger
	metrics types.MetricsCollector
	now     func() time.Time
}

// WithLogger sets a logger.
func WithLogger(logger types.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
func WithMetrics(metrics types.MetricsCollector) Option {
	return func(o *clientOptions) {
		o.metrics = metrics
	}
}

// WithClock replaces time.Now for timestamps and read-cycle durations.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		o.now = now
	}
}
