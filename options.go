package opcsub

// Option configures a Client with optional dependencies.
type Option func(*clientOptions)

// clientOptions holds optional Client configuration.
type clientOptions struct {
	hooks    *Hooks
	metrics  MetricsCollector
	logger   Logger
	strategy PartitionStrategy
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewClient
//
// Example:
//
//	hooks := &opcsub.Hooks{
//	    OnSyncCompleted: func(ctx context.Context, s opcsub.SyncSummary) error {
//	        return recordSync(s)
//	    },
//	}
//	client, _ := opcsub.NewClient(&cfg, session, opcsub.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *clientOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewClient
//
// Example:
//
//	collector := metrics.NewPrometheus(prometheus.DefaultRegisterer, "opcsub")
//	client, _ := opcsub.NewClient(&cfg, session, opcsub.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *clientOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewClient
//
// Example:
//
//	logger := logging.NewSlogDefault()
//	client, _ := opcsub.NewClient(&cfg, session, opcsub.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithStrategy replaces the partition strategy used to spread registrations
// over physical subscriptions. The default is strategy.NewBagPacked().
//
// Parameters:
//   - s: PartitionStrategy implementation
//
// Returns:
//   - Option: Functional option for NewClient
func WithStrategy(s PartitionStrategy) Option {
	return func(o *clientOptions) {
		o.strategy = s
	}
}
