package source

import (
	"fmt"
	"maps"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/opcsub/types"
)

// Static implements a configuration source holding an in-memory value.
type Static struct {
	mu        sync.RWMutex
	cfg       types.SubscriptionConfig
	nextID    uint64
	listeners map[uint64]func(types.SubscriptionConfig)
}

var _ types.ConfigSource = (*Static)(nil)

// NewStatic creates a new static configuration source.
//
// The source returns the given configuration until Update replaces it.
// Useful for testing and for applications that build configuration in code.
//
// Parameters:
//   - cfg: Initial configuration (copied)
//
// Returns:
//   - *Static: Initialized static source
//
// Example:
//
//	src := source.NewStatic(opcsub.SubscriptionConfig{
//	    Options: &opcsub.SubscriptionOptions{PublishingInterval: time.Second},
//	    Items: map[string]opcsub.MonitoredItemOptions{
//	        "temperature": {NodeID: "ns=2;s=Boiler.Temperature"},
//	    },
//	})
//	reader, err := subscriber.Subscribe(ctx, src)
func NewStatic(cfg types.SubscriptionConfig) *Static {
	return &Static{
		cfg:       clone(cfg),
		listeners: make(map[uint64]func(types.SubscriptionConfig)),
	}
}

// FromYAML creates a static source from a YAML document.
//
// Parameters:
//   - data: YAML with top-level "options" and "items" keys
//
// Returns:
//   - *Static: Initialized static source
//   - error: Parse error
func FromYAML(data []byte) (*Static, error) {
	var cfg types.SubscriptionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse subscription config: %w", err)
	}

	return NewStatic(cfg), nil
}

// Current returns a copy of the current configuration.
func (s *Static) Current() types.SubscriptionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return clone(s.cfg)
}

// OnChange registers fn to be called after every Update.
//
// Returns:
//   - func(): Unsubscribe function; safe to call more than once
func (s *Static) OnChange(fn func(types.SubscriptionConfig)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Update replaces the configuration and notifies listeners.
//
// Listeners run synchronously on the caller's goroutine, outside the source lock.
//
// Parameters:
//   - cfg: New configuration (copied)
//
// Example:
//
//	src := source.NewStatic(initial)
//	// Later: add an item
//	src.Update(expanded)
func (s *Static) Update(cfg types.SubscriptionConfig) {
	s.mu.Lock()
	s.cfg = clone(cfg)
	listeners := make([]func(types.SubscriptionConfig), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(clone(cfg))
	}
}

func clone(cfg types.SubscriptionConfig) types.SubscriptionConfig {
	out := types.SubscriptionConfig{Items: maps.Clone(cfg.Items)}
	if cfg.Options != nil {
		opts := *cfg.Options
		out.Options = &opts
	}

	return out
}
