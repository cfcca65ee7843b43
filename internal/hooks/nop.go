// Package hooks provides default lifecycle hook implementations.
package hooks

import (
	"context"

	"github.com/arloliu/opcsub/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.SyncSummary) error = (*NopHooks)(nil).OnSyncCompleted
	_ func(context.Context, error) error             = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
func NewNop() types.Hooks {
	h := &NopHooks{}

	return types.Hooks{
		OnSyncCompleted: h.OnSyncCompleted,
		OnError:         h.OnError,
	}
}

// WithDefaults returns a copy of hooks with nil callbacks replaced by no-ops.
//
// Parameters:
//   - hooks: User-supplied hooks (may be nil)
//
// Returns:
//   - types.Hooks: Hooks whose callbacks are all non-nil
func WithDefaults(hooks *types.Hooks) types.Hooks {
	out := NewNop()
	if hooks == nil {
		return out
	}
	if hooks.OnSyncCompleted != nil {
		out.OnSyncCompleted = hooks.OnSyncCompleted
	}
	if hooks.OnError != nil {
		out.OnError = hooks.OnError
	}

	return out
}

// OnSyncCompleted is a no-op implementation.
func (h *NopHooks) OnSyncCompleted(_ context.Context, _ types.SyncSummary) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
