package types

import (
	"context"
	"time"
)

// SyncSummary describes the outcome of one sync cycle.
type SyncSummary struct {
	// Removed is the number of virtual subscriptions disposed.
	Removed int

	// Added is the number of virtual subscriptions created.
	Added int

	// Updated is the number of virtual subscriptions re-synchronized.
	Updated int

	// Elapsed is the wall-clock duration of the cycle.
	Elapsed time.Duration

	// RetryIn is the delay until the next scheduled retry, zero when none is pending.
	RetryIn time.Duration
}

// Changed reports whether the cycle changed anything.
func (s SyncSummary) Changed() bool {
	return s.Removed+s.Added+s.Updated > 0
}

// Hooks defines callbacks for subscription client lifecycle events.
//
// All hooks are optional. They are invoked from the sync goroutine after the
// relevant work completed, so they should return quickly. Hook errors are logged
// but never fail a sync.
//
// Example:
//
//	hooks := &opcsub.Hooks{
//	    OnSyncCompleted: func(ctx context.Context, s opcsub.SyncSummary) error {
//	        log.Printf("sync: removed=%d added=%d updated=%d", s.Removed, s.Added, s.Updated)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnSyncCompleted is called at the end of every sync cycle.
	OnSyncCompleted func(ctx context.Context, summary SyncSummary) error

	// OnError is called when a recoverable error occurs.
	OnError func(ctx context.Context, err error) error
}
