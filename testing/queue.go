package testing

import (
	"context"
	"sync"
	"time"

	"github.com/arloliu/opcsub/types"
)

// RecordingQueue is a types.NotificationQueue that keeps every notification.
type RecordingQueue struct {
	mu      sync.Mutex
	cond    chan struct{}
	items   []types.Notification
	failErr error
}

var _ types.NotificationQueue = (*RecordingQueue)(nil)

// NewRecordingQueue creates an empty recording queue.
func NewRecordingQueue() *RecordingQueue {
	return &RecordingQueue{cond: make(chan struct{})}
}

// Queue implements types.NotificationQueue.
func (q *RecordingQueue) Queue(_ context.Context, n types.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.failErr != nil {
		return q.failErr
	}
	q.items = append(q.items, n)
	close(q.cond)
	q.cond = make(chan struct{})

	return nil
}

// SetError makes subsequent Queue calls fail with err (nil restores success).
func (q *RecordingQueue) SetError(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.failErr = err
}

// Notifications returns a copy of the recorded notifications.
func (q *RecordingQueue) Notifications() []types.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]types.Notification, len(q.items))
	copy(out, q.items)

	return out
}

// Len returns the number of recorded notifications.
func (q *RecordingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// WaitFor blocks until at least n notifications were recorded or timeout elapses.
//
// Returns:
//   - bool: true when n notifications are available
func (q *RecordingQueue) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.items) >= n {
			q.mu.Unlock()
			return true
		}
		wait := q.cond
		q.mu.Unlock()

		select {
		case <-wait:
		case <-deadline.C:
			return false
		}
	}
}
