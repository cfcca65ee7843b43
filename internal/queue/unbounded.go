// Package queue provides the unbounded notification queue behind a Reader.
package queue

import (
	"context"
	"sync"

	"github.com/arloliu/opcsub/types"
)

// Unbounded is an unbounded, order-preserving, multi-producer single-consumer
// notification queue.
//
// Producers never block. The consumer blocks in Pop until an item is available,
// the queue is closed, the context is done or the owner's done channel closes.
type Unbounded struct {
	mu     sync.Mutex
	items  []types.Notification
	head   int
	ready  chan struct{}
	closed bool
}

var _ types.NotificationQueue = (*Unbounded)(nil)

// New creates an empty queue.
func New() *Unbounded {
	return &Unbounded{ready: make(chan struct{}, 1)}
}

// Queue appends n. It fails with types.ErrReaderClosed once the queue is closed.
func (q *Unbounded) Queue(_ context.Context, n types.Notification) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return types.ErrReaderClosed
	}
	q.items = append(q.items, n)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}

	return nil
}

// Pop removes and returns the oldest notification.
//
// Parameters:
//   - ctx: Cancels the wait
//   - done: Owner shutdown signal; nil never fires
//
// Returns:
//   - types.Notification: The oldest notification
//   - error: types.ErrReaderClosed after Close, types.ErrClientClosed when done
//     fires, or the context error
func (q *Unbounded) Pop(ctx context.Context, done <-chan struct{}) (types.Notification, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return types.Notification{}, types.ErrReaderClosed
		}
		if q.head < len(q.items) {
			n := q.items[q.head]
			q.items[q.head] = types.Notification{}
			q.head++
			if q.head == len(q.items) {
				q.items = q.items[:0]
				q.head = 0
			}
			q.mu.Unlock()

			return n, nil
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-done:
			return types.Notification{}, types.ErrClientClosed
		case <-ctx.Done():
			return types.Notification{}, ctx.Err()
		}
	}
}

// Len returns the number of pending notifications.
func (q *Unbounded) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items) - q.head
}

// Close discards pending notifications and wakes the consumer. It is idempotent.
func (q *Unbounded) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = nil
	q.head = 0
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}
