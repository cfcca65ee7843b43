package opcsub

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/arloliu/opcsub/internal/queue"
)

// Reader is the consumer end of one Subscriber registration.
//
// Notifications are kept in an unbounded, order-preserving queue. Producers
// never block on a slow Reader.
type Reader struct {
	id         string
	queue      *queue.Unbounded
	reg        *Registration
	done       <-chan struct{}
	subscriber *Subscriber
	closeOnce  sync.Once
}

// ID returns the reader id.
func (r *Reader) ID() string {
	return r.id
}

// Pending returns the number of queued notifications.
func (r *Reader) Pending() int {
	return r.queue.Len()
}

// Next blocks until a notification is available.
//
// Parameters:
//   - ctx: Cancels the wait
//
// Returns:
//   - Notification: The oldest pending notification
//   - error: ErrReaderClosed, ErrClientClosed or the context error
func (r *Reader) Next(ctx context.Context) (Notification, error) {
	return r.queue.Pop(ctx, r.done)
}

// All returns an infinite sequence of notifications.
//
// The sequence ends when ctx is done, the reader is closed or the client is
// closed; it never ends on its own.
//
// Example:
//
//	for n := range reader.All(ctx) {
//	    fmt.Println(n.Kind, len(n.Items))
//	}
func (r *Reader) All(ctx context.Context) iter.Seq[Notification] {
	return func(yield func(Notification) bool) {
		for {
			n, err := r.Next(ctx)
			if err != nil {
				return
			}
			if !yield(n) {
				return
			}
		}
	}
}

// Close removes the registration and discards pending notifications.
//
// Safe to call multiple times; closing a reader after its client was closed is
// a no-op.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.subscriber.forget(r.id)
		r.queue.Close()
		if r.reg != nil {
			err = r.reg.Close()
		}
	})

	if errors.Is(err, ErrClientClosed) {
		return nil
	}

	return err
}
