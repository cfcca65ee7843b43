package opcsub

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/opcsub/internal/queue"
)

// Subscriber issues notification Readers backed by a Client.
//
// Each Reader owns an unbounded queue registered with the client; the caller
// drains it with Reader.Next or Reader.All.
type Subscriber struct {
	client  *Client
	readers *xsync.Map[string, *Reader]
}

// NewSubscriber creates a Subscriber on client.
//
// Parameters:
//   - client: Client the readers register with
//
// Returns:
//   - *Subscriber: Subscriber without readers
func NewSubscriber(client *Client) *Subscriber {
	return &Subscriber{
		client:  client,
		readers: xsync.NewMap[string, *Reader](),
	}
}

// Subscribe registers source and returns a Reader of its notifications.
//
// Parameters:
//   - ctx: Checked before registering; a cancelled context fails the call
//   - source: Live subscription configuration
//
// Returns:
//   - *Reader: Reader delivering notifications in order
//   - error: Context error or any Client.Register error
//
// Example:
//
//	reader, err := sub.Subscribe(ctx, source.NewStatic(cfg))
//	if err != nil {
//	    return err
//	}
//	defer reader.Close()
//	for n := range reader.All(ctx) {
//	    handle(n)
//	}
func (s *Subscriber) Subscribe(ctx context.Context, source ConfigSource) (*Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := &Reader{
		id:         uuid.NewString(),
		queue:      queue.New(),
		done:       s.client.done(),
		subscriber: s,
	}

	reg, err := s.client.Register(source, r.queue)
	if err != nil {
		return nil, err
	}
	r.reg = reg
	s.readers.Store(r.id, r)

	return r, nil
}

// ReaderCount returns the number of open readers.
func (s *Subscriber) ReaderCount() int {
	return s.readers.Size()
}

// Close closes every open reader. The client stays open.
func (s *Subscriber) Close() error {
	var errs []error
	s.readers.Range(func(_ string, r *Reader) bool {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}

		return true
	})

	return errors.Join(errs...)
}

func (s *Subscriber) forget(id string) {
	s.readers.Delete(id)
}
