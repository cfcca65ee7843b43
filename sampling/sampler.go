package sampling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/opcsub/types"
)

// samplerKey groups items that can be read together.
type samplerKey struct {
	rate   time.Duration
	maxAge time.Duration
}

func (k samplerKey) String() string {
	return fmt.Sprintf("sampling(rate=%s,maxAge=%s)", k.rate, k.maxAge)
}

// sampledItem is one registered item of a sampler.
type sampledItem struct {
	id    uint64
	name  string
	item  types.ReadItem
	queue types.NotificationQueue
}

// Sampler reads one group of items periodically.
//
// The item set is copy-on-write: writers (serialized by the owning client)
// publish a new slice, and each read cycle works on the slice it loaded.
type Sampler struct {
	key     samplerKey
	name    string
	reader  types.AttributeReader
	timeout time.Duration
	logger  types.Logger
	metrics types.MetricsCollector
	now     func() time.Time

	items atomic.Pointer[[]*sampledItem]

	// seq is only touched by the sampling goroutine (or a test driving sample directly).
	seq uint32

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newSampler(key samplerKey, reader types.AttributeReader, timeoutRatio float64, opts clientOptions) *Sampler {
	s := &Sampler{
		key:     key,
		name:    key.String(),
		reader:  reader,
		timeout: time.Duration(float64(key.rate) * timeoutRatio),
		logger:  opts.logger,
		metrics: opts.metrics,
		now:     opts.now,
		done:    make(chan struct{}),
	}
	empty := []*sampledItem{}
	s.items.Store(&empty)

	return s
}

// Rate returns the sampling rate.
func (s *Sampler) Rate() time.Duration {
	return s.key.rate
}

// MaxAge returns the max age passed to reads.
func (s *Sampler) MaxAge() time.Duration {
	return s.key.maxAge
}

// Len returns the number of sampled items.
func (s *Sampler) Len() int {
	return len(*s.items.Load())
}

func (s *Sampler) add(it *sampledItem) {
	cur := *s.items.Load()
	next := make([]*sampledItem, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, it)
	s.items.Store(&next)
}

// remove drops the item with id and reports whether the sampler is now empty.
func (s *Sampler) remove(id uint64) bool {
	cur := *s.items.Load()
	next := slices.DeleteFunc(slices.Clone(cur), func(it *sampledItem) bool {
		return it.id == id
	})
	s.items.Store(&next)

	return len(next) == 0
}

func (s *Sampler) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	go s.run(ctx)
}

// stop cancels the loop and waits for it to exit (or for ctx to end).
func (s *Sampler) stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		} else {
			close(s.done)
		}
	})

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sampler) run(ctx context.Context) {
	defer close(s.done)

	s.logger.Debug("sampler started", "sampler", s.name, "rate", s.key.rate, "max_age", s.key.maxAge)
	defer s.logger.Debug("sampler stopped", "sampler", s.name)

	ticker := time.NewTicker(s.key.rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

// sample runs one read cycle and delivers its notifications.
func (s *Sampler) sample(ctx context.Context) {
	items := *s.items.Load()
	if len(items) == 0 {
		return
	}

	req := types.ReadRequest{MaxAge: s.key.maxAge, Items: make([]types.ReadItem, len(items))}
	for i, it := range items {
		req.Items[i] = it.item
	}

	readCtx, cancel := context.WithTimeout(ctx, s.timeout)
	start := s.now()
	values, err := s.reader.Read(readCtx, req)
	end := s.now()
	cancel()

	if ctx.Err() != nil {
		// shutting down
		return
	}
	if err == nil && len(values) != len(items) {
		err = types.NewServiceError(types.StatusBadUnexpectedError,
			fmt.Errorf("read returned %d values for %d items", len(values), len(items)))
	}

	s.seq = types.NextSequenceNumber(s.seq)

	var state types.PublishState
	if err != nil {
		s.metrics.RecordSampleFailure()
		s.logger.Warn("sampling read failed", "sampler", s.name, "items", len(items), "error", err)

		values = errorValues(len(items), types.StatusCodeOf(err), end)
		state = types.PublishStateError
	} else {
		elapsed := end.Sub(start)
		missed := missedTicks(elapsed, s.key.rate)
		s.metrics.RecordSampleCycle(elapsed.Seconds(), missed)
		if missed > 0 {
			state = types.PublishStateOverflow
			for i := range values {
				values[i].Status = values[i].Status.WithOverflow()
			}
		}
	}

	s.deliver(ctx, items, values, state, end)
}

func (s *Sampler) deliver(ctx context.Context, items []*sampledItem, values []types.DataValue, state types.PublishState, publishTime time.Time) {
	order := make([]types.NotificationQueue, 0, 1)
	grouped := make(map[types.NotificationQueue][]types.ItemNotification)
	for i, it := range items {
		if _, ok := grouped[it.queue]; !ok {
			order = append(order, it.queue)
		}
		grouped[it.queue] = append(grouped[it.queue], types.ItemNotification{
			Name:   it.name,
			NodeID: it.item.NodeID,
			Value:  values[i],
		})
	}

	for _, q := range order {
		n := types.Notification{
			Kind:             types.KindPeriodicData,
			SubscriptionName: s.name,
			SequenceNumber:   s.seq,
			PublishTime:      publishTime,
			State:            state,
			Items:            grouped[q],
		}
		if err := q.Queue(ctx, n); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.metrics.RecordNotificationsDropped("queue_error", len(n.Items))
			s.logger.Warn("failed to queue sampled values", "sampler", s.name, "error", err)

			continue
		}
	}
	s.metrics.RecordNotificationsDelivered("periodic_data", len(order))
}

// missedTicks is the number of sampling intervals covered by a read cycle.
//
// A cycle that takes exactly one interval reports one missed tick.
func missedTicks(elapsed, rate time.Duration) int {
	if rate <= 0 || elapsed <= 0 {
		return 0
	}

	return int(math.Round(float64(elapsed) / float64(rate)))
}

func errorValues(n int, code types.StatusCode, at time.Time) []types.DataValue {
	values := make([]types.DataValue, n)
	for i := range values {
		values[i] = types.DataValue{Status: code, ServerTimestamp: at}
	}

	return values
}
