package sampling

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/arloliu/opcsub/internal/logging"
	"github.com/arloliu/opcsub/internal/metrics"
	"github.com/arloliu/opcsub/types"
)

// Client registers sampled items and owns one Sampler per (rate, max age) pair.
type Client struct {
	reader types.AttributeReader
	cfg    Config
	opts   clientOptions

	ctx    context.Context //nolint:containedctx // lifetime of all samplers
	cancel context.CancelFunc

	mu       sync.Mutex
	samplers map[samplerKey]*Sampler
	nextID   uint64
	closed   bool
}

// New creates a sampling client.
//
// Parameters:
//   - reader: Attribute reader (typically the session)
//   - cfg: Configuration; zero fields take defaults
//   - opts: Optional logger, metrics and clock
//
// Returns:
//   - *Client: Ready client
//   - error: types.ErrSessionRequired or a wrapped types.ErrInvalidConfig
func New(reader types.AttributeReader, cfg Config, opts ...Option) (*Client, error) {
	if reader == nil {
		return nil, types.ErrSessionRequired
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrNop(o.logger)
	o.metrics = metrics.OrNop(o.metrics)
	if o.now == nil {
		o.now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		reader:   reader,
		cfg:      cfg,
		opts:     o,
		ctx:      ctx,
		cancel:   cancel,
		samplers: make(map[samplerKey]*Sampler),
	}, nil
}

// Register starts sampling item into queue.
//
// samplingRate is clamped to the configured floor (1 second by default) and
// maxAge to zero. Items with an identical clamped (rate, max age) pair share one
// Sampler and therefore one read per tick.
//
// Parameters:
//   - name: Item name reported in notifications
//   - item: Node and attribute to read (AttributeValue when AttributeID is 0)
//   - samplingRate: Requested read period
//   - maxAge: Maximum cache age the server may answer with
//   - queue: Notification destination (must be comparable)
//
// Returns:
//   - *Registration: Handle whose Close stops sampling the item
//   - error: Synchronous configuration or lifecycle error
func (c *Client) Register(name string, item types.ReadItem, samplingRate, maxAge time.Duration, queue types.NotificationQueue) (*Registration, error) {
	if queue == nil {
		return nil, types.ErrQueueRequired
	}
	if !reflect.TypeOf(queue).Comparable() {
		return nil, types.ErrQueueNotComparable
	}
	if item.NodeID == "" {
		return nil, fmt.Errorf("%w: node id is required for item %q", types.ErrInvalidConfig, name)
	}
	if item.AttributeID == 0 {
		item.AttributeID = types.AttributeValue
	}

	key := samplerKey{
		rate:   max(samplingRate, c.cfg.MinSamplingRate),
		maxAge: max(maxAge, 0),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, types.ErrClientClosed
	}

	s, ok := c.samplers[key]
	if !ok {
		s = newSampler(key, c.reader, c.cfg.ReadTimeoutRatio, c.opts)
		c.samplers[key] = s
		s.start(c.ctx)
		c.opts.metrics.SetSamplers(len(c.samplers))
	}

	c.nextID++
	it := &sampledItem{id: c.nextID, name: name, item: item, queue: queue}
	s.add(it)

	return &Registration{client: c, sampler: s, id: it.id}, nil
}

// SamplerCount returns the number of active samplers.
func (c *Client) SamplerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.samplers)
}

// Close stops every sampler. It is idempotent.
//
// Parameters:
//   - ctx: Bounds the wait for sampling loops to exit
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	samplers := make([]*Sampler, 0, len(c.samplers))
	for _, s := range c.samplers {
		samplers = append(samplers, s)
	}
	c.samplers = make(map[samplerKey]*Sampler)
	c.mu.Unlock()

	c.cancel()

	var errs []error
	for _, s := range samplers {
		if err := s.stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.opts.metrics.SetSamplers(0)

	return errors.Join(errs...)
}

// remove unregisters one item and disposes its sampler once empty.
func (c *Client) remove(s *Sampler, id uint64) {
	c.mu.Lock()
	if c.closed || c.samplers[s.key] != s {
		c.mu.Unlock()
		return
	}
	empty := s.remove(id)
	if empty {
		delete(c.samplers, s.key)
		c.opts.metrics.SetSamplers(len(c.samplers))
	}
	c.mu.Unlock()

	if empty {
		ctx, cancel := context.WithTimeout(context.Background(), max(s.key.rate, time.Second))
		defer cancel()
		if err := s.stop(ctx); err != nil {
			c.opts.logger.Warn("sampler did not stop in time", "sampler", s.name, "error", err)
		}
	}
}

// Registration is a sampled item registration.
type Registration struct {
	client  *Client
	sampler *Sampler
	id      uint64
	once    sync.Once
}

// Close stops sampling the item. It is idempotent.
func (r *Registration) Close() error {
	r.once.Do(func() {
		r.client.remove(r.sampler, r.id)
	})

	return nil
}
