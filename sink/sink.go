package sink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/opcsub/internal/logging"
	"github.com/arloliu/opcsub/internal/natsutil"
	"github.com/arloliu/opcsub/types"
)

// Message headers set on every published notification.
const (
	HeaderContentType  = "Content-Type"
	HeaderSubscription = "Opc-Subscription"
	HeaderSequence     = "Opc-Sequence"
)

// ErrClosed is returned by Queue after Close.
var ErrClosed = errors.New("sink closed")

// publishFunc sends one message on the underlying transport.
type publishFunc func(ctx context.Context, msg *nats.Msg) error

// Sink is a NotificationQueue publishing to NATS.
type Sink struct {
	cfg     Config
	publish publishFunc
	backoff *backoff
	logger  types.Logger
	closed  atomic.Bool

	published atomic.Uint64
	failed    atomic.Uint64
}

var _ types.NotificationQueue = (*Sink)(nil)

// NewNATS creates a sink publishing with core NATS.
//
// Core NATS publishes are fire and forget: a nil error means the message was
// buffered by the connection, not that a subscriber received it.
//
// Parameters:
//   - nc: Connected NATS connection
//   - cfg: Sink configuration; zero fields take defaults
//
// Returns:
//   - *Sink: Sink ready for registration
//   - error: types.ErrInvalidConfig on invalid configuration
func NewNATS(nc *nats.Conn, cfg Config) (*Sink, error) {
	if nc == nil {
		return nil, fmt.Errorf("%w: nats connection is required", types.ErrInvalidConfig)
	}

	return newSink(cfg, func(_ context.Context, msg *nats.Msg) error {
		return nc.PublishMsg(msg)
	})
}

// NewJetStream creates a sink publishing to JetStream and waiting for the ack.
//
// A stream capturing "<Prefix>.>" must exist.
//
// Parameters:
//   - js: JetStream context
//   - cfg: Sink configuration; zero fields take defaults
//
// Returns:
//   - *Sink: Sink ready for registration
//   - error: types.ErrInvalidConfig on invalid configuration
func NewJetStream(js jetstream.JetStream, cfg Config) (*Sink, error) {
	if js == nil {
		return nil, fmt.Errorf("%w: jetstream context is required", types.ErrInvalidConfig)
	}

	return newSink(cfg, func(ctx context.Context, msg *nats.Msg) error {
		_, err := js.PublishMsg(ctx, msg)
		return err
	})
}

func newSink(cfg Config, publish publishFunc) (*Sink, error) {
	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Sink{
		cfg:     cfg,
		publish: publish,
		backoff: newBackoff(cfg),
		logger:  logging.OrNop(cfg.Logger),
	}, nil
}

// Subject returns the subject a notification is published on.
func (s *Sink) Subject(n types.Notification) string {
	return s.cfg.Prefix + "." + strings.ToLower(n.Kind.String())
}

// Queue encodes and publishes n, retrying transient failures.
func (s *Sink) Queue(ctx context.Context, n types.Notification) error {
	if s.closed.Load() {
		return ErrClosed
	}

	data, err := s.cfg.Codec.Encode(n)
	if err != nil {
		s.failed.Add(1)
		return fmt.Errorf("encode notification: %w", err)
	}

	msg := nats.NewMsg(s.Subject(n))
	msg.Data = data
	msg.Header.Set(HeaderContentType, s.cfg.Codec.ContentType())
	msg.Header.Set(HeaderSubscription, n.SubscriptionName)
	msg.Header.Set(HeaderSequence, strconv.FormatUint(uint64(n.SequenceNumber), 10))

	var delay time.Duration
	for attempt := 0; ; attempt++ {
		err = s.publish(ctx, msg)
		if err == nil {
			s.published.Add(1)
			return nil
		}
		if attempt >= s.cfg.MaxRetries || !natsutil.IsTransient(err) || ctx.Err() != nil {
			break
		}

		delay = s.backoff.next(delay)
		s.logger.Debug("publish failed, retrying",
			"subject", msg.Subject,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.failed.Add(1)

			return ctx.Err()
		case <-timer.C:
		}
	}

	s.failed.Add(1)
	s.logger.Warn("publish failed", "subject", msg.Subject, "seq", n.SequenceNumber, "error", err)

	return fmt.Errorf("publish %s: %w", msg.Subject, err)
}

// Published returns the number of notifications published successfully.
func (s *Sink) Published() uint64 {
	return s.published.Load()
}

// Failed returns the number of notifications that could not be published.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

// Close stops accepting notifications. The NATS connection is owned by the caller.
func (s *Sink) Close() error {
	s.closed.Store(true)
	return nil
}
