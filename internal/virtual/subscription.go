package virtual

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/arloliu/opcsub/internal/logging"
	"github.com/arloliu/opcsub/internal/metrics"
	"github.com/arloliu/opcsub/types"
)

// DefaultMaxMonitoredItems is the per-subscription item cap used when the server
// reports no limit.
const DefaultMaxMonitoredItems = 65536

// Drop reasons reported to metrics.
const (
	dropUnknownHandle = "unknown_handle"
	dropQueueError    = "queue_error"
)

// Config configures a Subscription.
type Config struct {
	// Options is the subscription configuration shared by all registrations.
	Options types.SubscriptionOptions

	// Factory creates physical subscriptions.
	Factory types.SubscriptionFactory

	// Strategy partitions monitored items.
	Strategy types.PartitionStrategy

	// DefaultMaxMonitoredItems replaces a zero server limit (DefaultMaxMonitoredItems when 0).
	DefaultMaxMonitoredItems int

	Logger  types.Logger
	Metrics types.MetricsCollector
}

// route is the destination of one monitored item.
type route struct {
	registration *Registration
	name         string
	nodeID       string
}

// Subscription is a virtual subscription.
//
// Sync runs under an exclusive lock; notification routing takes the read lock,
// so routing never observes a half-applied partitioning. Physical subscriptions
// are closed only after the lock is released, since closing waits for their
// notification dispatch to finish.
type Subscription struct {
	opts     types.SubscriptionOptions
	name     string
	factory  types.SubscriptionFactory
	strategy types.PartitionStrategy
	fallback int
	logger   types.Logger
	metrics  types.MetricsCollector

	mu            sync.RWMutex
	registrations []*Registration
	physical      []types.PhysicalSubscription
	routes        map[types.PhysicalSubscription]map[uint32]route
	closed        bool
}

var _ types.NotificationHandler = (*Subscription)(nil)

// New creates an empty virtual subscription. No physical subscription exists
// until the first Sync.
func New(cfg Config) *Subscription {
	fallback := cfg.DefaultMaxMonitoredItems
	if fallback <= 0 {
		fallback = DefaultMaxMonitoredItems
	}

	return &Subscription{
		opts:     cfg.Options,
		name:     cfg.Options.String(),
		factory:  cfg.Factory,
		strategy: cfg.Strategy,
		fallback: fallback,
		logger:   logging.OrNop(cfg.Logger),
		metrics:  metrics.OrNop(cfg.Metrics),
		routes:   make(map[types.PhysicalSubscription]map[uint32]route),
	}
}

// Options returns the subscription configuration key.
func (s *Subscription) Options() types.SubscriptionOptions {
	return s.opts
}

// Name returns the label used in logs and notifications.
func (s *Subscription) Name() string {
	return s.name
}

// PhysicalCount returns the current number of physical subscriptions.
func (s *Subscription) PhysicalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.physical)
}

// Members returns the ids of the registrations assigned by the last Sync.
func (s *Subscription) Members() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.registrations))
	for i, r := range s.registrations {
		ids[i] = r.ID()
	}

	return ids
}

// Sync re-partitions the snapshots' items over physical subscriptions.
//
// The physical subscription list grows or shrinks (from the tail) to the
// partition count, then every partition is pushed as the authoritative item set
// of its physical subscription and the routing table is rebuilt from the results.
// A failing partition does not stop the others; the joined error is returned so
// the caller can retry.
//
// Parameters:
//   - ctx: Context for session calls
//   - snapshots: Registrations of this group, in a deterministic order
//   - limits: Server operation limits
//
// Returns:
//   - error: Non-nil when any session call failed
func (s *Subscription) Sync(ctx context.Context, snapshots []Snapshot, limits types.OperationLimits) error {
	s.mu.Lock()
	excess, err := s.syncLocked(ctx, snapshots, limits)
	s.mu.Unlock()

	// Closing waits for the physical subscription's dispatcher, which may be
	// blocked on s.mu in a routing handler.
	for _, sub := range excess {
		if cerr := sub.Close(ctx); cerr != nil {
			s.logger.Warn("failed to close excess physical subscription",
				"subscription", s.name, "error", cerr)
		}
	}

	return err
}

// syncLocked applies snapshots and returns the detached excess physical
// subscriptions. The caller holds s.mu and closes them after releasing it.
func (s *Subscription) syncLocked(ctx context.Context, snapshots []Snapshot, limits types.OperationLimits) ([]types.PhysicalSubscription, error) {
	if s.closed {
		return nil, types.ErrClientClosed
	}

	maxItems := int(limits.MaxMonitoredItemsPerSubscription)
	if maxItems <= 0 {
		maxItems = s.fallback
	}

	registrations := make([]*Registration, len(snapshots))
	sets := make([]types.ItemSet, len(snapshots))
	byID := make(map[string]*Registration, len(snapshots))
	for i, snap := range snapshots {
		registrations[i] = snap.Registration
		sets[i] = snap.Items
		byID[snap.Registration.ID()] = snap.Registration
	}
	s.registrations = registrations

	partitions := s.strategy.Partition(sets, maxItems)
	if len(partitions) == 0 && len(snapshots) > 0 {
		// registrations without items still receive keep-alives
		partitions = []types.Partition{{}}
	}

	for len(s.physical) < len(partitions) {
		sub, err := s.factory.AddSubscription(ctx, s.opts, s)
		if err != nil {
			return nil, fmt.Errorf("failed to add physical subscription %d: %w", len(s.physical), err)
		}
		s.physical = append(s.physical, sub)
	}

	var excess []types.PhysicalSubscription
	if len(s.physical) > len(partitions) {
		excess = slices.Clone(s.physical[len(partitions):])
		s.physical = s.physical[:len(partitions)]
		for _, sub := range excess {
			delete(s.routes, sub)
		}
	}

	var errs []error
	routes := make(map[types.PhysicalSubscription]map[uint32]route, len(partitions))
	totalItems := 0
	for i, p := range partitions {
		sub := s.physical[i]
		totalItems += p.Len()

		specs := make([]types.MonitoredItemSpec, p.Len())
		for j, it := range p.Items {
			specs[j] = types.MonitoredItemSpec{Key: itemKey(it.Owner, it.Name), Options: it.Options}
		}

		results, err := sub.UpdateMonitoredItems(ctx, specs)
		if err != nil {
			errs = append(errs, fmt.Errorf("partition %d: %w", i, err))
			// keep the previous routes so live items still reach their owners
			if prev, ok := s.routes[sub]; ok {
				routes[sub] = prev
			}

			continue
		}

		table := make(map[uint32]route, len(results))
		failed := 0
		for j, res := range results {
			if j >= len(p.Items) {
				break
			}
			if res.Status.IsBad() {
				failed++
				continue
			}
			it := p.Items[j]
			table[res.Handle] = route{registration: byID[it.Owner], name: it.Name, nodeID: it.Options.NodeID}
		}
		if failed > 0 {
			s.logger.Warn("monitored items rejected by server",
				"subscription", s.name, "partition", i, "failed", failed, "items", p.Len())
		}
		routes[sub] = table
	}
	s.routes = routes

	s.metrics.RecordRepartition(len(partitions), totalItems)
	s.logger.Debug("virtual subscription synchronized",
		"subscription", s.name, "registrations", len(registrations),
		"partitions", len(partitions), "items", totalItems)

	return excess, errors.Join(errs...)
}

// Close releases every physical subscription. It is idempotent.
func (s *Subscription) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	physical := s.physical
	s.physical = nil
	s.registrations = nil
	s.routes = make(map[types.PhysicalSubscription]map[uint32]route)
	s.mu.Unlock()

	var errs []error
	for _, sub := range physical {
		if err := sub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// delivery is one batched notification for one destination queue.
type delivery struct {
	queue types.NotificationQueue
	n     types.Notification
}

// OnKeepAlive fans a keep-alive out to every assigned registration.
func (s *Subscription) OnKeepAlive(ctx context.Context, _ types.PhysicalSubscription, ka types.KeepAlive) {
	s.mu.RLock()
	deliveries := make([]delivery, 0, len(s.registrations))
	for _, r := range s.registrations {
		deliveries = append(deliveries, delivery{queue: r.Queue(), n: s.notification(types.KindKeepAlive, ka.PublishHeader, types.PublishStateKeepAlive)})
	}
	s.mu.RUnlock()

	s.deliver(ctx, deliveries)
}

// OnDataChange routes data changes to their owners, one notification per queue.
func (s *Subscription) OnDataChange(ctx context.Context, sub types.PhysicalSubscription, dc types.DataChange) {
	s.mu.RLock()
	table := s.routes[sub]
	b := newBatcher()
	dropped := 0
	for _, it := range dc.Items {
		rt, ok := table[it.Handle]
		if !ok || rt.registration == nil {
			dropped++
			s.logger.Debug("dropping data change for unknown monitored item",
				"subscription", s.name, "handle", it.Handle)

			continue
		}
		b.add(rt.registration, types.ItemNotification{Name: rt.name, NodeID: rt.nodeID, Value: it.Value})
	}
	deliveries := b.deliveries(func() types.Notification {
		return s.notification(types.KindDataChanges, dc.PublishHeader, types.PublishStateNone)
	})
	s.mu.RUnlock()

	if dropped > 0 {
		s.metrics.RecordNotificationsDropped(dropUnknownHandle, dropped)
	}
	s.deliver(ctx, deliveries)
}

// OnEvent routes events to their owners, one notification per queue.
func (s *Subscription) OnEvent(ctx context.Context, sub types.PhysicalSubscription, ev types.EventBatch) {
	s.mu.RLock()
	table := s.routes[sub]
	b := newBatcher()
	dropped := 0
	for _, e := range ev.Events {
		rt, ok := table[e.Handle]
		if !ok || rt.registration == nil {
			dropped++
			s.logger.Debug("dropping event for unknown monitored item",
				"subscription", s.name, "handle", e.Handle)

			continue
		}
		b.add(rt.registration, types.ItemNotification{Name: rt.name, NodeID: rt.nodeID, EventFields: e.Fields})
	}
	deliveries := b.deliveries(func() types.Notification {
		return s.notification(types.KindEvent, ev.PublishHeader, types.PublishStateNone)
	})
	s.mu.RUnlock()

	if dropped > 0 {
		s.metrics.RecordNotificationsDropped(dropUnknownHandle, dropped)
	}
	s.deliver(ctx, deliveries)
}

func (s *Subscription) notification(kind types.NotificationKind, h types.PublishHeader, state types.PublishState) types.Notification {
	return types.Notification{
		Kind:             kind,
		SubscriptionName: s.name,
		SequenceNumber:   h.SequenceNumber,
		PublishTime:      h.PublishTime,
		State:            state,
		StringTable:      h.StringTable,
	}
}

// deliver hands notifications to their queues in order. It runs without the
// subscription lock so a slow queue cannot stall a concurrent Sync.
func (s *Subscription) deliver(ctx context.Context, deliveries []delivery) {
	if len(deliveries) == 0 {
		return
	}

	delivered := 0
	for _, d := range deliveries {
		if err := d.queue.Queue(ctx, d.n); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.metrics.RecordNotificationsDropped(dropQueueError, len(d.n.Items))
			s.logger.Warn("failed to queue notification",
				"subscription", s.name, "kind", d.n.Kind.String(), "error", err)

			continue
		}
		delivered++
	}
	s.metrics.RecordNotificationsDelivered(metricKind(deliveries[0].n.Kind), delivered)
}

// batcher groups items by registration, keeping first-appearance order.
type batcher struct {
	order []*Registration
	items map[*Registration][]types.ItemNotification
}

func newBatcher() *batcher {
	return &batcher{items: make(map[*Registration][]types.ItemNotification)}
}

func (b *batcher) add(r *Registration, it types.ItemNotification) {
	if _, ok := b.items[r]; !ok {
		b.order = append(b.order, r)
	}
	b.items[r] = append(b.items[r], it)
}

func (b *batcher) deliveries(base func() types.Notification) []delivery {
	out := make([]delivery, 0, len(b.order))
	for _, r := range b.order {
		n := base()
		n.Items = b.items[r]
		out = append(out, delivery{queue: r.Queue(), n: n})
	}

	return out
}

// itemKey identifies an item within a physical subscription.
func itemKey(owner, name string) string {
	return owner + "/" + name
}

func metricKind(k types.NotificationKind) string {
	switch k {
	case types.KindKeepAlive:
		return "keep_alive"
	case types.KindDataChanges:
		return "data_changes"
	case types.KindEvent:
		return "event"
	case types.KindPeriodicData:
		return "periodic_data"
	default:
		return "unknown"
	}
}
