package opcsub

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/opcsub/internal/hooks"
	"github.com/arloliu/opcsub/internal/logging"
	"github.com/arloliu/opcsub/internal/metrics"
	"github.com/arloliu/opcsub/internal/virtual"
	"github.com/arloliu/opcsub/strategy"
	"github.com/arloliu/opcsub/types"
)

// Sync failure operations reported to metrics and hooks.
const (
	opRemove = "remove"
	opLimits = "limits"
	opAdd    = "add"
	opUpdate = "update"
)

// Client multiplexes registrations onto virtual subscriptions of one session.
//
// Registrations that share SubscriptionOptions are grouped into one virtual
// subscription, which spreads their monitored items over as many physical
// subscriptions as the server's per-subscription limit requires. A background
// loop reconciles the registration table with the session: every change to the
// table, or to a registration's configuration, schedules a debounced sync cycle.
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - Sync cycles run one at a time on the client's own goroutine
//   - The registration table lock is never held across session calls
//
// Lifecycle:
//   - Create with NewClient(); the sync loop starts immediately
//   - Register queues (or use a Subscriber to get Readers)
//   - Call Close() to release every physical subscription
type Client struct {
	cfg      Config
	session  Session
	strategy PartitionStrategy
	hooks    *Hooks
	metrics  MetricsCollector
	logger   Logger

	state  atomic.Int32 // ClientState
	signal chan struct{}

	// mu guards the registration table, the materialized virtual subscriptions
	// and the retry timer.
	mu            sync.Mutex
	registrations map[NotificationQueue]*virtual.Registration
	subscriptions map[SubscriptionOptions]*virtual.Subscription
	nextSeq       uint64
	retryTimer    *time.Timer
	retryAt       time.Time
	retryGen      uint64
	closed        bool

	// Owned by the sync goroutine.
	lastConnected bool
	failed        map[SubscriptionOptions]bool

	ctx    context.Context //nolint:containedctx // lifetime of the sync loop
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a Client and starts its sync loop.
//
// Returns a concrete *Client struct following the "accept interfaces, return structs" principle.
//
// Parameters:
//   - cfg: Configuration; missing values take defaults (modified in place)
//   - session: Session the physical subscriptions live on
//   - opts: Optional configuration (hooks, metrics, logger, partition strategy)
//
// Returns:
//   - *Client: Running client
//   - error: Validation error if configuration is invalid
//
// Example:
//
//	cfg := opcsub.DefaultConfig()
//	client, err := opcsub.NewClient(&cfg, uaclient.New(c, uaclient.Config{}))
//	if err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
func NewClient(cfg *Config, session Session, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if session == nil {
		return nil, ErrSessionRequired
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	options := &clientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	loggerInstance := logging.OrNop(options.logger)
	cfg.ValidateWithWarnings(loggerInstance)

	hooksInstance := hooks.WithDefaults(options.hooks)

	strategyInstance := options.strategy
	if strategyInstance == nil {
		strategyInstance = strategy.NewBagPacked()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		cfg:           *cfg,
		session:       session,
		strategy:      strategyInstance,
		hooks:         &hooksInstance,
		metrics:       metrics.OrNop(options.metrics),
		logger:        loggerInstance,
		signal:        make(chan struct{}, 1),
		registrations: make(map[NotificationQueue]*virtual.Registration),
		subscriptions: make(map[SubscriptionOptions]*virtual.Subscription),
		failed:        make(map[SubscriptionOptions]bool),
		ctx:           ctx,
		cancel:        cancel,
	}
	c.state.Store(int32(ClientStateIdle))

	c.wg.Add(1)
	go c.loop()

	return c, nil
}

// Register adds a registration delivering notifications for source's items to queue.
//
// The registration is applied asynchronously by the next sync cycle. A queue
// can be registered once at a time; it is the registration's identity.
//
// Parameters:
//   - source: Live subscription configuration
//   - queue: Notification destination (must be comparable)
//
// Returns:
//   - *Registration: Handle whose Close removes the registration
//   - error: ErrSourceRequired, ErrQueueRequired, ErrQueueNotComparable,
//     ErrSubscriptionOptionsRequired, ErrAlreadyRegistered or ErrClientClosed
func (c *Client) Register(source ConfigSource, queue NotificationQueue) (*Registration, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if queue == nil {
		return nil, ErrQueueRequired
	}
	if !reflect.TypeOf(queue).Comparable() {
		return nil, ErrQueueNotComparable
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	if _, ok := c.registrations[queue]; ok {
		return nil, ErrAlreadyRegistered
	}

	c.nextSeq++
	reg, err := virtual.NewRegistration(uuid.NewString(), c.nextSeq, source, queue, c.trigger)
	if err != nil {
		return nil, err
	}
	c.registrations[queue] = reg
	c.metrics.SetRegistrations(len(c.registrations))
	c.trigger()

	c.logger.Debug("registration added", "registration", reg.ID())

	return &Registration{client: c, reg: reg}, nil
}

// TriggerSync schedules a sync cycle.
//
// Useful after the session reconnected, since the client does not observe
// connectivity on its own.
func (c *Client) TriggerSync() {
	c.trigger()
}

// State returns the state of the sync loop.
//
// Returns:
//   - ClientState: Current state
func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

// WaitState waits for the client to reach the expected state within the timeout period.
//
// The returned channel receives exactly one value (nil, or context.DeadlineExceeded
// on timeout) and is then closed.
//
// Parameters:
//   - expectedState: The state to wait for
//   - timeout: Maximum duration to wait for the state
//
// Returns:
//   - <-chan error: A channel that receives the result
//
// Example:
//
//	if err := <-client.WaitState(opcsub.ClientStateIdle, 5*time.Second); err != nil {
//	    return fmt.Errorf("sync did not settle: %w", err)
//	}
func (c *Client) WaitState(expectedState ClientState, timeout time.Duration) <-chan error {
	ch := make(chan error, 1)

	go func() {
		defer close(ch)

		if c.State() == expectedState {
			ch <- nil
			return
		}

		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if c.State() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

// RegistrationCount returns the number of live registrations.
func (c *Client) RegistrationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.registrations)
}

// VirtualSubscriptionCount returns the number of materialized virtual subscriptions.
func (c *Client) VirtualSubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.subscriptions)
}

// PhysicalSubscriptionCount returns the number of physical subscriptions across
// all virtual subscriptions.
func (c *Client) PhysicalSubscriptionCount() int {
	c.mu.Lock()
	subs := make([]*virtual.Subscription, 0, len(c.subscriptions))
	for _, vs := range c.subscriptions {
		subs = append(subs, vs)
	}
	c.mu.Unlock()

	total := 0
	for _, vs := range subs {
		total += vs.PhysicalCount()
	}

	return total
}

// Close stops the sync loop and releases every physical subscription.
//
// Safe to call multiple times; later calls return nil. When ctx carries no
// deadline, Config.ShutdownTimeout bounds the shutdown.
//
// Parameters:
//   - ctx: Context for shutdown timeout
//
// Returns:
//   - error: Joined subscription close errors, or the context error on timeout
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state.Store(int32(ClientStateClosed))

	regs := make([]*virtual.Registration, 0, len(c.registrations))
	for _, r := range c.registrations {
		regs = append(regs, r)
	}
	clear(c.registrations)
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.mu.Unlock()

	c.cancel()
	for _, r := range regs {
		r.Close()
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ShutdownTimeout)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Error("shutdown timeout exceeded, sync loop may still be running")
		shutdownErr = ctx.Err()
	}

	c.mu.Lock()
	subs := make([]*virtual.Subscription, 0, len(c.subscriptions))
	for _, vs := range c.subscriptions {
		subs = append(subs, vs)
	}
	clear(c.subscriptions)
	c.mu.Unlock()

	errs := []error{shutdownErr}
	for _, vs := range subs {
		if err := vs.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", vs.Name(), err))
		}
	}
	c.metrics.SetRegistrations(0)
	c.metrics.SetVirtualSubscriptions(0)

	c.logger.Info("client closed", "subscriptions", len(subs))

	return errors.Join(errs...)
}

// done is closed when the client shuts down.
func (c *Client) done() <-chan struct{} {
	return c.ctx.Done()
}

// trigger schedules a sync cycle without blocking.
func (c *Client) trigger() {
	if c.State() == ClientStateClosed {
		return
	}
	c.state.CompareAndSwap(int32(ClientStateIdle), int32(ClientStateSyncScheduled))

	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// unregister removes reg if it is still the registered owner of its queue.
func (c *Client) unregister(reg *virtual.Registration) {
	c.mu.Lock()
	removed := false
	if cur, ok := c.registrations[reg.Queue()]; ok && cur == reg {
		delete(c.registrations, reg.Queue())
		c.metrics.SetRegistrations(len(c.registrations))
		removed = true
	}
	c.mu.Unlock()

	reg.Close()
	if removed {
		c.logger.Debug("registration removed", "registration", reg.ID())
		c.trigger()
	}
}

// loop runs debounced sync cycles until the client is closed.
func (c *Client) loop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.signal:
		}

		if c.cfg.SyncDebounce > 0 {
			timer := time.NewTimer(c.cfg.SyncDebounce)
			select {
			case <-c.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}

		// signals received while debouncing are covered by this cycle
		select {
		case <-c.signal:
		default:
		}

		c.runSync(c.ctx)
	}
}

// runSync runs one sync cycle and reports it.
func (c *Client) runSync(ctx context.Context) {
	if !c.setState(ClientStateSyncing) {
		return
	}

	start := time.Now()
	summary := c.sync(ctx, c.session.IsConnected())
	summary.Elapsed = time.Since(start)

	if ctx.Err() != nil {
		return
	}

	if summary.RetryIn > 0 {
		c.scheduleRetry(summary.RetryIn)
	}

	c.metrics.RecordSyncDuration(summary.Elapsed.Seconds())
	c.metrics.RecordSyncChanges(summary.Removed, summary.Added, summary.Updated)
	c.metrics.SetVirtualSubscriptions(c.VirtualSubscriptionCount())

	if summary.Changed() {
		c.logger.Info("virtual subscriptions synchronized",
			"removed", summary.Removed,
			"added", summary.Added,
			"updated", summary.Updated,
			"elapsed", summary.Elapsed,
		)
	}

	if err := c.hooks.OnSyncCompleted(ctx, summary); err != nil {
		c.logger.Error("sync completed hook error", "error", err)
	}

	next := ClientStateIdle
	if len(c.signal) > 0 || c.retryPending() {
		next = ClientStateSyncScheduled
	}
	c.setState(next)
}

// sync reconciles the registration table with the materialized virtual subscriptions.
//
// Removals are applied even while disconnected; additions and updates need the
// session. Every failure is isolated to its group and turned into a retry delay
// in the returned summary.
func (c *Client) sync(ctx context.Context, connected bool) types.SyncSummary {
	var summary types.SyncSummary

	groups, order, removed, existing := c.snapshot()

	// Step 1: dispose removed groups concurrently
	var wg sync.WaitGroup
	for _, vs := range removed {
		delete(c.failed, vs.Options())
		wg.Add(1)
		go func() {
			defer wg.Done()

			opCtx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
			defer cancel()
			if err := vs.Close(opCtx); err != nil {
				c.reportError(ctx, opRemove, fmt.Errorf("failed to close virtual subscription %s: %w", vs.Name(), err))
			}
		}()
	}
	wg.Wait()
	summary.Removed = len(removed)

	if !connected {
		c.lastConnected = false
		if len(groups) > 0 {
			c.logger.Debug("session not connected, postponing sync", "retry_in", c.cfg.DisconnectedRetryDelay)
			summary.RetryIn = c.cfg.DisconnectedRetryDelay
		}

		return summary
	}
	if len(groups) == 0 {
		c.lastConnected = true
		return summary
	}

	// Step 2: fetch server limits
	limCtx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	limits, err := c.session.OperationLimits(limCtx)
	cancel()
	if err != nil {
		c.reportError(ctx, opLimits, fmt.Errorf("failed to read operation limits: %w", err))
		summary.RetryIn = c.cfg.RetryDelay

		return summary
	}

	reconnected := !c.lastConnected
	c.lastConnected = true

	// Step 3: additions and updates, in registration order of each group's first member
	for _, key := range order {
		snaps := groups[key]

		vs, ok := existing[key]
		if !ok {
			vs = virtual.New(virtual.Config{
				Options:                  key,
				Factory:                  c.session,
				Strategy:                 c.strategy,
				DefaultMaxMonitoredItems: c.cfg.DefaultMaxMonitoredItems,
				Logger:                   c.logger,
				Metrics:                  c.metrics,
			})
			if !c.attach(ctx, key, vs) {
				return summary
			}

			if err := c.syncGroup(ctx, vs, snaps, limits); err != nil {
				c.failed[key] = true
				c.reportError(ctx, opAdd, fmt.Errorf("failed to create virtual subscription %s: %w", vs.Name(), err))
				summary.RetryIn = c.cfg.RetryDelay

				continue
			}
			delete(c.failed, key)
			summary.Added++

			continue
		}

		if !c.failed[key] && !reconnected && !needsUpdate(vs, snaps) {
			continue
		}
		if err := c.syncGroup(ctx, vs, snaps, limits); err != nil {
			c.failed[key] = true
			c.reportError(ctx, opUpdate, fmt.Errorf("failed to update virtual subscription %s: %w", vs.Name(), err))
			summary.RetryIn = c.cfg.RetryDelay

			continue
		}
		delete(c.failed, key)
		summary.Updated++
	}

	return summary
}

// snapshot captures the registration table, groups it by subscription options
// and detaches virtual subscriptions whose group disappeared.
//
// Returns:
//   - groups: Snapshots per options key, in registration order
//   - order: Keys ordered by their first registration
//   - removed: Detached virtual subscriptions to dispose
//   - existing: Virtual subscriptions that survive this cycle
func (c *Client) snapshot() (map[SubscriptionOptions][]virtual.Snapshot, []SubscriptionOptions, []*virtual.Subscription, map[SubscriptionOptions]*virtual.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	regs := make([]*virtual.Registration, 0, len(c.registrations))
	for _, r := range c.registrations {
		regs = append(regs, r)
	}
	slices.SortFunc(regs, func(a, b *virtual.Registration) int {
		return cmp.Compare(a.Seq(), b.Seq())
	})

	groups := make(map[SubscriptionOptions][]virtual.Snapshot)
	var order []SubscriptionOptions
	for _, r := range regs {
		snap := r.Snapshot()
		if snap.Options == nil {
			c.logger.Warn("registration has no subscription options, skipping", "registration", r.ID())
			continue
		}
		key := *snap.Options
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], snap)
	}

	var removed []*virtual.Subscription
	existing := make(map[SubscriptionOptions]*virtual.Subscription, len(c.subscriptions))
	for key, vs := range c.subscriptions {
		if _, ok := groups[key]; ok {
			existing[key] = vs
			continue
		}
		removed = append(removed, vs)
		delete(c.subscriptions, key)
	}

	return groups, order, removed, existing
}

// attach publishes a new virtual subscription; it fails once the client is closed.
func (c *Client) attach(ctx context.Context, key SubscriptionOptions, vs *virtual.Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		_ = vs.Close(ctx)
		return false
	}
	c.subscriptions[key] = vs

	return true
}

// syncGroup pushes snaps to vs and marks them synced on success.
func (c *Client) syncGroup(ctx context.Context, vs *virtual.Subscription, snaps []virtual.Snapshot, limits types.OperationLimits) error {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	if err := vs.Sync(opCtx, snaps, limits); err != nil {
		return err
	}
	for _, s := range snaps {
		s.Registration.MarkSynced(s.Version)
	}

	return nil
}

// needsUpdate reports whether a surviving group changed since its last sync.
func needsUpdate(vs *virtual.Subscription, snaps []virtual.Snapshot) bool {
	members := vs.Members()
	if len(members) != len(snaps) {
		return true
	}
	for i, s := range snaps {
		if s.Registration.Dirty() || members[i] != s.Registration.ID() {
			return true
		}
	}

	return false
}

// scheduleRetry arms the retry timer unless an earlier retry is already pending.
func (c *Client) scheduleRetry(d time.Duration) {
	at := time.Now().Add(d)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.retryTimer != nil && !c.retryAt.After(at) {
		return
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}

	c.retryGen++
	gen := c.retryGen
	c.retryAt = at
	c.retryTimer = time.AfterFunc(d, func() {
		c.mu.Lock()
		if c.retryGen == gen {
			c.retryTimer = nil
			c.retryAt = time.Time{}
		}
		c.mu.Unlock()

		c.trigger()
	})

	c.logger.Debug("sync retry scheduled", "retry_in", d)
}

func (c *Client) retryPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.retryTimer != nil
}

// setState moves the loop state unless the client is closed.
func (c *Client) setState(to ClientState) bool {
	for {
		cur := c.state.Load()
		if ClientState(cur) == ClientStateClosed {
			return false
		}
		if c.state.CompareAndSwap(cur, int32(to)) { //nolint:gosec // ClientState values are a controlled enum
			return true
		}
	}
}

// reportError records an isolated sync failure.
func (c *Client) reportError(ctx context.Context, op string, err error) {
	c.metrics.RecordSyncFailure(op)
	c.logger.Error("sync operation failed", "op", op, "error", err)

	if hookErr := c.hooks.OnError(ctx, err); hookErr != nil {
		c.logger.Error("error hook failed", "error", hookErr)
	}
}

// Registration is the handle of a Client registration.
type Registration struct {
	client *Client
	reg    *virtual.Registration
	once   sync.Once
}

// ID returns the unique registration id.
func (r *Registration) ID() string {
	return r.reg.ID()
}

// Close removes the registration and schedules a sync cycle.
//
// Safe to call multiple times, and after the client was closed.
func (r *Registration) Close() error {
	r.once.Do(func() {
		r.client.unregister(r.reg)
	})

	return nil
}
