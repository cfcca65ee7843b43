package opcsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/opcsub/source"
	opctest "github.com/arloliu/opcsub/testing"
	"github.com/arloliu/opcsub/types"
)

var testOptions = SubscriptionOptions{PublishingInterval: time.Second, KeepAliveCount: 10, LifetimeCount: 30}

type testClient struct {
	*Client
	summaries chan SyncSummary

	mu     sync.Mutex
	errors []error
}

func newTestClient(t *testing.T, session *opctest.FakeSession, mutate func(*Config), opts ...Option) *testClient {
	t.Helper()

	tc := &testClient{summaries: make(chan SyncSummary, 64)}
	hooks := &Hooks{
		OnSyncCompleted: func(_ context.Context, s SyncSummary) error {
			select {
			case tc.summaries <- s:
			default:
			}

			return nil
		},
		OnError: func(_ context.Context, err error) error {
			tc.mu.Lock()
			defer tc.mu.Unlock()
			tc.errors = append(tc.errors, err)

			return nil
		},
	}

	cfg := TestConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	opts = append([]Option{WithHooks(hooks), WithLogger(opctest.NewTestLogger(t))}, opts...)
	c, err := NewClient(&cfg, session, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	tc.Client = c

	return tc
}

func (tc *testClient) nextSummary(t *testing.T) SyncSummary {
	t.Helper()

	select {
	case s := <-tc.summaries:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for sync cycle")
		return SyncSummary{}
	}
}

// summaryWhere drains sync cycles until one satisfies match.
func (tc *testClient) summaryWhere(t *testing.T, match func(SyncSummary) bool) SyncSummary {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-tc.summaries:
			if match(s) {
				return s
			}
		case <-deadline:
			t.Fatal("timed out waiting for matching sync cycle")
			return SyncSummary{}
		}
	}
}

func (tc *testClient) requireNoSummary(t *testing.T, wait time.Duration) {
	t.Helper()

	select {
	case s := <-tc.summaries:
		t.Fatalf("unexpected sync cycle: %+v", s)
	case <-time.After(wait):
	}
}

func (tc *testClient) reportedErrors() []error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	return append([]error(nil), tc.errors...)
}

func itemsConfig(opts SubscriptionOptions, prefix string, n int) SubscriptionConfig {
	items := make(map[string]MonitoredItemOptions, n)
	for i := range n {
		items[fmt.Sprintf("%s%02d", prefix, i)] = MonitoredItemOptions{NodeID: fmt.Sprintf("ns=2;s=%s%02d", prefix, i)}
	}

	return SubscriptionConfig{Options: &opts, Items: items}
}

func TestNewClient(t *testing.T) {
	cfg := TestConfig()

	_, err := NewClient(nil, opctest.NewFakeSession())
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewClient(&cfg, nil)
	require.ErrorIs(t, err, ErrSessionRequired)

	bad := TestConfig()
	bad.RetryDelay = -time.Second
	_, err = NewClient(&bad, opctest.NewFakeSession())
	require.ErrorIs(t, err, ErrInvalidConfig)

	empty := Config{}
	c, err := NewClient(&empty, opctest.NewFakeSession())
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), empty, "defaults are applied in place")
	require.Equal(t, ClientStateIdle, c.State())
	require.NoError(t, c.Close(t.Context()))
}

func TestClient_Register_Errors(t *testing.T) {
	tc := newTestClient(t, opctest.NewFakeSession(), nil)
	src := source.NewStatic(itemsConfig(testOptions, "a", 1))

	_, err := tc.Register(nil, opctest.NewRecordingQueue())
	require.ErrorIs(t, err, ErrSourceRequired)

	_, err = tc.Register(src, nil)
	require.ErrorIs(t, err, ErrQueueRequired)

	_, err = tc.Register(src, funcQueue(nil))
	require.ErrorIs(t, err, ErrQueueNotComparable)

	_, err = tc.Register(source.NewStatic(SubscriptionConfig{}), opctest.NewRecordingQueue())
	require.ErrorIs(t, err, ErrSubscriptionOptionsRequired)

	q := opctest.NewRecordingQueue()
	_, err = tc.Register(src, q)
	require.NoError(t, err)
	_, err = tc.Register(src, q)
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	require.Equal(t, 1, tc.RegistrationCount())
}

func TestClient_RegisterAndRoute(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)

	q := opctest.NewRecordingQueue()
	_, err := tc.Register(source.NewStatic(SubscriptionConfig{
		Options: &testOptions,
		Items: map[string]MonitoredItemOptions{
			"temperature": {NodeID: "ns=2;s=Temperature"},
			"alarms":      {NodeID: "i=2253", EventFields: []string{"Message", "Severity"}},
		},
	}), q)
	require.NoError(t, err)

	s := tc.nextSummary(t)
	require.Equal(t, 1, s.Added)
	require.Zero(t, s.Removed)
	require.Zero(t, s.Updated)
	require.Zero(t, s.RetryIn)

	require.Equal(t, 1, tc.VirtualSubscriptionCount())
	require.Equal(t, 1, tc.PhysicalSubscriptionCount())

	subs := session.Subscriptions()
	require.Len(t, subs, 1)
	require.Equal(t, testOptions, subs[0].Options())
	require.Equal(t, []string{"i=2253", "ns=2;s=Temperature"}, subs[0].NodeIDs())

	subs[0].PublishValues(t.Context(), map[string]any{"ns=2;s=Temperature": 21.5})
	subs[0].PublishEvent(t.Context(), "i=2253", "overheat", uint16(800))
	subs[0].PublishKeepAlive(t.Context())

	ns := q.Notifications()
	require.Len(t, ns, 3)

	require.Equal(t, KindDataChanges, ns[0].Kind)
	require.Equal(t, "temperature", ns[0].Items[0].Name)
	require.InDelta(t, 21.5, ns[0].Items[0].Value.Value, 1e-9)

	require.Equal(t, KindEvent, ns[1].Kind)
	require.Equal(t, "alarms", ns[1].Items[0].Name)
	require.Equal(t, []any{"overheat", uint16(800)}, ns[1].Items[0].EventFields)

	require.Equal(t, KindKeepAlive, ns[2].Kind)
	require.True(t, ns[2].State.Has(types.PublishStateKeepAlive))

	require.NoError(t, <-tc.WaitState(ClientStateIdle, 2*time.Second))
}

func TestClient_RegistrationWithoutItemsGetsKeepAlives(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)

	q := opctest.NewRecordingQueue()
	_, err := tc.Register(source.NewStatic(SubscriptionConfig{Options: &testOptions}), q)
	require.NoError(t, err)

	require.Equal(t, 1, tc.nextSummary(t).Added)
	require.Equal(t, 1, tc.VirtualSubscriptionCount())
	require.Equal(t, 1, tc.PhysicalSubscriptionCount())

	subs := session.Subscriptions()
	require.Len(t, subs, 1)
	require.Zero(t, subs[0].Len())

	subs[0].PublishKeepAlive(t.Context())
	ns := q.Notifications()
	require.Len(t, ns, 1)
	require.Equal(t, KindKeepAlive, ns[0].Kind)
}

func TestClient_DebounceCoalescesTriggers(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, func(c *Config) { c.SyncDebounce = 200 * time.Millisecond })

	for i := range 5 {
		_, err := tc.Register(source.NewStatic(itemsConfig(testOptions, fmt.Sprintf("r%d-", i), 3)), opctest.NewRecordingQueue())
		require.NoError(t, err)
		tc.TriggerSync()
	}
	require.Equal(t, ClientStateSyncScheduled, tc.State())

	s := tc.nextSummary(t)
	require.Equal(t, 1, s.Added)
	require.Equal(t, 1, session.AddSubscriptionCalls())
	require.Equal(t, 1, session.UpdateCalls())
	require.Equal(t, 15, session.Subscriptions()[0].Len())

	tc.requireNoSummary(t, 400*time.Millisecond)

	// an explicit trigger with nothing to do touches no subscription
	tc.TriggerSync()
	s = tc.nextSummary(t)
	require.False(t, s.Changed())
	require.Equal(t, 1, session.UpdateCalls())
}

func TestClient_RemovalDisposesVirtualSubscription(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)

	reg, err := tc.Register(source.NewStatic(itemsConfig(testOptions, "a", 2)), opctest.NewRecordingQueue())
	require.NoError(t, err)
	require.Equal(t, 1, tc.nextSummary(t).Added)
	require.Equal(t, 1, tc.PhysicalSubscriptionCount())

	require.NoError(t, reg.Close())
	require.NoError(t, reg.Close())

	s := tc.nextSummary(t)
	require.Equal(t, 1, s.Removed)
	require.Zero(t, s.Added)
	require.Zero(t, s.Updated)

	require.Zero(t, tc.VirtualSubscriptionCount())
	require.Zero(t, tc.PhysicalSubscriptionCount())
	require.True(t, session.AllSubscriptions()[0].Closed())
	require.Empty(t, session.Subscriptions())
}

func TestClient_ConfigChangeUpdatesOnlyThatGroup(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)

	src := source.NewStatic(itemsConfig(testOptions, "a", 2))
	_, err := tc.Register(src, opctest.NewRecordingQueue())
	require.NoError(t, err)
	require.Equal(t, 1, tc.nextSummary(t).Added)

	src.Update(itemsConfig(testOptions, "a", 3))

	s := tc.nextSummary(t)
	require.Equal(t, SyncSummary{Updated: 1, Elapsed: s.Elapsed}, s)
	require.Equal(t, 3, session.Subscriptions()[0].Len())
	require.Equal(t, 1, session.AddSubscriptionCalls())

	// identical content does not make the registration dirty
	src.Update(itemsConfig(testOptions, "a", 3))
	tc.requireNoSummary(t, 150*time.Millisecond)
}

func TestClient_MovingRegistrationBetweenGroups(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)

	srcA := source.NewStatic(itemsConfig(testOptions, "a", 2))
	_, err := tc.Register(srcA, opctest.NewRecordingQueue())
	require.NoError(t, err)
	_, err = tc.Register(source.NewStatic(itemsConfig(testOptions, "b", 2)), opctest.NewRecordingQueue())
	require.NoError(t, err)
	require.Equal(t, 1, tc.nextSummary(t).Added)
	require.Equal(t, 4, session.Subscriptions()[0].Len())

	fast := testOptions
	fast.PublishingInterval = 100 * time.Millisecond
	srcA.Update(itemsConfig(fast, "a", 2))

	s := tc.nextSummary(t)
	require.Equal(t, 1, s.Added)
	require.Equal(t, 1, s.Updated, "the group that lost a member is resynchronized")
	require.Equal(t, 2, tc.VirtualSubscriptionCount())

	subs := session.Subscriptions()
	require.Len(t, subs, 2)
	require.Equal(t, []string{"ns=2;s=b00", "ns=2;s=b01"}, subs[0].NodeIDs())
	require.Equal(t, fast, subs[1].Options())
	require.Equal(t, []string{"ns=2;s=a00", "ns=2;s=a01"}, subs[1].NodeIDs())
}

func TestClient_FailedAddIsRetried(t *testing.T) {
	session := opctest.NewFakeSession()
	session.FailAddSubscription(1, nil)
	tc := newTestClient(t, session, nil)

	_, err := tc.Register(source.NewStatic(itemsConfig(testOptions, "a", 2)), opctest.NewRecordingQueue())
	require.NoError(t, err)

	s := tc.nextSummary(t)
	require.Zero(t, s.Added)
	require.Equal(t, tc.cfg.RetryDelay, s.RetryIn)
	require.Zero(t, tc.PhysicalSubscriptionCount())

	errs := tc.reportedErrors()
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], opctest.ErrInjected)

	s = tc.nextSummary(t)
	require.Equal(t, 1, s.Updated)
	require.Zero(t, s.RetryIn)
	require.Equal(t, 1, tc.PhysicalSubscriptionCount())
	require.Equal(t, 2, session.AddSubscriptionCalls())
}

func TestClient_FailedUpdateIsRetried(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)

	src := source.NewStatic(itemsConfig(testOptions, "a", 1))
	_, err := tc.Register(src, opctest.NewRecordingQueue())
	require.NoError(t, err)
	require.Equal(t, 1, tc.nextSummary(t).Added)

	session.FailUpdateMonitoredItems(1, nil)
	src.Update(itemsConfig(testOptions, "a", 4))

	s := tc.nextSummary(t)
	require.Zero(t, s.Updated)
	require.Equal(t, tc.cfg.RetryDelay, s.RetryIn)

	s = tc.nextSummary(t)
	require.Equal(t, 1, s.Updated)
	require.Equal(t, 4, session.Subscriptions()[0].Len())
}

func TestClient_LimitsFailureIsRetried(t *testing.T) {
	session := opctest.NewFakeSession()
	session.SetLimitsError(opctest.ErrInjected)
	tc := newTestClient(t, session, nil)

	_, err := tc.Register(source.NewStatic(itemsConfig(testOptions, "a", 1)), opctest.NewRecordingQueue())
	require.NoError(t, err)

	s := tc.nextSummary(t)
	require.Zero(t, s.Added)
	require.Equal(t, tc.cfg.RetryDelay, s.RetryIn)

	session.SetLimitsError(nil)
	tc.summaryWhere(t, func(s SyncSummary) bool { return s.Added == 1 })
}

func TestClient_DisconnectedSession(t *testing.T) {
	session := opctest.NewFakeSession()
	session.SetConnected(false)
	tc := newTestClient(t, session, nil)

	_, err := tc.Register(source.NewStatic(itemsConfig(testOptions, "a", 1)), opctest.NewRecordingQueue())
	require.NoError(t, err)

	s := tc.nextSummary(t)
	require.Zero(t, s.Added)
	require.Equal(t, tc.cfg.DisconnectedRetryDelay, s.RetryIn)
	require.Zero(t, session.AddSubscriptionCalls())

	session.SetConnected(true)
	tc.summaryWhere(t, func(s SyncSummary) bool { return s.Added == 1 })
	require.Equal(t, 1, tc.PhysicalSubscriptionCount())
}

func TestClient_ReconnectResynchronizes(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)

	_, err := tc.Register(source.NewStatic(itemsConfig(testOptions, "a", 1)), opctest.NewRecordingQueue())
	require.NoError(t, err)
	require.Equal(t, 1, tc.nextSummary(t).Added)

	session.SetConnected(false)
	tc.TriggerSync()
	require.Equal(t, tc.cfg.DisconnectedRetryDelay, tc.nextSummary(t).RetryIn)

	session.SetConnected(true)
	s := tc.summaryWhere(t, func(s SyncSummary) bool { return s.RetryIn == 0 })
	require.Equal(t, 1, s.Updated, "clean registrations are pushed again after a reconnect")
	require.Equal(t, 2, session.UpdateCalls())
}

func TestClient_RemovalWhileDisconnected(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)

	reg, err := tc.Register(source.NewStatic(itemsConfig(testOptions, "a", 1)), opctest.NewRecordingQueue())
	require.NoError(t, err)
	require.Equal(t, 1, tc.nextSummary(t).Added)

	session.SetConnected(false)
	require.NoError(t, reg.Close())

	s := tc.nextSummary(t)
	require.Equal(t, 1, s.Removed)
	require.Zero(t, s.RetryIn, "nothing is left to add")
	require.Zero(t, tc.VirtualSubscriptionCount())
}

func TestClient_GroupsByOptions(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)

	slow := testOptions
	slow.PublishingInterval = 5 * time.Second

	_, err := tc.Register(source.NewStatic(itemsConfig(testOptions, "a", 2)), opctest.NewRecordingQueue())
	require.NoError(t, err)
	_, err = tc.Register(source.NewStatic(itemsConfig(slow, "b", 2)), opctest.NewRecordingQueue())
	require.NoError(t, err)
	_, err = tc.Register(source.NewStatic(itemsConfig(testOptions, "c", 2)), opctest.NewRecordingQueue())
	require.NoError(t, err)

	s := tc.nextSummary(t)
	require.Equal(t, 2, s.Added)
	require.Equal(t, 2, tc.VirtualSubscriptionCount())
	require.Equal(t, 2, tc.PhysicalSubscriptionCount())

	subs := session.Subscriptions()
	require.Equal(t, testOptions, subs[0].Options(), "groups are created in registration order")
	require.Equal(t, 4, subs[0].Len())
	require.Equal(t, slow, subs[1].Options())
}

func TestClient_PartitionsByServerLimit(t *testing.T) {
	session := opctest.NewFakeSession()
	session.SetLimits(types.OperationLimits{MaxMonitoredItemsPerSubscription: 10})
	tc := newTestClient(t, session, nil)

	qa := opctest.NewRecordingQueue()
	_, err := tc.Register(source.NewStatic(itemsConfig(testOptions, "a", 5)), qa)
	require.NoError(t, err)
	_, err = tc.Register(source.NewStatic(itemsConfig(testOptions, "b", 12)), opctest.NewRecordingQueue())
	require.NoError(t, err)

	require.Equal(t, 1, tc.nextSummary(t).Added)
	require.Equal(t, 2, tc.PhysicalSubscriptionCount())

	subs := session.Subscriptions()
	require.Equal(t, 10, subs[0].Len())
	require.Equal(t, 7, subs[1].Len())

	// the small registration is never split
	_, ok := subs[1].HandleOf("ns=2;s=a00")
	require.True(t, ok)
	_, ok = subs[1].HandleOf("ns=2;s=a04")
	require.True(t, ok)

	subs[1].PublishValues(t.Context(), map[string]any{"ns=2;s=a00": 1, "ns=2;s=a04": 2, "ns=2;s=b10": 3})
	ns := qa.Notifications()
	require.Len(t, ns, 1)
	require.Len(t, ns[0].Items, 2)
	require.Equal(t, "a00", ns[0].Items[0].Name)
	require.Equal(t, "a04", ns[0].Items[1].Name)
}

func TestClient_Close(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)

	reg, err := tc.Register(source.NewStatic(itemsConfig(testOptions, "a", 1)), opctest.NewRecordingQueue())
	require.NoError(t, err)
	require.Equal(t, 1, tc.nextSummary(t).Added)

	require.NoError(t, tc.Close(t.Context()))
	require.NoError(t, tc.Close(t.Context()))
	require.Equal(t, ClientStateClosed, tc.State())

	require.True(t, session.AllSubscriptions()[0].Closed())
	require.Zero(t, tc.VirtualSubscriptionCount())
	require.Zero(t, tc.RegistrationCount())

	require.NoError(t, reg.Close(), "closing a registration after the client is a no-op")

	_, err = tc.Register(source.NewStatic(itemsConfig(testOptions, "b", 1)), opctest.NewRecordingQueue())
	require.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_QueueErrorsDoNotStopRouting(t *testing.T) {
	session := opctest.NewFakeSession()
	tc := newTestClient(t, session, nil)

	bad := opctest.NewRecordingQueue()
	bad.SetError(errors.New("queue full"))
	good := opctest.NewRecordingQueue()

	_, err := tc.Register(source.NewStatic(itemsConfig(testOptions, "a", 1)), bad)
	require.NoError(t, err)
	_, err = tc.Register(source.NewStatic(itemsConfig(testOptions, "b", 1)), good)
	require.NoError(t, err)
	require.Equal(t, 1, tc.nextSummary(t).Added)

	session.Subscriptions()[0].PublishValues(t.Context(), map[string]any{"ns=2;s=a00": 1, "ns=2;s=b00": 2})

	require.Equal(t, 1, good.Len())
	require.Zero(t, bad.Len())
}

// funcQueue is a queue type that cannot be used as a map key.
type funcQueue func(ctx context.Context, n Notification) error

func (f funcQueue) Queue(ctx context.Context, n Notification) error {
	return f(ctx, n)
}
