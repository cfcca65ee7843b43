package testing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/opcsub/types"
)

// ErrInjected is the default error returned by scripted failures.
var ErrInjected = errors.New("injected failure")

// FakeSession is an in-memory types.Session.
//
// Physical subscriptions keep their monitored items in memory and assign stable
// handles per item key. Notifications are injected with the FakeSubscription
// Publish* helpers, which call the bound handler synchronously.
type FakeSession struct {
	connected atomic.Bool

	mu          sync.Mutex
	limits      types.OperationLimits
	limitsErr   error
	nextSubID   uint32
	subs        []*FakeSubscription
	addFailures []error
	updFailures []error
	rejected    map[string]types.StatusCode
	readFunc    func(ctx context.Context, req types.ReadRequest) ([]types.DataValue, error)

	addCalls    atomic.Int64
	updateCalls atomic.Int64
	readCalls   atomic.Int64
}

var _ types.Session = (*FakeSession)(nil)

// NewFakeSession creates a connected fake session with no operation limits.
func NewFakeSession() *FakeSession {
	s := &FakeSession{rejected: make(map[string]types.StatusCode)}
	s.connected.Store(true)

	return s
}

// SetConnected sets the connectivity flag.
func (s *FakeSession) SetConnected(connected bool) {
	s.connected.Store(connected)
}

// IsConnected implements types.Session.
func (s *FakeSession) IsConnected() bool {
	return s.connected.Load()
}

// SetLimits sets the operation limits returned to callers.
func (s *FakeSession) SetLimits(limits types.OperationLimits) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.limits = limits
}

// SetLimitsError makes OperationLimits fail with err (nil clears it).
func (s *FakeSession) SetLimitsError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.limitsErr = err
}

// OperationLimits implements types.Session.
func (s *FakeSession) OperationLimits(_ context.Context) (types.OperationLimits, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.limits, s.limitsErr
}

// FailAddSubscription makes the next n AddSubscription calls fail with err
// (ErrInjected when nil).
func (s *FakeSession) FailAddSubscription(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addFailures = appendFailures(s.addFailures, n, err)
}

// FailUpdateMonitoredItems makes the next n UpdateMonitoredItems calls (on any
// subscription) fail with err (ErrInjected when nil).
func (s *FakeSession) FailUpdateMonitoredItems(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updFailures = appendFailures(s.updFailures, n, err)
}

// RejectNode makes every monitored item on nodeID fail with code.
func (s *FakeSession) RejectNode(nodeID string, code types.StatusCode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rejected[nodeID] = code
}

// SetReadFunc installs the implementation of Read.
func (s *FakeSession) SetReadFunc(fn func(ctx context.Context, req types.ReadRequest) ([]types.DataValue, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.readFunc = fn
}

// Read implements types.AttributeReader.
//
// Without a read function it returns one good value per item holding the node id.
func (s *FakeSession) Read(ctx context.Context, req types.ReadRequest) ([]types.DataValue, error) {
	s.readCalls.Add(1)

	s.mu.Lock()
	fn := s.readFunc
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if !s.IsConnected() {
		return nil, types.ErrNotConnected
	}

	now := time.Now()
	values := make([]types.DataValue, len(req.Items))
	for i, it := range req.Items {
		values[i] = types.DataValue{Value: it.NodeID, Status: types.StatusGood, SourceTimestamp: now, ServerTimestamp: now}
	}

	return values, nil
}

// AddSubscription implements types.SubscriptionFactory.
func (s *FakeSession) AddSubscription(_ context.Context, opts types.SubscriptionOptions, handler types.NotificationHandler) (types.PhysicalSubscription, error) {
	s.addCalls.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := popFailure(&s.addFailures); err != nil {
		return nil, err
	}
	if !s.connected.Load() {
		return nil, types.ErrNotConnected
	}

	s.nextSubID++
	sub := &FakeSubscription{
		session: s,
		id:      s.nextSubID,
		opts:    opts,
		handler: handler,
		items:   make(map[string]fakeItem),
	}
	s.subs = append(s.subs, sub)

	return sub, nil
}

// Subscriptions returns the open physical subscriptions in creation order.
func (s *FakeSession) Subscriptions() []*FakeSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*FakeSubscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if !sub.Closed() {
			out = append(out, sub)
		}
	}

	return out
}

// AllSubscriptions returns every physical subscription ever created, including closed ones.
func (s *FakeSession) AllSubscriptions() []*FakeSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*FakeSubscription, len(s.subs))
	copy(out, s.subs)

	return out
}

// AddSubscriptionCalls returns the number of AddSubscription calls.
func (s *FakeSession) AddSubscriptionCalls() int {
	return int(s.addCalls.Load())
}

// UpdateCalls returns the number of UpdateMonitoredItems calls across all subscriptions.
func (s *FakeSession) UpdateCalls() int {
	return int(s.updateCalls.Load())
}

// ReadCalls returns the number of Read calls.
func (s *FakeSession) ReadCalls() int {
	return int(s.readCalls.Load())
}

type fakeItem struct {
	handle  uint32
	options types.MonitoredItemOptions
}

// FakeSubscription is the physical subscription created by FakeSession.
type FakeSubscription struct {
	session *FakeSession
	id      uint32
	opts    types.SubscriptionOptions
	handler types.NotificationHandler

	mu         sync.Mutex
	items      map[string]fakeItem
	nextHandle uint32
	closed     bool
	seq        uint32
}

var _ types.PhysicalSubscription = (*FakeSubscription)(nil)

// ID implements types.PhysicalSubscription.
func (f *FakeSubscription) ID() uint32 {
	return f.id
}

// Options returns the subscription options the subscription was created with.
func (f *FakeSubscription) Options() types.SubscriptionOptions {
	return f.opts
}

// UpdateMonitoredItems implements types.PhysicalSubscription.
//
// Items keep their handle across calls as long as their key is present.
func (f *FakeSubscription) UpdateMonitoredItems(_ context.Context, specs []types.MonitoredItemSpec) ([]types.MonitoredItemResult, error) {
	f.session.updateCalls.Add(1)

	f.session.mu.Lock()
	err := popFailure(&f.session.updFailures)
	rejected := make(map[string]types.StatusCode, len(f.session.rejected))
	for k, v := range f.session.rejected {
		rejected[k] = v
	}
	f.session.mu.Unlock()
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, types.NewServiceError(types.StatusBadShutdown, errors.New("subscription closed"))
	}

	next := make(map[string]fakeItem, len(specs))
	results := make([]types.MonitoredItemResult, len(specs))
	for i, spec := range specs {
		if code, ok := rejected[spec.Options.NodeID]; ok {
			results[i] = types.MonitoredItemResult{Key: spec.Key, Status: code}
			continue
		}

		it, ok := f.items[spec.Key]
		if !ok {
			f.nextHandle++
			it.handle = f.nextHandle
		}
		it.options = spec.Options
		next[spec.Key] = it
		results[i] = types.MonitoredItemResult{Key: spec.Key, Handle: it.handle, Status: types.StatusGood}
	}
	f.items = next

	return results, nil
}

// Close implements types.PhysicalSubscription.
func (f *FakeSubscription) Close(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.items = make(map[string]fakeItem)

	return nil
}

// Closed reports whether Close was called.
func (f *FakeSubscription) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

// Len returns the number of monitored items.
func (f *FakeSubscription) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.items)
}

// NodeIDs returns the monitored node ids, sorted.
func (f *FakeSubscription) NodeIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]string, 0, len(f.items))
	for _, it := range f.items {
		ids = append(ids, it.options.NodeID)
	}
	sort.Strings(ids)

	return ids
}

// HandleOf returns the handle of the first item monitoring nodeID.
func (f *FakeSubscription) HandleOf(nodeID string) (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, it := range f.items {
		if it.options.NodeID == nodeID {
			return it.handle, true
		}
	}

	return 0, false
}

// PublishKeepAlive delivers a keep-alive to the handler.
func (f *FakeSubscription) PublishKeepAlive(ctx context.Context) {
	f.handler.OnKeepAlive(ctx, f, types.KeepAlive{PublishHeader: f.header()})
}

// PublishValues delivers one data change notification with a value per node id.
// Node ids that are not monitored are sent with handle 0.
func (f *FakeSubscription) PublishValues(ctx context.Context, values map[string]any) {
	nodeIDs := make([]string, 0, len(values))
	for id := range values {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	now := time.Now()
	items := make([]types.MonitoredValue, 0, len(values))
	for _, id := range nodeIDs {
		h, _ := f.HandleOf(id)
		items = append(items, types.MonitoredValue{
			Handle: h,
			Value:  types.DataValue{Value: values[id], Status: types.StatusGood, SourceTimestamp: now, ServerTimestamp: now},
		})
	}

	f.PublishDataChange(ctx, items...)
}

// PublishDataChange delivers raw data change items to the handler.
func (f *FakeSubscription) PublishDataChange(ctx context.Context, items ...types.MonitoredValue) {
	f.handler.OnDataChange(ctx, f, types.DataChange{PublishHeader: f.header(), Items: items})
}

// PublishEvent delivers one event for the item monitoring nodeID.
func (f *FakeSubscription) PublishEvent(ctx context.Context, nodeID string, fields ...any) {
	h, _ := f.HandleOf(nodeID)
	f.handler.OnEvent(ctx, f, types.EventBatch{
		PublishHeader: f.header(),
		Events:        []types.MonitoredEvent{{Handle: h, Fields: fields}},
	})
}

func (f *FakeSubscription) header() types.PublishHeader {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq = types.NextSequenceNumber(f.seq)

	return types.PublishHeader{SequenceNumber: f.seq, PublishTime: time.Now()}
}

func appendFailures(dst []error, n int, err error) []error {
	if err == nil {
		err = ErrInjected
	}
	for range n {
		dst = append(dst, err)
	}

	return dst
}

func popFailure(failures *[]error) error {
	if len(*failures) == 0 {
		return nil
	}
	err := (*failures)[0]
	*failures = (*failures)[1:]

	return err
}
