package uaclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/id"
	"github.com/gopcua/opcua/ua"

	"github.com/arloliu/opcsub/internal/logging"
	"github.com/arloliu/opcsub/types"
)

// uaClient is the part of *opcua.Client used for reads and connectivity.
type uaClient interface {
	State() opcua.ConnState
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
}

// remoteSubscription is the part of *opcua.Subscription used by the adapter.
type remoteSubscription interface {
	Monitor(ctx context.Context, ts ua.TimestampsToReturn, items ...*ua.MonitoredItemCreateRequest) (*ua.CreateMonitoredItemsResponse, error)
	Unmonitor(ctx context.Context, monitoredItemIDs ...uint32) (*ua.DeleteMonitoredItemsResponse, error)
	Cancel(ctx context.Context) error
}

// subscribeFunc creates a server subscription delivering to notifyCh.
type subscribeFunc func(ctx context.Context, params *opcua.SubscriptionParameters, notifyCh chan<- *opcua.PublishNotificationData) (remoteSubscription, uint32, error)

// limitNodes are read by OperationLimits, in OperationLimits field order.
var limitNodes = []*ua.NodeID{
	ua.NewNumericNodeID(0, id.Server_ServerCapabilities_MaxMonitoredItemsPerSubscription),
	ua.NewNumericNodeID(0, id.Server_ServerCapabilities_OperationLimits_MaxNodesPerRead),
}

// Session implements types.Session on top of a gopcua client.
type Session struct {
	client    uaClient
	subscribe subscribeFunc
	cfg       Config
	logger    types.Logger
	now       func() time.Time

	mu       sync.Mutex
	limits   types.OperationLimits
	limitsAt time.Time
}

var _ types.Session = (*Session)(nil)

// New creates a session adapter for c.
//
// Parameters:
//   - c: Connected (or auto-reconnecting) gopcua client
//   - cfg: Adapter configuration; zero fields take defaults
//   - opts: Optional logger and clock
//
// Returns:
//   - *Session: Adapter implementing types.Session
func New(c *opcua.Client, cfg Config, opts ...Option) *Session {
	subscribe := func(ctx context.Context, params *opcua.SubscriptionParameters, notifyCh chan<- *opcua.PublishNotificationData) (remoteSubscription, uint32, error) {
		sub, err := c.Subscribe(ctx, params, notifyCh)
		if err != nil {
			return nil, 0, err
		}

		return sub, sub.SubscriptionID, nil
	}

	return newSession(c, subscribe, cfg, opts...)
}

func newSession(c uaClient, subscribe subscribeFunc, cfg Config, opts ...Option) *Session {
	SetDefaults(&cfg)

	s := &Session{
		client:    c,
		subscribe: subscribe,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger)

	return s
}

// IsConnected reports whether the underlying client is connected.
func (s *Session) IsConnected() bool {
	return s.client.State() == opcua.Connected
}

// OperationLimits reads the server's operation limits.
//
// Results are cached for Config.LimitsTTL. A limit the server does not expose is
// reported as zero; Config.MaxMonitoredItemsOverride wins when set.
func (s *Session) OperationLimits(ctx context.Context) (types.OperationLimits, error) {
	s.mu.Lock()
	if !s.limitsAt.IsZero() && s.now().Sub(s.limitsAt) < s.cfg.LimitsTTL {
		limits := s.limits
		s.mu.Unlock()

		return limits, nil
	}
	s.mu.Unlock()

	nodes := make([]*ua.ReadValueID, len(limitNodes))
	for i, n := range limitNodes {
		nodes[i] = &ua.ReadValueID{NodeID: n, AttributeID: ua.AttributeIDValue, DataEncoding: &ua.QualifiedName{}}
	}

	resp, err := s.client.Read(ctx, &ua.ReadRequest{
		TimestampsToReturn: ua.TimestampsToReturnNeither,
		NodesToRead:        nodes,
	})
	if err != nil {
		return types.OperationLimits{}, serviceError("read operation limits", err)
	}

	var limits types.OperationLimits
	if len(resp.Results) > 0 {
		limits.MaxMonitoredItemsPerSubscription, _ = limitValue(resp.Results[0])
	}
	if len(resp.Results) > 1 {
		limits.MaxNodesPerRead, _ = limitValue(resp.Results[1])
	}
	if s.cfg.MaxMonitoredItemsOverride > 0 {
		limits.MaxMonitoredItemsPerSubscription = s.cfg.MaxMonitoredItemsOverride
	}

	s.mu.Lock()
	s.limits = limits
	s.limitsAt = s.now()
	s.mu.Unlock()

	s.logger.Debug("operation limits read",
		"max_monitored_items", limits.MaxMonitoredItemsPerSubscription,
		"max_nodes_per_read", limits.MaxNodesPerRead)

	return limits, nil
}

// Read performs one batched read and returns one value per item, in order.
func (s *Session) Read(ctx context.Context, req types.ReadRequest) ([]types.DataValue, error) {
	if !s.IsConnected() {
		return nil, types.ErrNotConnected
	}

	nodes, err := readValueIDs(req.Items)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Read(ctx, &ua.ReadRequest{
		MaxAge:             float64(req.MaxAge.Milliseconds()),
		TimestampsToReturn: ua.TimestampsToReturnBoth,
		NodesToRead:        nodes,
	})
	if err != nil {
		return nil, serviceError("read", err)
	}
	if len(resp.Results) != len(nodes) {
		return nil, types.NewServiceError(types.StatusBadUnexpectedError,
			fmt.Errorf("read returned %d results for %d nodes", len(resp.Results), len(nodes)))
	}

	values := make([]types.DataValue, len(resp.Results))
	for i, dv := range resp.Results {
		values[i] = toDataValue(dv)
	}

	return values, nil
}

// AddSubscription creates a server subscription and starts dispatching its
// notifications to handler.
func (s *Session) AddSubscription(ctx context.Context, opts types.SubscriptionOptions, handler types.NotificationHandler) (types.PhysicalSubscription, error) {
	params := &opcua.SubscriptionParameters{
		Interval:                   opts.PublishingInterval,
		LifetimeCount:              opts.LifetimeCount,
		MaxKeepAliveCount:          opts.KeepAliveCount,
		MaxNotificationsPerPublish: opts.MaxNotificationsPerPublish,
		Priority:                   opts.Priority,
	}

	notifyCh := make(chan *opcua.PublishNotificationData, s.cfg.NotifyBuffer)
	remote, subID, err := s.subscribe(ctx, params, notifyCh)
	if err != nil {
		return nil, serviceError("create subscription", err)
	}

	sub := newSubscription(subID, remote, handler, s.cfg.MaxItemsPerCall, s.logger, s.now)
	sub.start(notifyCh)

	s.logger.Debug("subscription created", "subscription_id", subID, "options", opts.String())

	return sub, nil
}
