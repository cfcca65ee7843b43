package uaclient

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/arloliu/opcsub/internal/hash"
	"github.com/arloliu/opcsub/types"
)

// monitoredItem is the server-side state of one item key.
type monitoredItem struct {
	handle      uint32
	serverID    uint32
	fingerprint hash.Fingerprint
}

// pendingItem is an item queued for creation.
type pendingItem struct {
	index       int
	key         string
	handle      uint32
	fingerprint hash.Fingerprint
	request     *ua.MonitoredItemCreateRequest
}

// subscription is a physical subscription backed by a gopcua subscription.
//
// Notifications are dispatched by a single goroutine, so the handler observes
// them in arrival order with strictly increasing sequence numbers.
type subscription struct {
	id           uint32
	remote       remoteSubscription
	handler      types.NotificationHandler
	itemsPerCall int
	logger       types.Logger
	now          func() time.Time

	mu         sync.Mutex
	items      map[string]monitoredItem
	nextHandle uint32
	closed     bool

	seq       uint32
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

var _ types.PhysicalSubscription = (*subscription)(nil)

func newSubscription(id uint32, remote remoteSubscription, handler types.NotificationHandler, itemsPerCall int, logger types.Logger, now func() time.Time) *subscription {
	return &subscription{
		id:           id,
		remote:       remote,
		handler:      handler,
		itemsPerCall: max(itemsPerCall, 1),
		logger:       logger,
		now:          now,
		items:        make(map[string]monitoredItem),
		done:         make(chan struct{}),
	}
}

func (s *subscription) start(notifyCh <-chan *opcua.PublishNotificationData) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go s.dispatch(ctx, notifyCh)
}

// ID returns the server-assigned subscription id.
func (s *subscription) ID() uint32 {
	return s.id
}

// UpdateMonitoredItems makes specs the authoritative item set of the subscription.
//
// Items whose key and options are unchanged keep their server-side monitored item.
// Removed and changed items are deleted before new ones are created so the server
// never holds more items than the final set.
func (s *subscription) UpdateMonitoredItems(ctx context.Context, specs []types.MonitoredItemSpec) ([]types.MonitoredItemResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, types.NewServiceError(types.StatusBadSubscriptionIDInvalid,
			fmt.Errorf("subscription %d is closed", s.id))
	}

	results := make([]types.MonitoredItemResult, len(specs))
	wanted := make(map[string]struct{}, len(specs))
	var creates []pendingItem

	for i, spec := range specs {
		wanted[spec.Key] = struct{}{}
		fp := hash.Item(spec.Options)

		if cur, ok := s.items[spec.Key]; ok && cur.fingerprint == fp {
			results[i] = types.MonitoredItemResult{Key: spec.Key, Handle: cur.handle, Status: types.StatusGood}
			continue
		}

		s.nextHandle++
		req, err := monitorRequest(s.nextHandle, spec.Options)
		if err != nil {
			s.logger.Warn("invalid monitored item", "subscription_id", s.id, "item", spec.Key, "error", err)
			results[i] = types.MonitoredItemResult{Key: spec.Key, Status: types.StatusBadNodeIDUnknown}

			continue
		}
		creates = append(creates, pendingItem{
			index:       i,
			key:         spec.Key,
			handle:      s.nextHandle,
			fingerprint: fp,
			request:     req,
		})
	}

	// Stale items: keys no longer wanted plus keys being recreated.
	var staleKeys []string
	for key := range s.items {
		if _, ok := wanted[key]; !ok {
			staleKeys = append(staleKeys, key)
		}
	}
	for _, p := range creates {
		if _, ok := s.items[p.key]; ok {
			staleKeys = append(staleKeys, p.key)
		}
	}
	slices.Sort(staleKeys)

	if err := s.deleteItems(ctx, staleKeys); err != nil {
		return nil, err
	}
	if err := s.createItems(ctx, creates, results); err != nil {
		return nil, err
	}

	return results, nil
}

func (s *subscription) deleteItems(ctx context.Context, keys []string) error {
	for chunk := range slices.Chunk(keys, s.itemsPerCall) {
		ids := make([]uint32, len(chunk))
		for i, key := range chunk {
			ids[i] = s.items[key].serverID
		}
		if _, err := s.remote.Unmonitor(ctx, ids...); err != nil {
			return serviceError("delete monitored items", err)
		}
		for _, key := range chunk {
			delete(s.items, key)
		}
	}

	return nil
}

func (s *subscription) createItems(ctx context.Context, creates []pendingItem, results []types.MonitoredItemResult) error {
	for chunk := range slices.Chunk(creates, s.itemsPerCall) {
		reqs := make([]*ua.MonitoredItemCreateRequest, len(chunk))
		for i, p := range chunk {
			reqs[i] = p.request
		}

		resp, err := s.remote.Monitor(ctx, ua.TimestampsToReturnBoth, reqs...)
		if err != nil {
			return serviceError("create monitored items", err)
		}

		for i, p := range chunk {
			result := types.MonitoredItemResult{Key: p.key, Status: types.StatusBadUnexpectedError}
			if i < len(resp.Results) && resp.Results[i] != nil {
				r := resp.Results[i]
				result.Status = statusOf(r.StatusCode)
				if r.StatusCode == ua.StatusOK {
					result.Handle = p.handle
					s.items[p.key] = monitoredItem{
						handle:      p.handle,
						serverID:    r.MonitoredItemID,
						fingerprint: p.fingerprint,
					}
				}
			}
			results[p.index] = result
		}
	}

	return nil
}

// Close deletes the subscription on the server and stops dispatching.
func (s *subscription) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if err := s.remote.Cancel(ctx); err != nil {
			s.closeErr = serviceError("delete subscription", err)
		}

		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
	})

	return s.closeErr
}

func (s *subscription) dispatch(ctx context.Context, notifyCh <-chan *opcua.PublishNotificationData) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-notifyCh:
			if !ok {
				return
			}
			s.handle(ctx, msg)
		}
	}
}

func (s *subscription) handle(ctx context.Context, msg *opcua.PublishNotificationData) {
	if msg == nil {
		return
	}
	if msg.Error != nil {
		s.logger.Warn("publish error", "subscription_id", s.id, "error", msg.Error)
		return
	}

	switch v := msg.Value.(type) {
	case *ua.DataChangeNotification:
		s.handler.OnDataChange(ctx, s, types.DataChange{PublishHeader: s.header(), Items: dataChanges(v)})
	case *ua.EventNotificationList:
		s.handler.OnEvent(ctx, s, types.EventBatch{PublishHeader: s.header(), Events: events(v)})
	case *ua.StatusChangeNotification:
		s.logger.Warn("subscription status changed", "subscription_id", s.id, "status", statusOf(v.Status).String())
	default:
		s.logger.Debug("unhandled notification", "subscription_id", s.id, "type", fmt.Sprintf("%T", msg.Value))
	}
}

func (s *subscription) header() types.PublishHeader {
	s.seq = types.NextSequenceNumber(s.seq)

	return types.PublishHeader{SequenceNumber: s.seq, PublishTime: s.now()}
}
