package types

import (
	"context"
	"time"
)

// OperationLimits are the server-advertised limits the client honors.
//
// A zero value means the server reported no limit.
type OperationLimits struct {
	MaxMonitoredItemsPerSubscription uint32
	MaxNodesPerRead                  uint32
}

// ReadItem addresses one attribute of one node.
type ReadItem struct {
	NodeID      string
	AttributeID uint32
}

// ReadRequest is a batched attribute read.
type ReadRequest struct {
	// MaxAge is the maximum age of cached values the server may return.
	MaxAge time.Duration
	Items  []ReadItem
}

// AttributeReader performs batched attribute reads.
type AttributeReader interface {
	// Read reads all items in one request and returns one value per item, in order.
	Read(ctx context.Context, req ReadRequest) ([]DataValue, error)
}

// MonitoredItemSpec is one entry of the authoritative item set of a physical subscription.
//
// Key is unique within the physical subscription and stable across syncs.
type MonitoredItemSpec struct {
	Key     string
	Options MonitoredItemOptions
}

// MonitoredItemResult is the outcome of applying one MonitoredItemSpec.
type MonitoredItemResult struct {
	Key    string
	Handle uint32
	Status StatusCode
}

// PhysicalSubscription is a protocol-level subscription on the session.
type PhysicalSubscription interface {
	// ID returns the server-assigned subscription id.
	ID() uint32

	// UpdateMonitoredItems makes items the authoritative monitored item set:
	// missing items are created, changed items are updated, absent items removed.
	//
	// Returns one result per input item, in input order.
	UpdateMonitoredItems(ctx context.Context, items []MonitoredItemSpec) ([]MonitoredItemResult, error)

	// Close deletes the subscription on the server and stops notification delivery.
	Close(ctx context.Context) error
}

// SubscriptionFactory creates physical subscriptions bound to a notification handler.
type SubscriptionFactory interface {
	// AddSubscription creates a physical subscription delivering to handler.
	AddSubscription(ctx context.Context, opts SubscriptionOptions, handler NotificationHandler) (PhysicalSubscription, error)
}

// Session is the narrow view of an OPC UA session consumed by the library.
type Session interface {
	AttributeReader
	SubscriptionFactory

	// IsConnected reports whether the session is currently connected.
	IsConnected() bool

	// OperationLimits returns the server-advertised operation limits.
	OperationLimits(ctx context.Context) (OperationLimits, error)
}

// PublishHeader is common to all inbound notifications of a physical subscription.
type PublishHeader struct {
	SequenceNumber uint32
	PublishTime    time.Time
	StringTable    []string
}

// KeepAlive is an inbound keep-alive.
type KeepAlive struct {
	PublishHeader
}

// MonitoredValue is one inbound data change.
type MonitoredValue struct {
	Handle uint32
	Value  DataValue
}

// DataChange is an inbound batch of data changes.
type DataChange struct {
	PublishHeader
	Items []MonitoredValue
}

// MonitoredEvent is one inbound event.
type MonitoredEvent struct {
	Handle uint32
	Fields []any
}

// EventBatch is an inbound batch of events.
type EventBatch struct {
	PublishHeader
	Events []MonitoredEvent
}

// NotificationHandler receives inbound notifications of physical subscriptions.
//
// Session adapters must invoke the handler sequentially per physical subscription,
// in sequence number order.
type NotificationHandler interface {
	OnKeepAlive(ctx context.Context, sub PhysicalSubscription, n KeepAlive)
	OnDataChange(ctx context.Context, sub PhysicalSubscription, n DataChange)
	OnEvent(ctx context.Context, sub PhysicalSubscription, n EventBatch)
}
