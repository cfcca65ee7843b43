package types

import (
	"context"
	"time"
)

// NotificationKind tags the variant carried by a Notification.
type NotificationKind int

const (
	// KindKeepAlive confirms subscription liveness when nothing changed.
	KindKeepAlive NotificationKind = iota

	// KindDataChanges carries data change values of monitored data items.
	KindDataChanges

	// KindEvent carries event field lists of monitored event items.
	KindEvent

	// KindPeriodicData carries values polled by the sampling path.
	KindPeriodicData
)

// String returns the string representation of the notification kind.
func (k NotificationKind) String() string {
	switch k {
	case KindKeepAlive:
		return "KeepAlive"
	case KindDataChanges:
		return "DataChanges"
	case KindEvent:
		return "Event"
	case KindPeriodicData:
		return "PeriodicData"
	default:
		return "Unknown"
	}
}

// PublishState is a bit mask describing the publish cycle that produced a notification.
type PublishState uint32

// PublishStateNone is the zero state.
const PublishStateNone PublishState = 0

const (
	// PublishStateKeepAlive marks a keep-alive cycle.
	PublishStateKeepAlive PublishState = 1 << iota

	// PublishStateOverflow marks a sampling cycle that missed at least one tick.
	PublishStateOverflow

	// PublishStateError marks a cycle whose values all carry an error status.
	PublishStateError
)

// Has reports whether all bits of flag are set.
func (s PublishState) Has(flag PublishState) bool {
	return s&flag == flag
}

// DataValue is a value with its status and timestamps.
type DataValue struct {
	Value           any        `json:"value" cbor:"value"`
	Status          StatusCode `json:"status" cbor:"status"`
	SourceTimestamp time.Time  `json:"sourceTimestamp" cbor:"sourceTimestamp"`
	ServerTimestamp time.Time  `json:"serverTimestamp" cbor:"serverTimestamp"`
}

// ItemNotification is one item of a notification, addressed by the consumer's item name.
type ItemNotification struct {
	Name        string    `json:"name" cbor:"name"`
	NodeID      string    `json:"nodeId" cbor:"nodeId"`
	Value       DataValue `json:"value" cbor:"value"`
	EventFields []any     `json:"eventFields,omitempty" cbor:"eventFields,omitempty"`
}

// Notification is the tagged notification delivered to a NotificationQueue.
//
// SequenceNumber is monotonically increasing per emitting source (one physical
// subscription or one sampler), starts at 1 and never takes the value 0.
type Notification struct {
	Kind             NotificationKind   `json:"kind" cbor:"kind"`
	SubscriptionName string             `json:"subscription" cbor:"subscription"`
	SequenceNumber   uint32             `json:"seq" cbor:"seq"`
	PublishTime      time.Time          `json:"publishTime" cbor:"publishTime"`
	State            PublishState       `json:"state" cbor:"state"`
	StringTable      []string           `json:"stringTable,omitempty" cbor:"stringTable,omitempty"`
	Items            []ItemNotification `json:"items,omitempty" cbor:"items,omitempty"`
}

// NotificationQueue is the destination of notifications.
//
// Queue is an at-least-once, unbounded sink: it must not block on back-pressure
// and must not fail for a healthy consumer. Implementations used as registration
// keys must be comparable (typically pointer types).
type NotificationQueue interface {
	// Queue enqueues a notification.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - n: Notification to deliver
	//
	// Returns:
	//   - error: Non-nil when the queue is closed or the sink failed
	Queue(ctx context.Context, n Notification) error
}

// NextSequenceNumber returns the sequence number following seq, skipping 0.
func NextSequenceNumber(seq uint32) uint32 {
	seq++
	if seq == 0 {
		seq = 1
	}

	return seq
}
