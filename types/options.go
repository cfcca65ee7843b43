package types

import (
	"fmt"
	"time"
)

// Attribute identifiers used by monitored items and reads.
const (
	// AttributeEventNotifier is the attribute monitored by event items.
	AttributeEventNotifier uint32 = 12

	// AttributeValue is the default attribute for data items and reads.
	AttributeValue uint32 = 13
)

// SubscriptionOptions identifies a class of subscription configuration.
//
// It is the grouping key for virtual subscriptions: every registration whose
// options compare equal shares one virtual subscription. The struct must stay
// comparable so it can be used directly as a map key.
type SubscriptionOptions struct {
	// PublishingInterval is the requested publishing interval.
	PublishingInterval time.Duration `yaml:"publishingInterval" json:"publishingInterval"`

	// KeepAliveCount is the number of empty publish cycles before a keep-alive.
	KeepAliveCount uint32 `yaml:"keepAliveCount" json:"keepAliveCount"`

	// LifetimeCount is the number of publish cycles without a publish request
	// before the server deletes the subscription.
	LifetimeCount uint32 `yaml:"lifetimeCount" json:"lifetimeCount"`

	// MaxNotificationsPerPublish caps notifications per publish response (0 = unlimited).
	MaxNotificationsPerPublish uint32 `yaml:"maxNotificationsPerPublish" json:"maxNotificationsPerPublish"`

	// Priority is the relative subscription priority.
	Priority uint8 `yaml:"priority" json:"priority"`
}

// String returns a compact label used in logs and notifications.
func (o SubscriptionOptions) String() string {
	return fmt.Sprintf("pi=%s/ka=%d/lt=%d/mn=%d/p=%d",
		o.PublishingInterval, o.KeepAliveCount, o.LifetimeCount, o.MaxNotificationsPerPublish, o.Priority)
}

// DataChangeTrigger selects which changes produce a data change notification.
type DataChangeTrigger uint32

const (
	// TriggerStatus reports status changes only.
	TriggerStatus DataChangeTrigger = iota
	// TriggerStatusValue reports status or value changes (server default).
	TriggerStatusValue
	// TriggerStatusValueTimestamp reports status, value or source timestamp changes.
	TriggerStatusValueTimestamp
)

// DeadbandType selects the deadband applied by a data change filter.
type DeadbandType uint32

const (
	// DeadbandNone disables deadband filtering.
	DeadbandNone DeadbandType = iota
	// DeadbandAbsolute suppresses changes below an absolute threshold.
	DeadbandAbsolute
	// DeadbandPercent suppresses changes below a percentage of the EU range.
	DeadbandPercent
)

// DataChangeFilter configures server-side filtering of data changes.
type DataChangeFilter struct {
	Trigger       DataChangeTrigger `yaml:"trigger" json:"trigger"`
	DeadbandType  DeadbandType      `yaml:"deadbandType" json:"deadbandType"`
	DeadbandValue float64           `yaml:"deadbandValue" json:"deadbandValue"`
}

// MonitoredItemOptions is the per-item monitoring configuration.
//
// An item with a non-empty EventFields list is an event item; everything else
// is a data item monitoring AttributeID (AttributeValue when zero).
type MonitoredItemOptions struct {
	NodeID           string            `yaml:"nodeId" json:"nodeId"`
	AttributeID      uint32            `yaml:"attributeId" json:"attributeId"`
	SamplingInterval time.Duration     `yaml:"samplingInterval" json:"samplingInterval"`
	QueueSize        uint32            `yaml:"queueSize" json:"queueSize"`
	DiscardOldest    bool              `yaml:"discardOldest" json:"discardOldest"`
	DataChangeFilter *DataChangeFilter `yaml:"dataChangeFilter" json:"dataChangeFilter,omitempty"`
	EventFields      []string          `yaml:"eventFields" json:"eventFields,omitempty"`
}

// IsEvent reports whether the item monitors events.
func (o MonitoredItemOptions) IsEvent() bool {
	return len(o.EventFields) > 0
}

// Attribute returns the monitored attribute, applying the per-kind default.
func (o MonitoredItemOptions) Attribute() uint32 {
	if o.AttributeID != 0 {
		return o.AttributeID
	}
	if o.IsEvent() {
		return AttributeEventNotifier
	}

	return AttributeValue
}

// SubscriptionConfig is the current value of a registration's configuration source.
type SubscriptionConfig struct {
	// Options is the subscription class; nil is a configuration error.
	Options *SubscriptionOptions `yaml:"options" json:"options"`

	// Items maps the consumer's item names to their monitoring options.
	Items map[string]MonitoredItemOptions `yaml:"items" json:"items"`
}
