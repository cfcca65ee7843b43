package opcsub

import "github.com/arloliu/opcsub/types"

// Re-export types from the types package.
//
// Internal packages depend on types only, which keeps the root package free of
// import cycles while still offering opcsub.Notification, opcsub.Logger, etc.
type (
	ClientState          = types.ClientState
	SubscriptionOptions  = types.SubscriptionOptions
	MonitoredItemOptions = types.MonitoredItemOptions
	SubscriptionConfig   = types.SubscriptionConfig
	Notification         = types.Notification
	NotificationKind     = types.NotificationKind
	ItemNotification     = types.ItemNotification
	DataValue            = types.DataValue
	StatusCode           = types.StatusCode
	PublishState         = types.PublishState
	SyncSummary          = types.SyncSummary
	ReadItem             = types.ReadItem
)

// Re-export interfaces from the types package for convenience.
type (
	Session           = types.Session
	ConfigSource      = types.ConfigSource
	NotificationQueue = types.NotificationQueue
	PartitionStrategy = types.PartitionStrategy
	MetricsCollector  = types.MetricsCollector
	Logger            = types.Logger
	Hooks             = types.Hooks
)

// Re-export ClientState constants.
const (
	ClientStateIdle          = types.ClientStateIdle
	ClientStateSyncScheduled = types.ClientStateSyncScheduled
	ClientStateSyncing       = types.ClientStateSyncing
	ClientStateClosed        = types.ClientStateClosed
)

// Re-export notification kinds.
const (
	KindKeepAlive    = types.KindKeepAlive
	KindDataChanges  = types.KindDataChanges
	KindEvent        = types.KindEvent
	KindPeriodicData = types.KindPeriodicData
)
