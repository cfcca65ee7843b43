package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ClientMetrics
	VirtualSubscriptionMetrics
	SamplingMetrics
}

// ClientMetrics defines metrics for the subscription client's sync loop.
type ClientMetrics interface {
	// RecordSyncDuration records the time taken for one sync cycle.
	//
	// Parameters:
	//   - duration: Time taken in seconds
	RecordSyncDuration(duration float64)

	// RecordSyncChanges records the outcome counts of one sync cycle.
	//
	// Parameters:
	//   - removed: Virtual subscriptions disposed
	//   - added: Virtual subscriptions created
	//   - updated: Virtual subscriptions re-synchronized
	RecordSyncChanges(removed, added, updated int)

	// RecordSyncFailure records an isolated per-group failure.
	//
	// Parameters:
	//   - operation: Failed operation ("remove", "add", "update")
	RecordSyncFailure(operation string)

	// SetRegistrations sets the current registration count (gauge metric).
	SetRegistrations(count int)

	// SetVirtualSubscriptions sets the current virtual subscription count (gauge metric).
	SetVirtualSubscriptions(count int)
}

// VirtualSubscriptionMetrics defines metrics for virtual subscription partitioning and routing.
type VirtualSubscriptionMetrics interface {
	// RecordRepartition records one partitioning result.
	//
	// Parameters:
	//   - partitions: Number of physical subscriptions after the sync
	//   - items: Total monitored items across all partitions
	RecordRepartition(partitions, items int)

	// RecordNotificationsDelivered records notifications handed to consumer queues.
	//
	// Parameters:
	//   - kind: Notification kind ("keep_alive", "data_changes", "event", "periodic_data")
	//   - count: Number of notifications delivered
	RecordNotificationsDelivered(kind string, count int)

	// RecordNotificationsDropped records items that could not be routed or delivered.
	//
	// Parameters:
	//   - reason: Drop reason ("unknown_handle", "queue_error")
	//   - count: Number of dropped items
	RecordNotificationsDropped(reason string, count int)
}

// SamplingMetrics defines metrics for the periodic sampling client.
type SamplingMetrics interface {
	// RecordSampleCycle records one completed sampling read.
	//
	// Parameters:
	//   - duration: Read-cycle duration in seconds
	//   - missed: Number of sampling intervals the cycle overran
	RecordSampleCycle(duration float64, missed int)

	// RecordSampleFailure records a failed sampling read.
	RecordSampleFailure()

	// SetSamplers sets the current number of active samplers (gauge metric).
	SetSamplers(count int)
}
