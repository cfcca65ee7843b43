// Package types provides core type definitions and interfaces for the opcsub library.
//
// This package contains shared types that are used across multiple packages in the
// opcsub library. By keeping these types in a separate package, we avoid import cycles
// between the main opcsub package and its internal implementations.
//
// Key types:
//   - SubscriptionOptions: Grouping key for virtual subscriptions
//   - MonitoredItemOptions: Per-item monitoring configuration
//   - Notification: Tagged notification delivered to a NotificationQueue
//   - Session: Narrow view of an OPC UA session (subscriptions, reads, limits)
//   - PartitionStrategy: Bin-packing of monitored items into physical subscriptions
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
