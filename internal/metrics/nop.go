// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/opcsub/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	cfg := opcsub.DefaultConfig()
//	client, err := opcsub.NewClient(&cfg, session, opcsub.WithMetrics(metrics.NewNop()))
//	if err != nil {
//	    return err
//	}
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// OrNop returns m, or a no-op collector when m is nil.
func OrNop(m types.MetricsCollector) types.MetricsCollector {
	if m == nil {
		return NewNop()
	}

	return m
}

// ClientMetrics implementation

// RecordSyncDuration discards the sync duration metric.
func (n *NopMetrics) RecordSyncDuration(_ /* duration */ float64) {}

// RecordSyncChanges discards the sync change counts.
func (n *NopMetrics) RecordSyncChanges(_ /* removed */, _ /* added */, _ /* updated */ int) {}

// RecordSyncFailure discards the sync failure metric.
func (n *NopMetrics) RecordSyncFailure(_ /* operation */ string) {}

// SetRegistrations discards the registration gauge.
func (n *NopMetrics) SetRegistrations(_ /* count */ int) {}

// SetVirtualSubscriptions discards the virtual subscription gauge.
func (n *NopMetrics) SetVirtualSubscriptions(_ /* count */ int) {}

// VirtualSubscriptionMetrics implementation

// RecordRepartition discards the repartition metric.
func (n *NopMetrics) RecordRepartition(_ /* partitions */, _ /* items */ int) {}

// RecordNotificationsDelivered discards the delivery counter.
func (n *NopMetrics) RecordNotificationsDelivered(_ /* kind */ string, _ /* count */ int) {}

// RecordNotificationsDropped discards the drop counter.
func (n *NopMetrics) RecordNotificationsDropped(_ /* reason */ string, _ /* count */ int) {}

// SamplingMetrics implementation

// RecordSampleCycle discards the sample cycle metric.
func (n *NopMetrics) RecordSampleCycle(_ /* duration */ float64, _ /* missed */ int) {}

// RecordSampleFailure discards the sample failure metric.
func (n *NopMetrics) RecordSampleFailure() {}

// SetSamplers discards the sampler gauge.
func (n *NopMetrics) SetSamplers(_ /* count */ int) {}
