package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/opcsub/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use so that constructing
// a collector that is never exercised leaves the registry untouched.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// client sync loop
	syncDuration       prometheus.Histogram
	syncChanges        *prometheus.CounterVec
	syncFailures       *prometheus.CounterVec
	registrations      prometheus.Gauge
	virtualSubscripts  prometheus.Gauge
	repartitions       prometheus.Counter
	physicalSubscripts prometheus.Gauge
	monitoredItems     prometheus.Gauge

	// routing
	delivered *prometheus.CounterVec
	dropped   *prometheus.CounterVec

	// sampling
	sampleDuration prometheus.Histogram
	sampleMissed   prometheus.Counter
	sampleFailures prometheus.Counter
	samplers       prometheus.Gauge
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "opcsub" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "opcsub"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "sync_duration_seconds",
			Help:      "Duration of subscription sync cycles in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms .. ~10s
		})
		p.syncChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "sync_changes_total",
			Help:      "Virtual subscription changes applied by sync cycles (removed,added,updated).",
		}, []string{"change"})
		p.syncFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "sync_failures_total",
			Help:      "Isolated per-group sync failures by operation (remove,add,update).",
		}, []string{"op"})
		p.registrations = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "registrations",
			Help:      "Current number of registrations.",
		})
		p.virtualSubscripts = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "virtual_subscriptions",
			Help:      "Current number of virtual subscriptions.",
		})

		p.repartitions = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "virtual_subscription",
			Name:      "repartitions_total",
			Help:      "Total partitioning runs.",
		})
		p.physicalSubscripts = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "virtual_subscription",
			Name:      "last_partitions",
			Help:      "Number of physical subscriptions produced by the most recent partitioning run.",
		})
		p.monitoredItems = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "virtual_subscription",
			Name:      "last_monitored_items",
			Help:      "Number of monitored items in the most recent partitioning run.",
		})
		p.delivered = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "virtual_subscription",
			Name:      "notifications_delivered_total",
			Help:      "Notifications handed to consumer queues by kind.",
		}, []string{"kind"})
		p.dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "virtual_subscription",
			Name:      "notifications_dropped_total",
			Help:      "Notification items dropped by reason (unknown_handle,queue_error).",
		}, []string{"reason"})

		p.sampleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "sampling",
			Name:      "read_duration_seconds",
			Help:      "Duration of sampling read cycles in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		})
		p.sampleMissed = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "sampling",
			Name:      "missed_intervals_total",
			Help:      "Sampling intervals overrun by slow reads.",
		})
		p.sampleFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "sampling",
			Name:      "read_failures_total",
			Help:      "Sampling reads that failed and were reported in-band.",
		})
		p.samplers = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "sampling",
			Name:      "samplers",
			Help:      "Current number of active samplers.",
		})

		p.reg.MustRegister(
			p.syncDuration, p.syncChanges, p.syncFailures, p.registrations, p.virtualSubscripts,
			p.repartitions, p.physicalSubscripts, p.monitoredItems, p.delivered, p.dropped,
			p.sampleDuration, p.sampleMissed, p.sampleFailures, p.samplers,
		)
	})
}

// ClientMetrics implementation

// RecordSyncDuration observes a sync cycle duration (seconds).
func (p *PrometheusCollector) RecordSyncDuration(duration float64) {
	p.ensureRegistered()
	p.syncDuration.Observe(duration)
}

// RecordSyncChanges adds the per-cycle change counts.
func (p *PrometheusCollector) RecordSyncChanges(removed, added, updated int) {
	p.ensureRegistered()
	p.syncChanges.WithLabelValues("removed").Add(float64(removed))
	p.syncChanges.WithLabelValues("added").Add(float64(added))
	p.syncChanges.WithLabelValues("updated").Add(float64(updated))
}

// RecordSyncFailure increments the failure counter for the given operation.
func (p *PrometheusCollector) RecordSyncFailure(operation string) {
	p.ensureRegistered()
	p.syncFailures.WithLabelValues(operation).Inc()
}

// SetRegistrations sets the registration gauge.
func (p *PrometheusCollector) SetRegistrations(count int) {
	p.ensureRegistered()
	p.registrations.Set(float64(count))
}

// SetVirtualSubscriptions sets the virtual subscription gauge.
func (p *PrometheusCollector) SetVirtualSubscriptions(count int) {
	p.ensureRegistered()
	p.virtualSubscripts.Set(float64(count))
}

// VirtualSubscriptionMetrics implementation

// RecordRepartition records one partitioning run.
func (p *PrometheusCollector) RecordRepartition(partitions, items int) {
	p.ensureRegistered()
	p.repartitions.Inc()
	p.physicalSubscripts.Set(float64(partitions))
	p.monitoredItems.Set(float64(items))
}

// RecordNotificationsDelivered adds delivered notifications of the given kind.
func (p *PrometheusCollector) RecordNotificationsDelivered(kind string, count int) {
	p.ensureRegistered()
	p.delivered.WithLabelValues(kind).Add(float64(count))
}

// RecordNotificationsDropped adds dropped items for the given reason.
func (p *PrometheusCollector) RecordNotificationsDropped(reason string, count int) {
	p.ensureRegistered()
	p.dropped.WithLabelValues(reason).Add(float64(count))
}

// SamplingMetrics implementation

// RecordSampleCycle observes a sampling read duration and its missed intervals.
func (p *PrometheusCollector) RecordSampleCycle(duration float64, missed int) {
	p.ensureRegistered()
	p.sampleDuration.Observe(duration)
	if missed > 0 {
		p.sampleMissed.Add(float64(missed))
	}
}

// RecordSampleFailure increments the sampling failure counter.
func (p *PrometheusCollector) RecordSampleFailure() {
	p.ensureRegistered()
	p.sampleFailures.Inc()
}

// SetSamplers sets the active sampler gauge.
func (p *PrometheusCollector) SetSamplers(count int) {
	p.ensureRegistered()
	p.samplers.Set(float64(count))
}
