// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IdentifyTotal tracks identify calls by source and outcome or error kind
	IdentifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "identity",
			Name:      "identify_total",
			Help:      "Total number of identify calls by source and result",
		},
		[]string{"source", "result"},
	)

	// IdentifyDuration tracks identify latency including the transaction
	IdentifyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "identity",
			Name:      "identify_duration_seconds",
			Help:      "Duration of identify calls in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"source"},
	)

	// ContactsDemotedTotal tracks primaries demoted by merges
	ContactsDemotedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "identity",
			Name:      "contacts_demoted_total",
			Help:      "Total number of primary contacts demoted by cluster merges",
		},
	)

	// ClusterSize tracks the size of clusters returned by identify
	ClusterSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "identity",
			Name:      "cluster_size",
			Help:      "Number of contacts in the cluster returned by identify",
			Buckets:   []float64{1, 2, 3, 5, 10, 25, 50, 100},
		},
	)

	// CacheRequestsTotal tracks consolidated view cache lookups
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Total number of consolidated view cache lookups by result",
		},
		[]string{"result"},
	)

	// KafkaMessagesProduced tracks contact events published
	KafkaMessagesProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_produced_total",
			Help:      "Total number of contact events produced",
		},
		[]string{"topic", "event_type", "status"},
	)

	// KafkaMessagesConsumed tracks purchase events consumed
	KafkaMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_consumed_total",
			Help:      "Total number of purchase events consumed by status",
		},
		[]string{"topic", "status"},
	)
)

// RecordIdentify records one identify call. result is the outcome on success
// or the error kind on failure.
func RecordIdentify(source, result string, durationSeconds float64) {
	IdentifyTotal.WithLabelValues(source, result).Inc()
	IdentifyDuration.WithLabelValues(source).Observe(durationSeconds)
}

func RecordMerge(demoted int) {
	ContactsDemotedTotal.Add(float64(demoted))
}

func RecordClusterSize(size int) {
	ClusterSize.Observe(float64(size))
}

// RecordCacheLookup records a cache hit, miss, error, or a stale write that was skipped.
func RecordCacheLookup(result string) {
	CacheRequestsTotal.WithLabelValues(result).Inc()
}

func RecordKafkaProduce(topic, eventType, status string) {
	KafkaMessagesProduced.WithLabelValues(topic, eventType, status).Inc()
}

func RecordKafkaConsume(topic, status string) {
	KafkaMessagesConsumed.WithLabelValues(topic, status).Inc()
}
