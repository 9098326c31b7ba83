package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsDecoded tracks events successfully decoded, by program and path
	// (log, cpi, instruction_type).
	EventsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tada_events_decoded_total",
			Help: "The total number of events decoded, by program and decode path",
		},
		[]string{"program", "path"},
	)

	// DecodeErrors tracks per-decoder failures, isolated by program so one
	// misbehaving decoder cannot obscure another's error rate.
	DecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tada_decode_errors_total",
			Help: "The total number of decode errors, by program and decode path",
		},
		[]string{"program", "path"},
	)

	// PipelineMatches tracks filter evaluations, by pipeline and outcome.
	PipelineMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tada_pipeline_matches_total",
			Help: "The total number of filter evaluations, by pipeline and outcome",
		},
		[]string{"pipeline", "matched"},
	)

	// TransformDuration tracks time spent rendering an output record.
	TransformDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tada_transform_duration_seconds",
		Help:    "Time taken to render an output record",
		Buckets: prometheus.DefBuckets,
	})

	// DeliveriesTotal tracks delivery attempts, by destination type and
	// outcome (success, rejected, retry, error).
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tada_deliveries_total",
			Help: "The total number of delivery attempts, by destination type and outcome",
		},
		[]string{"destination_type", "outcome"},
	)

	// RealtimeDrops tracks messages dropped from a full realtime subscriber
	// queue, by topic.
	RealtimeDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tada_realtime_drops_total",
			Help: "The total number of realtime messages dropped for a full subscriber queue",
		},
		[]string{"topic"},
	)

	// DestinationHostHealth tracks per-host webhook delivery health (1 =
	// healthy, 0 = unhealthy).
	DestinationHostHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tada_destination_host_health",
			Help: "Health status of webhook destination hosts (1 = healthy, 0 = unhealthy)",
		},
		[]string{"host"},
	)

	// WorkersActive tracks the number of active orchestrator workers.
	WorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tada_workers_active",
		Help: "The number of orchestrator workers currently active",
	})

	// PipelineStoreOperations tracks pipelinestore persistence operations.
	PipelineStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tada_pipelinestore_operations_total",
			Help: "The total number of pipeline store operations",
		},
		[]string{"operation", "status"},
	)

	// DedupeHits tracks dedupe check outcomes (new, duplicate, error).
	DedupeHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tada_dedupe_total",
			Help: "The total number of dedupe checks, by outcome (new, duplicate, error)",
		},
		[]string{"outcome"},
	)
)

// RecordDecoded records a successfully decoded event for a program/path.
func RecordDecoded(program, path string) {
	EventsDecoded.WithLabelValues(program, path).Inc()
}

// RecordDecodeError records a decode failure for a program/path.
func RecordDecodeError(program, path string) {
	DecodeErrors.WithLabelValues(program, path).Inc()
}

// RecordPipelineMatch records a filter evaluation outcome for a pipeline.
func RecordPipelineMatch(pipelineID string, matched bool) {
	label := "false"
	if matched {
		label = "true"
	}
	PipelineMatches.WithLabelValues(pipelineID, label).Inc()
}

// RecordTransformDuration records time spent rendering an output record.
func RecordTransformDuration(seconds float64) {
	TransformDuration.Observe(seconds)
}

// RecordDelivery records a delivery attempt outcome for a destination type.
func RecordDelivery(destinationType, outcome string) {
	DeliveriesTotal.WithLabelValues(destinationType, outcome).Inc()
}

// RecordRealtimeDrop records a dropped realtime message for a topic.
func RecordRealtimeDrop(topic string) {
	RealtimeDrops.WithLabelValues(topic).Inc()
}

// SetDestinationHostHealth sets the health status of a webhook destination host.
func SetDestinationHostHealth(host string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	DestinationHostHealth.WithLabelValues(host).Set(value)
}

// SetWorkersActive sets the current number of active orchestrator workers.
func SetWorkersActive(n int) {
	WorkersActive.Set(float64(n))
}

// RecordPipelineStoreOperation records a pipelinestore persistence operation.
func RecordPipelineStoreOperation(operation, status string) {
	PipelineStoreOperations.WithLabelValues(operation, status).Inc()
}

// RecordDedupe records a dedupe check outcome.
func RecordDedupe(outcome string) {
	DedupeHits.WithLabelValues(outcome).Inc()
}
