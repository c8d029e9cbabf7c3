package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record outcomes.
const (
	OutcomeProcessed     = "processed"
	OutcomeQuarantined   = "quarantined"
	OutcomeSkippedPrefix = "skipped_prefix"
	OutcomeSkippedBucket = "skipped_bucket"
	OutcomeError         = "error"
)

var (
	// Per-record metrics
	RecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawproc_records_total",
			Help: "Total number of notification records handled, by outcome",
		},
		[]string{"outcome"},
	)

	RecordDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rawproc_record_duration_seconds",
			Help:    "Duration of handling one accepted record in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ObjectBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rawproc_object_bytes_total",
			Help: "Total bytes of raw object data fetched",
		},
	)

	// Batch metrics
	BatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawproc_batches_total",
			Help: "Total number of notification batches handled, by status",
		},
		[]string{"status"},
	)
)
