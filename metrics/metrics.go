// Package metrics registers the archive's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsArchived counts records stored, by kecamatan.
	RecordsArchived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akta_records_archived_total",
			Help: "Total number of marriage records archived",
		},
		[]string{"kecamatan"},
	)

	// Verifications counts fingerprint checks, by outcome and entry point.
	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akta_verifications_total",
			Help: "Total number of record verifications by outcome",
		},
		[]string{"source", "outcome"},
	)

	// Extractions counts AI field extraction calls.
	Extractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "akta_extractions_total",
			Help: "Total number of AI field extraction requests by result",
		},
		[]string{"result"},
	)

	// ExtractionDuration observes AI round-trip latency.
	ExtractionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "akta_extraction_duration_seconds",
			Help:    "Latency of AI field extraction requests in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		},
	)
)

// ObserveVerification records one verification outcome.
func ObserveVerification(source, outcome string) {
	Verifications.WithLabelValues(source, outcome).Inc()
}
