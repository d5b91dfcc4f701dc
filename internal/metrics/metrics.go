// Package metrics exposes prometheus collectors for scan execution.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan job metrics
var (
	// ScanJobsTotal tracks scan jobs reaching a terminal state.
	ScanJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_jobs_total",
			Help: "Total number of scan jobs by scan type and final status",
		},
		[]string{"scan_type", "status"},
	)

	// ScanTaskDuration tracks task runtime by source and scan type.
	ScanTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scan_task_duration_seconds",
			Help:    "Scan task duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"source_type", "scan_type"},
	)

	// SystemsProcessedTotal tracks per-system outcomes inside tasks.
	SystemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "systems_processed_total",
			Help: "Total systems processed by source type and outcome",
		},
		[]string{"source_type", "status"},
	)
)

// Fingerprint metrics
var (
	// FingerprintsTotal tracks fingerprints by validity.
	FingerprintsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fingerprints_total",
			Help: "Total fingerprints produced, by validity",
		},
		[]string{"result"},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal tracks API requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path pattern and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks API latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
