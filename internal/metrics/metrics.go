// Package metrics defines the application's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Import pipeline metrics
var (
	// ImportsTotal tracks total CSV imports by terminal status
	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnmanage_imports_total",
			Help: "Total number of CSV imports by status",
		},
		[]string{"company_id", "status"},
	)

	// ImportDuration tracks end-to-end import duration
	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vulnmanage_import_duration_seconds",
			Help:    "CSV import duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"company_id"},
	)

	// ImportChunkDuration tracks per-chunk reconciliation duration
	ImportChunkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vulnmanage_import_chunk_duration_seconds",
			Help:    "Reconciliation duration of one import chunk in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
	)

	// ImportRowsParsed tracks parsed CSV rows by outcome
	ImportRowsParsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnmanage_import_rows_parsed_total",
			Help: "Total parsed CSV rows by outcome (kept, skipped, duplicate, informational)",
		},
		[]string{"outcome"},
	)
)

// Reconciliation metrics
var (
	// FindingsCreated tracks new findings created during reconciliation
	FindingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnmanage_findings_created_total",
			Help: "Total new findings created",
		},
		[]string{"company_id"},
	)

	// FindingsResolved tracks findings marked resolved by the absence pass
	FindingsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnmanage_findings_resolved_total",
			Help: "Total findings marked resolved",
		},
		[]string{"company_id"},
	)

	// FindingsReopened tracks resolved findings flipped back to unresolved
	FindingsReopened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnmanage_findings_reopened_total",
			Help: "Total findings reopened on re-import",
		},
		[]string{"company_id"},
	)
)

// Summary metrics
var (
	// SummaryRebuildsTotal tracks summary recomputations
	SummaryRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnmanage_summary_rebuilds_total",
			Help: "Total period summary rebuilds by trigger (import, recalculate, scheduled)",
		},
		[]string{"trigger"},
	)

	// SummaryRebuildDuration tracks summary rebuild duration
	SummaryRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vulnmanage_summary_rebuild_duration_seconds",
			Help:    "Period summary rebuild duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
)

// HTTP metrics
var (
	// HTTPRequestsTotal tracks HTTP requests by method, route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnmanage_http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request duration by method and route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vulnmanage_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
