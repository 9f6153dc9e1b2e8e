// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// UpstreamQueryDuration tracks calls to the query API.
	UpstreamQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_query_duration_seconds",
			Help:    "Query API call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"mode", "outcome"},
	)

	// UpstreamQueriesTotal counts calls to the query API by outcome.
	UpstreamQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_queries_total",
			Help: "Total query API calls",
		},
		[]string{"mode", "outcome"},
	)

	// LoadMoreTotal counts pagination requests.
	LoadMoreTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_more_total",
			Help: "Total show-more pagination requests",
		},
		[]string{"outcome"},
	)

	// BeaconsTotal counts analytics beacons.
	BeaconsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_beacons_total",
			Help: "Total analytics beacons sent",
		},
		[]string{"event", "outcome"},
	)

	// SessionsActive tracks live chat sessions held by the gateway.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of chat sessions held in memory",
		},
	)

	// TranscriptEntriesTotal counts transcript entries appended.
	TranscriptEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcript_entries_total",
			Help: "Total transcript entries appended",
		},
		[]string{"role"},
	)

	// JournalPublishTotal counts transcript entries published to NATS.
	JournalPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_publish_total",
			Help: "Transcript entries published to the journal",
		},
		[]string{"outcome"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordUpstreamQuery records metrics for one query API call.
func RecordUpstreamQuery(mode, outcome string, duration float64) {
	UpstreamQueryDuration.WithLabelValues(mode, outcome).Observe(duration)
	UpstreamQueriesTotal.WithLabelValues(mode, outcome).Inc()
}

// IncrementSessions increments the active session count.
func IncrementSessions() {
	SessionsActive.Inc()
}

// DecrementSessions decrements the active session count.
func DecrementSessions() {
	SessionsActive.Dec()
}
