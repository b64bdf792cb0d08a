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
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
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

	// ProviderRequestDuration tracks inventory provider call latency.
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Inventory provider request duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30, 60, 90},
		},
		[]string{"operation", "status"},
	)

	// SearchesTotal tracks flight searches by trip type and outcome.
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flight_searches_total",
			Help: "Total flight searches",
		},
		[]string{"trip_type", "status"},
	)

	// OffersReturned tracks how many offers a search produced before selection.
	OffersReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flight_search_offers",
			Help:    "Number of normalized offers per search",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200},
		},
	)

	// EnrichmentFailuresTotal tracks offers degraded to their basic form.
	EnrichmentFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "offer_enrichment_failures_total",
			Help: "Offer detail fetches that failed and fell back to the basic offer",
		},
	)

	// StageTransitionsTotal tracks conversation stage changes.
	StageTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_stage_transitions_total",
			Help: "Conversation stage transitions",
		},
		[]string{"from", "to", "result"},
	)

	// BookingsTotal tracks order operations.
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_total",
			Help: "Order operations by kind and outcome",
		},
		[]string{"operation", "status"},
	)

	// IntentsTotal tracks intents returned by the dialogue collaborator.
	IntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dialogue_intents_total",
			Help: "Intents interpreted from user messages",
		},
		[]string{"intent"},
	)

	// SessionsPurgedTotal tracks expired sessions removed by the sweeper.
	SessionsPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_purged_total",
			Help: "Expired, non-booked sessions purged",
		},
	)

	// SSEConnectionsActive tracks active event stream connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordProviderCall records metrics for an inventory provider call.
func RecordProviderCall(operation, status string, duration float64) {
	ProviderRequestDuration.WithLabelValues(operation, status).Observe(duration)
}

// RecordSearch records a completed search.
func RecordSearch(tripType, status string, offers int) {
	SearchesTotal.WithLabelValues(tripType, status).Inc()
	if status == "success" {
		OffersReturned.Observe(float64(offers))
	}
}

// RecordTransition records a stage transition attempt.
func RecordTransition(from, to string, allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	StageTransitionsTotal.WithLabelValues(from, to, result).Inc()
}

// RecordBooking records an order operation.
func RecordBooking(operation, status string) {
	BookingsTotal.WithLabelValues(operation, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
