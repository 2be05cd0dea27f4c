package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
	// RateLimited counts requests rejected by the rate limiter
	RateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected with 429."},
	)

	// PlanMoves counts move attempts by outcome (moved, noop, needs_confirmation)
	PlanMoves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "plan_moves_total", Help: "Weekly plan move attempts by outcome."},
		[]string{"outcome"},
	)
	PlanDerivations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "plan_derivations_total", Help: "Effective weekly views derived."},
	)
	RouteSuggestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_suggestions_total", Help: "Route suggestions computed by mode."},
		[]string{"mode"},
	)
	// RouteDistance observes the closed-loop distance of each suggestion
	RouteDistance = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_distance_km", Help: "Suggested route distance in km.", Buckets: []float64{10, 25, 50, 100, 200, 300, 400, 600}},
	)
	DraftsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "drafts_generated_total", Help: "Draft plans generated."},
	)
	DraftSitesUnplaced = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "draft_sites_unplaced_total", Help: "Eligible sites dropped from drafts because of the per-consultant cap."},
	)
	SitesReassigned = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "sites_reassigned_total", Help: "Site ownership changes, including site-group propagation."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration, RateLimited)
		Registry.MustRegister(PlanMoves, PlanDerivations, RouteSuggestions, RouteDistance)
		Registry.MustRegister(DraftsGenerated, DraftSitesUnplaced, SitesReassigned)
		Registry.MustRegister(WebhookDeliveries, WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
