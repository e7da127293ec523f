package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the federation engine
type Metrics struct {
	// Validation metrics
	RequestsValidatedTotal *prometheus.CounterVec

	// Response metrics
	ResponsesIssuedTotal *prometheus.CounterVec
	AssertionsEncrypted  prometheus.Counter

	// Artifact metrics
	ArtifactsStoredTotal   prometheus.Counter
	ArtifactsResolvedTotal prometheus.Counter
	ArtifactsMissedTotal   prometheus.Counter

	// Logout metrics
	LogoutNotificationsTotal   *prometheus.CounterVec
	LogoutNotificationsSkipped prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsValidatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "samlfed_requests_validated_total",
				Help: "Protocol requests validated, by message type and outcome",
			},
			[]string{"type", "outcome"},
		),
		ResponsesIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "samlfed_responses_issued_total",
				Help: "Sign-in responses issued, by binding",
			},
			[]string{"binding"},
		),
		AssertionsEncrypted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "samlfed_assertions_encrypted_total",
				Help: "Assertions encrypted for relying parties with an encryption certificate",
			},
		),
		ArtifactsStoredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "samlfed_artifacts_stored_total",
				Help: "Responses stored under an artifact for later resolution",
			},
		),
		ArtifactsResolvedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "samlfed_artifacts_resolved_total",
				Help: "Artifacts successfully resolved and consumed",
			},
		),
		ArtifactsMissedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "samlfed_artifacts_missed_total",
				Help: "Artifact resolution attempts for unknown or already-consumed artifacts",
			},
		),
		LogoutNotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "samlfed_logout_notifications_total",
				Help: "Front-channel logout notifications rendered, by binding",
			},
			[]string{"binding"},
		),
		LogoutNotificationsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "samlfed_logout_notifications_skipped_total",
				Help: "Session participants skipped during logout fan-out",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "samlfed_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "samlfed_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.RequestsValidatedTotal,
		m.ResponsesIssuedTotal,
		m.AssertionsEncrypted,
		m.ArtifactsStoredTotal,
		m.ArtifactsResolvedTotal,
		m.ArtifactsMissedTotal,
		m.LogoutNotificationsTotal,
		m.LogoutNotificationsSkipped,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
