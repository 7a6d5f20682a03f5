// Package metrics exposes the service's Prometheus collectors. Collectors
// are registered on the default registry at init and served on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts handled HTTP requests by method, path and status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vlan_api_requests_total",
		Help: "Total number of HTTP requests handled",
	}, []string{"method", "path", "status"})

	// SuggestionsTotal counts grouping suggestions by outcome: "ok" for a
	// parsed model reply, "fallback" for a malformed one, "backend_error"
	// when the inference call itself failed.
	SuggestionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vlan_api_suggestions_total",
		Help: "Total number of grouping suggestion requests by outcome",
	}, []string{"outcome"})

	// RateLimitedTotal counts requests rejected by the per-address limiter.
	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vlan_api_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	})

	// AuditWriteFailures counts decision-log appends that could not be
	// written. Writes are best-effort, so this is the only failure signal.
	AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vlan_api_audit_write_failures_total",
		Help: "Total number of failed audit log writes",
	})

	// BackendUp reports the result of the most recent Ollama health probe.
	BackendUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vlan_api_backend_up",
		Help: "Whether the last Ollama health probe succeeded (1) or failed (0)",
	})
)

// Handler returns the exposition handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
