package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_http_requests_total",
			Help: "Total HTTP requests by route and status",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docvault_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_uploads_total",
			Help: "Document uploads by result (ok, rejected, failed)",
		},
		[]string{"result"},
	)

	deletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_deletes_total",
			Help: "Document deletions by result (ok, already_deleted, failed, dangling)",
		},
		[]string{"result"},
	)

	compensationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_upload_compensations_total",
			Help: "Blob removals after a failed metadata insert, by outcome (removed, orphaned)",
		},
		[]string{"outcome"},
	)

	workspaceCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_workspace_cache_total",
			Help: "Workspace cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by rule group",
		},
		[]string{"group"},
	)

	authEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docvault_auth_events_total",
			Help: "Session change events published by the identity provider",
		},
		[]string{"type"},
	)
)

// ObserveHTTP records one completed request. path should be the route
// template, not the raw URL, to keep label cardinality bounded.
func ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if path == "" {
		path = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// IncUpload counts an upload attempt outcome.
func IncUpload(result string) {
	uploadsTotal.WithLabelValues(result).Inc()
}

// IncDelete counts a deletion outcome.
func IncDelete(result string) {
	deletesTotal.WithLabelValues(result).Inc()
}

// IncCompensation counts a compensating blob removal outcome.
func IncCompensation(outcome string) {
	compensationsTotal.WithLabelValues(outcome).Inc()
}

// IncWorkspaceCache counts a workspace cache lookup.
func IncWorkspaceCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	workspaceCacheTotal.WithLabelValues(result).Inc()
}

// IncAuthEvent counts a published session change event.
// IncRateLimited counts one rejected request for group.
func IncRateLimited(group string) {
	rateLimitedTotal.WithLabelValues(group).Inc()
}

func IncAuthEvent(eventType string) {
	authEventsTotal.WithLabelValues(eventType).Inc()
}

// Handler exposes the default registry in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
