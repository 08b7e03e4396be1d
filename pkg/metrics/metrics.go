package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TransitionsTotal counts workflow status transitions, labeled by the
	// status the QAP moved into.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qap",
			Name:      "transitions_total",
			Help:      "Total number of QAP workflow status transitions.",
		},
		[]string{"to_status"},
	)

	// LevelResponsesTotal counts recorded review responses by level and role.
	LevelResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qap",
			Name:      "level_responses_total",
			Help:      "Total number of review responses recorded.",
		},
		[]string{"level", "role"},
	)

	// HTTPRequestsTotal counts handled HTTP requests by method, path and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qap",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

// Handler exposes the Prometheus scrape endpoint as a gin handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
