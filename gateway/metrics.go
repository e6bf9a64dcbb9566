package gateway

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartcart_http_requests_total",
			Help: "Total HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartcart_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	alertsRaisedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartcart_alerts_raised_total",
			Help: "Alerts persisted by the correlator, by type.",
		},
		[]string{"type"},
	)

	paymentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartcart_payments_total",
			Help: "Completed payment transactions.",
		},
	)
)

// observeAlerts and observePayment feed the domain counters from the handler
// layer, keeping the services unaware of prometheus.
func observeAlerts(alertType string) {
	alertsRaisedTotal.WithLabelValues(alertType).Inc()
}

func observePayment() {
	paymentsTotal.Inc()
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// FullPath keeps label cardinality bounded; raw URLs with ids would
		// blow up the series count.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
