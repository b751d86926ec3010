package apiserver

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

const namespace = "ytinsight"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)
)

var engineMetricsOnce sync.Once

// registerEngineMetrics exposes the engine's atomic counters as Prometheus
// counters read at scrape time.
func registerEngineMetrics() {
	engineMetricsOnce.Do(func() {
		for _, key := range engine.MetricKeys() {
			promauto.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      key + "_total",
				Help:      "Engine counter " + key,
			}, func() float64 {
				return float64(engine.GetMetrics()[key])
			})
		}
	})
}

// metricsMiddleware records request counts and latency per route template.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
