// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Labels are
// the method, the registered Gin route and, for the counter only, the status
// code.
//
// Websocket upgrades are counted but kept out of the latency and size
// histograms: their handler runs for the lifetime of the connection.
// Connection-level metrics live in the realtime package.
package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "chat"
	metricsSubsystem = "http"
)

var (
	httpReqs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	httpLat = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "request_duration_seconds",
		Help:      "Latency of non-websocket HTTP requests.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "path"})

	httpInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "requests_inflight",
		Help:      "In-flight HTTP requests, websocket sessions excluded.",
	})

	// Bodies are capped at 1MiB, so buckets stop there.
	httpRespSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "response_size_bytes",
		Help:      "Size of HTTP response bodies.",
		Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
	}, []string{"method", "path"})
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route, method := routeLabel(c), c.Request.Method

		if isWebsocketUpgrade(c) {
			c.Next()
			httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
			return
		}

		httpInflight.Inc()
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)
		httpInflight.Dec()

		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, route).Observe(elapsed.Seconds())
		if size := c.Writer.Size(); size >= 0 { // -1 when nothing was written
			httpRespSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}

// routeLabel is the registered route pattern. Unmatched requests share one
// label so that scanners probing random paths cannot grow the series count.
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}

func isWebsocketUpgrade(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader("Upgrade"), "websocket")
}
