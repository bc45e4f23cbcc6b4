// Package metrics exposes Prometheus instrumentation for the incentive
// service: HTTP request counts and domain operation outcomes.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goodhaul/incentive/pkg/incentive"
)

// Metrics bundles the collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	operationsTotal *prometheus.CounterVec
	pointsMoved     *prometheus.CounterVec
}

// New builds and registers the collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	metrics := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incentive",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "incentive",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incentive",
			Name:      "operations_total",
			Help:      "Domain operations by name and outcome.",
		}, []string{"operation", "status"}),
		pointsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incentive",
			Name:      "points_moved_total",
			Help:      "Absolute points moved through the ledger by operation.",
		}, []string{"operation"}),
	}
	registry.MustRegister(
		metrics.httpRequests,
		metrics.httpDuration,
		metrics.operationsTotal,
		metrics.pointsMoved,
	)
	return metrics
}

// Handler serves the scrape endpoint.
func (metrics *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records per-request counters and latency.
func (metrics *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		started := time.Now()
		ctx.Next()
		route := ctx.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.httpRequests.WithLabelValues(
			ctx.Request.Method,
			route,
			strconv.Itoa(ctx.Writer.Status()),
		).Inc()
		metrics.httpDuration.WithLabelValues(route).Observe(time.Since(started).Seconds())
	}
}

// LogOperation implements incentive.OperationLogger so the services feed the
// operation counters directly.
func (metrics *Metrics) LogOperation(_ context.Context, entry incentive.OperationLog) {
	metrics.operationsTotal.WithLabelValues(entry.Operation, entry.Status).Inc()
	if entry.Error == nil && entry.Amount != 0 {
		amount := entry.Amount.Int64()
		if amount < 0 {
			amount = -amount
		}
		metrics.pointsMoved.WithLabelValues(entry.Operation).Add(float64(amount))
	}
}
