package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "productreview"

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
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served",
		},
	)

	// AggregateRecomputes counts product aggregate recomputations by result
	// (ok, skipped, error).
	AggregateRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregate_recomputes_total",
			Help:      "Product aggregate recomputations by result",
		},
		[]string{"result"},
	)

	AggregateRecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "aggregate_recompute_duration_seconds",
			Help:      "Time spent reading reviews and writing product aggregates",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// ReviewMutations counts committed review writes (created, updated, deleted).
	ReviewMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_mutations_total",
			Help:      "Committed review mutations by type",
		},
		[]string{"type"},
	)

	StatsCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_cache_lookups_total",
			Help:      "Product statistics cache lookups by outcome (hit, miss)",
		},
		[]string{"outcome"},
	)
)

// ObserveRecompute records one recomputation and how long it took.
func ObserveRecompute(result string, started time.Time) {
	AggregateRecomputes.WithLabelValues(result).Inc()
	AggregateRecomputeDuration.Observe(time.Since(started).Seconds())
}

// GinMiddleware collects HTTP metrics labelled by the matched route template.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
