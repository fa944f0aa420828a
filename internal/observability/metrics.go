package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and the batch pipeline.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal       *prometheus.CounterVec
	httpRequestDuration     *prometheus.HistogramVec
	itemsProcessedTotal     prometheus.Counter
	itemsProcessFailedTotal *prometheus.CounterVec
	processRunDuration      prometheus.Histogram
	poolWorkers             prometheus.Gauge
	poolQueueDepth          prometheus.Gauge
	poolCallerRunsTotal     prometheus.Counter
	poolTasksSubmittedTotal prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "item_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "item_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		itemsProcessedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "item_engine",
				Name:      "items_processed_total",
				Help:      "Total number of items processed successfully by batch runs.",
			},
		),
		itemsProcessFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "item_engine",
				Name:      "items_process_failed_total",
				Help:      "Total number of items that failed inside batch runs, by reason.",
			},
			[]string{"reason"},
		),
		processRunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "item_engine",
				Name:      "process_run_duration_seconds",
				Help:      "Wall-clock duration of one batch processing run.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		poolWorkers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "item_engine",
				Name:      "pool_workers",
				Help:      "Current number of live worker goroutines in the task pool.",
			},
		),
		poolQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "item_engine",
				Name:      "pool_queue_depth",
				Help:      "Current number of tasks waiting in the pool backlog queue.",
			},
		),
		poolCallerRunsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "item_engine",
				Name:      "pool_caller_runs_total",
				Help:      "Total number of tasks executed on the submitting goroutine because the pool and its backlog were saturated.",
			},
		),
		poolTasksSubmittedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "item_engine",
				Name:      "pool_tasks_submitted_total",
				Help:      "Total number of tasks submitted to the pool.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.itemsProcessedTotal,
		m.itemsProcessFailedTotal,
		m.processRunDuration,
		m.poolWorkers,
		m.poolQueueDepth,
		m.poolCallerRunsTotal,
		m.poolTasksSubmittedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) AddItemsProcessed(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.itemsProcessedTotal.Add(float64(count))
}

func (m *Metrics) IncItemProcessFailed(reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.itemsProcessFailedTotal.WithLabelValues(reasonLabel).Inc()
}

func (m *Metrics) ObserveProcessRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.processRunDuration.Observe(seconds)
}

func (m *Metrics) SetPoolWorkers(count int) {
	if m == nil {
		return
	}
	m.poolWorkers.Set(float64(count))
}

func (m *Metrics) SetPoolQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.poolQueueDepth.Set(float64(depth))
}

func (m *Metrics) IncPoolCallerRun() {
	if m == nil {
		return
	}
	m.poolCallerRunsTotal.Inc()
}

func (m *Metrics) IncPoolTaskSubmitted() {
	if m == nil {
		return
	}
	m.poolTasksSubmittedTotal.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
