package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/duduk-dev/duduk/internal/errors"
	"github.com/duduk-dev/duduk/pkg/router"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "duduk").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request and render duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "duduk",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus collectors for the host.
type metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestErrors    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	rendersTotal     *prometheus.CounterVec
	renderDuration   prometheus.Histogram
	modulesLoaded    *prometheus.CounterVec
	inflightRequests prometheus.Gauge
}

// globalMetrics is created by the first call to Prometheus, HTTPMetrics
// or RenderObserver and shared by all of them.
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "route_requests_total",
			Help:        "Total number of routed requests by route id and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "route_request_duration_seconds",
			Help:        "Routed request duration in seconds, middleware included",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		requestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "route_errors_total",
			Help:        "Total number of routed requests that failed, by error category",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "error_type"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP responses by method and status code",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "code"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"method"}),

		rendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "renders_total",
			Help:        "Total number of server renders by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		renderDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_duration_seconds",
			Help:        "Server render duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		modulesLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "modules_loaded_total",
			Help:        "Total number of modules linked by renders, by program cache result",
			ConstLabels: config.ConstLabels,
		}, []string{"cache"}),

		inflightRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_in_flight",
			Help:        "Number of HTTP requests being served",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func sharedMetrics(opts []MetricsOption) *metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	return globalMetrics
}

// Prometheus creates route middleware that counts and times every routed
// request. Put it first in the chain so its timing covers the rest.
//
// Metrics collected:
//   - duduk_route_requests_total: requests by route id and outcome
//   - duduk_route_request_duration_seconds: duration by route id
//   - duduk_route_errors_total: failures by route id and error category
//
// Example:
//
//	app.Use(middleware.Prometheus(middleware.WithNamespace("shop")))
func Prometheus(opts ...MetricsOption) router.Middleware {
	m := sharedMetrics(opts)

	return func(p router.MiddlewareParams) (http.ResponseWriter, error) {
		route := p.Event.RouteID
		if route == "" {
			route = "/"
		}

		start := time.Now()
		w, err := p.Resolve(p.Event)
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.requestErrors.WithLabelValues(route, categorizeError(err)).Inc()
		}
		m.requestsTotal.WithLabelValues(route, status).Inc()

		return w, err
	}
}

// HTTPMetrics returns net/http middleware that counts responses by
// method and status code. It sees every request, including static files
// and unmatched paths.
func HTTPMetrics(opts ...MetricsOption) func(http.Handler) http.Handler {
	m := sharedMetrics(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.inflightRequests.Inc()
			defer m.inflightRequests.Dec()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			m.httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
			m.httpRequests.WithLabelValues(r.Method, strconv.Itoa(code)).Inc()
		})
	}
}

// categorizeError returns a low-cardinality label for err.
func categorizeError(err error) string {
	var de *errors.DudukError
	if errors.As(err, &de) {
		if de.Code == errors.CodeRenderInterrupted {
			return "timeout"
		}
		if de.Category != "" {
			return string(de.Category)
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// RenderMetrics records render outcomes and module cache results. It
// satisfies the rendering engine's observer interface.
type RenderMetrics struct {
	m *metrics
}

// RenderObserver returns a RenderMetrics backed by the shared collectors.
func RenderObserver(opts ...MetricsOption) *RenderMetrics {
	return &RenderMetrics{m: sharedMetrics(opts)}
}

// ObserveRender records one render.
func (r *RenderMetrics) ObserveRender(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = categorizeError(err)
	}
	r.m.rendersTotal.WithLabelValues(status).Inc()
	r.m.renderDuration.Observe(d.Seconds())
}

// ObserveModule records one linked module.
func (r *RenderMetrics) ObserveModule(cached bool) {
	label := "miss"
	if cached {
		label = "hit"
	}
	r.m.modulesLoaded.WithLabelValues(label).Inc()
}
