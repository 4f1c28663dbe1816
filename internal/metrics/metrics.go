package metrics

import (
	"net/http"
	"strconv"
	"time"

	"order-access-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "order_access"

// Metrics holds the service collectors. A nil *Metrics records nothing, so
// callers never need to check for it.
type Metrics struct {
	registry *prometheus.Registry

	resolutions      *prometheus.CounterVec
	lifecycleActions *prometheus.CounterVec
	grantMutations   *prometheus.CounterVec
	sweepRuns        *prometheus.CounterVec
	sweepArchived    prometheus.Counter
	sweepDuration    prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_resolutions_total",
			Help:      "Effective permission resolutions by winning source.",
		}, []string{"source"}),
		lifecycleActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_actions_total",
			Help:      "Committed lifecycle mutations by history action.",
		}, []string{"action"}),
		grantMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grant_mutations_total",
			Help:      "Committed grant mutations by history action.",
		}, []string{"action"}),
		sweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiration_sweep_runs_total",
			Help:      "Expiration sweep runs by outcome.",
		}, []string{"result"}),
		sweepArchived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiration_sweep_archived_total",
			Help:      "Orders archived by the expiration sweep.",
		}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "expiration_sweep_duration_seconds",
			Help:      "Duration of expiration sweep runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Registry exposes the registry for tests and custom gathering
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveResolution counts one permission resolution
func (m *Metrics) ObserveResolution(source models.PermissionSource) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(source.String()).Inc()
}

// ObserveLifecycle counts one committed lifecycle action
func (m *Metrics) ObserveLifecycle(action models.OrderAction) {
	if m == nil {
		return
	}
	m.lifecycleActions.WithLabelValues(action.String()).Inc()
}

// ObserveGrantMutation counts one committed grant mutation
func (m *Metrics) ObserveGrantMutation(action models.OrderAction) {
	if m == nil {
		return
	}
	m.grantMutations.WithLabelValues(action.String()).Inc()
}

// ObserveSweep records one sweep run
func (m *Metrics) ObserveSweep(archived int, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if failed {
		result = "error"
	}
	m.sweepRuns.WithLabelValues(result).Inc()
	m.sweepArchived.Add(float64(archived))
	m.sweepDuration.Observe(elapsed.Seconds())
}

// GinMiddleware records request counts and latency per matched route
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
