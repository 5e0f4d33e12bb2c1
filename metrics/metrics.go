// Package metrics exposes stashbox's Prometheus collectors: HTTP request
// counts and latencies, connection pool activity, and upload/view totals.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sagarc03/stashbox"
	"github.com/sagarc03/stashbox/pool"
)

const namespace = "stashbox"

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	poolEvents *prometheus.CounterVec
	poolInUse  prometheus.Gauge
	poolWait   prometheus.Histogram

	uploads     prometheus.Counter
	uploadBytes prometheus.Counter
	views       prometheus.Counter
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		poolEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "events_total",
			Help:      "Connection pool lifecycle events by kind.",
		}, []string{"kind"}),
		poolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "connections_in_use",
			Help:      "Connections currently checked out of the pool.",
		}),
		poolWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "acquire_wait_seconds",
			Help:      "Time callers waited for a pooled connection.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		uploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "objects",
			Name:      "uploads_total",
			Help:      "Uploads whose record was written.",
		}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "objects",
			Name:      "upload_bytes_total",
			Help:      "Bytes stored by recorded uploads.",
		}),
		views: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "objects",
			Name:      "views_total",
			Help:      "View events stored.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.poolEvents,
		m.poolInUse,
		m.poolWait,
		m.uploads,
		m.uploadBytes,
		m.views,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// PoolListener records pool events. Pass it to pool.Config.Listeners.
func (m *Metrics) PoolListener(ev pool.Event) {
	m.poolEvents.WithLabelValues(ev.Kind.String()).Inc()
	m.poolInUse.Set(float64(ev.InUse))
	if ev.Kind == pool.EventAcquire {
		m.poolWait.Observe(ev.Waited.Seconds())
	}
}

// Hooks returns service hooks that count uploads and views.
func (m *Metrics) Hooks() stashbox.Hooks {
	return stashbox.Hooks{
		Uploaded: m.ObjectUploaded,
		Viewed:   m.ObjectViewed,
	}
}

// ObjectUploaded counts a recorded upload and its size.
func (m *Metrics) ObjectUploaded(obj stashbox.StoredObject) {
	m.uploads.Inc()
	if obj.SizeBytes > 0 {
		m.uploadBytes.Add(float64(obj.SizeBytes))
	}
}

// ObjectViewed counts a stored view event.
func (m *Metrics) ObjectViewed(stashbox.ViewEvent) {
	m.views.Inc()
}

// Middleware records request counts and latency labelled by the chi route
// pattern, so /v1/{id} is one series rather than one per object.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
