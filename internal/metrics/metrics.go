// Package metrics exposes Prometheus collectors for the upload relay and
// the HTTP server.
//
// Metrics collected (with the default "startup_cms" namespace):
//   - startup_cms_uploads_total: uploads by outcome
//   - startup_cms_upload_size_bytes: declared size of finished uploads
//   - startup_cms_storage_put_duration_seconds: storage write latency by backend
//   - startup_cms_http_requests_total: requests by route template, method and code
//   - startup_cms_http_request_duration_seconds: request latency by route template
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "startup_cms").
	Namespace string

	// Buckets are the histogram buckets for latencies.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithBuckets sets the latency histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the registered collectors.
type Metrics struct {
	uploadsTotal    *prometheus.CounterVec
	uploadSize      prometheus.Histogram
	storagePut      *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors.
func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: "startup_cms",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)

	return &Metrics{
		uploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "uploads_total",
			Help:      "Total number of image uploads by outcome",
		}, []string{"outcome"}),

		uploadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "upload_size_bytes",
			Help:      "Declared size of uploaded images in bytes",
			Buckets:   []float64{10 << 10, 100 << 10, 1 << 20, 5 << 20, 20 << 20, 50 << 20},
		}),

		storagePut: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "storage_put_duration_seconds",
			Help:      "Duration of object storage writes in seconds",
			Buckets:   cfg.Buckets,
		}, []string{"backend"}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "code"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   cfg.Buckets,
		}, []string{"route"}),
	}
}

// UploadFinished records one finished upload.
func (m *Metrics) UploadFinished(outcome string, size int64) {
	m.uploadsTotal.WithLabelValues(outcome).Inc()
	if size > 0 {
		m.uploadSize.Observe(float64(size))
	}
}

// StoragePut records one storage write.
func (m *Metrics) StoragePut(backend string, elapsed time.Duration) {
	m.storagePut.WithLabelValues(backend).Observe(elapsed.Seconds())
}

// Middleware records request counts and latency labelled by the matched mux
// route template, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
