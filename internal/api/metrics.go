package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry           *prometheus.Registry
	requestTotal       *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	rateLimitRejected  *prometheus.CounterVec
	conversions        *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
	inputBytes         *prometheus.HistogramVec
	outputBytes        *prometheus.HistogramVec
	activeConversions  prometheus.Gauge
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sizeBuckets := prometheus.ExponentialBuckets(16*1024, 4, 8)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackprep_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trackprep_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackprep_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trackprep_conversions_total",
			Help: "Conversions by media kind and outcome.",
		}, []string{"kind", "outcome"}),
		conversionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trackprep_conversion_duration_seconds",
			Help:    "Time spent inside a normalizer.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		inputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trackprep_conversion_input_bytes",
			Help:    "Decoded input payload size.",
			Buckets: sizeBuckets,
		}, []string{"kind"}),
		outputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trackprep_conversion_output_bytes",
			Help:    "Encoded output size.",
			Buckets: sizeBuckets,
		}, []string{"kind"}),
		activeConversions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trackprep_active_conversions",
			Help: "Conversions currently holding a concurrency slot.",
		}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.conversions,
		m.conversionDuration,
		m.inputBytes,
		m.outputBytes,
		m.activeConversions,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := strconv.Itoa(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

// routeLabel collapses aliases and unknown paths to keep label cardinality
// bounded.
func routeLabel(path string) string {
	switch {
	case path == routeAudio || path == routeAudioAlias:
		return routeAudio
	case path == routeImage || path == routeImageAlias:
		return routeImage
	case strings.HasPrefix(path, "/healthz"):
		return "/healthz"
	case strings.HasPrefix(path, "/metrics"):
		return "/metrics"
	default:
		return "other"
	}
}

func isConversionRoute(path string) bool {
	switch routeLabel(path) {
	case routeAudio, routeImage:
		return true
	default:
		return false
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
