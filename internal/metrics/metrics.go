// Package metrics exports log directory parse and cache activity as
// Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mesalogs"

// Recorder implements mesa.Observer on a private registry.
type Recorder struct {
	registry     *prometheus.Registry
	filesParsed  *prometheus.CounterVec
	parseSeconds *prometheus.HistogramVec
	profileCache *prometheus.CounterVec
	runsLoaded   prometheus.Gauge
	requests     *prometheus.CounterVec
	requestTime  *prometheus.HistogramVec
}

// New builds a Recorder with its collectors registered. Process and Go
// runtime collectors are included.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		filesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_parsed_total",
			Help:      "Output files parsed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		parseSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "Time spent parsing output files.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"kind"}),
		profileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_cache_requests_total",
			Help:      "Profile requests, by cache result.",
		}, []string{"result"}),
		runsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_loaded",
			Help:      "Log directories currently served.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by route pattern and status code.",
		}, []string{"route", "code"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency, by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	r.registry.MustRegister(
		r.filesParsed,
		r.parseSeconds,
		r.profileCache,
		r.runsLoaded,
		r.requests,
		r.requestTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// FileParsed records one parse attempt.
func (r *Recorder) FileParsed(kind string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.filesParsed.WithLabelValues(kind, outcome).Inc()
	r.parseSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

// ProfileCache records a profile cache lookup.
func (r *Recorder) ProfileCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.profileCache.WithLabelValues(result).Inc()
}

// ObserveRequest records one served HTTP request.
func (r *Recorder) ObserveRequest(route string, status int, d time.Duration) {
	r.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	r.requestTime.WithLabelValues(route).Observe(d.Seconds())
}

// SetRuns sets the number of loaded runs.
func (r *Recorder) SetRuns(n int) {
	r.runsLoaded.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
