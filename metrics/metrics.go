// Package metrics exposes Prometheus collectors for digest runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors and the registry they are registered on.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal          *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	PublishOutcomes    *prometheus.CounterVec
	LastSuccess        prometheus.Gauge
	HTTPRequestsTotal  *prometheus.CounterVec
}

// New creates a fresh registry with the digest collectors plus the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digest_runs_total",
				Help: "Total number of digest runs by final status",
			},
			[]string{"status"},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "digest_generation_duration_seconds",
				Help:    "Duration of the LLM generation step in seconds",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
			},
		),
		PublishOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digest_publish_outcomes_total",
				Help: "Total number of publish attempts by outcome",
			},
			[]string{"outcome"},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "digest_last_success_timestamp_seconds",
				Help: "Unix time of the last run that produced a digest",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "digest_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "path", "status_code"},
		),
	}
	m.registry.MustRegister(
		m.RunsTotal,
		m.GenerationDuration,
		m.PublishOutcomes,
		m.LastSuccess,
		m.HTTPRequestsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(status string, finished time.Time, produced bool) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	if produced {
		m.LastSuccess.Set(float64(finished.Unix()))
	}
}

// ObserveGeneration records how long the generation step took.
func (m *Metrics) ObserveGeneration(d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationDuration.Observe(d.Seconds())
}

// ObservePublish counts a publish attempt outcome.
func (m *Metrics) ObservePublish(outcome string) {
	if m == nil {
		return
	}
	m.PublishOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveHTTP counts one served request.
func (m *Metrics) ObserveHTTP(method, path string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
