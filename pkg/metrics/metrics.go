// Package metrics holds the prometheus collectors for dreamer.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics:
//   - dreamer_generation_jobs_total{kind,outcome}
//   - dreamer_poll_attempts{kind}
//   - dreamer_relay_bytes_total
//   - dreamer_relay_fetches_total{outcome}
//   - dreamer_analyses_total{outcome}
type Metrics struct {
	GenerationJobs *prometheus.CounterVec
	PollAttempts   *prometheus.HistogramVec
	RelayBytes     prometheus.Counter
	RelayFetches   *prometheus.CounterVec
	Analyses       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New registers the collectors on a fresh registry, so each server (and
// each test) gets its own.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		GenerationJobs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dreamer_generation_jobs_total",
				Help: "Generation jobs by media kind and outcome",
			},
			[]string{"kind", "outcome"}, // "ok", "failed", "timeout", "error", "canceled"
		),
		PollAttempts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dreamer_poll_attempts",
				Help:    "Status queries made per asynchronous job",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"kind"},
		),
		RelayBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "dreamer_relay_bytes_total",
			Help: "Bytes fetched from upstream by the media relay",
		}),
		RelayFetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dreamer_relay_fetches_total",
				Help: "Upstream fetches made by the media relay",
			},
			[]string{"outcome"},
		),
		Analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dreamer_analyses_total",
				Help: "Dream analyses by outcome",
			},
			[]string{"outcome"}, // "ok", "malformed", "provider_error"
		),
		registry: reg,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveJob(kind, outcome string, attempts int) {
	m.GenerationJobs.WithLabelValues(kind, outcome).Inc()
	if attempts > 0 {
		m.PollAttempts.WithLabelValues(kind).Observe(float64(attempts))
	}
}

func (m *Metrics) ObserveRelay(bytes int, err error) {
	if err != nil {
		m.RelayFetches.WithLabelValues("error").Inc()
		return
	}
	m.RelayFetches.WithLabelValues("ok").Inc()
	m.RelayBytes.Add(float64(bytes))
}

func (m *Metrics) ObserveAnalysis(outcome string) {
	m.Analyses.WithLabelValues(outcome).Inc()
}
