// Package metrics exposes Prometheus instrumentation for the request filter.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tkingovr/captcha-guard/api"
)

const namespace = "captchaguard"

// Recorder owns a private registry and the filter's collectors.
type Recorder struct {
	registry *prometheus.Registry

	requestsTotal        *prometheus.CounterVec
	verificationDuration prometheus.Histogram
}

// NewRecorder creates a Recorder with its collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of filtered requests by outcome",
			},
			[]string{"outcome"},
		),
		verificationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "verification_duration_seconds",
				Help:      "Duration of siteverify calls in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
	}
	r.registry.MustRegister(
		r.requestsTotal,
		r.verificationDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveOutcome counts one filtered request.
func (r *Recorder) ObserveOutcome(outcome api.Outcome) {
	r.requestsTotal.WithLabelValues(string(outcome)).Inc()
}

// ObserveVerification records the duration of one siteverify call.
func (r *Recorder) ObserveVerification(d time.Duration) {
	r.verificationDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
