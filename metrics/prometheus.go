// Package metrics provides Prometheus metrics for the eligibility pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics. A nil *Metrics is a no-op, so
// components can be built without a registry in tests.
type Metrics struct {
	Classifications    *prometheus.CounterVec
	Evaluations        *prometheus.CounterVec
	RateResolutions    *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New creates the metrics and registers them on reg. Pass nil to use a
// fresh private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "classifications_total",
			Help: "Classifications created, by RUG group and category",
		}, []string{"group", "category"}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cost_evaluations_total",
			Help: "Cost evaluations, by budget status",
		}, []string{"status"}),
		RateResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_resolutions_total",
			Help: "Resolved rates, by fallback tier",
		}, []string{"source"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Definition cache lookups (result=hit|miss)",
		}, []string{"cache", "result"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_evaluation_duration_seconds",
			Help:    "End-to-end pipeline evaluation duration",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}

	reg.MustRegister(
		m.Classifications,
		m.Evaluations,
		m.RateResolutions,
		m.CacheLookups,
		m.EvaluationDuration,
	)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

func (m *Metrics) ObserveClassification(group, category string) {
	if m == nil {
		return
	}
	m.Classifications.WithLabelValues(group, category).Inc()
}

func (m *Metrics) ObserveEvaluation(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.Evaluations.WithLabelValues(status).Inc()
	m.EvaluationDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveRateSource(source string) {
	if m == nil {
		return
	}
	m.RateResolutions.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// Handler returns the Prometheus HTTP handler for the registry the metrics
// were registered on, or the default handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
