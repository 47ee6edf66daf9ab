// Package metrics exposes wizard activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rentdesk/backend/internal/application/rental"
)

// Metric names, prefixed with the configured namespace
const (
	MetricDraftSavesTotal        = "draft_saves_total"
	MetricDraftSaveSeconds       = "draft_save_duration_seconds"
	MetricDraftRestoresTotal     = "draft_restores_total"
	MetricConflictsTotal         = "contract_conflicts_total"
	MetricSupersededResultsTotal = "superseded_results_total"
	MetricSubmissionsTotal       = "contract_submissions_total"
)

// RentalMetrics implements rental.Metrics on its own registry.
// A nil *RentalMetrics records nothing.
type RentalMetrics struct {
	registry *prometheus.Registry

	draftSaves       *prometheus.CounterVec
	draftSaveSeconds prometheus.Histogram
	draftRestores    *prometheus.CounterVec
	conflicts        *prometheus.CounterVec
	superseded       *prometheus.CounterVec
	submissions      *prometheus.CounterVec
}

// NewRentalMetrics registers the wizard metrics plus the Go and process
// collectors on a fresh registry
func NewRentalMetrics(namespace string) *RentalMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &RentalMetrics{
		registry: reg,

		draftSaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricDraftSavesTotal,
			Help:      "Draft store writes by outcome",
		}, []string{"outcome"}),
		draftSaveSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      MetricDraftSaveSeconds,
			Help:      "Duration of draft store writes",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		draftRestores: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricDraftRestoresTotal,
			Help:      "Wizard openings by restore outcome",
		}, []string{"outcome"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricConflictsTotal,
			Help:      "Selections or submissions blocked by an open contract",
		}, []string{"stage"}),
		superseded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricSupersededResultsTotal,
			Help:      "Asynchronous results dropped because a newer selection won",
		}, []string{"op"}),
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricSubmissionsTotal,
			Help:      "Contract submissions by outcome",
		}, []string{"outcome"}),
	}
}

// Registry returns the registry the metrics live on
func (m *RentalMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *RentalMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *RentalMetrics) DraftSaved(outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.draftSaves.WithLabelValues(outcome).Inc()
	m.draftSaveSeconds.Observe(latency.Seconds())
}

func (m *RentalMetrics) DraftRestored(outcome string) {
	if m == nil {
		return
	}
	m.draftRestores.WithLabelValues(outcome).Inc()
}

func (m *RentalMetrics) ConflictDetected(stage string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(stage).Inc()
}

func (m *RentalMetrics) ResultSuperseded(op string) {
	if m == nil {
		return
	}
	m.superseded.WithLabelValues(op).Inc()
}

func (m *RentalMetrics) SubmissionFinished(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

var _ rental.Metrics = (*RentalMetrics)(nil)
