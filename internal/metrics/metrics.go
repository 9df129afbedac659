// Package metrics exposes Prometheus instrumentation for the research
// pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics collects counters and histograms across the candidate
// funnel. All metrics live in a private registry so tests can build isolated
// instances.
type PipelineMetrics struct {
	registry *prometheus.Registry

	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	RunCost     prometheus.Histogram

	StageLatency    *prometheus.HistogramVec
	CandidatesTotal *prometheus.CounterVec

	SearchCalls  *prometheus.CounterVec
	CacheLookups *prometheus.CounterVec
	BudgetSpent  prometheus.Gauge

	OpportunitiesTotal prometheus.Counter
	OpportunityScore   prometheus.Histogram
	OpportunityEdge    prometheus.Histogram
}

// New creates a metrics collector with its own registry.
func New() *PipelineMetrics {
	m := &PipelineMetrics{
		registry: prometheus.NewRegistry(),

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_runs_total",
				Help: "Total number of pipeline runs by termination reason",
			},
			[]string{"termination"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scout_run_duration_seconds",
				Help:    "End-to-end pipeline run duration",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
			},
			[]string{"termination"},
		),
		RunCost: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scout_run_cost_usd",
				Help:    "Research spend per run in USD",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),

		StageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scout_stage_latency_seconds",
				Help:    "Per-candidate stage latency",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"stage"},
		),
		CandidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_candidates_total",
				Help: "Candidate outcomes by kind",
			},
			[]string{"outcome"},
		),

		SearchCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_search_calls_total",
				Help: "Research backend calls by tier and status",
			},
			[]string{"tier", "status"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_cache_lookups_total",
				Help: "Research cache lookups by result",
			},
			[]string{"result"},
		),
		BudgetSpent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "scout_budget_spent_usd",
				Help: "Committed research spend for the current run",
			},
		),

		OpportunitiesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scout_opportunities_total",
				Help: "Total scored opportunities across runs",
			},
		),
		OpportunityScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scout_opportunity_score",
				Help:    "Opportunity score distribution",
				Buckets: prometheus.LinearBuckets(0, 0.05, 11), // 0 to 0.5
			},
		),
		OpportunityEdge: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scout_opportunity_edge",
				Help:    "Absolute edge of scored opportunities",
				Buckets: prometheus.LinearBuckets(0, 0.05, 11),
			},
		),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RunCost,
		m.StageLatency,
		m.CandidatesTotal,
		m.SearchCalls,
		m.CacheLookups,
		m.BudgetSpent,
		m.OpportunitiesTotal,
		m.OpportunityScore,
		m.OpportunityEdge,
	)

	return m
}

// Registry returns the backing registry for the /metrics handler.
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records one completed pipeline run.
func (m *PipelineMetrics) RecordRun(termination string, durationSec, costUSD float64) {
	m.RunsTotal.WithLabelValues(termination).Inc()
	m.RunDuration.WithLabelValues(termination).Observe(durationSec)
	m.RunCost.Observe(costUSD)
}

// RecordStage records one candidate passing through a stage.
func (m *PipelineMetrics) RecordStage(stage string, durationSec float64) {
	m.StageLatency.WithLabelValues(stage).Observe(durationSec)
}

// RecordOutcome tallies one candidate outcome.
func (m *PipelineMetrics) RecordOutcome(outcome string) {
	m.CandidatesTotal.WithLabelValues(outcome).Inc()
}

// RecordSearch records one research backend call.
func (m *PipelineMetrics) RecordSearch(tier, status string) {
	m.SearchCalls.WithLabelValues(tier, status).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (m *PipelineMetrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordOpportunity records one scored opportunity.
func (m *PipelineMetrics) RecordOpportunity(score, edge float64) {
	m.OpportunitiesTotal.Inc()
	m.OpportunityScore.Observe(score)
	m.OpportunityEdge.Observe(edge)
}

var (
	defaultMetrics *PipelineMetrics
	once           sync.Once
)

// Default returns the shared process-wide collector.
func Default() *PipelineMetrics {
	once.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}
