// Package metrics exposes Prometheus instrumentation for the curator
// pipeline: phase durations, cache hit rate, safety block rate, and staged
// proposal counts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PhaseDuration records wall-clock time spent in each named curator phase.
var PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "curator",
	Name:      "phase_duration_seconds",
	Help:      "Duration of each curator workflow phase.",
	Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
}, []string{"phase"})

// BriefCacheLookups counts brief-extraction memoization lookups by outcome
// ("hit" or "miss").
var BriefCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "curator",
	Name:      "brief_cache_lookups_total",
	Help:      "Brief extraction cache lookups by outcome.",
}, []string{"outcome"})

// SafetyVerdicts counts safety reviewer verdicts by kind ("safe", "fix",
// "blocked"), so the block rate can be derived as blocked / total.
var SafetyVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "curator",
	Name:      "safety_verdicts_total",
	Help:      "Safety reviewer verdicts by kind.",
}, []string{"kind"})

// ProposalsStaged counts sync proposals written by the stager, by operation
// (insert/update/merge/delete).
var ProposalsStaged = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "curator",
	Name:      "proposals_staged_total",
	Help:      "Sync proposals written by the action stager, by operation.",
}, []string{"operation"})

// WorkflowOutcomes counts curator workflow runs by terminal status.
var WorkflowOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "curator",
	Name:      "workflow_outcomes_total",
	Help:      "Curator workflow runs by terminal status.",
}, []string{"status"})

// RefinementRevisions counts refinement workflow invocations by whether the
// draft was actually updated (false once a proposal hits its revision cap).
var RefinementRevisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "curator",
	Name:      "refinement_revisions_total",
	Help:      "Refinement workflow invocations by whether the draft was updated.",
}, []string{"draft_updated"})
