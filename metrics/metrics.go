package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tournament"

// Metrics holds the engine counters. A nil *Metrics is valid and records
// nothing, which keeps tests free of registries.
type Metrics struct {
	matchTransitions *prometheus.CounterVec
	matchesSettled   prometheus.Counter
	pointsAwarded    *prometheus.CounterVec
	poolRounds       *prometheus.CounterVec
	snapshots        prometheus.Counter
	ingestedRecords  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		matchTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_transitions_total",
			Help:      "Match lifecycle transitions by operation.",
		}, []string{"operation"}),
		matchesSettled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_settled_total",
			Help:      "Matches that reached agreement and were settled.",
		}),
		pointsAwarded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Ranking points credited, by source.",
		}, []string{"source"}),
		poolRounds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_rounds_total",
			Help:      "Pool bracket operations by kind.",
		}, []string{"operation"}),
		snapshots: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ranking_snapshots_total",
			Help:      "Ranking snapshots persisted.",
		}),
		ingestedRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timetrial_records_total",
			Help:      "Time trial submissions by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) MatchTransition(operation string) {
	if m == nil {
		return
	}
	m.matchTransitions.WithLabelValues(operation).Inc()
}

func (m *Metrics) MatchSettled() {
	if m == nil {
		return
	}
	m.matchesSettled.Inc()
}

// PointsAwarded counts positive credits only; counters cannot go down.
func (m *Metrics) PointsAwarded(source string, points int) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsAwarded.WithLabelValues(source).Add(float64(points))
}

func (m *Metrics) PoolRound(operation string) {
	if m == nil {
		return
	}
	m.poolRounds.WithLabelValues(operation).Inc()
}

func (m *Metrics) SnapshotCreated() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}

func (m *Metrics) RecordIngested(outcome string) {
	if m == nil {
		return
	}
	m.ingestedRecords.WithLabelValues(outcome).Inc()
}
