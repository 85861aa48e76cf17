package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsensusMetrics tracks C4/C5 activity: votes and priorities collected,
// equivocations detected, committed heights and view changes.
type ConsensusMetrics struct {
	votesCollected  *prometheus.CounterVec
	doubleVotes     *prometheus.CounterVec
	prioritiesFiled *prometheus.CounterVec
	heightCommitted prometheus.Gauge
	viewChanges     *prometheus.CounterVec
	roundDuration   *prometheus.HistogramVec
	blockInterval   prometheus.Gauge
}

var (
	consensusMetricsOnce     sync.Once
	consensusMetricsRegistry *ConsensusMetrics
)

// Consensus returns the lazily-initialised consensus metrics registry.
func Consensus() *ConsensusMetrics {
	consensusMetricsOnce.Do(func() {
		consensusMetricsRegistry = &ConsensusMetrics{
			votesCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "consensus_votes_collected_total",
				Help: "Count of votes accepted by the vote collector, by step.",
			}, []string{"step"}),
			doubleVotes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "consensus_double_votes_total",
				Help: "Count of equivocations detected by the vote collector, by step.",
			}, []string{"step"}),
			prioritiesFiled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "consensus_priorities_filed_total",
				Help: "Count of sortition priorities filed per round.",
			}, []string{"step"}),
			heightCommitted: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "consensus_height_committed",
				Help: "Most recently committed block height.",
			}),
			viewChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "consensus_view_changes_total",
				Help: "Count of view (round) advances, by reason.",
			}, []string{"reason"}),
			roundDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "consensus_round_duration_seconds",
				Help:    "Wall-clock time spent in a single (height, view), by step at which it ended.",
				Buckets: prometheus.DefBuckets,
			}, []string{"step"}),
			blockInterval: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "consensus_block_interval_seconds",
				Help: "Wall-clock time between the timestamps of consecutive committed blocks.",
			}),
		}
		prometheus.MustRegister(
			consensusMetricsRegistry.votesCollected,
			consensusMetricsRegistry.doubleVotes,
			consensusMetricsRegistry.prioritiesFiled,
			consensusMetricsRegistry.heightCommitted,
			consensusMetricsRegistry.viewChanges,
			consensusMetricsRegistry.roundDuration,
			consensusMetricsRegistry.blockInterval,
		)
	})
	return consensusMetricsRegistry
}

func (m *ConsensusMetrics) ObserveVoteCollected(step string) {
	if m == nil {
		return
	}
	m.votesCollected.WithLabelValues(step).Inc()
}

func (m *ConsensusMetrics) ObserveDoubleVote(step string) {
	if m == nil {
		return
	}
	m.doubleVotes.WithLabelValues(step).Inc()
}

func (m *ConsensusMetrics) ObservePriorityFiled(step string) {
	if m == nil {
		return
	}
	m.prioritiesFiled.WithLabelValues(step).Inc()
}

func (m *ConsensusMetrics) SetHeightCommitted(height uint64) {
	if m == nil {
		return
	}
	m.heightCommitted.Set(float64(height))
}

func (m *ConsensusMetrics) ObserveViewChange(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.viewChanges.WithLabelValues(reason).Inc()
}

func (m *ConsensusMetrics) ObserveRoundDuration(step string, seconds float64) {
	if m == nil {
		return
	}
	m.roundDuration.WithLabelValues(step).Observe(seconds)
}

// RecordBlockInterval updates the block interval gauge with the wall-clock
// gap since the previously committed block.
func (m *ConsensusMetrics) RecordBlockInterval(interval time.Duration) {
	if m == nil {
		return
	}
	m.blockInterval.Set(interval.Seconds())
}

func stepLabel(height, view uint64) string {
	return fmt.Sprintf("h%d-v%d", height, view)
}
