package votecollector

import (
	"tendercore/consensus/types"
	"tendercore/observability/metrics"
)

// PrometheusMetrics adapts the shared consensus metrics registry to the
// narrow Metrics interface Collector consumes (spec.md §4.4), a
// package-local adapter so Collector itself depends on the narrow
// interface below rather than on Prometheus directly.
type PrometheusMetrics struct {
	reg *metrics.ConsensusMetrics
}

// NewPrometheusMetrics wraps the process-wide consensus metrics registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{reg: metrics.Consensus()}
}

func (p *PrometheusMetrics) ObserveVoteCollected(round types.Round) {
	p.reg.ObserveVoteCollected(round.Step.String())
}

func (p *PrometheusMetrics) ObserveDoubleVote(round types.Round) {
	p.reg.ObserveDoubleVote(round.Step.String())
}

func (p *PrometheusMetrics) ObservePriorityCollected(round types.Round) {
	p.reg.ObservePriorityFiled(round.Step.String())
}
