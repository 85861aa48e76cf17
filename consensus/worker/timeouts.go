package worker

import "time"

// TimeoutConfig carries the per-step base and linear-growth parameters the
// worker consults when arming a step timer (spec.md §4.5 "Timeouts"):
// timeout(step, V) = base[step] + V * delta[step].
type TimeoutConfig struct {
	ProposeBase    time.Duration
	ProposeDelta   time.Duration
	PrevoteBase    time.Duration
	PrevoteDelta   time.Duration
	PrecommitBase  time.Duration
	PrecommitDelta time.Duration
	CommitTimeout  time.Duration

	MinEmptyBlockInterval time.Duration
	AllowedFutureViewsGap uint64
}

// DefaultTimeoutConfig mirrors the magnitude of consensus/bft's
// defaultTimeoutConfig, retuned for the view-linear-growth formula this
// worker uses instead of a flat per-step timeout.
func DefaultTimeoutConfig() TimeoutConfig {
	return TimeoutConfig{
		ProposeBase:           3 * time.Second,
		ProposeDelta:          500 * time.Millisecond,
		PrevoteBase:           1 * time.Second,
		PrevoteDelta:          500 * time.Millisecond,
		PrecommitBase:         1 * time.Second,
		PrecommitDelta:        500 * time.Millisecond,
		CommitTimeout:         2 * time.Second,
		MinEmptyBlockInterval: 10 * time.Second,
		AllowedFutureViewsGap: 4,
	}
}

func (c TimeoutConfig) propose(view uint64) time.Duration {
	return c.ProposeBase + time.Duration(view)*c.ProposeDelta
}

func (c TimeoutConfig) prevote(view uint64) time.Duration {
	return c.PrevoteBase + time.Duration(view)*c.PrevoteDelta
}

func (c TimeoutConfig) precommit(view uint64) time.Duration {
	return c.PrecommitBase + time.Duration(view)*c.PrecommitDelta
}
