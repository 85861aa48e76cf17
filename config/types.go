package config

import (
	"time"

	"tendercore/consensus/worker"
)

// ConsensusConfig carries every tunable the engine consumes that spec.md §6
// enumerates under "Configuration": per-step timeout base/growth, the
// empty-block cooldown, how many views ahead the worker tolerates, and the
// constant reward folded into a block's author payment on close.
type ConsensusConfig struct {
	ProposeBaseMs    int64 `toml:"ProposeBaseMs"`
	ProposeDeltaMs   int64 `toml:"ProposeDeltaMs"`
	PrevoteBaseMs    int64 `toml:"PrevoteBaseMs"`
	PrevoteDeltaMs   int64 `toml:"PrevoteDeltaMs"`
	PrecommitBaseMs  int64 `toml:"PrecommitBaseMs"`
	PrecommitDeltaMs int64 `toml:"PrecommitDeltaMs"`
	CommitTimeoutMs  int64 `toml:"CommitTimeoutMs"`

	MinEmptyBlockIntervalMs int64  `toml:"MinEmptyBlockIntervalMs"`
	AllowedFutureViewsGap   uint64 `toml:"AllowedFutureViewsGap"`

	BlockReward uint64 `toml:"BlockReward"`

	// SortitionExpectation is the expected committee size sortition aims for
	// at every height (spec.md §4.3 "expectation: f64 (expected committee
	// size)").
	SortitionExpectation float64 `toml:"SortitionExpectation"`
}

// ToTimeoutConfig converts the millisecond-denominated TOML fields into the
// worker's time.Duration-based TimeoutConfig.
func (c ConsensusConfig) ToTimeoutConfig() worker.TimeoutConfig {
	ms := time.Millisecond
	return worker.TimeoutConfig{
		ProposeBase:           time.Duration(c.ProposeBaseMs) * ms,
		ProposeDelta:          time.Duration(c.ProposeDeltaMs) * ms,
		PrevoteBase:           time.Duration(c.PrevoteBaseMs) * ms,
		PrevoteDelta:          time.Duration(c.PrevoteDeltaMs) * ms,
		PrecommitBase:         time.Duration(c.PrecommitBaseMs) * ms,
		PrecommitDelta:        time.Duration(c.PrecommitDeltaMs) * ms,
		CommitTimeout:         time.Duration(c.CommitTimeoutMs) * ms,
		MinEmptyBlockInterval: time.Duration(c.MinEmptyBlockIntervalMs) * ms,
		AllowedFutureViewsGap: c.AllowedFutureViewsGap,
	}
}
