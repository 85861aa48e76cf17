// Package votecollector implements C4: per-(height, view, step) vote and
// priority bookkeeping, equivocation detection, and the weighted-threshold
// queries the consensus worker and validator registry need (spec.md §4.4).
package votecollector

import (
	"sync"

	"tendercore/consensus/types"
)

type roundEntry struct {
	votes      map[uint32]*types.Vote
	priorities map[uint32]*types.PriorityInfo
}

func newRoundEntry() *roundEntry {
	return &roundEntry{
		votes:      make(map[uint32]*types.Vote),
		priorities: make(map[uint32]*types.PriorityInfo),
	}
}

// Collector owns every round's votes and priorities. It is exclusively
// mutated by C5 (spec.md §5 "C4 is owned exclusively by C5"); Collector
// itself only needs to be safe for the worker's own goroutine, but an
// RWMutex is kept so read-only façade queries (e.g. for metrics/debug
// endpoints) can run concurrently without blocking the worker.
type Collector struct {
	mu     sync.RWMutex
	rounds map[types.Round]*roundEntry
	oldest types.Round

	metrics Metrics
}

// Metrics is the narrow observability surface the collector reports
// through; nil is a valid no-op implementation.
type Metrics interface {
	ObserveVoteCollected(round types.Round)
	ObserveDoubleVote(round types.Round)
	ObservePriorityCollected(round types.Round)
}

// New creates a Collector with a single dummy entry at the zero round, so
// is_old_or_known and throw_out_old are well-defined from the start
// (spec.md §4.4 "empty-round invariant").
func New(metrics Metrics) *Collector {
	c := &Collector{rounds: make(map[types.Round]*roundEntry), metrics: metrics}
	zero := types.Round{}
	c.rounds[zero] = newRoundEntry()
	c.oldest = zero
	return c
}

func (c *Collector) entry(round types.Round) *roundEntry {
	e, ok := c.rounds[round]
	if !ok {
		e = newRoundEntry()
		c.rounds[round] = e
	}
	return e
}

// Collect files a vote, reporting whether it was new, and surfacing a
// DoubleVote when a different vote already exists for the same
// (round, signer_index) (spec.md §4.4, invariant 2).
func (c *Collector) Collect(vote *types.Vote) (isNew bool, dv *types.DoubleVote, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if vote.Round.Less(c.oldest) {
		return false, nil, nil
	}
	e := c.entry(vote.Round)
	existing, ok := e.votes[vote.SignerIndex]
	if !ok {
		e.votes[vote.SignerIndex] = vote
		c.observeVote(vote.Round)
		return true, nil, nil
	}
	if existing.SameContent(vote) {
		return false, nil, nil
	}
	c.observeDoubleVote(vote.Round)
	return false, &types.DoubleVote{
		SignerIndex: vote.SignerIndex,
		Round:       vote.Round,
		First:       existing,
		Second:      vote,
	}, nil
}

// CollectPriority files a PriorityInfo for a Propose-step round, reporting
// whether it was new.
func (c *Collector) CollectPriority(round types.Round, priority *types.PriorityInfo) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if round.Less(c.oldest) {
		return false
	}
	e := c.entry(round)
	if _, ok := e.priorities[priority.SignerIndex]; ok {
		return false
	}
	e.priorities[priority.SignerIndex] = priority
	c.observePriority(round)
	return true
}

// IsOldOrKnown reports whether a vote is already filed, or whether its
// round predates the oldest retained round (spec.md §4.4).
func (c *Collector) IsOldOrKnown(vote *types.Vote) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if vote.Round.Less(c.oldest) {
		return true
	}
	e, ok := c.rounds[vote.Round]
	if !ok {
		return false
	}
	existing, ok := e.votes[vote.SignerIndex]
	return ok && existing.SameContent(vote)
}

// ThrowOutOld drops every round strictly older than round, retaining round
// itself as the new marker so the map is never empty (spec.md §4.4).
func (c *Collector) ThrowOutOld(round types.Round) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for r := range c.rounds {
		if r.Less(round) {
			delete(c.rounds, r)
		}
	}
	if _, ok := c.rounds[round]; !ok {
		c.rounds[round] = newRoundEntry()
	}
	c.oldest = round
}

func (c *Collector) observeVote(round types.Round) {
	if c.metrics != nil {
		c.metrics.ObserveVoteCollected(round)
	}
}

func (c *Collector) observeDoubleVote(round types.Round) {
	if c.metrics != nil {
		c.metrics.ObserveDoubleVote(round)
	}
}

func (c *Collector) observePriority(round types.Round) {
	if c.metrics != nil {
		c.metrics.ObservePriorityCollected(round)
	}
}
