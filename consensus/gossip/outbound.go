package gossip

import (
	"context"
	"time"

	"tendercore/consensus/wire"
)

// DefaultTickInterval is how often the outbound forwarder re-scans peers'
// bitsets for anything new to relay (spec.md §4.6 "a periodic tick").
const DefaultTickInterval = 200 * time.Millisecond

// Run drives the periodic forwarding tick until ctx is cancelled. It is
// meant to be launched in its own goroutine by the façade that owns the
// Service (spec.md §4.6 "On outgoing").
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick consults every tracked peer's known-messages bitset and forwards any
// vote from the current round the peer has not yet acknowledged, then marks
// it known so the next tick does not resend it (spec.md §4.6).
func (s *Service) tick() {
	if s.votes == nil {
		return
	}
	round, err := s.votes.CurrentRound()
	if err != nil {
		return
	}
	votes, err := s.votes.KnownVotes(round)
	if err != nil || len(votes) == 0 {
		return
	}
	for _, peerID := range s.tracker.Peers() {
		for _, v := range votes {
			if !s.tracker.NeedsVote(peerID, round, int(v.SignerIndex)) {
				continue
			}
			msg, err := wire.Encode(wire.TagConsensusMessage, wire.ConsensusMessageFromVote(v))
			if err != nil {
				continue
			}
			// Backpressure: a failed send means the peer's outbound queue is
			// full; drop this vote for this peer rather than block the
			// whole tick, since the engine re-broadcasts on the next tick
			// regardless (spec.md §4.6 "Backpressure").
			if s.sendTo(peerID, msg) != nil {
				continue
			}
			s.tracker.MarkKnown(peerID, round, int(v.SignerIndex))
		}
	}
}
