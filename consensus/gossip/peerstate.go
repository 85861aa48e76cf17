// Package gossip implements C6: per-peer consensus message state and the
// forward/pull traffic that moves votes and proposals between C5 and the
// network (spec.md §4.6).
package gossip

import (
	"sync"

	"tendercore/consensus/types"
)

// Tracker holds one types.PeerState per remote peer behind a single
// reader-writer lock, mirroring p2p.Peerstore's byAddr/byNode map-behind-
// RWMutex shape (spec.md §5 "C6's peer map uses a reader-writer lock; only
// C6 writes").
type Tracker struct {
	mu    sync.RWMutex
	peers map[string]*types.PeerState

	validatorCount int
}

// NewTracker creates an empty Tracker sized for validatorCount signer
// indices (used to allocate each peer's messages-known bitset).
func NewTracker(validatorCount int) *Tracker {
	return &Tracker{peers: make(map[string]*types.PeerState), validatorCount: validatorCount}
}

// SetValidatorCount resizes the bitset every peer's known-messages map uses,
// called when a new registry Set is built at a term boundary.
func (t *Tracker) SetValidatorCount(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.validatorCount = n
	for _, p := range t.peers {
		if p.MessagesKnown == nil || p.MessagesKnown.Len() != n {
			p.MessagesKnown = types.NewBitSet(n)
		}
	}
}

func (t *Tracker) entry(peerID string) *types.PeerState {
	p, ok := t.peers[peerID]
	if !ok {
		p = &types.PeerState{MessagesKnown: types.NewBitSet(t.validatorCount)}
		t.peers[peerID] = p
	}
	return p
}

// UpdateStepState applies an incoming StepState{round, proposal?, messages}
// wire message to peerID's tracked state (spec.md §4.6).
func (t *Tracker) UpdateStepState(peerID string, round types.Round, proposalHash []byte, known *types.BitSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.entry(peerID)
	p.VoteStep = round
	p.ProposalHash = proposalHash
	if known != nil {
		p.MessagesKnown = known
	}
}

// MarkKnown records that peerID is now known to have signer index idx's
// message for round, so the forwarding tick does not resend it. A peer
// tracked at any other round has its bitset reset first, since a bit set for
// one round says nothing about another.
func (t *Tracker) MarkKnown(peerID string, round types.Round, idx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.entry(peerID)
	if !p.VoteStep.Equal(round) {
		p.VoteStep = round
		p.MessagesKnown = types.NewBitSet(t.validatorCount)
	}
	p.MessagesKnown.Set(idx)
}

// NeedsVote reports whether peerID is not yet known to have signer index
// idx's vote for round.
func (t *Tracker) NeedsVote(peerID string, round types.Round, idx int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.peers[peerID]
	if !ok {
		return true
	}
	if !p.VoteStep.Equal(round) {
		return true
	}
	return !p.MessagesKnown.Test(idx)
}

// Peers returns a snapshot of tracked peer ids, for the forwarding tick to
// range over without holding the lock while it sends.
func (t *Tracker) Peers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.peers))
	for id := range t.peers {
		ids = append(ids, id)
	}
	return ids
}

// Remove drops a disconnected peer's tracked state.
func (t *Tracker) Remove(peerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, peerID)
}
