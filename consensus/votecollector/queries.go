package votecollector

import (
	"sort"

	"tendercore/consensus/types"
)

// AlignedVotes returns the bitset of signer indices that voted for the same
// (round, block_hash) as vote, sized to validatorCount (spec.md §4.4).
func (c *Collector) AlignedVotes(vote *types.Vote, validatorCount int) *types.BitSet {
	return c.BlockRoundVotes(vote.Round, vote.BlockHash, validatorCount)
}

// BlockRoundVotes returns the bitset of signer indices that cast a vote for
// hash at round.
func (c *Collector) BlockRoundVotes(round types.Round, hash []byte, validatorCount int) *types.BitSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bits := types.NewBitSet(validatorCount)
	e, ok := c.rounds[round]
	if !ok {
		return bits
	}
	for idx, v := range e.votes {
		if bytesEqual(v.BlockHash, hash) {
			bits.Set(int(idx))
		}
	}
	return bits
}

// RoundVotes returns the bitset of signer indices that voted for any block
// hash (including nil) at round.
func (c *Collector) RoundVotes(round types.Round, validatorCount int) *types.BitSet {
	c.mu.RLock()
	defer c.mu.RUnlock()

	bits := types.NewBitSet(validatorCount)
	e, ok := c.rounds[round]
	if !ok {
		return bits
	}
	for idx := range e.votes {
		bits.Set(int(idx))
	}
	return bits
}

// RoundSignaturesAndIndices returns the signatures and signer indices of
// every vote at round matching hash, both ordered by ascending signer index
// (spec.md §4.4, §6 "ascending signer index order").
func (c *Collector) RoundSignaturesAndIndices(round types.Round, hash []byte) (signatures [][]byte, indices []int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.rounds[round]
	if !ok {
		return nil, nil
	}
	idxs := make([]int, 0, len(e.votes))
	for idx, v := range e.votes {
		if bytesEqual(v.BlockHash, hash) {
			idxs = append(idxs, int(idx))
		}
	}
	sort.Ints(idxs)
	signatures = make([][]byte, len(idxs))
	for i, idx := range idxs {
		signatures[i] = e.votes[uint32(idx)].Signature
	}
	return signatures, idxs
}

// GetHighestPriorityInfo returns the PriorityInfo with the greatest priority
// filed for round, or nil if none were collected.
func (c *Collector) GetHighestPriorityInfo(round types.Round) *types.PriorityInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.rounds[round]
	if !ok || len(e.priorities) == 0 {
		return nil
	}
	var best *types.PriorityInfo
	for _, p := range e.priorities {
		if best == nil || p.Dominates(*best) {
			best = p
		}
	}
	return best
}

// ProposalSummary pairs the winning priority with the proposer's signer
// index, the shape C5 needs to decide whose proposal to wait for.
type ProposalSummary struct {
	SignerIndex uint32
	Priority    types.PriorityInfo
}

// GetHighestProposalSummary is GetHighestPriorityInfo projected down to the
// (signer, priority) pair the worker cares about.
func (c *Collector) GetHighestProposalSummary(round types.Round) (*ProposalSummary, bool) {
	info := c.GetHighestPriorityInfo(round)
	if info == nil {
		return nil, false
	}
	return &ProposalSummary{SignerIndex: info.SignerIndex, Priority: *info}, true
}

// BlockHashesFromHighest returns the proposers' signer indices in
// descending priority order, used to pick a fallback proposal if the
// top-priority proposer never delivers a block.
func (c *Collector) BlockHashesFromHighest(round types.Round) []uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.rounds[round]
	if !ok {
		return nil
	}
	infos := make([]*types.PriorityInfo, 0, len(e.priorities))
	for _, p := range e.priorities {
		infos = append(infos, p)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[j].Less(*infos[i]) })
	out := make([]uint32, len(infos))
	for i, p := range infos {
		out[i] = p.SignerIndex
	}
	return out
}

// DistinctHashes returns every distinct non-nil block hash voted on at
// round, used by the worker to evaluate quorum across candidate hashes
// without knowing them in advance.
func (c *Collector) DistinctHashes(round types.Round) [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.rounds[round]
	if !ok {
		return nil
	}
	seen := make(map[string][]byte)
	for _, v := range e.votes {
		if v.IsNil() {
			continue
		}
		seen[string(v.BlockHash)] = v.BlockHash
	}
	out := make([][]byte, 0, len(seen))
	for _, h := range seen {
		out = append(out, h)
	}
	return out
}

// AllVotes returns every vote filed at round, used by the gossip forwarding
// tick to learn what it might need to relay (spec.md §4.6).
func (c *Collector) AllVotes(round types.Round) []*types.Vote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.rounds[round]
	if !ok {
		return nil
	}
	out := make([]*types.Vote, 0, len(e.votes))
	for _, v := range e.votes {
		out = append(out, v)
	}
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
