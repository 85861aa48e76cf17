package votecollector

import (
	"testing"

	"tendercore/consensus/types"
)

func mkRound(h, v uint64, step types.Step) types.Round {
	return types.Round{Height: h, View: v, Step: step}
}

func TestCollectNewVote(t *testing.T) {
	c := New(nil)
	round := mkRound(1, 0, types.StepPrevote)
	vote := &types.Vote{Round: round, BlockHash: []byte{1, 2, 3}, SignerIndex: 0}
	isNew, dv, err := c.Collect(vote)
	if err != nil || !isNew || dv != nil {
		t.Fatalf("Collect first vote: isNew=%v dv=%v err=%v", isNew, dv, err)
	}
	isNew, dv, err = c.Collect(vote)
	if err != nil || isNew || dv != nil {
		t.Fatalf("Collect duplicate vote: isNew=%v dv=%v err=%v", isNew, dv, err)
	}
}

func TestCollectDoubleVote(t *testing.T) {
	c := New(nil)
	round := mkRound(1, 0, types.StepPrevote)
	v1 := &types.Vote{Round: round, BlockHash: []byte{1}, SignerIndex: 5}
	v2 := &types.Vote{Round: round, BlockHash: []byte{2}, SignerIndex: 5}
	c.Collect(v1)
	_, dv, err := c.Collect(v2)
	if err != nil || dv == nil {
		t.Fatalf("expected DoubleVote, got dv=%v err=%v", dv, err)
	}
	if dv.SignerIndex != 5 || dv.First != v1 || dv.Second != v2 {
		t.Fatalf("unexpected double vote contents: %+v", dv)
	}
}

func TestIsOldOrKnown(t *testing.T) {
	c := New(nil)
	round := mkRound(5, 0, types.StepPrevote)
	vote := &types.Vote{Round: round, BlockHash: []byte{1}, SignerIndex: 0}
	if c.IsOldOrKnown(vote) {
		t.Fatalf("unseen vote at a retained round should not be old/known")
	}
	c.Collect(vote)
	if !c.IsOldOrKnown(vote) {
		t.Fatalf("identical re-delivery should be known")
	}
	c.ThrowOutOld(mkRound(10, 0, types.StepPropose))
	older := &types.Vote{Round: mkRound(6, 0, types.StepPrevote), SignerIndex: 0}
	if !c.IsOldOrKnown(older) {
		t.Fatalf("vote at a round before the new oldest marker should be old")
	}
}

func TestThrowOutOldKeepsMapNonEmpty(t *testing.T) {
	c := New(nil)
	c.Collect(&types.Vote{Round: mkRound(1, 0, types.StepPrevote), SignerIndex: 0, BlockHash: []byte{1}})
	c.Collect(&types.Vote{Round: mkRound(2, 0, types.StepPrevote), SignerIndex: 0, BlockHash: []byte{2}})
	c.ThrowOutOld(mkRound(2, 0, types.StepPrevote))
	if len(c.rounds) == 0 {
		t.Fatalf("rounds map must never become empty")
	}
	if _, ok := c.rounds[mkRound(1, 0, types.StepPrevote)]; ok {
		t.Fatalf("round 1 should have been dropped")
	}
	if _, ok := c.rounds[mkRound(2, 0, types.StepPrevote)]; !ok {
		t.Fatalf("retained round should remain as marker")
	}
}

func TestBlockRoundVotesBitset(t *testing.T) {
	c := New(nil)
	round := mkRound(1, 0, types.StepPrecommit)
	hash := []byte{0xAA}
	c.Collect(&types.Vote{Round: round, BlockHash: hash, SignerIndex: 0})
	c.Collect(&types.Vote{Round: round, BlockHash: hash, SignerIndex: 2})
	c.Collect(&types.Vote{Round: round, BlockHash: []byte{0xBB}, SignerIndex: 1})

	bits := c.BlockRoundVotes(round, hash, 4)
	if bits.Count() != 2 || !bits.Test(0) || !bits.Test(2) {
		t.Fatalf("unexpected bitset: count=%d indices=%v", bits.Count(), bits.Indices())
	}
}

func TestRoundSignaturesAndIndicesAscending(t *testing.T) {
	c := New(nil)
	round := mkRound(1, 0, types.StepPrecommit)
	hash := []byte{0xAA}
	c.Collect(&types.Vote{Round: round, BlockHash: hash, SignerIndex: 3, Signature: []byte{3}})
	c.Collect(&types.Vote{Round: round, BlockHash: hash, SignerIndex: 1, Signature: []byte{1}})
	c.Collect(&types.Vote{Round: round, BlockHash: hash, SignerIndex: 2, Signature: []byte{2}})

	sigs, indices := c.RoundSignaturesAndIndices(round, hash)
	if len(indices) != 3 || indices[0] != 1 || indices[1] != 2 || indices[2] != 3 {
		t.Fatalf("indices not ascending: %v", indices)
	}
	if len(sigs) != 3 || sigs[0][0] != 1 || sigs[1][0] != 2 || sigs[2][0] != 3 {
		t.Fatalf("signatures not aligned to ascending indices: %v", sigs)
	}
}

func TestHighestPriorityInfoPicksMax(t *testing.T) {
	c := New(nil)
	round := mkRound(1, 0, types.StepPropose)
	low := &types.PriorityInfo{SignerIndex: 0, Priority: [32]byte{0x01}}
	high := &types.PriorityInfo{SignerIndex: 1, Priority: [32]byte{0xFF}}
	c.CollectPriority(round, low)
	c.CollectPriority(round, high)

	best := c.GetHighestPriorityInfo(round)
	if best == nil || best.SignerIndex != 1 {
		t.Fatalf("expected signer 1 to have highest priority, got %+v", best)
	}
}
