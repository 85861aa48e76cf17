package registry

import (
	"testing"

	"tendercore/consensus/types"
)

func mkValidator(b byte, weight uint64) types.Validator {
	v := types.Validator{PublicKey: []byte{b}, Weight: weight}
	v.Address[19] = b
	return v
}

func TestSetIndexLookups(t *testing.T) {
	set, err := New(10, []types.Validator{mkValidator(1, 5), mkValidator(2, 5), mkValidator(3, 5)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if set.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", set.Count())
	}
	idx, ok := set.GetIndex([]byte{2})
	if !ok || idx != 1 {
		t.Fatalf("GetIndex([2]) = %d, %v", idx, ok)
	}
	if !set.ContainsAddress(mkValidator(3, 5).Address) {
		t.Fatalf("expected validator 3 address to be present")
	}
	if _, err := set.ValidatorAt(5); err == nil {
		t.Fatalf("expected ValidatorNotExist for out-of-range index")
	}
}

func TestNextBlockProposerRoundRobin(t *testing.T) {
	set, err := New(1, []types.Validator{mkValidator(1, 1), mkValidator(2, 1), mkValidator(3, 1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := set.NextBlockProposer(0); got != set.Get(0).Address {
		t.Fatalf("view 0 proposer mismatch")
	}
	if got := set.NextBlockProposer(3); got != set.Get(0).Address {
		t.Fatalf("view 3 should wrap back to validator 0, got %x", got)
	}
}

func TestCheckEnoughVotesThreshold(t *testing.T) {
	set, err := New(1, []types.Validator{mkValidator(1, 1), mkValidator(2, 1), mkValidator(3, 1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bits := types.NewBitSet(3)
	bits.Set(0)
	bits.Set(1)
	bits.Set(2)
	if err := set.CheckEnoughVotes(bits); err != nil {
		t.Fatalf("3 of 3 weight should exceed 2/3, got error: %v", err)
	}
	bits2 := types.NewBitSet(3)
	bits2.Set(0)
	if err := set.CheckEnoughVotes(bits2); err == nil {
		t.Fatalf("1 of 3 weight should not exceed 2/3")
	}
}

func TestCheckEnoughVotesWrongSize(t *testing.T) {
	set, err := New(1, []types.Validator{mkValidator(1, 1), mkValidator(2, 1)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := set.CheckEnoughVotes(types.NewBitSet(3)); err == nil {
		t.Fatalf("expected error for mismatched bitset size")
	}
}

func TestSortValidatorsOrdering(t *testing.T) {
	a := types.Validator{PublicKey: []byte{0xaa}, Delegation: 10, Deposit: 1}
	b := types.Validator{PublicKey: []byte{0xbb}, Delegation: 10, Deposit: 5}
	c := types.Validator{PublicKey: []byte{0xcc}, Delegation: 20, Deposit: 0}
	sorted := SortValidators([]types.Validator{a, b, c})
	if sorted[0].PublicKey[0] != 0xcc || sorted[1].PublicKey[0] != 0xbb || sorted[2].PublicKey[0] != 0xaa {
		t.Fatalf("unexpected order: %v", sorted)
	}
}
