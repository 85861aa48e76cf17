package sortition

import "testing"

func TestDrawZeroExpectationYieldsNoSubUsers(t *testing.T) {
	var hash [32]byte
	if got := draw(100, 1000, 0, hash); got != 0 {
		t.Fatalf("draw with zero expectation = %d, want 0", got)
	}
}

func TestDrawFullProbabilityYieldsAllPower(t *testing.T) {
	var hash [32]byte
	got := draw(50, 50, 50, hash)
	if got != 50 {
		t.Fatalf("draw with p>=1 = %d, want 50", got)
	}
}

func TestDrawIsMonotonicInVotingPower(t *testing.T) {
	var hash [32]byte
	for i := range hash {
		hash[i] = 0x80
	}
	small := draw(10, 10_000, 100, hash)
	large := draw(1000, 10_000, 100, hash)
	if large < small {
		t.Fatalf("draw(1000) = %d should be >= draw(10) = %d for identical entropy", large, small)
	}
}

func TestCandidatePriorityDeterministic(t *testing.T) {
	var hash [32]byte
	hash[0] = 0xAB
	p1 := candidatePriority(hash, 3)
	p2 := candidatePriority(hash, 3)
	if p1 != p2 {
		t.Fatalf("candidatePriority is not deterministic")
	}
	p3 := candidatePriority(hash, 4)
	if p1 == p3 {
		t.Fatalf("candidatePriority should differ across sub_user_idx")
	}
}
