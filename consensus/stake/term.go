package stake

import (
	"tendercore/consensus/types"
)

// TermLength is the number of heights a term spans. Exposed as a var, not a
// const, so genesis/config can override it in tests without rebuilding the
// package.
var TermLength uint64 = 100

// TermID derives the term id for a height. Term 0 spans [0, TermLength); it
// always resolves to the registry's genesis-bootstrapped "initial list"
// (spec.md §4.1, §4.2).
func TermIDForHeight(height uint64) uint64 {
	if TermLength == 0 {
		return 0
	}
	return height / TermLength
}

// termState is a tiny adapter so *State satisfies registry.StakeSnapshot
// without the registry package importing this one (spec.md §4.1 "two
// sources are composed").
type termState struct {
	s          *State
	heightFunc func(parentHash []byte) (uint64, error)
}

// NewTermSnapshot adapts a stake State into the interface C1's registry
// Source consumes. heightFunc resolves a parent block hash to its height;
// callers typically supply the chain's block index lookup.
func NewTermSnapshot(s *State, heightFunc func(parentHash []byte) (uint64, error)) *termState {
	return &termState{s: s, heightFunc: heightFunc}
}

func (t *termState) TermID(parentHash []byte) (uint64, error) {
	height, err := t.heightFunc(parentHash)
	if err != nil {
		return 0, err
	}
	return TermIDForHeight(height), nil
}

func (t *termState) ValidatorsAtTermBegin(parentHash []byte) ([]types.Validator, error) {
	return t.s.GetValidators()
}

// EnsureNominations auto-refreshes any candidate whose nomination lapses at
// the upcoming term boundary, provided it is neither banned nor in custody,
// mirroring native/potso.Engine's per-block "ensureEpoch" polling idiom
// rather than a background ticker goroutine -- C2 only ever mutates inside
// block execution (spec.md §5).
func (s *State) EnsureNominations(height uint64) error {
	term := TermIDForHeight(height)
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates, err := s.loadCandidates()
	if err != nil {
		return err
	}
	banned, err := s.loadBanned()
	if err != nil {
		return err
	}
	jail, err := s.loadJail()
	if err != nil {
		return err
	}
	jailed := make(map[[20]byte]bool, len(jail))
	for _, j := range jail {
		if j.ReleasedAt == 0 && height < j.CustodyUntil {
			jailed[j.Address] = true
		}
	}

	changed := false
	for i := range candidates {
		if candidates[i].NominationEndAt > term {
			continue
		}
		if banned[candidates[i].Address] || jailed[candidates[i].Address] {
			continue
		}
		candidates[i].NominationEndAt = term + 1
		changed = true
	}
	if changed {
		return s.saveCandidates(candidates)
	}
	return nil
}
