package registry

import (
	"fmt"

	"tendercore/consensus/types"
)

// StakeSnapshot is the narrow view C2 (the stake module) exposes to the
// registry: the currently active term id for a parent hash, and the ordered
// validator list frozen at that term's beginning (spec.md §4.2 "term
// boundary"). Keeping this as an interface avoids a dependency from the
// registry onto the whole stake package.
type StakeSnapshot interface {
	TermID(parentHash []byte) (uint64, error)
	ValidatorsAtTermBegin(parentHash []byte) ([]types.Validator, error)
}

// Source builds a registry Set for a given parent block, choosing between
// the genesis-bootstrapped "initial list" (term 0, before the stake module
// has ever rebuilt the set) and the dynamically computed "term list"
// (spec.md §4.2).
type Source struct {
	initial []types.Validator
	stake   StakeSnapshot
	store   *Persister
}

// NewSource constructs a Source. initial is the genesis validator list,
// already in the canonical ordering; stake is nil until the chain has a
// stake module wired in (e.g. in tests exercising only the registry).
func NewSource(initial []types.Validator, stake StakeSnapshot, store *Persister) *Source {
	return &Source{initial: SortValidators(initial), stake: stake, store: store}
}

// Build returns the validator Set effective at height for the given parent
// hash. Term 0 always resolves to the genesis list; any later term asks the
// stake module to recompute it, then persists the snapshot so future calls
// for the same term are cheap and so CheckEnoughVotes keeps using the
// weights fixed at term-begin even after stake changes mid-term (spec.md
// §4.1 invariant 3).
func (s *Source) Build(height uint64, parentHash []byte) (*Set, error) {
	if s.stake == nil {
		return New(height, s.initial)
	}
	term, err := s.stake.TermID(parentHash)
	if err != nil {
		return nil, fmt.Errorf("registry: resolve term id: %w", err)
	}
	if term == 0 {
		return New(height, s.initial)
	}
	if s.store != nil {
		if cached, ok, err := s.store.Load(term); err != nil {
			return nil, err
		} else if ok {
			return New(height, cached)
		}
	}
	validators, err := s.stake.ValidatorsAtTermBegin(parentHash)
	if err != nil {
		return nil, fmt.Errorf("registry: load term %d validators: %w", term, err)
	}
	ordered := SortValidators(validators)
	if s.store != nil {
		if err := s.store.Save(term, ordered); err != nil {
			return nil, fmt.Errorf("registry: persist term %d snapshot: %w", term, err)
		}
	}
	return New(height, ordered)
}
