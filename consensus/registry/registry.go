// Package registry implements C1, the validator registry: answering weight,
// ordering, index and proposer-selection queries for a fixed parent block
// hash (spec.md §4.1).
package registry

import (
	"encoding/hex"
	"fmt"
	"sort"

	"tendercore/consensus/types"
)

// ValidatorNotExist is returned when a bitset or index names an out-of-range
// validator.
type ValidatorNotExist struct {
	Height uint64
	Index  int
}

func (e *ValidatorNotExist) Error() string {
	return fmt.Sprintf("registry: validator index %d does not exist at height %d", e.Index, e.Height)
}

// BadSealFieldSize is returned by CheckEnoughVotes when the weighted sum of
// the supplied bitset does not exceed 2/3 of the total weight.
type BadSealFieldSize struct {
	Min   uint64
	Max   uint64
	Found uint64
}

func (e *BadSealFieldSize) Error() string {
	return fmt.Sprintf("registry: weighted votes %d do not exceed the required threshold (%d of %d total)", e.Found, e.Min, e.Max)
}

// Set is an immutable, ordered snapshot of the validators active for a given
// parent block hash. A new Set is built per term boundary; it is read-only
// thereafter (spec.md §5 "Shared resources").
type Set struct {
	height     uint64
	validators []types.Validator
	byPubKey   map[string]int
	byAddress  map[[20]byte]int
	total      uint64
}

// New builds a validator Set from an ordered validator list. Ordering is the
// caller's responsibility: C2's get_validators already orders by
// (delegation desc, deposit desc, pubkey) (spec.md §4.2).
func New(height uint64, validators []types.Validator) (*Set, error) {
	if len(validators) == 0 {
		return nil, fmt.Errorf("registry: validator set cannot be empty")
	}
	s := &Set{
		height:     height,
		validators: append([]types.Validator(nil), validators...),
		byPubKey:   make(map[string]int, len(validators)),
		byAddress:  make(map[[20]byte]int, len(validators)),
	}
	for i, v := range validators {
		s.byPubKey[hex.EncodeToString(v.PublicKey)] = i
		s.byAddress[v.Address] = i
		s.total += v.Weight
	}
	return s, nil
}

// Height returns the parent height this snapshot was built for.
func (s *Set) Height() uint64 { return s.height }

func (s *Set) Contains(pubKey []byte) bool {
	_, ok := s.byPubKey[hex.EncodeToString(pubKey)]
	return ok
}

func (s *Set) ContainsAddress(addr [20]byte) bool {
	_, ok := s.byAddress[addr]
	return ok
}

// Get returns the validator at index (nonce mod count), used by round-robin
// fallbacks (spec.md §4.1).
func (s *Set) Get(nonce uint64) types.Validator {
	return s.validators[int(nonce%uint64(len(s.validators)))]
}

func (s *Set) GetIndex(pubKey []byte) (int, bool) {
	i, ok := s.byPubKey[hex.EncodeToString(pubKey)]
	return i, ok
}

func (s *Set) GetIndexByAddress(addr [20]byte) (int, bool) {
	i, ok := s.byAddress[addr]
	return i, ok
}

func (s *Set) ValidatorAt(index int) (types.Validator, error) {
	if index < 0 || index >= len(s.validators) {
		return types.Validator{}, &ValidatorNotExist{Height: s.height, Index: index}
	}
	return s.validators[index], nil
}

func (s *Set) Count() int { return len(s.validators) }

func (s *Set) TotalWeight() uint64 { return s.total }

func (s *Set) Addresses() [][20]byte {
	out := make([][20]byte, len(s.validators))
	for i, v := range s.validators {
		out[i] = v.Address
	}
	return out
}

// NextBlockProposer returns the round-robin fallback proposer for a view,
// used when sortition yields no priority for anyone at (H, view) (spec.md §4.1).
func (s *Set) NextBlockProposer(view uint64) [20]byte {
	return s.Get(view).Address
}

// CheckEnoughVotes reports whether the weighted sum of bits set in the
// bitset exceeds 2/3 of the total weight fixed at term-begin (spec.md §4.1,
// invariant 3). The bitset must be sized exactly to Count().
func (s *Set) CheckEnoughVotes(bits *types.BitSet) error {
	if bits == nil || bits.Len() != len(s.validators) {
		return &ValidatorNotExist{Height: s.height, Index: -1}
	}
	var sum uint64
	for _, idx := range bits.Indices() {
		if idx < 0 || idx >= len(s.validators) {
			return &ValidatorNotExist{Height: s.height, Index: idx}
		}
		sum += s.validators[idx].Weight
	}
	threshold := (s.total * 2) / 3
	if sum*3 <= s.total*2 {
		return &BadSealFieldSize{Min: threshold + 1, Max: s.total, Found: sum}
	}
	return nil
}

// sortValidators applies C2's ordering: (delegation desc, deposit desc,
// pubkey asc) (spec.md §4.2 get_validators).
func sortValidators(validators []types.Validator) {
	sort.SliceStable(validators, func(i, j int) bool {
		a, b := validators[i], validators[j]
		if a.Delegation != b.Delegation {
			return a.Delegation > b.Delegation
		}
		if a.Deposit != b.Deposit {
			return a.Deposit > b.Deposit
		}
		return hex.EncodeToString(a.PublicKey) < hex.EncodeToString(b.PublicKey)
	})
}

// SortValidators exposes the canonical ordering so callers assembling a
// validator list from genesis or from the stake module apply it consistently.
func SortValidators(validators []types.Validator) []types.Validator {
	out := append([]types.Validator(nil), validators...)
	sortValidators(out)
	return out
}
