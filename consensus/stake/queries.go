package stake

import (
	"tendercore/consensus/registry"
	"tendercore/consensus/types"
)

// GetValidators computes the current validator list: every non-jailed,
// non-banned candidate, weighted by the delegation summed across all
// stakeholders, ordered (delegation desc, deposit desc, pubkey) (spec.md
// §4.2). This is the read C1's registry.Source calls at a term boundary.
func (s *State) GetValidators() ([]types.Validator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates, err := s.loadCandidates()
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	banned, err := s.loadBanned()
	if err != nil {
		return nil, err
	}
	jail, err := s.loadJail()
	if err != nil {
		return nil, err
	}
	jailed := make(map[[20]byte]bool, len(jail))
	for _, j := range jail {
		if j.ReleasedAt == 0 {
			jailed[j.Address] = true
		}
	}

	stakeholders, err := s.loadStakeholders()
	if err != nil {
		return nil, err
	}
	delegationTotals := make(map[[20]byte]uint64)
	for _, holder := range stakeholders {
		delegations, err := s.getDelegations(holder)
		if err != nil {
			return nil, err
		}
		for _, d := range delegations {
			delegationTotals[d.To] += d.Amount
		}
	}

	validators := make([]types.Validator, 0, len(candidates))
	for _, c := range candidates {
		if banned[c.Address] || jailed[c.Address] {
			continue
		}
		validators = append(validators, toValidator(c.PublicKey, c.Address, delegationTotals[c.Address], c.Deposit))
	}
	return registry.SortValidators(validators), nil
}

// Banned returns the set of addresses barred from nomination.
func (s *State) Banned() (map[[20]byte]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadBanned()
}

// Jail returns the current jail entries.
func (s *State) Jail() ([]JailEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadJail()
}

// Candidates returns the raw candidate list.
func (s *State) Candidates() ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadCandidates()
}

// FeeShare is one stakeholder's pro-rata cut of a block's minimum fee.
type FeeShare struct {
	Address [20]byte
	Amount  uint64
}

// FeeDistribute distributes minFee pro-rata across stakes (by delegation
// weight) and remits the remainder (totalFee - minFee) to the block author
// (spec.md §4.2). Rounding remainders from integer division accrue to the
// author alongside the explicit remainder, so the sum of returned shares
// plus the author's payment always equals totalFee exactly.
func FeeDistribute(author [20]byte, minFee, totalFee uint64, stakes []FeeShare) ([]FeeShare, uint64) {
	if totalFee < minFee {
		minFee = totalFee
	}
	var totalStake uint64
	for _, st := range stakes {
		totalStake += st.Amount
	}
	authorAmount := totalFee - minFee
	if totalStake == 0 {
		return nil, totalFee
	}
	shares := make([]FeeShare, 0, len(stakes))
	var distributed uint64
	for _, st := range stakes {
		share := minFee * st.Amount / totalStake
		distributed += share
		shares = append(shares, FeeShare{Address: st.Address, Amount: share})
	}
	authorAmount += minFee - distributed
	return shares, authorAmount
}
