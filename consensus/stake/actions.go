package stake

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"tendercore/consensus/types"
)

// ValidatorResolver answers "who signed index i at height h", letting
// ReportDoubleVote recover the offender's address and public key without C2
// depending on the whole registry package.
type ValidatorResolver interface {
	ResolveSigner(height uint64, signerIndex uint32) (pubKey []byte, addr [20]byte, found bool)
}

// TransferCCS moves stake balance sender->to and records both as
// stakeholders (spec.md §4.2).
type TransferCCS struct {
	From     [20]byte
	To       [20]byte
	Quantity uint64
}

func (s *State) ApplyTransfer(a TransferCCS) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromBal, err := s.getBalance(a.From)
	if err != nil {
		return err
	}
	if fromBal < a.Quantity {
		return ErrInsufficientBalance
	}
	toBal, err := s.getBalance(a.To)
	if err != nil {
		return err
	}
	if err := s.setBalance(a.From, fromBal-a.Quantity); err != nil {
		return err
	}
	if err := s.setBalance(a.To, toBal+a.Quantity); err != nil {
		return err
	}
	if err := s.addStakeholder(a.From); err != nil {
		return err
	}
	return s.addStakeholder(a.To)
}

// DelegateCCS requires `to` to already be a current validator, then moves
// balance into the sender's delegation to it (spec.md §4.2).
type DelegateCCS struct {
	From     [20]byte
	To       [20]byte
	Quantity uint64
}

// CurrentValidators is the narrow read DelegateCCS needs: whether an
// address is presently a validator. Supplied by the caller (typically the
// registry built for the parent of the block being executed).
type CurrentValidators interface {
	ContainsAddress(addr [20]byte) bool
}

func (s *State) ApplyDelegate(a DelegateCCS, validators CurrentValidators) error {
	if validators == nil || !validators.ContainsAddress(a.To) {
		return ErrNotAValidator
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	fromBal, err := s.getBalance(a.From)
	if err != nil {
		return err
	}
	if fromBal < a.Quantity {
		return ErrInsufficientBalance
	}
	if err := s.setBalance(a.From, fromBal-a.Quantity); err != nil {
		return err
	}
	delegations, err := s.getDelegations(a.From)
	if err != nil {
		return err
	}
	found := false
	for i := range delegations {
		if delegations[i].To == a.To {
			delegations[i].Amount += a.Quantity
			found = true
			break
		}
	}
	if !found {
		delegations = append(delegations, Delegation{From: a.From, To: a.To, Amount: a.Quantity})
	}
	return s.setDelegations(a.From, delegations)
}

// Revoke reduces a delegation and returns the quantity to the sender's
// balance (spec.md §4.2).
type Revoke struct {
	From     [20]byte
	To       [20]byte
	Quantity uint64
}

func (s *State) ApplyRevoke(a Revoke) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delegations, err := s.getDelegations(a.From)
	if err != nil {
		return err
	}
	idx := -1
	for i := range delegations {
		if delegations[i].To == a.To {
			idx = i
			break
		}
	}
	if idx < 0 || delegations[idx].Amount < a.Quantity {
		return ErrInsufficientDelegation
	}
	delegations[idx].Amount -= a.Quantity
	if delegations[idx].Amount == 0 {
		delegations = append(delegations[:idx], delegations[idx+1:]...)
	}
	if err := s.setDelegations(a.From, delegations); err != nil {
		return err
	}
	bal, err := s.getBalance(a.From)
	if err != nil {
		return err
	}
	return s.setBalance(a.From, bal+a.Quantity)
}

// SelfNominate inserts or refreshes a candidate, failing if the sender is
// banned or still in custody (spec.md §4.2).
type SelfNominate struct {
	Address  [20]byte
	PubKey   []byte
	Deposit  uint64
	Metadata []byte
	TermID   uint64 // the term this nomination becomes effective for
}

func (s *State) ApplySelfNominate(a SelfNominate, height uint64) error {
	if len(a.Metadata) > maxMetadataBytes {
		return ErrMetadataTooLarge
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	banned, err := s.loadBanned()
	if err != nil {
		return err
	}
	if banned[a.Address] {
		return ErrBanned
	}
	jail, err := s.loadJail()
	if err != nil {
		return err
	}
	for _, j := range jail {
		if j.Address == a.Address && j.ReleasedAt == 0 && height < j.CustodyUntil {
			return ErrInCustody
		}
	}

	candidates, err := s.loadCandidates()
	if err != nil {
		return err
	}
	bal, err := s.getBalance(a.Address)
	if err != nil {
		return err
	}
	if bal < a.Deposit {
		return ErrInsufficientBalance
	}
	if err := s.setBalance(a.Address, bal-a.Deposit); err != nil {
		return err
	}

	found := false
	for i := range candidates {
		if candidates[i].Address == a.Address {
			candidates[i].Deposit += a.Deposit
			candidates[i].NominationEndAt = a.TermID
			candidates[i].Metadata = a.Metadata
			candidates[i].PublicKey = a.PubKey
			found = true
			break
		}
	}
	if !found {
		candidates = append(candidates, Candidate{
			Address:         a.Address,
			PublicKey:       a.PubKey,
			Deposit:         a.Deposit,
			NominationEndAt: a.TermID,
			Metadata:        a.Metadata,
		})
	}
	return s.saveCandidates(candidates)
}

// ReportDoubleVote verifies two conflicting signed votes and jails the
// offender for a configured custody period, counted from the height the
// report itself lands (Open Question 2, DESIGN.md).
type ReportDoubleVote struct {
	First, Second *types.Vote
}

// CustodyPeriodTerms is the default jail duration expressed in terms.
// ApplyReportDoubleVote does not read it: the caller passes the custody end
// as a height (custodyUntilHeight).
const CustodyPeriodTerms uint64 = 4

func (s *State) ApplyReportDoubleVote(a ReportDoubleVote, height uint64, resolver ValidatorResolver, custodyUntilHeight uint64) error {
	if a.First == nil || a.Second == nil {
		return ErrDoubleVoteMismatch
	}
	if !a.First.Round.Equal(a.Second.Round) || a.First.SignerIndex != a.Second.SignerIndex {
		return ErrDoubleVoteMismatch
	}
	if bytesEqual(a.First.BlockHash, a.Second.BlockHash) {
		return ErrDoubleVoteMismatch
	}
	pubKey, addr, found := resolver.ResolveSigner(a.First.Round.Height, a.First.SignerIndex)
	if !found {
		return fmt.Errorf("stake: signer index %d unknown at height %d", a.First.SignerIndex, a.First.Round.Height)
	}
	if err := verifyVoteSignature(a.First, pubKey); err != nil {
		return err
	}
	if err := verifyVoteSignature(a.Second, pubKey); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	jail, err := s.loadJail()
	if err != nil {
		return err
	}
	for i := range jail {
		if jail[i].Address == addr && jail[i].ReleasedAt == 0 {
			// already jailed; extending is a no-op, matches the idempotent
			// handling penalty.Engine.Apply uses for repeat evidence.
			return nil
		}
	}
	jail = append(jail, JailEntry{Address: addr, CustodyUntil: custodyUntilHeight})
	if err := s.saveJail(jail); err != nil {
		return err
	}
	_ = height
	return nil
}

func verifyVoteSignature(v *types.Vote, pubKey []byte) error {
	// Same digest the worker signs: sha256(height || view || step || block_hash),
	// height and view as 8-byte big-endian.
	buf := make([]byte, 0, 17+len(v.BlockHash))
	buf = binary.BigEndian.AppendUint64(buf, v.Round.Height)
	buf = binary.BigEndian.AppendUint64(buf, v.Round.View)
	buf = append(buf, byte(v.Round.Step))
	buf = append(buf, v.BlockHash...)
	hash := sha256.Sum256(buf)
	recovered, err := ethcrypto.SigToPub(hash[:], v.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	recoveredKey := ethcrypto.FromECDSAPub(recovered)
	if !bytesEqual(recoveredKey, pubKey) {
		return ErrInvalidSignature
	}
	return nil
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

// ChangeParams and UpdateValidators are the two admin actions, both gated by
// a quorum of pre-configured approvers (spec.md §4.2).
type ChangeParams struct {
	Param     string
	Value     uint64
	Approvals [][20]byte
}

type UpdateValidators struct {
	Add       []Candidate
	Remove    [][20]byte
	Approvals [][20]byte
}

// ApproverSet is the governance quorum consulted for admin actions.
type ApproverSet struct {
	Approvers []([20]byte)
	Threshold int
}

func (set ApproverSet) hasQuorum(approvals [][20]byte) bool {
	allowed := make(map[[20]byte]bool, len(set.Approvers))
	for _, a := range set.Approvers {
		allowed[a] = true
	}
	count := 0
	seen := make(map[[20]byte]bool, len(approvals))
	for _, a := range approvals {
		if allowed[a] && !seen[a] {
			seen[a] = true
			count++
		}
	}
	return count >= set.Threshold
}

func (s *State) ApplyChangeParams(a ChangeParams, set ApproverSet, apply func(param string, value uint64) error) error {
	if !set.hasQuorum(a.Approvals) {
		return ErrNoQuorum
	}
	return apply(a.Param, a.Value)
}

func (s *State) ApplyUpdateValidators(a UpdateValidators, set ApproverSet) error {
	if !set.hasQuorum(a.Approvals) {
		return ErrNoQuorum
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates, err := s.loadCandidates()
	if err != nil {
		return err
	}
	removed := make(map[[20]byte]bool, len(a.Remove))
	for _, addr := range a.Remove {
		removed[addr] = true
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if !removed[c.Address] {
			kept = append(kept, c)
		}
	}
	kept = append(kept, a.Add...)
	return s.saveCandidates(kept)
}
