package stake

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"tendercore/storage"
)

// State is the durable C2 stake state: stakeholder balances, delegations,
// candidates, jail and banned sets, all persisted over a single key-value
// store under a namespace fixed to handlerID (spec.md §6). Grounded on the
// index+per-key RLP record idiom shared by consensus/store.Store and
// consensus/potso/evidence.Store.
type State struct {
	db        storage.Database
	handlerID uint32
	mu        sync.RWMutex
}

// New constructs a stake State bound to a fixed custom-action-handler id.
func New(db storage.Database, handlerID uint32) *State {
	return &State{db: db, handlerID: handlerID}
}

type storedDelegation struct {
	To     []byte
	Amount uint64
}

type storedCandidate struct {
	Address         []byte
	Deposit         uint64
	NominationEndAt uint64
	Metadata        []byte
	PublicKey       []byte
}

type storedJailEntry struct {
	Address      []byte
	CustodyUntil uint64
	ReleasedAt   uint64
}

func (s *State) loadStakeholders() ([][20]byte, error) {
	raw, err := s.db.Get(stakeholderIndexKey(s.handlerID))
	if err != nil {
		return nil, nil
	}
	var rows [][]byte
	if err := rlp.DecodeBytes(raw, &rows); err != nil {
		return nil, fmt.Errorf("stake: decode stakeholder index: %w", err)
	}
	out := make([][20]byte, len(rows))
	for i, r := range rows {
		copy(out[i][:], r)
	}
	return out, nil
}

func (s *State) saveStakeholders(addrs [][20]byte) error {
	rows := make([][]byte, len(addrs))
	for i, a := range addrs {
		rows[i] = append([]byte(nil), a[:]...)
	}
	encoded, err := rlp.EncodeToBytes(rows)
	if err != nil {
		return err
	}
	return s.db.Put(stakeholderIndexKey(s.handlerID), encoded)
}

func (s *State) addStakeholder(addr [20]byte) error {
	existing, err := s.loadStakeholders()
	if err != nil {
		return err
	}
	for _, a := range existing {
		if a == addr {
			return nil
		}
	}
	return s.saveStakeholders(append(existing, addr))
}

func (s *State) getBalance(addr [20]byte) (uint64, error) {
	raw, err := s.db.Get(balanceKey(s.handlerID, addr))
	if err != nil {
		return 0, nil
	}
	var balance uint64
	if err := rlp.DecodeBytes(raw, &balance); err != nil {
		return 0, fmt.Errorf("stake: decode balance: %w", err)
	}
	return balance, nil
}

func (s *State) setBalance(addr [20]byte, balance uint64) error {
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	return s.db.Put(balanceKey(s.handlerID, addr), encoded)
}

func (s *State) getDelegations(addr [20]byte) ([]Delegation, error) {
	raw, err := s.db.Get(delegationKey(s.handlerID, addr))
	if err != nil {
		return nil, nil
	}
	var stored []storedDelegation
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("stake: decode delegations: %w", err)
	}
	out := make([]Delegation, len(stored))
	for i, d := range stored {
		var to [20]byte
		copy(to[:], d.To)
		out[i] = Delegation{From: addr, To: to, Amount: d.Amount}
	}
	return out, nil
}

func (s *State) setDelegations(addr [20]byte, delegations []Delegation) error {
	stored := make([]storedDelegation, len(delegations))
	for i, d := range delegations {
		stored[i] = storedDelegation{To: append([]byte(nil), d.To[:]...), Amount: d.Amount}
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return s.db.Put(delegationKey(s.handlerID, addr), encoded)
}

func (s *State) loadCandidates() ([]Candidate, error) {
	raw, err := s.db.Get(candidatesKey(s.handlerID))
	if err != nil {
		return nil, nil
	}
	var stored []storedCandidate
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("stake: decode candidates: %w", err)
	}
	out := make([]Candidate, len(stored))
	for i, c := range stored {
		var addr [20]byte
		copy(addr[:], c.Address)
		out[i] = Candidate{Address: addr, PublicKey: c.PublicKey, Deposit: c.Deposit, NominationEndAt: c.NominationEndAt, Metadata: c.Metadata}
	}
	return out, nil
}

func (s *State) saveCandidates(candidates []Candidate) error {
	stored := make([]storedCandidate, len(candidates))
	for i, c := range candidates {
		stored[i] = storedCandidate{
			Address:         append([]byte(nil), c.Address[:]...),
			PublicKey:       c.PublicKey,
			Deposit:         c.Deposit,
			NominationEndAt: c.NominationEndAt,
			Metadata:        c.Metadata,
		}
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return s.db.Put(candidatesKey(s.handlerID), encoded)
}

func (s *State) loadJail() ([]JailEntry, error) {
	raw, err := s.db.Get(jailKey(s.handlerID))
	if err != nil {
		return nil, nil
	}
	var stored []storedJailEntry
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("stake: decode jail: %w", err)
	}
	out := make([]JailEntry, len(stored))
	for i, j := range stored {
		var addr [20]byte
		copy(addr[:], j.Address)
		out[i] = JailEntry{Address: addr, CustodyUntil: j.CustodyUntil, ReleasedAt: j.ReleasedAt}
	}
	return out, nil
}

func (s *State) saveJail(entries []JailEntry) error {
	stored := make([]storedJailEntry, len(entries))
	for i, j := range entries {
		stored[i] = storedJailEntry{Address: append([]byte(nil), j.Address[:]...), CustodyUntil: j.CustodyUntil, ReleasedAt: j.ReleasedAt}
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return s.db.Put(jailKey(s.handlerID), encoded)
}

func (s *State) loadBanned() (map[[20]byte]bool, error) {
	raw, err := s.db.Get(bannedKey(s.handlerID))
	if err != nil {
		return map[[20]byte]bool{}, nil
	}
	var rows [][]byte
	if err := rlp.DecodeBytes(raw, &rows); err != nil {
		return nil, fmt.Errorf("stake: decode banned set: %w", err)
	}
	out := make(map[[20]byte]bool, len(rows))
	for _, r := range rows {
		var addr [20]byte
		copy(addr[:], r)
		out[addr] = true
	}
	return out, nil
}

func (s *State) saveBanned(banned map[[20]byte]bool) error {
	rows := make([][]byte, 0, len(banned))
	for addr := range banned {
		rows = append(rows, append([]byte(nil), addr[:]...))
	}
	encoded, err := rlp.EncodeToBytes(rows)
	if err != nil {
		return err
	}
	return s.db.Put(bannedKey(s.handlerID), encoded)
}
