package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"tendercore/consensus/types"
	"tendercore/storage"
)

// Persister caches the validator snapshot fixed at each term's beginning, one
// RLP record per term key, following the index+per-key record idiom used
// elsewhere in the consensus store (consensus/store.Store.SaveValidators,
// consensus/potso/rewards.Ledger).
type Persister struct {
	db storage.Database
}

// NewPersister wraps a key-value store for term snapshot caching.
func NewPersister(db storage.Database) *Persister {
	return &Persister{db: db}
}

type storedValidator struct {
	PublicKey  []byte
	Address    []byte
	Weight     uint64
	Delegation uint64
	Deposit    uint64
}

func termKey(term uint64) []byte {
	return []byte(fmt.Sprintf("consensus/registry/term/%020d", term))
}

// Save persists the ordered validator list for a term.
func (p *Persister) Save(term uint64, validators []types.Validator) error {
	if p == nil || p.db == nil {
		return nil
	}
	stored := make([]storedValidator, len(validators))
	for i, v := range validators {
		stored[i] = storedValidator{
			PublicKey:  v.PublicKey,
			Address:    v.Address[:],
			Weight:     v.Weight,
			Delegation: v.Delegation,
			Deposit:    v.Deposit,
		}
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return p.db.Put(termKey(term), encoded)
}

// Load returns the cached validator list for a term, if any.
func (p *Persister) Load(term uint64) ([]types.Validator, bool, error) {
	if p == nil || p.db == nil {
		return nil, false, nil
	}
	raw, err := p.db.Get(termKey(term))
	if err != nil {
		return nil, false, nil
	}
	var stored []storedValidator
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("registry: decode term %d snapshot: %w", term, err)
	}
	out := make([]types.Validator, len(stored))
	for i, v := range stored {
		var addr [20]byte
		copy(addr[:], v.Address)
		out[i] = types.Validator{
			PublicKey:  v.PublicKey,
			Address:    addr,
			Weight:     v.Weight,
			Delegation: v.Delegation,
			Deposit:    v.Deposit,
		}
	}
	return out, true, nil
}
