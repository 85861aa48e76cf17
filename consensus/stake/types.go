// Package stake implements C2, the custom stake action handler: durable
// accounts, delegations, candidates, jail and banned sets, applied during
// block execution and read by C1 at term boundaries (spec.md §4.2).
package stake

import "tendercore/consensus/types"

// Account is a stakeholder's durable balance (spec.md §3 "StakeAccount").
type Account struct {
	Address [20]byte
	Balance uint64
}

// Delegation is one sender's delegated amount to one validator.
type Delegation struct {
	From   [20]byte
	To     [20]byte
	Amount uint64
}

// Candidate is a validator hopeful: its self-bonded deposit and the term at
// which its current nomination lapses absent a refresh.
type Candidate struct {
	Address         [20]byte
	PublicKey       []byte
	Deposit         uint64
	NominationEndAt uint64 // term id
	Metadata        []byte
}

// JailEntry marks an offender as ineligible for nomination for a custody
// window.
type JailEntry struct {
	Address      [20]byte
	CustodyUntil uint64 // height
	ReleasedAt   uint64 // height, 0 while still jailed
}

// maxMetadataBytes bounds SelfNominate's metadata independent of the chain's
// general transaction size limit (Open Question 3, DESIGN.md).
const maxMetadataBytes = 256

// toValidator projects a candidate plus its accumulated delegation into the
// shape C1 consumes. weight equals delegation at term start (spec.md §3).
func toValidator(pubKey []byte, addr [20]byte, delegation, deposit uint64) types.Validator {
	return types.Validator{
		PublicKey:  pubKey,
		Address:    addr,
		Weight:     delegation,
		Delegation: delegation,
		Deposit:    deposit,
	}
}
