package worker

import "tendercore/consensus/types"

// Seal is the four-field header seal laid out in spec.md §6: previous block
// view, this block's consensus view, the ascending-index precommit
// signatures, and the bitset whose popcount equals their count.
type Seal struct {
	PreviousBlockView uint64
	ConsensusView     uint64
	Precommits        [][]byte
	Bitset            *types.BitSet
}

// SealFields is the constant field count the façade's seal_fields() reports.
const SealFields = 4
