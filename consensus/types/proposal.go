package types

// ProposalStatus tags how a Proposal reached the local node.
type ProposalStatus uint8

const (
	ProposalNone ProposalStatus = iota
	ProposalReceived
	ProposalImported
)

// Proposal is one of {None, Received(hash, block, signature), Imported(hash)}
// (spec.md §3).
type Proposal struct {
	Status      ProposalStatus
	Round       Round
	Hash        []byte
	BlockBytes  []byte
	SignerIndex uint32
	Signature   []byte
	Priority    PriorityInfo
}

func (p *Proposal) HasHash() bool { return p != nil && len(p.Hash) > 0 }

// PriorityInfo is the sortition tag a would-be proposer attaches to its
// proposal (spec.md §3/§4.3). VRFHash is the prove step's output
// (vrf_hash); it travels alongside VRFProof because the VRF library in use
// verifies a proof against a claimed output rather than recomputing the
// output from the proof alone (DESIGN.md, consensus/sortition).
type PriorityInfo struct {
	SignerIndex       uint32
	Priority          [32]byte
	SubUserIndex      uint64
	NumberOfElections uint64
	VRFHash           [32]byte
	VRFProof          []byte
}

// Less orders two PriorityInfo values by the total order over 32-byte
// priorities, with a lower signer index winning exact ties (spec.md §4.3).
// The tie-break compares signer indices in the opposite direction from the
// byte comparison above it: Dominates (below) derives its tie-break by
// calling Less with the operands swapped, so Less itself must rank a lower
// signer index as *greater* for that swap to come out preferring it.
func (p PriorityInfo) Less(o PriorityInfo) bool {
	for i := 0; i < 32; i++ {
		if p.Priority[i] != o.Priority[i] {
			return p.Priority[i] < o.Priority[i]
		}
	}
	return p.SignerIndex > o.SignerIndex
}

// Dominates reports whether p is strictly preferred over o under the
// tie-break rule: higher priority wins; on an exact tie the lower signer
// index wins (spec.md §4.5 "Tie-breaks and edge policies").
func (p PriorityInfo) Dominates(o PriorityInfo) bool {
	return o.Less(p)
}
