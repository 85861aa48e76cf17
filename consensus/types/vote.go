package types

import "encoding/json"

// Vote is a single signed ballot for a round. A nil BlockHash is a "nil" vote.
type Vote struct {
	Round       Round  `json:"round"`
	BlockHash   []byte `json:"blockHash,omitempty"`
	SignerIndex uint32 `json:"signerIndex"`
	Signature   []byte `json:"signature"`
}

// IsNil reports whether the vote abstains from any block at this round.
func (v *Vote) IsNil() bool {
	return v == nil || len(v.BlockHash) == 0
}

// SameContent reports whether two votes carry the same round, signer and
// block hash -- used to distinguish a harmless re-delivery from a genuine
// equivocation (spec.md invariant 2).
func (v *Vote) SameContent(o *Vote) bool {
	if v == nil || o == nil {
		return v == o
	}
	return v.Round.Equal(o.Round) && v.SignerIndex == o.SignerIndex && bytesEqual(v.BlockHash, o.BlockHash)
}

// SigningBytes returns the JSON encoding of the vote with the signature
// cleared. Vote signatures are not made over these bytes but over a digest of
// (height, view, step, block hash).
func (v *Vote) SigningBytes() []byte {
	cp := *v
	cp.Signature = nil
	b, _ := json.Marshal(cp)
	return b
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

// DoubleVote reports two conflicting votes signed by the same validator for
// the same round.
type DoubleVote struct {
	SignerIndex uint32
	Round       Round
	First       *Vote
	Second      *Vote
}
