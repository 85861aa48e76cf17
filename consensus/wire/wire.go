// Package wire implements the RLP-encoded wire messages C6 exchanges with
// peers on C5's behalf (spec.md §6 "Wire messages").
package wire

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"tendercore/consensus/types"
	"tendercore/p2p"
)

// Tag is the discriminator byte every encoded payload is framed with.
type Tag byte

const (
	TagConsensusMessage Tag = 0x01
	TagProposal         Tag = 0x02
	TagStepState        Tag = 0x03
	TagRequestProposal  Tag = 0x04
	TagRequestCommit    Tag = 0x05
	TagCommitProof      Tag = 0x06
)

// Round is the RLP-friendly projection of types.Round (Step narrows to a
// single byte on the wire).
type Round struct {
	Height uint64
	View   uint64
	Step   uint8
}

// RoundFromType projects a types.Round onto its wire form.
func RoundFromType(r types.Round) Round {
	return Round{Height: r.Height, View: r.View, Step: uint8(r.Step)}
}

// ToType recovers the types.Round a wire Round was projected from.
func (r Round) ToType() types.Round {
	return types.Round{Height: r.Height, View: r.View, Step: types.Step(r.Step)}
}

// Priority is the RLP-friendly projection of types.PriorityInfo.
type Priority struct {
	SignerIndex       uint32
	Priority          [32]byte
	SubUserIndex      uint64
	NumberOfElections uint64
	VRFHash           [32]byte
	VRFProof          []byte
}

// PriorityFromType projects a types.PriorityInfo onto its wire form.
func PriorityFromType(p types.PriorityInfo) Priority {
	return Priority{
		SignerIndex:       p.SignerIndex,
		Priority:          p.Priority,
		SubUserIndex:      p.SubUserIndex,
		NumberOfElections: p.NumberOfElections,
		VRFHash:           p.VRFHash,
		VRFProof:          p.VRFProof,
	}
}

// ToType recovers the types.PriorityInfo a wire Priority was projected from.
func (p Priority) ToType() types.PriorityInfo {
	return types.PriorityInfo{
		SignerIndex:       p.SignerIndex,
		Priority:          p.Priority,
		SubUserIndex:      p.SubUserIndex,
		NumberOfElections: p.NumberOfElections,
		VRFHash:           p.VRFHash,
		VRFProof:          p.VRFProof,
	}
}

// ConsensusMessage carries a single vote (prevote or precommit); BlockHash
// empty means a nil vote (spec.md §6, tag 0x01).
type ConsensusMessage struct {
	Round       Round
	BlockHash   []byte
	SignerIndex uint32
	Signature   []byte
}

func ConsensusMessageFromVote(v *types.Vote) *ConsensusMessage {
	return &ConsensusMessage{
		Round:       RoundFromType(v.Round),
		BlockHash:   v.BlockHash,
		SignerIndex: v.SignerIndex,
		Signature:   v.Signature,
	}
}

func (m *ConsensusMessage) Vote() *types.Vote {
	return &types.Vote{
		Round:       m.Round.ToType(),
		BlockHash:   m.BlockHash,
		SignerIndex: m.SignerIndex,
		Signature:   m.Signature,
	}
}

// Proposal carries the sealed block a proposer produced for a round (spec.md
// §6, tag 0x02). Round.Step is always Propose.
type Proposal struct {
	Round       Round
	BlockBytes  []byte
	SignerIndex uint32
	Signature   []byte
	Priority    Priority
}

func ProposalFromType(p *types.Proposal) *Proposal {
	return &Proposal{
		Round:       RoundFromType(p.Round),
		BlockBytes:  p.BlockBytes,
		SignerIndex: p.SignerIndex,
		Signature:   p.Signature,
		Priority:    PriorityFromType(p.Priority),
	}
}

func (m *Proposal) ToType() *types.Proposal {
	return &types.Proposal{
		Status:      types.ProposalReceived,
		Round:       m.Round.ToType(),
		Hash:        nil,
		BlockBytes:  m.BlockBytes,
		SignerIndex: m.SignerIndex,
		Signature:   m.Signature,
		Priority:    m.Priority.ToType(),
	}
}

// StepState reports a peer's known round, proposal and message bitset
// (spec.md §6, tag 0x03; §4.6).
type StepState struct {
	Round         Round
	ProposalHash  []byte
	BitsetLen     uint32
	MessagesKnown []byte
}

// RequestProposal asks a peer to resend its proposal for round (spec.md §6,
// tag 0x04).
type RequestProposal struct {
	Round Round
}

// RequestCommit asks a peer for the commit proof of height (spec.md §6, tag
// 0x05).
type RequestCommit struct {
	Height uint64
}

// CommitProof answers a RequestCommit (spec.md §6, tag 0x06).
type CommitProof struct {
	Height     uint64
	BlockHash  []byte
	Precommits [][]byte
	BitsetLen  uint32
	Bitset     []byte
}

// Encode frames payload behind tag as a p2p.Message, ready for Broadcast.
func Encode(tag Tag, payload interface{}) (*p2p.Message, error) {
	body, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, fmt.Errorf("wire: encode tag %#x: %w", tag, err)
	}
	return &p2p.Message{Type: byte(tag), Payload: body}, nil
}

// Decode dispatches msg.Type to the matching struct and RLP-decodes its
// payload into it.
func Decode(msg *p2p.Message) (Tag, interface{}, error) {
	tag := Tag(msg.Type)
	var out interface{}
	switch tag {
	case TagConsensusMessage:
		out = &ConsensusMessage{}
	case TagProposal:
		out = &Proposal{}
	case TagStepState:
		out = &StepState{}
	case TagRequestProposal:
		out = &RequestProposal{}
	case TagRequestCommit:
		out = &RequestCommit{}
	case TagCommitProof:
		out = &CommitProof{}
	default:
		return tag, nil, fmt.Errorf("wire: unknown message tag %#x", msg.Type)
	}
	if err := rlp.DecodeBytes(msg.Payload, out); err != nil {
		return tag, nil, fmt.Errorf("wire: decode tag %#x: %w", tag, err)
	}
	return tag, out, nil
}

// EncodeStepState builds a StepState payload from live PeerState-shaped
// inputs, encoding the bitset as its fixed-length byte form (spec.md §6).
func EncodeStepState(r types.Round, proposalHash []byte, known *types.BitSet) (*p2p.Message, error) {
	s := &StepState{
		Round:        RoundFromType(r),
		ProposalHash: proposalHash,
	}
	if known != nil {
		s.BitsetLen = uint32(known.Len())
		s.MessagesKnown = known.Bytes()
	}
	return Encode(TagStepState, s)
}

// Bitset decodes a StepState's wire bitset back into a types.BitSet.
func (s *StepState) Bitset() (*types.BitSet, error) {
	if s.BitsetLen == 0 {
		return types.NewBitSet(0), nil
	}
	return types.BitSetFromBytes(s.MessagesKnown, int(s.BitsetLen))
}
