package wire

import (
	"bytes"
	"testing"

	"tendercore/consensus/types"
	"tendercore/p2p"
)

func TestConsensusMessageRoundTrip(t *testing.T) {
	vote := &types.Vote{
		Round:       types.Round{Height: 7, View: 2, Step: types.StepPrevote},
		BlockHash:   []byte{1, 2, 3, 4},
		SignerIndex: 3,
		Signature:   []byte{9, 9, 9},
	}
	msg, err := Encode(TagConsensusMessage, ConsensusMessageFromVote(vote))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if msg.Type != byte(TagConsensusMessage) {
		t.Fatalf("tag = %#x, want %#x", msg.Type, TagConsensusMessage)
	}
	tag, payload, err := Decode(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != TagConsensusMessage {
		t.Fatalf("decoded tag = %#x", tag)
	}
	got := payload.(*ConsensusMessage).Vote()
	if !got.Round.Equal(vote.Round) || got.SignerIndex != vote.SignerIndex ||
		!bytes.Equal(got.BlockHash, vote.BlockHash) || !bytes.Equal(got.Signature, vote.Signature) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, vote)
	}
}

func TestProposalRoundTrip(t *testing.T) {
	p := &types.Proposal{
		Round:       types.Round{Height: 12, View: 0, Step: types.StepPropose},
		BlockBytes:  []byte("a sealed block"),
		SignerIndex: 1,
		Signature:   []byte{1},
		Priority: types.PriorityInfo{
			SignerIndex:       1,
			Priority:          [32]byte{0xAA},
			SubUserIndex:      2,
			NumberOfElections: 5,
			VRFHash:           [32]byte{0xBB},
			VRFProof:          []byte{0xCC, 0xDD},
		},
	}
	msg, err := Encode(TagProposal, ProposalFromType(p))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, payload, err := Decode(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := payload.(*Proposal).ToType()
	if !got.Round.Equal(p.Round) || !bytes.Equal(got.BlockBytes, p.BlockBytes) ||
		got.Priority.SignerIndex != p.Priority.SignerIndex || got.Priority.Priority != p.Priority.Priority {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestStepStateBitsetRoundTrip(t *testing.T) {
	bs := types.NewBitSet(5)
	bs.Set(0)
	bs.Set(4)
	msg, err := EncodeStepState(types.Round{Height: 1, View: 0, Step: types.StepPrevote}, []byte{1}, bs)
	if err != nil {
		t.Fatalf("encode step state: %v", err)
	}
	_, payload, err := Decode(msg)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	s := payload.(*StepState)
	got, err := s.Bitset()
	if err != nil {
		t.Fatalf("bitset: %v", err)
	}
	if !got.Test(0) || !got.Test(4) || got.Test(1) || got.Test(2) || got.Test(3) {
		t.Fatalf("decoded bitset mismatch: %v", got.Indices())
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, _, err := Decode(&p2p.Message{Type: 0xFF, Payload: nil})
	if err == nil {
		t.Fatalf("expected error for unknown tag")
	}
}
