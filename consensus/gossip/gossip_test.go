package gossip

import (
	"testing"

	"tendercore/consensus/registry"
	"tendercore/consensus/types"
	"tendercore/consensus/wire"
	"tendercore/p2p"
)

type fakeWorker struct {
	votes     []*types.Vote
	proposals []*types.Proposal
}

func (f *fakeWorker) HandleVote(v *types.Vote) error {
	f.votes = append(f.votes, v)
	return nil
}

func (f *fakeWorker) HandleProposal(p *types.Proposal) error {
	f.proposals = append(f.proposals, p)
	return nil
}

type fakeBroadcaster struct {
	sent []*p2p.Message
}

func (f *fakeBroadcaster) Broadcast(msg *p2p.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func TestHandleMessageRoutesConsensusMessageToWorker(t *testing.T) {
	worker := &fakeWorker{}
	svc := New(Config{Worker: worker, Broadcaster: &fakeBroadcaster{}}, 4)

	vote := &types.Vote{
		Round:       types.Round{Height: 1, View: 0, Step: types.StepPrevote},
		BlockHash:   []byte{1, 2, 3},
		SignerIndex: 2,
		Signature:   []byte{9},
	}
	msg, err := wire.Encode(wire.TagConsensusMessage, wire.ConsensusMessageFromVote(vote))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := svc.HandleMessage("peer-a", msg); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if len(worker.votes) != 1 || worker.votes[0].SignerIndex != 2 {
		t.Fatalf("vote not delivered to worker: %+v", worker.votes)
	}
	if svc.tracker.NeedsVote("peer-a", vote.Round, 2) {
		t.Fatalf("expected peer-a to be marked known for signer 2")
	}
}

func TestHandleMessageRejectsOutOfRangeSigner(t *testing.T) {
	worker := &fakeWorker{}
	svc := New(Config{Worker: worker}, 2)
	set := mustSet(t, 2)
	svc.SetRegistry(set)

	vote := &types.Vote{Round: types.Round{Height: 1}, SignerIndex: 99, BlockHash: []byte{1}}
	msg, _ := wire.Encode(wire.TagConsensusMessage, wire.ConsensusMessageFromVote(vote))
	if err := svc.HandleMessage("peer-a", msg); err == nil {
		t.Fatalf("expected out-of-range signer to be rejected")
	}
	if len(worker.votes) != 0 {
		t.Fatalf("rejected vote should not reach the worker")
	}
}

func TestBroadcastVoteMarksAllTrackedPeersKnown(t *testing.T) {
	b := &fakeBroadcaster{}
	svc := New(Config{Broadcaster: b}, 3)
	svc.tracker.entry("peer-a")
	svc.tracker.entry("peer-b")

	vote := &types.Vote{Round: types.Round{Height: 2, View: 1, Step: types.StepPrecommit}, SignerIndex: 0, BlockHash: []byte{7}}
	svc.BroadcastVote(vote)

	if len(b.sent) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(b.sent))
	}
	if svc.tracker.NeedsVote("peer-a", vote.Round, 0) || svc.tracker.NeedsVote("peer-b", vote.Round, 0) {
		t.Fatalf("expected both peers marked known after broadcast")
	}
}

func TestRequestProposalAnswersFromLocalStore(t *testing.T) {
	b := &fakeBroadcaster{}
	stored := &types.Proposal{Round: types.Round{Height: 5, Step: types.StepPropose}, BlockBytes: []byte("block")}
	store := proposalStoreFunc(func(round types.Round) (*types.Proposal, bool) {
		if round.Height == 5 {
			return stored, true
		}
		return nil, false
	})
	svc := New(Config{Broadcaster: b, Proposals: store}, 1)

	req, _ := wire.Encode(wire.TagRequestProposal, &wire.RequestProposal{Round: wire.RoundFromType(types.Round{Height: 5, Step: types.StepPropose})})
	if err := svc.HandleMessage("peer-a", req); err != nil {
		t.Fatalf("handle request: %v", err)
	}
	if len(b.sent) != 1 {
		t.Fatalf("expected a proposal reply to be sent, got %d messages", len(b.sent))
	}
	tag, payload, err := wire.Decode(b.sent[0])
	if err != nil || tag != wire.TagProposal {
		t.Fatalf("unexpected reply: tag=%v err=%v", tag, err)
	}
	got := payload.(*wire.Proposal).ToType()
	if string(got.BlockBytes) != "block" {
		t.Fatalf("unexpected proposal bytes: %q", got.BlockBytes)
	}
}

type proposalStoreFunc func(round types.Round) (*types.Proposal, bool)

func (f proposalStoreFunc) ProposalFor(round types.Round) (*types.Proposal, bool) { return f(round) }

func mustSet(t *testing.T, n int) *registry.Set {
	t.Helper()
	validators := make([]types.Validator, n)
	for i := range validators {
		validators[i] = types.Validator{PublicKey: []byte{byte(i)}, Weight: 1}
		validators[i].Address[0] = byte(i + 1)
	}
	set, err := registry.New(1, validators)
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	return set
}
