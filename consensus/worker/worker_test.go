package worker

import (
	"testing"
	"time"

	"tendercore/consensus/registry"
	"tendercore/consensus/types"
	"tendercore/consensus/votecollector"
	"tendercore/crypto"
)

type fakeRegistry struct{ set *registry.Set }

func (f *fakeRegistry) Build(height uint64, parentHash []byte) (*registry.Set, error) {
	return f.set, nil
}

type fakeProducer struct{ header *HeaderView }

func (f *fakeProducer) ProduceBlock(parentHash []byte, height uint64) (*HeaderView, []byte, error) {
	h := *f.header
	h.Height = height
	h.ParentHash = parentHash
	return &h, []byte("block"), nil
}

type fakeImporter struct {
	committed chan *HeaderView
}

func (f *fakeImporter) ImportBlock(parentHash []byte, blockBytes []byte) (*HeaderView, error) {
	return &HeaderView{Hash: []byte("blockhash")}, nil
}

func (f *fakeImporter) Commit(header *HeaderView, seal *Seal) error {
	if f.committed != nil {
		select {
		case f.committed <- header:
		default:
		}
	}
	return nil
}

type fakeBroadcaster struct{}

func (fakeBroadcaster) BroadcastVote(v *types.Vote)         {}
func (fakeBroadcaster) BroadcastProposal(p *types.Proposal) {}

type fakeDoubleVotes struct{ reported []*types.DoubleVote }

func (f *fakeDoubleVotes) ReportDoubleVote(dv *types.DoubleVote) {
	f.reported = append(f.reported, dv)
}

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewSigner(key, nil)
}

func singleValidatorSet(t *testing.T, s *Signer) *registry.Set {
	t.Helper()
	set, err := registry.New(0, []types.Validator{
		{PublicKey: s.PublicKey(), Address: s.Address(), Weight: 1},
	})
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	return set
}

func TestSingleValidatorCommitsImmediately(t *testing.T) {
	signer := newTestSigner(t)
	set := singleValidatorSet(t, signer)
	committed := make(chan *HeaderView, 1)

	w := New(Config{
		Timeouts:    DefaultTimeoutConfig(),
		Registry:    &fakeRegistry{set: set},
		Producer:    &fakeProducer{header: &HeaderView{Hash: []byte("blockhash"), IsEmpty: false}},
		Importer:    &fakeImporter{committed: committed},
		Broadcaster: fakeBroadcaster{},
		DoubleVotes: &fakeDoubleVotes{},
		Signer:      signer,
		StartHeight: 1,
		ParentHash:  []byte("genesis"),
	})
	w.Start()
	defer w.Stop()

	select {
	case h := <-committed:
		if string(h.Hash) != "blockhash" {
			t.Fatalf("unexpected committed header: %+v", h)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for single-validator commit")
	}
}

func TestOnVoteDetectsDoubleVote(t *testing.T) {
	signer := newTestSigner(t)
	set := singleValidatorSet(t, signer)
	dvSink := &fakeDoubleVotes{}

	w := New(Config{
		Timeouts:    DefaultTimeoutConfig(),
		Registry:    &fakeRegistry{set: set},
		Producer:    &fakeProducer{header: &HeaderView{Hash: []byte("blockhash")}},
		Importer:    &fakeImporter{},
		Broadcaster: fakeBroadcaster{},
		DoubleVotes: dvSink,
		Signer:      signer,
		StartHeight: 1,
		ParentHash:  []byte("genesis"),
	})
	w.height = 1
	w.set = set

	round := types.Round{Height: 1, View: 0, Step: types.StepPrevote}
	v1 := &types.Vote{Round: round, BlockHash: []byte{1}, SignerIndex: 0}
	v2 := &types.Vote{Round: round, BlockHash: []byte{2}, SignerIndex: 0}
	w.onVote(v1)
	w.onVote(v2)

	if len(dvSink.reported) != 1 {
		t.Fatalf("expected one double-vote report, got %d", len(dvSink.reported))
	}
}

func TestQuorumForSingleValidator(t *testing.T) {
	signer := newTestSigner(t)
	set := singleValidatorSet(t, signer)

	w := &Worker{
		set:       set,
		collector: votecollector.New(nil),
		timers:    make(map[timerKind]*time.Timer),
		cfg:       Config{Timeouts: DefaultTimeoutConfig()},
	}
	round := types.Round{Height: 1, View: 0, Step: types.StepPrevote}
	w.onVote(&types.Vote{Round: round, BlockHash: []byte("h"), SignerIndex: 0})

	if !w.quorumFor(round, []byte("h")) {
		t.Fatalf("single validator voting for h should satisfy quorum")
	}
}
