package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"tendercore/consensus/gossip"
	"tendercore/consensus/registry"
	"tendercore/consensus/stake"
	"tendercore/consensus/types"
	"tendercore/consensus/worker"
	"tendercore/crypto"
)

type fakeRegistry struct{ set *registry.Set }

func (f *fakeRegistry) Build(height uint64, parentHash []byte) (*registry.Set, error) {
	return f.set, nil
}

type fakeProducer struct{ header *worker.HeaderView }

func (f *fakeProducer) ProduceBlock(parentHash []byte, height uint64) (*worker.HeaderView, []byte, error) {
	h := *f.header
	h.Height = height
	h.ParentHash = parentHash
	return &h, []byte("block"), nil
}

type fakeImporter struct{}

func (f *fakeImporter) ImportBlock(parentHash []byte, blockBytes []byte) (*worker.HeaderView, error) {
	return &worker.HeaderView{Hash: []byte("blockhash")}, nil
}

func (f *fakeImporter) Commit(header *worker.HeaderView, seal *worker.Seal) error { return nil }

type fakeDoubleVotes struct{}

func (f *fakeDoubleVotes) ReportDoubleVote(dv *types.DoubleVote) {}

func newTestSigner(t *testing.T) *worker.Signer {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return worker.NewSigner(key, nil)
}

func singleValidatorSet(t *testing.T, s *worker.Signer) *registry.Set {
	t.Helper()
	set, err := registry.New(0, []types.Validator{
		{PublicKey: s.PublicKey(), Address: s.Address(), Weight: 1},
	})
	if err != nil {
		t.Fatalf("new set: %v", err)
	}
	return set
}

func newTestEngine(t *testing.T) (*Engine, *worker.Worker) {
	t.Helper()
	signer := newTestSigner(t)
	set := singleValidatorSet(t, signer)

	w := worker.New(worker.Config{
		Timeouts:    worker.DefaultTimeoutConfig(),
		Registry:    &fakeRegistry{set: set},
		Producer:    &fakeProducer{header: &worker.HeaderView{Hash: []byte("blockhash")}},
		Importer:    &fakeImporter{},
		DoubleVotes: &fakeDoubleVotes{},
		Signer:      signer,
		StartHeight: 1,
		ParentHash:  []byte("genesis"),
	})
	return New(w, Config{BlockReward: 10}), w
}

func TestSealFieldsIsFour(t *testing.T) {
	e, _ := newTestEngine(t)
	if e.SealFields() != 4 {
		t.Fatalf("SealFields() = %d, want 4", e.SealFields())
	}
}

func TestOnCloseBlockDistributesFeesAndReward(t *testing.T) {
	e, _ := newTestEngine(t)
	author := [20]byte{1}
	stakes := []stake.FeeShare{
		{Address: [20]byte{2}, Amount: 3},
		{Address: [20]byte{3}, Amount: 1},
	}
	result, err := e.OnCloseBlock(author, 100, 40, stakes)
	if err != nil {
		t.Fatalf("on close block: %v", err)
	}
	var distributed uint64
	for _, s := range result.Shares {
		distributed += s.Amount
	}
	if distributed+result.AuthorPayment != 100+10 {
		t.Fatalf("fee conservation broken (plus reward): shares=%d author=%d", distributed, result.AuthorPayment)
	}
	if result.AuthorPayment < 10 {
		t.Fatalf("expected block reward folded into author payment, got %d", result.AuthorPayment)
	}
}

func TestOnCloseBlockRejectsTotalFeeBelowMinFee(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.OnCloseBlock([20]byte{1}, 5, 10, nil)
	if err == nil {
		t.Fatalf("expected an error when total fee is below min fee")
	}
	var be *BlockError
	if !errors.As(err, &be) {
		t.Fatalf("expected a BlockError, got %T: %v", err, err)
	}
}

func TestRegisterNetworkExtensionWiresBroadcasterAndStart(t *testing.T) {
	e, w := newTestEngine(t)
	svc := gossip.New(gossip.Config{Worker: w, Votes: w}, 1)
	e.RegisterNetworkExtension(svc)

	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	defer func() {
		cancel()
		time.Sleep(10 * time.Millisecond)
	}()
}
