package chain

import (
	"testing"

	"tendercore/consensus/types"
	"tendercore/consensus/worker"
	"tendercore/storage"
)

func TestProduceImportRoundTrip(t *testing.T) {
	c := New(storage.NewMemDB())
	parent := []byte("genesis")

	header, blockBytes, err := c.ProduceBlock(parent, 1)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}

	imported, err := c.ImportBlock(parent, blockBytes)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if string(imported.Hash) != string(header.Hash) {
		t.Fatalf("import hash mismatch: %x vs %x", imported.Hash, header.Hash)
	}
}

func TestImportRejectsWrongParent(t *testing.T) {
	c := New(storage.NewMemDB())
	_, blockBytes, err := c.ProduceBlock([]byte("genesis"), 1)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if _, err := c.ImportBlock([]byte("someone-else"), blockBytes); err == nil {
		t.Fatalf("expected a parent hash mismatch error")
	}
}

func TestCommitPersistsHeightForHash(t *testing.T) {
	c := New(storage.NewMemDB())
	header, _, err := c.ProduceBlock([]byte("genesis"), 5)
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	bitset := types.NewBitSet(4)
	bitset.Set(0)
	seal := &worker.Seal{PreviousBlockView: 0, ConsensusView: 1, Precommits: [][]byte{[]byte("sig")}, Bitset: bitset}
	if err := c.Commit(header, seal); err != nil {
		t.Fatalf("commit: %v", err)
	}

	height, err := c.HeightForHash(header.Hash)
	if err != nil {
		t.Fatalf("height for hash: %v", err)
	}
	if height != 5 {
		t.Fatalf("unexpected height: %d", height)
	}
}

func TestHeightForHashUnknownReturnsZero(t *testing.T) {
	c := New(storage.NewMemDB())
	height, err := c.HeightForHash([]byte("never-committed"))
	if err != nil {
		t.Fatalf("height for hash: %v", err)
	}
	if height != 0 {
		t.Fatalf("expected zero height for unknown hash, got %d", height)
	}
}
