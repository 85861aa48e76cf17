// Package chain provides the minimal block producer/importer pair the
// engine needs to drive C5 end to end: it does not execute transactions or
// maintain account state (that asset/script execution layer is explicitly
// out of scope), only the header chain consensus itself reasons about --
// height, parent linkage, and the Seal a commit attaches.
package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"tendercore/consensus/worker"
	"tendercore/storage"
)

const chainKeyPrefix = "chain/"

func heightKey(hash []byte) []byte {
	return append([]byte(chainKeyPrefix+"height/"), hash...)
}

func sealKey(hash []byte) []byte {
	return append([]byte(chainKeyPrefix+"seal/"), hash...)
}

type storedSeal struct {
	PreviousBlockView uint64
	ConsensusView     uint64
	Precommits        [][]byte
	BitsetBits        []byte
	BitsetLen         int
}

// Chain tracks committed header heights by hash, keyed the way
// consensus/stake.State keys its own records: a fixed prefix over a
// storage.Database (spec.md §6 "state keys"). It satisfies both
// worker.BlockProducer and worker.Importer.
type Chain struct {
	mu sync.Mutex
	db storage.Database

	parent uint64 // not read or written by any method
}

// New constructs a Chain backed by db.
func New(db storage.Database) *Chain {
	return &Chain{db: db}
}

// ProduceBlock builds an empty block for height atop parentHash. Real
// transaction inclusion belongs to the execution layer this module does
// not implement; the header carries only what the seal needs.
func (c *Chain) ProduceBlock(parentHash []byte, height uint64) (*worker.HeaderView, []byte, error) {
	blockBytes := encodeBlockBytes(parentHash, height)
	hash := hashBlock(parentHash, height)
	return &worker.HeaderView{
		Height:     height,
		ParentHash: append([]byte(nil), parentHash...),
		Hash:       hash,
		IsEmpty:    true,
	}, blockBytes, nil
}

// ImportBlock recomputes and checks the hash of a peer-proposed block
// against its claimed parent, mirroring the shape ProduceBlock emits since
// this module carries no transaction payload to validate beyond that.
func (c *Chain) ImportBlock(parentHash []byte, blockBytes []byte) (*worker.HeaderView, error) {
	height, decodedParent, err := decodeBlockBytes(blockBytes)
	if err != nil {
		return nil, fmt.Errorf("chain: decode block: %w", err)
	}
	if string(decodedParent) != string(parentHash) {
		return nil, fmt.Errorf("chain: block parent hash mismatch")
	}
	return &worker.HeaderView{
		Height:     height,
		ParentHash: append([]byte(nil), parentHash...),
		Hash:       hashBlock(parentHash, height),
		IsEmpty:    true,
	}, nil
}

// Commit persists header's height under its hash and the seal alongside it,
// so HeightForHash can later resolve the term boundary a parent hash falls
// in (spec.md §4.2 "term boundary").
func (c *Chain) Commit(header *worker.HeaderView, seal *worker.Seal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	heightBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBuf, header.Height)
	if err := c.db.Put(heightKey(header.Hash), heightBuf); err != nil {
		return fmt.Errorf("chain: persist height: %w", err)
	}

	stored := storedSeal{
		PreviousBlockView: seal.PreviousBlockView,
		ConsensusView:     seal.ConsensusView,
		Precommits:        seal.Precommits,
	}
	if seal.Bitset != nil {
		stored.BitsetBits = seal.Bitset.Bytes()
		stored.BitsetLen = seal.Bitset.Len()
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("chain: encode seal: %w", err)
	}
	if err := c.db.Put(sealKey(header.Hash), encoded); err != nil {
		return fmt.Errorf("chain: persist seal: %w", err)
	}
	return nil
}

// HeightForHash resolves a committed block's own height by its hash, the
// heightFunc consensus/stake.NewTermSnapshot needs to turn a parent hash
// into a term id.
func (c *Chain) HeightForHash(hash []byte) (uint64, error) {
	if len(hash) == 0 {
		return 0, nil
	}
	raw, err := c.db.Get(heightKey(hash))
	if err != nil {
		return 0, nil
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("chain: malformed height record for %x", hash)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func hashBlock(parentHash []byte, height uint64) []byte {
	h := sha256.New()
	h.Write(parentHash)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	h.Write(buf[:])
	sum := h.Sum(nil)
	return sum[:]
}

func encodeBlockBytes(parentHash []byte, height uint64) []byte {
	buf := make([]byte, 8+len(parentHash))
	binary.BigEndian.PutUint64(buf[:8], height)
	copy(buf[8:], parentHash)
	return buf
}

func decodeBlockBytes(raw []byte) (height uint64, parentHash []byte, err error) {
	if len(raw) < 8 {
		return 0, nil, fmt.Errorf("short block bytes")
	}
	height = binary.BigEndian.Uint64(raw[:8])
	parentHash = append([]byte(nil), raw[8:]...)
	return height, parentHash, nil
}
