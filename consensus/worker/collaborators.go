package worker

import (
	"tendercore/consensus/registry"
	"tendercore/consensus/sortition"
	"tendercore/consensus/types"
)

// BlockProducer builds a block for the given parent once the local signer
// wins Propose (spec.md §4.5 "request a sealed block from the block
// producer"). It returns the bytes a peer would need to replay the block
// plus the narrow header view the worker reasons about.
type BlockProducer interface {
	ProduceBlock(parentHash []byte, height uint64) (header *HeaderView, blockBytes []byte, err error)
}

// Importer validates and applies a proposal's block bytes against a parent
// hash, returning the parsed header view on success (spec.md §4.5 event 3).
type Importer interface {
	ImportBlock(parentHash []byte, blockBytes []byte) (*HeaderView, error)
	// Commit finalizes height H with the given seal, advancing canon.
	Commit(header *HeaderView, seal *Seal) error
}

// Broadcaster sends worker-originated wire traffic to peers (spec.md §4.6).
type Broadcaster interface {
	BroadcastVote(v *types.Vote)
	BroadcastProposal(p *types.Proposal)
}

// DoubleVoteSink queues a ReportDoubleVote action for mempool inclusion
// once the worker detects an equivocation (spec.md §4.4/§7).
type DoubleVoteSink interface {
	ReportDoubleVote(dv *types.DoubleVote)
}

// PeerScorer lets the worker push a peer's reputation down on invalid
// messages (spec.md §7 "drop message; score peer down").
type PeerScorer interface {
	ScoreDown(signerIndex uint32, reason string)
}

// RegistrySource resolves the validator Set effective at a parent hash,
// narrowed from *registry.Source so tests can substitute a fake.
type RegistrySource interface {
	Build(height uint64, parentHash []byte) (*registry.Set, error)
}

// SortitionConfig supplies the per-height total power/expectation pair the
// worker needs to run CreateHighestPriorityInfo/Verify (spec.md §4.3).
type SortitionConfig func(height uint64) sortition.Config
