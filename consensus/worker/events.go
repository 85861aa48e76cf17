package worker

import (
	"tendercore/consensus/types"
)

// TimeoutToken identifies which armed timer fired, so the worker can ignore
// a stale timer that refers to a (height, view, step) it has already left
// (spec.md §4.5 "stale OnTimeout events are ... ignored").
type TimeoutToken struct {
	Kind  timerKind
	Round types.Round
}

// sealRequest is GenerateSeal{block_number, parent_hash}, answered
// synchronously over Reply (spec.md §4.5 event 1).
type sealRequest struct {
	BlockNumber uint64
	ParentHash  []byte
	Reply       chan sealReply
}

type sealReply struct {
	Seal *Seal
	Err  error
}

// verifyRequest backs both VerifyBlockBasic and VerifyBlockExternal; the
// External flag picks which check set runs (spec.md §4.5 event 4).
type verifyRequest struct {
	Header   *HeaderView
	External bool
	Reply    chan error
}

// proposalGenerated is ProposalGenerated(sealed_block), delivered by the
// local block producer once it has answered a sealRequest's parent hash
// with an actual block (spec.md §4.5 event 2).
type proposalGenerated struct {
	Round types.Round
	Block *HeaderView
	Bytes []byte
}

// proposalImported is ProposalBlockImported(hash) from the importer
// (spec.md §4.5 event 3).
type proposalImported struct {
	Round types.Round
	Hash  []byte
}

// proposalGenerationFailed is posted by beginSealing's producer goroutine
// when block production errors, so the failure is handled back on the
// worker's own goroutine rather than racing its state from another one.
type proposalGenerationFailed struct {
	Round types.Round
}

// inboundMessage is HandleMessages(rlp_payloads) -- batched, already-decoded
// peer traffic routed in by the gossip package (spec.md §4.5 event 5).
type inboundMessage struct {
	Vote     *types.Vote
	Proposal *types.Proposal
}

// adminRequest covers the administrative query surface (IsProposal,
// AllowedHeight, CalculateScore, SetSigner, Restore -- spec.md §4.5 event 7).
// Kind selects which; Reply carries back whatever that query returns.
type adminRequestKind uint8

const (
	adminIsProposal adminRequestKind = iota
	adminAllowedHeight
	adminCalculateScore
	adminSetSigner
	adminRestore
	adminKnownVotes
	adminCurrentRound
)

type adminRequest struct {
	Kind    adminRequestKind
	Header  *HeaderView
	Signer  *Signer
	Restore *RestoreState
	Round   types.Round
	Reply   chan adminReply
}

type adminReply struct {
	Bool   bool
	Height uint64
	Score  int64
	Round  types.Round
	Votes  []*types.Vote
	Err    error
}

// HeaderView is the subset of a block header C5 needs to verify, seal or
// reference -- deliberately narrow so this package does not depend on a
// concrete block type; core/chain builds these views directly.
type HeaderView struct {
	Height     uint64
	ParentHash []byte
	Hash       []byte
	View       uint64
	Precommits [][]byte
	Bitset     *types.BitSet
	IsEmpty    bool
}

// RestoreState lets a façade rehydrate the worker after a process restart
// (spec.md §4.5 event 7, "Restore").
type RestoreState struct {
	Height     uint64
	View       uint64
	StateKind  types.StateKind
	Locked     types.TwoThirdsMajority
	ParentHash []byte
}
