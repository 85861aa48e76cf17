package gossip

import (
	"fmt"
	"log/slog"

	"tendercore/consensus/registry"
	"tendercore/consensus/types"
	"tendercore/consensus/wire"
	"tendercore/p2p"
)

// WorkerSink is the narrow slice of *worker.Worker that C6 feeds decoded
// peer traffic into (spec.md §4.6).
type WorkerSink interface {
	HandleVote(v *types.Vote) error
	HandleProposal(p *types.Proposal) error
}

// VoteSource is the narrow slice of *worker.Worker the outbound tick reads
// from; C4 stays owned exclusively by C5, so this crosses the same
// request/reply channel every other façade query does (spec.md §5).
type VoteSource interface {
	KnownVotes(round types.Round) ([]*types.Vote, error)
	CurrentRound() (types.Round, error)
}

// ProposalStore answers RequestProposal pulls from the locally accepted
// proposal for a round, if any (spec.md §4.6).
type ProposalStore interface {
	ProposalFor(round types.Round) (*types.Proposal, bool)
}

// CommitStore answers RequestCommit pulls with a previously assembled
// commit proof (spec.md §4.6, §6 tag 0x06).
type CommitStore interface {
	CommitProofFor(height uint64) (hash []byte, precommits [][]byte, bitset *types.BitSet, ok bool)
}

// Unicaster sends a message to exactly one peer, used for replies to pull
// requests. Implementations wrap a transport's per-connection send (the
// pack's p2p.Peer.Enqueue); when nil, replies fall back to Broadcast.
type Unicaster interface {
	SendTo(peerID string, msg *p2p.Message) error
}

// Scorer reports a peer's misbehavior to a reputation tracker, by address
// rather than connection id, since C5 only knows the misbehaving signer's
// validator index (spec.md §7 "drop message; score peer down").
type Scorer interface {
	ScoreDown(address [20]byte, reason string)
}

// Service is C6: it owns the per-peer Tracker, decodes wire traffic, and
// bridges both directions between peers and the worker (spec.md §4.6).
type Service struct {
	tracker     *Tracker
	broadcaster p2p.Broadcaster
	unicaster   Unicaster
	worker      WorkerSink
	votes       VoteSource
	proposals   ProposalStore
	commits     CommitStore
	scorer      Scorer
	log         *slog.Logger

	set *registry.Set
}

// Config bundles Service's collaborators; only Worker, Votes and
// Broadcaster are required.
type Config struct {
	Worker      WorkerSink
	Votes       VoteSource
	Broadcaster p2p.Broadcaster
	Unicaster   Unicaster
	Proposals   ProposalStore
	Commits     CommitStore
	Scorer      Scorer
	Logger      *slog.Logger
}

// New constructs a Service. validatorCount sizes the per-peer bitsets the
// Tracker allocates.
func New(cfg Config, validatorCount int) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tracker:     NewTracker(validatorCount),
		broadcaster: cfg.Broadcaster,
		unicaster:   cfg.Unicaster,
		worker:      cfg.Worker,
		votes:       cfg.Votes,
		proposals:   cfg.Proposals,
		commits:     cfg.Commits,
		scorer:      cfg.Scorer,
		log:         logger,
	}
}

// SetBroadcaster wires the transport Service sends wire traffic over,
// breaking the construction cycle with whatever owns the listening socket
// (it, in turn, needs a handler that wraps this Service to exist first).
// Call before Run, the same convention consensus/worker.Worker.SetNetwork
// uses for its own construction cycle with C6.
func (s *Service) SetBroadcaster(b p2p.Broadcaster) {
	s.broadcaster = b
}

// SetRegistry installs the validator Set effective for the current term, so
// incoming signer indices can be range-checked before reaching the worker
// (spec.md §4.6 "verify signer via C1").
func (s *Service) SetRegistry(set *registry.Set) {
	s.set = set
	if set != nil {
		s.tracker.SetValidatorCount(set.Count())
	}
}

// HandleMessage routes one peer's decoded wire payload to the matching
// handler (spec.md §4.6). Deliberately not p2p.MessageHandler's shape: C6
// needs the sending peer's id, which that single-argument interface omits
// (see DESIGN.md).
func (s *Service) HandleMessage(peerID string, msg *p2p.Message) error {
	tag, payload, err := wire.Decode(msg)
	if err != nil {
		s.log.Warn("gossip: dropping malformed message", "peer", peerID, "err", err)
		return fmt.Errorf("%w: %v", p2p.ErrInvalidPayload, err)
	}
	switch tag {
	case wire.TagConsensusMessage:
		return s.handleConsensusMessage(peerID, payload.(*wire.ConsensusMessage))
	case wire.TagProposal:
		return s.handleProposal(peerID, payload.(*wire.Proposal))
	case wire.TagStepState:
		return s.handleStepState(peerID, payload.(*wire.StepState))
	case wire.TagRequestProposal:
		return s.handleRequestProposal(peerID, payload.(*wire.RequestProposal))
	case wire.TagRequestCommit:
		return s.handleRequestCommit(peerID, payload.(*wire.RequestCommit))
	default:
		return fmt.Errorf("gossip: unhandled tag %#x", tag)
	}
}

func (s *Service) handleConsensusMessage(peerID string, m *wire.ConsensusMessage) error {
	if !s.signerInRange(m.SignerIndex) {
		s.log.Warn("gossip: vote from out-of-range signer", "peer", peerID, "signer", m.SignerIndex)
		return fmt.Errorf("gossip: signer index %d out of range", m.SignerIndex)
	}
	v := m.Vote()
	s.tracker.MarkKnown(peerID, v.Round, int(v.SignerIndex))
	return s.worker.HandleVote(v)
}

func (s *Service) handleProposal(peerID string, m *wire.Proposal) error {
	if !s.signerInRange(m.SignerIndex) {
		s.log.Warn("gossip: proposal from out-of-range signer", "peer", peerID, "signer", m.SignerIndex)
		return fmt.Errorf("gossip: signer index %d out of range", m.SignerIndex)
	}
	return s.worker.HandleProposal(m.ToType())
}

func (s *Service) handleStepState(peerID string, m *wire.StepState) error {
	known, err := m.Bitset()
	if err != nil {
		return err
	}
	s.tracker.UpdateStepState(peerID, m.Round.ToType(), m.ProposalHash, known)
	return nil
}

func (s *Service) handleRequestProposal(peerID string, m *wire.RequestProposal) error {
	if s.proposals == nil {
		return nil
	}
	round := m.Round.ToType()
	p, ok := s.proposals.ProposalFor(round)
	if !ok {
		return nil
	}
	msg, err := wire.Encode(wire.TagProposal, wire.ProposalFromType(p))
	if err != nil {
		return err
	}
	return s.sendTo(peerID, msg)
}

func (s *Service) handleRequestCommit(peerID string, m *wire.RequestCommit) error {
	if s.commits == nil {
		return nil
	}
	hash, precommits, bitset, ok := s.commits.CommitProofFor(m.Height)
	if !ok {
		return nil
	}
	payload := &wire.CommitProof{
		Height:     m.Height,
		BlockHash:  hash,
		Precommits: precommits,
	}
	if bitset != nil {
		payload.BitsetLen = uint32(bitset.Len())
		payload.Bitset = bitset.Bytes()
	}
	msg, err := wire.Encode(wire.TagCommitProof, payload)
	if err != nil {
		return err
	}
	return s.sendTo(peerID, msg)
}

func (s *Service) sendTo(peerID string, msg *p2p.Message) error {
	if s.unicaster != nil {
		return s.unicaster.SendTo(peerID, msg)
	}
	if s.broadcaster == nil {
		return nil
	}
	return s.broadcaster.Broadcast(msg)
}

func (s *Service) signerInRange(idx uint32) bool {
	return s.set == nil || int(idx) < s.set.Count()
}

// BroadcastVote implements worker.Broadcaster, sending a vote C5 just cast
// to every tracked peer (spec.md §4.6 "forwards new votes").
func (s *Service) BroadcastVote(v *types.Vote) {
	msg, err := wire.Encode(wire.TagConsensusMessage, wire.ConsensusMessageFromVote(v))
	if err != nil {
		s.log.Error("gossip: encode vote", "err", err)
		return
	}
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(msg); err != nil {
		s.log.Warn("gossip: broadcast vote", "err", err)
	}
	for _, peerID := range s.tracker.Peers() {
		s.tracker.MarkKnown(peerID, v.Round, int(v.SignerIndex))
	}
}

// BroadcastProposal implements worker.Broadcaster for self-produced
// proposals.
func (s *Service) BroadcastProposal(p *types.Proposal) {
	msg, err := wire.Encode(wire.TagProposal, wire.ProposalFromType(p))
	if err != nil {
		s.log.Error("gossip: encode proposal", "err", err)
		return
	}
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(msg); err != nil {
		s.log.Warn("gossip: broadcast proposal", "err", err)
	}
}

// ScoreDown implements worker.PeerScorer. It resolves signerIndex to an
// address via the last-installed registry Set and reports it to the
// reputation scorer; indices that no longer resolve (the term rolled over
// mid-flight) are silently dropped since there is no peer left to blame.
func (s *Service) ScoreDown(signerIndex uint32, reason string) {
	if s.scorer == nil || s.set == nil {
		return
	}
	v, err := s.set.ValidatorAt(int(signerIndex))
	if err != nil {
		return
	}
	s.scorer.ScoreDown(v.Address, reason)
}

// RemovePeer drops a disconnected peer's tracked state.
func (s *Service) RemovePeer(peerID string) {
	s.tracker.Remove(peerID)
}
