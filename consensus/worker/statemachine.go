package worker

import (
	"time"

	"tendercore/consensus/sortition"
	"tendercore/consensus/types"
	"tendercore/observability/metrics"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// enterHeight resets all per-height state and enters Propose(0) for a new
// height, rebuilding the validator registry for the new parent hash
// (spec.md §4.1 "a new registry is built per term boundary").
func (w *Worker) enterHeight(height uint64, parentHash []byte) {
	w.cancelAllTimers()
	w.height = height
	w.parentHash = parentHash
	w.locked = types.EmptyMajority()
	w.acceptedHeader = nil
	w.acceptedBytes = nil

	set, err := w.cfg.Registry.Build(height, parentHash)
	if err != nil {
		w.log.Error("failed to build validator registry", "height", height, "err", err)
		w.set = nil
		return
	}
	w.set = set
	w.enterPropose(0)
}

// enterPropose computes whether the local signer is the proposer for
// (H, view) -- either by VRF election or, absent any election, the
// round-robin fallback -- and either requests a sealed block or arms the
// Propose timeout to wait for a peer's proposal (spec.md §4.5 "Enter
// Propose").
func (w *Worker) enterPropose(view uint64) {
	w.cancelAllTimers()
	w.view = view
	w.state = types.TendermintState{Kind: types.StatePropose, ParentHash: w.parentHash}
	round := w.currentRound(types.StepPropose)
	w.arm(timerPropose, w.cfg.Timeouts.propose(view), round)

	if w.signer == nil || w.set == nil {
		return
	}
	signerIdx, ok := w.set.GetIndexByAddress(w.signer.Address())
	if !ok {
		return
	}
	validator, err := w.set.ValidatorAt(signerIdx)
	if err != nil {
		return
	}

	elected := false
	if w.cfg.SortitionCfg != nil {
		cfg := w.cfg.SortitionCfg(w.height)
		seed := w.seedFor(w.height, view)
		info, err := sortition.CreateHighestPriorityInfo(seed, w.signer.VRF(), uint32(signerIdx), validator.Weight, cfg)
		if err == nil && info != nil {
			w.collector.CollectPriority(round, info)
			elected = true
		}
	}
	fallback := w.set.NextBlockProposer(view) == w.signer.Address()
	if elected || fallback {
		w.beginSealing(round)
	}
}

// beginSealing requests a block from the producer off the worker's own
// goroutine and waits for the ProposalGenerated event to come back through
// the inbound channel (spec.md §4.5 events 1-2). Running ProduceBlock
// synchronously here would let a single-validator chain commit height after
// height by direct recursive calls without ever returning to run()'s select
// loop; posting the result as an event keeps every state mutation confined
// to run() the way §5 requires.
func (w *Worker) beginSealing(round types.Round) {
	w.state = types.TendermintState{Kind: types.StateProposeWaitBlockGeneration, ParentHash: w.parentHash}
	parentHash := append([]byte(nil), w.parentHash...)
	height := w.height
	go func() {
		header, blockBytes, err := w.cfg.Producer.ProduceBlock(parentHash, height)
		if err != nil {
			_ = w.sendEvent(&proposalGenerationFailed{Round: round})
			return
		}
		_ = w.sendEvent(&proposalGenerated{Round: round, Block: header, Bytes: blockBytes})
	}()
}

func (w *Worker) handleProposalGenerationFailed(e *proposalGenerationFailed) {
	if !w.isCurrentPropose(e.Round) {
		return
	}
	w.log.Warn("block generation failed", "height", w.height, "view", e.Round.View)
	w.advanceView(e.Round.View+1, "block_generation_failed")
}

func (w *Worker) onBlockGenerated(round types.Round, header *HeaderView, blockBytes []byte) {
	if header.IsEmpty && time.Since(w.lastCommitAt) < w.cfg.Timeouts.MinEmptyBlockInterval && !w.lastCommitAt.IsZero() {
		w.state = types.TendermintState{Kind: types.StateProposeWaitEmptyBlockTimer, PendingBlockHash: header.Hash}
		w.acceptedHeader = header
		w.acceptedBytes = blockBytes
		remaining := w.cfg.Timeouts.MinEmptyBlockInterval - time.Since(w.lastCommitAt)
		w.arm(timerEmptyBlock, remaining, round)
		return
	}
	w.finishProposal(round, header, blockBytes)
}

// finishProposal broadcasts our own proposal, self-imports it (we built it,
// so import cannot meaningfully fail) and proceeds to Prevote.
func (w *Worker) finishProposal(round types.Round, header *HeaderView, blockBytes []byte) {
	w.state = types.TendermintState{Kind: types.StateProposeWaitImported, PendingBlockHash: header.Hash}
	w.acceptedHeader = header
	w.acceptedBytes = blockBytes

	signerIdx, _ := w.set.GetIndexByAddress(w.signer.Address())
	priority := w.collector.GetHighestPriorityInfo(round)
	var priorityInfo types.PriorityInfo
	if priority != nil {
		priorityInfo = *priority
	}
	proposal := &types.Proposal{
		Status:      types.ProposalReceived,
		Round:       round,
		Hash:        header.Hash,
		BlockBytes:  blockBytes,
		SignerIndex: uint32(signerIdx),
		Priority:    priorityInfo,
	}
	sig, err := w.signer.signVote(round, header.Hash)
	if err == nil {
		proposal.Signature = sig
	}
	if w.cfg.Broadcaster != nil {
		w.cfg.Broadcaster.BroadcastProposal(proposal)
	}
	if _, err := w.cfg.Importer.ImportBlock(w.parentHash, blockBytes); err != nil {
		w.log.Warn("self-produced block failed import", "height", w.height, "err", err)
		w.advanceView(round.View+1, "state_mismatch")
		return
	}
	w.acceptProposal(round, header.Hash)
}

// handleProposalGenerated and handleProposalImported answer the two
// externally-posted variants of the events above (spec.md §4.5 events 2-3),
// used when a producer/importer genuinely runs off-thread.
func (w *Worker) handleProposalGenerated(e *proposalGenerated) {
	if !w.isCurrentPropose(e.Round) {
		return
	}
	w.onBlockGenerated(e.Round, e.Block, e.Bytes)
}

func (w *Worker) handleProposalImported(e *proposalImported) {
	if e.Round.Height != w.height {
		return
	}
	w.acceptProposal(e.Round, e.Hash)
}

// withinFutureGap enforces spec.md §7's MessageFromFuture rule: a message at
// a view no more than allowed_future_messages_gap ahead of our own is
// accepted (and, via onVote/handleProposalMessage's existing quorum
// re-evaluation, processed once the view becomes current); anything further
// ahead is dropped rather than filed into the collector unbounded.
func (w *Worker) withinFutureGap(view uint64) bool {
	if view <= w.view {
		return true
	}
	return view-w.view <= w.cfg.Timeouts.AllowedFutureViewsGap
}

func (w *Worker) isCurrentPropose(round types.Round) bool {
	return round.Height == w.height && round.View == w.view && w.state.Kind == types.StateProposeWaitBlockGeneration
}

// acceptProposal transitions to Prevote for a now-imported block, matching
// "record Proposal::ProposalImported(hash); Transition to Prevote."
func (w *Worker) acceptProposal(round types.Round, hash []byte) {
	w.enterPrevote(round.View, hash)
}

// enterPrevote broadcasts our prevote -- the locked value if any, else the
// accepted proposal hash, else nil -- and arms the Prevote timeout.
func (w *Worker) enterPrevote(view uint64, acceptedHash []byte) {
	w.cancelTimer(timerPropose)
	w.cancelTimer(timerEmptyBlock)
	w.view = view
	w.state = types.TendermintState{Kind: types.StatePrevote}
	round := w.currentRound(types.StepPrevote)
	w.arm(timerPrevote, w.cfg.Timeouts.prevote(view), round)

	var voteHash []byte
	if lh, ok := w.locked.Locked(); ok {
		voteHash = lh
	} else {
		voteHash = acceptedHash
	}
	w.castVote(round, voteHash)
}

// handleTimeout routes a fired timer, discarding it if the worker has since
// moved past the (height, view, step) it was armed for (spec.md §5
// "Cancellation" -- stale OnTimeout events are recognized and ignored).
func (w *Worker) handleTimeout(tok TimeoutToken) {
	if tok.Round.Height != w.height {
		return
	}
	switch tok.Kind {
	case timerPropose:
		if w.state.Kind == types.StatePropose && tok.Round.View == w.view {
			w.enterPrevote(w.view, nil)
		}
	case timerEmptyBlock:
		if w.state.Kind == types.StateProposeWaitEmptyBlockTimer && tok.Round.View == w.view && w.acceptedHeader != nil {
			w.finishProposal(tok.Round, w.acceptedHeader, w.acceptedBytes)
		}
	case timerPrevote:
		if w.state.Kind == types.StatePrevote && tok.Round.View == w.view {
			w.enterPrecommit(w.view, nil)
		}
	case timerPrecommit:
		if w.state.Kind == types.StatePrecommit && tok.Round.View == w.view {
			w.advanceView(w.view+1, "precommit_timeout")
		}
	case timerCommit:
		if w.state.Kind == types.StateCommit && tok.Round.View == w.view {
			w.state.Kind = types.StateCommitTimedout
		}
	}
}

// advanceView increments the view and re-enters Propose, recording the
// reason for observability.
func (w *Worker) advanceView(view uint64, reason string) {
	w.recordViewChange(reason)
	w.enterPropose(view)
}

// enterPrecommit broadcasts a precommit for the most recently locked value,
// else nil, and arms the Precommit timeout.
func (w *Worker) enterPrecommit(view uint64, _ []byte) {
	w.cancelTimer(timerPrevote)
	w.view = view
	w.state = types.TendermintState{Kind: types.StatePrecommit}
	round := w.currentRound(types.StepPrecommit)
	w.arm(timerPrecommit, w.cfg.Timeouts.precommit(view), round)

	var voteHash []byte
	if lh, ok := w.locked.Locked(); ok {
		voteHash = lh
	}
	w.castVote(round, voteHash)
}

// castVote signs and broadcasts a vote for the given round if the local
// signer is a member of the active set, recording it in the collector so
// our own vote counts toward quorum (spec.md §4.5). A step can be re-entered
// within one view (a later quorum or a better proposal re-enters it), so a
// round the collector already holds our vote for is skipped: the same
// (H,V,Step) is never signed twice.
func (w *Worker) castVote(round types.Round, hash []byte) {
	if w.signer == nil || w.set == nil {
		return
	}
	idx, ok := w.set.GetIndexByAddress(w.signer.Address())
	if !ok {
		return
	}
	if w.collector.RoundVotes(round, w.set.Count()).Test(idx) {
		return
	}
	sig, err := w.signer.signVote(round, hash)
	if err != nil {
		w.log.Error("failed to sign vote", "round", round.String(), "err", err)
		return
	}
	vote := &types.Vote{Round: round, BlockHash: hash, SignerIndex: uint32(idx), Signature: sig}
	w.onVote(vote)
	if w.cfg.Broadcaster != nil {
		w.cfg.Broadcaster.BroadcastVote(vote)
	}
}

// handleInbound dispatches a batched peer message (spec.md §4.5 event 5).
func (w *Worker) handleInbound(e *inboundMessage) {
	if e.Vote != nil {
		w.handleVoteMessage(e.Vote)
	}
	if e.Proposal != nil {
		w.handleProposalMessage(e.Proposal)
	}
}

func (w *Worker) handleVoteMessage(v *types.Vote) {
	if w.set == nil || v.Round.Height != w.height {
		return
	}
	if !types.IsSortitionStep(v.Round.Step) || v.Round.Step == types.StepPropose {
		return
	}
	if !w.withinFutureGap(v.Round.View) {
		return
	}
	validator, err := w.set.ValidatorAt(int(v.SignerIndex))
	if err != nil {
		return
	}
	if !w.verifyVoteSignature(v, validator.Address) {
		if w.cfg.Scorer != nil {
			w.cfg.Scorer.ScoreDown(v.SignerIndex, "signature_invalid")
		}
		return
	}
	w.onVote(v)
}

// onVote files a vote in the collector, reports equivocation, and
// re-evaluates quorum for its round -- this single path handles in-step
// quorum detection, fast-forward and jump-ahead alike, since a vote for any
// (height, view, step) can satisfy quorum regardless of the worker's
// current view (spec.md §4.5 "Tie-breaks and edge policies").
func (w *Worker) onVote(v *types.Vote) {
	isNew, dv, err := w.collector.Collect(v)
	if err != nil {
		return
	}
	if dv != nil && w.cfg.DoubleVotes != nil {
		w.cfg.DoubleVotes.ReportDoubleVote(dv)
	}
	if !isNew {
		return
	}
	w.evaluateQuorum(v.Round)
}

func (w *Worker) evaluateQuorum(round types.Round) {
	if w.set == nil {
		return
	}
	switch round.Step {
	case types.StepPrevote:
		if hash, ok := w.quorumHash(round); ok {
			w.onPrevoteQuorum(round.View, hash)
		} else if w.quorumFor(round, nil) {
			w.onPrevoteQuorum(round.View, nil)
		}
	case types.StepPrecommit:
		if hash, ok := w.quorumHash(round); ok {
			w.onPrecommitQuorum(round.View, hash)
		}
	}
}

func (w *Worker) quorumHash(round types.Round) ([]byte, bool) {
	for _, h := range w.collector.DistinctHashes(round) {
		if w.quorumFor(round, h) {
			return h, true
		}
	}
	return nil, false
}

func (w *Worker) quorumFor(round types.Round, hash []byte) bool {
	bits := w.collector.BlockRoundVotes(round, hash, w.set.Count())
	return w.set.CheckEnoughVotes(bits) == nil
}

// onPrevoteQuorum handles both the in-view and the fast-forward/jump-ahead
// case uniformly: a quorum observed at a view greater than our own adopts
// that view as current before transitioning (spec.md §4.5).
func (w *Worker) onPrevoteQuorum(view uint64, hash []byte) {
	if view < w.view {
		return
	}
	if view > w.view {
		w.recordViewChange("future_quorum")
	}
	if hash != nil {
		w.locked = types.LockMajority(view, hash)
	} else {
		w.locked = types.UnlockMajority(view)
	}
	w.enterPrecommit(view, hash)
}

func (w *Worker) onPrecommitQuorum(view uint64, hash []byte) {
	if view < w.view {
		return
	}
	w.commit(view, hash)
}

// commit assembles the Seal from the precommit round's ascending-index
// signatures and bitset, asks the importer to append the block, and either
// advances to the next height or, on a state-mismatch failure, re-enters
// Propose at view+1 (spec.md §4.5 "Enter Precommit" / §7).
func (w *Worker) commit(view uint64, hash []byte) {
	round := types.Round{Height: w.height, View: view, Step: types.StepPrecommit}
	sigs, indices := w.collector.RoundSignaturesAndIndices(round, hash)
	bits := types.NewBitSet(w.set.Count())
	for _, idx := range indices {
		bits.Set(idx)
	}
	seal := &Seal{
		PreviousBlockView: w.parentView,
		ConsensusView:     view,
		Precommits:        sigs,
		Bitset:            bits,
	}

	header := w.acceptedHeader
	if header == nil || !bytesEqualRaw(header.Hash, hash) {
		w.advanceView(view+1, "state_mismatch")
		return
	}
	if err := w.cfg.Importer.Commit(header, seal); err != nil {
		w.log.Warn("commit failed, re-entering propose", "height", w.height, "err", err)
		w.advanceView(view+1, "state_mismatch")
		return
	}

	w.cancelAllTimers()
	w.state = types.TendermintState{Kind: types.StateCommit, CommitView: view, CommitBlockHash: hash}
	now := time.Now()
	if !w.lastCommitAt.IsZero() {
		metrics.Consensus().RecordBlockInterval(now.Sub(w.lastCommitAt))
	}
	w.lastCommitAt = now
	w.lastSeal = seal
	w.lastSealHeight = w.height
	w.arm(timerCommit, w.cfg.Timeouts.CommitTimeout, types.Round{Height: w.height, View: view, Step: types.StepCommit})

	w.recordCommitMetrics()

	if lh, ok := w.locked.Locked(); !ok || !bytesEqualRaw(lh, hash) {
		w.locked = types.EmptyMajority()
	}
	nextHeight := w.height + 1
	w.parentView = view
	w.collector.ThrowOutOld(types.Round{Height: nextHeight, View: 0, Step: types.StepPropose})
	w.enterHeight(nextHeight, hash)
}

func (w *Worker) handleProposalMessage(p *types.Proposal) {
	if w.set == nil || p.Round.Height != w.height || p.Round.Step != types.StepPropose {
		return
	}
	if p.Round.View < w.view {
		return
	}
	if !w.withinFutureGap(p.Round.View) {
		return
	}
	validator, err := w.set.ValidatorAt(int(p.SignerIndex))
	if err != nil {
		return
	}
	if w.cfg.SortitionCfg != nil {
		cfg := w.cfg.SortitionCfg(w.height)
		seed := w.seedFor(w.height, p.Round.View)
		if err := sortition.Verify(&p.Priority, seed, validator.PublicKey, validator.Weight, cfg); err != nil {
			if w.cfg.Scorer != nil {
				w.cfg.Scorer.ScoreDown(p.SignerIndex, "invalid_vrf_proof")
			}
			return
		}
	}
	current := w.collector.GetHighestPriorityInfo(p.Round)
	if current != nil && !p.Priority.Dominates(*current) {
		return
	}
	w.collector.CollectPriority(p.Round, &p.Priority)

	header, err := w.cfg.Importer.ImportBlock(w.parentHash, p.BlockBytes)
	if err != nil {
		if w.cfg.Scorer != nil {
			w.cfg.Scorer.ScoreDown(p.SignerIndex, "block_import_failed")
		}
		return
	}
	w.acceptedHeader = header
	w.acceptedBytes = p.BlockBytes
	if p.Round.View > w.view {
		w.recordViewChange("future_proposal")
	}
	w.acceptProposal(p.Round, header.Hash)
}

func (w *Worker) verifyVoteSignature(v *types.Vote, expected [20]byte) bool {
	if len(v.Signature) == 0 {
		return false
	}
	digest := voteDigest(v.Round, v.BlockHash)
	pub, err := ethcrypto.SigToPub(digest[:], v.Signature)
	if err != nil {
		return false
	}
	addr := ethcrypto.PubkeyToAddress(*pub)
	return bytesEqualRaw(addr.Bytes(), expected[:])
}

func (w *Worker) recordCommitMetrics() {
	metrics.Consensus().SetHeightCommitted(w.height)
}

func bytesEqualRaw(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
