package worker

import (
	"fmt"

	"tendercore/consensus/types"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// handleGenerateSeal answers C7's GenerateSeal request with the Seal the
// worker assembled when it committed blockNumber, since that is the block
// the façade is now sealing for propagation (spec.md §4.5 event 1).
func (w *Worker) handleGenerateSeal(r *sealRequest) {
	if w.lastSeal == nil || r.BlockNumber != w.lastSealHeight {
		r.Reply <- sealReply{Err: fmt.Errorf("worker: no seal available for block %d", r.BlockNumber)}
		return
	}
	r.Reply <- sealReply{Seal: w.lastSeal}
}

// handleVerify answers VerifyBlockBasic/VerifyBlockExternal (spec.md §4.5
// event 4, §6 "On verification").
func (w *Worker) handleVerify(r *verifyRequest) {
	r.Reply <- w.verifySeal(r.Header, r.External)
}

func (w *Worker) verifySeal(h *HeaderView, external bool) error {
	set, err := w.cfg.Registry.Build(h.Height, h.ParentHash)
	if err != nil {
		return fmt.Errorf("worker: resolve registry for verification: %w", err)
	}
	if h.Bitset == nil || len(h.Precommits) != h.Bitset.Count() {
		return ErrBadSealFieldSize
	}
	if err := set.CheckEnoughVotes(h.Bitset); err != nil {
		return err
	}
	if !external {
		return nil
	}
	round := types.Round{Height: h.Height, View: h.View, Step: types.StepPrecommit}
	digest := voteDigest(round, h.Hash)
	indices := h.Bitset.Indices()
	for i, idx := range indices {
		if i >= len(h.Precommits) {
			return ErrBadSealFieldSize
		}
		pub, err := ethcrypto.SigToPub(digest[:], h.Precommits[i])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		validator, err := set.ValidatorAt(idx)
		if err != nil {
			return err
		}
		addr := ethcrypto.PubkeyToAddress(*pub)
		if !bytesEqualRaw(addr.Bytes(), validator.Address[:]) {
			return ErrSignatureInvalid
		}
	}
	return nil
}

// handleAdmin answers the administrative event group (spec.md §4.5 event 7).
func (w *Worker) handleAdmin(r *adminRequest) {
	switch r.Kind {
	case adminIsProposal:
		ok := r.Header != nil && w.acceptedHeader != nil &&
			r.Header.Height == w.acceptedHeader.Height &&
			bytesEqualRaw(r.Header.Hash, w.acceptedHeader.Hash)
		r.Reply <- adminReply{Bool: ok}
	case adminAllowedHeight:
		r.Reply <- adminReply{Height: w.height}
	case adminCalculateScore:
		var score int64
		if r.Header != nil {
			score = -int64(r.Header.View)
		}
		r.Reply <- adminReply{Score: score}
	case adminSetSigner:
		w.replaceSigner(r.Signer)
		r.Reply <- adminReply{}
	case adminRestore:
		w.applyRestore(r.Restore)
		r.Reply <- adminReply{}
	case adminKnownVotes:
		r.Reply <- adminReply{Votes: w.collector.AllVotes(r.Round)}
	case adminCurrentRound:
		step := types.StepPropose
		switch w.state.Kind {
		case types.StatePrevote:
			step = types.StepPrevote
		case types.StatePrecommit:
			step = types.StepPrecommit
		}
		r.Reply <- adminReply{Round: w.currentRound(step)}
	default:
		r.Reply <- adminReply{Err: fmt.Errorf("worker: unknown admin request kind %d", r.Kind)}
	}
}

// applyRestore rehydrates height/view/state/lock from a previously
// persisted snapshot (spec.md §4.5 event 7 "Restore"). Timers for whatever
// step the snapshot names are not re-armed here; the worker relies on the
// next observed message or an external nudge to make forward progress,
// since the original step-entry time is not part of the snapshot (see
// DESIGN.md).
func (w *Worker) applyRestore(s *RestoreState) {
	if s == nil {
		return
	}
	w.cancelAllTimers()
	w.height = s.Height
	w.view = s.View
	w.state = types.TendermintState{Kind: s.StateKind, ParentHash: s.ParentHash}
	w.locked = s.Locked
	w.parentHash = s.ParentHash
	if set, err := w.cfg.Registry.Build(s.Height, s.ParentHash); err == nil {
		w.set = set
	}
}
