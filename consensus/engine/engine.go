// Package engine implements C7, the thin synchronous façade other
// subsystems call instead of reaching into C5's channels directly
// (spec.md §4.7).
package engine

import (
	"context"
	"fmt"

	"tendercore/consensus/gossip"
	"tendercore/consensus/stake"
	"tendercore/consensus/worker"
)

// Config bundles the constants on_close_block needs beyond what the
// worker and stake state already track (spec.md §6 "block_reward:
// Constant added to author on close").
type Config struct {
	BlockReward uint64
}

// Engine is C7. It owns no consensus state of its own -- every call is a
// synchronous proxy onto the worker's request/reply channel (spec.md §4.7
// "Thin synchronous proxy around C5's channel").
type Engine struct {
	worker  *worker.Worker
	network *gossip.Service
	cfg     Config
}

// New wraps an already-constructed, not-yet-started worker. Callers:
// construct the worker, construct the gossip Service (its Worker/Votes
// collaborators pointed at the worker), call RegisterNetworkExtension,
// then Start.
func New(w *worker.Worker, cfg Config) *Engine {
	return &Engine{worker: w, cfg: cfg}
}

// SealFields reports the constant field count of the header seal: previous
// view, consensus view, precommits, bitset (spec.md §4.7, §6).
func (e *Engine) SealFields() int { return worker.SealFields }

// GenerateSeal blocks on C5's reply channel for the seal assembled when
// blockNumber committed (spec.md §4.7 "generate_seal(block, parent)").
func (e *Engine) GenerateSeal(blockNumber uint64, parentHash []byte) (*worker.Seal, error) {
	seal, err := e.worker.GenerateSeal(blockNumber, parentHash)
	if err != nil {
		return nil, engineErr(err)
	}
	return seal, nil
}

// VerifyBlockBasic runs the registry/bitset/precommit-count checks that do
// not require recovering signer public keys (spec.md §4.7).
func (e *Engine) VerifyBlockBasic(h *worker.HeaderView) error {
	if err := e.worker.VerifyBlockBasic(h); err != nil {
		return blockErr(err)
	}
	return nil
}

// VerifyBlockExternal additionally recovers and checks every precommit
// signature against its claimed signer (spec.md §4.7, §6 "On verification").
func (e *Engine) VerifyBlockExternal(h *worker.HeaderView) error {
	if err := e.worker.VerifyBlockExternal(h); err != nil {
		return blockErr(err)
	}
	return nil
}

// RegisterNetworkExtension wires C6 as the worker's outbound Broadcaster
// and PeerScorer (spec.md §4.7 "register_network_extension_to_service").
// svc's own Worker/Votes collaborators must already point at the same
// worker; the two are built independently of each other and introduced
// here since each needs the other to exist first. Must be called before
// Start.
func (e *Engine) RegisterNetworkExtension(svc *gossip.Service) {
	e.worker.SetNetwork(svc, svc)
	e.network = svc
}

// CloseBlockResult is what on_close_block reports back: every
// stakeholder's pro-rata cut plus what the block's author is owed.
type CloseBlockResult struct {
	Shares        []stake.FeeShare
	AuthorPayment uint64
}

// OnCloseBlock computes the fee split for a just-finalized block: min_fee
// is distributed pro-rata across stakes, the remainder (total_fee -
// min_fee) plus the configured block reward goes to the author (spec.md
// §4.7 "on_close_block", §6 "block_reward"). It asserts total_fee ≥
// min_fee, surfacing a violation as a BlockError since a block that
// reports that is malformed, not an engine fault.
func (e *Engine) OnCloseBlock(author [20]byte, totalFee, minFee uint64, stakes []stake.FeeShare) (*CloseBlockResult, error) {
	if totalFee < minFee {
		return nil, blockErr(fmt.Errorf("total fee %d below min fee %d", totalFee, minFee))
	}
	shares, authorAmount := stake.FeeDistribute(author, minFee, totalFee, stakes)
	authorAmount += e.cfg.BlockReward
	return &CloseBlockResult{Shares: shares, AuthorPayment: authorAmount}, nil
}

// Start launches the worker's goroutine and, if a network extension was
// registered, its outbound gossip tick, stopping both when ctx is
// cancelled (spec.md §5 "Scheduling").
func (e *Engine) Start(ctx context.Context) {
	e.worker.Start()
	if e.network != nil {
		go e.network.Run(ctx, gossip.DefaultTickInterval)
	}
	go func() {
		<-ctx.Done()
		e.worker.Stop()
	}()
}
