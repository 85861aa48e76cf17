// Package worker implements C5, the single-threaded Tendermint-style
// consensus state machine. It owns the vote collector (C4) exclusively and
// is driven entirely by events crossing its inbound channels -- no other
// goroutine touches its state (spec.md §4.5, §5).
package worker

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tendercore/consensus/registry"
	"tendercore/consensus/types"
	"tendercore/consensus/votecollector"
	"tendercore/observability/metrics"
)

// Config bundles everything the worker needs at construction time.
type Config struct {
	Timeouts     TimeoutConfig
	Registry     RegistrySource
	Producer     BlockProducer
	Importer     Importer
	Broadcaster  Broadcaster
	DoubleVotes  DoubleVoteSink
	Scorer       PeerScorer
	SortitionCfg SortitionConfig
	Signer       *Signer
	StartHeight  uint64
	ParentHash   []byte
	Logger       *slog.Logger
}

// Worker is C5. All fields below Config are only ever touched from run(),
// the dedicated goroutine started by Start -- this is what lets the state
// machine itself be lock-free (spec.md §5).
type Worker struct {
	cfg Config
	log *slog.Logger

	reqCh   chan interface{}
	eventCh chan interface{}
	done    chan struct{}
	closed  atomic.Bool

	collector *votecollector.Collector

	height     uint64
	view       uint64
	parentView uint64
	state      types.TendermintState
	locked     types.TwoThirdsMajority
	parentHash []byte
	set        *registry.Set

	// the header/bytes for the block currently accepted as this height's
	// proposal, set either when we produce our own or when we import a
	// peer's (used to look it up again when assembling a Seal on commit).
	acceptedHeader *HeaderView
	acceptedBytes  []byte

	lastSeal       *Seal
	lastSealHeight uint64

	signer *Signer

	// timers armed for the current step; cancelled on every transition.
	timers map[timerKind]*time.Timer

	lastCommitAt time.Time

	wg sync.WaitGroup
}

type timerKind uint8

const (
	timerPropose timerKind = iota
	timerPrevote
	timerPrecommit
	timerCommit
	timerEmptyBlock
)

// New constructs a Worker but does not start its goroutine.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		cfg:        cfg,
		log:        logger,
		reqCh:      make(chan interface{}, 1),
		eventCh:    make(chan interface{}, 4096),
		done:       make(chan struct{}),
		collector:  votecollector.New(votecollector.NewPrometheusMetrics()),
		height:     cfg.StartHeight,
		parentHash: append([]byte(nil), cfg.ParentHash...),
		signer:     cfg.Signer,
		timers:     make(map[timerKind]*time.Timer),
	}
	return w
}

// Start launches the worker's single dedicated goroutine (spec.md §5
// "Scheduling"). Calling Start twice is a programmer error.
func (w *Worker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
}

// Stop closes the worker down; pending reply-carrying requests already in
// flight still receive a reply (spec.md §5 "Cancellation").
func (w *Worker) Stop() {
	if w.closed.CompareAndSwap(false, true) {
		close(w.done)
	}
	w.wg.Wait()
}

func (w *Worker) run() {
	w.enterHeight(w.height, w.parentHash)
	for {
		select {
		case <-w.done:
			w.cancelAllTimers()
			for {
				select {
				case req := <-w.reqCh:
					w.dispatchRequest(req)
				default:
					return
				}
			}
		case req := <-w.reqCh:
			w.dispatchRequest(req)
		case ev := <-w.eventCh:
			w.dispatchEvent(ev)
		}
	}
}

func (w *Worker) dispatchRequest(req interface{}) {
	switch r := req.(type) {
	case *sealRequest:
		w.handleGenerateSeal(r)
	case *verifyRequest:
		w.handleVerify(r)
	case *adminRequest:
		w.handleAdmin(r)
	}
}

func (w *Worker) dispatchEvent(ev interface{}) {
	switch e := ev.(type) {
	case *proposalGenerated:
		w.handleProposalGenerated(e)
	case *proposalImported:
		w.handleProposalImported(e)
	case *proposalGenerationFailed:
		w.handleProposalGenerationFailed(e)
	case *inboundMessage:
		w.handleInbound(e)
	case TimeoutToken:
		w.handleTimeout(e)
	}
}

// -- façade-facing API: each either posts a fire-and-forget event or sends
// a request and blocks on its one-shot reply channel (spec.md §4.5, §5).

func (w *Worker) GenerateSeal(blockNumber uint64, parentHash []byte) (*Seal, error) {
	reply := make(chan sealReply, 1)
	req := &sealRequest{BlockNumber: blockNumber, ParentHash: parentHash, Reply: reply}
	if err := w.sendRequest(req); err != nil {
		return nil, err
	}
	r := <-reply
	return r.Seal, r.Err
}

func (w *Worker) VerifyBlockBasic(h *HeaderView) error {
	return w.verify(h, false)
}

func (w *Worker) VerifyBlockExternal(h *HeaderView) error {
	return w.verify(h, true)
}

func (w *Worker) verify(h *HeaderView, external bool) error {
	reply := make(chan error, 1)
	req := &verifyRequest{Header: h, External: external, Reply: reply}
	if err := w.sendRequest(req); err != nil {
		return err
	}
	return <-reply
}

func (w *Worker) IsProposal(h *HeaderView) (bool, error) {
	reply := make(chan adminReply, 1)
	if err := w.sendRequest(&adminRequest{Kind: adminIsProposal, Header: h, Reply: reply}); err != nil {
		return false, err
	}
	r := <-reply
	return r.Bool, r.Err
}

func (w *Worker) AllowedHeight() (uint64, error) {
	reply := make(chan adminReply, 1)
	if err := w.sendRequest(&adminRequest{Kind: adminAllowedHeight, Reply: reply}); err != nil {
		return 0, err
	}
	r := <-reply
	return r.Height, r.Err
}

func (w *Worker) CalculateScore(h *HeaderView) (int64, error) {
	reply := make(chan adminReply, 1)
	if err := w.sendRequest(&adminRequest{Kind: adminCalculateScore, Header: h, Reply: reply}); err != nil {
		return 0, err
	}
	r := <-reply
	return r.Score, r.Err
}

func (w *Worker) SetSigner(s *Signer) error {
	reply := make(chan adminReply, 1)
	if err := w.sendRequest(&adminRequest{Kind: adminSetSigner, Signer: s, Reply: reply}); err != nil {
		return err
	}
	r := <-reply
	return r.Err
}

// KnownVotes answers the gossip package's query for everything C5 has
// collected at round, without granting it direct access to the collector
// (spec.md §5 "C4 is owned exclusively by C5 ... external observers ...
// do so through the façade").
func (w *Worker) KnownVotes(round types.Round) ([]*types.Vote, error) {
	reply := make(chan adminReply, 1)
	if err := w.sendRequest(&adminRequest{Kind: adminKnownVotes, Round: round, Reply: reply}); err != nil {
		return nil, err
	}
	r := <-reply
	return r.Votes, r.Err
}

// CurrentRound reports the worker's current (height, view, step), the step
// being Prevote or Precommit while the worker is in that state and Propose
// otherwise, so the gossip package knows which round's votes are still worth
// forwarding.
func (w *Worker) CurrentRound() (types.Round, error) {
	reply := make(chan adminReply, 1)
	if err := w.sendRequest(&adminRequest{Kind: adminCurrentRound, Reply: reply}); err != nil {
		return types.Round{}, err
	}
	r := <-reply
	return r.Round, r.Err
}

// SetNetwork wires the worker's outbound Broadcaster/PeerScorer, breaking
// the construction cycle between C5 and C6 (each needs the other to
// exist first). Must be called before Start: run() is the only goroutine
// allowed to touch w.cfg once the worker is live, so this mutates it
// directly rather than crossing the request channel (spec.md §4.7
// "register_network_extension_to_service").
func (w *Worker) SetNetwork(b Broadcaster, s PeerScorer) {
	w.cfg.Broadcaster = b
	w.cfg.Scorer = s
}

func (w *Worker) Restore(s *RestoreState) error {
	reply := make(chan adminReply, 1)
	if err := w.sendRequest(&adminRequest{Kind: adminRestore, Restore: s, Reply: reply}); err != nil {
		return err
	}
	r := <-reply
	return r.Err
}

func (w *Worker) ProposalGenerated(round types.Round, header *HeaderView, blockBytes []byte) error {
	return w.sendEvent(&proposalGenerated{Round: round, Block: header, Bytes: blockBytes})
}

func (w *Worker) ProposalBlockImported(round types.Round, hash []byte) error {
	return w.sendEvent(&proposalImported{Round: round, Hash: hash})
}

// HandleMessages enqueues a batch of already-decoded peer traffic routed in
// by the gossip package (spec.md §4.5 event 5).
func (w *Worker) HandleMessages(msgs []inboundMessage) error {
	for i := range msgs {
		if err := w.sendEvent(&msgs[i]); err != nil {
			return err
		}
	}
	return nil
}

// HandleVote and HandleProposal are the narrow entry points C6 actually
// calls; HandleMessages above exists for already-batched RLP decodes.
func (w *Worker) HandleVote(v *types.Vote) error {
	return w.sendEvent(&inboundMessage{Vote: v})
}

func (w *Worker) HandleProposal(p *types.Proposal) error {
	return w.sendEvent(&inboundMessage{Proposal: p})
}

func (w *Worker) OnTimeout(tok TimeoutToken) error {
	return w.sendEvent(tok)
}

func (w *Worker) sendRequest(req interface{}) error {
	if w.closed.Load() {
		return ErrChannelClosed
	}
	select {
	case w.reqCh <- req:
		return nil
	case <-w.done:
		return ErrChannelClosed
	}
}

func (w *Worker) sendEvent(ev interface{}) error {
	if w.closed.Load() {
		return ErrChannelClosed
	}
	select {
	case w.eventCh <- ev:
		return nil
	case <-w.done:
		return ErrChannelClosed
	default:
		// eventCh is sized generously to stand in for "unbounded"
		// (spec.md §5); a full buffer means the producer is far
		// outrunning the worker, so fall back to a blocking send
		// rather than silently dropping consensus traffic.
		select {
		case w.eventCh <- ev:
			return nil
		case <-w.done:
			return ErrChannelClosed
		}
	}
}

func (w *Worker) arm(kind timerKind, d time.Duration, round types.Round) {
	w.cancelTimer(kind)
	t := time.AfterFunc(d, func() {
		_ = w.OnTimeout(TimeoutToken{Kind: kind, Round: round})
	})
	w.timers[kind] = t
}

func (w *Worker) cancelTimer(kind timerKind) {
	if t, ok := w.timers[kind]; ok {
		t.Stop()
		delete(w.timers, kind)
	}
}

func (w *Worker) cancelAllTimers() {
	for k := range w.timers {
		w.cancelTimer(k)
	}
}

func (w *Worker) currentRound(step types.Step) types.Round {
	return types.Round{Height: w.height, View: w.view, Step: step}
}

func (w *Worker) replaceSigner(s *Signer) {
	w.signer = s
}

func (w *Worker) recordViewChange(reason string) {
	metrics.Consensus().ObserveViewChange(reason)
}

func (w *Worker) logf(format string, args ...interface{}) {
	w.log.Info(fmt.Sprintf(format, args...), "height", w.height, "view", w.view)
}

func (w *Worker) seedFor(height, view uint64) []byte {
	buf := make([]byte, 0, len(w.parentHash)+16)
	buf = append(buf, w.parentHash...)
	buf = appendUint64(buf, height)
	buf = appendUint64(buf, view)
	return buf
}
