package worker

import stderrors "errors"

var (
	// ErrChannelClosed surfaces as the façade's WorkerChannelClosed case
	// when the worker goroutine has already exited (spec.md §7).
	ErrChannelClosed = stderrors.New("worker: inbound channel closed, engine has shut down")

	ErrNoSigner           = stderrors.New("worker: no signer configured")
	ErrUnknownSigner      = stderrors.New("worker: signer is not a member of the active validator set")
	ErrSignatureInvalid   = stderrors.New("worker: message signature does not verify")
	ErrMessageTooOld      = stderrors.New("worker: message height/view is behind the retained window")
	ErrMessageFromFuture  = stderrors.New("worker: message view is further ahead than the allowed gap")
	ErrBadSealFieldSize   = stderrors.New("worker: seal does not satisfy the weighted quorum threshold")
	ErrBlockGenerationFailed = stderrors.New("worker: local block production failed")
)
