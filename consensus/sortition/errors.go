package sortition

import stderrors "errors"

var (
	ErrInvalidProof      = stderrors.New("sortition: vrf proof does not verify against the claimed hash")
	ErrSubUserOutOfRange = stderrors.New("sortition: sub_user_idx is not within the range drawn for this signer")
	ErrPriorityMismatch  = stderrors.New("sortition: recomputed priority does not match the claimed priority")
	ErrNoElection        = stderrors.New("sortition: signer drew zero sub-users for this round")
)
