package stake

import stderrors "errors"

var (
	ErrInsufficientBalance = stderrors.New("stake: insufficient balance")
	ErrInsufficientDelegation = stderrors.New("stake: insufficient delegation")
	ErrNotAValidator       = stderrors.New("stake: delegatee is not in the current validator set")
	ErrBanned              = stderrors.New("stake: address is banned")
	ErrInCustody           = stderrors.New("stake: address is still in custody")
	ErrMetadataTooLarge    = stderrors.New("stake: candidate metadata exceeds the size limit")
	ErrDoubleVoteMismatch  = stderrors.New("stake: votes do not constitute a double vote")
	ErrInvalidSignature    = stderrors.New("stake: vote signature does not recover to the claimed signer")
	ErrNoQuorum            = stderrors.New("stake: admin action lacks the required approver quorum")
)
