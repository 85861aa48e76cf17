package types

// TendermintState is C5's state variable (spec.md §3).
type TendermintState struct {
	Kind StateKind

	// ProposeWaitBlockGeneration
	ParentHash []byte
	// ProposeWaitImported / ProposeWaitEmptyBlockTimer
	PendingBlockHash []byte
	// Commit / CommitTimedout
	CommitView      uint64
	CommitBlockHash []byte
}

type StateKind uint8

const (
	StatePropose StateKind = iota
	StateProposeWaitBlockGeneration
	StateProposeWaitImported
	StateProposeWaitEmptyBlockTimer
	StatePrevote
	StatePrecommit
	StateCommit
	StateCommitTimedout
)

func (k StateKind) String() string {
	switch k {
	case StatePropose:
		return "Propose"
	case StateProposeWaitBlockGeneration:
		return "ProposeWaitBlockGeneration"
	case StateProposeWaitImported:
		return "ProposeWaitImported"
	case StateProposeWaitEmptyBlockTimer:
		return "ProposeWaitEmptyBlockTimer"
	case StatePrevote:
		return "Prevote"
	case StatePrecommit:
		return "Precommit"
	case StateCommit:
		return "Commit"
	case StateCommitTimedout:
		return "CommitTimedout"
	default:
		return "Unknown"
	}
}

// MajorityKind distinguishes the three shapes a TwoThirdsMajority can take.
type MajorityKind uint8

const (
	MajorityEmpty MajorityKind = iota
	MajorityLock
	MajorityUnlock
)

// TwoThirdsMajority is the "locked value" from the most recent round where
// 2f+1 precommits were observed (spec.md §3).
type TwoThirdsMajority struct {
	Kind      MajorityKind
	View      uint64
	BlockHash []byte
}

func EmptyMajority() TwoThirdsMajority { return TwoThirdsMajority{Kind: MajorityEmpty} }

func LockMajority(view uint64, hash []byte) TwoThirdsMajority {
	return TwoThirdsMajority{Kind: MajorityLock, View: view, BlockHash: hash}
}

func UnlockMajority(view uint64) TwoThirdsMajority {
	return TwoThirdsMajority{Kind: MajorityUnlock, View: view}
}

func (m TwoThirdsMajority) Locked() ([]byte, bool) {
	if m.Kind == MajorityLock {
		return m.BlockHash, true
	}
	return nil, false
}
