// Package types holds the data model shared by every consensus package:
// heights, views, steps, votes, proposals and the compact bitset used to
// describe which validators signed or already know a message.
package types

import "fmt"

// Step is the phase within a view. Ordered Propose < Prevote < Precommit < Commit.
type Step uint8

const (
	StepPropose Step = iota
	StepPrevote
	StepPrecommit
	StepCommit
)

func (s Step) String() string {
	switch s {
	case StepPropose:
		return "propose"
	case StepPrevote:
		return "prevote"
	case StepPrecommit:
		return "precommit"
	case StepCommit:
		return "commit"
	default:
		return fmt.Sprintf("step(%d)", uint8(s))
	}
}

// Rank gives the ordering used by invariant 4 ("C5 never regresses
// (H, step_rank(step)) lexicographically").
func (s Step) Rank() int { return int(s) }

// Round identifies the (height, view, step) tuple votes and priorities are
// filed under in the vote collector (spec.md §3, "SortitionRound").
type Round struct {
	Height uint64
	View   uint64
	Step   Step
}

func (r Round) String() string {
	return fmt.Sprintf("H%d/V%d/%s", r.Height, r.View, r.Step)
}

// Less orders rounds by height, then view, then step rank. Used by the vote
// collector to decide what is "older than oldest retained".
func (r Round) Less(o Round) bool {
	if r.Height != o.Height {
		return r.Height < o.Height
	}
	if r.View != o.View {
		return r.View < o.View
	}
	return r.Step.Rank() < o.Step.Rank()
}

func (r Round) Equal(o Round) bool {
	return r.Height == o.Height && r.View == o.View && r.Step == o.Step
}

// WithStep returns a copy of the round pinned to a different step.
func (r Round) WithStep(step Step) Round {
	r.Step = step
	return r
}

// SortitionRound is the restricted Round domain the sortition and vote
// collector packages key priorities by: Step is always one of Propose,
// Prevote or Precommit (spec.md §3, "SortitionRound" never ranges over
// Commit). It is a plain alias so callers can pass a Round straight through;
// IsSortitionStep is the runtime check for the restriction.
type SortitionRound = Round

func IsSortitionStep(step Step) bool {
	return step == StepPropose || step == StepPrevote || step == StepPrecommit
}
