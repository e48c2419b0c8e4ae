package incident

import (
	"fmt"

	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// Step is one of the seven ordered stages of incident response
type Step string

const (
	StepDetect      Step = "DETECT"
	StepAssess      Step = "ASSESS"
	StepStabilize   Step = "STABILIZE"
	StepReport      Step = "REPORT"
	StepInvestigate Step = "INVESTIGATE"
	StepCorrect     Step = "CORRECT"
	StepVerify      Step = "VERIFY"
)

// StepOrder lists the workflow steps in execution order
var StepOrder = []Step{
	StepDetect,
	StepAssess,
	StepStabilize,
	StepReport,
	StepInvestigate,
	StepCorrect,
	StepVerify,
}

// IsValid reports whether the step belongs to the workflow
func (s Step) IsValid() bool {
	return s.Ordinal() >= 0
}

// Ordinal returns the step's position in the workflow, or -1 if unknown
func (s Step) Ordinal() int {
	for i, step := range StepOrder {
		if s == step {
			return i
		}
	}
	return -1
}

// Next returns the step following this one in order
func (s Step) Next() (Step, error) {
	ord := s.Ordinal()
	if ord < 0 {
		return "", errors.NewValidationError("INVALID_STEP",
			fmt.Sprintf("unknown workflow step %q", string(s)))
	}
	if ord == len(StepOrder)-1 {
		return "", errors.NewPreconditionError("WORKFLOW_COMPLETE",
			"incident is already at the final workflow step")
	}
	return StepOrder[ord+1], nil
}

// IsFinal reports whether this is the terminal workflow step
func (s Step) IsFinal() bool {
	return s == StepVerify
}

// Transition reasons for the two legitimate backward moves. Every other
// transition must be forward along StepOrder.
const (
	BackwardVerificationFailed = "verification_failed"
	BackwardReopened           = "reopened"
)

// allowedBackward enumerates the only legal backward (from, to) pairs
var allowedBackward = map[Step]Step{
	StepVerify: StepCorrect, // verification failed
}

// CanTransition reports whether moving from one step to another is legal.
// Forward jumps (including multi-step) are allowed; staying in place is not a
// transition; backward moves are legal only through the explicit table.
func CanTransition(from, to Step) bool {
	fromOrd, toOrd := from.Ordinal(), to.Ordinal()
	if fromOrd < 0 || toOrd < 0 {
		return false
	}
	if toOrd > fromOrd {
		return true
	}
	return allowedBackward[from] == to
}
