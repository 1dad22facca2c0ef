package pipeline

import "fmt"

type Phase string

const (
	PhaseIdle                   Phase = "idle"
	PhaseCoreRunning            Phase = "core_running"
	PhaseCheckpointChallenge    Phase = "checkpoint_challenge"
	PhaseCheckpointFraming      Phase = "checkpoint_problem_framing"
	PhaseCheckpointIdea         Phase = "checkpoint_idea_comparison"
	PhaseCheckpointBrandName    Phase = "checkpoint_brand_name"
	PhaseCoreFinished           Phase = "core_finished"
	PhaseDeliverablesGenerating Phase = "deliverables_generating"
	PhaseFinished               Phase = "finished"
	PhaseError                  Phase = "error"
)

// transitions lists the legal successors of every phase. Reset to idle is
// always allowed and not listed.
var transitions = map[Phase][]Phase{
	PhaseIdle: {PhaseCoreRunning},
	PhaseCoreRunning: {
		PhaseCheckpointChallenge,
		PhaseCheckpointFraming,
		PhaseCheckpointIdea,
		PhaseCheckpointBrandName,
		PhaseCoreFinished,
		PhaseError,
	},
	PhaseCheckpointChallenge:    {PhaseCoreRunning},
	PhaseCheckpointFraming:      {PhaseCoreRunning},
	PhaseCheckpointIdea:         {PhaseCoreRunning},
	PhaseCheckpointBrandName:    {PhaseCoreRunning},
	PhaseCoreFinished:           {PhaseDeliverablesGenerating, PhaseError},
	PhaseDeliverablesGenerating: {PhaseFinished, PhaseError},
	PhaseFinished:               {},
	PhaseError:                  {},
}

func (p Phase) CanTransition(to Phase) bool {
	if to == PhaseIdle {
		return true
	}
	for _, next := range transitions[p] {
		if next == to {
			return true
		}
	}
	return false
}

// IsCheckpoint reports whether the run is paused for a user decision.
func (p Phase) IsCheckpoint() bool {
	switch p {
	case PhaseCheckpointChallenge, PhaseCheckpointFraming, PhaseCheckpointIdea, PhaseCheckpointBrandName:
		return true
	}
	return false
}

// IsRunning reports whether a stage may be executing in this phase.
func (p Phase) IsRunning() bool {
	return p == PhaseCoreRunning || p == PhaseDeliverablesGenerating
}

type transitionError struct {
	from, to Phase
}

func (e *transitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.from, e.to)
}

func (e *transitionError) Unwrap() error {
	return ErrInvalidPhase
}
