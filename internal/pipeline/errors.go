package pipeline

import "errors"

var (
	// ErrCheckpointMismatch is returned when a resume event does not match
	// the checkpoint the run is paused at. State is left untouched.
	ErrCheckpointMismatch = errors.New("no matching checkpoint is pending")
	ErrInvalidSelection   = errors.New("selection out of range")
	ErrBusy               = errors.New("a pipeline operation is already running")
	ErrInvalidPhase       = errors.New("operation not allowed in the current phase")
	ErrEmptyInput         = errors.New("a challenge or a solution is required")
	ErrNothingToCancel    = errors.New("nothing to cancel")
)
