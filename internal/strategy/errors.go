package strategy

import (
	"errors"
	"fmt"
)

var (
	// ErrAmbiguousStep means a previous attempt of a step started but its outcome was never recorded.
	ErrAmbiguousStep = errors.New("step outcome unknown from previous attempt")
	// ErrUserBusy means another pipeline run holds the user's lock.
	ErrUserBusy = errors.New("user has a pipeline run in progress")
)

// StepError reports a failed step.
type StepError struct {
	Step  string
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error {
	return e.Cause
}

// CompensationError reports a failure while recording or alerting on a failed run.
type CompensationError struct {
	Action string
	Cause  error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation %s: %v", e.Action, e.Cause)
}

func (e *CompensationError) Unwrap() error {
	return e.Cause
}
