package engine

import (
	"errors"
	"fmt"

	"github.com/kode4food/sequin/pkg/api"
)

// TerminateError is raised by a step group whose error policy is Terminate
// once its retry budget is exhausted. It fails the whole flow
type TerminateError struct {
	StepID api.StepID
	Err    error
}

var (
	ErrDefinition          = errors.New("definition error")
	ErrStepNotFound        = errors.New("step implementation not found")
	ErrConverterNotFound   = errors.New("converter not found")
	ErrOptionsNotFound     = errors.New("option provider not found")
	ErrInvalidOption       = errors.New("value is not a valid option")
	ErrInvalidControlValue = errors.New("invalid control value")
	ErrAttemptTimeout      = errors.New("attempt timed out")
	ErrFlowTimeout         = errors.New("flow timed out")
	ErrFlowFinally         = errors.New("flow ended in finally mode")
	ErrFlowEnded           = errors.New("flow ended")
	ErrCancelled           = errors.New("flow cancelled")
	ErrSubFlowFailed       = errors.New("sub-flow failed")
	ErrInstanceNotFound    = errors.New("instance not found")
	ErrInstanceExists      = errors.New("instance exists")
	ErrShutdownTimeout     = errors.New("shutdown timeout exceeded")
	ErrEngineStopped       = errors.New("engine stopped")
	ErrArchiveRequired     = errors.New("archive not configured")
	ErrCapabilityPanicked  = errors.New("capability panicked")
)

func (e *TerminateError) Error() string {
	return fmt.Sprintf("step %s terminated flow: %v", e.StepID, e.Err)
}

func (e *TerminateError) Unwrap() error {
	return e.Err
}

func definitionError(err error) error {
	if errors.Is(err, ErrDefinition) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDefinition, err)
}
