package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for integration runs.
var (
	// ErrConfiguration indicates an unusable run setup: unknown method,
	// implicit method without a Jacobian, bad tolerances or buffers.
	// Never retried.
	ErrConfiguration = errors.New("dynamo: configuration error")

	// ErrStepCountExceeded indicates a run or segment needed more accepted
	// steps than the configured cap.
	ErrStepCountExceeded = errors.New("dynamo: maximum number of steps reached")

	// ErrSolverDivergence indicates the stepper could not keep the state
	// finite or the step size above underflow.
	ErrSolverDivergence = errors.New("dynamo: solver diverged")

	// ErrPartialProgressUnavailable indicates an autorestart was requested
	// but no known-good state past the start exists.
	ErrPartialProgressUnavailable = errors.New("dynamo: autorestart impossible, no partial progress")
)

// Recoverable reports whether err may be retried by an autorestart.
func Recoverable(err error) bool {
	return errors.Is(err, ErrStepCountExceeded) || errors.Is(err, ErrSolverDivergence)
}

// Configf builds an ErrConfiguration with a formatted reason.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// IntegrationError wraps an error with the point where integration stopped.
type IntegrationError struct {
	X       float64
	Steps   int
	Attempt int
	Wrapped error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("x=%g after %d steps (attempt %d): %v", e.X, e.Steps, e.Attempt, e.Wrapped)
}

func (e *IntegrationError) Unwrap() error {
	return e.Wrapped
}

// TaskError reports the failure of one task in a parallel run.
type TaskError struct {
	Index int
	ID    string
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d (%s): %v", e.Index, e.ID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
