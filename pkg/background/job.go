package background

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrJobPanicked matches any *PanicError.
	ErrJobPanicked = errors.New("background job panicked")
	// ErrResultConsumed is returned when a handle's result was already taken.
	ErrResultConsumed = errors.New("background job result already consumed")
)

// Outcome is the result of a job run. A stopped outcome still carries
// whatever partial value the job had built when it noticed cancellation.
type Outcome[T any] struct {
	Value   T
	Stopped bool
}

// Completed wraps a value produced by a job that ran to the end.
func Completed[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Stopped wraps the partial value of a cancelled job.
func Stopped[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, Stopped: true}
}

// Job is a unit of work that cooperates with a ControlToken.
// Run returns an error only for failures that prevent producing any outcome.
type Job[T, S any] interface {
	Run(ctl *ControlToken[S]) (Outcome[T], error)
}

// JobFunc adapts a function to the Job interface.
type JobFunc[T, S any] func(ctl *ControlToken[S]) (Outcome[T], error)

// Run calls f(ctl).
func (f JobFunc[T, S]) Run(ctl *ControlToken[S]) (Outcome[T], error) {
	return f(ctl)
}

// PanicError carries a panic recovered from a job goroutine.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("background job panicked: %v", e.Value)
}

// Is makes errors.Is(err, ErrJobPanicked) hold for every PanicError.
func (e *PanicError) Is(target error) bool {
	return target == ErrJobPanicked
}
