// Package outcome classifies pipeline step failures as fatal (the run aborts)
// or recoverable (the run continues with degraded content).
package outcome

import (
	"errors"
	"fmt"
)

// Step names a pipeline stage that can fail.
type Step string

const (
	StepFetchIssue   Step = "fetch_issue"
	StepListComments Step = "list_comments"
	StepMap          Step = "map"
	StepReduce       Step = "reduce"
	StepSinglePass   Step = "single_pass"
	StepDeliver      Step = "deliver"
)

// FatalError aborts a run.
type FatalError struct {
	Step Step
	Err  error
}

// Fatal wraps err as a fatal failure of step.
func Fatal(step Step, err error) *FatalError {
	return &FatalError{Step: step, Err: err}
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err (or anything it wraps) is a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// Degradation records a recoverable failure. Index is the chunk index for
// map steps and -1 otherwise.
type Degradation struct {
	Step  Step
	Index int
	Err   error
}

// Degraded builds a Degradation for a step without a chunk index.
func Degraded(step Step, err error) Degradation {
	return Degradation{Step: step, Index: -1, Err: err}
}

func (d Degradation) String() string {
	if d.Index >= 0 {
		return fmt.Sprintf("%s[%d]: %v", d.Step, d.Index, d.Err)
	}
	return fmt.Sprintf("%s: %v", d.Step, d.Err)
}
