package sequencer

import (
	"errors"
	"fmt"
)

// ErrUnsupportedCommand is returned by Plan for a command it has no motion for.
var ErrUnsupportedCommand = errors.New("sequencer: unsupported command")

// StepError reports the step at which a sequence was aborted.
type StepError struct {
	Sequence string
	Step     string
	Index    int
	Err      error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("sequencer: %s aborted at step %d (%s): %v", e.Sequence, e.Index, e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}
