package actuator

import (
	"errors"
	"fmt"
)

// ErrDriverFault is the sentinel matched by every FaultError.
var ErrDriverFault = errors.New("actuator: driver fault")

// FaultError reports a failed output operation at the driver boundary.
type FaultError struct {
	// Op names the board operation, e.g. "SetServo".
	Op string

	// Err is the underlying driver or transport error.
	Err error
}

// Error implements the error interface.
func (e *FaultError) Error() string {
	return fmt.Sprintf("actuator: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *FaultError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDriverFault) true for any FaultError.
func (e *FaultError) Is(target error) bool {
	return target == ErrDriverFault
}

// Fault wraps err as a FaultError for op. Returns nil if err is nil.
func Fault(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FaultError
	if errors.As(err, &fe) {
		return err
	}
	return &FaultError{Op: op, Err: err}
}
