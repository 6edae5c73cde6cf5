package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while executing a program.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string

	// PC is the instruction index being executed, or -1.
	PC int

	// Tick is the clock value when the error occurred.
	Tick int64

	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeQuotaExceeded indicates the run exceeded the step quota.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeProgramOverrun indicates execution ran past the last instruction.
	ErrCodeProgramOverrun RuntimeErrorCode = "PROGRAM_OVERRUN"

	// ErrCodeCancelled indicates the context was cancelled mid-run.
	ErrCodeCancelled RuntimeErrorCode = "CANCELLED"
)

func (e *RuntimeError) Error() string {
	if e.PC >= 0 {
		return fmt.Sprintf("%s: %s (pc=%d, tick=%d)", e.Code, e.Message, e.PC, e.Tick)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeQuotaExceeded {
		return true
	}
	return IsStepsExceededError(err)
}
