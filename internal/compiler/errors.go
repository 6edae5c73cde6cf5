package compiler

import (
	"errors"
	"fmt"
)

// Compile error codes (E200-E299)
const (
	ErrInvalidWaitInterval        = "E201" // requested wait <= 0
	ErrPatternExceedsSecondBudget = "E202" // pattern does not fit in one second
	ErrInvalidParameter           = "E203" // parameter outside its domain
	ErrImmediateOutOfRange        = "E204" // immediate wider than its hardware field
	ErrCounterExhausted           = "E205" // loop needs more counters than allocated
	ErrCounterConflict            = "E206" // nested loops share a counter
	ErrBranchTargetOutOfRange     = "E207" // branch target outside the program
)

// CompileError reports why a pattern could not be compiled. No program is
// returned alongside a CompileError.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Err     error // underlying cause, optional
}

func (e *CompileError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is, or wraps, a CompileError with code.
func HasCode(err error, code string) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// Code extracts the compile error code from err, or "" if err is not a
// CompileError.
func Code(err error) string {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func invalidWait(field string, ticks int64) *CompileError {
	return &CompileError{
		Code:    ErrInvalidWaitInterval,
		Field:   field,
		Message: fmt.Sprintf("wait of %d ticks must be positive", ticks),
	}
}
