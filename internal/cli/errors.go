package cli

import (
	"errors"

	"github.com/thatweaver/lcls2-timing-patterns/internal/compiler"
	"github.com/thatweaver/lcls2-timing-patterns/internal/config"
	"github.com/thatweaver/lcls2-timing-patterns/internal/engine"
	"github.com/thatweaver/lcls2-timing-patterns/internal/preset"
)

// Error code constants for failures outside the compiler, presets and
// parameter files, which carry their own codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeBadProgram  = "E008" // Program file does not parse
	ErrCodeStore       = "E009" // Build history database error
	ErrCodeUsage       = "E010" // Missing or conflicting flags
)

// codedError attaches a CLI error code to an underlying error.
type codedError struct {
	code string
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }

func (e *codedError) Unwrap() error { return e.err }

func withCode(code string, err error) error {
	return &codedError{code: code, err: err}
}

// errorCode extracts the most specific error code carried by err.
func errorCode(err error) string {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	if code := compiler.Code(err); code != "" {
		return code
	}
	if errors.Is(err, preset.ErrUnknownPreset) {
		return preset.ErrCodeUnknownPreset
	}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	var re *engine.RuntimeError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	return ErrCodeGeneric
}
