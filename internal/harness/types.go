package harness

import (
	"github.com/thatweaver/lcls2-timing-patterns/internal/engine"
	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Program is the built program, nil when building failed.
	Program *ir.Program `json:"program,omitempty"`

	// Trace is the simulated run, nil when building failed.
	Trace *engine.Trace `json:"trace,omitempty"`

	// ErrorCode is the code of the build error, if any.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the simulated events, or nil when nothing ran.
func (r *Result) Events() []engine.Event {
	if r.Trace == nil {
		return nil
	}
	return r.Trace.Events
}
