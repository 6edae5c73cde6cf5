package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/thatweaver/lcls2-timing-patterns/internal/compiler"
	"github.com/thatweaver/lcls2-timing-patterns/internal/engine"
	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
	"github.com/thatweaver/lcls2-timing-patterns/internal/preset"
)

// Harness runs scenarios. The zero value is not usable; use New.
type Harness struct {
	logger   *slog.Logger
	maxSteps int
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger passed to the simulator.
// Default: logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithMaxSteps sets the simulator step quota for each scenario.
func WithMaxSteps(n int) Option {
	return func(h *Harness) {
		h.maxSteps = n
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxSteps: engine.DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a test scenario with default options.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run builds the scenario's program, simulates it and evaluates the
// assertions.
//
// A build error is part of the result, not a Go error: scenarios may
// assert on it with error_code. The returned error is reserved for
// failures of the harness itself, such as a cancelled context or a
// simulator quota.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult()

	prog, err := build(scenario)
	if err != nil {
		result.ErrorCode = errorCode(err)
		if !scenario.expectsError() {
			result.AddError(fmt.Sprintf("build failed: %v", err))
			return result, nil
		}
		for _, msg := range evaluate(result, scenario) {
			result.AddError(msg)
		}
		return result, nil
	}
	result.Program = prog

	opts := []engine.Option{
		engine.WithLogger(h.logger),
		engine.WithMaxSteps(h.maxSteps),
	}
	if scenario.Horizon > 0 {
		opts = append(opts, engine.WithHorizon(scenario.Horizon))
	}
	trace, err := engine.Run(ctx, prog, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: simulate: %w", scenario.Name, err)
	}
	result.Trace = trace

	for _, msg := range evaluate(result, scenario) {
		result.AddError(msg)
	}
	return result, nil
}

func build(s *Scenario) (*ir.Program, error) {
	if s.Preset != "" {
		return preset.Lookup(s.Preset)
	}
	return compiler.CompilePattern(*s.Pattern)
}

// errorCode extracts the code of a compile or preset error.
func errorCode(err error) string {
	if code := compiler.Code(err); code != "" {
		return code
	}
	if errors.Is(err, preset.ErrUnknownPreset) {
		return preset.ErrCodeUnknownPreset
	}
	return ""
}

func evaluate(result *Result, s *Scenario) []string {
	actx := &AssertionContext{BunchesPerTrain: s.bunchesPerTrain()}
	return evaluateWith(result, s.Assertions, actx)
}
