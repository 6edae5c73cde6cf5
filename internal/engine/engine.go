package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// DefaultMaxSteps bounds a single run. One second of the densest pattern
// executes a few million instructions.
const DefaultMaxSteps = 1 << 26

// cancelCheckInterval is how many steps run between context checks.
const cancelCheckInterval = 1 << 12

// Event is one emitted event.
type Event struct {
	Tick    int64 `json:"tick"`
	Payload int64 `json:"payload"`
	PC      int   `json:"pc"`
}

// Trace is the observable result of a run.
type Trace struct {
	Events []Event `json:"events"`

	// EndTick is the clock value when the run stopped.
	EndTick int64 `json:"end_tick"`

	// Steps is the number of instructions executed.
	Steps int `json:"steps"`

	// Halted is true when the program reached a self-branch before the
	// horizon.
	Halted bool `json:"halted"`
}

// Machine executes a Program against a model of the sequencer: one clock,
// NumCounters pass counters, and a program counter.
//
// A conditional branch counts one pass on its counter. While fewer than
// threshold passes have been counted the branch is taken; on the pass that
// reaches threshold the counter resets and execution falls through, so the
// loop body runs threshold+1 times.
type Machine struct {
	prog     *ir.Program
	horizon  int64
	maxSteps int
	logger   *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithHorizon sets the tick at which the run stops. Events at or past the
// horizon are not recorded. Default: one second.
func WithHorizon(ticks int64) Option {
	return func(m *Machine) {
		m.horizon = ticks
	}
}

// WithMaxSteps sets the step quota. Default: DefaultMaxSteps.
func WithMaxSteps(maxSteps int) Option {
	return func(m *Machine) {
		m.maxSteps = maxSteps
	}
}

// WithLogger sets the logger for run diagnostics. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// New creates a Machine for prog.
func New(prog *ir.Program, opts ...Option) *Machine {
	m := &Machine{
		prog:     prog,
		horizon:  ir.TicksPerSecond,
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run executes the program from instruction 0 until the clock reaches the
// horizon or the program halts.
func (m *Machine) Run(ctx context.Context) (*Trace, error) {
	var (
		clock    = NewClock()
		quota    = NewQuotaEnforcer(m.maxSteps)
		counters [ir.NumCounters]int64
		trace    = &Trace{}
		pc       = 0
	)

	fail := func(code RuntimeErrorCode, err error, msg string) (*Trace, error) {
		trace.EndTick = clock.Now()
		trace.Steps = quota.Current()
		return trace, &RuntimeError{Code: code, Message: msg, PC: pc, Tick: clock.Now(), Err: err}
	}

	for clock.Now() < m.horizon {
		if pc < 0 || pc >= m.prog.Len() {
			return fail(ErrCodeProgramOverrun, nil, fmt.Sprintf("pc outside program of length %d", m.prog.Len()))
		}
		if err := quota.Check(); err != nil {
			return fail(ErrCodeQuotaExceeded, err, err.Error())
		}
		if quota.Current()%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fail(ErrCodeCancelled, err, "run cancelled")
			}
		}

		in := m.prog.At(pc)
		switch in.Kind {
		case ir.KindEmitEvent:
			trace.Events = append(trace.Events, Event{Tick: clock.Now(), Payload: in.Payload, PC: pc})
			pc++
		case ir.KindWait:
			clock.Wait(in.Marker, in.Occurrences)
			pc++
		case ir.KindBranchUnconditional:
			if in.Target == pc {
				trace.Halted = true
				m.logger.Debug("program halted", "pc", pc, "tick", clock.Now())
				trace.EndTick = clock.Now()
				trace.Steps = quota.Current()
				return trace, nil
			}
			pc = in.Target
		case ir.KindBranchConditional:
			if counters[in.Counter] < int64(in.Threshold) {
				counters[in.Counter]++
				pc = in.Target
			} else {
				counters[in.Counter] = 0
				pc++
			}
		}
	}

	trace.EndTick = clock.Now()
	trace.Steps = quota.Current()
	m.logger.Debug("run reached horizon", "tick", trace.EndTick, "steps", trace.Steps, "events", len(trace.Events))
	return trace, nil
}

// Run is a convenience wrapper: New(prog, opts...).Run(ctx).
func Run(ctx context.Context, prog *ir.Program, opts ...Option) (*Trace, error) {
	return New(prog, opts...).Run(ctx)
}

// Train is one group of consecutive events.
type Train struct {
	Start   int64
	Bunches []int64
}

// Trains splits the trace into consecutive groups of bunches events. The
// event count must be a multiple of bunches.
func (t *Trace) Trains(bunches int) ([]Train, error) {
	if bunches < 1 {
		return nil, fmt.Errorf("bunches per train must be at least 1, got %d", bunches)
	}
	if len(t.Events)%bunches != 0 {
		return nil, fmt.Errorf("%d events do not split into trains of %d", len(t.Events), bunches)
	}
	trains := make([]Train, 0, len(t.Events)/bunches)
	for i := 0; i < len(t.Events); i += bunches {
		tr := Train{Start: t.Events[i].Tick, Bunches: make([]int64, bunches)}
		for j := 0; j < bunches; j++ {
			tr.Bunches[j] = t.Events[i+j].Tick
		}
		trains = append(trains, tr)
	}
	return trains, nil
}
