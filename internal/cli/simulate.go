package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thatweaver/lcls2-timing-patterns/internal/engine"
	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Trace    bool  // print every event
	Horizon  int64 // ticks to run
	Bunches  int   // events per train when summarising
	MaxSteps int
}

// SimulateResult is the JSON payload of the simulate command.
type SimulateResult struct {
	Program    string         `json:"program"`
	Events     int            `json:"events"`
	Trains     int            `json:"trains,omitempty"`
	FirstTick  *int64         `json:"first_tick,omitempty"`
	LastTick   *int64         `json:"last_tick,omitempty"`
	EndTick    int64          `json:"end_tick"`
	Steps      int            `json:"steps"`
	Halted     bool           `json:"halted"`
	EventTrace []engine.Event `json:"trace,omitempty"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <program-file>",
		Short: "Run a program on the sequencer model",
		Long: `Run a program file (text listing, or JSON for .json paths) on a model
of the sequencer and report the events it emits.

The run starts at tick 0 and stops at the horizon (default one second,
910000 ticks) or when the program halts on a jump to itself.

Examples:
  traingen simulate 1hz.txt
  traingen simulate burst.json --trace --bunches 5
  traingen simulate preset.txt --horizon 1820000 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print every event")
	cmd.Flags().Int64Var(&opts.Horizon, "horizon", ir.TicksPerSecond, "ticks to simulate")
	cmd.Flags().IntVar(&opts.Bunches, "bunches", 1, "events per train when counting trains")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", engine.DefaultMaxSteps, "instruction quota")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	prog, err := readProgram(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	formatter.VerboseLog("Loaded %d instructions from %s", prog.Len(), path)

	trace, err := engine.Run(commandContext(cmd), prog,
		engine.WithHorizon(opts.Horizon),
		engine.WithMaxSteps(opts.MaxSteps),
		engine.WithLogger(logger),
	)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	result := SimulateResult{
		Program: path,
		Events:  len(trace.Events),
		EndTick: trace.EndTick,
		Steps:   trace.Steps,
		Halted:  trace.Halted,
	}
	if n := len(trace.Events); n > 0 {
		first, last := trace.Events[0].Tick, trace.Events[n-1].Tick
		result.FirstTick, result.LastTick = &first, &last
	}
	if opts.Bunches > 0 {
		if trains, err := trace.Trains(opts.Bunches); err == nil {
			result.Trains = len(trains)
		} else {
			logger.Warn("events do not group into trains", "bunches", opts.Bunches, "error", err)
		}
	}
	if opts.Trace {
		result.EventTrace = trace.Events
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputSimulateText(formatter, result)
}

func outputSimulateText(f *OutputFormatter, r SimulateResult) error {
	w := f.Writer
	if r.EventTrace != nil {
		tick := color.New(color.FgCyan).SprintFunc()
		for i, ev := range r.EventTrace {
			fmt.Fprintf(w, "%6d  tick %s  payload %d  pc %d\n", i, tick(ev.Tick), ev.Payload, ev.PC)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%s %s: %d events", passMark(), r.Program, r.Events)
	if r.Trains > 0 {
		fmt.Fprintf(w, " in %d trains", r.Trains)
	}
	fmt.Fprintln(w)
	if r.FirstTick != nil {
		fmt.Fprintf(w, "  first event at tick %d, last at tick %d\n", *r.FirstTick, *r.LastTick)
	}
	state := "reached horizon"
	if r.Halted {
		state = "halted"
	}
	fmt.Fprintf(w, "  %s at tick %d after %d steps\n", state, r.EndTick, r.Steps)
	return nil
}
