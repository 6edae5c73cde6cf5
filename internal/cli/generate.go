package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/thatweaver/lcls2-timing-patterns/internal/compiler"
	"github.com/thatweaver/lcls2-timing-patterns/internal/config"
	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
	"github.com/thatweaver/lcls2-timing-patterns/internal/store"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Output   string
	Params   string // parameter file, flags override its values
	Database string // optional build history database

	StartBucket     int64
	TrainSpacing    int64
	TrainsPerSecond int64
	BunchSpacing    int64
	BunchesPerTrain int64
	Charge          int64
	Repeat          bool
}

// GenerateResult is the JSON payload of a successful generate.
type GenerateResult struct {
	Output       string           `json:"output"`
	Params       ir.PatternParams `json:"params"`
	Trains       int64            `json:"trains"`
	Instructions int              `json:"instructions"`
	Loops        int              `json:"loops"`
	ProgramID    string           `json:"program_id"`
	BuildID      string           `json:"build_id,omitempty"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Compile a train pattern into a sequencer program",
		Long: `Compile a pattern of bunch trains into a sequencer program.

The pattern starts start_bucket ticks into the second and produces
trains_per_second trains, train_spacing ticks apart, each holding
bunches_per_train bunches bunch_spacing ticks apart. With --repeat the
program restarts every second; otherwise it halts after the last train.

Parameters come from flags, from a YAML, CUE or JSON file given with
--params, or both; flags override file values. The program is written as a
text listing, or as JSON when the output path ends in .json.

Examples:
  traingen generate -o 1hz.txt -t 910000 -b 1 -n 1
  traingen generate -o burst.json -t 3000 -N 300 -b 1 -n 1 -q 12
  traingen generate -o out.txt --params pattern.cue --repeat --db builds.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Output, "output", "o", "", "file output path (required)")
	f.Int64VarP(&opts.TrainSpacing, "train_spacing", "t", 0, "ticks between the start of each train")
	f.Int64VarP(&opts.TrainsPerSecond, "trains_per_second", "N", 0, "trains per second (0 derives 910000/train_spacing)")
	f.Int64VarP(&opts.BunchSpacing, "bunch_spacing", "b", 0, "ticks between bunches within a train")
	f.Int64VarP(&opts.BunchesPerTrain, "bunches_per_train", "n", 0, "bunches in each train")
	f.Int64VarP(&opts.StartBucket, "start_bucket", "s", 0, "tick of the first train")
	f.Int64VarP(&opts.Charge, "charge", "q", 0, "bunch charge, pC (event payload)")
	f.BoolVarP(&opts.Repeat, "repeat", "r", false, "repeat the pattern every second")
	f.StringVar(&opts.Params, "params", "", "pattern parameter file (.yaml, .yml, .cue, .json)")
	f.StringVar(&opts.Database, "db", "", "record the build in this SQLite database")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runGenerate(opts *GenerateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	params, err := resolveParams(opts, cmd)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	logger.Info("pattern parameters",
		"start_bucket", params.StartBucket,
		"train_spacing", params.TrainSpacing,
		"trains_per_second", params.TrainsPerSecond,
		"bunch_spacing", params.BunchSpacing,
		"bunches_per_train", params.BunchesPerTrain,
		"charge", params.Charge,
		"repeat", params.Repeat,
	)
	if formatter.Format != "json" {
		echoPattern(formatter.Writer, params)
	}

	prog, err := compiler.CompilePattern(params)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	logger.Debug("program compiled", "instructions", prog.Len(), "loops", len(prog.Loops()))

	if err := writeProgram(opts.Output, prog); err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	programID, err := ir.ProgramID(prog)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	result := GenerateResult{
		Output:       opts.Output,
		Params:       params,
		Trains:       params.ResolvedTrains(),
		Instructions: prog.Len(),
		Loops:        len(prog.Loops()),
		ProgramID:    programID,
	}

	if opts.Database != "" {
		build, err := recordBuild(commandContext(cmd), opts.Database, logger,
			store.BuildRequest{Source: store.SourcePattern, Params: &params, OutputPath: opts.Output}, prog)
		if err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		result.BuildID = build.ID
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s Wrote %d instructions to %s\n", passMark(), result.Instructions, result.Output)
	fmt.Fprintf(formatter.Writer, "  program %s\n", dim(shortID(programID)))
	if result.BuildID != "" {
		fmt.Fprintf(formatter.Writer, "  build   %s\n", dim(result.BuildID))
	}
	return nil
}

// resolveParams merges the parameter file, if any, with the flags the
// user set.
func resolveParams(opts *GenerateOptions, cmd *cobra.Command) (ir.PatternParams, error) {
	params := ir.PatternParams{}
	if opts.Params != "" {
		p, err := config.Load(opts.Params)
		if err != nil {
			return ir.PatternParams{}, err
		}
		params = p
	} else {
		for _, name := range []string{"train_spacing", "bunch_spacing", "bunches_per_train"} {
			if !cmd.Flags().Changed(name) {
				return ir.PatternParams{}, withCode(ErrCodeUsage,
					fmt.Errorf("flag --%s is required without --params", name))
			}
		}
	}

	flags := cmd.Flags()
	if flags.Changed("start_bucket") {
		params.StartBucket = opts.StartBucket
	}
	if flags.Changed("train_spacing") {
		params.TrainSpacing = opts.TrainSpacing
	}
	if flags.Changed("trains_per_second") {
		params.TrainsPerSecond = opts.TrainsPerSecond
	}
	if flags.Changed("bunch_spacing") {
		params.BunchSpacing = opts.BunchSpacing
	}
	if flags.Changed("bunches_per_train") {
		params.BunchesPerTrain = opts.BunchesPerTrain
	}
	if flags.Changed("charge") {
		params.Charge = opts.Charge
	}
	if flags.Changed("repeat") {
		params.Repeat = opts.Repeat
	}
	return params, nil
}

// echoPattern prints the human summary of the pattern before compiling.
func echoPattern(w io.Writer, p ir.PatternParams) {
	if n := p.ResolvedTrains(); n > 1 {
		fmt.Fprintf(w, "Generating %s trains with %d train spacing\n", emphasis(n), p.TrainSpacing)
	}
	if p.BunchesPerTrain > 1 {
		fmt.Fprintf(w, "\tcontaining %s bunches with %d spacing\n", emphasis(p.BunchesPerTrain), p.BunchSpacing)
	}
}

// recordBuild opens the history database at path and records one build.
func recordBuild(ctx context.Context, path string, logger *slog.Logger,
	req store.BuildRequest, prog *ir.Program) (*store.Build, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, withCode(ErrCodeStore, err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	build, err := st.RecordBuild(ctx, req, prog)
	if err != nil {
		return nil, withCode(ErrCodeStore, err)
	}
	logger.Debug("build recorded", "db", path, "build", build.ID, "seq", build.Seq)
	return build, nil
}

// shortID abbreviates a content id for display.
func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
