package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
	"github.com/thatweaver/lcls2-timing-patterns/internal/preset"
	"github.com/thatweaver/lcls2-timing-patterns/internal/store"
)

// PresetOptions holds flags for the preset command.
type PresetOptions struct {
	*RootOptions
	Output   string
	Database string
	List     bool
}

// PresetResult is the JSON payload of the preset command.
type PresetResult struct {
	Name      string      `json:"name"`
	Output    string      `json:"output,omitempty"`
	Program   *ir.Program `json:"program"`
	ProgramID string      `json:"program_id"`
	BuildID   string      `json:"build_id,omitempty"`
}

// NewPresetCommand creates the preset command.
func NewPresetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PresetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "preset [name]",
		Short: "Print or write a canonical fixed-rate program",
		Long: `Look up one of the canonical fixed-rate programs by name.

Each preset emits one event per period of a fixed-rate marker and repeats
forever; "0 Hz" emits nothing. Names match exactly, including the space
before the unit.

Examples:
  traingen preset --list
  traingen preset "10 Hz"
  traingen preset "1 kHz" -o 1khz.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runPreset(opts, name, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the program to this path")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the build in this SQLite database")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list preset names")

	return cmd
}

func runPreset(opts *PresetOptions, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.List {
		if formatter.Format == "json" {
			return formatter.Success(preset.Names())
		}
		for _, n := range preset.Names() {
			fmt.Fprintln(formatter.Writer, n)
		}
		return nil
	}
	if name == "" {
		return formatter.Fail(ExitCommandError,
			withCode(ErrCodeUsage, fmt.Errorf("preset name required (one of %s)", strings.Join(preset.Names(), ", "))))
	}

	prog, err := preset.Lookup(name)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	programID, err := ir.ProgramID(prog)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	result := PresetResult{Name: name, Output: opts.Output, Program: prog, ProgramID: programID}

	if opts.Output != "" {
		if err := writeProgram(opts.Output, prog); err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
	}
	if opts.Database != "" {
		build, err := recordBuild(commandContext(cmd), opts.Database, logger,
			store.BuildRequest{Source: store.PresetSource(name), OutputPath: opts.Output}, prog)
		if err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		result.BuildID = build.ID
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "%s Wrote preset %s (%d instructions) to %s\n", passMark(), emphasis(name), prog.Len(), opts.Output)
		return nil
	}
	return prog.WriteListing(formatter.Writer)
}
