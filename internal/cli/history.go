package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thatweaver/lcls2-timing-patterns/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Show     string // program id (or unique prefix) to print
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded builds",
		Long: `List the builds recorded by generate --db and preset --db, newest first,
or print a stored program by id.

Examples:
  traingen history --db builds.db
  traingen history --db builds.db --limit 5 --format json
  traingen history --db builds.db --show 3f2a9c01`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of builds to list (0 for all)")
	cmd.Flags().StringVar(&opts.Show, "show", "", "print the stored program with this id or id prefix")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Opening creates the file; history never should.
	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.Fail(ExitCommandError, withCode(ErrCodeNotFound, fmt.Errorf("database not found: %s", opts.Database)))
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, withCode(ErrCodeStore, err))
	}
	defer st.Close()

	ctx := commandContext(cmd)
	if opts.Show != "" {
		prog, err := st.ReadProgram(ctx, opts.Show)
		if err != nil {
			code := ErrCodeStore
			if errors.Is(err, store.ErrNotFound) {
				code = ErrCodeNotFound
			}
			return formatter.Fail(ExitCommandError, withCode(code, err))
		}
		if formatter.Format == "json" {
			return formatter.Success(prog)
		}
		return prog.WriteListing(formatter.Writer)
	}

	builds, err := st.ListBuilds(ctx, opts.Limit)
	if err != nil {
		return formatter.Fail(ExitCommandError, withCode(ErrCodeStore, err))
	}
	if formatter.Format == "json" {
		return formatter.Success(builds)
	}
	if len(builds) == 0 {
		fmt.Fprintln(formatter.Writer, "No builds recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tBUILD\tPROGRAM\tINSTR\tSOURCE\tOUTPUT")
	for _, b := range builds {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n",
			b.Seq, b.ID, shortID(b.ProgramID), b.InstructionCount, b.Source, b.OutputPath)
	}
	return tw.Flush()
}
