package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatweaver/lcls2-timing-patterns/internal/ir"
	"github.com/thatweaver/lcls2-timing-patterns/internal/store"
)

const oneHzListing = `0000  EmitEvent(0)
0001  Wait(marker=0, occ=4095)
0002  BranchIf(target=1, counter=3, threshold=221)
0003  Wait(marker=0, occ=910)
0004  Branch(target=4)
`

// execute runs a subcommand built by newCmd and returns its stdout and
// stderr.
func execute(t *testing.T, format string, newCmd func(*RootOptions) *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := newCmd(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	if args == nil {
		args = []string{} // nil would make cobra read os.Args
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), errBuf.String(), err
}

func TestGenerateWritesListing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "1hz.txt")

	stdout, stderr, err := execute(t, "text", NewGenerateCommand,
		"-o", out, "-t", "910000", "-N", "1", "-b", "1", "-n", "1")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, oneHzListing, string(data))

	assert.Contains(t, stdout, "✓ Wrote 5 instructions to "+out)
	assert.NotContains(t, stdout, "Generating")
	assert.Contains(t, stderr, "pattern parameters")
	assert.Contains(t, stderr, "train_spacing=910000")
}

func TestGenerateEchoesPattern(t *testing.T) {
	out := filepath.Join(t.TempDir(), "burst.txt")

	stdout, _, err := execute(t, "text", NewGenerateCommand,
		"-o", out, "-t", "9100", "-N", "100", "-b", "7", "-n", "5", "-s", "50", "-r")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Generating 100 trains with 9100 train spacing\n")
	assert.Contains(t, stdout, "\tcontaining 5 bunches with 7 spacing\n")
}

func TestGenerateJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "300.json")

	stdout, _, err := execute(t, "json", NewGenerateCommand,
		"-o", out, "-t", "3000", "-N", "300", "-b", "1", "-n", "1", "-q", "12")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(7), data["instructions"])
	assert.Equal(t, float64(2), data["loops"])
	assert.Equal(t, float64(300), data["trains"])
	assert.NotEmpty(t, data["program_id"])
	assert.NotContains(t, data, "build_id")

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	var prog ir.Program
	require.NoError(t, json.Unmarshal(raw, &prog))
	require.Equal(t, 7, prog.Len())
	assert.Equal(t, ir.EmitEvent(12), prog.At(0))
}

func TestGenerateDerivesTrainCount(t *testing.T) {
	out := filepath.Join(t.TempDir(), "100hz.txt")

	stdout, _, err := execute(t, "text", NewGenerateCommand,
		"-o", out, "-t", "9100", "-b", "1", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Generating 100 trains")
}

func TestGenerateMissingFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no_train_spacing", []string{"-b", "1", "-n", "1"}},
		{"no_bunch_spacing", []string{"-t", "9100", "-n", "1"}},
		{"no_bunches", []string{"-t", "9100", "-b", "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out.txt")
			args := append([]string{"-o", out}, tt.args...)

			stdout, _, err := execute(t, "text", NewGenerateCommand, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, stdout, "Error [E010]")
			assert.NoFileExists(t, out)
		})
	}
}

func TestGenerateRequiresOutput(t *testing.T) {
	_, _, err := execute(t, "text", NewGenerateCommand, "-t", "9100", "-b", "1", "-n", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "output" not set`)
}

func TestGenerateCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"over_budget", []string{"-t", "910000", "-N", "2", "-b", "1", "-n", "1"}, "E202"},
		{"zero_bunches", []string{"-t", "9100", "-b", "1", "-n", "0"}, "E203"},
		{"negative_start", []string{"-t", "9100", "-b", "1", "-n", "1", "--start_bucket=-5"}, "E203"},
		{"start_too_late", []string{"-t", "910000", "-b", "1", "-n", "1", "--start_bucket=16773121"}, "E203"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out.json")
			args := append([]string{"-o", out}, tt.args...)

			stdout, _, err := execute(t, "json", NewGenerateCommand, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NoFileExists(t, out)
		})
	}
}

func TestGenerateFromParamsFile(t *testing.T) {
	dir := t.TempDir()
	params := filepath.Join(dir, "pattern.yaml")
	require.NoError(t, os.WriteFile(params, []byte(`train_spacing: 3000
trains_per_second: 300
bunch_spacing: 1
bunches_per_train: 1
charge: 12
`), 0644))
	out := filepath.Join(dir, "out.txt")

	// -q overrides the file's charge.
	_, _, err := execute(t, "text", NewGenerateCommand, "-o", out, "--params", params, "-q", "5")
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	prog, err := ir.ParseListing(f)
	require.NoError(t, err)
	require.Equal(t, 7, prog.Len())
	assert.Equal(t, ir.EmitEvent(5), prog.At(0))
	assert.Equal(t, ir.EmitEvent(5), prog.At(3))
}

func TestGenerateParamsFileErrors(t *testing.T) {
	dir := t.TempDir()
	unknown := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("train_spacing: 3000\nbogus: 1\n"), 0644))

	tests := []struct {
		name   string
		params string
		code   string
	}{
		{"missing", filepath.Join(dir, "absent.yaml"), "E101"},
		{"unsupported", filepath.Join(dir, "pattern.toml"), "E102"},
		{"unknown_field", unknown, "E103"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "unsupported" {
				require.NoError(t, os.WriteFile(tt.params, []byte("x = 1\n"), 0644))
			}
			stdout, _, err := execute(t, "text", NewGenerateCommand,
				"-o", filepath.Join(dir, "out.txt"), "--params", tt.params)
			require.Error(t, err)
			assert.Contains(t, stdout, "Error ["+tt.code+"]")
		})
	}
}

func TestGenerateRecordsBuild(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "builds.db")
	out := filepath.Join(dir, "1hz.txt")

	stdout, _, err := execute(t, "json", NewGenerateCommand,
		"-o", out, "-t", "910000", "-N", "1", "-b", "1", "-n", "1", "--db", dbPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	data := resp.Data.(map[string]interface{})
	buildID, _ := data["build_id"].(string)
	require.NotEmpty(t, buildID)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	builds, err := st.ListBuilds(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, buildID, builds[0].ID)
	assert.Equal(t, store.SourcePattern, builds[0].Source)
	assert.Equal(t, out, builds[0].OutputPath)
	assert.Equal(t, data["program_id"], builds[0].ProgramID)
	assert.Equal(t, 5, builds[0].InstructionCount)
}
