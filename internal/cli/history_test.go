package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedHistory records a pattern build and a preset build into a fresh
// database and returns its path.
func seedHistory(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "builds.db")

	_, _, err := execute(t, "text", NewGenerateCommand,
		"-o", filepath.Join(dir, "1hz.txt"), "-t", "910000", "-N", "1", "-b", "1", "-n", "1", "--db", dbPath)
	require.NoError(t, err)
	_, _, err = execute(t, "text", NewPresetCommand, "10 Hz", "--db", dbPath)
	require.NoError(t, err)
	return dbPath
}

func TestHistoryListsNewestFirst(t *testing.T) {
	dbPath := seedHistory(t)

	stdout, _, err := execute(t, "text", NewHistoryCommand, "--db", dbPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "SEQ"))
	assert.True(t, strings.HasPrefix(lines[1], "2 "))
	assert.Contains(t, lines[1], "preset:10 Hz")
	assert.True(t, strings.HasPrefix(lines[2], "1 "))
	assert.Contains(t, lines[2], "pattern")
}

func TestHistoryJSONLimit(t *testing.T) {
	dbPath := seedHistory(t)

	stdout, _, err := execute(t, "json", NewHistoryCommand, "--db", dbPath, "--limit", "1")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	builds, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, builds, 1)
	b := builds[0].(map[string]interface{})
	assert.Equal(t, float64(2), b["seq"])
	assert.Equal(t, float64(3), b["instruction_count"])
}

func TestHistoryShowProgram(t *testing.T) {
	dbPath := seedHistory(t)

	stdout, _, err := execute(t, "json", NewHistoryCommand, "--db", dbPath, "--limit", "1")
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	programID := resp.Data.([]interface{})[0].(map[string]interface{})["program_id"].(string)

	stdout, _, err = execute(t, "text", NewHistoryCommand, "--db", dbPath, "--show", programID[:12])
	require.NoError(t, err)
	assert.Equal(t, tenHzGolden, stdout)
}

func TestHistoryErrors(t *testing.T) {
	dbPath := seedHistory(t)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing_db", []string{"--db", filepath.Join(t.TempDir(), "absent.db")}, ErrCodeNotFound},
		{"unknown_program", []string{"--db", dbPath, "--show", "ffffffffffff"}, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := execute(t, "text", NewHistoryCommand, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, stdout, "Error ["+tt.code+"]")
		})
	}
}

func TestHistoryNoLimit(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "builds.db")
	_, _, err := execute(t, "text", NewPresetCommand, "1 Hz", "--db", dbPath)
	require.NoError(t, err)

	stdout, _, err := execute(t, "text", NewHistoryCommand, "--db", dbPath, "--limit", "0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "preset:1 Hz")
}
