package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStressCommand_SmallRun(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStressCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--goroutines", "4", "--iterations", "25"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "✓ Stress: 4 goroutines x 25 iterations")
	// 4 writers * 25 iterations * (+3 - 1)
	assert.Contains(t, output, "Final value: 200 (expected 200)")
}

func TestStressCommand_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewStressCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--goroutines", "2", "--iterations", "10"})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	require.NotNil(t, resp.Stress)
	assert.True(t, resp.Stress.Pass)
	assert.EqualValues(t, 40, resp.Stress.Final)
	assert.False(t, resp.Stress.Poisoned)
	assert.EqualValues(t, 20, resp.Stress.Reads)
}

func TestStressCommand_RejectsBadFlags(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewStressCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--goroutines", "0"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
