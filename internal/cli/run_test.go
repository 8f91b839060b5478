package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: transfer
fixture: token
flow:
  - as: owner
    call: transfer
    target: CXIV
    args: [other, "100"]
    balances:
      - {of: owner, asset: CXIV, delta: "-100"}
      - {of: other, asset: CXIV, equals: "100"}
`

const failingScenario = `
name: wrong-delta
fixture: token
flow:
  - as: owner
    call: transfer
    target: CXIV
    args: [other, "100"]
    balances:
      - {of: other, asset: CXIV, delta: "99"}
`

func TestRun_Pass(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "transfer.yaml", passingScenario)

	out, err := execute(t, "run", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ transfer")
	assert.Contains(t, out, "Summary: 1 passed, 0 failed, 1 total on simfork")
}

func TestRun_Failure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "transfer.yaml", passingScenario)
	writeScenario(t, dir, "wrong.yaml", failingScenario)

	out, err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ transfer")
	assert.Contains(t, out, "✗ wrong-delta")
	assert.Contains(t, out, "Assertion failed: delta")
	assert.Contains(t, out, "Summary: 1 passed, 1 failed, 2 total")
}

func TestRun_JSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong.yaml", failingScenario)

	out, err := execute(t, "run", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioFailed, resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestRun_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "transfer.yaml", passingScenario)
	writeScenario(t, dir, "wrong.yaml", failingScenario)

	out, err := execute(t, "run", dir, "--filter", "trans*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")
	assert.NotContains(t, out, "wrong-delta")

	_, err = execute(t, "run", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_Golden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "transfer.yaml", passingScenario)
	golden := filepath.Join(dir, "golden", "transfer.golden")

	// Without a golden file only assertions are checked.
	_, err := execute(t, "run", dir)
	require.NoError(t, err)
	assert.NoFileExists(t, golden)

	out, err := execute(t, "run", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ transfer (golden updated)")
	assert.FileExists(t, golden)

	_, err = execute(t, "run", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte(`{"trace":[]}`), 0644))
	out, err = execute(t, "run", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace differs from")
}

func TestRun_CommandErrors(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: broken\n")

	tests := []struct {
		name string
		args []string
	}{
		{"missing path", []string{"run", filepath.Join(dir, "nope")}},
		{"invalid scenario", []string{"run", dir}},
		{"no args", []string{"run"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestRun_Testdata(t *testing.T) {
	out, err := execute(t, "run", filepath.Join("..", "harness", "testdata", "scenarios"),
		"--golden", filepath.Join("..", "harness", "testdata", "golden"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All scenarios passed")
}
