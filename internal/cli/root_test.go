package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and the
// command's error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	t.Log(errOut.String())
	return out.String(), err
}

// writeScenario writes a scenario file under dir and returns its path.
func writeScenario(t *testing.T, dir, file, content string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "forkbench", cmd.Use)
	assert.Contains(t, cmd.Long, "balance changes")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "validate", "script", "balance", "networks"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	for _, name := range []string{"config", "network"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "", f.DefValue)
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"update", "filter", "golden"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), name)
	}
}

func TestBalanceCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	balanceCmd, _, err := cmd.Find([]string{"balance"})
	require.NoError(t, err)

	assetFlag := balanceCmd.Flags().Lookup("asset")
	require.NotNil(t, assetFlag)
	assert.Equal(t, "[ETH]", assetFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "networks", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestUnknownNetwork(t *testing.T) {
	_, err := execute(t, "balance", "receiver", "--network", "mainnet")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown network "mainnet"`)
}

func TestUserConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
default_network: "devnet"
networks: devnet: #Mainnet & {backend: "sim"}
`), 0644))

	out, err := execute(t, "networks", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "* devnet")
	assert.Contains(t, out, "simfork")
}
