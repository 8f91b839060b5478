package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalance(t *testing.T) {
	out, err := execute(t, "balance", "usdc-holder", "--asset", "USDC", "--asset", "ETH")
	require.NoError(t, err)

	assert.Contains(t, strings.ToLower(out), "usdc balance of usdc-holder (0xf584f8728b874a6a5c7a8d4d387c9aae9172d621): 1000000.0")
	assert.Contains(t, out, "ETH balance of usdc-holder")
}

func TestBalance_JSON(t *testing.T) {
	out, err := execute(t, "balance", "0x6E4E768267B0E1e033B085aB6be4775Dd42B4b1E", "--asset", "USDC", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []BalanceLine `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "receiver", resp.Data[0].Of)
	assert.Equal(t, "USDC", resp.Data[0].Asset)
	assert.Equal(t, "0", resp.Data[0].Raw)
}

func TestBalance_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown label", []string{"balance", "whale"}, `no identity "whale"`},
		{"unknown asset", []string{"balance", "receiver", "--asset", "WBTC"}, `no asset "WBTC"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
