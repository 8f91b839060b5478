package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworks(t *testing.T) {
	out, err := execute(t, "networks")
	require.NoError(t, err)

	assert.Contains(t, out, "* simfork")
	assert.Contains(t, out, "simulated")
	assert.Contains(t, out, "http://127.0.0.1:8545 (anvil)")
	assert.Contains(t, out, "hardhat")
}

func TestNetworks_JSON(t *testing.T) {
	out, err := execute(t, "networks", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   []NetworkInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 3)

	byName := map[string]NetworkInfo{}
	for _, n := range resp.Data {
		byName[n.Name] = n
	}
	assert.True(t, byName["simfork"].Default)
	assert.Equal(t, "sim", byName["simfork"].Backend)
	assert.Empty(t, byName["simfork"].URL)
	assert.Equal(t, "rpc", byName["anvil"].Backend)
	assert.Equal(t, "anvil", byName["anvil"].Flavor)
	assert.Equal(t, []string{"DAI", "USDC", "WETH"}, byName["hardhat"].Assets)
	assert.Equal(t, "amm-fork", byName["hardhat"].Recipe)
}
