package harness_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/forkbench/internal/fixtures"
	"github.com/roach88/forkbench/internal/harness"
	"github.com/roach88/forkbench/internal/simchain"
)

func newRunner(t *testing.T) *harness.Runner {
	t.Helper()
	return &harness.Runner{
		NewBackend: fixtures.SimBackend(simchain.WithLogger(slogt.New(t))),
		Recipes:    fixtures.Source(simfork(t)),
		Logger:     slogt.New(t),
	}
}

func parse(t *testing.T, src string) *harness.Scenario {
	t.Helper()
	sc, err := harness.ParseScenario([]byte(src))
	require.NoError(t, err)
	return sc
}

func TestRunner_Testdata(t *testing.T) {
	scenarios, err := harness.LoadScenarios([]string{"testdata/scenarios"})
	require.NoError(t, err)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			res, err := newRunner(t).Run(context.Background(), sc)
			require.NoError(t, err)
			assert.True(t, res.Pass, "failures: %v", res.Errors)
			assert.Len(t, res.Trace, len(sc.Setup)+len(sc.Flow))
		})
	}
}

func TestRunner_Golden(t *testing.T) {
	sc, err := harness.LoadScenario(filepath.Join("testdata", "scenarios", "token-transfer.yaml"))
	require.NoError(t, err)

	res, err := harness.RunWithGolden(t, newRunner(t), sc)
	require.NoError(t, err)
	assert.True(t, res.Pass)
}

func TestRunner_TracesAreReproducible(t *testing.T) {
	sc, err := harness.LoadScenario(filepath.Join("testdata", "scenarios", "amm-swaps.yaml"))
	require.NoError(t, err)

	first, err := newRunner(t).Run(context.Background(), sc)
	require.NoError(t, err)
	second, err := newRunner(t).Run(context.Background(), sc)
	require.NoError(t, err)

	a, err := harness.TraceBytes(first)
	require.NoError(t, err)
	b, err := harness.TraceBytes(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRunner_RecordsFailedExpectations(t *testing.T) {
	sc := parse(t, `
name: wrong-expectations
fixture: token
flow:
  - as: owner
    call: transfer
    target: CXIV
    args: [other, "100"]
    balances:
      - {of: other, asset: CXIV, delta: "99"}
  - as: owner
    call: transfer
    target: CXIV
    args: [other, "1"]
    expect:
      rejected: "ERC20: transfer amount exceeds balance"
  - call: balanceOf
    target: CXIV
    args: [other]
    returns: ["0"]
`)

	res, err := newRunner(t).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], "flow[0]")
	assert.Contains(t, res.Errors[0], "Assertion failed: delta")
	assert.Contains(t, res.Errors[1], "flow[1]")
	assert.Contains(t, res.Errors[1], "action finalized")
	assert.Contains(t, res.Errors[2], "flow[2]")

	// Every step still runs and is traced.
	require.Len(t, res.Trace, 3)
	assert.Equal(t, "finalized", res.Trace[1].Status)
}

func TestRunner_UnexpectedRejectionFails(t *testing.T) {
	sc := parse(t, `
name: surprise
fixture: token
flow:
  - as: other
    call: transfer
    target: CXIV
    args: [owner, "1"]
`)

	res, err := newRunner(t).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, res.Pass)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, "rejected", res.Trace[0].Status)
	assert.Equal(t, "ERC20: transfer amount exceeds balance", res.Trace[0].Reason)
}

func TestRunner_Aborts(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown fixture",
			yaml: `
name: x
fixture: casino
flow:
  - {call: totalSupply, target: CXIV}
`,
			wantErr: `unknown fixture "casino"`,
		},
		{
			name: "rejected setup",
			yaml: `
name: x
fixture: token
setup:
  - {as: other, call: transfer, target: CXIV, args: [owner, "1"]}
flow:
  - {call: totalSupply, target: CXIV}
`,
			wantErr: "setup[0]: transfer rejected",
		},
		{
			name: "unknown identity",
			yaml: `
name: x
fixture: token
flow:
  - {as: mallory, call: transfer, target: CXIV, args: [other, "1"]}
`,
			wantErr: "flow[0]",
		},
		{
			name: "impersonation outside a fork",
			yaml: `
name: x
fixture: token
flow:
  - {impersonate: other, call: transfer, target: CXIV, args: [owner, "1"]}
`,
			wantErr: "IMPERSONATION",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newRunner(t).Run(context.Background(), parse(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunner_AdvanceTime(t *testing.T) {
	sc := parse(t, `
name: clock
fixture: vault
flow:
  - advance_time: 90m
  - as: owner
    call: depositEther
    target: vault
    value: 2 ETH
    balances:
      - {of: owner, asset: ETH, delta: "-2 ETH"}
      - {of: vault, asset: ETH, equals: "2 ETH"}
`)

	res, err := newRunner(t).Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, res.Pass, "failures: %v", res.Errors)
	assert.Equal(t, harness.KindAdvance, res.Trace[0].Kind)
	assert.Equal(t, "1h30m0s", res.Trace[0].Value)
}

func TestCheckGolden(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "golden")
	sc := parse(t, `
name: approve
fixture: token
flow:
  - {as: owner, call: approve, target: CXIV, args: [other, "5"]}
`)
	res, err := newRunner(t).Run(context.Background(), sc)
	require.NoError(t, err)

	written, err := harness.CheckGolden(dir, sc.Name, res, false)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = harness.CheckGolden(dir, sc.Name, res, false)
	require.NoError(t, err)
	assert.False(t, written)

	res.Trace[0].Args = []any{"other", "6"}
	_, err = harness.CheckGolden(dir, sc.Name, res, false)
	var mismatch *harness.GoldenMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, filepath.Join(dir, "approve.golden"), mismatch.Path)

	written, err = harness.CheckGolden(dir, sc.Name, res, true)
	require.NoError(t, err)
	assert.True(t, written)
	_, err = harness.CheckGolden(dir, sc.Name, res, false)
	assert.NoError(t, err)
}
