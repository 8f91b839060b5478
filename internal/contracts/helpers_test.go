package contracts

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
)

// testChain wraps a simulated chain with terse helpers for contract tests.
type testChain struct {
	t       *testing.T
	ctx     context.Context
	chain   *simchain.Chain
	signers []common.Address
}

func newTestChain(t *testing.T) *testChain {
	t.Helper()
	c, err := simchain.New(context.Background(), simchain.WithLogger(slogt.New(t)))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return &testChain{t: t, ctx: context.Background(), chain: c, signers: c.Signers()}
}

func (tc *testChain) deploy(from int, c simchain.Contract, args ...any) common.Address {
	tc.t.Helper()
	addr, err := tc.chain.Deploy(tc.ctx, tc.signers[from], c, args...)
	require.NoError(tc.t, err)
	return addr
}

func (tc *testChain) deployToken(symbol string, supply *big.Int) common.Address {
	tc.t.Helper()
	return tc.deploy(0, NewToken(), symbol+" token", symbol, uint8(18), supply)
}

func (tc *testChain) submit(from int, target common.Address, op ledger.Operation, args ...any) (*ledger.Receipt, error) {
	return tc.chain.Submit(tc.ctx, tc.signers[from], ledger.ActionRequest{Target: target, Op: op, Args: args})
}

func (tc *testChain) mustSubmit(from int, target common.Address, op ledger.Operation, args ...any) *ledger.Receipt {
	tc.t.Helper()
	r, err := tc.submit(from, target, op, args...)
	require.NoError(tc.t, err, "%s", op)
	return r
}

func (tc *testChain) submitValue(from int, target common.Address, value *big.Int, op ledger.Operation, args ...any) (*ledger.Receipt, error) {
	return tc.chain.Submit(tc.ctx, tc.signers[from], ledger.ActionRequest{Target: target, Op: op, Args: args, Value: value})
}

// submitRouter submits a deadline-taking operation expiring after grace.
func (tc *testChain) submitRouter(from int, router common.Address, value *big.Int, grace time.Duration, op ledger.Operation, args ...any) (*ledger.Receipt, error) {
	return tc.chain.Submit(tc.ctx, tc.signers[from], ledger.ActionRequest{
		Target:   router,
		Op:       op,
		Args:     args,
		Value:    value,
		Deadline: tc.chain.Now().Add(grace),
	})
}

func (tc *testChain) call(target common.Address, op ledger.Operation, args ...any) []any {
	tc.t.Helper()
	out, err := tc.chain.Call(tc.ctx, target, op, args...)
	require.NoError(tc.t, err, "%s", op)
	return out
}

func (tc *testChain) callBig(target common.Address, op ledger.Operation, args ...any) *big.Int {
	tc.t.Helper()
	v, err := ledger.BigAt(tc.call(target, op, args...), 0)
	require.NoError(tc.t, err)
	return v
}

func (tc *testChain) balance(token, holder common.Address) *big.Int {
	tc.t.Helper()
	return tc.callBig(token, ledger.OpBalanceOf, holder)
}

func (tc *testChain) native(addr common.Address) *big.Int {
	tc.t.Helper()
	bal, err := tc.chain.NativeBalance(tc.ctx, addr)
	require.NoError(tc.t, err)
	return bal
}

func requireRejected(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	got, ok := ledger.RejectionReason(err)
	require.True(t, ok, "expected a rejection, got %v", err)
	require.Equal(t, reason, got)
}

func n(v int64) *big.Int { return big.NewInt(v) }

func delta(before, after *big.Int) int64 {
	return new(big.Int).Sub(after, before).Int64()
}
