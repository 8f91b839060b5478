package contracts

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/units"
)

func TestVault_Ether(t *testing.T) {
	tc := newTestChain(t)
	vault := tc.deploy(0, NewVault())
	saver := tc.signers[0]
	one := units.Scale(1, 18)

	_, err := tc.submitValue(0, vault, nil, ledger.OpDepositEther)
	requireRejected(t, err, "Cannot deposit zero")

	_, err = tc.submitValue(0, vault, one, ledger.OpDepositEther)
	require.NoError(t, err)
	assert.Equal(t, 0, one.Cmp(tc.native(vault)))
	assert.Equal(t, 0, one.Cmp(tc.callBig(vault, ledger.OpEtherBalanceOf, saver)))

	_, err = tc.submit(1, vault, ledger.OpWithdrawEther, one)
	requireRejected(t, err, "Insufficient savings")

	before := tc.native(saver)
	tc.mustSubmit(0, vault, ledger.OpWithdrawEther, one)
	assert.Equal(t, 0, one.Cmp(new(big.Int).Sub(tc.native(saver), before)))
	assert.Equal(t, int64(0), tc.native(vault).Int64())
	assert.Equal(t, int64(0), tc.callBig(vault, ledger.OpEtherBalanceOf, saver).Int64())
}

func TestVault_TakesNoConstructorArguments(t *testing.T) {
	tc := newTestChain(t)
	token := tc.deployToken("MYT", n(1))
	_, err := tc.chain.Deploy(tc.ctx, tc.signers[0], NewVault(), token)
	assert.ErrorContains(t, err, "vault takes no constructor arguments")
}

func TestVault_Erc20(t *testing.T) {
	tc := newTestChain(t)
	token := tc.deploy(0, NewFaucetToken(), "MyERC20", "MYT", uint8(18), n(1_000_000))
	vault := tc.deploy(0, NewVault())
	saver := tc.signers[0]

	assert.Equal(t, int64(1_000_000), tc.balance(token, saver).Int64())
	assert.Equal(t, int64(1_000_000), tc.balance(token, token).Int64())

	_, err := tc.submit(0, vault, ledger.OpDepositErc20, token, n(100))
	requireRejected(t, err, "ERC20: insufficient allowance")

	tc.mustSubmit(0, token, ledger.OpApprove, vault, n(100))
	assert.Equal(t, int64(100), tc.callBig(token, ledger.OpAllowance, saver, vault).Int64())
	tc.mustSubmit(0, vault, ledger.OpDepositErc20, token, n(100))
	assert.Equal(t, int64(100), tc.balance(token, vault).Int64())
	assert.Equal(t, int64(100), tc.callBig(vault, ledger.OpErc20BalanceOf, saver, token).Int64())

	_, err = tc.submit(0, vault, ledger.OpWithdrawErc20, token, n(101))
	requireRejected(t, err, "Insufficient savings")

	before := tc.balance(token, saver)
	tc.mustSubmit(0, vault, ledger.OpWithdrawErc20, token, n(100))
	assert.Equal(t, int64(100), delta(before, tc.balance(token, saver)))
	assert.Equal(t, int64(0), tc.balance(token, vault).Int64())
}
