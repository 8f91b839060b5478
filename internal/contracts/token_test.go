package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/units"
)

func TestToken_Metadata(t *testing.T) {
	tc := newTestChain(t)
	cxiv := tc.deploy(0, NewToken(), "WEB3CXIV", "CXIV", uint8(18), n(100_000_000))

	assert.Equal(t, "WEB3CXIV", tc.call(cxiv, ledger.OpName)[0])
	assert.Equal(t, "CXIV", tc.call(cxiv, ledger.OpSymbol)[0])
	assert.Equal(t, uint8(18), tc.call(cxiv, ledger.OpDecimals)[0])
	assert.Equal(t, int64(100_000_000), tc.callBig(cxiv, ledger.OpTotalSupply).Int64())
	assert.Equal(t, int64(100_000_000), tc.balance(cxiv, tc.signers[0]).Int64())
}

func TestToken_Transfer(t *testing.T) {
	tc := newTestChain(t)
	token := tc.deployToken("TKN", n(1_000))
	owner, other := tc.signers[0], tc.signers[1]

	r := tc.mustSubmit(0, token, ledger.OpTransfer, other, n(250))
	assert.Equal(t, int64(750), tc.balance(token, owner).Int64())
	assert.Equal(t, int64(250), tc.balance(token, other).Int64())
	require.Len(t, r.EventsNamed("Transfer"), 1)

	_, err := tc.submit(1, token, ledger.OpTransfer, owner, n(251))
	requireRejected(t, err, "ERC20: transfer amount exceeds balance")
	assert.Equal(t, int64(250), tc.balance(token, other).Int64(), "rejected transfer leaves balances unchanged")

	_, err = tc.submit(0, token, ledger.OpTransfer, common.Address{}, n(1))
	requireRejected(t, err, "ERC20: transfer to the zero address")

	// Self transfers keep the balance.
	tc.mustSubmit(0, token, ledger.OpTransfer, owner, n(700))
	assert.Equal(t, int64(750), tc.balance(token, owner).Int64())
}

func TestToken_ApproveAndTransferFrom(t *testing.T) {
	tc := newTestChain(t)
	token := tc.deployToken("TKN", n(1_000))
	owner, spender, dest := tc.signers[0], tc.signers[1], tc.signers[2]

	tc.mustSubmit(0, token, ledger.OpApprove, spender, n(100))
	tc.mustSubmit(0, token, ledger.OpApprove, spender, n(40))
	assert.Equal(t, int64(40), tc.callBig(token, ledger.OpAllowance, owner, spender).Int64(), "approve overwrites")

	_, err := tc.submit(1, token, ledger.OpTransferFrom, owner, dest, n(41))
	requireRejected(t, err, "ERC20: insufficient allowance")

	tc.mustSubmit(1, token, ledger.OpTransferFrom, owner, dest, n(30))
	assert.Equal(t, int64(10), tc.callBig(token, ledger.OpAllowance, owner, spender).Int64())
	assert.Equal(t, int64(30), tc.balance(token, dest).Int64())
	assert.Equal(t, int64(970), tc.balance(token, owner).Int64())

	_, err = tc.submit(0, token, ledger.OpApprove, common.Address{}, n(1))
	requireRejected(t, err, "ERC20: approve to the zero address")
}

func TestFaucetToken_SupplyAndMinters(t *testing.T) {
	tc := newTestChain(t)
	token := tc.deploy(0, NewFaucetToken(), "MyERC20", "MYT", uint8(18), n(1_000_000))

	assert.Equal(t, int64(1_000_000), tc.balance(token, tc.signers[0]).Int64())
	assert.Equal(t, int64(1_000_000), tc.balance(token, token).Int64())
	assert.Equal(t, int64(2_000_000), tc.callBig(token, ledger.OpTotalSupply).Int64())

	_, err := tc.submit(1, token, ledger.OpMint, tc.signers[1], n(5))
	requireRejected(t, err, "Token: caller is not a minter")

	_, err = tc.submit(1, token, ledger.OpAddMinter, tc.signers[1])
	requireRejected(t, err, "Token: caller is not the owner")

	tc.mustSubmit(0, token, ledger.OpAddMinter, tc.signers[1])
	tc.mustSubmit(1, token, ledger.OpMint, tc.signers[3], units.Scale(1000, 18))
	assert.Equal(t, 0, units.Scale(1000, 18).Cmp(tc.balance(token, tc.signers[3])))
}

func TestWETH_DepositWithdraw(t *testing.T) {
	tc := newTestChain(t)
	weth := tc.deploy(0, NewWETH())
	user := tc.signers[4]
	nativeBefore := tc.native(user)

	_, err := tc.submitValue(4, weth, n(1_000), ledger.OpDeposit)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), tc.balance(weth, user).Int64())
	assert.Equal(t, int64(1_000), tc.native(weth).Int64())

	tc.mustSubmit(4, weth, ledger.OpWithdraw, n(400))
	assert.Equal(t, int64(600), tc.balance(weth, user).Int64())
	assert.Equal(t, int64(-600), delta(nativeBefore, tc.native(user)))

	_, err = tc.submit(4, weth, ledger.OpWithdraw, n(601))
	requireRejected(t, err, "WETH: insufficient balance")

	assert.Equal(t, "WETH", tc.call(weth, ledger.OpSymbol)[0])
	assert.Equal(t, 0, big.NewInt(600).Cmp(tc.callBig(weth, ledger.OpTotalSupply)))
}
