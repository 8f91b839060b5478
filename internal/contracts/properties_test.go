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

func newMarketplace(t *testing.T) (tc *testChain, token, market common.Address) {
	t.Helper()
	tc = newTestChain(t)
	token = tc.deploy(0, NewFaucetToken(), "MyERC20", "MYT", uint8(18), n(100_000_000))
	market = tc.deploy(0, NewProperties(), token)
	tc.mustSubmit(0, token, ledger.OpAddMinter, market)
	return tc, token, market
}

func getProperty(tc *testChain, market common.Address, id int64) Property {
	tc.t.Helper()
	return tc.call(market, ledger.OpGetProperty, n(id))[0].(Property)
}

func TestProperties_Create(t *testing.T) {
	tc, _, market := newMarketplace(t)

	r := tc.mustSubmit(0, market, ledger.OpCreateProperty, n(200), "Home", "Electronics", n(2))
	id, err := ledger.BigAt(r.Returns, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id.Int64())

	p := getProperty(tc, market, 1)
	assert.Equal(t, "2", p.Warranty)
	assert.Equal(t, "Electronics", p.Category)
	assert.Equal(t, "Home", p.PropType)
	assert.Equal(t, 0, units.Scale(200, 18).Cmp(p.PriceUnits()))
	assert.Equal(t, tc.signers[0], p.Owner)
	assert.False(t, p.IsListed)

	_, err = tc.chain.Call(tc.ctx, market, ledger.OpGetProperty, n(0))
	requireRejected(t, err, "Property not found")
}

func TestProperties_OwnerOnlyListing(t *testing.T) {
	tc, _, market := newMarketplace(t)
	tc.mustSubmit(0, market, ledger.OpCreateProperty, n(200), "Home", "Electronics", n(2))

	_, err := tc.submit(1, market, ledger.OpListProperty, n(1))
	requireRejected(t, err, "Not owner of this property")
	assert.False(t, getProperty(tc, market, 1).IsListed)

	tc.mustSubmit(0, market, ledger.OpListProperty, n(1))
	assert.True(t, getProperty(tc, market, 1).IsListed)

	_, err = tc.submit(1, market, ledger.OpUnlistProperty, n(1))
	requireRejected(t, err, "Not owner of this property")

	tc.mustSubmit(0, market, ledger.OpUnlistProperty, n(1))
	assert.False(t, getProperty(tc, market, 1).IsListed)

	_, err = tc.submit(1, market, ledger.OpDeleteProperty, n(1))
	requireRejected(t, err, "Not owner of this property")

	tc.mustSubmit(0, market, ledger.OpDeleteProperty, n(1))
	_, err = tc.chain.Call(tc.ctx, market, ledger.OpGetProperty, n(1))
	requireRejected(t, err, "Property not found")

	// Ids are not reused after deletion.
	r := tc.mustSubmit(0, market, ledger.OpCreateProperty, n(1), "Land", "Plot", n(0))
	id, err := ledger.BigAt(r.Returns, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), id.Int64())
}

func TestProperties_Buy(t *testing.T) {
	tc, token, market := newMarketplace(t)
	owner, buyer := tc.signers[0], tc.signers[1]

	tc.mustSubmit(0, market, ledger.OpCreateProperty, n(200), "Home", "Electronics", n(2))

	_, err := tc.submit(1, market, ledger.OpBuyProperty, n(1))
	requireRejected(t, err, "Property not listed")

	tc.mustSubmit(0, market, ledger.OpListProperty, n(1))
	_, err = tc.submit(0, market, ledger.OpBuyProperty, n(1))
	requireRejected(t, err, "Cannot buy own property")

	tc.mustSubmit(1, market, ledger.OpClaimFaucet, buyer)
	assert.Equal(t, "1000000000000000000000", tc.balance(token, buyer).String())

	price := getProperty(tc, market, 1).PriceUnits()
	tc.mustSubmit(1, token, ledger.OpApprove, market, price)
	tc.mustSubmit(1, market, ledger.OpBuyProperty, n(1))

	after := getProperty(tc, market, 1)
	assert.Equal(t, buyer, after.Owner)
	assert.False(t, after.IsListed)
	assert.Equal(t, "800000000000000000000", tc.balance(token, buyer).String())
	// The deployer also holds the raw initial supply.
	want := new(big.Int).Add(units.Scale(200, 18), n(100_000_000))
	assert.Equal(t, want.String(), tc.balance(token, owner).String())
	assert.Equal(t, "200000000000100000000", want.String())
}
