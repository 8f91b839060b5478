package harness_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/forkbench/internal/config"
	"github.com/roach88/forkbench/internal/fixtures"
	"github.com/roach88/forkbench/internal/harness"
	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
	"github.com/roach88/forkbench/internal/testutil"
)

func simfork(t *testing.T) *config.Profile {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	p, err := cfg.Network("simfork")
	require.NoError(t, err)
	return p
}

func provision(t *testing.T, name string, opts ...harness.Option) *harness.Fixture {
	t.Helper()
	recipe, err := fixtures.Lookup(name, simfork(t))
	require.NoError(t, err)
	opts = append([]harness.Option{harness.WithLogger(slogt.New(t))}, opts...)
	fx, err := harness.Provision(context.Background(),
		fixtures.SimBackend(simchain.WithLogger(slogt.New(t))), recipe, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { fx.Close() })
	return fx
}

func identity(t *testing.T, fx *harness.Fixture, label string) ledger.Identity {
	t.Helper()
	id, err := fx.Identity(label)
	require.NoError(t, err)
	return id
}

func quantity(t *testing.T, fx *harness.Fixture, label, symbol string) *big.Int {
	t.Helper()
	asset, err := fx.Asset(symbol)
	require.NoError(t, err)
	snap, err := fx.Snapshot(context.Background(), identity(t, fx, label), asset)
	require.NoError(t, err)
	return snap.Quantity
}

func TestProvision(t *testing.T) {
	ids := testutil.NewFixedIDGenerator("provision")
	fx := provision(t, fixtures.Token, harness.WithIDGenerator(ids))

	assert.Equal(t, ids.NewID(), fx.ID())
	assert.Equal(t, fixtures.Token, fx.Recipe())

	labels := fx.Identities()
	assert.Contains(t, labels, "signer0")
	assert.Contains(t, labels, "signer9")
	assert.Contains(t, labels, "owner")

	// Recipes relabel signers; the signer alias stays resolvable.
	assert.Equal(t, identity(t, fx, "signer0").Address, identity(t, fx, "owner").Address)
	assert.Equal(t, "owner", fx.Label(identity(t, fx, "owner").Address))

	token, err := fx.Contract("token")
	require.NoError(t, err)
	assert.Equal(t, "CXIV", fx.Label(token))

	stranger := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	assert.Equal(t, stranger.Hex(), fx.Label(stranger))

	eth, err := fx.Asset("eth")
	require.NoError(t, err)
	assert.True(t, eth.Native)

	_, err = fx.Asset("NOPE")
	assert.ErrorContains(t, err, `fixture has no asset "NOPE"`)
}

func TestProvision_FixturesAreIndependent(t *testing.T) {
	a := provision(t, fixtures.Token)
	b := provision(t, fixtures.Token)
	assert.NotEqual(t, a.ID(), b.ID())

	ctx := context.Background()
	auth, err := a.Signer("owner")
	require.NoError(t, err)
	token, err := a.Contract("token")
	require.NoError(t, err)
	_, err = a.Submit(ctx, auth, ledger.ActionRequest{
		Target: token,
		Op:     ledger.OpTransfer,
		Args:   []any{identity(t, a, "other").Address, big.NewInt(7)},
	})
	require.NoError(t, err)

	assert.Equal(t, "7", quantity(t, a, "other", "CXIV").String())
	assert.Equal(t, "0", quantity(t, b, "other", "CXIV").String())
}

func TestProvision_BackendFailure(t *testing.T) {
	recipe, err := fixtures.Lookup(fixtures.Token, nil)
	require.NoError(t, err)

	failing := func(context.Context, bool) (ledger.Backend, error) {
		return nil, errors.New("connection refused")
	}
	_, err = harness.Provision(context.Background(), failing, recipe)
	require.Error(t, err)
	assert.True(t, ledger.IsProvisioningError(err))
	assert.Contains(t, err.Error(), "connection refused")
}

type failingRecipe struct{}

func (failingRecipe) Name() string { return "broken" }
func (failingRecipe) Fork() bool   { return false }
func (failingRecipe) Provision(context.Context, *harness.Fixture) error {
	return errors.New("no such contract")
}

func TestProvision_RecipeFailure(t *testing.T) {
	_, err := harness.Provision(context.Background(),
		fixtures.SimBackend(simchain.WithLogger(slogt.New(t))), failingRecipe{})
	require.Error(t, err)
	assert.True(t, ledger.IsProvisioningError(err))
	assert.Contains(t, err.Error(), "recipe broken")
}

func TestSigner(t *testing.T) {
	fx := provision(t, fixtures.Token)

	auth, err := fx.Signer("owner")
	require.NoError(t, err)
	assert.False(t, auth.Impersonated)
	assert.Equal(t, fx.ID(), auth.Fixture)

	_, err = fx.Signer("nobody")
	assert.True(t, ledger.IsImpersonationError(err))

	fx.AddIdentity("whale", common.HexToAddress("0x00000000000000000000000000000000000000aa"))
	_, err = fx.Signer("whale")
	require.Error(t, err)
	assert.True(t, ledger.IsImpersonationError(err))
	assert.Contains(t, err.Error(), "impersonate it instead")
}

func TestImpersonate_RequiresForkMode(t *testing.T) {
	fx := provision(t, fixtures.Token)

	_, err := fx.Impersonate(context.Background(), identity(t, fx, "other").Address.Hex())
	require.Error(t, err)
	assert.True(t, ledger.IsImpersonationError(err))
}

func TestImpersonate(t *testing.T) {
	fx := provision(t, fixtures.AMMFork)
	ctx := context.Background()

	tests := []struct {
		name string
		ref  string
	}{
		{"label", "usdc-holder"},
		{"short hex", "0x1234"},
		{"missing prefix", "f584f8728b874a6a5c7a8d4d387c9aae9172d621"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.Impersonate(ctx, tt.ref)
			require.Error(t, err)
			assert.True(t, ledger.IsImpersonationError(err))
			assert.Contains(t, err.Error(), "malformed account reference")
		})
	}

	unknown := "0x00000000000000000000000000000000000000Ab"
	auth, err := fx.Impersonate(ctx, unknown)
	require.NoError(t, err)
	assert.True(t, auth.Impersonated)
	assert.Equal(t, common.HexToAddress(unknown).Hex(), auth.Identity.Label)

	// The unknown account is now resolvable by its hex label.
	_, err = fx.Identity(common.HexToAddress(unknown).Hex())
	assert.NoError(t, err)
}

func TestSnapshot(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := testutil.NewDeterministicClockAt(at, time.Second)
	fx := provision(t, fixtures.Token, harness.WithClock(clock.Now))
	ctx := context.Background()

	cxiv, err := fx.Asset("CXIV")
	require.NoError(t, err)
	owner := identity(t, fx, "owner")

	snap, err := fx.Snapshot(ctx, owner, cxiv)
	require.NoError(t, err)
	assert.Equal(t, fixtures.CXIVSupply.String(), snap.Quantity.String())
	assert.Equal(t, fx.ID(), snap.Fixture)
	assert.Equal(t, at.Add(time.Second), snap.ReadAt)

	head, err := fx.Backend().Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, head.Number, snap.Block)

	// Reads never advance the ledger.
	again, err := fx.Snapshot(ctx, owner, cxiv)
	require.NoError(t, err)
	assert.Equal(t, snap.Block, again.Block)
	assert.NoError(t, snap.Comparable(again))

	ethSnap, err := fx.Snapshot(ctx, owner, ledger.Ether)
	require.NoError(t, err)
	assert.Positive(t, ethSnap.Quantity.Sign())

	_, err = fx.Allowance(ctx, owner, owner, ledger.Ether)
	assert.True(t, ledger.IsReadError(err))
}

func TestSnapshot_UnreadableAsset(t *testing.T) {
	fx := provision(t, fixtures.Token)
	bogus := ledger.Token("BOGUS", common.HexToAddress("0x00000000000000000000000000000000000000bb"), 18)

	_, err := fx.Snapshot(context.Background(), identity(t, fx, "owner"), bogus)
	require.Error(t, err)
	assert.True(t, ledger.IsReadError(err))
}

func TestSubmit_RejectionLeavesBalancesUnchanged(t *testing.T) {
	fx := provision(t, fixtures.Token)
	ctx := context.Background()

	token, err := fx.Contract("token")
	require.NoError(t, err)
	cxiv, err := fx.Asset("CXIV")
	require.NoError(t, err)
	other := identity(t, fx, "other")
	owner := identity(t, fx, "owner")

	beforeOther, err := fx.Snapshot(ctx, other, cxiv)
	require.NoError(t, err)
	beforeOwner, err := fx.Snapshot(ctx, owner, cxiv)
	require.NoError(t, err)

	auth, err := fx.Signer("other")
	require.NoError(t, err)
	_, err = fx.Submit(ctx, auth, ledger.ActionRequest{
		Target: token,
		Op:     ledger.OpTransfer,
		Args:   []any{owner.Address, big.NewInt(1)},
	})
	require.Error(t, err)
	reason, ok := ledger.RejectionReason(err)
	require.True(t, ok)
	assert.Equal(t, "ERC20: transfer amount exceeds balance", reason)
	assert.NoError(t, harness.VerifyRejection(err, harness.ExpectRejected(reason)))

	afterOther, err := fx.Snapshot(ctx, other, cxiv)
	require.NoError(t, err)
	afterOwner, err := fx.Snapshot(ctx, owner, cxiv)
	require.NoError(t, err)
	assert.NoError(t, harness.Verify(beforeOther, afterOther, harness.ExpectDirection(harness.Unchanged)))
	assert.NoError(t, harness.Verify(beforeOwner, afterOwner, harness.ExpectDirection(harness.Unchanged)))
}

func TestSubmit_Finalized(t *testing.T) {
	fx := provision(t, fixtures.Token)
	ctx := context.Background()

	token, err := fx.Contract("token")
	require.NoError(t, err)
	cxiv, err := fx.Asset("CXIV")
	require.NoError(t, err)
	other := identity(t, fx, "other")

	before, err := fx.Snapshot(ctx, other, cxiv)
	require.NoError(t, err)

	auth, err := fx.Signer("owner")
	require.NoError(t, err)
	rec, err := fx.Submit(ctx, auth, ledger.ActionRequest{
		Target: token,
		Op:     ledger.OpTransfer,
		Args:   []any{other.Address, big.NewInt(250)},
	})
	require.NoError(t, err)
	require.Len(t, rec.EventsNamed("Transfer"), 1)
	assert.Greater(t, rec.Block, before.Block)

	after, err := fx.Snapshot(ctx, other, cxiv)
	require.NoError(t, err)
	assert.NoError(t, harness.Verify(before, after, harness.ExpectDelta(big.NewInt(250))))
	assert.NoError(t, harness.Verify(before, after, harness.ExpectExact(big.NewInt(250))))
}

func TestSubmit_ForeignAuthority(t *testing.T) {
	a := provision(t, fixtures.Token)
	b := provision(t, fixtures.Token)

	auth, err := a.Signer("owner")
	require.NoError(t, err)
	token, err := b.Contract("token")
	require.NoError(t, err)

	_, err = b.Submit(context.Background(), auth, ledger.ActionRequest{
		Target: token,
		Op:     ledger.OpTransfer,
		Args:   []any{identity(t, b, "other").Address, big.NewInt(1)},
	})
	require.Error(t, err)
	assert.False(t, ledger.IsRejected(err))
	assert.Contains(t, err.Error(), "belongs to fixture")
}

func TestSubmit_ExpiredDeadline(t *testing.T) {
	p := simfork(t)
	fx := provision(t, fixtures.AMMFork)
	ctx := context.Background()

	router, err := fx.Contract("router")
	require.NoError(t, err)
	auth, err := fx.Impersonate(ctx, p.Holders["USDC"].Hex())
	require.NoError(t, err)

	expired, err := fx.DeadlineAfter(ctx, -time.Second)
	require.NoError(t, err)
	live, err := fx.Deadline(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.DefaultDeadlineGrace, live.Sub(expired)-time.Second)

	usdc, err := fx.Asset("USDC")
	require.NoError(t, err)
	before, err := fx.Snapshot(ctx, auth.Identity, usdc)
	require.NoError(t, err)

	req := ledger.ActionRequest{
		Target:   router,
		Op:       ledger.OpSwapExactETHForTokens,
		Args:     []any{big.NewInt(0), []common.Address{p.Assets["WETH"].Address, usdc.Address}, auth.Identity.Address},
		Value:    ledger.Ether.Units(1),
		Deadline: expired,
	}
	_, err = fx.Submit(ctx, auth, req)
	assert.NoError(t, harness.VerifyRejection(err, harness.ExpectRejected("UniswapV2Router: EXPIRED")))

	after, err := fx.Snapshot(ctx, auth.Identity, usdc)
	require.NoError(t, err)
	assert.NoError(t, harness.Verify(before, after, harness.ExpectDirection(harness.Unchanged)))

	req.Deadline = live
	_, err = fx.Submit(ctx, auth, req)
	require.NoError(t, err)

	after, err = fx.Snapshot(ctx, auth.Identity, usdc)
	require.NoError(t, err)
	assert.NoError(t, harness.Verify(before, after, harness.ExpectDirection(harness.Increased)))
}

func TestAdvanceTime(t *testing.T) {
	fx := provision(t, fixtures.Token)
	ctx := context.Background()

	before, err := fx.Deadline(ctx)
	require.NoError(t, err)
	require.NoError(t, fx.AdvanceTime(ctx, time.Hour))

	auth, err := fx.Signer("owner")
	require.NoError(t, err)
	token, err := fx.Contract("token")
	require.NoError(t, err)
	_, err = fx.Submit(ctx, auth, ledger.ActionRequest{
		Target: token,
		Op:     ledger.OpApprove,
		Args:   []any{identity(t, fx, "other").Address, big.NewInt(1)},
	})
	require.NoError(t, err)

	after, err := fx.Deadline(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, after.Sub(before), time.Hour)
}
