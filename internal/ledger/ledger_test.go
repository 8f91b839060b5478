package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = Identity{Label: "alice", Address: common.HexToAddress("0x1")}
	bob   = Identity{Label: "bob", Address: common.HexToAddress("0x2")}
	usdc  = Token("USDC", common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), 6)
)

func TestOperation_ParseRoundTrip(t *testing.T) {
	for _, op := range Operations() {
		parsed, err := ParseOperation(op.String())
		require.NoError(t, err, op.String())
		assert.Equal(t, op, parsed)
	}

	_, err := ParseOperation("selfDestruct")
	assert.Error(t, err)

	// "mint" names the token operation, never the internal pair one.
	op, err := ParseOperation("mint")
	require.NoError(t, err)
	assert.Equal(t, OpMint, op)
	_, err = ParseOperation("swap")
	assert.Error(t, err)
	assert.NotContains(t, Operations(), OpPairSwap)
}

func TestOperation_TableCoversEnum(t *testing.T) {
	for op := OpName; op <= OpErc20BalanceOf; op++ {
		_, ok := op.Spec()
		assert.True(t, ok, "operation %d has no table entry", int(op))
	}
}

func TestOperation_Flags(t *testing.T) {
	assert.True(t, OpTransfer.IsWrite())
	assert.False(t, OpBalanceOf.IsWrite())

	spec, _ := OpAddLiquidityETH.Spec()
	assert.True(t, spec.Payable)
	assert.True(t, spec.Deadline)
	assert.Equal(t, "addLiquidityETH", OpAddLiquidityETH.String())
}

func TestCheckArgs(t *testing.T) {
	require.NoError(t, CheckArgs(OpTransfer, []any{bob.Address, big.NewInt(100)}))

	err := CheckArgs(OpTransfer, []any{bob.Address})
	assert.ErrorContains(t, err, "expected 2 arguments")

	err = CheckArgs(OpTransfer, []any{"0x2", big.NewInt(1)})
	assert.ErrorContains(t, err, "expected address")

	err = CheckArgs(OpTransfer, []any{bob.Address, big.NewInt(-1)})
	assert.ErrorContains(t, err, "non-negative")

	require.NoError(t, CheckArgs(OpAddStudent, []any{"Ada", uint8(2), uint8(20)}))
	require.NoError(t, CheckArgs(OpCreateProperty, []any{big.NewInt(200), "house", "land", big.NewInt(2)}))
	require.NoError(t, CheckArgs(OpGetAmountsOut, []any{big.NewInt(1), []common.Address{alice.Address, bob.Address}}))
}

func TestActionRequest_Validate(t *testing.T) {
	deadline := time.Unix(1_700_000_600, 0)
	path := []common.Address{alice.Address, bob.Address}

	tests := []struct {
		name    string
		req     ActionRequest
		wantErr string
	}{
		{
			name: "plain transfer",
			req:  ActionRequest{Op: OpTransfer, Args: []any{bob.Address, big.NewInt(1)}},
		},
		{
			name:    "read op",
			req:     ActionRequest{Op: OpBalanceOf, Args: []any{bob.Address}},
			wantErr: "read operation",
		},
		{
			name:    "value on non-payable",
			req:     ActionRequest{Op: OpTransfer, Args: []any{bob.Address, big.NewInt(1)}, Value: big.NewInt(1)},
			wantErr: "does not accept native value",
		},
		{
			name:    "router op without deadline",
			req:     ActionRequest{Op: OpSwapExactETHForTokens, Args: []any{big.NewInt(0), path, bob.Address}, Value: big.NewInt(1)},
			wantErr: "requires a deadline",
		},
		{
			name:    "deadline on op that takes none",
			req:     ActionRequest{Op: OpApprove, Args: []any{bob.Address, big.NewInt(1)}, Deadline: deadline},
			wantErr: "does not take a deadline",
		},
		{
			name: "router op with deadline",
			req: ActionRequest{
				Op: OpSwapExactETHForTokens, Args: []any{big.NewInt(0), path, bob.Address},
				Value: big.NewInt(1), Deadline: deadline,
			},
		},
		{
			name:    "internal op",
			req:     ActionRequest{Op: OpPairMint, Args: []any{bob.Address}},
			wantErr: "internal",
		},
		{
			name:    "unknown op",
			req:     ActionRequest{Op: OpUnknown},
			wantErr: "unknown operation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestActionRequest_CallArgsAppendsDeadline(t *testing.T) {
	deadline := time.Unix(1_700_000_600, 0)
	req := ActionRequest{
		Op:       OpSwapExactTokensForTokens,
		Args:     []any{big.NewInt(1), big.NewInt(0), []common.Address{alice.Address, bob.Address}, bob.Address},
		Deadline: deadline,
	}

	args := req.CallArgs()
	require.Len(t, args, 5)
	assert.Equal(t, int64(1_700_000_600), args[4].(*big.Int).Int64())
	assert.Len(t, req.Args, 4, "original args must not be modified")

	plain := ActionRequest{Op: OpApprove, Args: []any{bob.Address, big.NewInt(5)}}
	assert.Len(t, plain.CallArgs(), 2)
	assert.Equal(t, 0, plain.NativeValue().Sign())
}

func TestSnapshot_Delta(t *testing.T) {
	fx := uuid.New()
	before := Snapshot{Fixture: fx, Identity: alice, Asset: usdc, Quantity: big.NewInt(1_000_000)}
	after := Snapshot{Fixture: fx, Identity: alice, Asset: usdc, Quantity: big.NewInt(400_000)}

	d, err := before.Delta(after)
	require.NoError(t, err)
	assert.Equal(t, int64(-600_000), d.Int64())
}

func TestSnapshot_DeltaRejectsMismatches(t *testing.T) {
	fx := uuid.New()
	base := Snapshot{Fixture: fx, Identity: alice, Asset: usdc, Quantity: big.NewInt(1)}

	other := base
	other.Fixture = uuid.New()
	_, err := base.Delta(other)
	assert.ErrorContains(t, err, "different fixtures")

	other = base
	other.Identity = bob
	_, err = base.Delta(other)
	assert.ErrorContains(t, err, "different identities")

	other = base
	other.Asset = Ether
	_, err = base.Delta(other)
	assert.ErrorContains(t, err, "different assets")
}

func TestAsset_Conversions(t *testing.T) {
	assert.Equal(t, "1500000", usdc.Units(1).Add(usdc.Units(1), big.NewInt(500_000)).String())
	q, err := usdc.Parse("2.5")
	require.NoError(t, err)
	assert.Equal(t, "2500000", q.String())
	assert.Equal(t, "2.5", usdc.Format(q))

	_, err = usdc.Parse("0.0000001")
	assert.ErrorContains(t, err, "USDC amount")
}

func TestErrors_Taxonomy(t *testing.T) {
	rejected := fmt.Errorf("step 3: %w", NewRejected(OpApproveTransaction, "You have already approved this transaction"))

	assert.True(t, IsRejected(rejected))
	assert.False(t, IsReadError(rejected))
	reason, ok := RejectionReason(rejected)
	require.True(t, ok)
	assert.Equal(t, "You have already approved this transaction", reason)
	assert.Contains(t, rejected.Error(), "approveTransaction rejected")

	cause := errors.New("connection refused")
	readErr := NewReadError("balanceOf", cause)
	assert.True(t, IsReadError(readErr))
	assert.ErrorIs(t, readErr, cause)
	_, ok = RejectionReason(readErr)
	assert.False(t, ok)

	assert.True(t, IsProvisioningError(NewProvisioningError("deploy", cause)))
	assert.True(t, IsImpersonationError(NewImpersonationError("not a fork", nil)))
	assert.False(t, IsRejected(nil))
}

func TestReceipt_EventsNamed(t *testing.T) {
	r := &Receipt{Events: []Event{{Name: "Approval"}, {Name: "Transfer"}, {Name: "Transfer"}}}
	assert.Len(t, r.EventsNamed("Transfer"), 2)
	assert.Empty(t, r.EventsNamed("Swap"))
}

func TestValueHelpers(t *testing.T) {
	vals := []any{big.NewInt(7), alice.Address, "CXIV", uint8(18), []*big.Int{big.NewInt(1)}}

	b, err := BigAt(vals, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), b.Int64())

	a, err := AddressAt(vals, 1)
	require.NoError(t, err)
	assert.Equal(t, alice.Address, a)

	s, err := StringAt(vals, 2)
	require.NoError(t, err)
	assert.Equal(t, "CXIV", s)

	d, err := BigAt(vals, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(18), d.Int64())

	list, err := BigsAt(vals, 4)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = BigAt(vals, 9)
	assert.Error(t, err)
	_, err = AddressAt(vals, 0)
	assert.Error(t, err)
}
