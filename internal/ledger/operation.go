package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Operation enumerates every ledger method forkbench can read or submit.
// Backends dispatch on it through lookup tables rather than method names.
type Operation int

const (
	OpUnknown Operation = iota

	// ERC20
	OpName
	OpSymbol
	OpDecimals
	OpTotalSupply
	OpBalanceOf
	OpAllowance
	OpTransfer
	OpApprove
	OpTransferFrom
	OpMint
	OpAddMinter

	// Wrapped ether
	OpDeposit
	OpWithdraw

	// AMM factory and pair
	OpCreatePair
	OpGetPair
	OpGetReserves
	OpToken0
	OpToken1
	OpPairMint
	OpPairBurn
	OpPairSwap

	// AMM router
	OpAddLiquidity
	OpAddLiquidityETH
	OpRemoveLiquidity
	OpRemoveLiquidityETH
	OpSwapExactETHForTokens
	OpSwapETHForExactTokens
	OpSwapExactTokensForTokens
	OpSwapTokensForExactTokens
	OpSwapTokensForExactETH
	OpSwapExactTokensForETH
	OpGetAmountsOut
	OpGetAmountsIn
	OpQuote

	// Multisig
	OpMakeOwner
	OpDepositEther
	OpCreateATransaction
	OpApproveTransaction
	OpGetOneTransaction
	OpGetOwners

	// School
	OpAddStudent
	OpClaimStudentID
	OpGetStudent
	OpGetAllStudentDetails
	OpAddStaff
	OpClaimStaffID
	OpGetStaff
	OpPayStaff
	OpGetAllStaffDetails
	OpClaimFaucet

	// Properties
	OpCreateProperty
	OpGetProperty
	OpListProperty
	OpUnlistProperty
	OpDeleteProperty
	OpBuyProperty

	// Vault
	OpDepositErc20
	OpWithdrawEther
	OpWithdrawErc20
	OpEtherBalanceOf
	OpErc20BalanceOf
)

// ArgKind is the type of a single operation argument.
type ArgKind int

const (
	KindAddress ArgKind = iota + 1
	KindUint
	KindUint8
	KindString
	KindAddressList
	KindBool
)

func (k ArgKind) String() string {
	switch k {
	case KindAddress:
		return "address"
	case KindUint:
		return "uint256"
	case KindUint8:
		return "uint8"
	case KindString:
		return "string"
	case KindAddressList:
		return "address[]"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

// OpSpec describes one operation.
type OpSpec struct {
	Method   string
	Args     []ArgKind // excludes the deadline
	Write    bool
	Payable  bool
	Deadline bool // a uint256 deadline follows Args on the ledger

	// Internal operations are contract-to-contract calls (pair mint, burn
	// and swap). They cannot be named in scenarios or submitted directly.
	Internal bool
}

var (
	aAddr = KindAddress
	aUint = KindUint
	aStr  = KindString
	aPath = KindAddressList
)

var opTable = map[Operation]OpSpec{
	OpName:         {Method: "name"},
	OpSymbol:       {Method: "symbol"},
	OpDecimals:     {Method: "decimals"},
	OpTotalSupply:  {Method: "totalSupply"},
	OpBalanceOf:    {Method: "balanceOf", Args: []ArgKind{aAddr}},
	OpAllowance:    {Method: "allowance", Args: []ArgKind{aAddr, aAddr}},
	OpTransfer:     {Method: "transfer", Args: []ArgKind{aAddr, aUint}, Write: true},
	OpApprove:      {Method: "approve", Args: []ArgKind{aAddr, aUint}, Write: true},
	OpTransferFrom: {Method: "transferFrom", Args: []ArgKind{aAddr, aAddr, aUint}, Write: true},
	OpMint:         {Method: "mint", Args: []ArgKind{aAddr, aUint}, Write: true},
	OpAddMinter:    {Method: "addMinter", Args: []ArgKind{aAddr}, Write: true},

	OpDeposit:  {Method: "deposit", Write: true, Payable: true},
	OpWithdraw: {Method: "withdraw", Args: []ArgKind{aUint}, Write: true},

	OpCreatePair:  {Method: "createPair", Args: []ArgKind{aAddr, aAddr}, Write: true},
	OpGetPair:     {Method: "getPair", Args: []ArgKind{aAddr, aAddr}},
	OpGetReserves: {Method: "getReserves"},
	OpToken0:      {Method: "token0"},
	OpToken1:      {Method: "token1"},
	OpPairMint:    {Method: "mint", Args: []ArgKind{aAddr}, Write: true, Internal: true},
	OpPairBurn:    {Method: "burn", Args: []ArgKind{aAddr}, Write: true, Internal: true},
	OpPairSwap:    {Method: "swap", Args: []ArgKind{aUint, aUint, aAddr}, Write: true, Internal: true},

	OpAddLiquidity: {
		Method: "addLiquidity",
		Args:   []ArgKind{aAddr, aAddr, aUint, aUint, aUint, aUint, aAddr},
		Write:  true, Deadline: true,
	},
	OpAddLiquidityETH: {
		Method: "addLiquidityETH",
		Args:   []ArgKind{aAddr, aUint, aUint, aUint, aAddr},
		Write:  true, Payable: true, Deadline: true,
	},
	OpRemoveLiquidity: {
		Method: "removeLiquidity",
		Args:   []ArgKind{aAddr, aAddr, aUint, aUint, aUint, aAddr},
		Write:  true, Deadline: true,
	},
	OpRemoveLiquidityETH: {
		Method: "removeLiquidityETH",
		Args:   []ArgKind{aAddr, aUint, aUint, aUint, aAddr},
		Write:  true, Deadline: true,
	},
	OpSwapExactETHForTokens: {
		Method: "swapExactETHForTokens",
		Args:   []ArgKind{aUint, aPath, aAddr},
		Write:  true, Payable: true, Deadline: true,
	},
	OpSwapETHForExactTokens: {
		Method: "swapETHForExactTokens",
		Args:   []ArgKind{aUint, aPath, aAddr},
		Write:  true, Payable: true, Deadline: true,
	},
	OpSwapExactTokensForTokens: {
		Method: "swapExactTokensForTokens",
		Args:   []ArgKind{aUint, aUint, aPath, aAddr},
		Write:  true, Deadline: true,
	},
	OpSwapTokensForExactTokens: {
		Method: "swapTokensForExactTokens",
		Args:   []ArgKind{aUint, aUint, aPath, aAddr},
		Write:  true, Deadline: true,
	},
	OpSwapTokensForExactETH: {
		Method: "swapTokensForExactETH",
		Args:   []ArgKind{aUint, aUint, aPath, aAddr},
		Write:  true, Deadline: true,
	},
	OpSwapExactTokensForETH: {
		Method: "swapExactTokensForETH",
		Args:   []ArgKind{aUint, aUint, aPath, aAddr},
		Write:  true, Deadline: true,
	},
	OpGetAmountsOut: {Method: "getAmountsOut", Args: []ArgKind{aUint, aPath}},
	OpGetAmountsIn:  {Method: "getAmountsIn", Args: []ArgKind{aUint, aPath}},
	OpQuote:         {Method: "quote", Args: []ArgKind{aUint, aUint, aUint}},

	OpMakeOwner:          {Method: "makeOwner", Write: true},
	OpDepositEther:       {Method: "depositEther", Write: true, Payable: true},
	OpCreateATransaction: {Method: "createATransaction", Args: []ArgKind{aAddr, aUint}, Write: true},
	OpApproveTransaction: {Method: "approveTransaction", Args: []ArgKind{aUint}, Write: true},
	OpGetOneTransaction:  {Method: "getOneTransaction", Args: []ArgKind{aUint}},
	OpGetOwners:          {Method: "getOwners"},

	OpAddStudent:           {Method: "addStudent", Args: []ArgKind{aStr, KindUint8, KindUint8}, Write: true},
	OpClaimStudentID:       {Method: "claimStudentId", Args: []ArgKind{aUint}, Write: true},
	OpGetStudent:           {Method: "getStudent", Args: []ArgKind{aAddr}},
	OpGetAllStudentDetails: {Method: "getAllStudentDetails"},
	OpAddStaff:             {Method: "addStaff", Args: []ArgKind{aStr, aUint}, Write: true},
	OpClaimStaffID:         {Method: "claimStaffId", Args: []ArgKind{aUint}, Write: true},
	OpGetStaff:             {Method: "getStaff", Args: []ArgKind{aAddr}},
	OpPayStaff:             {Method: "payStaff", Args: []ArgKind{aAddr}, Write: true},
	OpGetAllStaffDetails:   {Method: "getAllStaffDetails"},
	OpClaimFaucet:          {Method: "claimFaucet", Args: []ArgKind{aAddr}, Write: true},

	OpCreateProperty: {Method: "createProperty", Args: []ArgKind{aUint, aStr, aStr, aUint}, Write: true},
	OpGetProperty:    {Method: "getProperty", Args: []ArgKind{aUint}},
	OpListProperty:   {Method: "listProperty", Args: []ArgKind{aUint}, Write: true},
	OpUnlistProperty: {Method: "unlistProperty", Args: []ArgKind{aUint}, Write: true},
	OpDeleteProperty: {Method: "deleteProperty", Args: []ArgKind{aUint}, Write: true},
	OpBuyProperty:    {Method: "buyProperty", Args: []ArgKind{aUint}, Write: true},

	OpDepositErc20:   {Method: "depositErc20", Args: []ArgKind{aAddr, aUint}, Write: true},
	OpWithdrawEther:  {Method: "withdrawEther", Args: []ArgKind{aUint}, Write: true},
	OpWithdrawErc20:  {Method: "withdrawErc20", Args: []ArgKind{aAddr, aUint}, Write: true},
	OpEtherBalanceOf: {Method: "etherBalanceOf", Args: []ArgKind{aAddr}},
	OpErc20BalanceOf: {Method: "erc20BalanceOf", Args: []ArgKind{aAddr, aAddr}},
}

var opByMethod = func() map[string]Operation {
	m := make(map[string]Operation, len(opTable))
	for op, spec := range opTable {
		if !spec.Internal {
			m[spec.Method] = op
		}
	}
	return m
}()

// Spec returns the table entry for op.
func (o Operation) Spec() (OpSpec, bool) {
	spec, ok := opTable[o]
	return spec, ok
}

// String returns the ledger method name.
func (o Operation) String() string {
	if spec, ok := opTable[o]; ok {
		return spec.Method
	}
	return fmt.Sprintf("Operation(%d)", int(o))
}

// IsWrite reports whether the operation mutates ledger state.
func (o Operation) IsWrite() bool {
	return opTable[o].Write
}

// ParseOperation looks up an operation by its ledger method name.
func ParseOperation(method string) (Operation, error) {
	op, ok := opByMethod[method]
	if !ok {
		return OpUnknown, fmt.Errorf("unknown operation %q", method)
	}
	return op, nil
}

// Operations returns every operation that can be named by callers,
// in declaration order.
func Operations() []Operation {
	out := make([]Operation, 0, len(opTable))
	for op := OpName; op <= OpErc20BalanceOf; op++ {
		if spec, ok := opTable[op]; ok && !spec.Internal {
			out = append(out, op)
		}
	}
	return out
}

// CheckArgs verifies that args match the operation's argument kinds.
func CheckArgs(op Operation, args []any) error {
	spec, ok := op.Spec()
	if !ok {
		return fmt.Errorf("unknown operation %d", int(op))
	}
	if len(args) != len(spec.Args) {
		return fmt.Errorf("%s: expected %d arguments, got %d", spec.Method, len(spec.Args), len(args))
	}
	for i, kind := range spec.Args {
		if err := checkKind(kind, args[i]); err != nil {
			return fmt.Errorf("%s: argument %d: %w", spec.Method, i, err)
		}
	}
	return nil
}

func checkKind(kind ArgKind, v any) error {
	switch kind {
	case KindAddress:
		if _, ok := v.(common.Address); ok {
			return nil
		}
	case KindUint:
		if b, ok := v.(*big.Int); ok {
			if b == nil || b.Sign() < 0 {
				return fmt.Errorf("uint256 must be a non-negative integer")
			}
			return nil
		}
	case KindUint8:
		if _, ok := v.(uint8); ok {
			return nil
		}
	case KindString:
		if _, ok := v.(string); ok {
			return nil
		}
	case KindAddressList:
		if _, ok := v.([]common.Address); ok {
			return nil
		}
	case KindBool:
		if _, ok := v.(bool); ok {
			return nil
		}
	}
	return fmt.Errorf("expected %s, got %T", kind, v)
}
