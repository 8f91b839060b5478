package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
)

const keyTokenOwner = "token:owner"

func minterKey(a common.Address) string {
	return "token:minter:" + a.Hex()
}

// Token is an ERC20 whose full supply is minted to the deployer.
//
// Constructor arguments: name string, symbol string, decimals uint8,
// supply *big.Int (raw units). The deployer owns the token and is its first
// minter; addMinter registers more (faucet-dispensing contracts).
type Token struct {
	erc20
	faucet   bool
	handlers map[ledger.Operation]simchain.Handler
}

// NewToken returns a plain ERC20 token.
func NewToken() *Token {
	t := &Token{}
	t.handlers = t.erc20.dispatch()
	t.handlers[ledger.OpMint] = t.mintTo
	t.handlers[ledger.OpAddMinter] = t.addMinter
	return t
}

// NewFaucetToken returns a token that additionally mints the supply to its
// own address at deployment, matching the faucet ERC20 the school and
// marketplace contracts dispense from.
func NewFaucetToken() *Token {
	t := NewToken()
	t.faucet = true
	return t
}

// Kind implements simchain.Contract.
func (t *Token) Kind() string {
	if t.faucet {
		return "faucet-token"
	}
	return "token"
}

// Handlers implements simchain.Contract.
func (t *Token) Handlers() map[ledger.Operation]simchain.Handler {
	return t.handlers
}

// Init implements simchain.Initializer.
func (t *Token) Init(env *simchain.Env, args []any) error {
	if len(args) != 4 {
		return fmt.Errorf("token constructor: expected 4 arguments, got %d", len(args))
	}
	name, ok1 := args[0].(string)
	symbol, ok2 := args[1].(string)
	decimals, ok3 := args[2].(uint8)
	supply, ok4 := args[3].(*big.Int)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return fmt.Errorf("token constructor: want (string, string, uint8, *big.Int), got (%T, %T, %T, %T)",
			args[0], args[1], args[2], args[3])
	}

	if err := t.setMetadata(env, name, symbol, decimals); err != nil {
		return err
	}
	if err := env.PutAddress(keyTokenOwner, env.Caller()); err != nil {
		return err
	}
	if err := env.PutBool(minterKey(env.Caller()), true); err != nil {
		return err
	}
	if err := t.mint(env, env.Caller(), supply); err != nil {
		return err
	}
	if t.faucet {
		return t.mint(env, env.Self(), supply)
	}
	return nil
}

func (t *Token) mintTo(env *simchain.Env, args []any) ([]any, error) {
	ok, err := env.GetBool(minterKey(env.Caller()))
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(ok, "Token: caller is not a minter"); err != nil {
		return nil, err
	}
	to := args[0].(common.Address)
	if err := simchain.Require(to != (common.Address{}), "ERC20: mint to the zero address"); err != nil {
		return nil, err
	}
	return nil, t.mint(env, to, args[1].(*big.Int))
}

func (t *Token) addMinter(env *simchain.Env, args []any) ([]any, error) {
	owner, err := env.GetAddress(keyTokenOwner)
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(env.Caller() == owner, "Token: caller is not the owner"); err != nil {
		return nil, err
	}
	minter := args[0].(common.Address)
	if err := env.PutBool(minterKey(minter), true); err != nil {
		return nil, err
	}
	env.Emit("MinterAdded", map[string]any{"minter": minter})
	return nil, nil
}

// WETH wraps the native currency one-to-one as an 18-decimal token.
type WETH struct {
	erc20
	handlers map[ledger.Operation]simchain.Handler
}

// NewWETH returns a wrapped-ether contract.
func NewWETH() *WETH {
	w := &WETH{}
	w.handlers = w.erc20.dispatch()
	w.handlers[ledger.OpDeposit] = w.deposit
	w.handlers[ledger.OpWithdraw] = w.withdraw
	return w
}

// Kind implements simchain.Contract.
func (w *WETH) Kind() string { return "weth" }

// Handlers implements simchain.Contract.
func (w *WETH) Handlers() map[ledger.Operation]simchain.Handler { return w.handlers }

// Init implements simchain.Initializer.
func (w *WETH) Init(env *simchain.Env, _ []any) error {
	return w.setMetadata(env, "Wrapped Ether", "WETH", 18)
}

func (w *WETH) deposit(env *simchain.Env, _ []any) ([]any, error) {
	return nil, w.mint(env, env.Caller(), env.Value())
}

func (w *WETH) withdraw(env *simchain.Env, args []any) ([]any, error) {
	amount := args[0].(*big.Int)
	bal, err := w.balanceOf(env, env.Caller())
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(bal.Cmp(amount) >= 0, "WETH: insufficient balance"); err != nil {
		return nil, err
	}
	if err := w.burn(env, env.Caller(), amount); err != nil {
		return nil, err
	}
	return nil, env.SendValue(env.Caller(), amount)
}
