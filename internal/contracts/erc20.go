package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
)

const (
	keyName     = "erc20:name"
	keySymbol   = "erc20:symbol"
	keyDecimals = "erc20:decimals"
	keySupply   = "erc20:supply"
)

func balanceKey(holder common.Address) string {
	return "erc20:balance:" + holder.Hex()
}

func allowanceKey(owner, spender common.Address) string {
	return "erc20:allowance:" + owner.Hex() + ":" + spender.Hex()
}

// erc20 is the fungible-token bookkeeping shared by Token, WETH and the
// pair's liquidity token. It works on whatever contract env executes.
type erc20 struct{}

func (erc20) setMetadata(env *simchain.Env, name, symbol string, decimals uint8) error {
	if err := env.PutString(keyName, name); err != nil {
		return err
	}
	if err := env.PutString(keySymbol, symbol); err != nil {
		return err
	}
	return env.PutUint(keyDecimals, uint64(decimals))
}

func (erc20) balanceOf(env *simchain.Env, holder common.Address) (*big.Int, error) {
	return env.GetBig(balanceKey(holder))
}

func (erc20) totalSupply(env *simchain.Env) (*big.Int, error) {
	return env.GetBig(keySupply)
}

func (erc20) allowance(env *simchain.Env, owner, spender common.Address) (*big.Int, error) {
	return env.GetBig(allowanceKey(owner, spender))
}

// transfer moves amount between holders with the OpenZeppelin checks.
func (t erc20) transfer(env *simchain.Env, from, to common.Address, amount *big.Int) error {
	if err := simchain.Require(from != (common.Address{}), "ERC20: transfer from the zero address"); err != nil {
		return err
	}
	if err := simchain.Require(to != (common.Address{}), "ERC20: transfer to the zero address"); err != nil {
		return err
	}
	fromBal, err := t.balanceOf(env, from)
	if err != nil {
		return err
	}
	if err := simchain.Require(fromBal.Cmp(amount) >= 0, "ERC20: transfer amount exceeds balance"); err != nil {
		return err
	}
	if err := env.PutBig(balanceKey(from), fromBal.Sub(fromBal, amount)); err != nil {
		return err
	}
	toBal, err := t.balanceOf(env, to)
	if err != nil {
		return err
	}
	if err := env.PutBig(balanceKey(to), toBal.Add(toBal, amount)); err != nil {
		return err
	}
	env.Emit("Transfer", map[string]any{"from": from, "to": to, "value": new(big.Int).Set(amount)})
	return nil
}

// approve overwrites the allowance of spender over owner's balance.
func (erc20) approve(env *simchain.Env, owner, spender common.Address, amount *big.Int) error {
	if err := simchain.Require(owner != (common.Address{}), "ERC20: approve from the zero address"); err != nil {
		return err
	}
	if err := simchain.Require(spender != (common.Address{}), "ERC20: approve to the zero address"); err != nil {
		return err
	}
	if err := env.PutBig(allowanceKey(owner, spender), amount); err != nil {
		return err
	}
	env.Emit("Approval", map[string]any{"owner": owner, "spender": spender, "value": new(big.Int).Set(amount)})
	return nil
}

// spendAllowance consumes amount of spender's allowance over owner.
func (t erc20) spendAllowance(env *simchain.Env, owner, spender common.Address, amount *big.Int) error {
	current, err := t.allowance(env, owner, spender)
	if err != nil {
		return err
	}
	if err := simchain.Require(current.Cmp(amount) >= 0, "ERC20: insufficient allowance"); err != nil {
		return err
	}
	return env.PutBig(allowanceKey(owner, spender), current.Sub(current, amount))
}

// mint credits to and grows the supply. Callers enforce any access rules;
// the pair mints its locked minimum liquidity to the zero address.
func (t erc20) mint(env *simchain.Env, to common.Address, amount *big.Int) error {
	supply, err := t.totalSupply(env)
	if err != nil {
		return err
	}
	if err := env.PutBig(keySupply, supply.Add(supply, amount)); err != nil {
		return err
	}
	bal, err := t.balanceOf(env, to)
	if err != nil {
		return err
	}
	if err := env.PutBig(balanceKey(to), bal.Add(bal, amount)); err != nil {
		return err
	}
	env.Emit("Transfer", map[string]any{"from": common.Address{}, "to": to, "value": new(big.Int).Set(amount)})
	return nil
}

func (t erc20) burn(env *simchain.Env, from common.Address, amount *big.Int) error {
	bal, err := t.balanceOf(env, from)
	if err != nil {
		return err
	}
	if err := simchain.Require(bal.Cmp(amount) >= 0, "ERC20: burn amount exceeds balance"); err != nil {
		return err
	}
	if err := env.PutBig(balanceKey(from), bal.Sub(bal, amount)); err != nil {
		return err
	}
	supply, err := t.totalSupply(env)
	if err != nil {
		return err
	}
	if err := env.PutBig(keySupply, supply.Sub(supply, amount)); err != nil {
		return err
	}
	env.Emit("Transfer", map[string]any{"from": from, "to": common.Address{}, "value": new(big.Int).Set(amount)})
	return nil
}

// dispatch returns the standard ERC20 handler entries.
func (t erc20) dispatch() map[ledger.Operation]simchain.Handler {
	return map[ledger.Operation]simchain.Handler{
		ledger.OpName: func(env *simchain.Env, _ []any) ([]any, error) {
			name, err := env.GetString(keyName)
			return []any{name}, err
		},
		ledger.OpSymbol: func(env *simchain.Env, _ []any) ([]any, error) {
			symbol, err := env.GetString(keySymbol)
			return []any{symbol}, err
		},
		ledger.OpDecimals: func(env *simchain.Env, _ []any) ([]any, error) {
			d, err := env.GetUint(keyDecimals)
			return []any{uint8(d)}, err
		},
		ledger.OpTotalSupply: func(env *simchain.Env, _ []any) ([]any, error) {
			supply, err := t.totalSupply(env)
			return []any{supply}, err
		},
		ledger.OpBalanceOf: func(env *simchain.Env, args []any) ([]any, error) {
			bal, err := t.balanceOf(env, args[0].(common.Address))
			return []any{bal}, err
		},
		ledger.OpAllowance: func(env *simchain.Env, args []any) ([]any, error) {
			a, err := t.allowance(env, args[0].(common.Address), args[1].(common.Address))
			return []any{a}, err
		},
		ledger.OpTransfer: func(env *simchain.Env, args []any) ([]any, error) {
			if err := t.transfer(env, env.Caller(), args[0].(common.Address), args[1].(*big.Int)); err != nil {
				return nil, err
			}
			return []any{true}, nil
		},
		ledger.OpApprove: func(env *simchain.Env, args []any) ([]any, error) {
			if err := t.approve(env, env.Caller(), args[0].(common.Address), args[1].(*big.Int)); err != nil {
				return nil, err
			}
			return []any{true}, nil
		},
		ledger.OpTransferFrom: func(env *simchain.Env, args []any) ([]any, error) {
			from, to, amount := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
			if err := t.spendAllowance(env, from, env.Caller(), amount); err != nil {
				return nil, err
			}
			if err := t.transfer(env, from, to, amount); err != nil {
				return nil, err
			}
			return []any{true}, nil
		},
	}
}
