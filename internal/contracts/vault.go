package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
)

func etherSavingsKey(a common.Address) string { return "vault:ether:" + a.Hex() }

func tokenSavingsKey(a, token common.Address) string {
	return "vault:erc20:" + token.Hex() + ":" + a.Hex()
}

// Vault keeps per-depositor savings of ether and any ERC20. Depositors
// can only withdraw what they saved.
type Vault struct {
	handlers map[ledger.Operation]simchain.Handler
}

// NewVault returns a savings vault contract.
func NewVault() *Vault {
	v := &Vault{}
	v.handlers = map[ledger.Operation]simchain.Handler{
		ledger.OpDepositEther:   v.depositEther,
		ledger.OpDepositErc20:   v.depositErc20,
		ledger.OpWithdrawEther:  v.withdrawEther,
		ledger.OpWithdrawErc20:  v.withdrawErc20,
		ledger.OpEtherBalanceOf: v.etherBalanceOf,
		ledger.OpErc20BalanceOf: v.erc20BalanceOf,
	}
	return v
}

// Kind implements simchain.Contract.
func (v *Vault) Kind() string { return "vault" }

// Handlers implements simchain.Contract.
func (v *Vault) Handlers() map[ledger.Operation]simchain.Handler { return v.handlers }

func (v *Vault) credit(env *simchain.Env, key string, amount *big.Int) error {
	bal, err := env.GetBig(key)
	if err != nil {
		return err
	}
	return env.PutBig(key, bal.Add(bal, amount))
}

func (v *Vault) debit(env *simchain.Env, key string, amount *big.Int) error {
	bal, err := env.GetBig(key)
	if err != nil {
		return err
	}
	if err := simchain.Require(amount.Sign() > 0, "Cannot withdraw zero"); err != nil {
		return err
	}
	if err := simchain.Require(bal.Cmp(amount) >= 0, "Insufficient savings"); err != nil {
		return err
	}
	return env.PutBig(key, bal.Sub(bal, amount))
}

func (v *Vault) depositEther(env *simchain.Env, _ []any) ([]any, error) {
	amount := env.Value()
	if err := simchain.Require(amount.Sign() > 0, "Cannot deposit zero"); err != nil {
		return nil, err
	}
	if err := v.credit(env, etherSavingsKey(env.Caller()), amount); err != nil {
		return nil, err
	}
	env.Emit("EtherDeposited", map[string]any{"from": env.Caller(), "amount": amount})
	return nil, nil
}

func (v *Vault) depositErc20(env *simchain.Env, args []any) ([]any, error) {
	token, amount := args[0].(common.Address), args[1].(*big.Int)
	if err := simchain.Require(amount.Sign() > 0, "Cannot deposit zero"); err != nil {
		return nil, err
	}
	if _, err := env.Call(token, ledger.OpTransferFrom, env.Caller(), env.Self(), amount); err != nil {
		return nil, err
	}
	if err := v.credit(env, tokenSavingsKey(env.Caller(), token), amount); err != nil {
		return nil, err
	}
	env.Emit("Erc20Deposited", map[string]any{"from": env.Caller(), "token": token, "amount": new(big.Int).Set(amount)})
	return nil, nil
}

func (v *Vault) withdrawEther(env *simchain.Env, args []any) ([]any, error) {
	amount := args[0].(*big.Int)
	if err := v.debit(env, etherSavingsKey(env.Caller()), amount); err != nil {
		return nil, err
	}
	if err := env.SendValue(env.Caller(), amount); err != nil {
		return nil, err
	}
	env.Emit("EtherWithdrawn", map[string]any{"to": env.Caller(), "amount": new(big.Int).Set(amount)})
	return nil, nil
}

func (v *Vault) withdrawErc20(env *simchain.Env, args []any) ([]any, error) {
	token, amount := args[0].(common.Address), args[1].(*big.Int)
	if err := v.debit(env, tokenSavingsKey(env.Caller(), token), amount); err != nil {
		return nil, err
	}
	if _, err := env.Call(token, ledger.OpTransfer, env.Caller(), amount); err != nil {
		return nil, err
	}
	env.Emit("Erc20Withdrawn", map[string]any{"to": env.Caller(), "token": token, "amount": new(big.Int).Set(amount)})
	return nil, nil
}

func (v *Vault) etherBalanceOf(env *simchain.Env, args []any) ([]any, error) {
	bal, err := env.GetBig(etherSavingsKey(args[0].(common.Address)))
	return []any{bal}, err
}

func (v *Vault) erc20BalanceOf(env *simchain.Env, args []any) ([]any, error) {
	bal, err := env.GetBig(tokenSavingsKey(args[0].(common.Address), args[1].(common.Address)))
	return []any{bal}, err
}
