package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
)

const (
	keyPairFactory  = "pair:factory"
	keyPairToken0   = "pair:token0"
	keyPairToken1   = "pair:token1"
	keyPairReserve0 = "pair:reserve0"
	keyPairReserve1 = "pair:reserve1"
	keyPairLastTime = "pair:timestamp"
)

// Pair is a constant-product pool for two tokens. It is also the
// 18-decimal liquidity token ("UNI-V2") minted to liquidity providers.
//
// Pairs are created by Factory; constructor arguments are the sorted
// token0 and token1 addresses.
type Pair struct {
	erc20
	handlers map[ledger.Operation]simchain.Handler
}

// NewPair returns a pair contract.
func NewPair() *Pair {
	p := &Pair{}
	p.handlers = p.erc20.dispatch()
	p.handlers[ledger.OpGetReserves] = p.getReserves
	p.handlers[ledger.OpToken0] = p.token(keyPairToken0)
	p.handlers[ledger.OpToken1] = p.token(keyPairToken1)
	p.handlers[ledger.OpPairMint] = p.mintLiquidity
	p.handlers[ledger.OpPairBurn] = p.burnLiquidity
	p.handlers[ledger.OpPairSwap] = p.swap
	return p
}

// Kind implements simchain.Contract.
func (p *Pair) Kind() string { return "pair" }

// Handlers implements simchain.Contract.
func (p *Pair) Handlers() map[ledger.Operation]simchain.Handler { return p.handlers }

// Init implements simchain.Initializer.
func (p *Pair) Init(env *simchain.Env, args []any) error {
	if len(args) != 2 {
		return fmt.Errorf("pair constructor: expected 2 arguments, got %d", len(args))
	}
	token0, ok0 := args[0].(common.Address)
	token1, ok1 := args[1].(common.Address)
	if !ok0 || !ok1 {
		return fmt.Errorf("pair constructor: want (address, address), got (%T, %T)", args[0], args[1])
	}
	if err := p.setMetadata(env, "Uniswap V2", "UNI-V2", 18); err != nil {
		return err
	}
	if err := env.PutAddress(keyPairFactory, env.Caller()); err != nil {
		return err
	}
	if err := env.PutAddress(keyPairToken0, token0); err != nil {
		return err
	}
	return env.PutAddress(keyPairToken1, token1)
}

func (p *Pair) token(key string) simchain.Handler {
	return func(env *simchain.Env, _ []any) ([]any, error) {
		addr, err := env.GetAddress(key)
		return []any{addr}, err
	}
}

func (p *Pair) reserves(env *simchain.Env) (*big.Int, *big.Int, error) {
	r0, err := env.GetBig(keyPairReserve0)
	if err != nil {
		return nil, nil, err
	}
	r1, err := env.GetBig(keyPairReserve1)
	if err != nil {
		return nil, nil, err
	}
	return r0, r1, nil
}

func (p *Pair) getReserves(env *simchain.Env, _ []any) ([]any, error) {
	r0, r1, err := p.reserves(env)
	if err != nil {
		return nil, err
	}
	last, err := env.GetUint(keyPairLastTime)
	if err != nil {
		return nil, err
	}
	return []any{r0, r1, last}, nil
}

// tokenBalances reads the pair's holdings of token0 and token1.
func (p *Pair) tokenBalances(env *simchain.Env) (token0, token1 common.Address, bal0, bal1 *big.Int, err error) {
	if token0, err = env.GetAddress(keyPairToken0); err != nil {
		return
	}
	if token1, err = env.GetAddress(keyPairToken1); err != nil {
		return
	}
	if bal0, err = tokenBalance(env, token0, env.Self()); err != nil {
		return
	}
	bal1, err = tokenBalance(env, token1, env.Self())
	return
}

func (p *Pair) update(env *simchain.Env, bal0, bal1 *big.Int) error {
	if err := env.PutBig(keyPairReserve0, bal0); err != nil {
		return err
	}
	if err := env.PutBig(keyPairReserve1, bal1); err != nil {
		return err
	}
	if err := env.PutUint(keyPairLastTime, uint64(env.Now().Unix())); err != nil {
		return err
	}
	env.Emit("Sync", map[string]any{"reserve0": new(big.Int).Set(bal0), "reserve1": new(big.Int).Set(bal1)})
	return nil
}

// mintLiquidity credits LP tokens for whatever was transferred in since the
// last update.
func (p *Pair) mintLiquidity(env *simchain.Env, args []any) ([]any, error) {
	to := args[0].(common.Address)
	r0, r1, err := p.reserves(env)
	if err != nil {
		return nil, err
	}
	_, _, bal0, bal1, err := p.tokenBalances(env)
	if err != nil {
		return nil, err
	}
	amount0 := new(big.Int).Sub(bal0, r0)
	amount1 := new(big.Int).Sub(bal1, r1)

	supply, err := p.totalSupply(env)
	if err != nil {
		return nil, err
	}
	var liquidity *big.Int
	if supply.Sign() == 0 {
		product := new(big.Int).Mul(amount0, amount1)
		if product.Sign() <= 0 {
			return nil, simchain.Reverted("UniswapV2: INSUFFICIENT_LIQUIDITY_MINTED")
		}
		liquidity = new(big.Int).Sqrt(product)
		liquidity.Sub(liquidity, MinimumLiquidity)
		if liquidity.Sign() > 0 {
			if err := p.mint(env, common.Address{}, MinimumLiquidity); err != nil {
				return nil, err
			}
		}
	} else {
		l0 := new(big.Int).Mul(amount0, supply)
		l0.Quo(l0, r0)
		l1 := new(big.Int).Mul(amount1, supply)
		l1.Quo(l1, r1)
		liquidity = minBig(l0, l1)
	}
	if err := simchain.Require(liquidity.Sign() > 0, "UniswapV2: INSUFFICIENT_LIQUIDITY_MINTED"); err != nil {
		return nil, err
	}
	if err := p.mint(env, to, liquidity); err != nil {
		return nil, err
	}
	if err := p.update(env, bal0, bal1); err != nil {
		return nil, err
	}
	env.Emit("Mint", map[string]any{"sender": env.Caller(), "amount0": amount0, "amount1": amount1})
	return []any{liquidity}, nil
}

// burnLiquidity redeems the LP tokens held by the pair itself.
func (p *Pair) burnLiquidity(env *simchain.Env, args []any) ([]any, error) {
	to := args[0].(common.Address)
	token0, token1, bal0, bal1, err := p.tokenBalances(env)
	if err != nil {
		return nil, err
	}
	liquidity, err := p.balanceOf(env, env.Self())
	if err != nil {
		return nil, err
	}
	supply, err := p.totalSupply(env)
	if err != nil {
		return nil, err
	}
	if supply.Sign() == 0 {
		return nil, simchain.Reverted("UniswapV2: INSUFFICIENT_LIQUIDITY_BURNED")
	}
	amount0 := new(big.Int).Mul(liquidity, bal0)
	amount0.Quo(amount0, supply)
	amount1 := new(big.Int).Mul(liquidity, bal1)
	amount1.Quo(amount1, supply)
	if err := simchain.Require(amount0.Sign() > 0 && amount1.Sign() > 0, "UniswapV2: INSUFFICIENT_LIQUIDITY_BURNED"); err != nil {
		return nil, err
	}

	if err := p.burn(env, env.Self(), liquidity); err != nil {
		return nil, err
	}
	if _, err := env.Call(token0, ledger.OpTransfer, to, amount0); err != nil {
		return nil, err
	}
	if _, err := env.Call(token1, ledger.OpTransfer, to, amount1); err != nil {
		return nil, err
	}
	if _, _, bal0, bal1, err = p.tokenBalances(env); err != nil {
		return nil, err
	}
	if err := p.update(env, bal0, bal1); err != nil {
		return nil, err
	}
	env.Emit("Burn", map[string]any{"sender": env.Caller(), "amount0": amount0, "amount1": amount1, "to": to})
	return []any{amount0, amount1}, nil
}

// swap sends the requested outputs and checks the constant-product
// invariant, net of the 0.3% fee, against what was paid in.
func (p *Pair) swap(env *simchain.Env, args []any) ([]any, error) {
	amount0Out, amount1Out, to := args[0].(*big.Int), args[1].(*big.Int), args[2].(common.Address)
	if err := simchain.Require(amount0Out.Sign() > 0 || amount1Out.Sign() > 0, "UniswapV2: INSUFFICIENT_OUTPUT_AMOUNT"); err != nil {
		return nil, err
	}
	r0, r1, err := p.reserves(env)
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(amount0Out.Cmp(r0) < 0 && amount1Out.Cmp(r1) < 0, "UniswapV2: INSUFFICIENT_LIQUIDITY"); err != nil {
		return nil, err
	}

	token0, err := env.GetAddress(keyPairToken0)
	if err != nil {
		return nil, err
	}
	token1, err := env.GetAddress(keyPairToken1)
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(to != token0 && to != token1, "UniswapV2: INVALID_TO"); err != nil {
		return nil, err
	}
	if amount0Out.Sign() > 0 {
		if _, err := env.Call(token0, ledger.OpTransfer, to, amount0Out); err != nil {
			return nil, err
		}
	}
	if amount1Out.Sign() > 0 {
		if _, err := env.Call(token1, ledger.OpTransfer, to, amount1Out); err != nil {
			return nil, err
		}
	}

	_, _, bal0, bal1, err := p.tokenBalances(env)
	if err != nil {
		return nil, err
	}
	amount0In := amountIn(bal0, r0, amount0Out)
	amount1In := amountIn(bal1, r1, amount1Out)
	if err := simchain.Require(amount0In.Sign() > 0 || amount1In.Sign() > 0, "UniswapV2: INSUFFICIENT_INPUT_AMOUNT"); err != nil {
		return nil, err
	}

	adj0 := feeAdjusted(bal0, amount0In)
	adj1 := feeAdjusted(bal1, amount1In)
	k := new(big.Int).Mul(r0, r1)
	k.Mul(k, big.NewInt(1_000_000))
	if err := simchain.Require(new(big.Int).Mul(adj0, adj1).Cmp(k) >= 0, "UniswapV2: K"); err != nil {
		return nil, err
	}

	if err := p.update(env, bal0, bal1); err != nil {
		return nil, err
	}
	env.Emit("Swap", map[string]any{
		"sender":     env.Caller(),
		"amount0In":  amount0In,
		"amount1In":  amount1In,
		"amount0Out": new(big.Int).Set(amount0Out),
		"amount1Out": new(big.Int).Set(amount1Out),
		"to":         to,
	})
	return nil, nil
}

// amountIn is what arrived beyond reserve - out, or zero.
func amountIn(balance, reserve, out *big.Int) *big.Int {
	floor := new(big.Int).Sub(reserve, out)
	if balance.Cmp(floor) <= 0 {
		return new(big.Int)
	}
	return floor.Sub(balance, floor)
}

// feeAdjusted returns balance*1000 - in*3.
func feeAdjusted(balance, in *big.Int) *big.Int {
	adj := new(big.Int).Mul(balance, big.NewInt(1000))
	return adj.Sub(adj, new(big.Int).Mul(in, big.NewInt(3)))
}

// tokenBalance calls balanceOf(holder) on token.
func tokenBalance(env *simchain.Env, token, holder common.Address) (*big.Int, error) {
	out, err := env.Call(token, ledger.OpBalanceOf, holder)
	if err != nil {
		return nil, err
	}
	return ledger.BigAt(out, 0)
}
