package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
)

const (
	keyRouterFactory = "router:factory"
	keyRouterWETH    = "router:weth"
)

// Router is the user-facing AMM entry point: liquidity management and
// multi-hop swaps over pairs created by its factory, with native-currency
// variants routed through WETH. Every write takes a deadline.
//
// Constructor arguments: factory address, WETH address.
type Router struct {
	handlers map[ledger.Operation]simchain.Handler
}

// NewRouter returns a router contract.
func NewRouter() *Router {
	r := &Router{}
	r.handlers = map[ledger.Operation]simchain.Handler{
		ledger.OpAddLiquidity:             r.addLiquidity,
		ledger.OpAddLiquidityETH:          r.addLiquidityETH,
		ledger.OpRemoveLiquidity:          r.removeLiquidity,
		ledger.OpRemoveLiquidityETH:       r.removeLiquidityETH,
		ledger.OpSwapExactTokensForTokens: r.swapExactTokensForTokens,
		ledger.OpSwapTokensForExactTokens: r.swapTokensForExactTokens,
		ledger.OpSwapExactETHForTokens:    r.swapExactETHForTokens,
		ledger.OpSwapETHForExactTokens:    r.swapETHForExactTokens,
		ledger.OpSwapTokensForExactETH:    r.swapTokensForExactETH,
		ledger.OpSwapExactTokensForETH:    r.swapExactTokensForETH,
		ledger.OpGetAmountsOut:            r.getAmountsOut,
		ledger.OpGetAmountsIn:             r.getAmountsIn,
		ledger.OpQuote:                    r.quote,
	}
	return r
}

// Kind implements simchain.Contract.
func (r *Router) Kind() string { return "router" }

// Handlers implements simchain.Contract.
func (r *Router) Handlers() map[ledger.Operation]simchain.Handler { return r.handlers }

// Init implements simchain.Initializer.
func (r *Router) Init(env *simchain.Env, args []any) error {
	if len(args) != 2 {
		return fmt.Errorf("router constructor: expected 2 arguments, got %d", len(args))
	}
	factory, ok0 := args[0].(common.Address)
	weth, ok1 := args[1].(common.Address)
	if !ok0 || !ok1 {
		return fmt.Errorf("router constructor: want (address, address), got (%T, %T)", args[0], args[1])
	}
	if err := env.PutAddress(keyRouterFactory, factory); err != nil {
		return err
	}
	return env.PutAddress(keyRouterWETH, weth)
}

// ensure checks the trailing deadline argument against the block time.
func ensure(env *simchain.Env, args []any) error {
	deadline, ok := args[len(args)-1].(*big.Int)
	if !ok {
		return fmt.Errorf("deadline argument missing")
	}
	return simchain.Require(deadline.Cmp(big.NewInt(env.Now().Unix())) >= 0, "UniswapV2Router: EXPIRED")
}

func (r *Router) addresses(env *simchain.Env) (factory, weth common.Address, err error) {
	if factory, err = env.GetAddress(keyRouterFactory); err != nil {
		return
	}
	weth, err = env.GetAddress(keyRouterWETH)
	return
}

func (r *Router) pairFor(env *simchain.Env, a, b common.Address) (common.Address, error) {
	factory, _, err := r.addresses(env)
	if err != nil {
		return common.Address{}, err
	}
	out, err := env.Call(factory, ledger.OpGetPair, a, b)
	if err != nil {
		return common.Address{}, err
	}
	pair, err := ledger.AddressAt(out, 0)
	if err != nil {
		return common.Address{}, err
	}
	if pair == (common.Address{}) {
		return common.Address{}, simchain.Reverted("UniswapV2Library: PAIR_NOT_FOUND")
	}
	return pair, nil
}

// reserves returns the reserves of a and b in argument order.
func (r *Router) reserves(env *simchain.Env, a, b common.Address) (*big.Int, *big.Int, error) {
	token0, _, err := SortTokens(a, b)
	if err != nil {
		return nil, nil, err
	}
	pair, err := r.pairFor(env, a, b)
	if err != nil {
		return nil, nil, err
	}
	out, err := env.Call(pair, ledger.OpGetReserves)
	if err != nil {
		return nil, nil, err
	}
	r0, err := ledger.BigAt(out, 0)
	if err != nil {
		return nil, nil, err
	}
	r1, err := ledger.BigAt(out, 1)
	if err != nil {
		return nil, nil, err
	}
	if a == token0 {
		return r0, r1, nil
	}
	return r1, r0, nil
}

func (r *Router) reserveFunc(env *simchain.Env) Reserves {
	return func(in, out common.Address) (*big.Int, *big.Int, error) {
		return r.reserves(env, in, out)
	}
}

// liquidityAmounts picks the deposit amounts for the current pool ratio,
// creating the pair if it does not exist yet.
func (r *Router) liquidityAmounts(env *simchain.Env, a, b common.Address, aDesired, bDesired, aMin, bMin *big.Int) (*big.Int, *big.Int, error) {
	factory, _, err := r.addresses(env)
	if err != nil {
		return nil, nil, err
	}
	out, err := env.Call(factory, ledger.OpGetPair, a, b)
	if err != nil {
		return nil, nil, err
	}
	if pair, _ := ledger.AddressAt(out, 0); pair == (common.Address{}) {
		if _, err := env.Call(factory, ledger.OpCreatePair, a, b); err != nil {
			return nil, nil, err
		}
	}

	rA, rB, err := r.reserves(env, a, b)
	if err != nil {
		return nil, nil, err
	}
	if rA.Sign() == 0 && rB.Sign() == 0 {
		return new(big.Int).Set(aDesired), new(big.Int).Set(bDesired), nil
	}

	bOptimal, err := Quote(aDesired, rA, rB)
	if err != nil {
		return nil, nil, err
	}
	if bOptimal.Cmp(bDesired) <= 0 {
		if err := simchain.Require(bOptimal.Cmp(bMin) >= 0, "UniswapV2Router: INSUFFICIENT_B_AMOUNT"); err != nil {
			return nil, nil, err
		}
		return new(big.Int).Set(aDesired), bOptimal, nil
	}
	aOptimal, err := Quote(bDesired, rB, rA)
	if err != nil {
		return nil, nil, err
	}
	if aOptimal.Cmp(aDesired) > 0 {
		return nil, nil, fmt.Errorf("optimal amount %s exceeds desired %s", aOptimal, aDesired)
	}
	if err := simchain.Require(aOptimal.Cmp(aMin) >= 0, "UniswapV2Router: INSUFFICIENT_A_AMOUNT"); err != nil {
		return nil, nil, err
	}
	return aOptimal, new(big.Int).Set(bDesired), nil
}

func (r *Router) addLiquidity(env *simchain.Env, args []any) ([]any, error) {
	if err := ensure(env, args); err != nil {
		return nil, err
	}
	a, b := args[0].(common.Address), args[1].(common.Address)
	to := args[6].(common.Address)
	amountA, amountB, err := r.liquidityAmounts(env, a, b, args[2].(*big.Int), args[3].(*big.Int), args[4].(*big.Int), args[5].(*big.Int))
	if err != nil {
		return nil, err
	}
	pair, err := r.pairFor(env, a, b)
	if err != nil {
		return nil, err
	}
	if _, err := env.Call(a, ledger.OpTransferFrom, env.Caller(), pair, amountA); err != nil {
		return nil, err
	}
	if _, err := env.Call(b, ledger.OpTransferFrom, env.Caller(), pair, amountB); err != nil {
		return nil, err
	}
	out, err := env.Call(pair, ledger.OpPairMint, to)
	if err != nil {
		return nil, err
	}
	liquidity, err := ledger.BigAt(out, 0)
	if err != nil {
		return nil, err
	}
	return []any{amountA, amountB, liquidity}, nil
}

func (r *Router) addLiquidityETH(env *simchain.Env, args []any) ([]any, error) {
	if err := ensure(env, args); err != nil {
		return nil, err
	}
	_, weth, err := r.addresses(env)
	if err != nil {
		return nil, err
	}
	token := args[0].(common.Address)
	to := args[4].(common.Address)
	amountToken, amountETH, err := r.liquidityAmounts(env, token, weth, args[1].(*big.Int), env.Value(), args[2].(*big.Int), args[3].(*big.Int))
	if err != nil {
		return nil, err
	}
	pair, err := r.pairFor(env, token, weth)
	if err != nil {
		return nil, err
	}
	if _, err := env.Call(token, ledger.OpTransferFrom, env.Caller(), pair, amountToken); err != nil {
		return nil, err
	}
	if err := r.wrapTo(env, weth, pair, amountETH); err != nil {
		return nil, err
	}
	out, err := env.Call(pair, ledger.OpPairMint, to)
	if err != nil {
		return nil, err
	}
	liquidity, err := ledger.BigAt(out, 0)
	if err != nil {
		return nil, err
	}
	if err := r.refund(env, amountETH); err != nil {
		return nil, err
	}
	return []any{amountToken, amountETH, liquidity}, nil
}

// removeLiquidityTo burns the caller's LP tokens and sends both sides to to.
func (r *Router) removeLiquidityTo(env *simchain.Env, a, b common.Address, liquidity, aMin, bMin *big.Int, to common.Address) (*big.Int, *big.Int, error) {
	pair, err := r.pairFor(env, a, b)
	if err != nil {
		return nil, nil, err
	}
	if _, err := env.Call(pair, ledger.OpTransferFrom, env.Caller(), pair, liquidity); err != nil {
		return nil, nil, err
	}
	out, err := env.Call(pair, ledger.OpPairBurn, to)
	if err != nil {
		return nil, nil, err
	}
	amount0, err := ledger.BigAt(out, 0)
	if err != nil {
		return nil, nil, err
	}
	amount1, err := ledger.BigAt(out, 1)
	if err != nil {
		return nil, nil, err
	}
	token0, _, err := SortTokens(a, b)
	if err != nil {
		return nil, nil, err
	}
	amountA, amountB := amount0, amount1
	if a != token0 {
		amountA, amountB = amount1, amount0
	}
	if err := simchain.Require(amountA.Cmp(aMin) >= 0, "UniswapV2Router: INSUFFICIENT_A_AMOUNT"); err != nil {
		return nil, nil, err
	}
	if err := simchain.Require(amountB.Cmp(bMin) >= 0, "UniswapV2Router: INSUFFICIENT_B_AMOUNT"); err != nil {
		return nil, nil, err
	}
	return amountA, amountB, nil
}

func (r *Router) removeLiquidity(env *simchain.Env, args []any) ([]any, error) {
	if err := ensure(env, args); err != nil {
		return nil, err
	}
	amountA, amountB, err := r.removeLiquidityTo(env,
		args[0].(common.Address), args[1].(common.Address),
		args[2].(*big.Int), args[3].(*big.Int), args[4].(*big.Int),
		args[5].(common.Address))
	if err != nil {
		return nil, err
	}
	return []any{amountA, amountB}, nil
}

func (r *Router) removeLiquidityETH(env *simchain.Env, args []any) ([]any, error) {
	if err := ensure(env, args); err != nil {
		return nil, err
	}
	_, weth, err := r.addresses(env)
	if err != nil {
		return nil, err
	}
	token := args[0].(common.Address)
	to := args[4].(common.Address)
	amountToken, amountETH, err := r.removeLiquidityTo(env, token, weth, args[1].(*big.Int), args[2].(*big.Int), args[3].(*big.Int), env.Self())
	if err != nil {
		return nil, err
	}
	if _, err := env.Call(token, ledger.OpTransfer, to, amountToken); err != nil {
		return nil, err
	}
	if _, err := env.Call(weth, ledger.OpWithdraw, amountETH); err != nil {
		return nil, err
	}
	if err := env.SendValue(to, amountETH); err != nil {
		return nil, err
	}
	return []any{amountToken, amountETH}, nil
}

// swapAlong executes the hops for precomputed amounts. The first pair must
// already hold amounts[0] of path[0].
func (r *Router) swapAlong(env *simchain.Env, amounts []*big.Int, path []common.Address, to common.Address) error {
	for i := 0; i < len(path)-1; i++ {
		input, output := path[i], path[i+1]
		token0, _, err := SortTokens(input, output)
		if err != nil {
			return err
		}
		amount0Out, amount1Out := new(big.Int), new(big.Int).Set(amounts[i+1])
		if input != token0 {
			amount0Out, amount1Out = amount1Out, amount0Out
		}
		dest := to
		if i < len(path)-2 {
			if dest, err = r.pairFor(env, output, path[i+2]); err != nil {
				return err
			}
		}
		pair, err := r.pairFor(env, input, output)
		if err != nil {
			return err
		}
		if _, err := env.Call(pair, ledger.OpPairSwap, amount0Out, amount1Out, dest); err != nil {
			return err
		}
	}
	return nil
}

// payIn moves amount of path[0] from the caller to the first pair.
func (r *Router) payIn(env *simchain.Env, path []common.Address, amount *big.Int) error {
	pair, err := r.pairFor(env, path[0], path[1])
	if err != nil {
		return err
	}
	_, err = env.Call(path[0], ledger.OpTransferFrom, env.Caller(), pair, amount)
	return err
}

// wrapTo wraps amount of the router's native balance and sends it to dest.
func (r *Router) wrapTo(env *simchain.Env, weth, dest common.Address, amount *big.Int) error {
	if _, err := env.CallWithValue(weth, amount, ledger.OpDeposit); err != nil {
		return err
	}
	_, err := env.Call(weth, ledger.OpTransfer, dest, amount)
	return err
}

// refund returns attached value beyond used to the caller.
func (r *Router) refund(env *simchain.Env, used *big.Int) error {
	if dust := new(big.Int).Sub(env.Value(), used); dust.Sign() > 0 {
		return env.SendValue(env.Caller(), dust)
	}
	return nil
}

func (r *Router) swapExactTokensForTokens(env *simchain.Env, args []any) ([]any, error) {
	if err := ensure(env, args); err != nil {
		return nil, err
	}
	amountIn, amountOutMin := args[0].(*big.Int), args[1].(*big.Int)
	path, to := args[2].([]common.Address), args[3].(common.Address)
	amounts, err := GetAmountsOut(amountIn, path, r.reserveFunc(env))
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(amounts[len(amounts)-1].Cmp(amountOutMin) >= 0, "UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT"); err != nil {
		return nil, err
	}
	if err := r.payIn(env, path, amounts[0]); err != nil {
		return nil, err
	}
	if err := r.swapAlong(env, amounts, path, to); err != nil {
		return nil, err
	}
	return []any{amounts}, nil
}

func (r *Router) swapTokensForExactTokens(env *simchain.Env, args []any) ([]any, error) {
	if err := ensure(env, args); err != nil {
		return nil, err
	}
	amountOut, amountInMax := args[0].(*big.Int), args[1].(*big.Int)
	path, to := args[2].([]common.Address), args[3].(common.Address)
	amounts, err := GetAmountsIn(amountOut, path, r.reserveFunc(env))
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(amounts[0].Cmp(amountInMax) <= 0, "UniswapV2Router: EXCESSIVE_INPUT_AMOUNT"); err != nil {
		return nil, err
	}
	if err := r.payIn(env, path, amounts[0]); err != nil {
		return nil, err
	}
	if err := r.swapAlong(env, amounts, path, to); err != nil {
		return nil, err
	}
	return []any{amounts}, nil
}

func (r *Router) swapExactETHForTokens(env *simchain.Env, args []any) ([]any, error) {
	if err := ensure(env, args); err != nil {
		return nil, err
	}
	_, weth, err := r.addresses(env)
	if err != nil {
		return nil, err
	}
	amountOutMin, path, to := args[0].(*big.Int), args[1].([]common.Address), args[2].(common.Address)
	if err := simchain.Require(len(path) >= 2 && path[0] == weth, "UniswapV2Router: INVALID_PATH"); err != nil {
		return nil, err
	}
	amounts, err := GetAmountsOut(env.Value(), path, r.reserveFunc(env))
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(amounts[len(amounts)-1].Cmp(amountOutMin) >= 0, "UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT"); err != nil {
		return nil, err
	}
	pair, err := r.pairFor(env, path[0], path[1])
	if err != nil {
		return nil, err
	}
	if err := r.wrapTo(env, weth, pair, amounts[0]); err != nil {
		return nil, err
	}
	if err := r.swapAlong(env, amounts, path, to); err != nil {
		return nil, err
	}
	return []any{amounts}, nil
}

func (r *Router) swapETHForExactTokens(env *simchain.Env, args []any) ([]any, error) {
	if err := ensure(env, args); err != nil {
		return nil, err
	}
	_, weth, err := r.addresses(env)
	if err != nil {
		return nil, err
	}
	amountOut, path, to := args[0].(*big.Int), args[1].([]common.Address), args[2].(common.Address)
	if err := simchain.Require(len(path) >= 2 && path[0] == weth, "UniswapV2Router: INVALID_PATH"); err != nil {
		return nil, err
	}
	amounts, err := GetAmountsIn(amountOut, path, r.reserveFunc(env))
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(amounts[0].Cmp(env.Value()) <= 0, "UniswapV2Router: EXCESSIVE_INPUT_AMOUNT"); err != nil {
		return nil, err
	}
	pair, err := r.pairFor(env, path[0], path[1])
	if err != nil {
		return nil, err
	}
	if err := r.wrapTo(env, weth, pair, amounts[0]); err != nil {
		return nil, err
	}
	if err := r.swapAlong(env, amounts, path, to); err != nil {
		return nil, err
	}
	if err := r.refund(env, amounts[0]); err != nil {
		return nil, err
	}
	return []any{amounts}, nil
}

// swapToETH is shared by the two token-to-native swaps once amounts are known.
func (r *Router) swapToETH(env *simchain.Env, weth common.Address, amounts []*big.Int, path []common.Address, to common.Address) error {
	if err := r.payIn(env, path, amounts[0]); err != nil {
		return err
	}
	if err := r.swapAlong(env, amounts, path, env.Self()); err != nil {
		return err
	}
	out := amounts[len(amounts)-1]
	if _, err := env.Call(weth, ledger.OpWithdraw, out); err != nil {
		return err
	}
	return env.SendValue(to, out)
}

func (r *Router) swapTokensForExactETH(env *simchain.Env, args []any) ([]any, error) {
	if err := ensure(env, args); err != nil {
		return nil, err
	}
	_, weth, err := r.addresses(env)
	if err != nil {
		return nil, err
	}
	amountOut, amountInMax := args[0].(*big.Int), args[1].(*big.Int)
	path, to := args[2].([]common.Address), args[3].(common.Address)
	if err := simchain.Require(len(path) >= 2 && path[len(path)-1] == weth, "UniswapV2Router: INVALID_PATH"); err != nil {
		return nil, err
	}
	amounts, err := GetAmountsIn(amountOut, path, r.reserveFunc(env))
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(amounts[0].Cmp(amountInMax) <= 0, "UniswapV2Router: EXCESSIVE_INPUT_AMOUNT"); err != nil {
		return nil, err
	}
	if err := r.swapToETH(env, weth, amounts, path, to); err != nil {
		return nil, err
	}
	return []any{amounts}, nil
}

func (r *Router) swapExactTokensForETH(env *simchain.Env, args []any) ([]any, error) {
	if err := ensure(env, args); err != nil {
		return nil, err
	}
	_, weth, err := r.addresses(env)
	if err != nil {
		return nil, err
	}
	amountIn, amountOutMin := args[0].(*big.Int), args[1].(*big.Int)
	path, to := args[2].([]common.Address), args[3].(common.Address)
	if err := simchain.Require(len(path) >= 2 && path[len(path)-1] == weth, "UniswapV2Router: INVALID_PATH"); err != nil {
		return nil, err
	}
	amounts, err := GetAmountsOut(amountIn, path, r.reserveFunc(env))
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(amounts[len(amounts)-1].Cmp(amountOutMin) >= 0, "UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT"); err != nil {
		return nil, err
	}
	if err := r.swapToETH(env, weth, amounts, path, to); err != nil {
		return nil, err
	}
	return []any{amounts}, nil
}

func (r *Router) getAmountsOut(env *simchain.Env, args []any) ([]any, error) {
	amounts, err := GetAmountsOut(args[0].(*big.Int), args[1].([]common.Address), r.reserveFunc(env))
	if err != nil {
		return nil, err
	}
	return []any{amounts}, nil
}

func (r *Router) getAmountsIn(env *simchain.Env, args []any) ([]any, error) {
	amounts, err := GetAmountsIn(args[0].(*big.Int), args[1].([]common.Address), r.reserveFunc(env))
	if err != nil {
		return nil, err
	}
	return []any{amounts}, nil
}

func (r *Router) quote(_ *simchain.Env, args []any) ([]any, error) {
	out, err := Quote(args[0].(*big.Int), args[1].(*big.Int), args[2].(*big.Int))
	if err != nil {
		return nil, err
	}
	return []any{out}, nil
}
