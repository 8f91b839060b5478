package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
)

const keyFactoryPairCount = "factory:pairs"

func pairKey(a, b common.Address) string {
	return "factory:pair:" + a.Hex() + ":" + b.Hex()
}

// Factory creates and indexes AMM pairs.
type Factory struct {
	handlers map[ledger.Operation]simchain.Handler
}

// NewFactory returns a pair factory.
func NewFactory() *Factory {
	f := &Factory{}
	f.handlers = map[ledger.Operation]simchain.Handler{
		ledger.OpCreatePair: f.createPair,
		ledger.OpGetPair:    f.getPair,
	}
	return f
}

// Kind implements simchain.Contract.
func (f *Factory) Kind() string { return "factory" }

// Handlers implements simchain.Contract.
func (f *Factory) Handlers() map[ledger.Operation]simchain.Handler { return f.handlers }

func (f *Factory) createPair(env *simchain.Env, args []any) ([]any, error) {
	a, b := args[0].(common.Address), args[1].(common.Address)
	if err := simchain.Require(a != b, "UniswapV2: IDENTICAL_ADDRESSES"); err != nil {
		return nil, err
	}
	token0, token1, err := SortTokens(a, b)
	if err != nil {
		return nil, simchain.Reverted("UniswapV2: ZERO_ADDRESS")
	}
	existing, err := env.GetAddress(pairKey(token0, token1))
	if err != nil {
		return nil, err
	}
	if err := simchain.Require(existing == (common.Address{}), "UniswapV2: PAIR_EXISTS"); err != nil {
		return nil, err
	}

	pair, err := env.Create(NewPair(), token0, token1)
	if err != nil {
		return nil, err
	}
	if err := env.PutAddress(pairKey(token0, token1), pair); err != nil {
		return nil, err
	}
	if err := env.PutAddress(pairKey(token1, token0), pair); err != nil {
		return nil, err
	}
	count, err := env.GetUint(keyFactoryPairCount)
	if err != nil {
		return nil, err
	}
	if err := env.PutUint(keyFactoryPairCount, count+1); err != nil {
		return nil, err
	}
	env.Emit("PairCreated", map[string]any{
		"token0": token0,
		"token1": token1,
		"pair":   pair,
		"index":  new(big.Int).SetUint64(count + 1),
	})
	return []any{pair}, nil
}

func (f *Factory) getPair(env *simchain.Env, args []any) ([]any, error) {
	pair, err := env.GetAddress(pairKey(args[0].(common.Address), args[1].(common.Address)))
	return []any{pair}, err
}
