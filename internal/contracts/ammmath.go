package contracts

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/simchain"
)

// MinimumLiquidity is locked forever by the first liquidity provider.
var MinimumLiquidity = big.NewInt(1000)

var (
	feeNumerator   = big.NewInt(997)
	feeDenominator = big.NewInt(1000)
)

// SortTokens orders a token pair the way the factory stores it.
func SortTokens(a, b common.Address) (common.Address, common.Address, error) {
	if a == b {
		return common.Address{}, common.Address{}, simchain.Reverted("UniswapV2Library: IDENTICAL_ADDRESSES")
	}
	token0, token1 := a, b
	if bytes.Compare(b.Bytes(), a.Bytes()) < 0 {
		token0, token1 = b, a
	}
	if token0 == (common.Address{}) {
		return common.Address{}, common.Address{}, simchain.Reverted("UniswapV2Library: ZERO_ADDRESS")
	}
	return token0, token1, nil
}

// Quote returns the amount of B equivalent to amountA at the given reserves.
func Quote(amountA, reserveA, reserveB *big.Int) (*big.Int, error) {
	if amountA.Sign() <= 0 {
		return nil, simchain.Reverted("UniswapV2Library: INSUFFICIENT_AMOUNT")
	}
	if reserveA.Sign() <= 0 || reserveB.Sign() <= 0 {
		return nil, simchain.Reverted("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
	}
	out := new(big.Int).Mul(amountA, reserveB)
	return out.Quo(out, reserveA), nil
}

// GetAmountOut returns the maximum output for amountIn after the 0.3% fee.
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn.Sign() <= 0 {
		return nil, simchain.Reverted("UniswapV2Library: INSUFFICIENT_INPUT_AMOUNT")
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, simchain.Reverted("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
	}
	withFee := new(big.Int).Mul(amountIn, feeNumerator)
	numerator := new(big.Int).Mul(withFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, feeDenominator)
	denominator.Add(denominator, withFee)
	return numerator.Quo(numerator, denominator), nil
}

// GetAmountIn returns the minimum input that yields amountOut.
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountOut.Sign() <= 0 {
		return nil, simchain.Reverted("UniswapV2Library: INSUFFICIENT_OUTPUT_AMOUNT")
	}
	if reserveIn.Sign() <= 0 || reserveOut.Cmp(amountOut) <= 0 {
		return nil, simchain.Reverted("UniswapV2Library: INSUFFICIENT_LIQUIDITY")
	}
	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, feeDenominator)
	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, feeNumerator)
	in := numerator.Quo(numerator, denominator)
	return in.Add(in, big.NewInt(1)), nil
}

// Reserves returns the reserves of (tokenIn, tokenOut) for one hop.
type Reserves func(tokenIn, tokenOut common.Address) (reserveIn, reserveOut *big.Int, err error)

// GetAmountsOut chains GetAmountOut along path.
func GetAmountsOut(amountIn *big.Int, path []common.Address, reserves Reserves) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, simchain.Reverted("UniswapV2Library: INVALID_PATH")
	}
	amounts := make([]*big.Int, len(path))
	amounts[0] = new(big.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		rIn, rOut, err := reserves(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		if amounts[i+1], err = GetAmountOut(amounts[i], rIn, rOut); err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

// GetAmountsIn chains GetAmountIn backwards along path.
func GetAmountsIn(amountOut *big.Int, path []common.Address, reserves Reserves) ([]*big.Int, error) {
	if len(path) < 2 {
		return nil, simchain.Reverted("UniswapV2Library: INVALID_PATH")
	}
	amounts := make([]*big.Int, len(path))
	amounts[len(path)-1] = new(big.Int).Set(amountOut)
	for i := len(path) - 1; i > 0; i-- {
		rIn, rOut, err := reserves(path[i-1], path[i])
		if err != nil {
			return nil, err
		}
		if amounts[i-1], err = GetAmountIn(amounts[i], rIn, rOut); err != nil {
			return nil, err
		}
	}
	return amounts, nil
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
