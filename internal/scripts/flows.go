package scripts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/fixtures"
	"github.com/roach88/forkbench/internal/ledger"
)

// Script names.
const (
	AddLiquidity             = "add-liquidity"
	AddLiquidityETH          = "add-liquidity-eth"
	RemoveLiquidity          = "remove-liquidity"
	RemoveLiquidityETH       = "remove-liquidity-eth"
	SwapExactETHForTokens    = "swap-exact-eth-for-tokens"
	SwapETHForExactTokens    = "swap-eth-for-exact-tokens"
	SwapExactTokensForTokens = "swap-exact-tokens-for-tokens"
	SwapTokensForExactETH    = "swap-tokens-for-exact-eth"
)

func init() {
	register(AddLiquidity, "add 10000 USDC and 10000 DAI to the USDC/DAI pool", addLiquidity)
	register(AddLiquidityETH, "add USDC and 0.5 ETH to the USDC/WETH pool", addLiquidityETH)
	register(RemoveLiquidity, "add then withdraw USDC/DAI liquidity", removeLiquidity)
	register(RemoveLiquidityETH, "add then withdraw USDC/WETH liquidity", removeLiquidityETH)
	register(SwapExactETHForTokens, "swap 0.05 ETH for at least 98 USDC", swapExactETHForTokens)
	register(SwapETHForExactTokens, "buy exactly 1000 USDC for the receiver with up to 1 ETH", swapETHForExactTokens)
	register(SwapExactTokensForTokens, "swap 1000 USDC for DAI", swapExactTokensForTokens)
	register(SwapTokensForExactETH, "buy exactly 0.05 ETH with at most 100 USDC", swapTokensForExactETH)
}

func (s *session) assets(symbols ...string) ([]ledger.Asset, error) {
	out := make([]ledger.Asset, len(symbols))
	for i, sym := range symbols {
		a, err := s.asset(sym)
		if err != nil {
			return nil, err
		}
		out[i] = a
	}
	return out, nil
}

func path(assets ...ledger.Asset) []common.Address {
	out := make([]common.Address, len(assets))
	for i, a := range assets {
		out[i] = a.Address
	}
	return out
}

// provideStable adds 10000 USDC and 10000 DAI with a 10% slippage floor.
func (s *session) provideStable(auth ledger.Authority, usdc, dai ledger.Asset) error {
	amountUSDC, amountDAI := usdc.Units(10_000), dai.Units(10_000)
	if err := s.approve(auth, usdc.Address, amountUSDC); err != nil {
		return err
	}
	if err := s.approve(auth, dai.Address, amountDAI); err != nil {
		return err
	}
	return s.router(auth, ledger.OpAddLiquidity, nil,
		usdc.Address, dai.Address, amountUSDC, amountDAI, usdc.Units(9_000), dai.Units(9_000), auth.Identity.Address)
}

// provideEther adds up to 1000 USDC against 0.5 ETH.
func (s *session) provideEther(auth ledger.Authority, usdc ledger.Asset) error {
	desired := usdc.Units(1_000)
	minUSDC, err := usdc.Parse("980")
	if err != nil {
		return err
	}
	minETH, err := ledger.Ether.Parse("0.49")
	if err != nil {
		return err
	}
	value, err := ledger.Ether.Parse("0.5")
	if err != nil {
		return err
	}
	if err := s.approve(auth, usdc.Address, desired); err != nil {
		return err
	}
	return s.router(auth, ledger.OpAddLiquidityETH, value,
		usdc.Address, desired, minUSDC, minETH, auth.Identity.Address)
}

// shares returns the holder's balance of the pool token, failing when
// there is none.
func (s *session) shares(auth ledger.Authority, lp ledger.Asset) (*big.Int, error) {
	snap, err := s.fx.Snapshot(s.ctx, auth.Identity, lp)
	if err != nil {
		return nil, err
	}
	s.report.Notes = append(s.report.Notes, "LP balance: "+lp.Format(snap.Quantity))
	if snap.Quantity.Sign() == 0 {
		return nil, ErrNoLiquidity
	}
	return snap.Quantity, nil
}

func addLiquidity(s *session) error {
	auth, err := s.actAs("USDC")
	if err != nil {
		return err
	}
	as, err := s.assets("USDC", "DAI")
	if err != nil {
		return err
	}
	usdc, dai := as[0], as[1]
	if err := s.track(auth.Identity, usdc, dai); err != nil {
		return err
	}
	if err := s.provideStable(auth, usdc, dai); err != nil {
		return err
	}
	if err := s.finish(); err != nil {
		return err
	}
	s.report.Notes = append(s.report.Notes, "Liquidity added successfully!")
	return nil
}

func addLiquidityETH(s *session) error {
	auth, err := s.actAs("USDC")
	if err != nil {
		return err
	}
	usdc, err := s.asset("USDC")
	if err != nil {
		return err
	}
	if err := s.track(auth.Identity, usdc, ledger.Ether); err != nil {
		return err
	}
	if err := s.provideEther(auth, usdc); err != nil {
		return err
	}
	if err := s.finish(); err != nil {
		return err
	}
	s.report.Notes = append(s.report.Notes, "Liquidity added successfully!")
	return nil
}

func removeLiquidity(s *session) error {
	auth, err := s.actAs("USDC")
	if err != nil {
		return err
	}
	as, err := s.assets("USDC", "DAI")
	if err != nil {
		return err
	}
	usdc, dai := as[0], as[1]
	if err := s.provideStable(auth, usdc, dai); err != nil {
		return err
	}
	lp, err := s.pool(usdc, dai)
	if err != nil {
		return err
	}
	liquidity, err := s.shares(auth, lp)
	if err != nil {
		return err
	}
	if err := s.approve(auth, lp.Address, liquidity); err != nil {
		return err
	}
	if err := s.track(auth.Identity, usdc, dai, lp); err != nil {
		return err
	}
	err = s.router(auth, ledger.OpRemoveLiquidity, nil,
		usdc.Address, dai.Address, liquidity, usdc.Units(9_000), dai.Units(9_000), auth.Identity.Address)
	if err != nil {
		return err
	}
	if err := s.finish(); err != nil {
		return err
	}
	s.report.Notes = append(s.report.Notes, "Liquidity removed")
	return nil
}

func removeLiquidityETH(s *session) error {
	auth, err := s.actAs("USDC")
	if err != nil {
		return err
	}
	as, err := s.assets("USDC", "WETH")
	if err != nil {
		return err
	}
	usdc, weth := as[0], as[1]
	if err := s.provideEther(auth, usdc); err != nil {
		return err
	}
	lp, err := s.pool(usdc, weth)
	if err != nil {
		return err
	}
	liquidity, err := s.shares(auth, lp)
	if err != nil {
		return err
	}
	if err := s.approve(auth, lp.Address, liquidity); err != nil {
		return err
	}
	minUSDC, err := usdc.Parse("970")
	if err != nil {
		return err
	}
	minETH, err := ledger.Ether.Parse("0.49")
	if err != nil {
		return err
	}
	if err := s.track(auth.Identity, usdc, ledger.Ether, lp); err != nil {
		return err
	}
	err = s.router(auth, ledger.OpRemoveLiquidityETH, nil,
		usdc.Address, liquidity, minUSDC, minETH, auth.Identity.Address)
	if err != nil {
		return err
	}
	if err := s.finish(); err != nil {
		return err
	}
	s.report.Notes = append(s.report.Notes, "Liquidity removed")
	return nil
}

func swapExactETHForTokens(s *session) error {
	auth, err := s.actAs("USDC")
	if err != nil {
		return err
	}
	as, err := s.assets("WETH", "USDC")
	if err != nil {
		return err
	}
	weth, usdc := as[0], as[1]
	value, err := ledger.Ether.Parse("0.05")
	if err != nil {
		return err
	}
	if err := s.track(auth.Identity, usdc, ledger.Ether); err != nil {
		return err
	}
	err = s.router(auth, ledger.OpSwapExactETHForTokens, value,
		usdc.Units(98), path(weth, usdc), auth.Identity.Address)
	if err != nil {
		return err
	}
	return s.finish()
}

func swapETHForExactTokens(s *session) error {
	auth, err := s.actAs("WETH")
	if err != nil {
		return err
	}
	receiver, err := s.fx.Identity(fixtures.ReceiverLabel)
	if err != nil {
		return err
	}
	as, err := s.assets("WETH", "USDC")
	if err != nil {
		return err
	}
	weth, usdc := as[0], as[1]
	if err := s.track(receiver, usdc); err != nil {
		return err
	}
	if err := s.track(auth.Identity, ledger.Ether); err != nil {
		return err
	}
	err = s.router(auth, ledger.OpSwapETHForExactTokens, ledger.Ether.Units(1),
		usdc.Units(1_000), path(weth, usdc), receiver.Address)
	if err != nil {
		return err
	}
	return s.finish()
}

func swapExactTokensForTokens(s *session) error {
	auth, err := s.actAs("USDC")
	if err != nil {
		return err
	}
	as, err := s.assets("USDC", "DAI")
	if err != nil {
		return err
	}
	usdc, dai := as[0], as[1]
	amountIn := usdc.Units(1_000)
	if err := s.approve(auth, usdc.Address, amountIn); err != nil {
		return err
	}
	if err := s.track(auth.Identity, usdc, dai); err != nil {
		return err
	}
	err = s.router(auth, ledger.OpSwapExactTokensForTokens, nil,
		amountIn, new(big.Int), path(usdc, dai), auth.Identity.Address)
	if err != nil {
		return err
	}
	return s.finish()
}

func swapTokensForExactETH(s *session) error {
	auth, err := s.actAs("USDC")
	if err != nil {
		return err
	}
	as, err := s.assets("USDC", "WETH")
	if err != nil {
		return err
	}
	usdc, weth := as[0], as[1]
	amountOut, err := ledger.Ether.Parse("0.05")
	if err != nil {
		return err
	}
	amountInMax := usdc.Units(100)
	if err := s.approve(auth, usdc.Address, amountInMax); err != nil {
		return err
	}
	if err := s.track(auth.Identity, usdc, ledger.Ether); err != nil {
		return err
	}
	err = s.router(auth, ledger.OpSwapTokensForExactETH, nil,
		amountOut, amountInMax, path(usdc, weth), auth.Identity.Address)
	if err != nil {
		return err
	}
	return s.finish()
}
