package fixtures

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/config"
	"github.com/roach88/forkbench/internal/contracts"
	"github.com/roach88/forkbench/internal/harness"
	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/units"
)

// Pool depths seeded on the simulated fork. 1 ETH trades for about 1980
// USDC or DAI and the stablecoins trade 1:1.
const (
	PoolETH        = 10_000
	PoolUSDPerETH  = 1_980
	PoolStableSide = 10_000_000
)

// HolderFunds is what every configured holder receives of each token,
// in whole units, on the simulated fork. HolderEther is their ETH.
const (
	HolderFunds = 1_000_000
	HolderEther = 1_000
	HolderWETH  = 100
)

var tokenNames = map[string]string{
	"USDC": "USD Coin",
	"DAI":  "Dai Stablecoin",
}

// HolderLabel is the identity label of the configured holder of symbol.
func HolderLabel(symbol string) string {
	return strings.ToLower(symbol) + "-holder"
}

// ReceiverLabel labels the profile's receiver account.
const ReceiverLabel = "receiver"

func provisionAMMFork(ctx context.Context, fx *harness.Fixture, p *config.Profile) error {
	for _, sym := range []string{"USDC", "DAI", "WETH"} {
		if _, ok := p.Assets[sym]; !ok {
			return ledger.NewProvisioningError(
				fmt.Sprintf("network %s has no %s asset required by %s", p.Name, sym, AMMFork), nil)
		}
	}

	for _, sym := range p.AssetSymbols() {
		fx.AddAsset(p.Assets[sym])
	}
	fx.AddContract("router", p.Router)
	fx.AddContract("factory", p.Factory)
	for _, sym := range holderSymbols(p) {
		fx.AddIdentity(HolderLabel(sym), p.Holders[sym])
	}
	if p.Receiver != (common.Address{}) {
		fx.AddIdentity(ReceiverLabel, p.Receiver)
	}

	d, err := newDeployer(ctx, fx, AMMFork)
	if err != nil {
		// A forked node already has the mainnet deployment.
		fx.Logger().Debug("using forked deployment", "router", p.Router.Hex())
		return nil
	}
	if err := seedFork(ctx, d, p); err != nil {
		return err
	}
	return labelPairs(ctx, fx, p)
}

func seedFork(ctx context.Context, d *deployer, p *config.Profile) error {
	deployer := d.signer(0, "deployer")
	d.signer(1, "trader")
	d.setBalance(deployer, units.Scale(1_000_000, 18))

	usdc, dai, weth := p.Assets["USDC"], p.Assets["DAI"], p.Assets["WETH"]
	for _, sym := range p.AssetSymbols() {
		a := p.Assets[sym]
		if a == weth {
			d.deployAt(sym, a.Address, deployer, contracts.NewWETH())
			continue
		}
		name, ok := tokenNames[sym]
		if !ok {
			name = sym
		}
		d.deployAt(sym, a.Address, deployer, contracts.NewToken(), name, sym, a.Decimals, a.Units(1_000_000_000))
	}
	d.deployAt("factory", p.Factory, deployer, contracts.NewFactory())
	d.deployAt("router", p.Router, deployer, contracts.NewRouter(), p.Factory, weth.Address)
	if d.err != nil {
		return d.done()
	}

	deadline, err := d.fx.Deadline(ctx)
	if err != nil {
		return ledger.NewProvisioningError("seed pools", err)
	}
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	zero := new(big.Int)
	for _, a := range []ledger.Asset{usdc, dai} {
		d.call(deployer, a.Address, ledger.OpApprove, p.Router, max)
		d.submit(deployer, ledger.ActionRequest{
			Target:   p.Router,
			Op:       ledger.OpAddLiquidityETH,
			Args:     []any{a.Address, a.Units(PoolETH * PoolUSDPerETH), zero, zero, deployer},
			Value:    ledger.Ether.Units(PoolETH),
			Deadline: deadline,
		})
	}
	d.submit(deployer, ledger.ActionRequest{
		Target: p.Router,
		Op:     ledger.OpAddLiquidity,
		Args: []any{usdc.Address, dai.Address,
			usdc.Units(PoolStableSide), dai.Units(PoolStableSide), zero, zero, deployer},
		Deadline: deadline,
	})

	for _, sym := range holderSymbols(p) {
		holder := p.Holders[sym]
		d.setBalance(holder, ledger.Ether.Units(HolderEther))
		for _, tsym := range p.AssetSymbols() {
			a := p.Assets[tsym]
			if a == weth {
				continue
			}
			d.call(deployer, a.Address, ledger.OpTransfer, holder, a.Units(HolderFunds))
		}
		if strings.EqualFold(sym, "WETH") && d.err == nil {
			if err := d.chain.Impersonate(ctx, holder); err != nil {
				d.err = err
				break
			}
			d.submit(holder, ledger.ActionRequest{Target: weth.Address, Op: ledger.OpDeposit, Value: ledger.Ether.Units(HolderWETH)})
			d.chain.StopImpersonating(holder)
		}
	}
	return d.done()
}

func holderSymbols(p *config.Profile) []string {
	out := make([]string, 0, len(p.Holders))
	for sym := range p.Holders {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// labelPairs names the seeded pools "USDC-WETH" and so on.
func labelPairs(ctx context.Context, fx *harness.Fixture, p *config.Profile) error {
	pairs := [][2]string{{"USDC", "WETH"}, {"DAI", "WETH"}, {"USDC", "DAI"}}
	for _, pr := range pairs {
		out, err := fx.Call(ctx, p.Factory, ledger.OpGetPair, p.Assets[pr[0]].Address, p.Assets[pr[1]].Address)
		if err != nil {
			return ledger.NewProvisioningError("look up seeded pair", err)
		}
		pair, err := ledger.AddressAt(out, 0)
		if err != nil {
			return ledger.NewProvisioningError("look up seeded pair", err)
		}
		fx.AddContract(pr[0]+"-"+pr[1], pair)
	}
	return nil
}
