package fixtures

import (
	"context"
	"math/big"

	"github.com/roach88/forkbench/internal/contracts"
	"github.com/roach88/forkbench/internal/harness"
	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/units"
)

// The CXIV token every native fixture trades in.
const (
	CXIVName   = "WEB3CXIV"
	CXIVSymbol = "CXIV"
)

// CXIVSupply is the raw supply minted to the deployer.
var CXIVSupply = big.NewInt(100_000_000)

// SchoolFunds is what the school contract holds at provision, so payroll
// works before any fees are collected.
var SchoolFunds = units.Scale(10_000, 18)

// The faucet token used by the marketplace and the vault.
const (
	FaucetName   = "MyERC20"
	FaucetSymbol = "MYT"
)

// VaultTokenSupply is the raw supply of the vault fixture's token.
var VaultTokenSupply = big.NewInt(1_000_000)

// provisionToken: owner holds the whole CXIV supply; other and recipient
// hold nothing.
func provisionToken(ctx context.Context, fx *harness.Fixture) error {
	d, err := newDeployer(ctx, fx, Token)
	if err != nil {
		return err
	}
	owner := d.signer(0, "owner")
	d.signer(1, "other")
	d.signer(2, "recipient")
	addr := d.deploy("token", owner, contracts.NewToken(), CXIVName, CXIVSymbol, uint8(18), new(big.Int).Set(CXIVSupply))
	fx.AddAsset(ledger.Token(CXIVSymbol, addr, 18))
	return d.done()
}

// provisionMultisig: owner1 deployed the wallet and is its only owner;
// owner2..owner6 are signers that may join; non-owner never does.
func provisionMultisig(ctx context.Context, fx *harness.Fixture) error {
	d, err := newDeployer(ctx, fx, Multisig)
	if err != nil {
		return err
	}
	owner1 := d.signer(0, "owner1")
	for i, label := range []string{"owner2", "owner3", "owner4", "owner5", "owner6"} {
		d.signer(i+1, label)
	}
	d.signer(6, "non-owner")
	d.signer(7, "payee")
	d.deploy("multisig", owner1, contracts.NewMultisig())
	return d.done()
}

// provisionSchool: admin deployed a faucet CXIV token and the school,
// registered the school as minter and funded it with SchoolFunds.
func provisionSchool(ctx context.Context, fx *harness.Fixture) error {
	d, err := newDeployer(ctx, fx, School)
	if err != nil {
		return err
	}
	admin := d.signer(0, "admin")
	d.signer(1, "second")
	d.signer(2, "student")
	d.signer(3, "staff")
	token := d.deploy("token", admin, contracts.NewFaucetToken(), CXIVName, CXIVSymbol, uint8(18), new(big.Int).Set(CXIVSupply))
	school := d.deploy("school", admin, contracts.NewSchool(), token)
	d.call(admin, token, ledger.OpAddMinter, school)
	d.call(admin, token, ledger.OpMint, school, new(big.Int).Set(SchoolFunds))
	fx.AddAsset(ledger.Token(CXIVSymbol, token, 18))
	return d.done()
}

// provisionProperties: owner deployed the MYT faucet token and the
// marketplace, which may mint MYT for claimFaucet.
func provisionProperties(ctx context.Context, fx *harness.Fixture) error {
	d, err := newDeployer(ctx, fx, Properties)
	if err != nil {
		return err
	}
	owner := d.signer(0, "owner")
	d.signer(1, "buyer")
	token := d.deploy("token", owner, contracts.NewFaucetToken(), FaucetName, FaucetSymbol, uint8(18), new(big.Int).Set(CXIVSupply))
	market := d.deploy("properties", owner, contracts.NewProperties(), token)
	d.call(owner, token, ledger.OpAddMinter, market)
	fx.AddAsset(ledger.Token(FaucetSymbol, token, 18))
	return d.done()
}

// provisionVault: owner holds VaultTokenSupply MYT and deployed the
// vault; other holds nothing.
func provisionVault(ctx context.Context, fx *harness.Fixture) error {
	d, err := newDeployer(ctx, fx, Vault)
	if err != nil {
		return err
	}
	owner := d.signer(0, "owner")
	d.signer(1, "other")
	token := d.deploy("token", owner, contracts.NewFaucetToken(), FaucetName, FaucetSymbol, uint8(18), new(big.Int).Set(VaultTokenSupply))
	d.deploy("vault", owner, contracts.NewVault())
	fx.AddAsset(ledger.Token(FaucetSymbol, token, 18))
	return d.done()
}
