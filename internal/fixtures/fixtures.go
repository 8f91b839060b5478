package fixtures

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/config"
	"github.com/roach88/forkbench/internal/harness"
	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
)

// Recipe names.
const (
	Token      = "token"
	Multisig   = "multisig"
	School     = "school"
	Properties = "properties"
	Vault      = "vault"
	AMMFork    = "amm-fork"
)

type recipe struct {
	name      string
	fork      bool
	provision func(ctx context.Context, fx *harness.Fixture) error
}

func (r recipe) Name() string { return r.name }
func (r recipe) Fork() bool   { return r.fork }

func (r recipe) Provision(ctx context.Context, fx *harness.Fixture) error {
	return r.provision(ctx, fx)
}

// Names returns every recipe name, sorted.
func Names() []string {
	out := []string{Token, Multisig, School, Properties, Vault, AMMFork}
	sort.Strings(out)
	return out
}

// Lookup returns the named recipe. amm-fork takes its addresses from
// profile.
func Lookup(name string, profile *config.Profile) (harness.Recipe, error) {
	switch name {
	case Token:
		return recipe{name: name, provision: provisionToken}, nil
	case Multisig:
		return recipe{name: name, provision: provisionMultisig}, nil
	case School:
		return recipe{name: name, provision: provisionSchool}, nil
	case Properties:
		return recipe{name: name, provision: provisionProperties}, nil
	case Vault:
		return recipe{name: name, provision: provisionVault}, nil
	case AMMFork:
		if profile == nil {
			return nil, fmt.Errorf("recipe %s needs a network profile", name)
		}
		p := *profile
		return recipe{name: name, fork: true, provision: func(ctx context.Context, fx *harness.Fixture) error {
			return provisionAMMFork(ctx, fx, &p)
		}}, nil
	}
	return nil, fmt.Errorf("unknown fixture %q (have %v)", name, Names())
}

// Source adapts Lookup for harness.Runner.
func Source(profile *config.Profile) harness.RecipeSource {
	return func(name string) (harness.Recipe, error) {
		return Lookup(name, profile)
	}
}

// deployer is a thin helper over a simulated chain that stops at the
// first error.
type deployer struct {
	ctx   context.Context
	fx    *harness.Fixture
	chain *simchain.Chain
	err   error
}

func newDeployer(ctx context.Context, fx *harness.Fixture, recipe string) (*deployer, error) {
	chain, ok := fx.Backend().(*simchain.Chain)
	if !ok {
		return nil, ledger.NewProvisioningError(
			fmt.Sprintf("recipe %s deploys contracts and needs the simulated ledger", recipe), nil)
	}
	return &deployer{ctx: ctx, fx: fx, chain: chain}, nil
}

// signer labels development signer i and returns its address.
func (d *deployer) signer(i int, label string) common.Address {
	signers := d.chain.Signers()
	if d.err != nil {
		return common.Address{}
	}
	if i >= len(signers) {
		d.err = fmt.Errorf("recipe needs signer %d, ledger has %d", i, len(signers))
		return common.Address{}
	}
	d.fx.AddIdentity(label, signers[i])
	return signers[i]
}

func (d *deployer) deploy(name string, from common.Address, c simchain.Contract, args ...any) common.Address {
	if d.err != nil {
		return common.Address{}
	}
	addr, err := d.chain.Deploy(d.ctx, from, c, args...)
	if err != nil {
		d.err = fmt.Errorf("deploy %s: %w", name, err)
		return common.Address{}
	}
	d.fx.AddContract(name, addr)
	return addr
}

func (d *deployer) deployAt(name string, addr, from common.Address, c simchain.Contract, args ...any) {
	if d.err != nil {
		return
	}
	if err := d.chain.DeployAt(d.ctx, addr, from, c, args...); err != nil {
		d.err = fmt.Errorf("deploy %s at %s: %w", name, addr.Hex(), err)
		return
	}
	d.fx.AddContract(name, addr)
}

func (d *deployer) submit(from common.Address, req ledger.ActionRequest) {
	if d.err != nil {
		return
	}
	if _, err := d.chain.Submit(d.ctx, from, req); err != nil {
		d.err = fmt.Errorf("%s on %s: %w", req.Op, d.fx.Label(req.Target), err)
	}
}

func (d *deployer) call(from, target common.Address, op ledger.Operation, args ...any) {
	d.submit(from, ledger.ActionRequest{Target: target, Op: op, Args: args})
}

func (d *deployer) setBalance(addr common.Address, q *big.Int) {
	if d.err != nil {
		return
	}
	if err := d.chain.SetBalance(d.ctx, addr, q); err != nil {
		d.err = fmt.Errorf("set balance of %s: %w", d.fx.Label(addr), err)
	}
}

func (d *deployer) done() error {
	if d.err != nil {
		return ledger.NewProvisioningError("recipe setup failed", d.err)
	}
	return nil
}

// SimBackend returns a factory for fresh in-memory simulated ledgers.
// Fork recipes get a fork-mode chain.
func SimBackend(opts ...simchain.Option) harness.BackendFactory {
	return func(ctx context.Context, fork bool) (ledger.Backend, error) {
		o := append([]simchain.Option{}, opts...)
		if fork {
			o = append(o, simchain.WithForkMode())
		}
		return simchain.New(ctx, o...)
	}
}
