package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/forkbench/internal/config"
	"github.com/roach88/forkbench/internal/fixtures"
	"github.com/roach88/forkbench/internal/forknode"
	"github.com/roach88/forkbench/internal/harness"
	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/simchain"
)

// loadConfig reads the built-in profiles and the --config file.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	return cfg, nil
}

// profile resolves the --network profile.
func (o *RootOptions) profile() (*config.Profile, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	p, err := cfg.Network(o.Network)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "select network", err)
	}
	return p, nil
}

// backendFactory creates ledger instances for p: a fresh simulated chain
// per fixture, or a connection to the profile's forked node.
func backendFactory(p *config.Profile, log *slog.Logger) (harness.BackendFactory, error) {
	switch p.Backend {
	case config.BackendSim:
		return fixtures.SimBackend(simchain.WithLogger(log)), nil
	case config.BackendRPC:
		flavor, err := forknode.ParseFlavor(p.Flavor)
		if err != nil {
			return nil, err
		}
		url := p.URL
		return func(ctx context.Context, fork bool) (ledger.Backend, error) {
			node, err := forknode.Dial(ctx, url, forknode.WithFlavor(flavor), forknode.WithLogger(log))
			if err != nil {
				return nil, err
			}
			return node, nil
		}, nil
	}
	return nil, fmt.Errorf("network %s: unknown backend %q", p.Name, p.Backend)
}

// provisionProfile provisions the profile's own recipe.
func provisionProfile(ctx context.Context, p *config.Profile, log *slog.Logger) (*harness.Fixture, error) {
	newBackend, err := backendFactory(p, log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "select backend", err)
	}
	recipe, err := fixtures.Lookup(p.Recipe, p)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "select recipe", err)
	}
	fx, err := harness.Provision(ctx, newBackend, recipe,
		harness.WithLogger(log),
		harness.WithDeadlineGrace(p.DeadlineGrace),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "provision fixture", err)
	}
	return fx, nil
}
