// Package config loads network profiles.
//
// Profiles are written in CUE. The embedded defaults define the schema
// (#Network), the shared mainnet deployment constants (#Mainnet) and three
// profiles: simfork (the simulated ledger running the amm-fork recipe),
// hardhat and anvil (forked nodes on localhost). A user file is compiled in
// the scope of the defaults, so it can build on #Mainnet, and is unified
// over them.
package config

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/ledger"
)

//go:embed defaults.cue
var defaultsCUE []byte

// Backend names which ledger implementation a profile uses.
type Backend string

const (
	BackendSim Backend = "sim"
	BackendRPC Backend = "rpc"
)

// Profile is a resolved network profile. Everything network-specific that
// fixtures and scripts need lives here.
type Profile struct {
	Name          string
	Backend       Backend
	URL           string
	Flavor        string
	Recipe        string
	DeadlineGrace time.Duration
	Router        common.Address
	Factory       common.Address
	Assets        map[string]ledger.Asset
	Holders       map[string]common.Address
	Receiver      common.Address
}

// Asset returns the profile's asset by symbol. "ETH" is the native asset.
func (p *Profile) Asset(symbol string) (ledger.Asset, error) {
	if strings.EqualFold(symbol, ledger.Ether.Symbol) {
		return ledger.Ether, nil
	}
	a, ok := p.Assets[strings.ToUpper(symbol)]
	if !ok {
		return ledger.Asset{}, fmt.Errorf("network %s has no asset %q", p.Name, symbol)
	}
	return a, nil
}

// Holder returns the funded account the profile names for symbol.
func (p *Profile) Holder(symbol string) (common.Address, error) {
	h, ok := p.Holders[strings.ToUpper(symbol)]
	if !ok {
		return common.Address{}, fmt.Errorf("network %s has no %s holder", p.Name, symbol)
	}
	return h, nil
}

// AssetSymbols returns the profile's token symbols, sorted.
func (p *Profile) AssetSymbols() []string {
	out := make([]string, 0, len(p.Assets))
	for s := range p.Assets {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Config is the full set of profiles.
type Config struct {
	DefaultNetwork string
	Profiles       map[string]*Profile
}

// Network returns the named profile, or the default one when name is empty.
func (c *Config) Network(name string) (*Profile, error) {
	if name == "" {
		name = c.DefaultNetwork
	}
	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown network %q (have %s)", name, strings.Join(c.Names(), ", "))
	}
	return p, nil
}

// Names returns the profile names, sorted.
func (c *Config) Names() []string {
	out := make([]string, 0, len(c.Profiles))
	for n := range c.Profiles {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type rawAsset struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

type rawNetwork struct {
	Backend       string              `json:"backend"`
	URL           string              `json:"url"`
	Flavor        string              `json:"flavor"`
	Recipe        string              `json:"recipe"`
	DeadlineGrace string              `json:"deadline_grace"`
	Router        string              `json:"router"`
	Factory       string              `json:"factory"`
	Assets        map[string]rawAsset `json:"assets"`
	Holders       map[string]string   `json:"holders"`
	Receiver      string              `json:"receiver"`
}

// Default returns the embedded profiles.
func Default() (*Config, error) {
	return Load("")
}

// Load reads the embedded defaults and, when path is not empty, unifies the
// user file at path over them.
func Load(path string) (*Config, error) {
	var user []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		user = data
	}
	return Parse(path, user)
}

// Parse is Load for in-memory CUE source. filename is used in diagnostics.
func Parse(filename string, src []byte) (*Config, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(defaultsCUE, cue.Filename("defaults.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile defaults: %w", err)
	}
	if len(src) > 0 {
		user := ctx.CompileBytes(src, cue.Filename(filename), cue.Scope(v))
		if err := user.Err(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", filename, err)
		}
		v = v.Unify(user)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid network configuration: %w", err)
	}

	var def string
	if err := v.LookupPath(cue.ParsePath("default_network")).Decode(&def); err != nil {
		return nil, fmt.Errorf("default_network: %w", err)
	}
	var raw map[string]rawNetwork
	if err := v.LookupPath(cue.ParsePath("networks")).Decode(&raw); err != nil {
		return nil, fmt.Errorf("networks: %w", err)
	}

	cfg := &Config{DefaultNetwork: def, Profiles: make(map[string]*Profile, len(raw))}
	for name, rn := range raw {
		p, err := rn.resolve(name)
		if err != nil {
			return nil, err
		}
		cfg.Profiles[name] = p
	}
	if _, ok := cfg.Profiles[def]; !ok {
		return nil, fmt.Errorf("default_network %q is not defined", def)
	}
	return cfg, nil
}

func (rn rawNetwork) resolve(name string) (*Profile, error) {
	grace, err := time.ParseDuration(rn.DeadlineGrace)
	if err != nil {
		return nil, fmt.Errorf("network %s: deadline_grace: %w", name, err)
	}
	if grace <= 0 {
		return nil, fmt.Errorf("network %s: deadline_grace must be positive", name)
	}
	if Backend(rn.Backend) == BackendRPC {
		u, err := url.Parse(rn.URL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("network %s: rpc backend needs a url, got %q", name, rn.URL)
		}
	}

	p := &Profile{
		Name:          name,
		Backend:       Backend(rn.Backend),
		URL:           rn.URL,
		Flavor:        rn.Flavor,
		Recipe:        rn.Recipe,
		DeadlineGrace: grace,
		Router:        common.HexToAddress(rn.Router),
		Factory:       common.HexToAddress(rn.Factory),
		Assets:        make(map[string]ledger.Asset, len(rn.Assets)),
		Holders:       make(map[string]common.Address, len(rn.Holders)),
		Receiver:      common.HexToAddress(rn.Receiver),
	}
	for sym, a := range rn.Assets {
		sym = strings.ToUpper(sym)
		p.Assets[sym] = ledger.Token(sym, common.HexToAddress(a.Address), a.Decimals)
	}
	for sym, h := range rn.Holders {
		p.Holders[strings.ToUpper(sym)] = common.HexToAddress(h)
	}
	return p, nil
}
