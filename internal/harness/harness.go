package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/roach88/forkbench/internal/ledger"
)

// BackendFactory produces a fresh ledger instance for one fixture. fork
// asks for a ledger that allows impersonation and fixed-address setup.
type BackendFactory func(ctx context.Context, fork bool) (ledger.Backend, error)

// Recipe populates a freshly provisioned fixture: it deploys contracts and
// records the identities, assets and contract names scenarios refer to.
type Recipe interface {
	Name() string
	Fork() bool
	Provision(ctx context.Context, fx *Fixture) error
}

// IDGenerator produces fixture IDs.
type IDGenerator interface {
	NewID() uuid.UUID
}

type v7Generator struct{}

func (v7Generator) NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// signerSource is implemented by backends that hold credentials for a
// fixed set of accounts.
type signerSource interface {
	Signers() []common.Address
}

type options struct {
	logger *slog.Logger
	now    func() time.Time
	ids    IDGenerator
	grace  time.Duration
}

// Option configures Provision.
type Option func(*options)

// WithLogger sets the fixture's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the wall clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator sets how fixture IDs are generated.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithDeadlineGrace sets the window Deadline adds to the ledger's time.
func WithDeadlineGrace(d time.Duration) Option {
	return func(o *options) { o.grace = d }
}

// Fixture is one isolated ledger instance plus the named identities,
// assets and contracts a recipe set up on it.
//
// A Fixture is used by one scenario at a time.
type Fixture struct {
	id      uuid.UUID
	recipe  string
	backend ledger.Backend
	logger  *slog.Logger
	now     func() time.Time
	grace   time.Duration

	identities map[string]ledger.Identity
	labels     map[common.Address]string
	signers    map[common.Address]bool
	assets     map[string]ledger.Asset
	contracts  map[string]common.Address
}

// Provision creates a ledger instance with newBackend and runs recipe on
// it. Any failure is a provisioning error and the instance is released.
//
// Backends with development signers get them recorded as signer0..signerN.
func Provision(ctx context.Context, newBackend BackendFactory, recipe Recipe, opts ...Option) (*Fixture, error) {
	o := options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		ids:    v7Generator{},
		grace:  ledger.DefaultDeadlineGrace,
	}
	for _, opt := range opts {
		opt(&o)
	}

	fork := recipe != nil && recipe.Fork()
	backend, err := newBackend(ctx, fork)
	if err != nil {
		return nil, ledger.NewProvisioningError("create ledger instance", err)
	}

	fx := &Fixture{
		id:         o.ids.NewID(),
		backend:    backend,
		logger:     o.logger,
		now:        o.now,
		grace:      o.grace,
		identities: make(map[string]ledger.Identity),
		labels:     make(map[common.Address]string),
		signers:    make(map[common.Address]bool),
		assets:     make(map[string]ledger.Asset),
		contracts:  make(map[string]common.Address),
	}
	fx.logger = fx.logger.With("fixture", fx.id.String())

	if src, ok := backend.(signerSource); ok {
		for i, addr := range src.Signers() {
			fx.signers[addr] = true
			fx.AddIdentity(fmt.Sprintf("signer%d", i), addr)
		}
	}

	if recipe != nil {
		fx.recipe = recipe.Name()
		if err := recipe.Provision(ctx, fx); err != nil {
			backend.Close()
			if ledger.IsProvisioningError(err) {
				return nil, err
			}
			return nil, ledger.NewProvisioningError(fmt.Sprintf("recipe %s", recipe.Name()), err)
		}
	}
	fx.logger.Debug("fixture provisioned",
		"recipe", fx.recipe,
		"identities", len(fx.identities),
		"contracts", len(fx.contracts),
	)
	return fx, nil
}

// ID returns the fixture's unique ID.
func (f *Fixture) ID() uuid.UUID { return f.id }

// Recipe returns the name of the recipe that populated the fixture.
func (f *Fixture) Recipe() string { return f.recipe }

// Backend exposes the ledger instance. Recipes use it for backend-specific
// setup such as deployments.
func (f *Fixture) Backend() ledger.Backend { return f.backend }

// Logger returns the fixture's logger.
func (f *Fixture) Logger() *slog.Logger { return f.logger }

// AddIdentity records addr under label, replacing any previous label for
// the same address as its display name.
func (f *Fixture) AddIdentity(label string, addr common.Address) ledger.Identity {
	id := ledger.Identity{Label: label, Address: addr}
	f.identities[label] = id
	f.labels[addr] = label
	return id
}

// AddAsset records a token asset under its symbol, which also becomes
// the display name of its address.
func (f *Fixture) AddAsset(a ledger.Asset) {
	f.assets[strings.ToUpper(a.Symbol)] = a
	if !a.Native {
		f.labels[a.Address] = a.Symbol
	}
}

// AddContract records a deployed contract under name.
func (f *Fixture) AddContract(name string, addr common.Address) {
	f.contracts[name] = addr
	if _, ok := f.labels[addr]; !ok {
		f.labels[addr] = name
	}
}

// Identity returns the identity recorded under label.
func (f *Fixture) Identity(label string) (ledger.Identity, error) {
	id, ok := f.identities[label]
	if !ok {
		return ledger.Identity{}, fmt.Errorf("fixture has no identity %q", label)
	}
	return id, nil
}

// Asset returns the asset with symbol. ETH is always the native asset.
func (f *Fixture) Asset(symbol string) (ledger.Asset, error) {
	if strings.EqualFold(symbol, ledger.Ether.Symbol) {
		return ledger.Ether, nil
	}
	a, ok := f.assets[strings.ToUpper(symbol)]
	if !ok {
		return ledger.Asset{}, fmt.Errorf("fixture has no asset %q", symbol)
	}
	return a, nil
}

// Contract returns the address recorded under name.
func (f *Fixture) Contract(name string) (common.Address, error) {
	addr, ok := f.contracts[name]
	if !ok {
		return common.Address{}, fmt.Errorf("fixture has no contract %q", name)
	}
	return addr, nil
}

// Label returns the display name of addr: an identity label, asset symbol
// or contract name, falling back to the hex address.
func (f *Fixture) Label(addr common.Address) string {
	if l, ok := f.labels[addr]; ok {
		return l
	}
	return addr.Hex()
}

// Identities returns the identity labels, sorted.
func (f *Fixture) Identities() []string {
	out := make([]string, 0, len(f.identities))
	for l := range f.identities {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Signer returns an authority for a credential-controlled identity.
func (f *Fixture) Signer(label string) (ledger.Authority, error) {
	id, ok := f.identities[label]
	if !ok {
		return ledger.Authority{}, ledger.NewImpersonationError(
			fmt.Sprintf("no identity labelled %q", label), nil)
	}
	if !f.signers[id.Address] {
		return ledger.Authority{}, ledger.NewImpersonationError(
			fmt.Sprintf("%s is not controlled by a local credential; impersonate it instead", id), nil)
	}
	return ledger.Authority{Identity: id, Fixture: f.id}, nil
}

var addressRef = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Impersonate obtains an authority for the account at ref, a 0x-prefixed
// 20-byte hex address, without its credential. The backend must run in
// fork mode.
func (f *Fixture) Impersonate(ctx context.Context, ref string) (ledger.Authority, error) {
	if !addressRef.MatchString(ref) {
		return ledger.Authority{}, ledger.NewImpersonationError(
			fmt.Sprintf("malformed account reference %q", ref), nil)
	}
	addr := common.HexToAddress(ref)
	if err := f.backend.Impersonate(ctx, addr); err != nil {
		if ledger.IsImpersonationError(err) {
			return ledger.Authority{}, err
		}
		return ledger.Authority{}, ledger.NewImpersonationError(fmt.Sprintf("cannot impersonate %s", ref), err)
	}

	label, ok := f.labels[addr]
	if !ok {
		label = addr.Hex()
	}
	id, ok := f.identities[label]
	if !ok {
		id = f.AddIdentity(label, addr)
	}
	f.logger.Debug("identity impersonated", "identity", id.String())
	return ledger.Authority{Identity: id, Impersonated: true, Fixture: f.id}, nil
}

// Snapshot reads how much of asset id holds. It never changes ledger state.
func (f *Fixture) Snapshot(ctx context.Context, id ledger.Identity, asset ledger.Asset) (ledger.Snapshot, error) {
	head, err := f.backend.Head(ctx)
	if err != nil {
		return ledger.Snapshot{}, ledger.NewReadError("read head", err)
	}

	var q *big.Int
	if asset.Native {
		q, err = f.backend.NativeBalance(ctx, id.Address)
	} else {
		q, err = f.tokenRead(ctx, asset, ledger.OpBalanceOf, id.Address)
	}
	if err != nil {
		return ledger.Snapshot{}, ledger.NewReadError(fmt.Sprintf("%s balance of %s", asset.Symbol, id), err)
	}
	return ledger.Snapshot{
		Fixture:  f.id,
		Identity: id,
		Asset:    asset,
		Quantity: new(big.Int).Set(q),
		Block:    head.Number,
		ReadAt:   f.now(),
	}, nil
}

// Allowance reads how much of asset spender may move on behalf of owner.
func (f *Fixture) Allowance(ctx context.Context, owner, spender ledger.Identity, asset ledger.Asset) (*big.Int, error) {
	if asset.Native {
		return nil, ledger.NewReadError("native asset has no allowance", nil)
	}
	q, err := f.tokenRead(ctx, asset, ledger.OpAllowance, owner.Address, spender.Address)
	if err != nil {
		return nil, ledger.NewReadError(fmt.Sprintf("%s allowance of %s for %s", asset.Symbol, owner, spender), err)
	}
	return q, nil
}

func (f *Fixture) tokenRead(ctx context.Context, asset ledger.Asset, op ledger.Operation, args ...any) (*big.Int, error) {
	out, err := f.backend.Call(ctx, asset.Address, op, args...)
	if err != nil {
		return nil, err
	}
	return ledger.BigAt(out, 0)
}

// Call executes a read operation. Ledger rejections are returned as they
// are; other failures are read errors.
func (f *Fixture) Call(ctx context.Context, target common.Address, op ledger.Operation, args ...any) ([]any, error) {
	out, err := f.backend.Call(ctx, target, op, args...)
	if err != nil {
		if ledger.IsRejected(err) {
			return nil, err
		}
		return nil, ledger.NewReadError(fmt.Sprintf("%s on %s", op, f.Label(target)), err)
	}
	return out, nil
}

// Deadline returns the ledger's current time plus the fixture's grace.
func (f *Fixture) Deadline(ctx context.Context) (time.Time, error) {
	return f.DeadlineAfter(ctx, f.grace)
}

// DeadlineAfter returns the ledger's current time plus d. A negative d
// yields a deadline that has already passed.
func (f *Fixture) DeadlineAfter(ctx context.Context, d time.Duration) (time.Time, error) {
	head, err := f.backend.Head(ctx)
	if err != nil {
		return time.Time{}, ledger.NewReadError("read head", err)
	}
	return head.Time.Add(d), nil
}

// Submit sends req as auth and blocks until it is finalized or rejected.
// It never retries.
func (f *Fixture) Submit(ctx context.Context, auth ledger.Authority, req ledger.ActionRequest) (*ledger.Receipt, error) {
	if auth.Fixture != f.id {
		return nil, fmt.Errorf("authority for %s belongs to fixture %s, not %s", auth.Identity, auth.Fixture, f.id)
	}
	log := f.logger.With("op", req.Op.String(), "from", auth.Identity.String(), "target", f.Label(req.Target))
	log.Debug("action state", "state", ledger.ActionCreated)

	log.Debug("action state", "state", ledger.ActionSubmitted)
	rec, err := f.backend.Submit(ctx, auth.Identity.Address, req)
	if err != nil {
		if reason, ok := ledger.RejectionReason(err); ok {
			log.Info("action state", "state", ledger.ActionRejected, "reason", reason)
		} else {
			log.Warn("action failed", "error", err)
		}
		return nil, err
	}
	log.Info("action state", "state", ledger.ActionFinalized, "block", rec.Block)
	return rec, nil
}

// AdvanceTime moves the ledger's clock forward by d.
func (f *Fixture) AdvanceTime(ctx context.Context, d time.Duration) error {
	return f.backend.AdvanceTime(ctx, d)
}

// Close releases the ledger instance.
func (f *Fixture) Close() error {
	return f.backend.Close()
}
