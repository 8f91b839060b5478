package scripts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/fixtures"
	"github.com/roach88/forkbench/internal/harness"
	"github.com/roach88/forkbench/internal/ledger"
)

// ErrNoLiquidity is returned by the remove-liquidity scripts when the
// holder has no pool shares.
var ErrNoLiquidity = errors.New("No liquidity to remove")

// Script is one router flow.
type Script struct {
	Name        string
	Description string
	run         func(s *session) error
}

var registry = map[string]Script{}

func register(name, description string, run func(s *session) error) {
	registry[name] = Script{Name: name, Description: description, run: run}
}

// Names returns every script name, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the named script.
func Lookup(name string) (Script, error) {
	s, ok := registry[name]
	if !ok {
		return Script{}, fmt.Errorf("unknown script %q (have %v)", name, Names())
	}
	return s, nil
}

// Run executes the script against fx, a fixture provisioned by the
// amm-fork recipe. A rejected router call is returned as the ledger's
// rejection error.
func (sc Script) Run(ctx context.Context, fx *harness.Fixture) (*Report, error) {
	s := &session{ctx: ctx, fx: fx, report: &Report{Script: sc.Name}}
	if err := sc.run(s); err != nil {
		return nil, fmt.Errorf("%s: %w", sc.Name, err)
	}
	fx.Logger().Info("script finished", "script", sc.Name, "receipts", len(s.report.Receipts))
	return s.report, nil
}

// session carries one script run.
type session struct {
	ctx     context.Context
	fx      *harness.Fixture
	report  *Report
	tracked []tracked
}

type tracked struct {
	id     ledger.Identity
	asset  ledger.Asset
	before *big.Int
}

// actAs impersonates the configured holder of symbol.
func (s *session) actAs(symbol string) (ledger.Authority, error) {
	id, err := s.fx.Identity(fixtures.HolderLabel(symbol))
	if err != nil {
		return ledger.Authority{}, fmt.Errorf("no %s holder configured: %w", symbol, err)
	}
	auth, err := s.fx.Impersonate(s.ctx, id.Address.Hex())
	if err != nil {
		return ledger.Authority{}, err
	}
	s.report.Actor = auth.Identity.Label
	return auth, nil
}

func (s *session) asset(symbol string) (ledger.Asset, error) {
	return s.fx.Asset(symbol)
}

// amount parses a decimal amount of symbol.
func (s *session) amount(symbol, v string) (*big.Int, error) {
	a, err := s.asset(symbol)
	if err != nil {
		return nil, err
	}
	return a.Parse(v)
}

// submit sends op to target. Router operations get the fixture's
// default deadline.
func (s *session) submit(auth ledger.Authority, target common.Address, op ledger.Operation, value *big.Int, args ...any) (*ledger.Receipt, error) {
	req := ledger.ActionRequest{Target: target, Op: op, Args: args, Value: value}
	if spec, _ := op.Spec(); spec.Deadline {
		deadline, err := s.fx.Deadline(s.ctx)
		if err != nil {
			return nil, err
		}
		req.Deadline = deadline
	}
	rec, err := s.fx.Submit(s.ctx, auth, req)
	if err != nil {
		return nil, err
	}
	s.report.Receipts = append(s.report.Receipts, summarize(rec))
	return rec, nil
}

func (s *session) router(auth ledger.Authority, op ledger.Operation, value *big.Int, args ...any) error {
	router, err := s.fx.Contract("router")
	if err != nil {
		return err
	}
	_, err = s.submit(auth, router, op, value, args...)
	return err
}

// approve lets the router move amount of token on auth's behalf.
func (s *session) approve(auth ledger.Authority, token common.Address, amount *big.Int) error {
	router, err := s.fx.Contract("router")
	if err != nil {
		return err
	}
	_, err = s.submit(auth, token, ledger.OpApprove, nil, router, amount)
	return err
}

// pool returns the liquidity token of the pair for a and b.
func (s *session) pool(a, b ledger.Asset) (ledger.Asset, error) {
	factory, err := s.fx.Contract("factory")
	if err != nil {
		return ledger.Asset{}, err
	}
	out, err := s.fx.Call(s.ctx, factory, ledger.OpGetPair, a.Address, b.Address)
	if err != nil {
		return ledger.Asset{}, err
	}
	pair, err := ledger.AddressAt(out, 0)
	if err != nil {
		return ledger.Asset{}, err
	}
	if pair == (common.Address{}) {
		return ledger.Asset{}, fmt.Errorf("no %s/%s pair", a.Symbol, b.Symbol)
	}
	s.report.Notes = append(s.report.Notes, fmt.Sprintf("Pair address: %s", pair.Hex()))
	return ledger.Token("UNI-V2", pair, 18), nil
}

// track snapshots id's holdings of assets. finish reads them again.
func (s *session) track(id ledger.Identity, assets ...ledger.Asset) error {
	for _, a := range assets {
		snap, err := s.fx.Snapshot(s.ctx, id, a)
		if err != nil {
			return err
		}
		s.tracked = append(s.tracked, tracked{id: id, asset: a, before: snap.Quantity})
	}
	return nil
}

func (s *session) finish() error {
	for _, t := range s.tracked {
		snap, err := s.fx.Snapshot(s.ctx, t.id, t.asset)
		if err != nil {
			return err
		}
		s.report.Lines = append(s.report.Lines, Line{
			Of:     t.id.Label,
			Asset:  t.asset,
			Before: t.before,
			After:  snap.Quantity,
		})
	}
	s.tracked = nil
	return nil
}
