package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/forkbench/internal/ledger"
)

// RecipeSource looks up a recipe by the name scenarios use.
type RecipeSource func(name string) (Recipe, error)

// Runner executes scenarios, each against its own freshly provisioned
// fixture.
type Runner struct {
	NewBackend BackendFactory
	Recipes    RecipeSource
	Logger     *slog.Logger

	// Options are passed to Provision for every fixture.
	Options []Option
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r.Logger
}

// Run provisions the scenario's fixture and executes setup then flow.
//
// Failed expectations are collected in the Result. Errors that make the
// run meaningless (provisioning, impersonation, unresolvable names, failed
// reads, rejected setup steps) abort it and are returned.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	log := r.logger().With("scenario", sc.Name)
	recipe, err := r.Recipes(sc.Fixture)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	opts := append([]Option{WithLogger(log)}, r.Options...)
	fx, err := Provision(ctx, r.NewBackend, recipe, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	defer fx.Close()

	res := NewResult(sc.Name, sc.Fixture)
	x := &stepRunner{fx: fx, res: res, r: resolver{fx: fx}}

	for i := range sc.Setup {
		ev, err := x.run(ctx, "setup", i, &sc.Setup[i])
		if err != nil {
			return nil, fmt.Errorf("scenario %s: setup[%d]: %w", sc.Name, i, err)
		}
		if ev.Status == string(ledger.ActionRejected) {
			return nil, fmt.Errorf("scenario %s: setup[%d]: %s rejected: %s", sc.Name, i, ev.Op, ev.Reason)
		}
		res.Trace = append(res.Trace, ev)
	}
	for i := range sc.Flow {
		ev, err := x.run(ctx, "flow", i, &sc.Flow[i])
		if err != nil {
			return nil, fmt.Errorf("scenario %s: flow[%d]: %w", sc.Name, i, err)
		}
		res.Trace = append(res.Trace, ev)
	}

	if res.Pass {
		log.Info("scenario passed", "steps", len(res.Trace))
	} else {
		log.Info("scenario failed", "failures", len(res.Errors))
	}
	return res, nil
}

type stepRunner struct {
	fx  *Fixture
	res *Result
	r   resolver
}

type tracked struct {
	check  BalanceCheck
	holder ledger.Identity
	asset  ledger.Asset
	before ledger.Snapshot
}

func (x *stepRunner) fail(phase string, i int, err error) {
	x.res.AddError(fmt.Sprintf("%s[%d]: %v", phase, i, err))
}

func (x *stepRunner) run(ctx context.Context, phase string, i int, st *Step) (TraceEvent, error) {
	ev := TraceEvent{Phase: phase, Step: i}

	checks, err := x.before(ctx, st.Balances)
	if err != nil {
		return ev, err
	}

	switch {
	case st.AdvanceTime != "":
		d, err := time.ParseDuration(st.AdvanceTime)
		if err != nil {
			return ev, err
		}
		if err := x.fx.AdvanceTime(ctx, d); err != nil {
			return ev, fmt.Errorf("advance time: %w", err)
		}
		ev.Kind = KindAdvance
		ev.Status = "advanced"
		ev.Value = d.String()
	default:
		if err := x.call(ctx, phase, i, st, &ev); err != nil {
			return ev, err
		}
	}

	if err := x.after(ctx, phase, i, checks, &ev); err != nil {
		return ev, err
	}
	return ev, nil
}

func (x *stepRunner) call(ctx context.Context, phase string, i int, st *Step, ev *TraceEvent) error {
	op, err := ledger.ParseOperation(st.Call)
	if err != nil {
		return err
	}
	spec, _ := op.Spec()
	target, err := x.r.address(st.Target)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}
	args, err := x.r.args(op, st.Args)
	if err != nil {
		return err
	}
	ev.Op = spec.Method
	ev.Target = x.fx.Label(target)
	ev.Args = traceValues(x.fx, args)

	if !spec.Write {
		ev.Kind = KindRead
		ev.Status = "read"
		out, err := x.fx.Call(ctx, target, op, args...)
		if err != nil {
			return err
		}
		ev.Returns = traceValues(x.fx, out)
		x.checkReturns(phase, i, st.Returns, out)
		return nil
	}

	ev.Kind = KindAction
	auth, err := x.authority(ctx, st)
	if err != nil {
		return err
	}
	ev.As = auth.Identity.Label

	req := ledger.ActionRequest{Target: target, Op: op, Args: args}
	if st.Value != "" {
		if req.Value, err = x.r.quantity(st.Value); err != nil {
			return fmt.Errorf("value: %w", err)
		}
		ev.Value = req.Value.String()
	}
	if spec.Deadline {
		grace := x.fx.grace
		if st.Deadline != "" {
			if grace, err = time.ParseDuration(st.Deadline); err != nil {
				return fmt.Errorf("deadline: %w", err)
			}
		}
		if req.Deadline, err = x.fx.DeadlineAfter(ctx, grace); err != nil {
			return err
		}
		ev.Deadline = "now+" + grace.String()
		if grace < 0 {
			ev.Deadline = "now" + grace.String()
		}
	}

	rec, subErr := x.fx.Submit(ctx, auth, req)
	if reason, ok := ledger.RejectionReason(subErr); ok {
		ev.Status = string(ledger.ActionRejected)
		ev.Reason = reason
	} else if subErr != nil {
		return subErr
	} else {
		ev.Status = string(ledger.ActionFinalized)
		ev.Block = rec.Block
		ev.Returns = traceValues(x.fx, rec.Returns)
		for _, e := range rec.Events {
			ev.Events = append(ev.Events, TraceLog{
				Name:    e.Name,
				Address: x.fx.Label(e.Address),
				Args:    traceValue(x.fx, e.Args).(map[string]any),
			})
		}
	}

	switch {
	case st.Expect != nil:
		if err := VerifyRejection(subErr, st.Expect.Expectation()); err != nil {
			x.fail(phase, i, err)
		}
	case subErr != nil:
		x.fail(phase, i, &AssertionError{
			Type:     "finalized",
			Expected: fmt.Sprintf("%s to be finalized", spec.Method),
			Actual:   fmt.Sprintf("rejected with %q", ev.Reason),
		})
	default:
		x.checkReturns(phase, i, st.Returns, rec.Returns)
	}
	return nil
}

func (x *stepRunner) authority(ctx context.Context, st *Step) (ledger.Authority, error) {
	if st.As != "" {
		return x.fx.Signer(st.As)
	}
	ref := st.Impersonate
	if id, err := x.fx.Identity(ref); err == nil {
		ref = id.Address.Hex()
	}
	return x.fx.Impersonate(ctx, ref)
}

func (x *stepRunner) checkReturns(phase string, i int, want []Arg, got []any) {
	if len(want) == 0 {
		return
	}
	if len(want) > len(got) {
		x.fail(phase, i, &AssertionError{
			Type:     "returns",
			Expected: fmt.Sprintf("%d return values", len(want)),
			Actual:   fmt.Sprintf("%d", len(got)),
		})
		return
	}
	for j, w := range want {
		if !x.r.matches(w, got[j]) {
			x.fail(phase, i, &AssertionError{
				Type:     "returns",
				Expected: fmt.Sprintf("return %d to be %s", j, w),
				Actual:   fmt.Sprint(traceValue(x.fx, got[j])),
			})
		}
	}
}

func (x *stepRunner) before(ctx context.Context, checks []BalanceCheck) ([]tracked, error) {
	out := make([]tracked, 0, len(checks))
	for _, c := range checks {
		holder, err := x.r.holder(c.Of)
		if err != nil {
			return nil, fmt.Errorf("balance of: %w", err)
		}
		asset, err := x.fx.Asset(c.Asset)
		if err != nil {
			return nil, err
		}
		snap, err := x.fx.Snapshot(ctx, holder, asset)
		if err != nil {
			return nil, err
		}
		out = append(out, tracked{check: c, holder: holder, asset: asset, before: snap})
	}
	return out, nil
}

func (x *stepRunner) after(ctx context.Context, phase string, i int, checks []tracked, ev *TraceEvent) error {
	for _, t := range checks {
		after, err := x.fx.Snapshot(ctx, t.holder, t.asset)
		if err != nil {
			return err
		}
		expect, err := x.expectation(t.check)
		if err != nil {
			return err
		}
		delta, err := t.before.Delta(after)
		if err != nil {
			return err
		}
		ev.Balances = append(ev.Balances, BalanceTrace{
			Of:     t.holder.Label,
			Asset:  t.asset.Symbol,
			Before: t.before.Quantity.String(),
			After:  after.Quantity.String(),
			Delta:  delta.String(),
		})
		if err := Verify(t.before, after, expect); err != nil {
			x.fail(phase, i, err)
		}
	}
	return nil
}

func (x *stepRunner) expectation(c BalanceCheck) (Expectation, error) {
	var e Expectation
	var err error
	if c.Equals != "" {
		if e.Exact, err = x.r.quantity(c.Equals); err != nil {
			return e, fmt.Errorf("equals: %w", err)
		}
	}
	if c.Delta != "" {
		if e.Delta, err = x.r.signed(c.Delta); err != nil {
			return e, fmt.Errorf("delta: %w", err)
		}
	}
	if c.Direction != "" {
		if e.Direction, err = ParseDirection(c.Direction); err != nil {
			return e, err
		}
	}
	return e, nil
}
