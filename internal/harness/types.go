package harness

import (
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/canon"
)

// Step kinds recorded in the trace.
const (
	KindAction  = "action"
	KindRead    = "read"
	KindAdvance = "advance"
)

// TraceEvent records one executed step. Addresses appear as the fixture's
// labels and quantities as raw decimal strings so traces from two fixtures
// of the same recipe are byte-identical.
type TraceEvent struct {
	Phase    string         `json:"phase"`
	Step     int            `json:"step"`
	Kind     string         `json:"kind"`
	As       string         `json:"as,omitempty"`
	Op       string         `json:"op,omitempty"`
	Target   string         `json:"target,omitempty"`
	Args     []any          `json:"args,omitempty"`
	Value    string         `json:"value,omitempty"`
	Deadline string         `json:"deadline,omitempty"`
	Status   string         `json:"status"`
	Reason   string         `json:"reason,omitempty"`
	Block    uint64         `json:"block,omitempty"`
	Events   []TraceLog     `json:"events,omitempty"`
	Returns  []any          `json:"returns,omitempty"`
	Balances []BalanceTrace `json:"balances,omitempty"`
}

// TraceLog is an event emitted by a finalized action.
type TraceLog struct {
	Name    string         `json:"name"`
	Address string         `json:"address"`
	Args    map[string]any `json:"args"`
}

// BalanceTrace is one verified holding.
type BalanceTrace struct {
	Of     string `json:"of"`
	Asset  string `json:"asset"`
	Before string `json:"before"`
	After  string `json:"after"`
	Delta  string `json:"delta"`
}

// CanonicalValue implements canon.Valuer.
func (e TraceEvent) CanonicalValue() any {
	m := map[string]any{
		"phase":  e.Phase,
		"step":   e.Step,
		"kind":   e.Kind,
		"status": e.Status,
	}
	setString(m, "as", e.As)
	setString(m, "op", e.Op)
	setString(m, "target", e.Target)
	setString(m, "value", e.Value)
	setString(m, "deadline", e.Deadline)
	setString(m, "reason", e.Reason)
	if len(e.Args) > 0 {
		m["args"] = e.Args
	}
	if e.Block > 0 {
		m["block"] = e.Block
	}
	if len(e.Events) > 0 {
		evs := make([]any, len(e.Events))
		for i, ev := range e.Events {
			evs[i] = map[string]any{"name": ev.Name, "address": ev.Address, "args": ev.Args}
		}
		m["events"] = evs
	}
	if len(e.Returns) > 0 {
		m["returns"] = e.Returns
	}
	if len(e.Balances) > 0 {
		bs := make([]any, len(e.Balances))
		for i, b := range e.Balances {
			bs[i] = map[string]any{
				"of": b.Of, "asset": b.Asset,
				"before": b.Before, "after": b.After, "delta": b.Delta,
			}
		}
		m["balances"] = bs
	}
	return m
}

func setString(m map[string]any, k, v string) {
	if v != "" {
		m[k] = v
	}
}

// Result is the outcome of one scenario run.
type Result struct {
	Scenario string       `json:"scenario"`
	Fixture  string       `json:"fixture"`
	Pass     bool         `json:"pass"`
	Trace    []TraceEvent `json:"trace"`

	// Errors holds assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult(scenario, fixture string) *Result {
	return &Result{
		Scenario: scenario,
		Fixture:  fixture,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// labeler names addresses for display.
type labeler interface {
	Label(addr common.Address) string
}

// traceValue converts a ledger value into a canonically marshalable one,
// naming addresses through l.
func traceValue(l labeler, v any) any {
	switch val := v.(type) {
	case common.Address:
		return l.Label(val)
	case []common.Address:
		out := make([]any, len(val))
		for i, a := range val {
			out[i] = l.Label(a)
		}
		return out
	case *big.Int:
		if val == nil {
			return "0"
		}
		return val.String()
	case []*big.Int:
		out := make([]any, len(val))
		for i, q := range val {
			out[i] = traceValue(l, q)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = traceValue(l, x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = traceValue(l, x)
		}
		return out
	case canon.Valuer:
		return traceValue(l, val.CanonicalValue())
	case uint32:
		return uint64(val)
	case nil:
		return ""
	}
	// Getter returns such as []contracts.Student.
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = traceValue(l, rv.Index(i).Interface())
		}
		return out
	}
	return v
}

func traceValues(l labeler, vals []any) []any {
	if len(vals) == 0 {
		return nil
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = traceValue(l, v)
	}
	return out
}
