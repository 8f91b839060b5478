package harness

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/units"
)

// Direction constrains the sign of a balance change.
type Direction string

const (
	Increased Direction = "increased"
	Decreased Direction = "decreased"
	Unchanged Direction = "unchanged"
	Changed   Direction = "changed"
)

// ParseDirection parses a direction name.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case Increased, Decreased, Unchanged, Changed:
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q (want increased, decreased, unchanged or changed)", s)
}

// holds reports whether delta satisfies the direction.
func (d Direction) holds(delta *big.Int) bool {
	switch d {
	case Increased:
		return delta.Sign() > 0
	case Decreased:
		return delta.Sign() < 0
	case Unchanged:
		return delta.Sign() == 0
	case Changed:
		return delta.Sign() != 0
	}
	return false
}

// Expectation is the expected outcome of one action: any combination of
// an exact post value, an exact signed delta and a direction, or a
// rejection.
type Expectation struct {
	Exact     *big.Int
	Delta     *big.Int
	Direction Direction

	// Rejected requires the exact rejection reason; RejectedContains only
	// a substring. Either one makes the expectation a rejection.
	Rejected         string
	RejectedContains string
}

// ExpectExact expects the post-action quantity to equal q.
func ExpectExact(q *big.Int) Expectation { return Expectation{Exact: q} }

// ExpectDelta expects after - before to equal d.
func ExpectDelta(d *big.Int) Expectation { return Expectation{Delta: d} }

// ExpectDirection expects the change to have the given sign.
func ExpectDirection(d Direction) Expectation { return Expectation{Direction: d} }

// ExpectRejected expects the action to be rejected with exactly reason.
func ExpectRejected(reason string) Expectation { return Expectation{Rejected: reason} }

// ExpectRejectedContaining expects a rejection whose reason contains s.
func ExpectRejectedContaining(s string) Expectation { return Expectation{RejectedContains: s} }

// IsRejection reports whether the expectation describes a rejection.
func (e Expectation) IsRejection() bool {
	return e.Rejected != "" || e.RejectedContains != ""
}

// AssertionError is returned when an expectation does not hold.
type AssertionError struct {
	Type     string // exact, delta, direction or rejection
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// Verify checks a pair of snapshots of the same holding against expect.
// Snapshots from different fixtures cannot be compared and return a plain
// error rather than an assertion failure.
func Verify(before, after ledger.Snapshot, expect Expectation) error {
	if expect.IsRejection() {
		return fmt.Errorf("rejection expectations are checked with VerifyRejection")
	}
	delta, err := before.Delta(after)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	asset := after.Asset
	subject := fmt.Sprintf("%s of %s", asset.Symbol, after.Identity)

	if expect.Exact != nil && after.Quantity.Cmp(expect.Exact) != 0 {
		return &AssertionError{
			Type:     "exact",
			Expected: fmt.Sprintf("%s %s", formatQuantity(asset, expect.Exact), subject),
			Actual:   formatQuantity(asset, after.Quantity),
		}
	}
	if expect.Delta != nil && delta.Cmp(expect.Delta) != 0 {
		return &AssertionError{
			Type:     "delta",
			Expected: fmt.Sprintf("change of %s %s", formatSigned(asset, expect.Delta), subject),
			Actual: fmt.Sprintf("change of %s (%s -> %s)",
				formatSigned(asset, delta), formatQuantity(asset, before.Quantity), formatQuantity(asset, after.Quantity)),
		}
	}
	if expect.Direction != "" && !expect.Direction.holds(delta) {
		return &AssertionError{
			Type:     "direction",
			Expected: fmt.Sprintf("%s %s", subject, expect.Direction),
			Actual:   fmt.Sprintf("change of %s", formatSigned(asset, delta)),
		}
	}
	return nil
}

// VerifyRejection checks the error returned by Submit against a rejection
// expectation. A nil err means the action was finalized, which fails.
func VerifyRejection(err error, expect Expectation) error {
	want := expect.Rejected
	match := "reason"
	if want == "" {
		want = expect.RejectedContains
		match = "reason containing"
	}
	expected := fmt.Sprintf("rejection with %s %q", match, want)

	if err == nil {
		return &AssertionError{Type: "rejection", Expected: expected, Actual: "action finalized"}
	}
	reason, ok := ledger.RejectionReason(err)
	if !ok {
		return &AssertionError{Type: "rejection", Expected: expected, Actual: fmt.Sprintf("error: %v", err)}
	}
	if expect.Rejected != "" && reason != expect.Rejected ||
		expect.Rejected == "" && !strings.Contains(reason, expect.RejectedContains) {
		return &AssertionError{Type: "rejection", Expected: expected, Actual: fmt.Sprintf("rejected with %q", reason)}
	}
	return nil
}

func formatQuantity(a ledger.Asset, q *big.Int) string {
	return fmt.Sprintf("%s %s", a.Format(q), a.Symbol)
}

func formatSigned(a ledger.Asset, q *big.Int) string {
	return fmt.Sprintf("%s %s", units.FormatSigned(q, a.Decimals), a.Symbol)
}
