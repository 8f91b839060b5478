package harness

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/forkbench/internal/ledger"
	"github.com/roach88/forkbench/internal/units"
)

// resolver turns scenario strings into ledger values using the names a
// recipe recorded on the fixture.
type resolver struct {
	fx *Fixture
}

// address resolves identity labels, contract names, token symbols and hex.
func (r resolver) address(s string) (common.Address, error) {
	if id, err := r.fx.Identity(s); err == nil {
		return id.Address, nil
	}
	if addr, err := r.fx.Contract(s); err == nil {
		return addr, nil
	}
	if a, err := r.fx.Asset(s); err == nil && !a.Native {
		return a.Address, nil
	}
	if addressRef.MatchString(s) {
		return common.HexToAddress(s), nil
	}
	return common.Address{}, fmt.Errorf("%q is not an identity, contract, token or address", s)
}

// holder resolves the subject of a balance check.
func (r resolver) holder(s string) (ledger.Identity, error) {
	if id, err := r.fx.Identity(s); err == nil {
		return id, nil
	}
	addr, err := r.address(s)
	if err != nil {
		return ledger.Identity{}, err
	}
	return ledger.Identity{Label: r.fx.Label(addr), Address: addr}, nil
}

// quantity resolves "max", "<decimal> <SYMBOL>" through the asset's
// precision, or a plain raw integer.
func (r resolver) quantity(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "max" {
		// The conventional unlimited approval.
		return new(big.Int).Set(units.MaxQuantity), nil
	}
	if amount, sym, ok := strings.Cut(s, " "); ok {
		asset, err := r.fx.Asset(strings.TrimSpace(sym))
		if err != nil {
			return nil, err
		}
		return asset.Parse(amount)
	}
	q, ok := new(big.Int).SetString(s, 10)
	if !ok || q.Sign() < 0 {
		return nil, fmt.Errorf("%q is not a non-negative integer or \"<amount> <SYMBOL>\"", s)
	}
	if err := units.CheckRange(q); err != nil {
		return nil, fmt.Errorf("%q: %w", s, err)
	}
	return q, nil
}

// signed resolves a delta: an optional sign followed by a quantity.
func (r resolver) signed(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	if neg || strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	q, err := r.quantity(s)
	if err != nil {
		return nil, err
	}
	if neg {
		q.Neg(q)
	}
	return q, nil
}

func (r resolver) arg(kind ledger.ArgKind, a Arg) (any, error) {
	if kind == ledger.KindAddressList {
		if !a.IsList {
			return nil, fmt.Errorf("expected a list of addresses, got %q", a.Value)
		}
		out := make([]common.Address, len(a.List))
		for i, s := range a.List {
			addr, err := r.address(s)
			if err != nil {
				return nil, err
			}
			out[i] = addr
		}
		return out, nil
	}
	if a.IsList {
		return nil, fmt.Errorf("expected a %s, got a list", kind)
	}

	switch kind {
	case ledger.KindAddress:
		return r.address(a.Value)
	case ledger.KindUint:
		return r.quantity(a.Value)
	case ledger.KindUint8:
		n, err := strconv.ParseUint(a.Value, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%q is not a uint8", a.Value)
		}
		return uint8(n), nil
	case ledger.KindString:
		return a.Value, nil
	case ledger.KindBool:
		return strconv.ParseBool(a.Value)
	}
	return nil, fmt.Errorf("unsupported argument kind %s", kind)
}

func (r resolver) args(op ledger.Operation, in []Arg) ([]any, error) {
	spec, _ := op.Spec()
	if len(in) != len(spec.Args) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", spec.Method, len(spec.Args), len(in))
	}
	out := make([]any, len(in))
	for i, kind := range spec.Args {
		v, err := r.arg(kind, in[i])
		if err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", spec.Method, i, err)
		}
		out[i] = v
	}
	return out, nil
}

// matches reports whether a returned value equals the expected string,
// resolving the string the same way arguments are resolved.
func (r resolver) matches(want Arg, got any) bool {
	switch g := got.(type) {
	case []common.Address:
		if !want.IsList || len(want.List) != len(g) {
			return false
		}
		for i, s := range want.List {
			if !r.matches(Arg{Value: s}, g[i]) {
				return false
			}
		}
		return true
	case common.Address:
		addr, err := r.address(want.Value)
		return err == nil && addr == g
	case *big.Int:
		q, err := r.quantity(want.Value)
		return err == nil && q.Cmp(g) == 0
	}
	if want.IsList {
		return false
	}
	return fmt.Sprint(traceValue(r.fx, got)) == want.Value
}
