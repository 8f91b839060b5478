// Package units converts between raw integer quantities and their
// human-readable decimal form for assets of a given precision.
//
// Every balance read, delta and assertion in forkbench works on raw *big.Int
// quantities. Formatted strings are for display only and are never compared.
package units

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ericlagergren/decimal"
)

// MaxDecimals is the largest precision accepted by Parse and Format.
const MaxDecimals = 77

// minParsePrecision holds any uint256 quantity at MaxDecimals.
const minParsePrecision = 160

// maxIntegerDigits is the digit count of the largest uint256.
const maxIntegerDigits = 78

// MaxQuantity is the largest raw quantity a ledger can hold (2^256 - 1).
var MaxQuantity = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

var (
	// ErrNegative is returned when a quantity string is negative.
	ErrNegative = errors.New("negative quantity")

	// ErrTooPrecise is returned when a string has more fractional digits
	// than the asset supports.
	ErrTooPrecise = errors.New("too many fractional digits")

	// ErrTooLarge is returned when a quantity exceeds MaxQuantity.
	ErrTooLarge = errors.New("quantity exceeds uint256")
)

// CheckRange reports whether q fits a uint256.
func CheckRange(q *big.Int) error {
	if q.Sign() < 0 {
		return ErrNegative
	}
	if q.BitLen() > 256 {
		return ErrTooLarge
	}
	return nil
}

// Pow10 returns 10^decimals.
func Pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// Scale returns n * 10^decimals.
// Scale(200, 18) is the raw quantity of "200 tokens" for an 18-decimal asset.
func Scale(n int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Pow10(decimals))
}

// Parse converts a human-readable decimal string such as "0.05" or "1000"
// into a raw quantity with the given precision. The conversion is exact:
// inputs with more fractional digits than decimals are rejected rather
// than rounded, as are quantities above MaxQuantity.
func Parse(s string, decimals uint8) (*big.Int, error) {
	if decimals > MaxDecimals {
		return nil, fmt.Errorf("decimals %d exceeds maximum %d", decimals, MaxDecimals)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty quantity")
	}

	// The context is at least as wide as the input, so SetString never
	// rounds a digit away.
	ctx := decimal.Context{
		Precision:    max(minParsePrecision, len(s)),
		RoundingMode: decimal.ToZero,
	}
	x, ok := decimal.WithContext(ctx).SetString(s)
	if !ok || !x.IsFinite() {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	if x.Sign() < 0 {
		return nil, fmt.Errorf("%q: %w", s, ErrNegative)
	}

	// 10^decimals as mantissa 1 with negative scale.
	factor := new(decimal.Big).SetMantScale(1, -int(decimals))
	x.Mul(x, factor)
	if !x.IsFinite() {
		return nil, fmt.Errorf("%q with %d decimals: %w", s, decimals, ErrTooLarge)
	}
	if x.Sign() == 0 {
		return new(big.Int), nil
	}
	if !x.IsInt() {
		return nil, fmt.Errorf("%q with %d decimals: %w", s, decimals, ErrTooPrecise)
	}
	// Bound the digit count before materializing, so huge exponents never
	// allocate.
	if x.Precision()-x.Scale() > maxIntegerDigits {
		return nil, fmt.Errorf("%q with %d decimals: %w", s, decimals, ErrTooLarge)
	}
	q := x.Int(new(big.Int))
	if err := CheckRange(q); err != nil {
		return nil, fmt.Errorf("%q with %d decimals: %w", s, decimals, err)
	}
	return q, nil
}

// MustParse is like Parse but panics on error.
// Intended for constants in fixtures and tests.
func MustParse(s string, decimals uint8) *big.Int {
	q, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return q
}

// Format renders a raw quantity with the given precision the way ethers'
// formatUnits does: at least one fractional digit, trailing zeros trimmed.
//
//	Format(1500000, 6)  == "1.5"
//	Format(1e18, 18)    == "1.0"
//	Format(-5e16, 18)   == "-0.05"
func Format(q *big.Int, decimals uint8) string {
	if q == nil {
		return "0.0"
	}
	neg := q.Sign() < 0
	abs := new(big.Int).Abs(q)

	whole, frac := new(big.Int).QuoRem(abs, Pow10(decimals), new(big.Int))

	fracStr := ""
	if decimals > 0 {
		fracStr = frac.String()
		fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
		fracStr = strings.TrimRight(fracStr, "0")
	}
	if fracStr == "" {
		fracStr = "0"
	}

	out := whole.String() + "." + fracStr
	if neg {
		out = "-" + out
	}
	return out
}

// FormatSigned renders a delta with an explicit sign, e.g. "+100.0" or "-0.5".
func FormatSigned(q *big.Int, decimals uint8) string {
	s := Format(q, decimals)
	if q != nil && q.Sign() > 0 {
		return "+" + s
	}
	return s
}
