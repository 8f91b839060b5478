package ledger

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BigAt returns vals[i] as a *big.Int.
func BigAt(vals []any, i int) (*big.Int, error) {
	if i >= len(vals) {
		return nil, fmt.Errorf("return value %d missing (have %d)", i, len(vals))
	}
	switch v := vals[i].(type) {
	case *big.Int:
		return v, nil
	case uint8:
		return big.NewInt(int64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("return value %d: expected integer, got %T", i, vals[i])
	}
}

// AddressAt returns vals[i] as an address.
func AddressAt(vals []any, i int) (common.Address, error) {
	if i >= len(vals) {
		return common.Address{}, fmt.Errorf("return value %d missing (have %d)", i, len(vals))
	}
	a, ok := vals[i].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("return value %d: expected address, got %T", i, vals[i])
	}
	return a, nil
}

// StringAt returns vals[i] as a string.
func StringAt(vals []any, i int) (string, error) {
	if i >= len(vals) {
		return "", fmt.Errorf("return value %d missing (have %d)", i, len(vals))
	}
	s, ok := vals[i].(string)
	if !ok {
		return "", fmt.Errorf("return value %d: expected string, got %T", i, vals[i])
	}
	return s, nil
}

// BigsAt returns vals[i] as a slice of *big.Int.
func BigsAt(vals []any, i int) ([]*big.Int, error) {
	if i >= len(vals) {
		return nil, fmt.Errorf("return value %d missing (have %d)", i, len(vals))
	}
	s, ok := vals[i].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("return value %d: expected []*big.Int, got %T", i, vals[i])
	}
	return s, nil
}
