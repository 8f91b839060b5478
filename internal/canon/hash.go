package canon

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the encoding to change without collisions.
const (
	DomainTransaction = "forkbench/tx/v1"
	DomainBlock       = "forkbench/block/v1"
	DomainTrace       = "forkbench/trace/v1"
)

// HashWithDomain computes keccak256(domain || 0x00 || data).
// The null separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) common.Hash {
	return crypto.Keccak256Hash([]byte(domain), []byte{0x00}, data)
}

// Hash canonically marshals v and hashes it under domain.
func Hash(domain string, v any) (common.Hash, error) {
	data, err := Marshal(v)
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash %s: %w", domain, err)
	}
	return HashWithDomain(domain, data), nil
}

// MustHash is like Hash but panics on error.
func MustHash(domain string, v any) common.Hash {
	h, err := Hash(domain, v)
	if err != nil {
		panic(err)
	}
	return h
}
