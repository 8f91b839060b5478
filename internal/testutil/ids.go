package testutil

import "github.com/google/uuid"

// FixedIDGenerator returns the same fixture ID every time.
//
// The ID is derived from a seed with a name-based UUID, so a seed always
// maps to the same ID across runs and machines. Snapshots from two fixtures
// sharing a FixedIDGenerator compare as the same fixture; use it only where
// one fixture is live at a time.
//
// Thread-safety: FixedIDGenerator is immutable and safe for concurrent use.
type FixedIDGenerator struct {
	id uuid.UUID
}

// NewFixedIDGenerator creates a generator for seed. An empty seed uses
// "forkbench-test-default".
func NewFixedIDGenerator(seed string) *FixedIDGenerator {
	if seed == "" {
		seed = "forkbench-test-default"
	}
	return &FixedIDGenerator{id: uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed))}
}

// NewID returns the fixed ID.
func (g *FixedIDGenerator) NewID() uuid.UUID {
	return g.id
}
