// Package canon produces canonical JSON (RFC 8785 style) for ledger records
// and derives content-addressed hashes from it.
//
// Canonical bytes are used for three things:
//   - transaction and block hashes on the simulated ledger
//   - event payloads persisted by the store
//   - golden trace files written by the harness
//
// Big integers are encoded as decimal strings so quantities above 2^53
// survive any JSON consumer unchanged. Floats and nulls are rejected.
package canon
