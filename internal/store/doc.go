// Package store provides SQLite-backed state for the simulated ledger.
//
// Each simulated chain owns one store, normally opened on ":memory:" so a
// fixture's state disappears with it. The store holds:
//   - Accounts: native balances and nonces
//   - Code: which native contract kind lives at an address
//   - Storage: per-contract key/value slots
//   - Blocks, transactions and events: the finalized history plus rejected
//     submissions (status 'rejected', no block)
//
// # Atomic actions
//
// Every submitted action runs inside a single Tx. A rejected action rolls
// the Tx back, so no partial state is ever visible. Reads made while a Tx is
// open must go through that Tx: the store keeps a single connection.
//
// # Deterministic ordering
//
// History queries order by seq (transactions) and log_index (events), never
// by timestamps.
package store
