// Package simchain is an in-process simulated ledger.
//
// A Chain hosts native Go contracts and keeps all of its state in a private
// SQLite store (in memory by default), so every Chain is an isolated ledger
// instance. It automines: each accepted action produces exactly one block,
// and a rejected action leaves no trace in state.
//
// # Execution model
//
// Contracts implement Contract and expose a dispatch table keyed by
// ledger.Operation. Handlers receive an *Env bound to the current action's
// store transaction; they read and write storage, move native value, call
// other contracts and emit events through it. Returning a *Revert aborts the
// whole action and rolls the transaction back.
//
// # Fork mode
//
// A chain created WithForkMode accepts actions from impersonated accounts
// and allows deploying contracts at fixed addresses, which is how recipes
// reproduce well-known mainnet deployments deterministically.
//
// There is no gas accounting: native value moves exactly as requested.
package simchain
