// Package ledger defines the vocabulary shared by the harness and the ledger
// backends: identities, assets, snapshots, action requests, receipts, the
// enumerated operation table and the error taxonomy.
//
// Two backends implement Backend: simchain (an in-process simulated ledger)
// and forknode (a JSON-RPC client for a forked development node).
package ledger
