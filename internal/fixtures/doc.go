// Package fixtures holds the named recipes scenarios provision against.
//
// Every recipe except amm-fork deploys the native contracts on the
// simulated ledger and labels the development signers after the parties
// of the contract's workflow (owner, buyer, admin). amm-fork recreates the mainnet AMM
// deployment at its real addresses on a fork-mode simulated ledger, or
// records those addresses when running against a forked node.
package fixtures
