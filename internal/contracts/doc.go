// Package contracts holds the native contracts hosted by simchain.
//
// Each contract is a stateless dispatch table: constructors return a value
// whose Handlers map ledger operations to functions, and every piece of
// state lives in the executing contract's storage reached through
// simchain.Env. Reverts use the exact reason strings the deployed Solidity
// versions produce, so scenarios written against a forked node and against
// the simulated ledger expect the same rejections.
//
// Contracts:
//
//   - Token: ERC20 with optional faucet minting (CXIV and friends)
//   - WETH: wrapped native currency
//   - Factory, Pair, Router: constant-product AMM with a 0.3% fee
//   - Multisig: five-owner wallet with a three-approval quorum
//   - School: fee collection and staff payroll in an ERC20
//   - Properties: ERC20-priced property marketplace
//   - Vault: per-depositor savings of ether and ERC20 tokens
package contracts
