// Package forknode drives an externally running forked development node
// (hardhat or anvil) over JSON-RPC.
//
// A Node takes an evm_snapshot when it is opened and reverts to it on
// Close, so every Node is an isolated view of the fork. Senders other than
// the node's own unlocked accounts must be impersonated first.
//
// Calls are packed with the embedded ERC20, WETH and Uniswap V2 interfaces
// using the method names of the ledger operation table. Submitted
// transactions are sent with eth_sendTransaction and the receipt is polled
// until it appears; polling never resends the transaction.
package forknode
