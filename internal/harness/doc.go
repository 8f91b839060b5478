// Package harness verifies that ledger actions move balances by exactly
// the expected amounts.
//
// A scenario runs against a Fixture: a fresh ledger instance populated by
// a Recipe with named identities, assets and contracts. Each step obtains
// an authority (a signer or an impersonated account), snapshots the
// tracked balances, submits one action, snapshots again and verifies the
// change.
//
//	fx, err := harness.Provision(ctx, backends, recipe)
//	auth, err := fx.Impersonate(ctx, "0xf584f8728b874a6a5c7a8d4d387c9aae9172d621")
//	before, _ := fx.Snapshot(ctx, auth.Identity, usdc)
//	_, err = fx.Submit(ctx, auth, req)
//	after, _ := fx.Snapshot(ctx, auth.Identity, usdc)
//	err = harness.Verify(before, after, harness.ExpectDelta(big.NewInt(-1000e6)))
//
// # Scenario Format
//
// Scenarios are YAML files decoded strictly; unknown fields are errors.
//
//	name: transfer-moves-exact-amount
//	fixture: token
//	flow:
//	  - as: owner
//	    call: transfer
//	    target: CXIV
//	    args: [spender, "100 CXIV"]
//	    balances:
//	      - {of: owner, asset: CXIV, delta: "-100 CXIV"}
//	      - {of: spender, asset: CXIV, delta: "100 CXIV"}
//	      - {of: owner, asset: ETH, direction: unchanged}
//
// Argument strings resolve identity labels, contract names and token
// symbols to addresses. "<amount> <SYMBOL>" scales by the asset's
// decimals, plain integers are raw quantities and "max" is 2^256-1.
//
// # Determinism
//
// Traces name addresses by label and carry raw quantities, block numbers
// and relative deadlines only. Two fixtures of the same recipe on the
// simulated ledger produce byte-identical canonical traces, which are
// compared against golden files.
package harness
