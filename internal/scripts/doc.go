// Package scripts runs the router flows used to exercise a forked AMM
// deployment by hand: adding and removing liquidity and the four swap
// shapes.
//
// Every script acts as one of the fixture's impersonated holders, approves
// the router where it needs to, and reports the holdings it touched before
// and after the router call:
//
//	fx, _ := harness.Provision(ctx, backend, ammFork)
//	s, _ := scripts.Lookup("swap-exact-eth-for-tokens")
//	report, err := s.Run(ctx, fx)
//	report.WriteText(os.Stdout)
//
// The fixture must come from the amm-fork recipe, which records the
// holders, the receiver, the router and the factory.
package scripts
