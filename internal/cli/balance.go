package cli

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/roach88/forkbench/internal/ledger"
)

// BalanceOptions holds flags for the balance command.
type BalanceOptions struct {
	*RootOptions
	Assets []string
}

// BalanceLine is one holding.
type BalanceLine struct {
	Of       string `json:"of"`
	Address  string `json:"address"`
	Asset    string `json:"asset"`
	Quantity string `json:"quantity"`
	Raw      string `json:"raw"`
	Block    uint64 `json:"block"`
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BalanceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "balance <address or label>",
		Short: "Print an account's holdings on a freshly provisioned fixture",
		Long: `Provision the network's recipe and print how much of each asset the
account holds. The account is a 0x address or a label the recipe records,
such as usdc-holder or receiver.

Examples:
  forkbench balance usdc-holder --asset USDC --asset ETH
  forkbench balance 0x6E4E768267B0E1e033B085aB6be4775Dd42B4b1E --network anvil`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBalance(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Assets, "asset", []string{"ETH"}, "asset symbol (repeatable)")
	return cmd
}

func runBalance(opts *BalanceOptions, ref string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	profile, err := opts.profile()
	if err != nil {
		return f.Fail(ErrCodeConfig, asExitError(err))
	}
	fx, err := provisionProfile(cmd.Context(), profile, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return f.Fail(ErrCodeLedger, asExitError(err))
	}
	defer fx.Close()

	id, err := fx.Identity(ref)
	if err != nil {
		if !common.IsHexAddress(ref) {
			return f.Fail(ErrCodeConfig, WrapExitError(ExitCommandError, "resolve account", err))
		}
		addr := common.HexToAddress(ref)
		id = ledger.Identity{Label: fx.Label(addr), Address: addr}
	}

	lines := make([]BalanceLine, 0, len(opts.Assets))
	for _, sym := range opts.Assets {
		asset, err := fx.Asset(sym)
		if err != nil {
			return f.Fail(ErrCodeConfig, WrapExitError(ExitCommandError, "resolve asset", err))
		}
		snap, err := fx.Snapshot(cmd.Context(), id, asset)
		if err != nil {
			return f.Fail(ErrCodeLedger, WrapExitError(ExitCommandError, "read balance", err))
		}
		lines = append(lines, BalanceLine{
			Of:       id.Label,
			Address:  id.Address.Hex(),
			Asset:    asset.Symbol,
			Quantity: asset.Format(snap.Quantity),
			Raw:      snap.Quantity.String(),
			Block:    snap.Block,
		})
	}

	if f.JSON() {
		return f.Success(lines)
	}
	for _, l := range lines {
		fmt.Fprintf(f.Writer, "%s balance of %s (%s): %s at block %d\n", l.Asset, l.Of, l.Address, l.Quantity, l.Block)
	}
	return nil
}
