package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/forkbench/internal/scripts"
)

// NewScriptCommand creates the script command.
func NewScriptCommand(rootOpts *RootOptions) *cobra.Command {
	var list strings.Builder
	for _, name := range scripts.Names() {
		s, _ := scripts.Lookup(name)
		fmt.Fprintf(&list, "  %-30s %s\n", name, s.Description)
	}

	return &cobra.Command{
		Use:   "script <name>",
		Short: "Run a router script against the network's AMM deployment",
		Long: `Run one of the router scripts as an impersonated holder and print the
holder's balances before and after the router call.

The network's recipe provisions the fixture: on simulated networks it
recreates the mainnet router, factory and tokens with seeded pools.

Scripts:
` + list.String(),
		Args:          cobra.ExactArgs(1),
		ValidArgs:     scripts.Names(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(rootOpts, args[0], cmd)
		},
	}
}

func runScript(opts *RootOptions, name string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	s, err := scripts.Lookup(name)
	if err != nil {
		return f.Fail(ErrCodeConfig, WrapExitError(ExitCommandError, "select script", err))
	}
	profile, err := opts.profile()
	if err != nil {
		return f.Fail(ErrCodeConfig, asExitError(err))
	}
	log := opts.logger(cmd.ErrOrStderr())
	fx, err := provisionProfile(cmd.Context(), profile, log)
	if err != nil {
		return f.Fail(ErrCodeLedger, asExitError(err))
	}
	defer fx.Close()

	f.VerboseLog("Running %s on %s (fixture %s)", name, profile.Name, fx.ID())
	report, err := s.Run(cmd.Context(), fx)
	if err != nil {
		code := ErrCodeLedger
		if GetExitCode(err) == ExitFailure {
			code = ErrCodeRejected
		}
		return f.Fail(code, ledgerExit("script failed", err))
	}

	if f.JSON() {
		return f.Success(report)
	}
	return report.WriteText(f.Writer)
}
