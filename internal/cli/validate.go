package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/forkbench/internal/fixtures"
	"github.com/roach88/forkbench/internal/harness"
)

// ValidatedScenario summarizes one valid scenario.
type ValidatedScenario struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Fixture string `json:"fixture"`
	Steps   int    `json:"steps"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario files or dirs>...",
		Short: "Validate scenarios without running them",
		Long: `Parse and validate YAML scenarios without provisioning a ledger.

Checks structure, operation names and arity, sender rules, and that every
fixture names a known recipe. Names of identities and contracts are
resolved only when a scenario runs.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	scenarios, err := harness.LoadScenarios(paths)
	if err != nil {
		return f.Fail(ErrCodeInvalid, WrapExitError(ExitFailure, "invalid scenario", err))
	}
	profile, err := opts.profile()
	if err != nil {
		return f.Fail(ErrCodeConfig, asExitError(err))
	}

	out := make([]ValidatedScenario, 0, len(scenarios))
	for _, sc := range scenarios {
		if _, err := fixtures.Lookup(sc.Fixture, profile); err != nil {
			return f.Fail(ErrCodeInvalid, WrapExitError(ExitFailure, fmt.Sprintf("%s: invalid scenario", sc.Path), err))
		}
		f.VerboseLog("Validated %s", sc.Path)
		out = append(out, ValidatedScenario{
			Name:    sc.Name,
			Path:    sc.Path,
			Fixture: sc.Fixture,
			Steps:   len(sc.Setup) + len(sc.Flow),
		})
	}

	if f.JSON() {
		return f.Success(out)
	}
	for _, v := range out {
		fmt.Fprintf(f.Writer, "✓ %s (%s, %d steps)\n", v.Name, v.Fixture, v.Steps)
	}
	fmt.Fprintf(f.Writer, "%d scenario(s) valid\n", len(out))
	return nil
}
