package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/forkbench/internal/fixtures"
	"github.com/roach88/forkbench/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario name filter (glob pattern)
	Golden string // golden directory; empty means <scenario dir>/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "matched", "written" or "mismatch"
	Errors []string `json:"errors,omitempty"`
}

// RunResult holds the overall result.
type RunResult struct {
	Network   string           `json:"network"`
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario files or dirs>...",
		Short: "Run YAML scenarios",
		Long: `Run YAML scenarios, each against a freshly provisioned fixture.

Every step's balance expectations are verified and the trace is compared
with the scenario's golden file when one exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad config, unreachable node)

Examples:
  forkbench run ./scenarios
  forkbench run ./scenarios --filter "amm-*"
  forkbench run ./scenarios --update
  forkbench run ./scenarios --network anvil --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name (glob pattern)")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory (default <scenario dir>/golden)")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, ""); err != nil {
			return f.Fail(ErrCodeInvalid, WrapExitError(ExitCommandError, "invalid filter pattern", err))
		}
	}
	scenarios, err := harness.LoadScenarios(paths)
	if err != nil {
		return f.Fail(ErrCodeInvalid, WrapExitError(ExitCommandError, "load scenarios", err))
	}

	profile, err := opts.profile()
	if err != nil {
		return f.Fail(ErrCodeConfig, asExitError(err))
	}
	log := opts.logger(cmd.ErrOrStderr())
	newBackend, err := backendFactory(profile, log)
	if err != nil {
		return f.Fail(ErrCodeConfig, WrapExitError(ExitCommandError, "select backend", err))
	}
	runner := &harness.Runner{
		NewBackend: newBackend,
		Recipes:    fixtures.Source(profile),
		Logger:     log,
		Options:    []harness.Option{harness.WithDeadlineGrace(profile.DeadlineGrace)},
	}

	result := RunResult{Network: profile.Name, Scenarios: []ScenarioResult{}}
	for _, sc := range scenarios {
		if opts.Filter != "" {
			if ok, _ := filepath.Match(opts.Filter, sc.Name); !ok {
				continue
			}
		}
		f.VerboseLog("Running %s (%s)", sc.Name, sc.Path)
		sr := runOne(opts, runner, sc, cmd)
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if f.JSON() {
		if err := f.encode(runResponse(result)); err != nil {
			return err
		}
	} else {
		printRunText(f, result)
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func runOne(opts *RunOptions, runner *harness.Runner, sc *harness.Scenario, cmd *cobra.Command) ScenarioResult {
	sr := ScenarioResult{Name: sc.Name}
	res, err := runner.Run(cmd.Context(), sc)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Pass = res.Pass
	sr.Errors = res.Errors

	dir := opts.Golden
	if dir == "" {
		dir = filepath.Join(filepath.Dir(sc.Path), "golden")
	}
	goldenPath := filepath.Join(dir, sc.Name+".golden")
	if _, err := os.Stat(goldenPath); err != nil && !opts.Update {
		// No golden file: assertions only.
		return sr
	}
	written, err := harness.CheckGolden(dir, sc.Name, res, opts.Update)
	switch {
	case err != nil:
		sr.Pass = false
		sr.Golden = "mismatch"
		sr.Errors = append(sr.Errors, err.Error())
	case written:
		sr.Golden = "written"
	default:
		sr.Golden = "matched"
	}
	return sr
}

func runResponse(result RunResult) CLIResponse {
	resp := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    ErrCodeScenarioFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	return resp
}

func printRunText(f *OutputFormatter, result RunResult) {
	w := f.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, sr := range result.Scenarios {
		mark := "✓"
		if !sr.Pass {
			mark = "✗"
		}
		if sr.Golden == "written" {
			fmt.Fprintf(w, "%s %s (golden updated)\n", mark, sr.Name)
		} else {
			fmt.Fprintf(w, "%s %s\n", mark, sr.Name)
		}
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total on %s\n", result.Passed, result.Failed, result.Total, result.Network)
	if result.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}
