package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/forkbench/internal/canon"
)

// GoldenDir is where traces are stored, relative to the test's package.
const GoldenDir = "testdata/golden"

// TraceBytes renders a result's trace as canonical JSON.
func TraceBytes(res *Result) ([]byte, error) {
	trace := make([]any, len(res.Trace))
	for i, ev := range res.Trace {
		trace[i] = ev
	}
	out, err := canon.Marshal(map[string]any{
		"scenario": res.Scenario,
		"fixture":  res.Fixture,
		"trace":    trace,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	return out, nil
}

// RunWithGolden runs the scenario and compares its trace with
// testdata/golden/<name>.golden. Regenerate with
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, r *Runner, sc *Scenario) (*Result, error) {
	t.Helper()

	res, err := r.Run(context.Background(), sc)
	if err != nil {
		return nil, err
	}
	return res, AssertGolden(t, sc.Name, res)
}

// AssertGolden compares an existing result's trace with its golden file.
func AssertGolden(t *testing.T, name string, res *Result) error {
	t.Helper()

	data, err := TraceBytes(res)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// GoldenMismatchError reports a trace that differs from its golden file.
type GoldenMismatchError struct {
	Path string
}

func (e *GoldenMismatchError) Error() string {
	return fmt.Sprintf("trace differs from %s (rerun with --update to accept)", e.Path)
}

// CheckGolden compares a trace with dir/<name>.golden outside of tests.
// With update set, the file is (re)written instead. A missing file is
// written on first run.
func CheckGolden(dir, name string, res *Result, update bool) (written bool, err error) {
	data, err := TraceBytes(res)
	if err != nil {
		return false, err
	}
	path := filepath.Join(dir, name+".golden")

	existing, err := os.ReadFile(path)
	switch {
	case err == nil && !update:
		if !bytes.Equal(existing, data) {
			return false, &GoldenMismatchError{Path: path}
		}
		return false, nil
	case err != nil && !os.IsNotExist(err):
		return false, fmt.Errorf("read golden: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("create golden dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write golden: %w", err)
	}
	return true, nil
}
