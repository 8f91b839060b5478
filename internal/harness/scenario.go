package harness

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/forkbench/internal/ledger"
)

// Scenario is a YAML-defined sequence of actions against one fixture,
// each with the balance changes it must produce.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden trace.
	Name string `yaml:"name"`

	Description string `yaml:"description,omitempty"`

	// Fixture names the recipe that populates the ledger.
	Fixture string `yaml:"fixture"`

	// Setup steps run before the flow and must all finalize.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps are verified and recorded in the trace.
	Flow []Step `yaml:"flow"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-"`
}

// Step is one action, read or clock advance.
type Step struct {
	// As names a signer identity. Impersonate names an address or
	// identity label to act as without its credential.
	As          string `yaml:"as,omitempty"`
	Impersonate string `yaml:"impersonate,omitempty"`

	// Call is an operation name from the operation table, sent to Target.
	Call   string `yaml:"call,omitempty"`
	Target string `yaml:"target,omitempty"`
	Args   []Arg  `yaml:"args,omitempty"`

	// Value is native value attached to payable operations.
	Value string `yaml:"value,omitempty"`

	// Deadline is added to the ledger's time for operations that take a
	// deadline. Negative durations produce expired deadlines.
	Deadline string `yaml:"deadline,omitempty"`

	// AdvanceTime moves the ledger clock instead of calling an operation.
	AdvanceTime string `yaml:"advance_time,omitempty"`

	Expect   *ExpectClause  `yaml:"expect,omitempty"`
	Returns  []Arg          `yaml:"returns,omitempty"`
	Balances []BalanceCheck `yaml:"balances,omitempty"`
}

// ExpectClause declares that the step must be rejected.
type ExpectClause struct {
	Rejected         string `yaml:"rejected,omitempty"`
	RejectedContains string `yaml:"rejected_contains,omitempty"`
}

// BalanceCheck constrains how one holding changes across a step.
type BalanceCheck struct {
	Of        string `yaml:"of"`
	Asset     string `yaml:"asset"`
	Delta     string `yaml:"delta,omitempty"`
	Equals    string `yaml:"equals,omitempty"`
	Direction string `yaml:"direction,omitempty"`
}

// Arg is a scalar argument or a list of scalars (swap paths, owner sets).
type Arg struct {
	Value  string
	List   []string
	IsList bool
}

// UnmarshalYAML accepts any scalar or a flat sequence of scalars.
func (a *Arg) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		a.Value = n.Value
		return nil
	case yaml.SequenceNode:
		a.IsList = true
		a.List = make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list arguments must contain scalars", item.Line)
			}
			a.List = append(a.List, item.Value)
		}
		return nil
	}
	return fmt.Errorf("line %d: argument must be a scalar or a list", n.Line)
}

// MarshalYAML writes the argument back in its source form.
func (a Arg) MarshalYAML() (any, error) {
	if a.IsList {
		return a.List, nil
	}
	return a.Value, nil
}

func (a Arg) String() string {
	if a.IsList {
		return "[" + strings.Join(a.List, ", ") + "]"
	}
	return a.Value
}

// Expectation converts the clause.
func (c *ExpectClause) Expectation() Expectation {
	return Expectation{Rejected: c.Rejected, RejectedContains: c.RejectedContains}
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Path = path
	return sc, nil
}

// ParseScenario decodes and validates one scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every scenario named by paths. Directories are
// walked for .yaml and .yml files. Results are ordered by path and names
// must be unique.
func LoadScenarios(paths []string) ([]*Scenario, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scenario path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ext := filepath.Ext(path); !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}
	sort.Strings(files)

	seen := make(map[string]string, len(files))
	out := make([]*Scenario, 0, len(files))
	for _, f := range files {
		sc, err := LoadScenario(f)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[sc.Name]; ok {
			return nil, fmt.Errorf("duplicate scenario name %q in %s and %s", sc.Name, prev, f)
		}
		seen[sc.Name] = f
		out = append(out, sc)
	}
	return out, nil
}

// validateScenario checks structure that does not depend on a fixture.
// Names of identities, contracts and assets are resolved when the
// scenario runs.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Fixture == "" {
		return fmt.Errorf("fixture is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	for i := range s.Setup {
		step := &s.Setup[i]
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if step.Expect != nil || len(step.Balances) > 0 || len(step.Returns) > 0 {
			return fmt.Errorf("setup[%d]: setup steps cannot carry expectations", i)
		}
	}
	for i := range s.Flow {
		if err := validateStep(&s.Flow[i]); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(st *Step) error {
	if st.AdvanceTime != "" {
		if st.Call != "" || st.As != "" || st.Impersonate != "" {
			return fmt.Errorf("advance_time cannot be combined with a call")
		}
		d, err := time.ParseDuration(st.AdvanceTime)
		if err != nil {
			return fmt.Errorf("advance_time: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("advance_time must be positive")
		}
		return validateBalances(st.Balances)
	}

	if st.Call == "" {
		return fmt.Errorf("call is required")
	}
	op, err := ledger.ParseOperation(st.Call)
	if err != nil {
		return err
	}
	spec, _ := op.Spec()
	if st.Target == "" {
		return fmt.Errorf("target is required")
	}
	if len(st.Args) != len(spec.Args) {
		return fmt.Errorf("%s takes %d arguments, got %d", spec.Method, len(spec.Args), len(st.Args))
	}
	for i, kind := range spec.Args {
		if (kind == ledger.KindAddressList) != st.Args[i].IsList {
			return fmt.Errorf("%s argument %d must be a %s", spec.Method, i, kind)
		}
	}

	if !spec.Write {
		if st.As != "" || st.Impersonate != "" || st.Value != "" || st.Deadline != "" || st.Expect != nil {
			return fmt.Errorf("%s is a read; it takes no sender, value, deadline or rejection", spec.Method)
		}
		return validateBalances(st.Balances)
	}

	if (st.As == "") == (st.Impersonate == "") {
		return fmt.Errorf("exactly one of as or impersonate is required")
	}
	if st.Value != "" && !spec.Payable {
		return fmt.Errorf("%s does not accept value", spec.Method)
	}
	if st.Deadline != "" {
		if !spec.Deadline {
			return fmt.Errorf("%s does not take a deadline", spec.Method)
		}
		if _, err := time.ParseDuration(st.Deadline); err != nil {
			return fmt.Errorf("deadline: %w", err)
		}
	}
	if st.Expect != nil {
		if (st.Expect.Rejected == "") == (st.Expect.RejectedContains == "") {
			return fmt.Errorf("expect needs exactly one of rejected or rejected_contains")
		}
		if len(st.Returns) > 0 {
			return fmt.Errorf("a rejected step has no returns")
		}
	}
	return validateBalances(st.Balances)
}

func validateBalances(checks []BalanceCheck) error {
	for i, c := range checks {
		if c.Of == "" || c.Asset == "" {
			return fmt.Errorf("balances[%d]: of and asset are required", i)
		}
		if c.Delta == "" && c.Equals == "" && c.Direction == "" {
			return fmt.Errorf("balances[%d]: one of delta, equals or direction is required", i)
		}
		if c.Direction != "" {
			if _, err := ParseDirection(c.Direction); err != nil {
				return fmt.Errorf("balances[%d]: %w", i, err)
			}
		}
	}
	return nil
}
