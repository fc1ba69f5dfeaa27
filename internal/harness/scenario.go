package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines an end-to-end build scenario: a recipe, the source
// files it reads, which operations fail, and what the build must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Recipe is the recipe document, inline.
	Recipe yaml.Node `yaml:"recipe"`

	// Sources are created in the work directory before the build, each
	// holding "source <path>".
	Sources []string `yaml:"sources"`

	// Fail names operations that fail every time they run.
	Fail []string `yaml:"fail,omitempty"`

	// Workers bounds concurrency. Defaults to 1 so traces are deterministic.
	Workers int `yaml:"workers,omitempty"`

	// FailFast stops the build at the first failure.
	FailFast bool `yaml:"fail_fast,omitempty"`

	// Keep disables temp cleanup.
	Keep bool `yaml:"keep_temps,omitempty"`

	// Targets restricts the build to these targets and their dependencies.
	Targets []string `yaml:"targets,omitempty"`

	// Assertions validate the outcome.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run ID. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// Assertion validates the build outcome.
type Assertion struct {
	// Type specifies the assertion type:
	// - "target_status": Check a target was built, failed or skipped
	// - "artifact": Check a file's content, or that it is absent
	// - "op_count": Check an operation executed exactly N times
	// - "op_order": Check operations first executed in order
	// - "final_state": Query a store table and verify expected values
	Type string `yaml:"type"`

	// Target is the target path (used by target_status).
	Target string `yaml:"target,omitempty"`

	// Status is the expected target status (used by target_status).
	Status string `yaml:"status,omitempty"`

	// Path is the artifact path relative to the work directory (used by artifact).
	Path string `yaml:"path,omitempty"`

	// Content is the exact expected content (used by artifact).
	Content string `yaml:"content,omitempty"`

	// Absent expects the artifact not to exist (used by artifact).
	Absent bool `yaml:"absent,omitempty"`

	// Op is the operation name (used by op_count).
	Op string `yaml:"op,omitempty"`

	// Count is the expected number of executions (used by op_count).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected execution order (used by op_order).
	Ops []string `yaml:"ops,omitempty"`

	// Table is the store table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]interface{} `yaml:"where,omitempty"`

	// Expect contains expected field values (used by final_state).
	// Subset match - only specified fields are validated.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTargetStatus = "target_status"
	AssertArtifact     = "artifact"
	AssertOpCount      = "op_count"
	AssertOpOrder      = "op_order"
	AssertFinalState   = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict fields catch typos like "assertion:" vs "assertions:".
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Recipe.Kind != yaml.MappingNode {
		return fmt.Errorf("recipe is required and must be a mapping")
	}

	if s.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTargetStatus:
		if a.Target == "" {
			return fmt.Errorf("assertions[%d]: target is required for target_status", index)
		}
		switch a.Status {
		case "built", "failed", "skipped":
		default:
			return fmt.Errorf("assertions[%d]: status must be built, failed or skipped, got %q", index, a.Status)
		}
	case AssertArtifact:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for artifact", index)
		}
		if a.Absent && a.Content != "" {
			return fmt.Errorf("assertions[%d]: absent and content are exclusive", index)
		}
	case AssertOpCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for op_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for op_count", index)
		}
	case AssertOpOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for op_order", index)
		}
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
