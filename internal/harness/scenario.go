package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a borrow scenario: an initial value, a sequence of borrow
// operations, and assertions on the resulting trace and final cell state.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden file
	// name, see RunWithGolden.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the cell's starting value.
	Initial int64 `yaml:"initial"`

	// Foreign, if set, creates a second value outside the cell. Steps with
	// target: foreign operate with a pointer to it, which exercises the
	// wrong-reference paths.
	Foreign *int64 `yaml:"foreign,omitempty"`

	// RunToken is an optional fixed run token for deterministic traces,
	// needed by golden file comparison. If empty, each run gets a fresh
	// UUIDv7 token.
	RunToken string `yaml:"run_token,omitempty"`

	// Steps is the operation sequence to execute.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and cell state.
	// Supported types: final_value, bound, poisoned, trace_count
	Assertions []Assertion `yaml:"assertions"`
}

// Step is a single borrow operation.
type Step struct {
	// Op names the operation: borrow, borrow_mut, park, release,
	// try_release, read, write.
	Op string `yaml:"op"`

	// As names the guard created by borrow, borrow_mut, and park.
	As string `yaml:"as,omitempty"`

	// Guard names the existing guard the operation acts on.
	Guard string `yaml:"guard,omitempty"`

	// Target selects which pointer a park step passes: "" (the named
	// guard's pointer) or "foreign" (a pointer outside the cell).
	Target string `yaml:"target,omitempty"`

	// Add is the amount a write step adds to the value.
	Add *int64 `yaml:"add,omitempty"`

	// Expect is the outcome this step must produce. Empty means ok.
	Expect string `yaml:"expect,omitempty"`

	// ExpectValue is the value a read step must observe.
	ExpectValue *int64 `yaml:"expect_value,omitempty"`
}

// Assertion validates the trace or the cell's final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_value": borrow the cell once more and compare the value
	// - "bound": compare IsCurrentlyBound against Want
	// - "poisoned": compare IsPoisoned against Want
	// - "trace_count": count trace events matching Op/Outcome
	Type string `yaml:"type"`

	// Value is the expected value (final_value).
	Value int64 `yaml:"value,omitempty"`

	// Want is the expected boolean (bound, poisoned).
	Want bool `yaml:"want,omitempty"`

	// Op filters trace events by operation (trace_count).
	Op string `yaml:"op,omitempty"`

	// Outcome filters trace events by outcome (trace_count).
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalValue = "final_value"
	AssertBound      = "bound"
	AssertPoisoned   = "poisoned"
	AssertTraceCount = "trace_count"
)

// Step operation constants.
const (
	OpBorrow     = "borrow"
	OpBorrowMut  = "borrow_mut"
	OpPark       = "park"
	OpRelease    = "release"
	OpTryRelease = "try_release"
	OpRead       = "read"
	OpWrite      = "write"
)

// TargetForeign marks a step that passes a pointer from outside the cell.
const TargetForeign = "foreign"

var validOutcomes = map[string]bool{
	OutcomeOK:             true,
	OutcomeContention:     true,
	OutcomeWrongReference: true,
	OutcomePoisoned:       true,
	OutcomeLogic:          true,
	OutcomeNotReleased:    true,
	OutcomeFatal:          true,
}

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

// ParseScenario parses scenario YAML bytes with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields (catches typos like "step:" vs "steps:")
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
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, s); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStep validates a single step based on its op.
func validateStep(index int, step *Step, s *Scenario) error {
	switch step.Op {
	case OpBorrow, OpBorrowMut:
		if step.As == "" {
			return fmt.Errorf("steps[%d]: as is required for %s", index, step.Op)
		}
	case OpPark:
		if step.Guard == "" {
			return fmt.Errorf("steps[%d]: guard is required for park", index)
		}
		if step.As == "" {
			return fmt.Errorf("steps[%d]: as is required for park", index)
		}
		if step.Target != "" && step.Target != TargetForeign {
			return fmt.Errorf("steps[%d]: unknown target %q", index, step.Target)
		}
		if step.Target == TargetForeign && s.Foreign == nil {
			return fmt.Errorf("steps[%d]: target foreign requires the scenario's foreign value", index)
		}
	case OpRelease, OpTryRelease, OpRead:
		if step.Guard == "" {
			return fmt.Errorf("steps[%d]: guard is required for %s", index, step.Op)
		}
	case OpWrite:
		if step.Guard == "" {
			return fmt.Errorf("steps[%d]: guard is required for write", index)
		}
		if step.Add == nil {
			return fmt.Errorf("steps[%d]: add is required for write", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	if step.Expect != "" && !validOutcomes[step.Expect] {
		return fmt.Errorf("steps[%d]: unknown expected outcome %q", index, step.Expect)
	}
	if step.ExpectValue != nil && step.Op != OpRead {
		return fmt.Errorf("steps[%d]: expect_value is only valid for read", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertFinalValue:
		// Value may legitimately be zero; nothing more to check.
	case AssertBound, AssertPoisoned:
		// Want defaults to false, which is a valid expectation.
	case AssertTraceCount:
		if a.Op == "" && a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: trace_count requires op or outcome", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
		if a.Outcome != "" && !validOutcomes[a.Outcome] {
			return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
