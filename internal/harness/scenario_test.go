package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Valid(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/reentrant_round_trip.yaml")
	require.NoError(t, err)

	assert.Equal(t, "reentrant_round_trip", scenario.Name)
	assert.Equal(t, int64(23456), scenario.Initial)
	assert.Equal(t, "run-00000000-0000-0000-0000-000000000001", scenario.RunToken)
	assert.Len(t, scenario.Steps, 10)
	assert.Len(t, scenario.Assertions, 3)
	assert.Nil(t, scenario.Foreign)
}

func TestLoadScenario_ForeignValue(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/borrow_conflicts.yaml")
	require.NoError(t, err)

	require.NotNil(t, scenario.Foreign)
	assert.Equal(t, int64(99), *scenario.Foreign)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/does_not_exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	// "step:" instead of "steps:" must be rejected, not silently ignored.
	_, err := ParseScenario([]byte(`
name: typo
description: "unknown field"
initial: 0
step:
  - op: borrow
    as: r
assertions:
  - type: bound
    want: false
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_RequiredFields(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: `
description: "d"
steps:
  - op: borrow
    as: r
assertions:
  - type: bound
`,
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: `
name: n
steps:
  - op: borrow
    as: r
assertions:
  - type: bound
`,
			want: "description is required",
		},
		{
			name: "no steps",
			yaml: `
name: n
description: "d"
assertions:
  - type: bound
`,
			want: "steps list is required",
		},
		{
			name: "no assertions",
			yaml: `
name: n
description: "d"
steps:
  - op: borrow
    as: r
`,
			want: "assertions list is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseScenario_StepValidation(t *testing.T) {
	base := func(steps string) string {
		return `
name: n
description: "d"
steps:
` + steps + `
assertions:
  - type: bound
    want: false
`
	}

	cases := []struct {
		name  string
		steps string
		want  string
	}{
		{
			name:  "borrow without as",
			steps: "  - op: borrow",
			want:  "as is required",
		},
		{
			name:  "park without guard",
			steps: "  - op: park\n    as: p",
			want:  "guard is required",
		},
		{
			name:  "write without add",
			steps: "  - op: write\n    guard: m",
			want:  "add is required",
		},
		{
			name:  "unknown op",
			steps: "  - op: peek\n    guard: m",
			want:  "unknown op",
		},
		{
			name:  "unknown expected outcome",
			steps: "  - op: borrow\n    as: r\n    expect: explodes",
			want:  "unknown expected outcome",
		},
		{
			name:  "expect_value outside read",
			steps: "  - op: borrow\n    as: r\n    expect_value: 1",
			want:  "expect_value is only valid for read",
		},
		{
			name:  "foreign target without foreign value",
			steps: "  - op: borrow_mut\n    as: m\n  - op: park\n    guard: m\n    as: p\n    target: foreign",
			want:  "target foreign requires",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(base(tc.steps)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseScenario_AssertionValidation(t *testing.T) {
	base := func(assertions string) string {
		return `
name: n
description: "d"
steps:
  - op: borrow
    as: r
assertions:
` + assertions + `
`
	}

	cases := []struct {
		name       string
		assertions string
		want       string
	}{
		{
			name:       "missing type",
			assertions: "  - count: 1",
			want:       "type is required",
		},
		{
			name:       "unknown type",
			assertions: "  - type: trace_contains",
			want:       "unknown assertion type",
		},
		{
			name:       "trace_count without filter",
			assertions: "  - type: trace_count\n    count: 1",
			want:       "requires op or outcome",
		},
		{
			name:       "trace_count negative",
			assertions: "  - type: trace_count\n    op: borrow\n    count: -1",
			want:       "must be non-negative",
		},
		{
			name:       "trace_count unknown outcome",
			assertions: "  - type: trace_count\n    outcome: explodes\n    count: 1",
			want:       "unknown outcome",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(base(tc.assertions)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
