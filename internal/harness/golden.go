package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"golang.org/x/text/unicode/norm"
)

// TraceSnapshot captures the complete trace of a scenario execution.
// Serialized with stable field order so golden comparison is byte-exact.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunToken     string       `json:"run_token"`
	Initial      int64        `json:"initial"`
	Trace        []TraceEvent `json:"trace"`
}

// MarshalSnapshot serializes a snapshot the way golden files store it.
func MarshalSnapshot(s *TraceSnapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// goldenName normalizes a scenario name into a golden file name. Scenario
// names are author-written Unicode; NFC normalization keeps the file name
// stable regardless of how the editor encoded it.
func goldenName(name string) string {
	return norm.NFC.String(name)
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files serve as the source of truth for expected trace behavior;
// any semantic change to the cell shows up as a golden diff here.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario, result)
}

// AssertGolden compares an already-obtained result against the scenario's
// golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	snapshot := &TraceSnapshot{
		ScenarioName: scenario.Name,
		RunToken:     result.RunToken,
		Initial:      scenario.Initial,
		Trace:        result.Trace,
	}
	data, err := MarshalSnapshot(snapshot)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, goldenName(scenario.Name), data)

	return nil
}
