package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/clocksync/internal/engine"
	"github.com/roach88/clocksync/internal/trace"
)

// Snapshot renders a scenario's decision trace as canonical JSON:
//
//	{"scenario":<name>,"ticks":[<report>...]}
//
// Each report uses the trace package's canonical layout, sequence numbers
// included.
func Snapshot(name string, reports []engine.TickReport) ([]byte, error) {
	return trace.MarshalCanonical(map[string]any{
		"scenario": name,
		"ticks":    trace.ReportsValue(reports, true),
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...RunOption) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result.Reports)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)

	return nil
}
