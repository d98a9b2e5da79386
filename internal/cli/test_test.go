package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clocksync/internal/harness"
)

func TestTestCommandTestdataScenarios(t *testing.T) {
	out, err := executeCommand(t, "test", scenariosDir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ scenario_c_catch_up")
	assert.Contains(t, out, "✓ membership_changes")
	assert.Contains(t, out, "7 passed, 0 failed, 7 total")
}

func TestTestCommandGoldenMatch(t *testing.T) {
	out, err := executeCommand(t, "test", scenariosDir, "--filter", "scenario_*", "--format", "json")
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 4, result.Passed)
	for _, s := range result.Scenarios {
		assert.Equal(t, goldenMatch, s.Golden, s.Name)
	}
}

func TestTestCommandUpdateWritesGolden(t *testing.T) {
	goldenDir := filepath.Join(t.TempDir(), "golden")

	out, err := executeCommand(t, "test", scenarioPath("scenario_d_ahead"), "--golden", goldenDir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ scenario_d_ahead (golden updated)")

	got, err := os.ReadFile(filepath.Join(goldenDir, "scenario_d_ahead.golden"))
	require.NoError(t, err)

	scenario, err := harness.LoadScenario(scenarioPath("scenario_d_ahead"))
	require.NoError(t, err)
	result, err := harness.Run(scenario)
	require.NoError(t, err)
	want, err := harness.Snapshot(scenario.Name, result.Reports)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	goldenDir := t.TempDir()
	writeFile(t, goldenDir, "scenario_a_all_ready.golden", `{"scenario":"scenario_a_all_ready","ticks":[]}`)

	out, err := executeCommand(t, "test", scenarioPath("scenario_a_all_ready"), "--golden", goldenDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ scenario_a_all_ready")
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "failing.yaml", `
name: failing
description: a lone waiting player never starts
players:
  - {id: p, time: 0, waiting: true}
steps:
  - ticks: 2
assertions:
  - {type: started_at, tick: 1}
`)

	out, err := executeCommand(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestTestCommandEmptyDirectory(t *testing.T) {
	out, err := executeCommand(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, err := executeCommand(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFilterScenarios(t *testing.T) {
	paths := []string{"a/scenario_a.yaml", "a/hysteresis_band.yml", "a/scenario_b.yaml"}

	kept, err := filterScenarios(paths, "scenario_*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/scenario_a.yaml", "a/scenario_b.yaml"}, kept)

	_, err = filterScenarios(paths, "[")
	require.Error(t, err)
}

func TestDefaultGoldenDir(t *testing.T) {
	assert.Equal(t, filepath.Join("testdata", "golden"), defaultGoldenDir(filepath.Join("testdata", "scenarios")))
	assert.Equal(t, filepath.Join("testdata", "golden"), defaultGoldenDir(filepath.Join("testdata", "scenarios")+"/"))
}
