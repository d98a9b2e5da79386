package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clocksync/internal/store"
)

func TestSimulatePassingScenario(t *testing.T) {
	out, err := executeCommand(t, "simulate", scenarioPath("scenario_a_all_ready"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓ scenario_a_all_ready (1 ticks)")
	assert.NotContains(t, out, "Session:")
}

func TestSimulateVerbosePrintsTrace(t *testing.T) {
	out, err := executeCommand(t, "simulate", scenarioPath("scenario_a_all_ready"), "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "#1 master=0.000 started=true ready=2/2 master_running=true start")
	assert.Contains(t, out, "p1")
	assert.Contains(t, out, "run")
}

func TestSimulateJSONUsesCanonicalTicks(t *testing.T) {
	out, err := executeCommand(t, "simulate", scenarioPath("scenario_c_catch_up"), "--format", "json")
	require.NoError(t, err)

	var result struct {
		Scenario string            `json:"scenario"`
		Pass     bool              `json:"pass"`
		Ticks    []json.RawMessage `json:"ticks"`
	}
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "scenario_c_catch_up", result.Scenario)
	assert.True(t, result.Pass)
	assert.NotEmpty(t, result.Ticks)
}

func TestSimulateFailingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "failing.yaml", `
name: failing
description: the gate cannot open without frames
players:
  - {id: p, time: 0, waiting: true}
steps:
  - expect:
      started: true
assertions:
  - {type: decision_count, action: hold, count: 1}
`)

	out, err := executeCommand(t, "simulate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ failing")
	assert.Contains(t, out, "#1 master=")
}

func TestSimulateMissingScenario(t *testing.T) {
	_, err := executeCommand(t, "simulate", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulateRecordsSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "clocksync.db")

	out, err := executeCommand(t, "simulate", scenarioPath("scenario_c_catch_up"), "--db", dbPath, "--format", "json")
	require.NoError(t, err)

	var result SimulateResult
	resp := decodeResponse(t, out, &result)
	require.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, result.Digest)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	session, err := st.ReadSession(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "scenario_c_catch_up", session.Name)
	assert.Equal(t, result.Digest, session.Digest)
}
