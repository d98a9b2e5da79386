package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clocksync/internal/store"
)

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := executeCommand(t, "replay")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeCommand(t, "replay", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found")
}

func TestReplayAllSessionsDeterministic(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	recordScenario(t, dbPath, "scenario_c_catch_up")
	recordScenario(t, dbPath, "hysteresis_band")

	out, err := executeCommand(t, "replay", "--db", dbPath, "--format", "json")
	require.NoError(t, err, out)

	var result ReplayResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 2, result.TotalSessions)
	assert.True(t, result.AllDeterministic)
	for _, s := range result.Sessions {
		assert.True(t, s.Deterministic, s.SessionID)
		assert.Empty(t, s.Mismatches)
		assert.Positive(t, s.Ticks)
	}
}

func TestReplaySingleSessionText(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	id := recordScenario(t, dbPath, "scenario_d_ahead")

	out, err := executeCommand(t, "replay", "--db", dbPath, "--session", id, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+id+" (scenario_d_ahead)")
	assert.Contains(t, out, "recorded digest:")
	assert.Contains(t, out, "All 1 session(s) replayed deterministically.")
}

func TestReplayDetectsTamperedDecision(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	id := recordScenario(t, dbPath, "scenario_a_all_ready")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB().ExecContext(context.Background(),
		`UPDATE decisions SET action = 'hold' WHERE session_id = ? AND player_id = 'p1'`, id)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeCommand(t, "replay", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+id)
	assert.Contains(t, out, "player=p1 action")
	assert.Contains(t, out, "Determinism verification FAILED.")
}
