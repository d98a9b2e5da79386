package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clocksync/internal/engine"
	"github.com/roach88/clocksync/internal/store"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRunTestdataScenariosPass(t *testing.T) {
	paths, err := DiscoverScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{
		"scenario_a_all_ready",
		"scenario_b_forced_start",
		"scenario_c_catch_up",
		"scenario_d_ahead",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRunScenarioBBoundary(t *testing.T) {
	result, err := Run(loadTestScenario(t, "scenario_b_forced_start"))
	require.NoError(t, err)
	require.Len(t, result.Reports, 3)

	assert.False(t, result.Reports[1].Started, "14999ms is not enough")
	assert.True(t, result.Reports[2].Started, "15000ms forces the start")
	assert.True(t, result.Reports[2].ForcedStart)
}

func TestRunReportsFailedExpectations(t *testing.T) {
	src := `
name: failing
description: expectations that cannot hold
players:
  - {id: p, time: 0}
master: {time: 70}
steps:
  - expect:
      started: false
      players:
        p: {action: hold, transition: none}
assertions:
  - {type: started_at, tick: 0}
  - {type: decision_count, player: p, transition: enter, count: 2}
  - type: final_state
    players:
      p: {catching_up: false}
`
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	// Step: started, action, transition. Assertions: three.
	assert.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "steps[0] (seq 1): started = true, expected false")
}

func TestRunAdvance(t *testing.T) {
	src := `
name: advance
description: frames move running clocks at their rates
config: {catch_up_rate: 2}
master: {time: 100}
players:
  - {id: anchor, time: 100}
  - {id: p, time: 0}
steps:
  - {}
  - advance: 10
    expect:
      players:
        p: {delta: 90, catching_up: true}
        anchor: {delta: 0}
assertions:
  - type: final_state
    master_time: 110
    players:
      p: {time: 20}
      anchor: {time: 110}
`
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithObserver(t *testing.T) {
	var seen []int64
	obs := engine.ObserverFunc(func(r engine.TickReport) {
		seen = append(seen, r.Seq)
	})

	result, err := Run(loadTestScenario(t, "hysteresis_band"), WithObserver(obs))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, seen)
	assert.Len(t, result.Reports, 6)
}

func TestRunWithStoreRecordsAndReplays(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "harness.db"))
	require.NoError(t, err)
	defer st.Close()

	s := loadTestScenario(t, "membership_changes")
	s.Session = "membership-session"

	result, err := Run(s, WithStore(st))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "membership-session", result.SessionID)
	assert.Len(t, result.Digest, 64)

	ctx := context.Background()
	ticks, err := st.ReadTicks(ctx, "membership-session")
	require.NoError(t, err)
	assert.Equal(t, result.Reports, ticks)

	replay, err := st.ReplaySession(ctx, "membership-session", nil)
	require.NoError(t, err)
	assert.True(t, replay.Deterministic(), "mismatches: %v", replay.Mismatches)
	assert.Equal(t, result.Digest, replay.ReplayedDigest)
}

func TestRunWithStoreGeneratesSessionID(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "harness.db"))
	require.NoError(t, err)
	defer st.Close()

	result, err := Run(loadTestScenario(t, "scenario_a_all_ready"), WithStore(st))
	require.NoError(t, err)
	assert.Len(t, result.SessionID, 36)
}

func TestRunInvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "x"})
	assert.ErrorContains(t, err, "invalid scenario")
}
