package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: one player, one tick
players:
  - id: p1
steps:
  - {}
assertions:
  - type: started_at
    tick: 1
`

func TestParseScenarioMinimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Players, 1)
	assert.Nil(t, s.Players[0].Registered)
	assert.Nil(t, s.Players[0].Time)
	assert.Len(t, s.Steps, 1)
}

func TestParseScenarioInlinePlayerState(t *testing.T) {
	src := `
name: inline
description: inline player state
players:
  - {id: p1, time: 12.5, waiting: true, catching_up: true, registered: false}
steps:
  - add: [p1]
assertions:
  - {type: started_at, tick: 0}
`
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)

	p := s.Players[0]
	require.NotNil(t, p.Time)
	assert.Equal(t, 12.5, *p.Time)
	assert.True(t, *p.Waiting)
	assert.True(t, *p.CatchingUp)
	assert.False(t, *p.Registered)
}

func TestParseScenarioRejects(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "unknown field",
			src:     "name: x\ndescription: y\nstep: []\n",
			wantErr: "field step not found",
		},
		{
			name:    "missing name",
			src:     "description: y\nsteps: [{}]\nassertions: [{type: started_at}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing steps",
			src:     "name: x\ndescription: y\nassertions: [{type: started_at}]\n",
			wantErr: "steps list is required",
		},
		{
			name:    "missing assertions",
			src:     "name: x\ndescription: y\nsteps: [{}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "duplicate player",
			src:     "name: x\ndescription: y\nplayers: [{id: a}, {id: a}]\nsteps: [{}]\nassertions: [{type: started_at}]\n",
			wantErr: "duplicate id",
		},
		{
			name:    "unknown player in step",
			src:     "name: x\ndescription: y\nsteps: [{remove: [ghost]}]\nassertions: [{type: started_at}]\n",
			wantErr: `unknown player "ghost"`,
		},
		{
			name:    "start_time without manual clock",
			src:     "name: x\ndescription: y\nsteps: [{start_time: 5}]\nassertions: [{type: started_at}]\n",
			wantErr: "start_time requires start_clock: manual",
		},
		{
			name:    "bad start clock",
			src:     "name: x\ndescription: y\nstart_clock: gps\nsteps: [{}]\nassertions: [{type: started_at}]\n",
			wantErr: "start_clock must be",
		},
		{
			name:    "inverted band",
			src:     "name: x\ndescription: y\nconfig: {sync_target_ms: 60}\nsteps: [{}]\nassertions: [{type: started_at}]\n",
			wantErr: "config:",
		},
		{
			name:    "unknown assertion type",
			src:     "name: x\ndescription: y\nsteps: [{}]\nassertions: [{type: trace_contains}]\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "unknown action",
			src:     "name: x\ndescription: y\nplayers: [{id: a}]\nsteps: [{}]\nassertions: [{type: decision_count, action: sprint}]\n",
			wantErr: `unknown action "sprint"`,
		},
		{
			name:    "order without sequence",
			src:     "name: x\ndescription: y\nplayers: [{id: a}]\nsteps: [{}]\nassertions: [{type: decision_order, player: a}]\n",
			wantErr: "sequence is required",
		},
		{
			name:    "empty final state",
			src:     "name: x\ndescription: y\nsteps: [{}]\nassertions: [{type: final_state}]\n",
			wantErr: "at least one expectation",
		},
		{
			name:    "bad expect transition",
			src:     "name: x\ndescription: y\nplayers: [{id: a}]\nsteps: [{expect: {players: {a: {transition: sideways}}}}]\nassertions: [{type: started_at}]\n",
			wantErr: `unknown transition "sideways"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestLoadScenarioTestdata(t *testing.T) {
	paths, err := DiscoverScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		_, err := LoadScenario(path)
		assert.NoError(t, err, path)
	}
}
