package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clocksync/internal/engine"
)

func sampleReports() []engine.TickReport {
	return []engine.TickReport{
		{
			Seq:             1,
			MasterTime:      1000,
			StartClockTime:  1000,
			Started:         true,
			StartedThisTick: true,
			ReadyCount:      1,
			MasterRunning:   true,
			Decisions: []engine.Decision{
				{PlayerID: "p1", Action: engine.ActionRun, TimeDelta: 0, Running: true},
			},
		},
		{
			Seq:            2,
			MasterTime:     1100,
			StartClockTime: 1100,
			Started:        true,
			ReadyCount:     1,
			MasterRunning:  true,
			Decisions: []engine.Decision{
				{PlayerID: "p1", Action: engine.ActionRun, Transition: engine.TransitionEnter, TimeDelta: 70, Running: true, CatchingUp: true},
			},
		},
	}
}

func TestMarshalReports(t *testing.T) {
	out, err := MarshalReports(sampleReports())
	require.NoError(t, err)

	expected := `[` +
		`{"decisions":[{"action":"run","catching_up":false,"delta":0,"player":"p1","running":true}],` +
		`"master_running":true,"master_time":1000,"ready":1,"seq":1,"started":true,"started_this_tick":true},` +
		`{"decisions":[{"action":"run","catching_up":true,"delta":70,"player":"p1","running":true,"transition":"enter"}],` +
		`"master_running":true,"master_time":1100,"ready":1,"seq":2,"started":true}` +
		`]`
	assert.Equal(t, expected, string(out))
}

func TestReportValueOptionalFields(t *testing.T) {
	r := engine.TickReport{
		MasterTime:     0,
		StartClockTime: 15000,
		Started:        true,
		ForcedStart:    true,
		Decisions: []engine.Decision{
			{PlayerID: "p2", Action: engine.ActionWait, WaitingOnFrames: true},
		},
	}

	v := ReportValue(r)
	assert.Equal(t, 15000.0, v["start_clock_time"])
	assert.Equal(t, true, v["forced_start"])
	_, ok := v["started_this_tick"]
	assert.False(t, ok)

	d := DecisionValue(r.Decisions[0])
	assert.Equal(t, true, d["waiting"])
	_, ok = d["transition"]
	assert.False(t, ok)
}

func TestSessionDigestIgnoresSeq(t *testing.T) {
	a := sampleReports()
	b := sampleReports()
	for i := range b {
		b[i].Seq += 40
	}

	da, err := SessionDigest(a)
	require.NoError(t, err)
	db, err := SessionDigest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Len(t, da, 64)
}

func TestSessionDigestChangesWithDecisions(t *testing.T) {
	a := sampleReports()
	b := sampleReports()
	b[1].Decisions[0].Action = engine.ActionPauseAhead

	da, err := SessionDigest(a)
	require.NoError(t, err)
	db, err := SessionDigest(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}

func TestTickDigestDomainSeparation(t *testing.T) {
	r := sampleReports()[0]
	tick, err := TickDigest(r)
	require.NoError(t, err)

	canonical, err := MarshalCanonical(ReportValue(r))
	require.NoError(t, err)
	assert.Equal(t, hashWithDomain(DomainTick, canonical), tick)
	assert.NotEqual(t, hashWithDomain(DomainSession, canonical), tick)
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "ab" + 0x00 + "c" must differ from "a" + 0x00 + "bc".
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}
