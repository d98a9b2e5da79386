// Package harness runs YAML conformance scenarios against a real SyncManager.
//
// A scenario declares a master clock, a set of player clocks and a list of
// steps. Each step mutates clocks the way a host would (seek, advance,
// toggle frame availability, register or unregister players), ticks the
// manager and optionally checks the resulting tick report:
//
//	name: catch_up_enter_exit
//	description: A lagging player catches up and rejoins
//	master: {time: 70, running: true}
//	players:
//	  - {id: p, time: 0}
//	steps:
//	  - expect:
//	      players:
//	        p: {transition: enter, catching_up: true}
//	  - players:
//	      p: {time: 60}
//	    expect:
//	      players:
//	        p: {transition: exit, catching_up: false}
//	assertions:
//	  - {type: decision_count, player: p, transition: enter, count: 1}
//
// Master and player clocks are clock.Manual and clock.Stream, so every run
// is deterministic. RunWithGolden compares the canonical decision trace
// with testdata/golden/<name>.golden.
package harness
