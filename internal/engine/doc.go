// Package engine implements the clocksync catch-up sync manager.
//
// The manager is the heart of clocksync - it holds one master clock and a
// dynamic set of player clocks, and once per scheduling tick decides whether
// playback may begin, whether each player should run, pause or catch up, and
// whether the master should run.
//
// ARCHITECTURE:
//
// Tick-Driven Decision Loop:
// The manager performs no threading, blocking or I/O of its own. The host
// calls Tick() once per frame from a single goroutine. Every tick is a pure
// re-evaluation of the clocks' current observable state, so a missed or
// delayed tick needs no recovery.
//
// Tick Processing Flow:
//  1. Pending membership changes (AddPlayerClock/RemovePlayerClock) applied
//  2. attemptStart() evaluates the start gate
//  3. Gate closed: every player stopped, tick ends
//  4. updatePlayerCatchup() decides run/pause/catch-up per player
//  5. updateMasterRunState() runs the master iff any player is in sync
//  6. The TickReport is handed to every registered Observer
//
// Ordering guarantee: the start gate is always evaluated before catch-up,
// and every catch-up decision is resolved before the master decision.
//
// CRITICAL PATTERNS:
//
// Hysteresis Band:
// A player enters catch-up beyond MaxSyncOffset and leaves it only within
// SyncTarget. Two distinct thresholds keep the flag from oscillating when
// the offset hovers near a single boundary.
//
// Silent Ahead Correction:
// A player ahead of the master by more than SyncTarget is stopped and its
// catch-up flag is left untouched. The master does the correction by
// continuing to run until it reaches the player.
//
// Monotonic Start:
// Once the gate opens it never closes again for the manager's lifetime.
package engine
