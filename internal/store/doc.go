// Package store provides SQLite-backed durable storage for tick logs.
//
// A session is one run of a SyncManager. Every tick report it produces is
// appended as one row in ticks plus one row per player in decisions.
//
// # Ordering
//
// Ticks are keyed and ordered by the manager's logical seq, never by wall
// time. Decisions within a tick keep the manager's iteration order via the
// position column, so reads return reports exactly as they were observed.
//
// # Replay
//
// Each decision row carries the observations the manager acted on (player
// time, waiting, running and catch-up state before the tick), and each tick
// row carries the master and start-gate readings. ReplaySession feeds those
// observations to a fresh manager and verifies every decision reproduces.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
