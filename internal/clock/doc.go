// Package clock provides concrete master and player clocks for the sync manager.
//
//   - Manual: an adjustable master whose time moves only when told to
//   - Wall: a real-time master backed by a clockwork.Clock
//   - Stream: a spectator player clock advanced per frame by its host,
//     running at CatchUpRate while flagged as catching up
//   - WallTimeSource: a clockwork-backed start gate time source
//
// All times are in milliseconds.
package clock
