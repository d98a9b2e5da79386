package clock

import "github.com/roach88/clocksync/internal/engine"

var (
	_ engine.MasterClock = (*Manual)(nil)
	_ engine.MasterClock = (*Wall)(nil)
	_ engine.PlayerClock = (*Stream)(nil)
	_ engine.Identifier  = (*Stream)(nil)
	_ engine.TimeSource  = (*WallTimeSource)(nil)
)
