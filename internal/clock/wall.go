package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Wall is a real-time master clock.
//
// It accumulates elapsed wall time while running and holds still while
// stopped. The underlying clockwork.Clock is injectable so tests can drive
// it with a fake clock.
type Wall struct {
	clock clockwork.Clock

	mu        sync.Mutex
	offset    float64   // ms accumulated before the current run
	startedAt time.Time // zero while stopped
}

// NewWall creates a stopped wall clock at time 0.
// Passing a nil clock uses clockwork.NewRealClock().
func NewWall(c clockwork.Clock) *Wall {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return &Wall{clock: c}
}

func (w *Wall) CurrentTime() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentLocked()
}

func (w *Wall) currentLocked() float64 {
	if w.startedAt.IsZero() {
		return w.offset
	}
	return w.offset + durationMillis(w.clock.Since(w.startedAt))
}

func (w *Wall) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.startedAt.IsZero()
}

func (w *Wall) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.startedAt.IsZero() {
		w.startedAt = w.clock.Now()
	}
}

func (w *Wall) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.startedAt.IsZero() {
		w.offset = w.currentLocked()
		w.startedAt = time.Time{}
	}
}

// Seek sets the current time, keeping the running state.
func (w *Wall) Seek(t float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.offset = t
	if !w.startedAt.IsZero() {
		w.startedAt = w.clock.Now()
	}
}

// WallTimeSource reports milliseconds elapsed since it was created.
//
// Used as the start gate's time source when the master clock does not
// advance before playback starts.
type WallTimeSource struct {
	clock  clockwork.Clock
	origin time.Time
}

// NewWallTimeSource creates a time source reading 0 now.
// Passing a nil clock uses clockwork.NewRealClock().
func NewWallTimeSource(c clockwork.Clock) *WallTimeSource {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	return &WallTimeSource{clock: c, origin: c.Now()}
}

func (s *WallTimeSource) CurrentTime() float64 {
	return durationMillis(s.clock.Since(s.origin))
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
