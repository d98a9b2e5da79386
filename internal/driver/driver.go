// Package driver runs a SyncManager at a fixed frame interval.
//
// Each frame the driver measures elapsed wall time, advances the clocks it
// owns by that amount, runs BeforeTick hooks and then ticks the manager.
// Time comes from a clockwork.Clock so tests can step frames with a fake.
package driver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/roach88/clocksync/internal/clock"
	"github.com/roach88/clocksync/internal/engine"
)

// DefaultInterval is roughly one frame at 60Hz.
const DefaultInterval = 16 * time.Millisecond

// Advancer is a clock moved forward by its host.
// clock.Manual and clock.Stream implement it.
type Advancer interface {
	Advance(elapsed float64)
}

// Hook runs on the tick goroutine before every Tick with the elapsed
// milliseconds since the previous frame.
type Hook func(elapsed float64)

// Driver owns the frame loop of one SyncManager.
type Driver struct {
	mgr      *engine.SyncManager
	clock    clockwork.Clock
	interval time.Duration
	master   Advancer
	hooks    []Hook
	logger   *slog.Logger

	mu      sync.Mutex
	streams []*clock.Stream
	last    time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock sets the time source for frame timing. Default is a real clock.
func WithClock(c clockwork.Clock) Option {
	return func(d *Driver) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithInterval sets the frame interval. Non-positive values are ignored.
func WithInterval(interval time.Duration) Option {
	return func(d *Driver) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithMasterAdvancer makes the driver advance a host-driven master clock
// each frame. Not needed for clock.Wall, which follows real time itself.
func WithMasterAdvancer(a Advancer) Option {
	return func(d *Driver) {
		d.master = a
	}
}

// WithBeforeTick appends a hook run before every tick.
func WithBeforeTick(h Hook) Option {
	return func(d *Driver) {
		if h != nil {
			d.hooks = append(d.hooks, h)
		}
	}
}

// WithLogger sets the driver's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a driver for mgr.
func New(mgr *engine.SyncManager, opts ...Option) *Driver {
	d := &Driver{
		mgr:      mgr,
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.last = d.clock.Now()
	return d
}

// AddStream registers a stream with the manager and advances it each frame.
func (d *Driver) AddStream(s *clock.Stream) {
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	d.mgr.AddPlayerClock(s)
}

// RemoveStream unregisters a stream. It stops advancing immediately and
// leaves the manager on the next tick.
func (d *Driver) RemoveStream(s *clock.Stream) {
	d.mu.Lock()
	for i, existing := range d.streams {
		if existing == s {
			d.streams = append(d.streams[:i], d.streams[i+1:]...)
			break
		}
	}
	d.mu.Unlock()
	d.mgr.RemovePlayerClock(s)
}

// Streams returns a copy of the driven streams.
func (d *Driver) Streams() []*clock.Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*clock.Stream, len(d.streams))
	copy(out, d.streams)
	return out
}

// Interval returns the frame interval.
func (d *Driver) Interval() time.Duration {
	return d.interval
}

// Step runs one frame: advance clocks, run hooks, tick.
//
// CRITICAL: Step and Run must not be called concurrently.
func (d *Driver) Step() engine.TickReport {
	now := d.clock.Now()
	elapsed := float64(now.Sub(d.last)) / float64(time.Millisecond)
	d.last = now

	if d.master != nil {
		d.master.Advance(elapsed)
	}
	for _, s := range d.Streams() {
		s.Advance(elapsed)
	}
	for _, h := range d.hooks {
		h(elapsed)
	}

	return d.mgr.Tick()
}

// Run steps once per interval until ctx is cancelled.
// Returns nil on cancellation.
func (d *Driver) Run(ctx context.Context) error {
	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("driver started", "interval", d.interval)
	defer d.logger.Info("driver stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			d.Step()
		}
	}
}
