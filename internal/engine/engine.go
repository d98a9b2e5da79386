package engine

import (
	"log/slog"
	"math"
	"sync/atomic"
)

// Reference thresholds, in milliseconds.
const (
	// DefaultSyncTarget is the offset from the master within which a
	// catching-up player is considered re-synchronized.
	DefaultSyncTarget = 16.0

	// DefaultMaxSyncOffset is the offset behind the master beyond which an
	// in-sync player starts catching up.
	DefaultMaxSyncOffset = 50.0

	// DefaultMaximumStartDelay is the longest the start gate waits once some,
	// but not all, players are ready.
	DefaultMaximumStartDelay = 15000.0
)

// Thresholds holds the manager's tunable constants, in milliseconds.
type Thresholds struct {
	SyncTarget        float64 `json:"sync_target"`
	MaxSyncOffset     float64 `json:"max_sync_offset"`
	MaximumStartDelay float64 `json:"maximum_start_delay"`
}

// DefaultThresholds returns the reference thresholds (16, 50, 15000).
func DefaultThresholds() Thresholds {
	return Thresholds{
		SyncTarget:        DefaultSyncTarget,
		MaxSyncOffset:     DefaultMaxSyncOffset,
		MaximumStartDelay: DefaultMaximumStartDelay,
	}
}

// Validate checks that the thresholds form a usable hysteresis band.
func (t Thresholds) Validate() error {
	switch {
	case !isFinite(t.SyncTarget):
		return &ConfigError{Code: ErrCodeNonFiniteThreshold, Message: "sync target must be finite", Field: "sync_target"}
	case !isFinite(t.MaxSyncOffset):
		return &ConfigError{Code: ErrCodeNonFiniteThreshold, Message: "max sync offset must be finite", Field: "max_sync_offset"}
	case !isFinite(t.MaximumStartDelay):
		return &ConfigError{Code: ErrCodeNonFiniteThreshold, Message: "maximum start delay must be finite", Field: "maximum_start_delay"}
	case t.SyncTarget < 0:
		return &ConfigError{Code: ErrCodeNegativeThreshold, Message: "sync target must not be negative", Field: "sync_target"}
	case t.MaxSyncOffset < 0:
		return &ConfigError{Code: ErrCodeNegativeThreshold, Message: "max sync offset must not be negative", Field: "max_sync_offset"}
	case t.MaximumStartDelay < 0:
		return &ConfigError{Code: ErrCodeNegativeThreshold, Message: "maximum start delay must not be negative", Field: "maximum_start_delay"}
	case t.MaxSyncOffset < t.SyncTarget:
		return &ConfigError{Code: ErrCodeInvertedBand, Message: "max sync offset must be at least the sync target", Field: "max_sync_offset"}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// SyncManager synchronizes a dynamic set of player clocks to a master clock
// through catch-up.
//
// Thread-safety model:
//   - Tick(): must be called from exactly one goroutine at a time
//   - AddPlayerClock(), RemovePlayerClock(): safe from any goroutine,
//     including from clock callbacks during Tick; applied on the next Tick
//   - HasStarted(), Len(), FirstStartAttemptTime(): safe from any goroutine
//
// INVARIANTS:
//   - hasStarted never returns to false once set
//   - firstStartAttemptTime is recorded at most once
//   - no player is started while it reports WaitingOnFrames
type SyncManager struct {
	master     MasterClock
	startClock TimeSource
	thresholds Thresholds

	players *playerSet
	pending membershipQueue
	count   atomic.Int64

	hasStarted            atomic.Bool
	firstStartAttemptTime atomic.Pointer[float64]

	clock     *Clock
	observers []Observer
	logger    *slog.Logger

	optErr error
}

// Option allows configuration of manager parameters.
type Option func(*SyncManager)

// WithSyncTarget sets the offset at which a catching-up player is back in sync.
func WithSyncTarget(ms float64) Option {
	return func(m *SyncManager) {
		m.thresholds.SyncTarget = ms
	}
}

// WithMaxSyncOffset sets the offset beyond which an in-sync player starts
// catching up.
func WithMaxSyncOffset(ms float64) Option {
	return func(m *SyncManager) {
		m.thresholds.MaxSyncOffset = ms
	}
}

// WithMaximumStartDelay sets how long the start gate waits on partial readiness.
func WithMaximumStartDelay(ms float64) Option {
	return func(m *SyncManager) {
		m.thresholds.MaximumStartDelay = ms
	}
}

// WithThresholds replaces all three thresholds at once.
func WithThresholds(t Thresholds) Option {
	return func(m *SyncManager) {
		m.thresholds = t
	}
}

// WithStartTimeSource sets the time source the start gate measures its
// bounded wait against.
//
// Default: the master clock. The master is never started before the gate
// opens, so hosts whose master does not advance while stopped should pass a
// wall-clock source here, or the forced start can never trigger.
func WithStartTimeSource(ts TimeSource) Option {
	return func(m *SyncManager) {
		if ts == nil {
			m.optErr = &ConfigError{Code: ErrCodeNilDependency, Message: "start time source is nil"}
			return
		}
		m.startClock = ts
	}
}

// WithObserver registers an observer notified after every tick.
// Observers are notified in registration order.
func WithObserver(o Observer) Option {
	return func(m *SyncManager) {
		if o == nil {
			m.optErr = &ConfigError{Code: ErrCodeNilDependency, Message: "observer is nil"}
			return
		}
		m.observers = append(m.observers, o)
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *SyncManager) {
		if l == nil {
			m.optErr = &ConfigError{Code: ErrCodeNilDependency, Message: "logger is nil"}
			return
		}
		m.logger = l
	}
}

// WithClock sets the logical clock used to number ticks.
// Used to continue the numbering of an existing session.
func WithClock(c *Clock) Option {
	return func(m *SyncManager) {
		if c == nil {
			m.optErr = &ConfigError{Code: ErrCodeNilDependency, Message: "clock is nil"}
			return
		}
		m.clock = c
	}
}

// New creates a SyncManager for the given master clock.
//
// Options can be passed to configure thresholds, the start time source,
// observers and logging. Returns a *ConfigError if the resulting
// configuration is invalid.
func New(master MasterClock, opts ...Option) (*SyncManager, error) {
	if master == nil {
		return nil, &ConfigError{Code: ErrCodeNilMaster, Message: "master clock is required"}
	}

	m := &SyncManager{
		master:     master,
		startClock: master,
		thresholds: DefaultThresholds(),
		players:    newPlayerSet(),
		clock:      NewClock(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.optErr != nil {
		return nil, m.optErr
	}
	if err := m.thresholds.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// AddPlayerClock registers a player clock. Takes effect on the next Tick.
// Adding a clock that is already registered is a no-op.
func (m *SyncManager) AddPlayerClock(c PlayerClock) {
	if c == nil {
		return
	}
	m.pending.push(membershipOp{clock: c})
}

// RemovePlayerClock unregisters a player clock. Takes effect on the next Tick.
// Removing a clock that is not registered is a no-op.
//
// The manager never stops or otherwise touches a clock after removal.
func (m *SyncManager) RemovePlayerClock(c PlayerClock) {
	if c == nil {
		return
	}
	m.pending.push(membershipOp{clock: c, remove: true})
}

// HasStarted reports whether the start gate has opened.
// Used by hosts for "waiting for players" indicators.
func (m *SyncManager) HasStarted() bool {
	return m.hasStarted.Load()
}

// Len returns the number of registered player clocks as of the latest Tick.
func (m *SyncManager) Len() int {
	return int(m.count.Load())
}

// Thresholds returns the configured thresholds.
func (m *SyncManager) Thresholds() Thresholds {
	return m.thresholds
}

// Master returns the master clock.
func (m *SyncManager) Master() MasterClock {
	return m.master
}

// Clock returns the manager's logical tick clock.
func (m *SyncManager) Clock() *Clock {
	return m.clock
}

// Tick runs one scheduling frame and returns what was decided.
//
// CRITICAL: Must be called from exactly ONE goroutine at a time.
func (m *SyncManager) Tick() TickReport {
	m.applyMembership()

	masterTime := m.master.CurrentTime()
	startTime := m.startClock.CurrentTime()

	report := TickReport{
		Seq:                 m.clock.Next(),
		MasterTime:          masterTime,
		StartClockTime:      startTime,
		MasterRunningBefore: m.master.IsRunning(),
		Decisions:           make([]Decision, 0, m.players.len()),
	}

	wasStarted := m.hasStarted.Load()
	started, ready := m.attemptStart(startTime)
	report.Started = started
	report.ReadyCount = ready

	if started && !wasStarted {
		report.StartedThisTick = true
		report.ForcedStart = ready < m.players.len()
		m.logger.Info("playback started",
			"seq", report.Seq,
			"forced", report.ForcedStart,
			"ready", ready,
			"players", m.players.len(),
			"start_time", startTime,
		)
	}

	if !started {
		// Ensure all player clocks are stopped until the start succeeds.
		m.holdPlayers(masterTime, &report)
		report.MasterRunning = m.master.IsRunning()
		m.notify(report)
		return report
	}

	m.updatePlayerCatchup(masterTime, &report)
	m.updateMasterRunState(&report)

	m.notify(report)
	return report
}

// applyMembership drains pending add/remove requests in submission order.
func (m *SyncManager) applyMembership() {
	for _, op := range m.pending.drain() {
		if op.remove {
			if m.players.remove(op.clock) {
				m.logger.Debug("player clock removed", "player", PlayerID(op.clock))
			}
			continue
		}
		if m.players.add(op.clock) {
			m.logger.Debug("player clock added", "player", PlayerID(op.clock))
		}
	}
	m.count.Store(int64(m.players.len()))
}

// attemptStart evaluates the start gate. Waits for all player clocks to have
// available frames for up to MaximumStartDelay once any of them is ready.
//
// Returns whether playback is permitted and the number of ready players.
func (m *SyncManager) attemptStart(now float64) (bool, int) {
	ready := 0
	for _, c := range m.players.clocks {
		if !c.WaitingOnFrames() {
			ready++
		}
	}

	if m.hasStarted.Load() {
		return true, ready
	}

	total := m.players.len()
	if total == 0 {
		return false, 0
	}

	if ready == total {
		m.hasStarted.Store(true)
		return true, ready
	}

	if ready > 0 {
		first := m.firstStartAttemptTime.Load()
		if first == nil {
			first = &now
			m.firstStartAttemptTime.Store(first)
			m.logger.Info("waiting for players",
				"ready", ready,
				"players", total,
				"max_delay", m.thresholds.MaximumStartDelay,
			)
		}

		if now-*first >= m.thresholds.MaximumStartDelay {
			m.hasStarted.Store(true)
			return true, ready
		}
	}

	return false, ready
}

// FirstStartAttemptTime returns the time partial readiness was first seen.
func (m *SyncManager) FirstStartAttemptTime() (float64, bool) {
	first := m.firstStartAttemptTime.Load()
	if first == nil {
		return 0, false
	}
	return *first, true
}

// holdPlayers stops every player while the start gate is closed.
// Catch-up flags are not touched.
func (m *SyncManager) holdPlayers(masterTime float64, report *TickReport) {
	for _, c := range m.players.clocks {
		d := observe(c, masterTime)
		c.Stop()
		d.Action = ActionHold
		d.Running = c.IsRunning()
		d.CatchingUp = c.IsCatchingUp()
		report.Decisions = append(report.Decisions, d)
	}
}

// updatePlayerCatchup updates the run state and catch-up flag of every player.
func (m *SyncManager) updatePlayerCatchup(masterTime float64, report *TickReport) {
	t := m.thresholds

	for _, c := range m.players.clocks {
		d := observe(c, masterTime)

		// Player too far ahead. The master does the catching up here, so the
		// catch-up flag stays as it is.
		if d.TimeDelta < -t.SyncTarget {
			c.Stop()
			d.Action = ActionPauseAhead
			d.Running = c.IsRunning()
			d.CatchingUp = c.IsCatchingUp()
			report.Decisions = append(report.Decisions, d)
			continue
		}

		if d.WaitingOnFrames {
			c.Stop()
			d.Action = ActionWait
		} else {
			c.Start()
			d.Action = ActionRun
		}

		if c.IsCatchingUp() {
			if d.TimeDelta <= t.SyncTarget {
				c.SetCatchingUp(false)
				d.Transition = TransitionExit
			}
		} else if d.TimeDelta > t.MaxSyncOffset {
			c.SetCatchingUp(true)
			d.Transition = TransitionEnter
		}

		if d.Transition != TransitionNone {
			m.logger.Debug("catch-up state changed",
				"seq", report.Seq,
				"player", d.PlayerID,
				"transition", d.Transition,
				"time_delta", d.TimeDelta,
			)
		}

		d.Running = c.IsRunning()
		d.CatchingUp = c.IsCatchingUp()
		report.Decisions = append(report.Decisions, d)
	}
}

// updateMasterRunState runs the master iff at least one player is not
// catching up.
func (m *SyncManager) updateMasterRunState(report *TickReport) {
	anyInSync := false
	for _, c := range m.players.clocks {
		if !c.IsCatchingUp() {
			anyInSync = true
			break
		}
	}

	if m.master.IsRunning() != anyInSync {
		if anyInSync {
			m.master.Start()
		} else {
			m.master.Stop()
		}
		m.logger.Debug("master clock toggled",
			"seq", report.Seq,
			"running", anyInSync,
			"master_time", report.MasterTime,
		)
	}

	report.MasterRunning = m.master.IsRunning()
}

func (m *SyncManager) notify(report TickReport) {
	for _, o := range m.observers {
		o.ObserveTick(report)
	}
}

// observe snapshots a player's state before the manager acts on it.
func observe(c PlayerClock, masterTime float64) Decision {
	playerTime := c.CurrentTime()
	catching := c.IsCatchingUp()
	return Decision{
		PlayerID:        PlayerID(c),
		PlayerTime:      playerTime,
		TimeDelta:       masterTime - playerTime,
		WaitingOnFrames: c.WaitingOnFrames(),
		RunningBefore:   c.IsRunning(),
		Running:         c.IsRunning(),
		CatchingBefore:  catching,
		CatchingUp:      catching,
	}
}
