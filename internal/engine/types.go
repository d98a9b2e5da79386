package engine

import "fmt"

// TimeSource reports a current time in milliseconds.
// The start gate measures its bounded wait against a TimeSource.
type TimeSource interface {
	CurrentTime() float64
}

// MasterClock is the single authoritative timeline.
//
// The manager only reads its time and toggles its running state; it never
// seeks it. The clock is owned by the host and must outlive the manager.
type MasterClock interface {
	TimeSource
	IsRunning() bool
	Start()
	Stop()
}

// PlayerClock is one spectated stream's playback timeline.
//
// The manager is the sole writer of the running state and the catch-up flag.
// WaitingOnFrames is owned by the stream's data pipeline and only read here.
type PlayerClock interface {
	TimeSource
	IsRunning() bool
	Start()
	Stop()

	// WaitingOnFrames reports whether the stream lacks buffered data.
	WaitingOnFrames() bool

	// IsCatchingUp reports whether the clock is flagged to play faster than
	// real time until it rejoins the master.
	IsCatchingUp() bool
	SetCatchingUp(catchingUp bool)
}

// Identifier is optionally implemented by player clocks to label decisions.
type Identifier interface {
	ID() string
}

// PlayerID returns the label used for a player clock in tick reports.
// Clocks that do not implement Identifier are labelled by address.
func PlayerID(c PlayerClock) string {
	if named, ok := c.(Identifier); ok {
		return named.ID()
	}
	return fmt.Sprintf("%p", c)
}

// Action is the run-state decision taken for one player in one tick.
type Action string

const (
	// ActionHold means the start gate is closed and the player was stopped.
	ActionHold Action = "hold"

	// ActionPauseAhead means the player leads the master by more than the
	// sync target and was stopped. Its catch-up flag is left untouched.
	ActionPauseAhead Action = "pause_ahead"

	// ActionRun means the player has frames and was left running.
	ActionRun Action = "run"

	// ActionWait means the player is waiting on frames and was kept stopped.
	ActionWait Action = "wait"
)

// Transition describes a change of the catch-up flag in one tick.
type Transition string

const (
	TransitionNone  Transition = ""
	TransitionEnter Transition = "enter"
	TransitionExit  Transition = "exit"
)

// Decision records what the manager observed and did for one player.
type Decision struct {
	PlayerID        string     `json:"player_id"`
	Action          Action     `json:"action"`
	Transition      Transition `json:"transition,omitempty"`
	PlayerTime      float64    `json:"player_time"`
	TimeDelta       float64    `json:"time_delta"`
	WaitingOnFrames bool       `json:"waiting_on_frames"`
	RunningBefore   bool       `json:"running_before"`
	Running         bool       `json:"running"`
	CatchingBefore  bool       `json:"catching_before"`
	CatchingUp      bool       `json:"catching_up"`
}

// TickReport is the outcome of one Tick.
type TickReport struct {
	Seq int64 `json:"seq"`

	// MasterTime is the master clock reading used for every delta this tick.
	MasterTime float64 `json:"master_time"`

	// StartClockTime is the start gate's time source reading.
	StartClockTime float64 `json:"start_clock_time"`

	// Started reports whether playback is permitted after this tick.
	Started bool `json:"started"`

	// StartedThisTick is true only on the tick the gate opened.
	StartedThisTick bool `json:"started_this_tick,omitempty"`

	// ForcedStart is true when the gate opened because the maximum start
	// delay elapsed while some players were still waiting on frames.
	ForcedStart bool `json:"forced_start,omitempty"`

	// ReadyCount is the number of players not waiting on frames.
	ReadyCount int `json:"ready_count"`

	MasterRunningBefore bool `json:"master_running_before"`
	MasterRunning       bool `json:"master_running"`

	Decisions []Decision `json:"decisions"`
}

// Decision returns the decision recorded for a player, if any.
func (r TickReport) Decision(playerID string) (Decision, bool) {
	for _, d := range r.Decisions {
		if d.PlayerID == playerID {
			return d, true
		}
	}
	return Decision{}, false
}

// CatchingUpCount returns the number of players flagged as catching up
// after this tick.
func (r TickReport) CatchingUpCount() int {
	n := 0
	for _, d := range r.Decisions {
		if d.CatchingUp {
			n++
		}
	}
	return n
}

// Observer receives every TickReport after the tick completes.
//
// Observers run synchronously on the tick goroutine and must not block.
// Recorders that can fail (e.g. the SQLite store) keep their own error state.
type Observer interface {
	ObserveTick(report TickReport)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(report TickReport)

// ObserveTick calls f(report).
func (f ObserverFunc) ObserveTick(report TickReport) {
	f(report)
}
