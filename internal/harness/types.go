package harness

import "github.com/roach88/clocksync/internal/engine"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion holds.
	Pass bool `json:"pass"`

	// Reports contains one tick report per tick, in order.
	Reports []engine.TickReport `json:"reports"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the clock state after the last step.
	Final FinalState `json:"final"`

	// SessionID and Digest are set when the run was recorded to a store.
	SessionID string `json:"session_id,omitempty"`
	Digest    string `json:"digest,omitempty"`
}

// FinalState captures the master and every declared player after the run.
type FinalState struct {
	Started       bool                      `json:"started"`
	MasterTime    float64                   `json:"master_time"`
	MasterRunning bool                      `json:"master_running"`
	Players       map[string]PlayerSnapshot `json:"players"`
}

// PlayerSnapshot is one player clock's observable state.
type PlayerSnapshot struct {
	Time       float64 `json:"time"`
	Waiting    bool    `json:"waiting"`
	Running    bool    `json:"running"`
	CatchingUp bool    `json:"catching_up"`
	Registered bool    `json:"registered"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Reports: []engine.TickReport{},
		Errors:  []string{},
		Final:   FinalState{Players: make(map[string]PlayerSnapshot)},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
