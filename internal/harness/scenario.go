package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/clocksync/internal/engine"
)

// Scenario defines a sync manager conformance scenario.
// A scenario registers players, mutates clocks step by step, ticks the
// manager and asserts on the resulting decision trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is an optional fixed session ID used when the run is recorded.
	Session string `yaml:"session,omitempty"`

	// Config overrides the default thresholds.
	Config *ScenarioConfig `yaml:"config,omitempty"`

	// StartClock selects the start gate's time source: "master" (default)
	// or "manual", in which case steps set it with start_time.
	StartClock string `yaml:"start_clock,omitempty"`

	// Master is the initial master clock state.
	Master MasterState `yaml:"master"`

	// Players lists every player clock the scenario uses, in registration
	// order.
	Players []PlayerSpec `yaml:"players"`

	// Steps are executed in order. Each step applies its changes and then
	// ticks the manager.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: decision_contains, decision_count, decision_order,
	// started_at, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// ScenarioConfig overrides engine thresholds. Omitted fields keep defaults.
type ScenarioConfig struct {
	SyncTargetMs        *float64 `yaml:"sync_target_ms,omitempty"`
	MaxSyncOffsetMs     *float64 `yaml:"max_sync_offset_ms,omitempty"`
	MaximumStartDelayMs *float64 `yaml:"maximum_start_delay_ms,omitempty"`
	CatchUpRate         *float64 `yaml:"catch_up_rate,omitempty"`
}

// Thresholds applies the overrides to the default thresholds.
func (c *ScenarioConfig) Thresholds() engine.Thresholds {
	t := engine.DefaultThresholds()
	if c == nil {
		return t
	}
	if c.SyncTargetMs != nil {
		t.SyncTarget = *c.SyncTargetMs
	}
	if c.MaxSyncOffsetMs != nil {
		t.MaxSyncOffset = *c.MaxSyncOffsetMs
	}
	if c.MaximumStartDelayMs != nil {
		t.MaximumStartDelay = *c.MaximumStartDelayMs
	}
	return t
}

// MasterState is the master clock's time and running state.
type MasterState struct {
	Time    *float64 `yaml:"time,omitempty"`
	Running *bool    `yaml:"running,omitempty"`
}

// PlayerSpec declares a player clock and its initial state.
type PlayerSpec struct {
	ID string `yaml:"id"`

	// Registered controls whether the player is added before the first
	// step. Defaults to true; unregistered players join via Step.Add.
	Registered *bool `yaml:"registered,omitempty"`

	PlayerState `yaml:",inline"`
}

// PlayerState overrides a player clock's observable state.
// Nil fields are left unchanged.
type PlayerState struct {
	Time       *float64 `yaml:"time,omitempty"`
	Waiting    *bool    `yaml:"waiting,omitempty"`
	Running    *bool    `yaml:"running,omitempty"`
	CatchingUp *bool    `yaml:"catching_up,omitempty"`
}

// Step is one unit of scenario execution.
//
// Changes apply in field order: remove, add, master, players, start_time,
// advance. Then the manager ticks Ticks times (default 1) and Expect is
// checked against the last report.
type Step struct {
	Remove    []string               `yaml:"remove,omitempty"`
	Add       []string               `yaml:"add,omitempty"`
	Master    *MasterState           `yaml:"master,omitempty"`
	Players   map[string]PlayerState `yaml:"players,omitempty"`
	StartTime *float64               `yaml:"start_time,omitempty"`

	// Advance moves the master and every player forward by this many
	// milliseconds at their current rates, as a frame loop would.
	Advance float64 `yaml:"advance,omitempty"`

	Ticks  int         `yaml:"ticks,omitempty"`
	Expect *TickExpect `yaml:"expect,omitempty"`
}

// TickExpect validates a single tick report. Nil fields are not checked.
type TickExpect struct {
	Started       *bool                     `yaml:"started,omitempty"`
	Forced        *bool                     `yaml:"forced,omitempty"`
	MasterRunning *bool                     `yaml:"master_running,omitempty"`
	Players       map[string]DecisionExpect `yaml:"players,omitempty"`
}

// DecisionExpect validates one player's decision. Empty or nil fields are
// not checked; transition "none" requires no transition.
type DecisionExpect struct {
	Action     string   `yaml:"action,omitempty"`
	Transition string   `yaml:"transition,omitempty"`
	Delta      *float64 `yaml:"delta,omitempty"`
	Running    *bool    `yaml:"running,omitempty"`
	CatchingUp *bool    `yaml:"catching_up,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "decision_contains": some tick has a matching decision
	// - "decision_count": matching decisions occur exactly Count times
	// - "decision_order": Player's decisions match Sequence in order
	// - "started_at": the gate opened on tick Tick (0 = never)
	// - "final_state": clock states after the last step
	Type string `yaml:"type"`

	// Player, Action and Transition filter decisions
	// (decision_contains, decision_count, decision_order).
	Player     string `yaml:"player,omitempty"`
	Action     string `yaml:"action,omitempty"`
	Transition string `yaml:"transition,omitempty"`

	// Tick is a 1-based tick index (started_at, optional for decision_contains).
	Tick int `yaml:"tick,omitempty"`

	// Count is the expected number of matches (decision_count).
	Count int `yaml:"count,omitempty"`

	// Sequence lists actions or transitions that must occur in order
	// (decision_order).
	Sequence []string `yaml:"sequence,omitempty"`

	// Forced requires a forced or unforced start (started_at).
	Forced *bool `yaml:"forced,omitempty"`

	// Expected final state (final_state).
	Started       *bool                  `yaml:"started,omitempty"`
	MasterRunning *bool                  `yaml:"master_running,omitempty"`
	MasterTime    *float64               `yaml:"master_time,omitempty"`
	Players       map[string]PlayerState `yaml:"players,omitempty"`
}

// Assertion type constants.
const (
	AssertDecisionContains = "decision_contains"
	AssertDecisionCount    = "decision_count"
	AssertDecisionOrder    = "decision_order"
	AssertStartedAt        = "started_at"
	AssertFinalState       = "final_state"
)

// Start clock choices.
const (
	StartClockMaster = "master"
	StartClockManual = "manual"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	switch s.StartClock {
	case "", StartClockMaster, StartClockManual:
	default:
		return fmt.Errorf("start_clock must be %q or %q, got %q", StartClockMaster, StartClockManual, s.StartClock)
	}

	if err := s.Config.Thresholds().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if s.Config != nil && s.Config.CatchUpRate != nil && *s.Config.CatchUpRate < 1 {
		return fmt.Errorf("config: catch_up_rate must be at least 1")
	}

	known := make(map[string]bool, len(s.Players))
	for i, p := range s.Players {
		if p.ID == "" {
			return fmt.Errorf("players[%d]: id is required", i)
		}
		if known[p.ID] {
			return fmt.Errorf("players[%d]: duplicate id %q", i, p.ID)
		}
		known[p.ID] = true
	}

	checkIDs := func(where string, ids []string) error {
		for _, id := range ids {
			if !known[id] {
				return fmt.Errorf("%s: unknown player %q", where, id)
			}
		}
		return nil
	}

	for i, step := range s.Steps {
		where := fmt.Sprintf("steps[%d]", i)
		if err := checkIDs(where+".remove", step.Remove); err != nil {
			return err
		}
		if err := checkIDs(where+".add", step.Add); err != nil {
			return err
		}
		if err := checkIDs(where+".players", mapKeys(step.Players)); err != nil {
			return err
		}
		if step.Ticks < 0 {
			return fmt.Errorf("%s: ticks must be non-negative", where)
		}
		if step.Advance < 0 {
			return fmt.Errorf("%s: advance must be non-negative", where)
		}
		if step.StartTime != nil && s.StartClock != StartClockManual {
			return fmt.Errorf("%s: start_time requires start_clock: manual", where)
		}
		if step.Expect != nil {
			if err := checkIDs(where+".expect.players", mapKeys(step.Expect.Players)); err != nil {
				return err
			}
			for id, d := range step.Expect.Players {
				if err := validateDecisionExpect(d); err != nil {
					return fmt.Errorf("%s.expect.players.%s: %w", where, id, err)
				}
			}
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, known); err != nil {
			return err
		}
	}

	return nil
}

func validateDecisionExpect(d DecisionExpect) error {
	if d.Action != "" && !validAction(d.Action) {
		return fmt.Errorf("unknown action %q", d.Action)
	}
	if d.Transition != "" && !validTransition(d.Transition) {
		return fmt.Errorf("unknown transition %q", d.Transition)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, known map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	if a.Player != "" && !known[a.Player] {
		return fmt.Errorf("assertions[%d]: unknown player %q", index, a.Player)
	}
	if a.Action != "" && !validAction(a.Action) {
		return fmt.Errorf("assertions[%d]: unknown action %q", index, a.Action)
	}
	if a.Transition != "" && !validTransition(a.Transition) {
		return fmt.Errorf("assertions[%d]: unknown transition %q", index, a.Transition)
	}

	switch a.Type {
	case AssertDecisionContains:
		if a.Player == "" {
			return fmt.Errorf("assertions[%d]: player is required for decision_contains", index)
		}
		if a.Tick < 0 {
			return fmt.Errorf("assertions[%d]: tick must be positive", index)
		}
	case AssertDecisionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for decision_count", index)
		}
	case AssertDecisionOrder:
		if a.Player == "" {
			return fmt.Errorf("assertions[%d]: player is required for decision_order", index)
		}
		if len(a.Sequence) == 0 {
			return fmt.Errorf("assertions[%d]: sequence is required for decision_order", index)
		}
		for _, s := range a.Sequence {
			if !validAction(s) && !validTransition(s) {
				return fmt.Errorf("assertions[%d]: unknown action or transition %q", index, s)
			}
		}
	case AssertStartedAt:
		if a.Tick < 0 {
			return fmt.Errorf("assertions[%d]: tick must be non-negative for started_at", index)
		}
	case AssertFinalState:
		if a.Started == nil && a.MasterRunning == nil && a.MasterTime == nil && len(a.Players) == 0 {
			return fmt.Errorf("assertions[%d]: final_state requires at least one expectation", index)
		}
		for id := range a.Players {
			if !known[id] {
				return fmt.Errorf("assertions[%d]: unknown player %q", index, id)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validAction(s string) bool {
	return slices.Contains([]engine.Action{
		engine.ActionHold, engine.ActionPauseAhead, engine.ActionRun, engine.ActionWait,
	}, engine.Action(s))
}

// validTransition accepts "none" in addition to the real transitions.
func validTransition(s string) bool {
	return s == transitionNone ||
		engine.Transition(s) == engine.TransitionEnter ||
		engine.Transition(s) == engine.TransitionExit
}

const transitionNone = "none"

// mapKeys returns the keys of m in sorted order.
func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
