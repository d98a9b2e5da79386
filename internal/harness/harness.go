package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/roach88/clocksync/internal/clock"
	"github.com/roach88/clocksync/internal/engine"
	"github.com/roach88/clocksync/internal/store"
	"github.com/roach88/clocksync/internal/testutil"
)

// Harness executes one scenario against a real SyncManager.
type Harness struct {
	scenario *Scenario
	mgr      *engine.SyncManager
	master   *clock.Manual
	start    *clock.Manual // nil unless start_clock is manual
	players  map[string]*clock.Stream
	joined   map[string]bool
	logger   *slog.Logger
}

// RunOption configures a scenario run.
type RunOption func(*runConfig)

type runConfig struct {
	logger    *slog.Logger
	store     *store.Store
	observers []engine.Observer
}

// WithLogger sets the logger handed to the manager. Default discards.
func WithLogger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = l
	}
}

// WithStore records the run as a session in st. The session ID is the
// scenario's session field, or a fresh UUIDv7.
func WithStore(st *store.Store) RunOption {
	return func(c *runConfig) {
		c.store = st
	}
}

// WithObserver attaches an extra observer to the manager.
func WithObserver(o engine.Observer) RunOption {
	return func(c *runConfig) {
		c.observers = append(c.observers, o)
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Build the master, start source and player clocks from the scenario
// 2. Register every player not marked registered: false
// 3. Execute steps, checking expect clauses after each
// 4. Evaluate assertions and capture the final state
//
// A returned error means the scenario could not be executed; failed
// expectations are reported through Result.Pass and Result.Errors.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	var recorder *store.Recorder
	if cfg.store != nil {
		var gen store.SessionIDGenerator = store.UUIDv7Generator{}
		if scenario.Session != "" {
			gen = testutil.NewFixedSessionGenerator(scenario.Session)
		}
		var err error
		recorder, err = store.NewRecorder(context.Background(), cfg.store, store.Session{
			Name:       scenario.Name,
			Thresholds: scenario.Config.Thresholds(),
		}, gen)
		if err != nil {
			return nil, fmt.Errorf("failed to start recording: %w", err)
		}
		cfg.observers = append([]engine.Observer{recorder}, cfg.observers...)
	}

	h, err := newHarness(scenario, cfg)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(i, step, result)
	}

	h.captureFinal(result)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	if recorder != nil {
		session, err := recorder.Finish(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to finish recording: %w", err)
		}
		result.SessionID = session.ID
		result.Digest = session.Digest
	}

	return result, nil
}

func newHarness(scenario *Scenario, cfg runConfig) (*Harness, error) {
	h := &Harness{
		scenario: scenario,
		master:   clock.NewManual(0),
		players:  make(map[string]*clock.Stream, len(scenario.Players)),
		joined:   make(map[string]bool, len(scenario.Players)),
		logger:   cfg.logger,
	}
	h.applyMaster(scenario.Master)

	opts := []engine.Option{
		engine.WithThresholds(scenario.Config.Thresholds()),
		engine.WithLogger(cfg.logger),
	}
	for _, o := range cfg.observers {
		opts = append(opts, engine.WithObserver(o))
	}
	if scenario.StartClock == StartClockManual {
		h.start = clock.NewManual(0)
		opts = append(opts, engine.WithStartTimeSource(h.start))
	}

	mgr, err := engine.New(h.master, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync manager: %w", err)
	}
	h.mgr = mgr

	var streamOpts []clock.StreamOption
	if scenario.Config != nil && scenario.Config.CatchUpRate != nil {
		streamOpts = append(streamOpts, clock.WithCatchUpRate(*scenario.Config.CatchUpRate))
	}

	for _, p := range scenario.Players {
		s := clock.NewStream(p.ID, streamOpts...)
		applyPlayer(s, p.PlayerState)
		h.players[p.ID] = s
		if p.Registered == nil || *p.Registered {
			h.mgr.AddPlayerClock(s)
			h.joined[p.ID] = true
		}
	}

	return h, nil
}

// executeStep applies one step's changes, ticks, and checks its expect clause.
func (h *Harness) executeStep(index int, step Step, result *Result) {
	for _, id := range step.Remove {
		h.mgr.RemovePlayerClock(h.players[id])
		h.joined[id] = false
	}
	for _, id := range step.Add {
		h.mgr.AddPlayerClock(h.players[id])
		h.joined[id] = true
	}
	if step.Master != nil {
		h.applyMaster(*step.Master)
	}
	for _, id := range mapKeys(step.Players) {
		applyPlayer(h.players[id], step.Players[id])
	}
	if step.StartTime != nil {
		h.start.Seek(*step.StartTime)
	}
	if step.Advance > 0 {
		h.master.Advance(step.Advance)
		if h.start != nil {
			h.start.Advance(step.Advance)
		}
		for _, p := range h.scenario.Players {
			h.players[p.ID].Advance(step.Advance)
		}
	}

	ticks := step.Ticks
	if ticks == 0 {
		ticks = 1
	}

	var last engine.TickReport
	for i := 0; i < ticks; i++ {
		last = h.mgr.Tick()
		result.Reports = append(result.Reports, last)
	}

	h.logger.Debug("step executed",
		"step", index,
		"ticks", ticks,
		"started", last.Started,
		"master_running", last.MasterRunning,
	)

	if step.Expect != nil {
		for _, msg := range checkTickExpect(last, *step.Expect) {
			result.AddError(fmt.Sprintf("steps[%d] (seq %d): %s", index, last.Seq, msg))
		}
	}
}

func (h *Harness) applyMaster(m MasterState) {
	if m.Time != nil {
		h.master.Seek(*m.Time)
	}
	if m.Running != nil {
		if *m.Running {
			h.master.Start()
		} else {
			h.master.Stop()
		}
	}
}

func applyPlayer(s *clock.Stream, p PlayerState) {
	if p.Time != nil {
		s.Seek(*p.Time)
	}
	if p.Waiting != nil {
		s.SetWaitingOnFrames(*p.Waiting)
	}
	if p.Running != nil {
		if *p.Running {
			s.Start()
		} else {
			s.Stop()
		}
	}
	if p.CatchingUp != nil {
		s.SetCatchingUp(*p.CatchingUp)
	}
}

func (h *Harness) captureFinal(result *Result) {
	result.Final.Started = h.mgr.HasStarted()
	result.Final.MasterTime = h.master.CurrentTime()
	result.Final.MasterRunning = h.master.IsRunning()
	for id, s := range h.players {
		result.Final.Players[id] = PlayerSnapshot{
			Time:       s.CurrentTime(),
			Waiting:    s.WaitingOnFrames(),
			Running:    s.IsRunning(),
			CatchingUp: s.IsCatchingUp(),
			Registered: h.joined[id],
		}
	}

}

func checkTickExpect(r engine.TickReport, want TickExpect) []string {
	var errs []string
	if want.Started != nil && r.Started != *want.Started {
		errs = append(errs, fmt.Sprintf("started = %v, expected %v", r.Started, *want.Started))
	}
	if want.Forced != nil && r.ForcedStart != *want.Forced {
		errs = append(errs, fmt.Sprintf("forced = %v, expected %v", r.ForcedStart, *want.Forced))
	}
	if want.MasterRunning != nil && r.MasterRunning != *want.MasterRunning {
		errs = append(errs, fmt.Sprintf("master_running = %v, expected %v", r.MasterRunning, *want.MasterRunning))
	}
	for _, id := range mapKeys(want.Players) {
		d, ok := r.Decision(id)
		if !ok {
			errs = append(errs, fmt.Sprintf("player %s: no decision", id))
			continue
		}
		for _, msg := range checkDecision(d, want.Players[id]) {
			errs = append(errs, fmt.Sprintf("player %s: %s", id, msg))
		}
	}
	return errs
}

func checkDecision(d engine.Decision, want DecisionExpect) []string {
	var errs []string
	if want.Action != "" && string(d.Action) != want.Action {
		errs = append(errs, fmt.Sprintf("action = %s, expected %s", d.Action, want.Action))
	}
	if want.Transition != "" && !transitionMatches(d.Transition, want.Transition) {
		errs = append(errs, fmt.Sprintf("transition = %q, expected %q", d.Transition, want.Transition))
	}
	if want.Delta != nil && math.Abs(d.TimeDelta-*want.Delta) > 1e-9 {
		errs = append(errs, fmt.Sprintf("delta = %v, expected %v", d.TimeDelta, *want.Delta))
	}
	if want.Running != nil && d.Running != *want.Running {
		errs = append(errs, fmt.Sprintf("running = %v, expected %v", d.Running, *want.Running))
	}
	if want.CatchingUp != nil && d.CatchingUp != *want.CatchingUp {
		errs = append(errs, fmt.Sprintf("catching_up = %v, expected %v", d.CatchingUp, *want.CatchingUp))
	}
	return errs
}

func transitionMatches(got engine.Transition, want string) bool {
	if want == transitionNone {
		return got == engine.TransitionNone
	}
	return string(got) == want
}
