package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/clocksync/internal/clock"
	"github.com/roach88/clocksync/internal/engine"
	"github.com/roach88/clocksync/internal/trace"
)

// Mismatch is one field that did not reproduce during replay.
type Mismatch struct {
	Seq      int64  `json:"seq"`
	PlayerID string `json:"player_id,omitempty"`
	Field    string `json:"field"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
}

func (m Mismatch) String() string {
	if m.PlayerID != "" {
		return fmt.Sprintf("seq=%d player=%s %s: recorded %s, replayed %s", m.Seq, m.PlayerID, m.Field, m.Recorded, m.Replayed)
	}
	return fmt.Sprintf("seq=%d %s: recorded %s, replayed %s", m.Seq, m.Field, m.Recorded, m.Replayed)
}

// ReplayResult is the outcome of re-driving a recorded session.
type ReplayResult struct {
	SessionID      string     `json:"session_id"`
	Ticks          int        `json:"ticks"`
	RecordedDigest string     `json:"recorded_digest"`
	ReplayedDigest string     `json:"replayed_digest"`
	Mismatches     []Mismatch `json:"mismatches"`
}

// Deterministic reports whether every recorded decision reproduced.
func (r ReplayResult) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// ReplaySession feeds a session's recorded observations to a fresh
// SyncManager built with the session's thresholds and compares every
// decision it makes with the recorded one.
//
// Before each tick the replay restores the master time and running state,
// the start-gate reading, and for each recorded player its time, frame
// availability, running state and catch-up flag. Players appear when first
// recorded and are removed once they stop appearing. Decisions are matched
// by player ID because removal reorders the player set.
func (s *Store) ReplaySession(ctx context.Context, sessionID string, logger *slog.Logger) (ReplayResult, error) {
	session, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	recorded, err := s.ReadTicks(ctx, sessionID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	master := clock.NewManual(0)
	startSource := clock.NewManual(0)

	var first int64
	if len(recorded) > 0 {
		first = recorded[0].Seq - 1
	}

	mgr, err := engine.New(master,
		engine.WithThresholds(session.Thresholds),
		engine.WithStartTimeSource(startSource),
		engine.WithClock(engine.NewClockAt(first)),
		engine.WithLogger(logger),
	)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	result := ReplayResult{
		SessionID:      sessionID,
		Ticks:          len(recorded),
		RecordedDigest: session.Digest,
		Mismatches:     []Mismatch{},
	}

	players := make(map[string]*clock.Stream)
	replayed := make([]engine.TickReport, 0, len(recorded))

	for _, want := range recorded {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("replay: %w", err)
		}

		restoreMaster(master, want)
		startSource.Seek(want.StartClockTime)
		syncMembership(mgr, players, want.Decisions)

		got := mgr.Tick()
		replayed = append(replayed, got)
		result.Mismatches = append(result.Mismatches, compareReports(want, got)...)
	}

	digest, err := trace.SessionDigest(replayed)
	if err != nil {
		return result, fmt.Errorf("replay: %w", err)
	}
	result.ReplayedDigest = digest

	return result, nil
}

func restoreMaster(master *clock.Manual, r engine.TickReport) {
	master.Seek(r.MasterTime)
	if r.MasterRunningBefore {
		master.Start()
	} else {
		master.Stop()
	}
}

// syncMembership adds newly recorded players, removes absent ones and
// restores every present player's observed state.
func syncMembership(mgr *engine.SyncManager, players map[string]*clock.Stream, decisions []engine.Decision) {
	present := make(map[string]bool, len(decisions))
	for _, d := range decisions {
		present[d.PlayerID] = true

		p, ok := players[d.PlayerID]
		if !ok {
			p = clock.NewStream(d.PlayerID)
			players[d.PlayerID] = p
			mgr.AddPlayerClock(p)
		}

		p.Seek(d.PlayerTime)
		p.SetWaitingOnFrames(d.WaitingOnFrames)
		p.SetCatchingUp(d.CatchingBefore)
		if d.RunningBefore {
			p.Start()
		} else {
			p.Stop()
		}
	}

	for id, p := range players {
		if !present[id] {
			mgr.RemovePlayerClock(p)
			delete(players, id)
		}
	}
}

func compareReports(want, got engine.TickReport) []Mismatch {
	var out []Mismatch
	add := func(player, field string, recorded, replayed any) {
		out = append(out, Mismatch{
			Seq:      want.Seq,
			PlayerID: player,
			Field:    field,
			Recorded: fmt.Sprint(recorded),
			Replayed: fmt.Sprint(replayed),
		})
	}

	if want.Started != got.Started {
		add("", "started", want.Started, got.Started)
	}
	if want.StartedThisTick != got.StartedThisTick {
		add("", "started_this_tick", want.StartedThisTick, got.StartedThisTick)
	}
	if want.ForcedStart != got.ForcedStart {
		add("", "forced_start", want.ForcedStart, got.ForcedStart)
	}
	if want.MasterRunning != got.MasterRunning {
		add("", "master_running", want.MasterRunning, got.MasterRunning)
	}
	if len(want.Decisions) != len(got.Decisions) {
		add("", "players", len(want.Decisions), len(got.Decisions))
	}

	for _, w := range want.Decisions {
		g, ok := got.Decision(w.PlayerID)
		if !ok {
			add(w.PlayerID, "decision", w.Action, "missing")
			continue
		}
		if w.Action != g.Action {
			add(w.PlayerID, "action", w.Action, g.Action)
		}
		if w.Transition != g.Transition {
			add(w.PlayerID, "transition", w.Transition, g.Transition)
		}
		if w.TimeDelta != g.TimeDelta {
			add(w.PlayerID, "time_delta", w.TimeDelta, g.TimeDelta)
		}
		if w.Running != g.Running {
			add(w.PlayerID, "running", w.Running, g.Running)
		}
		if w.CatchingUp != g.CatchingUp {
			add(w.PlayerID, "catching_up", w.CatchingUp, g.CatchingUp)
		}
	}
	return out
}
