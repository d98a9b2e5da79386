package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/clocksync/internal/engine"
)

// ErrSessionNotFound is returned when a session ID has no header row.
var ErrSessionNotFound = errors.New("session not found")

// ReadSession retrieves a session header by ID.
// Returns ErrSessionNotFound if it does not exist.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, sync_target, max_sync_offset, maximum_start_delay, tick_count, digest
		FROM sessions
		WHERE id = ?
	`, id)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("read session: %w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	return session, nil
}

// ListSessions returns all session headers ordered by ID.
// With UUIDv7 IDs this is creation order.
//
// Returns an empty slice (not nil) if no sessions exist.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, sync_target, max_sync_offset, maximum_start_delay, tick_count, digest
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently created session.
// Returns ErrSessionNotFound if the store is empty.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, sync_target, max_sync_offset, maximum_start_delay, tick_count, digest
		FROM sessions
		ORDER BY id COLLATE BINARY DESC
		LIMIT 1
	`)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("latest session: %w", ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("latest session: %w", err)
	}
	return session, nil
}

// ReadTicks returns every tick report recorded for a session, ordered by
// seq, with decisions in their original iteration order.
//
// Returns an empty slice (not nil) if no ticks exist.
func (s *Store) ReadTicks(ctx context.Context, sessionID string) ([]engine.TickReport, error) {
	reports, err := s.readTickRows(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	bySeq := make(map[int64]int, len(reports))
	for i, r := range reports {
		bySeq[r.Seq] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, player_id, action, transition, player_time, time_delta,
		       waiting_on_frames, running_before, running, catching_before, catching_up
		FROM decisions
		WHERE session_id = ?
		ORDER BY seq ASC, position ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		seq, d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		i, ok := bySeq[seq]
		if !ok {
			return nil, fmt.Errorf("decision for unknown tick seq=%d", seq)
		}
		reports[i].Decisions = append(reports[i].Decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}

	return reports, nil
}

// ReadPlayerDecisions returns one player's decisions in seq order.
func (s *Store) ReadPlayerDecisions(ctx context.Context, sessionID, playerID string) ([]engine.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, player_id, action, transition, player_time, time_delta,
		       waiting_on_frames, running_before, running, catching_before, catching_up
		FROM decisions
		WHERE session_id = ? AND player_id = ?
		ORDER BY seq ASC
	`, sessionID, playerID)
	if err != nil {
		return nil, fmt.Errorf("query player decisions: %w", err)
	}
	defer rows.Close()

	decisions := []engine.Decision{}
	for rows.Next() {
		_, d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate player decisions: %w", err)
	}
	return decisions, nil
}

func (s *Store) readTickRows(ctx context.Context, sessionID string) ([]engine.TickReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, master_time, start_clock_time, started, started_this_tick, forced_start,
		       ready_count, master_running_before, master_running
		FROM ticks
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	reports := []engine.TickReport{}
	for rows.Next() {
		var r engine.TickReport
		if err := rows.Scan(
			&r.Seq,
			&r.MasterTime,
			&r.StartClockTime,
			&r.Started,
			&r.StartedThisTick,
			&r.ForcedStart,
			&r.ReadyCount,
			&r.MasterRunningBefore,
			&r.MasterRunning,
		); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		r.Decisions = []engine.Decision{}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return reports, nil
}

// rowScanner is implemented by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var session Session
	err := row.Scan(
		&session.ID,
		&session.Name,
		&session.Thresholds.SyncTarget,
		&session.Thresholds.MaxSyncOffset,
		&session.Thresholds.MaximumStartDelay,
		&session.TickCount,
		&session.Digest,
	)
	return session, err
}

func scanDecision(row rowScanner) (int64, engine.Decision, error) {
	var (
		seq        int64
		d          engine.Decision
		action     string
		transition string
	)
	if err := row.Scan(
		&seq,
		&d.PlayerID,
		&action,
		&transition,
		&d.PlayerTime,
		&d.TimeDelta,
		&d.WaitingOnFrames,
		&d.RunningBefore,
		&d.Running,
		&d.CatchingBefore,
		&d.CatchingUp,
	); err != nil {
		return 0, engine.Decision{}, fmt.Errorf("scan decision: %w", err)
	}
	d.Action = engine.Action(action)
	d.Transition = engine.Transition(transition)
	return seq, d, nil
}
