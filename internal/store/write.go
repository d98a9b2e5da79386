package store

import (
	"context"
	"fmt"

	"github.com/roach88/clocksync/internal/engine"
)

// CreateSession inserts a session header.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) CreateSession(ctx context.Context, session Session) error {
	if session.ID == "" {
		return fmt.Errorf("create session: empty id")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, name, sync_target, max_sync_offset, maximum_start_delay)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		session.ID,
		session.Name,
		session.Thresholds.SyncTarget,
		session.Thresholds.MaxSyncOffset,
		session.Thresholds.MaximumStartDelay,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// WriteTick appends one tick report and its decisions in a single
// transaction. Writing the same (session, seq) twice is a no-op.
//
// The session referenced by sessionID must exist (foreign key constraint).
func (s *Store) WriteTick(ctx context.Context, sessionID string, report engine.TickReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write tick: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO ticks
		(session_id, seq, master_time, start_clock_time, started, started_this_tick,
		 forced_start, ready_count, master_running_before, master_running)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		sessionID,
		report.Seq,
		report.MasterTime,
		report.StartClockTime,
		report.Started,
		report.StartedThisTick,
		report.ForcedStart,
		report.ReadyCount,
		report.MasterRunningBefore,
		report.MasterRunning,
	)
	if err != nil {
		return fmt.Errorf("write tick: insert tick: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("write tick: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Already recorded.
		return tx.Commit()
	}

	for i, d := range report.Decisions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO decisions
			(session_id, seq, position, player_id, action, transition, player_time, time_delta,
			 waiting_on_frames, running_before, running, catching_before, catching_up)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sessionID,
			report.Seq,
			i,
			d.PlayerID,
			string(d.Action),
			string(d.Transition),
			d.PlayerTime,
			d.TimeDelta,
			d.WaitingOnFrames,
			d.RunningBefore,
			d.Running,
			d.CatchingBefore,
			d.CatchingUp,
		)
		if err != nil {
			return fmt.Errorf("write tick: insert decision %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write tick: commit: %w", err)
	}
	return nil
}

// FinishSession stores the final tick count and trace digest.
func (s *Store) FinishSession(ctx context.Context, sessionID string, tickCount int64, digest string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET tick_count = ?, digest = ? WHERE id = ?
	`, tickCount, digest, sessionID)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish session: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish session: %w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}
