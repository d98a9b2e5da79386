package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/clocksync/internal/engine"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession inserts a session header with default thresholds.
func createTestSession(t *testing.T, s *Store, id string) Session {
	t.Helper()
	session := Session{ID: id, Name: "test", Thresholds: engine.DefaultThresholds()}
	if err := s.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return session
}

// createTestReport builds a started tick with one running player per id.
func createTestReport(seq int64, masterTime float64, ids ...string) engine.TickReport {
	r := engine.TickReport{
		Seq:                 seq,
		MasterTime:          masterTime,
		StartClockTime:      masterTime,
		Started:             true,
		ReadyCount:          len(ids),
		MasterRunningBefore: true,
		MasterRunning:       true,
		Decisions:           []engine.Decision{},
	}
	for _, id := range ids {
		r.Decisions = append(r.Decisions, engine.Decision{
			PlayerID:      id,
			Action:        engine.ActionRun,
			PlayerTime:    masterTime,
			RunningBefore: true,
			Running:       true,
		})
	}
	return r
}
