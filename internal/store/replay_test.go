package store

import (
	"context"
	"errors"
	"testing"
)

func TestReplaySession_Deterministic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	session := recordCatchUpSession(t, s, "rec-1")

	result, err := s.ReplaySession(ctx, "rec-1", nil)
	if err != nil {
		t.Fatalf("ReplaySession() failed: %v", err)
	}
	if !result.Deterministic() {
		t.Fatalf("unexpected mismatches: %v", result.Mismatches)
	}
	if result.Ticks != 5 {
		t.Errorf("Ticks = %d, expected 5", result.Ticks)
	}
	if result.ReplayedDigest != session.Digest {
		t.Errorf("ReplayedDigest = %s, expected %s", result.ReplayedDigest, session.Digest)
	}
}

func TestReplaySession_DetectsTamperedDecision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	recordCatchUpSession(t, s, "rec-1")

	// Pretend p2 never entered catch-up at tick 2.
	_, err := s.DB().Exec(`
		UPDATE decisions SET transition = '', catching_up = 0
		WHERE session_id = 'rec-1' AND seq = 2 AND player_id = 'p2'
	`)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	result, err := s.ReplaySession(ctx, "rec-1", nil)
	if err != nil {
		t.Fatalf("ReplaySession() failed: %v", err)
	}
	if result.Deterministic() {
		t.Fatal("expected mismatches after tampering")
	}

	found := false
	for _, m := range result.Mismatches {
		if m.Seq == 2 && m.PlayerID == "p2" && m.Field == "transition" {
			found = true
			if m.Recorded != "" || m.Replayed != "enter" {
				t.Errorf("mismatch = %s", m)
			}
		}
	}
	if !found {
		t.Errorf("no transition mismatch at seq 2: %v", result.Mismatches)
	}
}

func TestReplaySession_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReplaySession(context.Background(), "missing", nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, expected ErrSessionNotFound", err)
	}
}

func TestReplaySession_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	recordCatchUpSession(t, s, "rec-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// ReadSession itself honors the cancelled context.
	if _, err := s.ReplaySession(ctx, "rec-1", nil); err == nil {
		t.Error("expected error for cancelled context")
	}
}
