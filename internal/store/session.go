package store

import (
	"github.com/google/uuid"

	"github.com/roach88/clocksync/internal/engine"
)

// Session describes one recorded run of a SyncManager.
type Session struct {
	ID         string
	Name       string
	Thresholds engine.Thresholds

	// TickCount and Digest are filled in when the recording finishes.
	TickCount int64
	Digest    string
}

// SessionIDGenerator produces session IDs.
type SessionIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 session IDs.
//
// UUIDv7 embeds a millisecond timestamp, so ListSessions ordered by ID
// returns sessions in creation order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 string.
// Panics only if the system random source fails.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
