package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/clocksync/internal/engine"
	"github.com/roach88/clocksync/internal/trace"
)

// Recorder is an engine.Observer that appends every tick to a session.
//
// ObserveTick cannot return an error, so the first write failure is kept
// and later ticks are dropped. Check Err (or the result of Finish) once the
// run is over.
type Recorder struct {
	store   *Store
	ctx     context.Context
	session Session

	mu      sync.Mutex
	reports []engine.TickReport
	err     error
}

// NewRecorder creates the session row and returns a recorder for it.
// If session.ID is empty an ID is drawn from gen.
func NewRecorder(ctx context.Context, s *Store, session Session, gen SessionIDGenerator) (*Recorder, error) {
	if session.ID == "" {
		if gen == nil {
			gen = UUIDv7Generator{}
		}
		session.ID = gen.Generate()
	}
	if err := s.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return &Recorder{store: s, ctx: ctx, session: session}, nil
}

// SessionID returns the ID ticks are recorded under.
func (r *Recorder) SessionID() string {
	return r.session.ID
}

// ObserveTick implements engine.Observer.
func (r *Recorder) ObserveTick(report engine.TickReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return
	}
	if err := r.store.WriteTick(r.ctx, r.session.ID, report); err != nil {
		r.err = err
		return
	}
	r.reports = append(r.reports, report)
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Finish computes the session digest and stores it with the tick count.
// It returns the completed session header.
func (r *Recorder) Finish(ctx context.Context) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.session, fmt.Errorf("recorder: %w", r.err)
	}

	digest, err := trace.SessionDigest(r.reports)
	if err != nil {
		return r.session, fmt.Errorf("recorder: %w", err)
	}
	count := int64(len(r.reports))
	if err := r.store.FinishSession(ctx, r.session.ID, count, digest); err != nil {
		return r.session, err
	}

	r.session.TickCount = count
	r.session.Digest = digest
	return r.session, nil
}
