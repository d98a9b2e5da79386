package clock

import (
	"sync"
	"sync/atomic"
)

// DefaultCatchUpRate is the playback rate of a stream that is catching up.
const DefaultCatchUpRate = 2.0

// Stream is the playback clock of one spectated stream.
//
// The host advances it once per frame with the elapsed real time. A running
// stream advances by elapsed, or by elapsed*CatchUpRate while flagged as
// catching up. A stopped stream, or one waiting on frames, holds still.
//
// Ownership:
//   - the sync manager writes the running state and the catch-up flag
//   - the stream's data pipeline writes WaitingOnFrames, possibly from
//     another goroutine
type Stream struct {
	id   string
	rate float64

	waiting atomic.Bool

	mu       sync.Mutex
	time     float64
	running  bool
	catching bool
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithCatchUpRate sets the rate used while catching up. Rates below 1 are ignored.
func WithCatchUpRate(rate float64) StreamOption {
	return func(s *Stream) {
		if rate >= 1 {
			s.rate = rate
		}
	}
}

// WithWaitingOnFrames sets the initial readiness signal.
func WithWaitingOnFrames(waiting bool) StreamOption {
	return func(s *Stream) {
		s.waiting.Store(waiting)
	}
}

// NewStream creates a stopped stream clock at time 0.
func NewStream(id string, opts ...StreamOption) *Stream {
	s := &Stream{id: id, rate: DefaultCatchUpRate}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the stream identifier.
func (s *Stream) ID() string {
	return s.id
}

func (s *Stream) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.time
}

func (s *Stream) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Stream) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *Stream) IsCatchingUp() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catching
}

func (s *Stream) SetCatchingUp(catching bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catching = catching
}

func (s *Stream) WaitingOnFrames() bool {
	return s.waiting.Load()
}

// SetWaitingOnFrames updates the readiness signal. Called by the data pipeline.
func (s *Stream) SetWaitingOnFrames(waiting bool) {
	s.waiting.Store(waiting)
}

// CatchUpRate returns the rate used while catching up.
func (s *Stream) CatchUpRate() float64 {
	return s.rate
}

// Rate returns the current playback rate: 0 when held, CatchUpRate while
// catching up, otherwise 1.
func (s *Stream) Rate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rateLocked()
}

func (s *Stream) rateLocked() float64 {
	switch {
	case !s.running || s.waiting.Load():
		return 0
	case s.catching:
		return s.rate
	default:
		return 1
	}
}

// Advance moves the stream forward by elapsed real milliseconds at the
// current rate.
func (s *Stream) Advance(elapsed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.time += elapsed * s.rateLocked()
}

// Seek sets the current time.
func (s *Stream) Seek(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.time = t
}
