package driver

import (
	"math/rand/v2"

	"github.com/roach88/clocksync/internal/clock"
)

// SyntheticFeed simulates the frame pipelines behind a set of streams.
//
// Every stream starts without frames and becomes ready after a random
// number of frames. Once playing, each stream stalls with probability
// StallChance per frame for a random number of frames up to MaxStall.
// The same seed always produces the same readiness pattern.
type SyntheticFeed struct {
	StallChance float64
	MaxStall    int

	rng       *rand.Rand
	remaining map[*clock.Stream]int
	streams   []*clock.Stream
}

// NewSyntheticFeed creates a feed for streams. Streams are marked as
// waiting on frames immediately.
func NewSyntheticFeed(seed uint64, streams ...*clock.Stream) *SyntheticFeed {
	f := &SyntheticFeed{
		StallChance: 0.01,
		MaxStall:    30,
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		remaining:   make(map[*clock.Stream]int),
	}
	for _, s := range streams {
		f.Add(s)
	}
	return f
}

// Add starts simulating s with an initial buffering period.
func (f *SyntheticFeed) Add(s *clock.Stream) {
	f.streams = append(f.streams, s)
	f.remaining[s] = 1 + f.rng.IntN(f.maxStall())
	s.SetWaitingOnFrames(true)
}

// Hook returns the feed as a driver hook.
func (f *SyntheticFeed) Hook() Hook {
	return func(float64) { f.Step() }
}

// Step advances every simulated pipeline by one frame.
func (f *SyntheticFeed) Step() {
	for _, s := range f.streams {
		if n := f.remaining[s]; n > 0 {
			f.remaining[s] = n - 1
			if n == 1 {
				s.SetWaitingOnFrames(false)
			}
			continue
		}
		if f.rng.Float64() < f.StallChance {
			f.remaining[s] = 1 + f.rng.IntN(f.maxStall())
			s.SetWaitingOnFrames(true)
		}
	}
}

func (f *SyntheticFeed) maxStall() int {
	if f.MaxStall < 1 {
		return 1
	}
	return f.MaxStall
}
