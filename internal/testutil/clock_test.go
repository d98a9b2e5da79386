package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFakeMaster_CountsToggles(t *testing.T) {
	m := NewFakeMaster(100)
	assert.Equal(t, 100.0, m.CurrentTime())
	assert.False(t, m.IsRunning())

	m.Start()
	m.Start()
	m.Stop()

	assert.False(t, m.IsRunning())
	assert.Equal(t, 2, m.Starts())
	assert.Equal(t, 1, m.Stops())

	// SetRunning is not a toggle
	m.SetRunning(true)
	assert.True(t, m.IsRunning())
	assert.Equal(t, 2, m.Starts())
}

func TestFakePlayer_StateIsIndependent(t *testing.T) {
	p := NewFakePlayer("alice")
	assert.Equal(t, "alice", p.ID())

	p.SetTime(42)
	p.SetWaitingOnFrames(true)
	p.SetCatchingUp(true)

	assert.Equal(t, 42.0, p.CurrentTime())
	assert.True(t, p.WaitingOnFrames())
	assert.True(t, p.IsCatchingUp())
	assert.False(t, p.IsRunning())

	p.Start()
	assert.True(t, p.IsRunning())
	assert.Equal(t, 1, p.Starts())
}

func TestFakePlayer_ThreadSafe(t *testing.T) {
	p := NewFakePlayer("p")
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.SetWaitingOnFrames(true)
			_ = p.WaitingOnFrames()
			p.Start()
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, p.Starts())
}
