package clock

import "sync"

// Manual is an adjustable master clock driven entirely by its host.
//
// Seek moves the clock regardless of running state; Advance only moves it
// while running. Thread-safety: all methods are safe for concurrent use.
type Manual struct {
	mu      sync.Mutex
	time    float64
	running bool
}

// NewManual creates a stopped clock at time t.
func NewManual(t float64) *Manual {
	return &Manual{time: t}
}

func (c *Manual) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.time
}

func (c *Manual) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Manual) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = true
}

func (c *Manual) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
}

// Seek sets the current time.
func (c *Manual) Seek(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.time = t
}

// Advance moves the clock forward by elapsed if it is running.
func (c *Manual) Advance(elapsed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		c.time += elapsed
	}
}
