package testutil

import "sync"

// FakeMaster is a master clock whose time only moves when a test sets it.
//
// Unlike clock.Manual, FakeMaster counts Start and Stop calls so tests can
// assert that the manager toggles the master exactly when expected.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeMaster struct {
	mu      sync.Mutex
	time    float64
	running bool
	starts  int
	stops   int
}

// NewFakeMaster creates a stopped master at time t.
func NewFakeMaster(t float64) *FakeMaster {
	return &FakeMaster{time: t}
}

func (m *FakeMaster) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.time
}

// SetTime moves the master to t regardless of running state.
func (m *FakeMaster) SetTime(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.time = t
}

func (m *FakeMaster) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *FakeMaster) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	m.starts++
}

func (m *FakeMaster) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	m.stops++
}

// SetRunning forces the running state without counting a toggle.
func (m *FakeMaster) SetRunning(running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = running
}

// Starts returns how many times Start was called.
func (m *FakeMaster) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns how many times Stop was called.
func (m *FakeMaster) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// FakePlayer is a player clock with directly settable state.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakePlayer struct {
	mu       sync.Mutex
	id       string
	time     float64
	running  bool
	waiting  bool
	catching bool
	starts   int
}

// NewFakePlayer creates a stopped, ready player at time 0.
func NewFakePlayer(id string) *FakePlayer {
	return &FakePlayer{id: id}
}

func (p *FakePlayer) ID() string { return p.id }

func (p *FakePlayer) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.time
}

// SetTime moves the player to t regardless of running state.
func (p *FakePlayer) SetTime(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.time = t
}

func (p *FakePlayer) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *FakePlayer) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = true
	p.starts++
}

func (p *FakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
}

// SetRunning forces the running state.
func (p *FakePlayer) SetRunning(running bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = running
}

func (p *FakePlayer) WaitingOnFrames() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiting
}

// SetWaitingOnFrames sets the readiness signal the data pipeline would own.
func (p *FakePlayer) SetWaitingOnFrames(waiting bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waiting = waiting
}

func (p *FakePlayer) IsCatchingUp() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.catching
}

func (p *FakePlayer) SetCatchingUp(catching bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.catching = catching
}

// Starts returns how many times Start was called.
func (p *FakePlayer) Starts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}
