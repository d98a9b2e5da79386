package engine

import "sync"

// membershipOp is a pending add or remove of a player clock.
type membershipOp struct {
	clock  PlayerClock
	remove bool
}

// membershipQueue is a thread-safe FIFO of pending membership changes.
//
// AddPlayerClock and RemovePlayerClock only append here, so they are safe
// from any goroutine and from inside a clock callback running during Tick.
// The tick goroutine drains the queue before evaluating the start gate.
type membershipQueue struct {
	mu  sync.Mutex
	ops []membershipOp
}

func (q *membershipQueue) push(op membershipOp) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ops = append(q.ops, op)
}

// drain returns all pending ops in submission order and empties the queue.
func (q *membershipQueue) drain() []membershipOp {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return nil
	}
	ops := q.ops
	q.ops = nil
	return ops
}

// playerSet is an unordered collection with O(1) insert and erase.
//
// Removal swaps the last element into the vacated slot. Iteration order is
// therefore not insertion order, but it is deterministic for a given
// sequence of operations, which keeps recorded traces reproducible.
type playerSet struct {
	clocks []PlayerClock
	index  map[PlayerClock]int
}

func newPlayerSet() *playerSet {
	return &playerSet{index: make(map[PlayerClock]int)}
}

// add inserts c. Returns false if c is already a member.
func (s *playerSet) add(c PlayerClock) bool {
	if _, ok := s.index[c]; ok {
		return false
	}
	s.index[c] = len(s.clocks)
	s.clocks = append(s.clocks, c)
	return true
}

// remove erases c. Returns false if c is not a member.
func (s *playerSet) remove(c PlayerClock) bool {
	i, ok := s.index[c]
	if !ok {
		return false
	}
	last := len(s.clocks) - 1
	if i != last {
		moved := s.clocks[last]
		s.clocks[i] = moved
		s.index[moved] = i
	}
	s.clocks[last] = nil
	s.clocks = s.clocks[:last]
	delete(s.index, c)
	return true
}

func (s *playerSet) len() int {
	return len(s.clocks)
}
