package scan

import (
	"slices"
	"sync"
)

// PortQueue hands out each of its ports exactly once. It never blocks and is
// never refilled.
type PortQueue struct {
	mu    sync.Mutex
	ports []Port
	next  int
}

func NewPortQueue(ports []Port) *PortQueue {
	return &PortQueue{
		ports: slices.Clone(ports),
	}
}

// Take returns the next port, or false once the queue is drained.
func (q *PortQueue) Take() (Port, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.next >= len(q.ports) {
		return 0, false
	}
	port := q.ports[q.next]
	q.next++
	return port, true
}

// Remaining reports how many ports have not been taken yet.
func (q *PortQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ports) - q.next
}

