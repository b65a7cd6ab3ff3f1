package scanner

import (
	"fmt"
	"iter"
	"sync"

	"github.com/nao1215/portsweep/internal/model"
)

// workQueue is the FIFO of ports still to probe, shared by all workers.
type workQueue struct {
	mu    sync.Mutex
	ports []int
	next  int
}

// newWorkQueue materialises ports into a queue. size is a capacity hint.
func newWorkQueue(ports iter.Seq[int], size int) *workQueue {
	q := &workQueue{ports: make([]int, 0, size)}
	for port := range ports {
		q.ports = append(q.ports, port)
	}
	return q
}

// Pop removes and returns the next port. ok is false once the queue is empty.
func (q *workQueue) Pop() (port int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.next >= len(q.ports) {
		return 0, false
	}
	port = q.ports[q.next]
	q.next++
	return port, true
}

// Remaining returns the number of ports not yet handed out.
func (q *workQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ports) - q.next
}

// resultSet collects the results of one scan. Each port is accepted once.
type resultSet struct {
	mu      sync.Mutex
	seen    map[int]struct{}
	results []model.PortResult
}

func newResultSet(size int) *resultSet {
	return &resultSet{
		seen:    make(map[int]struct{}, size),
		results: make([]model.PortResult, 0, size),
	}
}

// Add records r. A second result for the same port is rejected.
func (s *resultSet) Add(r model.PortResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.seen[r.Port]; dup {
		return fmt.Errorf("%w: %d", ErrDuplicateResult, r.Port)
	}
	s.seen[r.Port] = struct{}{}
	s.results = append(s.results, r)
	return nil
}

// Results returns a copy of the recorded results in completion order.
func (s *resultSet) Results() []model.PortResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.PortResult, len(s.results))
	copy(out, s.results)
	return out
}
