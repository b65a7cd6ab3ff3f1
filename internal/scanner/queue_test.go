package scanner

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/nao1215/portsweep/internal/model"
)

// TestWorkQueue tests that concurrent consumers see every port exactly once.
func TestWorkQueue(t *testing.T) {
	t.Parallel()

	q := newWorkQueue(slices.Values([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}), 10)
	if q.Remaining() != 10 {
		t.Fatalf("expected 10 remaining, got %d", q.Remaining())
	}

	var (
		mu  sync.Mutex
		got []int
		wg  sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				port, ok := q.Pop()
				if !ok {
					return
				}
				mu.Lock()
				got = append(got, port)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	slices.Sort(got)
	if !slices.Equal(got, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
		t.Errorf("unexpected ports: %v", got)
	}
	if q.Remaining() != 0 {
		t.Errorf("expected empty queue, got %d remaining", q.Remaining())
	}
	if _, ok := q.Pop(); ok {
		t.Error("expected Pop on empty queue to fail")
	}
}

// TestResultSetRejectsDuplicates tests the once-per-port rule.
func TestResultSetRejectsDuplicates(t *testing.T) {
	t.Parallel()

	s := newResultSet(2)
	if err := s.Add(model.PortResult{Port: 22, Status: model.StatusOpen}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.Add(model.PortResult{Port: 22, Status: model.StatusClosed})
	if !errors.Is(err, ErrDuplicateResult) {
		t.Fatalf("expected ErrDuplicateResult, got %v", err)
	}

	results := s.Results()
	if len(results) != 1 || results[0].Status != model.StatusOpen {
		t.Errorf("first result must be kept, got %+v", results)
	}

	results[0].Port = 99
	if s.Results()[0].Port != 22 {
		t.Error("Results must return a copy")
	}
}
