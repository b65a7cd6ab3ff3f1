package portsource

import (
	"iter"

	"github.com/nao1215/portsweep/internal/model"
)

// Range is a validated, read-only inclusive port range.
type Range struct {
	ports model.PortRange
}

// New validates r and returns a Range over it.
func New(r model.PortRange) (*Range, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &Range{ports: r}, nil
}

// All returns an iterator over start..end in ascending order.
// Ports are generated on demand; each call starts over from the first port.
func (r *Range) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		for port := r.ports.Start; port <= r.ports.End; port++ {
			if !yield(port) {
				return
			}
		}
	}
}

// Len returns the number of ports the iterator yields.
func (r *Range) Len() int {
	return r.ports.Len()
}
