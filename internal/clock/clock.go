// Package clock supplies time to the lifecycle engine.
//
// Every component that compares against "now" takes a Clock rather than
// calling time.Now directly, so tests can pin and advance time.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock. Times are returned in UTC.
type System struct{}

// Now returns time.Now in UTC.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Func adapts an ordinary function to the Clock interface.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}

// Sequence is a monotonic logical counter used to order emitted events.
//
// Wall-clock timestamps can collide (or go backwards under a manual clock),
// so consumers that need a total order over events use Seq instead.
//
// Thread-safety: Sequence is safe for concurrent use.
type Sequence struct {
	seq atomic.Int64
}

// NewSequence creates a sequence starting at 0.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next sequence number. The first call returns 1.
func (s *Sequence) Next() int64 {
	return s.seq.Add(1)
}
