// Package history keeps bounded in-memory time series for sampled metrics.
//
// Each key owns a fixed-capacity ring: appends are O(1) and overwrite the
// oldest point once the ring is full. A single writer (the engine tick loop)
// appends; any number of readers query concurrently through copy-out
// accessors, so callers never observe a view that mutates under them.
package history

import "time"

// Point is one sampled value on a series.
type Point struct {
	T time.Time
	V float64
}

// Agg selects the aggregation applied by Aggregate.
type Agg int

const (
	AggAvg Agg = iota
	AggMin
	AggMax
)

// Range bounds a query in time. Zero From or To means unbounded on that side;
// both bounds are inclusive.
type Range struct {
	From time.Time
	To   time.Time
}

func (r Range) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// series is a fixed-capacity ring. Capacity never changes after creation.
type series struct {
	buf   []Point
	head  int // next write position
	count int
}

func newSeries(capacity int) *series {
	if capacity < 1 {
		capacity = 1
	}
	return &series{buf: make([]Point, capacity)}
}

func (s *series) append(p Point) {
	s.buf[s.head] = p
	s.head = (s.head + 1) % len(s.buf)
	if s.count < len(s.buf) {
		s.count++
	}
}

// at returns the i-th point in insertion order, oldest first.
func (s *series) at(i int) Point {
	oldest := (s.head - s.count + len(s.buf)) % len(s.buf)
	return s.buf[(oldest+i)%len(s.buf)]
}

func (s *series) latest() (Point, bool) {
	if s.count == 0 {
		return Point{}, false
	}
	return s.at(s.count - 1), true
}
