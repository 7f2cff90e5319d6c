package history

import (
	"sort"
	"sync"
)

// DefaultCapacity is used for series created implicitly by Append when the
// store was built with a non-positive default.
const DefaultCapacity = 600

// Store holds one ring series per metric key.
type Store struct {
	mu         sync.RWMutex
	defaultCap int
	series     map[string]*series
}

// NewStore returns an empty store. Series created without an explicit Ensure
// call get defaultCap points of capacity.
func NewStore(defaultCap int) *Store {
	if defaultCap < 1 {
		defaultCap = DefaultCapacity
	}
	return &Store{
		defaultCap: defaultCap,
		series:     make(map[string]*series),
	}
}

// Ensure creates the series for key with the given capacity if it does not
// exist yet. Capacity is fixed at creation; Ensure on an existing series is
// a no-op.
func (s *Store) Ensure(key string, capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.series[key]; !ok {
		s.series[key] = newSeries(capacity)
	}
}

// Append records one point on key's series, creating it at the default
// capacity when absent. Once full, the oldest point is overwritten.
func (s *Store) Append(key string, p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ser, ok := s.series[key]
	if !ok {
		ser = newSeries(s.defaultCap)
		s.series[key] = ser
	}
	ser.append(p)
}

// Query returns the points of key within r, oldest first, as a fresh slice.
// Unknown keys return an empty result.
func (s *Store) Query(key string, r Range) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser, ok := s.series[key]
	if !ok {
		return nil
	}
	var out []Point
	for i := 0; i < ser.count; i++ {
		p := ser.at(i)
		if r.contains(p.T) {
			out = append(out, p)
		}
	}
	return out
}

// Latest returns the most recent point of key.
func (s *Store) Latest(key string) (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser, ok := s.series[key]
	if !ok {
		return Point{}, false
	}
	return ser.latest()
}

// Values returns the last n values of key, oldest first. n <= 0 returns all
// stored values. Intended for sparkline rendering.
func (s *Store) Values(key string, n int) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser, ok := s.series[key]
	if !ok {
		return nil
	}
	start := 0
	if n > 0 && ser.count > n {
		start = ser.count - n
	}
	out := make([]float64, 0, ser.count-start)
	for i := start; i < ser.count; i++ {
		out = append(out, ser.at(i).V)
	}
	return out
}

// Aggregate reduces the points of key within r. The second return is false
// when no points fall in the range.
func (s *Store) Aggregate(key string, r Range, agg Agg) (float64, bool) {
	pts := s.Query(key, r)
	if len(pts) == 0 {
		return 0, false
	}
	switch agg {
	case AggMin:
		min := pts[0].V
		for _, p := range pts[1:] {
			if p.V < min {
				min = p.V
			}
		}
		return min, true
	case AggMax:
		max := pts[0].V
		for _, p := range pts[1:] {
			if p.V > max {
				max = p.V
			}
		}
		return max, true
	default:
		sum := 0.0
		for _, p := range pts {
			sum += p.V
		}
		return sum / float64(len(pts)), true
	}
}

// Len reports how many points key currently holds.
func (s *Store) Len(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser, ok := s.series[key]
	if !ok {
		return 0
	}
	return ser.count
}

// Keys returns all series keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.series))
	for k := range s.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prune drops every series whose key fails keep. Used to release state for
// processes that have exited.
func (s *Store) Prune(keep func(key string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.series {
		if !keep(k) {
			delete(s.series, k)
		}
	}
}

// View returns a read-only handle suitable for embedding in snapshots.
func (s *Store) View() *View {
	return &View{store: s}
}

// View exposes the store's query surface without its mutators. Queries copy
// data out, so holders can read concurrently with the writer.
type View struct {
	store *Store
}

func (v *View) Query(key string, r Range) []Point { return v.store.Query(key, r) }

func (v *View) Latest(key string) (Point, bool) { return v.store.Latest(key) }

func (v *View) Values(key string, n int) []float64 { return v.store.Values(key, n) }

func (v *View) Len(key string) int { return v.store.Len(key) }

func (v *View) Keys() []string { return v.store.Keys() }

func (v *View) Aggregate(key string, r Range, agg Agg) (float64, bool) {
	return v.store.Aggregate(key, r, agg)
}
