package telemetry

import (
	"math"
	"time"
)

// SeriesCap is how many points each chart keeps.
const SeriesCap = 35

// Point is one chart sample. Value is NaN when the sensor failed.
type Point struct {
	At    time.Time
	Value float64
}

// Series is a fixed-size FIFO window of points.
type Series struct {
	points []Point
	limit  int
}

// NewSeries creates an empty series holding at most limit points.
func NewSeries(limit int) *Series {
	if limit <= 0 {
		limit = SeriesCap
	}
	return &Series{points: make([]Point, 0, limit), limit: limit}
}

// Push appends p, evicting the oldest point when full.
func (s *Series) Push(p Point) {
	if len(s.points) == s.limit {
		copy(s.points, s.points[1:])
		s.points = s.points[:len(s.points)-1]
	}
	s.points = append(s.points, p)
}

// Len returns the number of points held.
func (s *Series) Len() int { return len(s.points) }

// Cap returns the window size.
func (s *Series) Cap() int { return s.limit }

// Points returns a copy, oldest first.
func (s *Series) Points() []Point {
	return append([]Point(nil), s.points...)
}

// Values returns just the values, oldest first.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Value
	}
	return out
}

// Last returns the newest point.
func (s *Series) Last() (Point, bool) {
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[len(s.points)-1], true
}

// Bounds returns the min and max of the valid values. ok is false when
// there are none.
func (s *Series) Bounds() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range s.points {
		if math.IsNaN(p.Value) {
			continue
		}
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
		ok = true
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}
