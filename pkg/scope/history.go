package scope

import (
	"sort"
	"sync"
	"time"
)

// Point is one observed channel value.
type Point struct {
	Timestamp time.Time
	Value     float64
}

// Series is the recent history of one channel.
type Series struct {
	Key    string
	Points []Point
}

// History keeps a sliding time window of values per channel.
// It is safe for concurrent use.
type History struct {
	window time.Duration

	mu     sync.RWMutex
	series map[string][]Point
}

// NewHistory creates a history keeping points younger than window.
func NewHistory(window time.Duration) *History {
	return &History{
		window: window,
		series: make(map[string][]Point),
	}
}

// Add appends a value for key and drops points that fell out of the window.
func (h *History) Add(key string, at time.Time, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	points := append(h.series[key], Point{Timestamp: at, Value: value})

	cutoff := at.Add(-h.window)
	drop := 0
	for drop < len(points)-1 && points[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		points = append(points[:0], points[drop:]...)
	}

	h.series[key] = points
}

// Extend repeats the last value of every channel at time at, so that channels
// which stopped changing still reach the right edge of the plot.
func (h *History) Extend(at time.Time) {
	h.mu.RLock()
	keys := make([]string, 0, len(h.series))
	last := make([]float64, 0, len(h.series))
	for k, pts := range h.series {
		if len(pts) == 0 {
			continue
		}
		keys = append(keys, k)
		last = append(last, pts[len(pts)-1].Value)
	}
	h.mu.RUnlock()

	for i, k := range keys {
		h.Add(k, at, last[i])
	}
}

// Snapshot returns a copy of all series sorted by key, each decimated to at
// most maxPoints points.
func (h *History) Snapshot(maxPoints int) []Series {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Series, 0, len(h.series))
	for k, pts := range h.series {
		out = append(out, Series{Key: k, Points: Downsample(nil, pts, maxPoints)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Reset forgets all points.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.series = make(map[string][]Point)
}

// Downsample decimates points to at most maxPoints, always keeping the last
// point. dst is reused when it has enough capacity.
func Downsample(dst []Point, points []Point, maxPoints int) []Point {
	if maxPoints <= 0 || len(points) <= maxPoints {
		if cap(dst) >= len(points) {
			dst = dst[:len(points)]
		} else {
			dst = make([]Point, len(points))
		}
		copy(dst, points)
		return dst
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]Point, 0, maxPoints)
	}

	step := float64(len(points)) / float64(maxPoints)
	for i := range maxPoints - 1 {
		dst = append(dst, points[int(float64(i)*step)])
	}
	return append(dst, points[len(points)-1])
}
