// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package adapt

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Interval1D is the default learner: a loss-based subdivider of the
// closed interval [lo, hi]. It seeds the endpoints, then repeatedly
// bisects the interval with the largest loss, defined as the
// normalized Euclidean length of the segment between its end points.
// Large function variation thus attracts samples, while flat regions
// are sampled sparsely.
type Interval1D struct {
	lo, hi  float64
	xs, ys  []float64 // told points, sorted by x
	pending map[float64]bool
}

// NewInterval1D returns a learner over [lo, hi].
func NewInterval1D(lo, hi float64) *Interval1D {
	if !(lo < hi) {
		panic("adapt.NewInterval1D: empty interval")
	}
	return &Interval1D{lo: lo, hi: hi, pending: make(map[float64]bool)}
}

// Ask implements Learner. The first batches seed the interval's
// endpoints; thereafter Ask returns midpoints of the largest-loss
// intervals. Within one batch, choosing a midpoint conceptually
// splits its interval (with an interpolated value) before the next
// choice, so a single high-loss region can receive several points.
func (l *Interval1D) Ask(n int) []float64 {
	var points []float64
	for _, end := range []float64{l.lo, l.hi} {
		if len(points) >= n {
			return points
		}
		if !l.told(end) && !l.pending[end] {
			l.pending[end] = true
			points = append(points, end)
		}
	}
	if len(l.xs) < 2 {
		return points
	}
	xs := append([]float64(nil), l.xs...)
	ys := append([]float64(nil), l.ys...)
	for len(points) < n {
		i := maxLossInterval(xs, ys)
		if i < 0 {
			break
		}
		mid := (xs[i] + xs[i+1]) / 2
		if mid == xs[i] || mid == xs[i+1] {
			// Interval exhausted at floating point resolution.
			break
		}
		ymid := (ys[i] + ys[i+1]) / 2
		xs = insertAt(xs, i+1, mid)
		ys = insertAt(ys, i+1, ymid)
		if l.pending[mid] {
			continue
		}
		l.pending[mid] = true
		points = append(points, mid)
	}
	return points
}

// Tell implements Learner.
func (l *Interval1D) Tell(points, values []float64) {
	for i, x := range points {
		delete(l.pending, x)
		j := sort.SearchFloat64s(l.xs, x)
		if j < len(l.xs) && l.xs[j] == x {
			l.ys[j] = values[i]
			continue
		}
		l.xs = insertAt(l.xs, j, x)
		l.ys = insertAt(l.ys, j, values[i])
	}
}

// Loss implements Learner: the largest per-interval loss, or +Inf
// until both endpoints have been observed.
func (l *Interval1D) Loss() float64 {
	if len(l.xs) < 2 {
		return math.Inf(1)
	}
	i := maxLossInterval(l.xs, l.ys)
	if i < 0 {
		return 0
	}
	return intervalLoss(l.xs, l.ys, i)
}

// Len returns the number of observed points.
func (l *Interval1D) Len() int { return len(l.xs) }

func (l *Interval1D) told(x float64) bool {
	i := sort.SearchFloat64s(l.xs, x)
	return i < len(l.xs) && l.xs[i] == x
}

// maxLossInterval returns the index of the interval [xs[i], xs[i+1]]
// with the largest loss, or -1 if there are no intervals.
func maxLossInterval(xs, ys []float64) int {
	best, bestLoss := -1, 0.0
	for i := 0; i+1 < len(xs); i++ {
		if loss := intervalLoss(xs, ys, i); best < 0 || loss > bestLoss {
			best, bestLoss = i, loss
		}
	}
	return best
}

// intervalLoss is the length of the segment between adjacent points,
// with both dimensions normalized to the data's span so that x and y
// variation weigh equally.
func intervalLoss(xs, ys []float64, i int) float64 {
	xspan := xs[len(xs)-1] - xs[0]
	yspan := floats.Max(ys) - floats.Min(ys)
	dx := (xs[i+1] - xs[i]) / xspan
	dy := 0.0
	if yspan > 0 {
		dy = (ys[i+1] - ys[i]) / yspan
	}
	return math.Hypot(dx, dy)
}

func insertAt(s []float64, i int, v float64) []float64 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
