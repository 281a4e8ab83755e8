// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// An Axis names a swept parameter together with its ordered
// candidate values.
type Axis struct {
	Name   string
	Values []interface{}
}

// A Sweep is an ordered list of axes whose Cartesian product defines
// the combinations of a map. Combinations are enumerated in
// row-major order: the last-declared axis varies fastest. A Sweep is
// consumed read-only; iterating it any number of times yields the
// same order.
type Sweep []Axis

// Vals is a convenience constructor for an axis value list.
func Vals(values ...interface{}) []interface{} { return values }

// Shape returns the lengths of the sweep's axes.
func (s Sweep) Shape() []int {
	shape := make([]int, len(s))
	for i, axis := range s {
		shape[i] = len(axis.Values)
	}
	return shape
}

// Size returns the total number of combinations: the product of the
// axis lengths. An empty sweep has a single (empty) combination.
func (s Sweep) Size() int {
	size := 1
	for _, axis := range s {
		size *= len(axis.Values)
	}
	return size
}

// Coords returns the per-axis coordinates of the i'th combination.
func (s Sweep) Coords(i int) []int {
	coords := make([]int, len(s))
	for a := len(s) - 1; a >= 0; a-- {
		n := len(s[a].Values)
		coords[a] = i % n
		i /= n
	}
	return coords
}

// Index returns the combination index for the given per-axis
// coordinates. It is the inverse of Coords.
func (s Sweep) Index(coords []int) int {
	i := 0
	for a, axis := range s {
		i = i*len(axis.Values) + coords[a]
	}
	return i
}

// bindAt fills dst with the i'th combination's axis values.
func (s Sweep) bindAt(i int, dst Bind) {
	for a, c := range s.Coords(i) {
		dst[s[a].Name] = s[a].Values[c]
	}
}

// validate checks that the sweep is well formed: nonempty unique
// axis names and nonempty value lists.
func (s Sweep) validate() error {
	seen := make(map[string]bool)
	for _, axis := range s {
		if axis.Name == "" {
			return errors.E(errors.Invalid, "sweep axis with empty name")
		}
		if seen[axis.Name] {
			return errors.E(errors.Invalid, fmt.Sprintf("duplicate sweep axis %q", axis.Name))
		}
		seen[axis.Name] = true
		if len(axis.Values) == 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("sweep axis %q has no values", axis.Name))
		}
	}
	return nil
}

// equal tells whether two sweeps have the same axes, in the same
// order, with equal value lists (compared by fingerprint).
func (s Sweep) equal(t Sweep) bool {
	if len(s) != len(t) {
		return false
	}
	for i := range s {
		if s[i].Name != t[i].Name || len(s[i].Values) != len(t[i].Values) {
			return false
		}
		for j := range s[i].Values {
			if fingerprintValue(s[i].Values[j]) != fingerprintValue(t[i].Values[j]) {
				return false
			}
		}
	}
	return true
}

// A Combos iterates over a sweep's combinations, optionally skipping
// those rejected by a predicate. The predicate is applied before
// expansion, so excluded high-cardinality regions are never
// materialized beyond the running combination. Combos is restartable
// via Reset and yields a deterministic order derived purely from the
// sweep.
type Combos struct {
	sweep Sweep
	pred  func(Bind) bool
	i     int
	bind  Bind
}

// Combinations returns an iterator over the sweep's combinations.
// A nil predicate admits every combination.
func (s Sweep) Combinations(pred func(Bind) bool) *Combos {
	return &Combos{sweep: s, pred: pred, i: -1}
}

// Next advances the iterator to the next admitted combination,
// returning false when the sweep is exhausted.
func (c *Combos) Next() bool {
	for c.i++; c.i < c.sweep.Size(); c.i++ {
		if c.bind == nil {
			c.bind = make(Bind, len(c.sweep))
		}
		c.sweep.bindAt(c.i, c.bind)
		if c.pred == nil || c.pred(c.bind) {
			return true
		}
	}
	return false
}

// Index returns the current combination's index in sweep order.
func (c *Combos) Index() int { return c.i }

// Coords returns the current combination's per-axis coordinates.
func (c *Combos) Coords() []int { return c.sweep.Coords(c.i) }

// Bind returns the current combination's axis bindings. The
// returned map is reused by Next; callers that retain it must copy.
func (c *Combos) Bind() Bind { return c.bind }

// Reset restarts the iterator.
func (c *Combos) Reset() {
	c.i = -1
	c.bind = nil
}
