// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import "fmt"

// CellState describes the disposition of one cell of a ResultArray.
type CellState int8

const (
	// CellMissing marks a cell that has not been computed. Under
	// fail-fast execution, combinations that never started remain
	// missing.
	CellMissing CellState = iota
	// CellOK marks a successfully computed cell.
	CellOK
	// CellFailed marks a cell whose run failed; the cell's Err
	// carries a CellError pinpointing the combination.
	CellFailed
	// CellCancelled marks a cell that was queued but dropped by
	// cooperative cancellation.
	CellCancelled
	// CellSkipped marks a cell excluded by a sweep predicate.
	CellSkipped
)

var cellStates = [...]string{
	CellMissing:   "MISSING",
	CellOK:        "OK",
	CellFailed:    "ERROR",
	CellCancelled: "CANCELLED",
	CellSkipped:   "SKIPPED",
}

// String returns the state as an upper-case string.
func (s CellState) String() string { return cellStates[s] }

// A Cell holds one combination's outcome in a ResultArray.
type Cell struct {
	Value interface{}
	Err   error
	State CellState
}

// A ResultArray is a labeled N-dimensional array of per-combination
// pipeline outputs. Its axes are the swept parameter names, in
// declaration order; each axis's coordinate sequence is the swept
// value list. Cell layout is deterministic: indices derive from the
// immutable sweep order, never from completion order. The array is
// owned by the caller after the map returns.
type ResultArray struct {
	axes  Sweep
	cells []Cell
}

func newResultArray(axes Sweep) *ResultArray {
	copied := make(Sweep, len(axes))
	for i, axis := range axes {
		copied[i] = Axis{
			Name:   axis.Name,
			Values: append([]interface{}(nil), axis.Values...),
		}
	}
	return &ResultArray{
		axes:  copied,
		cells: make([]Cell, copied.Size()),
	}
}

// Shape returns the array's per-axis lengths.
func (r *ResultArray) Shape() []int { return r.axes.Shape() }

// Size returns the total number of cells.
func (r *ResultArray) Size() int { return len(r.cells) }

// Axes returns the array's axes: each axis name with its ordered
// coordinate sequence.
func (r *ResultArray) Axes() Sweep {
	copied := make(Sweep, len(r.axes))
	for i, axis := range r.axes {
		copied[i] = Axis{
			Name:   axis.Name,
			Values: append([]interface{}(nil), axis.Values...),
		}
	}
	return copied
}

// Labels returns the coordinate sequence of the named axis, or nil
// if the array has no such axis.
func (r *ResultArray) Labels(axis string) []interface{} {
	for _, a := range r.axes {
		if a.Name == axis {
			return append([]interface{}(nil), a.Values...)
		}
	}
	return nil
}

// At returns the cell at the given per-axis coordinates. At panics
// if the rank or a coordinate is out of range.
func (r *ResultArray) At(coords ...int) Cell {
	return r.cells[r.index(coords)]
}

// Value returns the value at the given coordinates. Cells that are
// not in state CellOK report an error describing their state.
func (r *ResultArray) Value(coords ...int) (interface{}, error) {
	cell := r.cells[r.index(coords)]
	switch cell.State {
	case CellOK:
		return cell.Value, nil
	case CellFailed:
		return nil, cell.Err
	default:
		return nil, fmt.Errorf("gridflow: cell %v is %s", coords, cell.State)
	}
}

// Err returns the first cell error in sweep order, or nil if no
// cell failed.
func (r *ResultArray) Err() error {
	for i := range r.cells {
		if r.cells[i].State == CellFailed {
			return r.cells[i].Err
		}
	}
	return nil
}

// Counts returns the number of cells in each state, indexed by
// CellState.
func (r *ResultArray) Counts() []int {
	counts := make([]int, len(cellStates))
	for i := range r.cells {
		counts[r.cells[i].State]++
	}
	return counts
}

func (r *ResultArray) index(coords []int) int {
	if len(coords) != len(r.axes) {
		panic(fmt.Sprintf("gridflow: rank mismatch: array has %d axes, got %d coordinates", len(r.axes), len(coords)))
	}
	for a, c := range coords {
		if c < 0 || c >= len(r.axes[a].Values) {
			panic(fmt.Sprintf("gridflow: coordinate %d out of range for axis %q (length %d)", c, r.axes[a].Name, len(r.axes[a].Values)))
		}
	}
	return r.axes.Index(coords)
}
