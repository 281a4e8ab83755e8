// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"errors"
	"fmt"
	"strings"
)

var errAlreadyBuilt = errors.New("gridflow: pipeline is already built")

// DuplicateOutputError is reported when a registered function
// declares an output name already produced by a previously
// registered function. It is the eager (registration-time) half of
// the single-producer invariant; see AmbiguousProducerError for the
// build-time half.
type DuplicateOutputError struct {
	Output   string
	Existing string // name of the function already producing Output
	Func     string // name of the offending function
}

func (e *DuplicateOutputError) Error() string {
	return fmt.Sprintf("gridflow: output %q of func %q is already produced by func %q",
		e.Output, e.Func, e.Existing)
}

// AmbiguousProducerError is reported at build time when two nodes
// declare the same output name. Under normal construction the
// condition is caught earlier as a DuplicateOutputError; this error
// guards pipelines assembled from pre-built parts.
type AmbiguousProducerError struct {
	Output string
	Funcs  []string
}

func (e *AmbiguousProducerError) Error() string {
	return fmt.Sprintf("gridflow: output %q has multiple producers: %s",
		e.Output, strings.Join(e.Funcs, ", "))
}

// CycleError is reported at build time when the dependency graph is
// cyclic. Nodes lists the functions along one detected cycle, in
// dependency order.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("gridflow: dependency cycle: %s", strings.Join(e.Nodes, " -> "))
}

// UnknownInputError is reported at build time when an input name can
// be satisfied neither by a root input nor by another function's
// output. It is detected lazily at build, not at registration.
type UnknownInputError struct {
	Func  string
	Input string
}

func (e *UnknownInputError) Error() string {
	if e.Func == "" {
		return fmt.Sprintf("gridflow: requested output %q is not produced by any func", e.Input)
	}
	return fmt.Sprintf("gridflow: func %q consumes input %q, which is not produced and not declared a root",
		e.Func, e.Input)
}

// MissingInputError is reported before a run starts when the bound
// root inputs do not cover the graph's root input names.
type MissingInputError struct {
	Output string   // the requested output
	Inputs []string // the missing root inputs, sorted
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("gridflow: run of %q is missing root inputs: %s",
		e.Output, strings.Join(e.Inputs, ", "))
}

// NodeExecutionError wraps a failure raised by a node's function
// during a run. The run is aborted; outputs of nodes that succeeded
// earlier remain cached.
type NodeExecutionError struct {
	Node string
	Err  error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("gridflow: node %q: %v", e.Node, e.Err)
}

// Unwrap returns the underlying cause.
func (e *NodeExecutionError) Unwrap() error { return e.Err }

// CellError records a per-combination failure in a map. Coords give
// the failing combination's coordinate along each swept axis, in
// axis declaration order.
type CellError struct {
	Output string
	Coords []int
	Err    error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("gridflow: map of %q: cell %v: %v", e.Output, e.Coords, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CellError) Unwrap() error { return e.Err }
