// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/grailbio/base/must"
)

// A node is a function together with its resolved place in a
// pipeline's dependency graph. Nodes are created at build time and
// are read-only during execution.
type node struct {
	f *FuncValue
	// index is the function's registration order, used to break
	// ties in the topological order.
	index int
	// producers holds, for each declared input, the producing node,
	// or nil if the input is a root input.
	producers []*node
}

func (n *node) name() string { return n.f.name }

// A graph is the resolved dependency graph of a pipeline. Graphs are
// immutable: they are built once per pipeline and the topological
// order is computed at build time and cached.
type graph struct {
	nodes      []*node // in registration order
	producerOf map[string]*node
	// roots is the set of input names satisfied by no producer;
	// they must be bound by the caller at run time.
	roots map[string]bool
	order []*node // topological, ties by registration order
}

// buildGraph resolves every input name of every function to either a
// root or a single producing node, detects cycles, and computes the
// topological order. declaredRoots, when non-nil, restricts the
// permitted root inputs: an unproduced input absent from the set is
// an UnknownInputError.
func buildGraph(funcs []*FuncValue, declaredRoots map[string]bool) (*graph, error) {
	g := &graph{
		producerOf: make(map[string]*node),
		roots:      make(map[string]bool),
	}
	// Producer uniqueness. Registration normally catches duplicates
	// eagerly; this is the build-time half of the same invariant,
	// guarding pipelines assembled from pre-built parts.
	byOutput := make(map[string][]string)
	for i, f := range funcs {
		n := &node{f: f, index: i}
		g.nodes = append(g.nodes, n)
		for _, out := range f.outputs {
			byOutput[out] = append(byOutput[out], f.name)
			g.producerOf[out] = n
		}
	}
	for out, producers := range byOutput {
		if len(producers) > 1 {
			return nil, &AmbiguousProducerError{Output: out, Funcs: producers}
		}
	}
	// Resolve inputs.
	for _, n := range g.nodes {
		n.producers = make([]*node, len(n.f.inputs))
		for i, in := range n.f.inputs {
			if p, ok := g.producerOf[in]; ok {
				n.producers[i] = p
				continue
			}
			if declaredRoots != nil && !declaredRoots[in] {
				return nil, &UnknownInputError{Func: n.f.name, Input: in}
			}
			g.roots[in] = true
		}
	}
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	g.order = g.topoOrder()
	return g, nil
}

// checkAcyclic runs a depth-first traversal with recursion-stack
// marking over producer edges. It reports the first cycle found, in
// dependency order.
func (g *graph) checkAcyclic() error {
	const (
		white = iota // unvisited
		grey         // on the recursion stack
		black        // done
	)
	color := make(map[*node]int)
	var stack []*node
	var visit func(n *node) *CycleError
	visit = func(n *node) *CycleError {
		color[n] = grey
		stack = append(stack, n)
		for _, p := range n.producers {
			if p == nil {
				continue
			}
			switch color[p] {
			case white:
				if err := visit(p); err != nil {
					return err
				}
			case grey:
				// Slice the stack down to the cycle entry point.
				var cycle []string
				for i := len(stack) - 1; i >= 0; i-- {
					cycle = append([]string{stack[i].name()}, cycle...)
					if stack[i] == p {
						break
					}
				}
				cycle = append(cycle, p.name())
				return &CycleError{Nodes: cycle}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
		return nil
	}
	for _, n := range g.nodes {
		if color[n] == white {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// topoOrder returns a deterministic topological ordering of the
// graph: every node appears after all of its producers, and among
// simultaneously-ready nodes the earliest-registered runs first.
// Requires an acyclic graph.
func (g *graph) topoOrder() []*node {
	indegree := make(map[*node]int)
	for _, n := range g.nodes {
		for _, p := range n.producers {
			if p != nil {
				indegree[n]++
			}
		}
	}
	var (
		order []*node
		done  = make(map[*node]bool)
	)
	for len(order) < len(g.nodes) {
		progressed := false
		for _, n := range g.nodes {
			if done[n] || indegree[n] > 0 {
				continue
			}
			done[n] = true
			order = append(order, n)
			for _, m := range g.nodes {
				for _, p := range m.producers {
					if p == n {
						indegree[m]--
					}
				}
			}
			progressed = true
			break
		}
		must.Truef(progressed, "topological sort stuck at %d/%d nodes", len(order), len(g.nodes))
	}
	return order
}

// ancestors returns the nodes needed to compute the given node's
// outputs, in topological order. The result includes the node
// itself.
func (g *graph) ancestors(target *node) []*node {
	needed := make(map[*node]bool)
	var mark func(n *node)
	mark = func(n *node) {
		if needed[n] {
			return
		}
		needed[n] = true
		for _, p := range n.producers {
			if p != nil {
				mark(p)
			}
		}
	}
	mark(target)
	var nodes []*node
	for _, n := range g.order {
		if needed[n] {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// rootsFor returns the sorted root input names required by the
// given nodes.
func rootsFor(nodes []*node) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, n := range nodes {
		for i, in := range n.f.inputs {
			if n.producers[i] == nil && !seen[in] {
				seen[in] = true
				roots = append(roots, in)
			}
		}
	}
	sort.Strings(roots)
	return roots
}

// exclusive tells whether any of the nodes carries the Exclusive
// marker.
func exclusive(nodes []*node) bool {
	for _, n := range nodes {
		if n.f.excl {
			return true
		}
	}
	return false
}

// WriteGraph writes a schematic description of the pipeline's
// dependency graph to w. The pipeline must be built.
func (p *Pipeline) WriteGraph(w io.Writer) {
	var tw tabwriter.Writer
	tw.Init(w, 4, 4, 1, ' ', 0)
	fmt.Fprintln(&tw, "funcs:")
	for _, n := range p.graph.order {
		fmt.Fprintf(&tw, "\t%s\t(%s)\t-> %s\n",
			n.name(), strings.Join(n.f.inputs, ","), strings.Join(n.f.outputs, ","))
	}
	fmt.Fprintln(&tw, "roots:")
	for _, root := range rootsFor(p.graph.order) {
		fmt.Fprintf(&tw, "\t%s\n", root)
	}
	tw.Flush()
}

// GraphString returns a schematic description of the pipeline's
// dependency graph.
func (p *Pipeline) GraphString() string {
	var b bytes.Buffer
	p.WriteGraph(&b)
	return b.String()
}
