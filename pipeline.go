// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"runtime"

	"github.com/grailbio/base/status"
	"github.com/grailbio/gridflow/cache"
)

// A Pipeline composes registered functions into a dependency graph
// and executes it, either for one concrete set of root inputs (Run)
// or as a parallel sweep over parameter grids (Map). A pipeline is
// mutable until Build is called; thereafter its graph is immutable
// and the pipeline is safe for concurrent use. Changing the set of
// functions requires a new Pipeline.
type Pipeline struct {
	funcs  []*FuncValue
	graph  *graph
	cache  cache.Cache
	par    int
	status *status.Status
	roots  map[string]bool

	build onceTask
}

// Option is a pipeline configuration option.
type Option func(*Pipeline)

// Cache configures the pipeline's result cache backend. The default
// is a process-lifetime memory cache; use cache.Nop to disable
// caching.
func Cache(c cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// Parallelism configures the default degree of parallelism for Map.
// The default is the number of available compute units.
func Parallelism(par int) Option {
	return func(p *Pipeline) { p.par = par }
}

// Status configures a status object to which map execution progress
// is reported.
func Status(s *status.Status) Option {
	return func(p *Pipeline) { p.status = s }
}

// Roots declares the permitted root input names. When declared,
// Build fails with an UnknownInputError for any consumed input that
// is neither produced by a function nor named here. Without the
// declaration, every unproduced input is implicitly a root.
func Roots(names ...string) Option {
	return func(p *Pipeline) {
		p.roots = make(map[string]bool)
		for _, name := range names {
			p.roots[name] = true
		}
	}
}

// New creates a new, empty pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		cache: cache.NewMem(),
		par:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add registers a function with the pipeline. It fails with a
// DuplicateOutputError if another registered function already
// produces one of the function's output names; unknown inputs are
// checked lazily, at build time. Add fails after Build.
func (p *Pipeline) Add(f *FuncValue) error {
	if p.graph != nil {
		return errAlreadyBuilt
	}
	for _, out := range f.outputs {
		for _, prev := range p.funcs {
			for _, pout := range prev.outputs {
				if out == pout {
					return &DuplicateOutputError{Output: out, Existing: prev.name, Func: f.name}
				}
			}
		}
	}
	p.funcs = append(p.funcs, f)
	return nil
}

// Build resolves the dependency graph. Construction errors
// (AmbiguousProducerError, UnknownInputError, CycleError) surface
// here synchronously; the pipeline is unusable until they are
// fixed. Build is idempotent and implied by the first Run or Map
// resolution.
func (p *Pipeline) Build() error {
	return p.build.Do(func() error {
		g, err := buildGraph(p.funcs, p.roots)
		if err != nil {
			return err
		}
		p.graph = g
		return nil
	})
}

// Funcs returns the registered functions in registration order.
func (p *Pipeline) Funcs() []*FuncValue {
	return append([]*FuncValue(nil), p.funcs...)
}
