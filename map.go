// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/retry"
	"github.com/grailbio/base/status"
)

// retryPolicy governs per-cell retries in maps that configure
// Retries.
var retryPolicy = retry.Backoff(100*time.Millisecond, 5*time.Second, 2)

type mapOpts struct {
	par      int
	failFast bool
	resume   *ResultArray
	where    func(Bind) bool
	retries  int
	fixed    Bind
}

// MapOpt is an option to Map.
type MapOpt func(*mapOpts)

// Limit overrides the pipeline's degree of parallelism for this map.
func Limit(par int) MapOpt {
	return func(o *mapOpts) { o.par = par }
}

// FailFast configures the map so that the first cell failure cancels
// all not-yet-started combinations and the map reports the aggregate
// outcome as failed. Without FailFast, a failure is recorded at its
// cell and sibling combinations proceed.
func FailFast() MapOpt {
	return func(o *mapOpts) { o.failFast = true }
}

// Resume supplies a ResultArray from a prior, partially-completed
// run of the same sweep. Cells already in state CellOK are kept;
// only missing, errored, cancelled or skipped cells are recomputed.
// The supplied array is read, not modified; the map produces a fresh
// array.
func Resume(prev *ResultArray) MapOpt {
	return func(o *mapOpts) { o.resume = prev }
}

// Where filters combinations with a predicate applied before
// expansion. Excluded cells are marked CellSkipped; the array keeps
// the full grid shape.
func Where(pred func(Bind) bool) MapOpt {
	return func(o *mapOpts) { o.where = pred }
}

// Retries configures the number of times a failed cell is retried,
// with backoff, before its error is recorded. Only node execution
// failures are retried.
func Retries(n int) MapOpt {
	return func(o *mapOpts) { o.retries = n }
}

// Fixed binds root inputs that are held constant across all
// combinations.
func Fixed(inputs Bind) MapOpt {
	return func(o *mapOpts) { o.fixed = inputs.clone() }
}

// A MapHandle is the deferred result of a map: a sequential run per
// sweep combination, executed in parallel. Like Handle, it resolves
// exactly once, on first observation.
type MapHandle struct {
	p      *Pipeline
	output string
	sweep  Sweep
	opts   mapOpts

	once onceTask
	res  *ResultArray
	err  error
}

// Map returns a lazy handle for running the pipeline once per
// combination of the sweep, collecting the named output into a
// ResultArray shaped by the sweep's axes.
func (p *Pipeline) Map(output string, sweep Sweep, opts ...MapOpt) *MapHandle {
	h := &MapHandle{p: p, output: output, sweep: sweep}
	for _, opt := range opts {
		opt(&h.opts)
	}
	return h
}

// Result resolves the handle if necessary and returns the map's
// ResultArray. On cooperative cancellation the array is partial:
// cells that never started are marked CellCancelled and the
// context's error is returned alongside the array. Under FailFast
// the aggregate error of the first failing cell is returned.
func (h *MapHandle) Result(ctx context.Context) (*ResultArray, error) {
	h.once.Do(func() error {
		h.res, h.err = h.p.runMap(ctx, h)
		return h.err
	})
	return h.res, h.err
}

// Shape resolves the handle if necessary and returns the result's
// per-axis lengths.
func (h *MapHandle) Shape(ctx context.Context) ([]int, error) {
	res, err := h.Result(ctx)
	if res == nil {
		return nil, err
	}
	return res.Shape(), err
}

// Resolved tells whether the handle has been resolved.
func (h *MapHandle) Resolved() bool { return h.once.Done() }

type mapItem struct {
	i    int
	bind Bind
}

func (p *Pipeline) runMap(ctx context.Context, h *MapHandle) (*ResultArray, error) {
	if err := p.Build(); err != nil {
		return nil, err
	}
	if err := h.sweep.validate(); err != nil {
		return nil, err
	}
	target, ok := p.graph.producerOf[h.output]
	if !ok {
		return nil, &UnknownInputError{Input: h.output}
	}
	nodes := p.graph.ancestors(target)
	for _, axis := range h.sweep {
		if producer, ok := p.graph.producerOf[axis.Name]; ok {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("sweep axis %q is produced by func %q", axis.Name, producer.name()))
		}
	}
	// Fail fast on uncovered roots before any computation starts.
	var missing []string
	for _, root := range rootsFor(nodes) {
		if _, ok := h.opts.fixed[root]; ok {
			continue
		}
		if hasAxis(h.sweep, root) {
			continue
		}
		missing = append(missing, root)
	}
	if len(missing) > 0 {
		return nil, &MissingInputError{Output: h.output, Inputs: missing}
	}

	res := newResultArray(h.sweep)
	if prev := h.opts.resume; prev != nil {
		if !prev.axes.equal(h.sweep) {
			return nil, errors.E(errors.Invalid, "resumed result array does not match the sweep's axes")
		}
		copy(res.cells, prev.cells)
	}

	var items []mapItem
	for i := 0; i < h.sweep.Size(); i++ {
		if res.cells[i].State == CellOK {
			continue
		}
		bind := h.opts.fixed.clone()
		h.sweep.bindAt(i, bind)
		if h.opts.where != nil && !h.opts.where(bind) {
			res.cells[i] = Cell{State: CellSkipped}
			continue
		}
		items = append(items, mapItem{i: i, bind: bind})
	}

	var stask *status.Task
	if p.status != nil {
		group := p.status.Groupf("map %s", h.output)
		stask = group.Start(fmt.Sprintf("%d cells", len(items)))
		defer stask.Done()
	}

	par := h.opts.par
	if par <= 0 {
		par = p.par
	}
	// Exclusive nodes and CPU hints attenuate parallelism by
	// widening each cell's claim on the worker pool.
	width := 1
	for _, n := range nodes {
		if cpu := n.f.res.CPU; cpu > width {
			width = cpu
		}
	}
	if exclusive(nodes) || width > par {
		width = par
	}

	mctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lim := limiter.New()
	lim.Release(par)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		ncells   = int64(len(items))
		ndone    int64
		started  = len(items)
	)
	for k, it := range items {
		// Acquire may admit work even on a done context; check
		// explicitly so cancellation stops dispatch deterministically.
		if mctx.Err() != nil {
			started = k
			break
		}
		if err := lim.Acquire(mctx, width); err != nil {
			started = k
			break
		}
		wg.Add(1)
		go func(it mapItem) {
			defer wg.Done()
			defer lim.Release(width)
			v, err := p.execRetry(mctx, h.output, it.bind, h.opts.retries)
			if err != nil {
				cerr := &CellError{Output: h.output, Coords: h.sweep.Coords(it.i), Err: err}
				res.cells[it.i] = Cell{Err: cerr, State: CellFailed}
				if h.opts.failFast {
					mu.Lock()
					if firstErr == nil {
						firstErr = cerr
						cancel()
					}
					mu.Unlock()
				}
			} else {
				res.cells[it.i] = Cell{Value: v, State: CellOK}
			}
			if stask != nil {
				stask.Printf("%d/%d cells done", atomic.AddInt64(&ndone, 1), ncells)
			}
		}(it)
	}
	wg.Wait()

	if h.opts.failFast && firstErr != nil {
		// Combinations that never started are absent (CellMissing).
		return res, firstErr
	}
	if started < len(items) {
		for _, it := range items[started:] {
			if res.cells[it.i].State == CellMissing {
				res.cells[it.i] = Cell{State: CellCancelled}
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// execRetry runs one combination, retrying node execution failures
// according to the map's retry budget.
func (p *Pipeline) execRetry(ctx context.Context, output string, bind Bind, retries int) (interface{}, error) {
	for try := 0; ; try++ {
		v, err := p.exec(ctx, output, bind)
		if err == nil || try >= retries {
			return v, err
		}
		if _, ok := err.(*NodeExecutionError); !ok {
			return v, err
		}
		log.Debug.Printf("gridflow: %v; retrying (%d of %d)", err, try+1, retries)
		if werr := retry.Wait(ctx, retryPolicy, try); werr != nil {
			return nil, err
		}
	}
}

func hasAxis(s Sweep, name string) bool {
	for _, axis := range s {
		if axis.Name == name {
			return true
		}
	}
	return false
}
