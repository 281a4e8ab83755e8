// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/grailbio/base/log"
	"github.com/grailbio/gridflow/cache"
)

// Bind maps root input names to concrete values for a run.
type Bind map[string]interface{}

func (b Bind) clone() Bind {
	c := make(Bind, len(b))
	for name, v := range b {
		c[name] = v
	}
	return c
}

// exec runs the ancestor subgraph of the requested output in
// topological order with the given bound root inputs, honoring the
// pipeline's cache at every node. It returns the value of the
// requested output.
//
// Root inputs missing from the bound set are reported as a
// MissingInputError before any computation starts. A function
// failure aborts the run with a NodeExecutionError; the failing node
// is not cached, but outputs of earlier nodes remain cached and are
// reusable by subsequent runs.
func (p *Pipeline) exec(ctx context.Context, output string, bind Bind) (interface{}, error) {
	target, ok := p.graph.producerOf[output]
	if !ok {
		return nil, &UnknownInputError{Input: output}
	}
	nodes := p.graph.ancestors(target)
	var missing []string
	for _, root := range rootsFor(nodes) {
		if _, ok := bind[root]; !ok {
			missing = append(missing, root)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingInputError{Output: output, Inputs: missing}
	}
	env := make(map[string]interface{}, len(bind))
	for name, v := range bind {
		env[name] = v
	}
	for _, n := range nodes {
		outs, err := p.execNode(ctx, n, env)
		if err != nil {
			return nil, err
		}
		for i, out := range n.f.outputs {
			env[out] = outs[i]
		}
	}
	return env[output], nil
}

// execNode computes one node given a value environment holding all
// of its inputs, consulting and populating the cache. It returns the
// node's output values in declaration order.
func (p *Pipeline) execNode(ctx context.Context, n *node, env map[string]interface{}) (outs []interface{}, err error) {
	// Fingerprinting panics on values with no by-value encoding
	// (chan, func); attribute those to the node so that a bad input
	// fails only its own run.
	defer func() {
		if e := recover(); e != nil {
			outs, err = nil, &NodeExecutionError{Node: n.f.name, Err: fmt.Errorf("%v", e)}
		}
	}()
	fp := fingerprintInputs(n.f.inputs, env)
	key := cache.Key{Func: n.f.name, Fingerprint: fp.String()}
	entry, hit, err := p.cache.Get(ctx, key)
	if err != nil {
		// A failing cache lookup must not fail the run; fall through
		// to recomputation.
		log.Error.Printf("gridflow: cache get %s/%s: %v", key.Func, key.Fingerprint, err)
	}
	if hit {
		if outs, ok := entry.Value.([]interface{}); ok && len(outs) == len(n.f.outputs) {
			return outs, nil
		}
		log.Error.Printf("gridflow: cache entry %s/%s has unexpected shape; recomputing", key.Func, key.Fingerprint)
	}
	outs, err = p.invoke(ctx, n, env)
	if err != nil {
		return nil, &NodeExecutionError{Node: n.f.name, Err: err}
	}
	if err := p.cache.Put(ctx, key, outs); err != nil {
		// The computed value is still good; a failing Put only
		// costs future recomputation.
		log.Error.Printf("gridflow: cache put %s/%s: %v", key.Func, key.Fingerprint, err)
	}
	return outs, nil
}

// invoke assembles the node's arguments from the environment and
// calls the user function, converting panics into errors so that
// they are attributed to the failing node.
func (p *Pipeline) invoke(ctx context.Context, n *node, env map[string]interface{}) (outs []interface{}, err error) {
	args := make([]reflect.Value, len(n.f.inputs))
	for i, in := range n.f.inputs {
		v := env[in]
		if v == nil {
			args[i] = reflect.Zero(n.f.fn.In[i])
			continue
		}
		rv := reflect.ValueOf(v)
		if !n.f.fn.Assignable(i, rv.Type()) {
			return nil, fmt.Errorf("input %q: %s is not assignable to %s", in, rv.Type(), n.f.fn.In[i])
		}
		args[i] = rv
	}
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("panic while evaluating node: %v\n%s", e, string(debug.Stack()))
		}
	}()
	return n.f.fn.Call(ctx, args)
}
