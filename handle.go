// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import "context"

// A Handle is the deferred result of a single pipeline run. Creating
// a handle performs no computation: the run happens on the first
// observation (Value or Force), exactly once, and the handle is
// immutable thereafter. Handles are safe for concurrent use;
// concurrent observers of an unresolved handle share one
// resolution.
type Handle struct {
	p      *Pipeline
	output string
	bind   Bind

	once  onceTask
	value interface{}
}

// Run returns a lazy handle for the value of the named output, with
// the given root inputs bound. The bound inputs are copied; later
// mutation of inputs does not affect the run. Construction errors
// from an unbuilt pipeline surface on resolution.
func (p *Pipeline) Run(output string, inputs Bind) *Handle {
	return &Handle{p: p, output: output, bind: inputs.clone()}
}

// Value resolves the handle if necessary and returns the computed
// value of the run's output.
func (h *Handle) Value(ctx context.Context) (interface{}, error) {
	err := h.once.Do(func() error {
		if err := h.p.Build(); err != nil {
			return err
		}
		v, err := h.p.exec(ctx, h.output, h.bind)
		if err != nil {
			return err
		}
		h.value = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h.value, nil
}

// Force resolves the handle if necessary, discarding the value.
func (h *Handle) Force(ctx context.Context) error {
	_, err := h.Value(ctx)
	return err
}

// Resolved tells whether the handle has been resolved.
func (h *Handle) Resolved() bool { return h.once.Done() }

// Output returns the name of the output the handle computes.
func (h *Handle) Output() string { return h.output }
