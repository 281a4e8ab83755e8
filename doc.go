// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package gridflow implements a workflow engine for computational
	experiments. Users register plain Go functions whose inputs and
	outputs are named parameters; gridflow assembles the functions
	into a dependency graph by matching input names to output names,
	and evaluates any requested output by running its ancestors in
	dependency order. Intermediate results are cached by a content
	fingerprint of each function's inputs, so re-running a pipeline
	recomputes only what changed.

	On top of the sequential runner, gridflow provides parameter
	sweeps: a Sweep names a set of axes, each with an ordered list of
	values, and Map runs the pipeline once per combination, in
	parallel, collecting outputs into a labeled N-dimensional
	ResultArray. Failed combinations are recorded in their cells so a
	partial sweep can be inspected and resumed. For continuous axes,
	package adapt replaces the fixed grid with an adaptive sampler
	that concentrates evaluations where a learner estimates the most
	remains to be gained.

	Because Go functions do not expose parameter names at runtime,
	inputs are declared explicitly when a func is registered:

		lr := gridflow.Func("learning_rate", defaultLR)
		loss := gridflow.Func("loss", train,
			gridflow.Inputs("learning_rate", "epochs"))

		p := gridflow.New()
		p.Add(lr)
		p.Add(loss)
		h := p.Run("loss", gridflow.Bind{"epochs": 10})
		v, err := h.Value(ctx)

	Run and Map return lazy handles: no computation happens until a
	handle's value is first observed, and each handle resolves at most
	once.

	Pipelines run within a single process; gridflow does not schedule
	work onto remote machines. Caches, however, may be durable: see
	package cache for an in-memory cache and a compressed on-disk
	cache addressed by any base/file-supported path.
*/
package gridflow
