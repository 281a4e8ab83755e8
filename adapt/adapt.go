// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package adapt implements adaptive sampling: instead of sweeping a
// fixed grid, a sampler iteratively chooses new sample points based
// on a loss estimate over the points computed so far. Point
// selection is delegated to a Learner; evaluation is delegated to a
// batch evaluation function, typically backed by a gridflow
// pipeline. The interaction is an explicit request/response loop
// (ask for a batch, evaluate it, tell the learner), which keeps
// cancellation and error propagation uniform with the rest of the
// executor.
package adapt

import (
	"context"
	"sync/atomic"
	"time"
)

// State is the sampler's run state. Converged and Aborted are
// terminal.
type State int32

const (
	// Idle is the state before Run is called.
	Idle State = iota
	// Sampling is the state while the learner selects the next
	// batch of points.
	Sampling
	// Evaluating is the state while a batch is being evaluated.
	// This wait is the sampler's sole blocking point.
	Evaluating
	// Converged is reached when a stopping criterion is met.
	Converged
	// Aborted is reached on an evaluator-reported fatal error or
	// external cancellation.
	Aborted
)

var states = [...]string{
	Idle:       "IDLE",
	Sampling:   "SAMPLING",
	Evaluating: "EVALUATING",
	Converged:  "CONVERGED",
	Aborted:    "ABORTED",
}

// String returns the state as an upper-case string.
func (s State) String() string { return states[s] }

// A Learner selects sample points. Learners are the hook into an
// external adaptive-scheduling collaborator; adapt ships Interval1D
// as a default. Learners need not be safe for concurrent use: the
// sampler serializes Ask and Tell.
type Learner interface {
	// Ask returns up to n new candidate points, chosen to maximize
	// expected loss reduction. An empty batch signals that the
	// learner has nothing left to refine.
	Ask(n int) []float64

	// Tell updates the learner with observed values for previously
	// asked points.
	Tell(points, values []float64)

	// Loss returns the learner's current global loss estimate. A
	// learner without enough data reports +Inf.
	Loss() float64
}

// Func evaluates a batch of points, returning one observed value per
// point. An error aborts the sampler.
type Func func(ctx context.Context, points []float64) ([]float64, error)

// Option configures a Sampler.
type Option func(*Sampler)

// BatchSize sets the number of points requested per iteration. The
// default is 1.
func BatchSize(n int) Option {
	return func(s *Sampler) { s.batch = n }
}

// MaxIterations sets the iteration budget. The default of 0 means
// no iteration bound.
func MaxIterations(n int) Option {
	return func(s *Sampler) { s.maxIter = n }
}

// LossThreshold stops the sampler once the learner's loss estimate
// drops to the threshold or below.
func LossThreshold(v float64) Option {
	return func(s *Sampler) { s.threshold = v }
}

// Budget bounds the sampler's wall-clock time. Exceeding the budget
// is a normal stop (Converged), not an abort.
func Budget(d time.Duration) Option {
	return func(s *Sampler) { s.budget = d }
}

// A Report summarizes a sampler run: every point evaluated, its
// observed value, the number of completed iterations and the final
// loss estimate.
type Report struct {
	Points     []float64
	Values     []float64
	Iterations int
	Loss       float64
	State      State
}

// A Sampler drives the adaptive loop over a single continuous axis.
// A sampler runs at most once.
type Sampler struct {
	learner   Learner
	eval      Func
	batch     int
	maxIter   int
	threshold float64
	budget    time.Duration

	state int32
}

// New returns a sampler that selects points with the learner and
// evaluates them with eval.
func New(learner Learner, eval Func, opts ...Option) *Sampler {
	s := &Sampler{
		learner: learner,
		eval:    eval,
		batch:   1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the sampler's current state. It is safe to call
// concurrently with Run.
func (s *Sampler) State() State {
	return State(atomic.LoadInt32(&s.state))
}

func (s *Sampler) setState(state State) {
	atomic.StoreInt32(&s.state, int32(state))
}

// Run executes the sampling loop until a stopping criterion is met
// or the run aborts. It returns a report of all evaluated points;
// the report is valid even when an error is returned.
func (s *Sampler) Run(ctx context.Context) (Report, error) {
	var report Report
	if s.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.budget)
		defer cancel()
	}
	finish := func(state State) {
		s.setState(state)
		report.State = state
		report.Loss = s.learner.Loss()
	}
	for {
		if s.maxIter > 0 && report.Iterations >= s.maxIter {
			finish(Converged)
			return report, nil
		}
		if loss := s.learner.Loss(); loss <= s.threshold {
			finish(Converged)
			return report, nil
		}
		s.setState(Sampling)
		points := s.learner.Ask(s.batch)
		if len(points) == 0 {
			finish(Converged)
			return report, nil
		}
		s.setState(Evaluating)
		values, err := s.eval(ctx, points)
		if err != nil {
			if s.budget > 0 && ctx.Err() == context.DeadlineExceeded {
				// The wall-clock budget is a stopping criterion,
				// not a failure.
				finish(Converged)
				return report, nil
			}
			finish(Aborted)
			return report, err
		}
		s.learner.Tell(points, values)
		report.Points = append(report.Points, points...)
		report.Values = append(report.Values, values...)
		report.Iterations++
	}
}
