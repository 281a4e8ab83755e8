// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"context"
	"fmt"
	"reflect"

	"golang.org/x/sync/errgroup"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/limiter"
	"github.com/grailbio/gridflow/adapt"
)

// A ScoreFunc converts a pipeline output value into the scalar
// observed by an adaptive learner. A nil ScoreFunc requires the
// output to be a numeric value, which is converted to float64.
type ScoreFunc func(v interface{}) (float64, error)

// Adaptive runs the pipeline over a single continuous axis without
// enumerating a grid up front: the learner chooses batches of
// points, each batch is evaluated in parallel through the sequential
// runner (honoring the cache), and the learner is updated with the
// observed scores until a stopping criterion is met. The axis value
// is bound as a float64 root input; remaining roots are covered by
// fixed.
//
// A failing combination is fatal to the sampler: the batch is
// cancelled and the sampler aborts. Per-cell tolerance is a property
// of fixed sweeps (see Map), not of the adaptive loop.
func (p *Pipeline) Adaptive(ctx context.Context, output, axis string, learner adapt.Learner, score ScoreFunc, fixed Bind, opts ...adapt.Option) (adapt.Report, error) {
	if err := p.Build(); err != nil {
		return adapt.Report{}, err
	}
	if producer, ok := p.graph.producerOf[axis]; ok {
		return adapt.Report{}, errors.E(errors.Invalid,
			fmt.Sprintf("adaptive axis %q is produced by func %q", axis, producer.name()))
	}
	if score == nil {
		score = floatScore
	}
	eval := func(ctx context.Context, points []float64) ([]float64, error) {
		values := make([]float64, len(points))
		g, gctx := errgroup.WithContext(ctx)
		lim := limiter.New()
		lim.Release(p.par)
		for i := range points {
			i := i
			g.Go(func() error {
				if err := lim.Acquire(gctx, 1); err != nil {
					return err
				}
				defer lim.Release(1)
				bind := fixed.clone()
				bind[axis] = points[i]
				v, err := p.exec(gctx, output, bind)
				if err != nil {
					return err
				}
				s, err := score(v)
				if err != nil {
					return fmt.Errorf("gridflow: score of %q at %s=%v: %v", output, axis, points[i], err)
				}
				values[i] = s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return values, nil
	}
	return adapt.New(learner, eval, opts...).Run(ctx)
}

func floatScore(v interface{}) (float64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	}
	return 0, fmt.Errorf("value of type %T is not numeric", v)
}
