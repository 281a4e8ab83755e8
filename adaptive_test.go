// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/grailbio/gridflow/adapt"
)

func TestAdaptive(t *testing.T) {
	var calls int64
	seen := make(map[float64]bool)
	var mu sync.Mutex
	p := New()
	mustAdd(t, p,
		Func("y", func(x, amp float64) float64 {
			atomic.AddInt64(&calls, 1)
			mu.Lock()
			seen[x] = true
			mu.Unlock()
			return amp * math.Sin(x)
		}, Inputs("x", "amp")),
	)
	learner := adapt.NewInterval1D(0, 2*math.Pi)
	report, err := p.Adaptive(context.Background(), "y", "x", learner, nil, Bind{"amp": 2.0},
		adapt.BatchSize(4), adapt.LossThreshold(0.1), adapt.MaxIterations(1000))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := report.State, adapt.Converged; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := len(report.Points), len(report.Values); got != want {
		t.Fatalf("got %v points, %v values", got, want)
	}
	for i, x := range report.Points {
		if got, want := report.Values[i], 2*math.Sin(x); math.Abs(got-want) > 1e-9 {
			t.Errorf("point %v: got %v, want %v", x, got, want)
		}
	}
	// Each distinct point is computed once; repeats hit the cache.
	mu.Lock()
	distinct := len(seen)
	mu.Unlock()
	if got, want := atomic.LoadInt64(&calls), int64(distinct); got != want {
		t.Errorf("got %v calls for %v distinct points", got, want)
	}
}

func TestAdaptiveAbort(t *testing.T) {
	p := New()
	mustAdd(t, p,
		Func("y", func(x float64) (float64, error) {
			if x > 0.5 {
				return 0, fmt.Errorf("out of range: %v", x)
			}
			return x, nil
		}, Inputs("x")),
	)
	learner := adapt.NewInterval1D(0, 1)
	report, err := p.Adaptive(context.Background(), "y", "x", learner, nil, nil,
		adapt.MaxIterations(100))
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := report.State, adapt.Aborted; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestAdaptiveProducedAxis(t *testing.T) {
	p := New()
	mustAdd(t, p,
		Func("x", func() float64 { return 1 }),
		Func("y", func(x float64) float64 { return x }, Inputs("x")),
	)
	learner := adapt.NewInterval1D(0, 1)
	if _, err := p.Adaptive(context.Background(), "y", "x", learner, nil, nil); err == nil {
		t.Fatal("expected error for produced axis")
	}
}

func TestAdaptiveScore(t *testing.T) {
	p := New()
	mustAdd(t, p,
		Func("stats", func(x float64) map[string]float64 {
			return map[string]float64{"mean": x / 2}
		}, Inputs("x")),
	)
	score := func(v interface{}) (float64, error) {
		return v.(map[string]float64)["mean"], nil
	}
	learner := adapt.NewInterval1D(0, 4)
	report, err := p.Adaptive(context.Background(), "stats", "x", learner, score, nil,
		adapt.MaxIterations(1))
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range report.Points {
		if got, want := report.Values[i], x/2; got != want {
			t.Errorf("point %v: got %v, want %v", x, got, want)
		}
	}
}
