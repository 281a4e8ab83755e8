// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/grailbio/gridflow/cache"
)

func TestRunDiamond(t *testing.T) {
	p := New()
	mustAdd(t, p,
		Func("left", func(base int) int { return base * 2 }, Inputs("base")),
		Func("right", func(base int) int { return base + 1 }, Inputs("base")),
		Func("top", func(l, r int) int { return l * r }, Inputs("left", "right")),
	)
	v, err := p.Run("top", Bind{"base": 3}).Value(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v, 6*4; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// TestRunCaching verifies that a second run with equal inputs
// recomputes nothing, that changed inputs recompute only the
// affected subgraph, and that cache keys are computed by value.
func TestRunCaching(t *testing.T) {
	var slowCalls, fastCalls int64
	p := New()
	mustAdd(t, p,
		Func("slow", func(data []int) int {
			atomic.AddInt64(&slowCalls, 1)
			var sum int
			for _, x := range data {
				sum += x
			}
			return sum
		}, Inputs("data")),
		Func("fast", func(sum, scale int) int {
			atomic.AddInt64(&fastCalls, 1)
			return sum * scale
		}, Inputs("slow", "scale")),
	)
	ctx := context.Background()
	run := func(data []int, scale int) int {
		t.Helper()
		v, err := p.Run("fast", Bind{"data": data, "scale": scale}).Value(ctx)
		if err != nil {
			t.Fatal(err)
		}
		return v.(int)
	}
	if got, want := run([]int{1, 2, 3}, 10), 60; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	// Same inputs, separately constructed: all hits.
	if got, want := run([]int{1, 2, 3}, 10), 60; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got, want := atomic.LoadInt64(&slowCalls), int64(1); got != want {
		t.Errorf("got %v slow calls, want %v", got, want)
	}
	if got, want := atomic.LoadInt64(&fastCalls), int64(1); got != want {
		t.Errorf("got %v fast calls, want %v", got, want)
	}
	// New scale: only the downstream node recomputes.
	if got, want := run([]int{1, 2, 3}, 100), 600; got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got, want := atomic.LoadInt64(&slowCalls), int64(1); got != want {
		t.Errorf("got %v slow calls, want %v", got, want)
	}
	if got, want := atomic.LoadInt64(&fastCalls), int64(2); got != want {
		t.Errorf("got %v fast calls, want %v", got, want)
	}
}

func TestRunNopCache(t *testing.T) {
	var calls int64
	p := New(Cache(cache.Nop{}))
	mustAdd(t, p, Func("n", func() int {
		return int(atomic.AddInt64(&calls, 1))
	}))
	ctx := context.Background()
	for want := 1; want <= 3; want++ {
		v, err := p.Run("n", nil).Value(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got := v.(int); got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestRunMissingInput(t *testing.T) {
	p := New()
	mustAdd(t, p, sumFunc("out", "x", "y", "z"))
	_, err := p.Run("out", Bind{"y": 1}).Value(context.Background())
	merr, ok := err.(*MissingInputError)
	if !ok {
		t.Fatalf("expected MissingInputError, got %v", err)
	}
	if got, want := merr.Inputs, []string{"x", "z"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestRunUnknownOutput(t *testing.T) {
	p := New()
	mustAdd(t, p, constFunc("a", 1))
	_, err := p.Run("nonesuch", nil).Value(context.Background())
	if _, ok := err.(*UnknownInputError); !ok {
		t.Fatalf("expected UnknownInputError, got %v", err)
	}
}

// TestRunNodeError verifies that a failing node aborts the run with a
// NodeExecutionError, that the failure is not cached, and that
// upstream successes are.
func TestRunNodeError(t *testing.T) {
	var upCalls, downCalls int64
	fail := errors.New("flaky")
	p := New()
	mustAdd(t, p,
		Func("up", func() int {
			atomic.AddInt64(&upCalls, 1)
			return 7
		}),
		Func("down", func(v int) (int, error) {
			if atomic.AddInt64(&downCalls, 1) == 1 {
				return 0, fail
			}
			return v, nil
		}, Inputs("up")),
	)
	ctx := context.Background()
	_, err := p.Run("down", nil).Value(ctx)
	nerr, ok := err.(*NodeExecutionError)
	if !ok {
		t.Fatalf("expected NodeExecutionError, got %v", err)
	}
	if got, want := nerr.Node, "down"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if !errors.Is(err, fail) {
		t.Errorf("error %v does not unwrap to cause", err)
	}
	// A fresh handle retries the failed node; the upstream node is
	// cached from the first run.
	v, err := p.Run("down", nil).Value(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v, 7; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := atomic.LoadInt64(&upCalls), int64(1); got != want {
		t.Errorf("got %v up calls, want %v", got, want)
	}
	if got, want := atomic.LoadInt64(&downCalls), int64(2); got != want {
		t.Errorf("got %v down calls, want %v", got, want)
	}
}

func TestRunPanic(t *testing.T) {
	p := New()
	mustAdd(t, p, Func("boom", func() int { panic("kaboom") }))
	_, err := p.Run("boom", nil).Value(context.Background())
	nerr, ok := err.(*NodeExecutionError)
	if !ok {
		t.Fatalf("expected NodeExecutionError, got %v", err)
	}
	if got, want := fmt.Sprint(nerr), "kaboom"; !strings.Contains(got, want) {
		t.Errorf("error %q does not mention %q", got, want)
	}
}

func TestMultipleOutputs(t *testing.T) {
	p := New()
	mustAdd(t, p,
		Func("divmod", func(a, b int) (int, int) { return a / b, a % b },
			Inputs("a", "b"), Outputs("quot", "rem")),
		Func("check", func(q, r, b int) int { return q*b + r },
			Inputs("quot", "rem", "b")),
	)
	ctx := context.Background()
	v, err := p.Run("check", Bind{"a": 17, "b": 5}).Value(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v, 17; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	// Each output is addressable on its own.
	v, err = p.Run("rem", Bind{"a": 17, "b": 5}).Value(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v, 2; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// TestRunUnencodableInput verifies that an input value with no
// by-value encoding (here a func) fails its run with a node error
// rather than panicking through to the caller.
func TestRunUnencodableInput(t *testing.T) {
	p := New()
	mustAdd(t, p, Func("apply", func(f interface{}) int {
		return f.(func() int)()
	}, Inputs("f")))
	_, err := p.Run("apply", Bind{"f": func() int { return 1 }}).Value(context.Background())
	nerr, ok := err.(*NodeExecutionError)
	if !ok {
		t.Fatalf("expected NodeExecutionError, got %v", err)
	}
	if got, want := nerr.Node, "apply"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
	if got, want := nerr.Error(), "fingerprint"; !strings.Contains(got, want) {
		t.Errorf("error %q does not mention %q", got, want)
	}
}

func TestAddAfterBuild(t *testing.T) {
	p := New()
	mustAdd(t, p, constFunc("a", 1))
	if err := p.Build(); err != nil {
		t.Fatal(err)
	}
	if err := p.Add(constFunc("b", 2)); err != errAlreadyBuilt {
		t.Errorf("got %v, want %v", err, errAlreadyBuilt)
	}
}

func TestContextFunc(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "hello")
	p := New()
	mustAdd(t, p, Func("greet", func(ctx context.Context) string {
		return ctx.Value(key{}).(string)
	}))
	v, err := p.Run("greet", nil).Value(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := v, "hello"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
