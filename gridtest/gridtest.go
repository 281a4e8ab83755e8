// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package gridtest provides utilities for testing gridflow user
// code. The utilities here are strictly intended for unit testing;
// they are not optimized for performance or robustness.
package gridtest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/grailbio/gridflow"
)

// Value runs the pipeline for the named output with the given
// bindings and returns its value. Errors are reported as fatal to
// the provided t instance.
func Value(t *testing.T, p *gridflow.Pipeline, output string, inputs gridflow.Bind) interface{} {
	t.Helper()
	v, err := p.Run(output, inputs).Value(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// Result maps the pipeline over the sweep and returns the resulting
// array. Errors, including any per-cell error, are reported as fatal
// to the provided t instance.
func Result(t *testing.T, p *gridflow.Pipeline, output string, sweep gridflow.Sweep, opts ...gridflow.MapOpt) *gridflow.ResultArray {
	t.Helper()
	res, err := p.Map(output, sweep, opts...).Result(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := res.Err(); err != nil {
		t.Fatal(err)
	}
	return res
}

// Print prints the result array to stdout, one cell per line in
// sweep order, labeling each cell with its coordinates. This is
// useful in examples, since cell order is deterministic.
func Print(res *gridflow.ResultArray) {
	axes := res.Axes()
	coords := make([]int, len(axes))
	for i := 0; i < res.Size(); i++ {
		labels := make([]string, len(axes))
		for a, c := range coords {
			labels[a] = fmt.Sprintf("%s=%v", axes[a].Name, axes[a].Values[c])
		}
		cell := res.At(coords...)
		switch cell.State {
		case gridflow.CellOK:
			fmt.Printf("%s: %v\n", strings.Join(labels, " "), cell.Value)
		default:
			fmt.Printf("%s: %s\n", strings.Join(labels, " "), cell.State)
		}
		for a := len(coords) - 1; a >= 0; a-- {
			coords[a]++
			if coords[a] < len(axes[a].Values) {
				break
			}
			coords[a] = 0
		}
	}
}
