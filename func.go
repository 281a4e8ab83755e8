// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"encoding/gob"
	"reflect"

	"github.com/grailbio/gridflow/gridfunc"
	"github.com/grailbio/gridflow/internal/typecheck"
)

// A FuncValue represents a gridflow function: a user callable
// together with its declared input and output names. Input names
// express data dependencies: an input is satisfied either by a bound
// root input or by another function's equally-named output.
// FuncValues are immutable once created.
type FuncValue struct {
	name    string
	inputs  []string
	outputs []string
	fn      gridfunc.Func
	res     Resources
	excl    bool
}

// Resources is an optional resource hint attached to a function.
// Hints are advisory; the map executor uses them to attenuate
// parallelism.
type Resources struct {
	// CPU is the number of compute units the function is expected
	// to occupy. Zero means one.
	CPU int
	// Mem is the expected peak memory use in bytes. Zero means
	// unknown.
	Mem uint64
}

// FuncOpt is an option to Func.
type FuncOpt func(*FuncValue)

// Inputs declares the function's input names, in parameter order.
// Go does not expose parameter names at runtime, so functions with
// data arguments must declare them explicitly.
func Inputs(names ...string) FuncOpt {
	return func(f *FuncValue) { f.inputs = names }
}

// Outputs declares the function's output names, in result order.
// A function without an Outputs declaration produces a single
// output named after the function itself.
func Outputs(names ...string) FuncOpt {
	return func(f *FuncValue) { f.outputs = names }
}

// Reserve attaches a resource hint to the function.
func Reserve(cpu int, mem uint64) FuncOpt {
	return func(f *FuncValue) { f.res = Resources{CPU: cpu, Mem: mem} }
}

// Exclusive marks the function as requiring exclusive use of the
// worker pool: map combinations whose runs reach this function are
// not executed concurrently with other combinations.
func Exclusive() FuncOpt {
	return func(f *FuncValue) { f.excl = true }
}

// Func creates a gridflow function from the provided name, function
// value and options. The function may take an optional leading
// context.Context and may return an optional trailing error; its
// remaining arguments must be covered, in order, by declared input
// names, and its remaining results by declared output names. Func
// panics with a type error if the declarations do not match the
// function's signature.
//
// Argument and result types are registered with gob so that values
// can cross the encoding boundary of persistent cache backends.
func Func(name string, fn interface{}, opts ...FuncOpt) *FuncValue {
	if name == "" {
		typecheck.Panic(1, "gridflow.Func: empty function name")
	}
	gf, ok := gridfunc.Of(fn)
	if !ok {
		typecheck.Panicf(1, "gridflow.Func: argument to func %q is a %T, not a func", name, fn)
	}
	if len(gf.Out) == 0 {
		typecheck.Panicf(1, "gridflow.Func: func %q must return at least one value", name)
	}
	f := &FuncValue{name: name, fn: gf}
	for _, opt := range opts {
		opt(f)
	}
	if f.outputs == nil {
		f.outputs = []string{name}
	}
	if got, want := len(f.inputs), len(gf.In); got != want {
		typecheck.Panicf(1, "gridflow.Func: func %q takes %d arguments, %d input names declared", name, want, got)
	}
	if got, want := len(f.outputs), len(gf.Out); got != want {
		typecheck.Panicf(1, "gridflow.Func: func %q returns %d values, %d output names declared", name, want, got)
	}
	seen := make(map[string]bool)
	for _, in := range f.inputs {
		if in == "" {
			typecheck.Panicf(1, "gridflow.Func: func %q declares an empty input name", name)
		}
		if seen[in] {
			typecheck.Panicf(1, "gridflow.Func: func %q declares duplicate input %q", name, in)
		}
		seen[in] = true
	}
	seen = make(map[string]bool)
	for _, out := range f.outputs {
		if out == "" {
			typecheck.Panicf(1, "gridflow.Func: func %q declares an empty output name", name)
		}
		if seen[out] {
			typecheck.Panicf(1, "gridflow.Func: func %q declares duplicate output %q", name, out)
		}
		seen[out] = true
	}
	for _, typ := range gf.In {
		registerGob(typ)
	}
	for _, typ := range gf.Out {
		registerGob(typ)
	}
	return f
}

// Name returns the function's name.
func (f *FuncValue) Name() string { return f.name }

// NumIn returns the number of declared inputs.
func (f *FuncValue) NumIn() int { return len(f.inputs) }

// In returns the i'th declared input name.
func (f *FuncValue) In(i int) string { return f.inputs[i] }

// Outputs returns a copy of the function's declared output names.
func (f *FuncValue) Outputs() []string {
	return append([]string(nil), f.outputs...)
}

// Resources returns the function's resource hint.
func (f *FuncValue) Resources() Resources { return f.res }

// IsExclusive tells whether the function was marked Exclusive.
func (f *FuncValue) IsExclusive() bool { return f.excl }

func registerGob(typ reflect.Type) {
	switch typ.Kind() {
	case reflect.Interface, reflect.Chan, reflect.Func:
		return
	}
	gob.Register(reflect.Zero(typ).Interface())
}
