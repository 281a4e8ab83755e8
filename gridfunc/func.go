// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package gridfunc provides types and code to call user-defined
// functions within gridflow. It hides the reflection shims needed to
// accommodate the two signature affordances gridflow grants user
// code: an optional leading context.Context parameter and an
// optional trailing error result.
package gridfunc

import (
	"context"
	"reflect"
)

// Nil is a nil Func.
var Nil Func

var (
	typeOfContext = reflect.TypeOf((*context.Context)(nil)).Elem()
	typeOfError   = reflect.TypeOf((*error)(nil)).Elem()
)

// Func represents a user-defined function within gridflow.
type Func struct {
	// In holds the types of the function's data arguments, excluding
	// a leading context.Context if present.
	In []reflect.Type
	// Out holds the types of the function's data results, excluding
	// a trailing error if present.
	Out []reflect.Type

	fn          reflect.Value
	contextFunc bool
	errorFunc   bool
}

// Of creates a Func from the provided function, along with a bool
// indicating whether fn is a valid function. If it is not, the
// returned Func is invalid.
func Of(fn interface{}) (Func, bool) {
	t := reflect.TypeOf(fn)
	if t == nil || t.Kind() != reflect.Func || t.IsVariadic() {
		return Func{}, false
	}
	in := make([]reflect.Type, t.NumIn())
	for i := range in {
		in[i] = t.In(i)
	}
	context := len(in) > 0 && in[0] == typeOfContext
	if context {
		in = in[1:]
	}
	out := make([]reflect.Type, t.NumOut())
	for i := range out {
		out[i] = t.Out(i)
	}
	errored := len(out) > 0 && out[len(out)-1] == typeOfError
	if errored {
		out = out[:len(out)-1]
	}
	return Func{
		In:          in,
		Out:         out,
		fn:          reflect.ValueOf(fn),
		contextFunc: context,
		errorFunc:   errored,
	}, true
}

// Call invokes the function with the provided arguments, returning
// its data results and error. Arguments must conform to In; results
// conform to Out. Call does not recover panics from user code: the
// caller decides how to attribute them.
func (f Func) Call(ctx context.Context, args []reflect.Value) ([]interface{}, error) {
	var rvs []reflect.Value
	if f.contextFunc {
		rvs = f.fn.Call(append([]reflect.Value{reflect.ValueOf(ctx)}, args...))
	} else {
		rvs = f.fn.Call(args)
	}
	var err error
	if f.errorFunc {
		last := rvs[len(rvs)-1]
		if !last.IsNil() {
			err = last.Interface().(error)
		}
		rvs = rvs[:len(rvs)-1]
	}
	out := make([]interface{}, len(rvs))
	for i, rv := range rvs {
		out[i] = rv.Interface()
	}
	return out, err
}

// IsNil returns whether the Func f is nil.
func (f Func) IsNil() bool {
	return f.fn == reflect.Value{}
}

// Assignable reports whether a value of type arg may be passed as
// the i'th argument of f. Interface arguments accept any
// implementation; nil args (untyped) are assignable to nilable
// parameter kinds.
func (f Func) Assignable(i int, arg reflect.Type) bool {
	expect := f.In[i]
	if arg == nil {
		switch expect.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface,
			reflect.Map, reflect.Ptr, reflect.Slice:
			return true
		}
		return false
	}
	return arg.AssignableTo(expect)
}
