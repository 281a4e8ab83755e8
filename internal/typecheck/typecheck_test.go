// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package typecheck

import (
	"strings"
	"testing"
)

func TestErrorLocation(t *testing.T) {
	err := Errorf(0, "bad type %q", "x")
	if !strings.HasSuffix(err.File, "typecheck_test.go") {
		t.Errorf("error location %s:%d not in typecheck_test.go", err.File, err.Line)
	}
	if got, want := err.Error(), `bad type "x"`; !strings.HasSuffix(got, want) {
		t.Errorf("got %v, want suffix %v", got, want)
	}
}

func TestPanic(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		err, ok := r.(*Error)
		if !ok {
			t.Fatalf("expected *Error, got %T", r)
		}
		if !strings.HasSuffix(err.File, "typecheck_test.go") {
			t.Errorf("error location %s:%d not in typecheck_test.go", err.File, err.Line)
		}
	}()
	Panicf(0, "oops: %d", 42)
}
