// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"math"
	"testing"

	fuzz "github.com/google/gofuzz"
)

type fingerprintStruct struct {
	A int
	B string
	C []float64
	M map[string]int
}

// TestFingerprintDeterminism verifies that equal values, separately
// constructed, produce equal fingerprints.
func TestFingerprintDeterminism(t *testing.T) {
	f := fuzz.New().NilChance(0.1).NumElements(0, 16)
	for i := 0; i < 100; i++ {
		var v fingerprintStruct
		f.Fuzz(&v)
		w := fingerprintStruct{
			A: v.A,
			B: v.B,
			C: append([]float64(nil), v.C...),
			M: make(map[string]int, len(v.M)),
		}
		for k, mv := range v.M {
			w.M[k] = mv
		}
		if got, want := fingerprintValue(w), fingerprintValue(v); got != want {
			t.Errorf("copy of %+v fingerprints differently: got %v, want %v", v, got, want)
		}
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	seen := make(map[Fingerprint]interface{})
	for _, v := range []interface{}{
		nil,
		0, 1, -1,
		uint(0),
		0.0, 1.0,
		false, true,
		"", "a", "b", "ab",
		[]string{"a", "b"}, []string{"ab"},
		[]int{}, []int{0}, []int{0, 0},
		map[string]int{}, map[string]int{"a": 1}, map[string]int{"a": 2},
		fingerprintStruct{}, fingerprintStruct{A: 1},
	} {
		fp := fingerprintValue(v)
		if prev, ok := seen[fp]; ok {
			t.Errorf("values %#v and %#v collide at %v", prev, v, fp)
		}
		seen[fp] = v
	}
}

// TestFingerprintInputOrder verifies that the input fingerprint does
// not depend on the order in which input names are declared.
func TestFingerprintInputOrder(t *testing.T) {
	env := map[string]interface{}{"x": 1, "y": "two", "z": 3.0}
	fp := fingerprintInputs([]string{"x", "y", "z"}, env)
	for _, names := range [][]string{
		{"z", "y", "x"},
		{"y", "x", "z"},
	} {
		if got, want := fingerprintInputs(names, env), fp; got != want {
			t.Errorf("order %v: got %v, want %v", names, got, want)
		}
	}
	// Changing a value must change the fingerprint.
	env["y"] = "three"
	if got := fingerprintInputs([]string{"x", "y", "z"}, env); got == fp {
		t.Error("fingerprint insensitive to value change")
	}
}

// TestFingerprintMapOrder constructs maps with different insertion
// orders and verifies they fingerprint equally.
func TestFingerprintMapOrder(t *testing.T) {
	a := make(map[int]string)
	b := make(map[int]string)
	for i := 0; i < 100; i++ {
		a[i] = "v"
	}
	for i := 99; i >= 0; i-- {
		b[i] = "v"
	}
	if got, want := fingerprintValue(b), fingerprintValue(a); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFingerprintZeroFloats(t *testing.T) {
	neg := math.Copysign(0, -1)
	if got, want := fingerprintValue(neg), fingerprintValue(0.0); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFingerprintPointers(t *testing.T) {
	x, y := 42, 42
	if got, want := fingerprintValue(&x), fingerprintValue(&y); got != want {
		t.Errorf("distinct pointers to equal values differ: got %v, want %v", got, want)
	}
	var p *int
	if got, want := fingerprintValue(p), fingerprintValue(nil); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFingerprintUnsupported(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	fingerprintValue(make(chan int))
}
