// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"encoding/binary"
	"fmt"
	"hash"
	"math"
	"reflect"
	"sort"

	"github.com/spaolacci/murmur3"
)

// Fingerprint is a deterministic digest of a node's resolved input
// values. Together with the node's name it forms a cache key.
// Fingerprints are computed by value, not identity: equal inputs
// yield equal fingerprints even when separately constructed, which
// is what allows cache hits across runs and across processes (for
// persistent cache backends).
type Fingerprint struct {
	Hi, Lo uint64
}

// String returns the fingerprint as a fixed-width hex string,
// suitable for use in file names.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x%016x", f.Hi, f.Lo)
}

// IsZero tells whether f is the zero fingerprint.
func (f Fingerprint) IsZero() bool { return f.Hi == 0 && f.Lo == 0 }

// fingerprintInputs digests the given input names and their resolved
// values. The digest is independent of the order in which names are
// supplied: names are visited in sorted order.
func fingerprintInputs(names []string, env map[string]interface{}) Fingerprint {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	h := murmur3.New128()
	for _, name := range sorted {
		writeString(h, name)
		writeValue(h, reflect.ValueOf(env[name]))
	}
	hi, lo := h.Sum128()
	return Fingerprint{Hi: hi, Lo: lo}
}

// fingerprintValue digests a single value. It is used to order map
// keys canonically and by tests.
func fingerprintValue(v interface{}) Fingerprint {
	return valueFingerprint(reflect.ValueOf(v))
}

// Kind tags keep adjacent values from running together in the
// digest stream.
const (
	tagNil byte = iota
	tagBool
	tagInt
	tagUint
	tagFloat
	tagComplex
	tagString
	tagSeq
	tagMap
	tagStruct
	tagPtr
)

func writeString(h hash.Hash, s string) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

func writeUint64(h hash.Hash, x uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], x)
	h.Write(b[:])
}

// writeValue writes a canonical encoding of v to h. Map entries are
// visited in the order of their key digests so that the encoding
// does not depend on map iteration order. Struct fields are visited
// in declaration order; unexported fields are skipped. Values of
// kind chan, func and unsafe pointer have no by-value encoding and
// panic.
func writeValue(h hash.Hash, v reflect.Value) {
	if !v.IsValid() {
		h.Write([]byte{tagNil})
		return
	}
	switch v.Kind() {
	case reflect.Bool:
		h.Write([]byte{tagBool})
		if v.Bool() {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		h.Write([]byte{tagInt})
		writeUint64(h, uint64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		h.Write([]byte{tagUint})
		writeUint64(h, v.Uint())
	case reflect.Float32, reflect.Float64:
		h.Write([]byte{tagFloat})
		writeUint64(h, uint64(float64bits(v.Float())))
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		h.Write([]byte{tagComplex})
		writeUint64(h, uint64(float64bits(real(c))))
		writeUint64(h, uint64(float64bits(imag(c))))
	case reflect.String:
		h.Write([]byte{tagString})
		writeString(h, v.String())
	case reflect.Slice, reflect.Array:
		h.Write([]byte{tagSeq})
		writeUint64(h, uint64(v.Len()))
		for i := 0; i < v.Len(); i++ {
			writeValue(h, v.Index(i))
		}
	case reflect.Map:
		h.Write([]byte{tagMap})
		writeUint64(h, uint64(v.Len()))
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			fi := valueFingerprint(keys[i])
			fj := valueFingerprint(keys[j])
			if fi.Hi != fj.Hi {
				return fi.Hi < fj.Hi
			}
			return fi.Lo < fj.Lo
		})
		for _, key := range keys {
			writeValue(h, key)
			writeValue(h, v.MapIndex(key))
		}
	case reflect.Struct:
		h.Write([]byte{tagStruct})
		t := v.Type()
		writeString(h, t.String())
		for i := 0; i < t.NumField(); i++ {
			if t.Field(i).PkgPath != "" { // unexported
				continue
			}
			writeString(h, t.Field(i).Name)
			writeValue(h, v.Field(i))
		}
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			h.Write([]byte{tagNil})
			return
		}
		h.Write([]byte{tagPtr})
		writeValue(h, v.Elem())
	default:
		panic(fmt.Sprintf("gridflow: cannot fingerprint value of kind %s", v.Kind()))
	}
}

func valueFingerprint(v reflect.Value) Fingerprint {
	h := murmur3.New128()
	writeValue(h, v)
	hi, lo := h.Sum128()
	return Fingerprint{Hi: hi, Lo: lo}
}

func float64bits(f float64) uint64 {
	// Normalize the two zero representations so that 0 and -0
	// fingerprint equally, matching Go value equality.
	if f == 0 {
		return 0
	}
	return math.Float64bits(f)
}
