// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package cache provides the pluggable result cache used by
// gridflow pipelines. A cache maps a (function name, argument
// fingerprint) pair to a previously computed result. Backends are
// polymorphic over the capability set {Get, Put, Clear}; gridflow
// ships a process-lifetime memory cache, a persistent disk cache and
// a no-op cache. Backend choice is a per-pipeline configuration.
//
// Caches must be safe for concurrent use. Two workers computing the
// same key concurrently is tolerated: both Put independently and the
// last write wins. This trades a small amount of duplicated work for
// a simpler cache contract.
package cache

import (
	"context"
	"time"
)

// Key identifies a cached computation: the identity of the function
// and the fingerprint of its resolved input values.
type Key struct {
	Func        string
	Fingerprint string
}

// Entry is a cached result together with its metadata. Entries are
// never mutated in place; they are replaced by later Puts or removed
// by Clear.
type Entry struct {
	Value interface{}
	// Time is the time at which the entry was stored.
	Time time.Time
	// Size is the encoded size of the entry in bytes, or -1 if the
	// backend does not track sizes.
	Size int64
}

// Cache is the capability set implemented by cache backends.
type Cache interface {
	// Get returns the entry stored for the key, if any. A miss is
	// not an error: it is reported by ok=false.
	Get(ctx context.Context, key Key) (entry Entry, ok bool, err error)

	// Put stores a value for the key, silently overwriting any
	// existing entry.
	Put(ctx context.Context, key Key, value interface{}) error

	// Clear removes all entries for the named function, or every
	// entry if fn is empty.
	Clear(ctx context.Context, fn string) error
}
