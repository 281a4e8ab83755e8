// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cache

import "context"

// Nop is a cache on which every Get misses. It is used to disable
// caching for a pipeline without changing the runner's structure.
type Nop struct{}

// Get implements Cache.
func (Nop) Get(context.Context, Key) (Entry, bool, error) { return Entry{}, false, nil }

// Put implements Cache.
func (Nop) Put(context.Context, Key, interface{}) error { return nil }

// Clear implements Cache.
func (Nop) Clear(context.Context, string) error { return nil }
