// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package gridflow

import (
	"sync"
	"sync/atomic"
)

// onceTask manages a computation that must be run at most once.
// It's similar to sync.Once, except it also handles and returns
// errors: every call to Do returns the error of the single
// invocation. It backs the single-resolution guarantee of lazy
// handles and pipeline builds.
type onceTask struct {
	mu   sync.Mutex
	done uint32
	err  error
}

// Do runs the function do at most once. Concurrent and successive
// invocations of Do guarantee exactly one invocation of do, and all
// return its error.
func (o *onceTask) Do(do func() error) error {
	if atomic.LoadUint32(&o.done) == 1 {
		return o.err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if atomic.LoadUint32(&o.done) == 0 {
		o.err = do()
		atomic.StoreUint32(&o.done, 1)
	}
	return o.err
}

// Done tells whether the computation has run.
func (o *onceTask) Done() bool {
	return atomic.LoadUint32(&o.done) == 1
}
