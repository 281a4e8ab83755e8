// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"sync"
	"time"
)

// Mem is an in-memory cache with process lifetime. The zero value
// is ready to use.
type Mem struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

// NewMem returns a new, empty memory cache.
func NewMem() *Mem {
	return &Mem{}
}

// Get implements Cache.
func (m *Mem) Get(_ context.Context, key Key) (Entry, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	return entry, ok, nil
}

// Put implements Cache.
func (m *Mem) Put(_ context.Context, key Key, value interface{}) error {
	m.mu.Lock()
	if m.entries == nil {
		m.entries = make(map[Key]Entry)
	}
	m.entries[key] = Entry{Value: value, Time: time.Now(), Size: -1}
	m.mu.Unlock()
	return nil
}

// Clear implements Cache.
func (m *Mem) Clear(_ context.Context, fn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fn == "" {
		m.entries = nil
		return nil
	}
	for key := range m.entries {
		if key.Func == fn {
			delete(m.entries, key)
		}
	}
	return nil
}

// Len returns the number of cached entries.
func (m *Mem) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
