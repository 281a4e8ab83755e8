// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"runtime"

	"github.com/grailbio/base/compress/zstd"
	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Disk is a persistent cache that stores entries as zstd-compressed,
// gob-encoded files below a prefix. Entries are keyed by content:
// one file per (function, fingerprint) pair, so the cache survives
// restarts and may be shared between processes.
//
// Disk uses GRAIL's file library, so the prefix may refer to a URL
// of a distributed object store such as S3. Values must be gob
// encodable; gridflow registers argument and result types at Func
// registration time.
type Disk struct {
	prefix string
}

// NewDisk returns a disk cache rooted at the given prefix.
func NewDisk(prefix string) *Disk {
	return &Disk{prefix: prefix}
}

func (d *Disk) path(key Key) string {
	return file.Join(d.prefix, key.Func, key.Fingerprint)
}

// Get implements Cache. Lookup errors other than nonexistence are
// returned to the caller; a missing file is a plain miss.
func (d *Disk) Get(ctx context.Context, key Key) (Entry, bool, error) {
	path := d.path(key)
	info, err := file.Stat(ctx, path)
	if err != nil {
		if errors.Is(errors.NotExist, err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, errors.E(err, fmt.Sprintf("cache get %s/%s", key.Func, key.Fingerprint))
	}
	f, err := file.Open(ctx, path)
	if err != nil {
		if errors.Is(errors.NotExist, err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, errors.E(err, fmt.Sprintf("cache get %s/%s", key.Func, key.Fingerprint))
	}
	zr, err := zstd.NewReader(f.Reader(ctx))
	if err != nil {
		f.Close(ctx)
		return Entry{}, false, errors.E(err, fmt.Sprintf("cache get (zstd) %s/%s", key.Func, key.Fingerprint))
	}
	var value interface{}
	err = gob.NewDecoder(zr).Decode(&value)
	if closeErr := zr.Close(); err == nil {
		err = closeErr
	}
	if closeErr := f.Close(ctx); err == nil {
		err = closeErr
	}
	if err != nil {
		return Entry{}, false, errors.E(errors.Invalid, err,
			fmt.Sprintf("cache get (decode) %s/%s", key.Func, key.Fingerprint))
	}
	return Entry{Value: value, Time: info.ModTime(), Size: info.Size()}, true, nil
}

// Put implements Cache. Concurrent Puts of the same key are
// permitted; the last completed write wins.
func (d *Disk) Put(ctx context.Context, key Key, value interface{}) error {
	f, err := file.Create(ctx, d.path(key))
	if err != nil {
		return errors.E(err, fmt.Sprintf("cache put %s/%s", key.Func, key.Fingerprint))
	}
	cw := &countingWriter{w: f.Writer(ctx)}
	zw, err := zstd.NewWriter(cw)
	if err != nil {
		f.Discard(ctx)
		return errors.E(err, fmt.Sprintf("cache put (zstd) %s/%s", key.Func, key.Fingerprint))
	}
	if err = gob.NewEncoder(zw).Encode(&value); err != nil {
		zw.Close()
		f.Discard(ctx)
		return errors.E(errors.Invalid, err, fmt.Sprintf("cache put (encode) %s/%s", key.Func, key.Fingerprint))
	}
	if err = zw.Close(); err != nil {
		f.Discard(ctx)
		return errors.E(err, fmt.Sprintf("cache put (zstd) %s/%s", key.Func, key.Fingerprint))
	}
	if err = f.Close(ctx); err != nil {
		return errors.E(err, fmt.Sprintf("cache put %s/%s", key.Func, key.Fingerprint))
	}
	log.Debug.Printf("cache: stored %s/%s (%s)", key.Func, key.Fingerprint, data.Size(cw.n))
	return nil
}

// Clear implements Cache. Entry removal is parallelized since the
// prefix may name a remote store with high per-operation latency.
func (d *Disk) Clear(ctx context.Context, fn string) error {
	prefix := d.prefix
	if fn != "" {
		prefix = file.Join(d.prefix, fn)
	}
	lister := file.List(ctx, prefix, true)
	var paths []string
	for lister.Scan() {
		if lister.IsDir() {
			continue
		}
		paths = append(paths, lister.Path())
	}
	if err := lister.Err(); err != nil {
		if errors.Is(errors.NotExist, err) {
			return nil
		}
		return errors.E(err, fmt.Sprintf("cache clear %s", prefix))
	}
	return traverse.Limit(10*runtime.NumCPU()).Each(len(paths), func(i int) error {
		return file.Remove(ctx, paths[i])
	})
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
