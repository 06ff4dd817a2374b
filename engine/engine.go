// Copyright 2026 The Append-FS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine implements the operation surface a kernel-facing
// adapter calls into: the namespace and file operations over one
// backing directory. It owns the metadata log, the data segment, the
// in-memory namespace/inode store, and every open handle, all behind a
// single engine-wide mutex taken in shared mode by read-only
// operations and exclusively by anything that appends to the log or
// mutates the store.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"

	"github.com/htbegin/append-fs/internal/config"
	"github.com/htbegin/append-fs/internal/handle"
	"github.com/htbegin/append-fs/internal/logger"
	"github.com/htbegin/append-fs/internal/metrics"
	"github.com/htbegin/append-fs/internal/replay"
	"github.com/htbegin/append-fs/internal/segment"
	"github.com/htbegin/append-fs/internal/store"
)

// HandleID identifies an open file handle returned by Open.
type HandleID uint64

// Engine is a mounted instance of the storage engine against one backing
// directory. The zero value is not usable; construct with Open.
type Engine struct {
	mu sync.RWMutex

	root string
	data *segment.Segment
	log  *segment.Segment

	store   *store.Store
	clock   timeutil.Clock
	metrics *metrics.Registry
	opts    config.Options

	handles map[HandleID]*handle.Handle
	nextHID HandleID

	replayApplied int
	replaySkipped int
}

// Option customises Open beyond what config.Options carries.
type Option func(*Engine)

// WithClock overrides the default real clock, for tests.
func WithClock(c timeutil.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMetrics overrides the default no-op metrics registry.
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = m }
}

// Open mounts the engine against root, creating the backing directory and
// its data/meta files if absent, then replaying the metadata log to
// rebuild the namespace.
func Open(root string, opts config.Options, options ...Option) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.ExitOnInvariantViolation {
		// Arms the per-handle invariant mutexes: a violated invariant
		// panics at the next lock boundary instead of going unnoticed.
		syncutil.EnableInvariantChecking()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create backing directory %s: %w", root, err)
	}

	dataPath := filepath.Join(root, "data")
	logPath := filepath.Join(root, "meta")

	data, err := segment.Open(dataPath)
	if err != nil {
		return nil, err
	}
	log, err := segment.Open(logPath)
	if err != nil {
		data.Close()
		return nil, err
	}

	e := &Engine{
		root:    root,
		data:    data,
		log:     log,
		store:   store.New(),
		clock:   timeutil.RealClock(),
		metrics: metrics.NewNoop(),
		opts:    opts,
		handles: make(map[HandleID]*handle.Handle),
	}
	for _, opt := range options {
		opt(e)
	}

	applied, skipped, err := replay.Run(e.log, e.store, e.metrics, replay.Options{
		StopOnFirstCorruptRecord: opts.ReplayStopOnFirstCorruptRecord,
	})
	if err != nil {
		e.data.Close()
		e.log.Close()
		return nil, fmt.Errorf("engine: replay: %w", err)
	}
	e.replayApplied, e.replaySkipped = applied, skipped
	logger.Infof("engine: mounted %s (%d records applied, %d skipped)", root, applied, skipped)

	// Root is never logged; it exists implicitly in every mount.
	if _, ok := e.store.LookupByPath("/"); !ok {
		now := e.clock.Now().Unix()
		e.store.Insert(&store.Inode{
			ID:    e.store.AllocateID(),
			Path:  "/",
			Mode:  store.ModeDir | 0o755,
			Ctime: now,
			Mtime: now,
			Atime: now,
		})
	}

	return e, nil
}

// Close releases the engine's file descriptors. The caller must release
// all open handles first; a handle must never outlive its engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	if err := e.data.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := e.log.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Options returns the engine's current option values.
func (e *Engine) Options() config.Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.opts
}

// SetWriteBufferSize updates the buffer capacity used for handles opened
// from now on; it rejects values below the 4 KiB minimum with EINVAL.
// Already-open handles keep their existing capacity.
func (e *Engine) SetWriteBufferSize(n int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n < config.MinWriteBufferSize {
		return newErr("set_option", "write_buffer_size", EINVAL)
	}
	e.opts.WriteBufferSize = config.ByteSize(n)
	return nil
}

// ReplayStats reports how many records were applied/skipped during the
// mount-time replay, for diagnostics (e.g. cmd/appendfsck).
func (e *Engine) ReplayStats() (applied, skipped int) {
	return e.replayApplied, e.replaySkipped
}

func (e *Engine) allocateHandleID() HandleID {
	e.nextHID++
	return e.nextHID
}

func (e *Engine) deps() handle.Deps {
	return handle.Deps{Data: e.data, Log: e.log, Clock: e.clock, Metrics: e.metrics}
}
