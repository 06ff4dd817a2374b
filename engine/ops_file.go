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

package engine

import (
	"os"

	"github.com/htbegin/append-fs/internal/config"
	"github.com/htbegin/append-fs/internal/handle"
	"github.com/htbegin/append-fs/internal/record"
	"github.com/htbegin/append-fs/internal/store"
)

// Open flags reuse the standard library's os.O_* bits, since the adapter
// already has to translate kernel open flags into some concrete
// representation and os's are the idiomatic Go choice.
const (
	OCreat  = os.O_CREATE
	OTrunc  = os.O_TRUNC
	OAppend = os.O_APPEND
	OExcl   = os.O_EXCL
)

// OpenFile opens path and returns a handle for Write/Flush/Fsync. With
// OCreat an absent path is created first; OTrunc truncates to zero
// before the handle is allocated; OAppend starts the position at the
// current size. Directories cannot be opened.
func (e *Engine) OpenFile(path string, flags int, mode uint32) (HandleID, InodeInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path = store.Canonicalize(path)

	in, ok := e.store.LookupByPath(path)
	if !ok {
		if flags&OCreat == 0 {
			return 0, InodeInfo{}, newErr("open", path, ENOENT)
		}
		if _, err := e.createLocked("open", path, (mode&store.ModePerm)|store.ModeRegular); err != nil {
			return 0, InodeInfo{}, err
		}
		in, _ = e.store.LookupByPath(path)
	} else if flags&OCreat != 0 && flags&OExcl != 0 {
		return 0, InodeInfo{}, newErr("open", path, EEXIST)
	}

	if in.IsDir() {
		return 0, InodeInfo{}, newErr("open", path, EISDIR)
	}

	if flags&OTrunc != 0 {
		if err := e.truncateLocked(in, 0); err != nil {
			return 0, InodeInfo{}, err
		}
	}

	pos := int64(0)
	if flags&OAppend != 0 {
		pos = in.Size
	}

	capacity := int(e.opts.WriteBufferSize)
	h := handle.New(in, capacity, config.MinFlushGranularity, flags, pos)
	hid := e.allocateHandleID()
	e.handles[hid] = h
	e.metrics.OpenHandles.Inc()

	return hid, infoOf(in), nil
}

func (e *Engine) lookupHandle(op string, hid HandleID) (*handle.Handle, error) {
	h, ok := e.handles[hid]
	if !ok {
		return nil, newErr(op, "", EINVAL)
	}
	return h, nil
}

// Read returns up to size bytes of path starting at offset. It resolves
// against the inode's current extent list, which only reflects flushed
// data: bytes still staged in an open handle's buffer are invisible
// until that handle flushes. Takes the exclusive lock because a
// successful read stamps atime.
func (e *Engine) Read(path string, size int, offset int64) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	path = store.Canonicalize(path)

	in, ok := e.store.LookupByPath(path)
	if !ok {
		return nil, newErr("read", path, ENOENT)
	}
	if in.IsDir() {
		return nil, newErr("read", path, EISDIR)
	}

	buf := make([]byte, size)
	n, err := store.ResolveRead(e.data, in, offset, buf)
	if err != nil {
		return nil, wrapErr("read", path, EIO, err)
	}
	in.Atime = e.clock.Now().Unix()
	return buf[:n], nil
}

// Write stages data at offset through the handle's write buffer; the
// buffer decides when the staged bytes actually reach the data segment.
func (e *Engine) Write(hid HandleID, data []byte, offset int64) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, err := e.lookupHandle("write", hid)
	if err != nil {
		return 0, err
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	n, werr := h.Write(e.deps(), offset, data)
	if werr != nil {
		return n, wrapErr("write", h.Inode.Path, EIO, werr)
	}
	return n, nil
}

// Flush forces the handle's staged bytes out to the data segment and
// the log.
func (e *Engine) Flush(hid HandleID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, err := e.lookupHandle("flush", hid)
	if err != nil {
		return err
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	if err := h.Flush(e.deps()); err != nil {
		return wrapErr("flush", h.Inode.Path, EIO, err)
	}
	return nil
}

// Seek moves the handle's file position. Seeking away from the staged
// region flushes first so the buffer stays contiguous.
func (e *Engine) Seek(hid HandleID, pos int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, err := e.lookupHandle("seek", hid)
	if err != nil {
		return err
	}
	if pos < 0 {
		return newErr("seek", h.Inode.Path, EINVAL)
	}
	h.Mu.Lock()
	defer h.Mu.Unlock()
	if err := h.Seek(e.deps(), pos); err != nil {
		return wrapErr("seek", h.Inode.Path, EIO, err)
	}
	return nil
}

// Release closes the handle. Close implies flush: staged bytes are
// written out before the handle is discarded.
func (e *Engine) Release(hid HandleID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.handles[hid]
	if !ok {
		return newErr("release", "", EINVAL)
	}
	h.Mu.Lock()
	err := h.Flush(e.deps())
	h.Mu.Unlock()
	delete(e.handles, hid)
	e.metrics.OpenHandles.Dec()
	if err != nil {
		return wrapErr("release", h.Inode.Path, EIO, err)
	}
	return nil
}

// Fsync flushes the handle buffer and pushes the data segment to stable
// storage; unless datasync is requested it also syncs the metadata log.
func (e *Engine) Fsync(hid HandleID, datasync bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, err := e.lookupHandle("fsync", hid)
	if err != nil {
		return err
	}
	h.Mu.Lock()
	ferr := h.Flush(e.deps())
	h.Mu.Unlock()
	if ferr != nil {
		return wrapErr("fsync", h.Inode.Path, EIO, ferr)
	}
	if err := e.data.Sync(); err != nil {
		return wrapErr("fsync", h.Inode.Path, EIO, err)
	}
	if !datasync {
		if err := e.log.Sync(); err != nil {
			return wrapErr("fsync", h.Inode.Path, EIO, err)
		}
	}
	return nil
}

// FsyncDir syncs the metadata log only: directory-structure mutations
// are log entries, never data-segment bytes.
func (e *Engine) FsyncDir(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.log.Sync(); err != nil {
		return wrapErr("fsyncdir", path, EIO, err)
	}
	return nil
}

// Truncate sets path's size to size, dropping or shortening extents past
// the new end. Data-segment space is not reclaimed.
func (e *Engine) Truncate(path string, size int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	path = store.Canonicalize(path)

	if size < 0 {
		return newErr("truncate", path, EINVAL)
	}
	in, ok := e.store.LookupByPath(path)
	if !ok {
		return newErr("truncate", path, ENOENT)
	}
	if !in.IsRegular() && !in.IsSymlink() {
		return newErr("truncate", path, EINVAL)
	}

	// Any handle open on this inode must flush first, or staged bytes
	// could resurface past the new end after the truncation.
	for _, h := range e.handles {
		if h.Inode == in {
			h.Mu.Lock()
			err := h.Flush(e.deps())
			h.Mu.Unlock()
			if err != nil {
				return wrapErr("truncate", path, EIO, err)
			}
		}
	}

	return e.truncateLocked(in, size)
}

// truncateLocked applies the truncation walk to the extent list and
// emits the TRUNCATE record. Caller must hold e.mu exclusively.
func (e *Engine) truncateLocked(in *store.Inode, size int64) error {
	priorSize := in.Size
	priorExtents := append([]store.Extent(nil), in.Extents...)

	store.Truncate(in, size)
	in.Size = size

	rec := record.EncodeTruncate(record.TruncatePayload{ID: in.ID, NewSize: uint64(size)})
	if err := e.appendRecord(rec); err != nil {
		in.Size = priorSize
		in.Extents = priorExtents
		return wrapErr("truncate", in.Path, EIO, err)
	}
	return nil
}
