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

// Package handle implements the per-open-file write buffer and flush
// pipeline: the staging buffer that coalesces client writes into
// data-segment appends while keeping metadata/data ordering intact.
package handle

import (
	"fmt"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"

	"github.com/htbegin/append-fs/internal/metrics"
	"github.com/htbegin/append-fs/internal/record"
	"github.com/htbegin/append-fs/internal/segment"
	"github.com/htbegin/append-fs/internal/store"
)

// Deps bundles the collaborators a flush needs. The caller (package
// engine) holds the engine-wide exclusive lock for the duration of any
// call into this package.
type Deps struct {
	Data    *segment.Segment
	Log     *segment.Segment
	Clock   timeutil.Clock
	Metrics *metrics.Registry
}

// Handle is an open-file handle: a non-owning reference to its inode
// plus a contiguous staging buffer. It is created by open and destroyed
// by close; close implies flush.
type Handle struct {
	// Mu guards the staging buffer. Holders get the handle invariants
	// checked at lock boundaries when invariant checking is enabled.
	Mu syncutil.InvariantMutex

	Inode    *store.Inode
	Flags    int
	Pos      int64
	Capacity int

	// minFlush is the floor below which a background periodic flush must
	// not trigger. With the default sizes the live trigger is simply
	// "buffer full"; there is no background flusher today.
	minFlush int

	bufferOffset int64
	buffered     []byte
}

// New creates a handle over in with the given buffer capacity and
// minimum flush granularity.
func New(in *store.Inode, capacity, minFlush int, flags int, pos int64) *Handle {
	h := &Handle{
		Inode:    in,
		Flags:    flags,
		Pos:      pos,
		Capacity: capacity,
		minFlush: minFlush,
	}
	h.Mu = syncutil.NewInvariantMutex(h.checkInvariants)
	return h
}

func (h *Handle) checkInvariants() {
	if len(h.buffered) > h.Capacity {
		panic(fmt.Sprintf("handle: buffered %d bytes exceeds capacity %d", len(h.buffered), h.Capacity))
	}
	if h.bufferOffset < 0 {
		panic("handle: negative buffer offset")
	}
}

// Buffered reports how many bytes are currently staged and unflushed.
func (h *Handle) Buffered() int { return len(h.buffered) }

// BufferOffset reports the logical offset of the first staged byte. Only
// meaningful when Buffered() > 0.
func (h *Handle) BufferOffset() int64 { return h.bufferOffset }

// Write stages data at offset. A write that is not contiguous with the
// buffered region flushes first; a write larger than the remaining
// capacity is copied in bounded chunks, flushing and restarting the
// buffer between them.
func (h *Handle) Write(deps Deps, offset int64, data []byte) (int, error) {
	written := 0
	for len(data) > 0 {
		// Append-contiguous rule: flush first if this write doesn't extend
		// the buffered region.
		if len(h.buffered) > 0 && offset != h.bufferOffset+int64(len(h.buffered)) {
			if err := h.Flush(deps); err != nil {
				return written, err
			}
		}
		if len(h.buffered) == 0 {
			h.bufferOffset = offset
		}

		remaining := h.Capacity - len(h.buffered)
		n := len(data)
		if n > remaining {
			n = remaining
		}
		h.buffered = append(h.buffered, data[:n]...)
		data = data[n:]
		offset += int64(n)
		written += n

		// Post-copy trigger: flush once the buffer is both at capacity
		// and at least the minimum flush granularity. With the default
		// sizes this reduces to "flush when full".
		if len(h.buffered) >= h.Capacity && len(h.buffered) >= h.minFlush {
			if err := h.Flush(deps); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush writes the staged bytes out as one atomic unit: append to the
// data segment, append a matching extent to the inode and an EXTENT
// record to the log, reset the buffer. On a log-append failure after
// the data append has already succeeded, it rolls the data segment back
// to its prior length and leaves the inode untouched.
func (h *Handle) Flush(deps Deps) error {
	if len(h.buffered) == 0 {
		return nil
	}

	priorDataLen := deps.Data.Len()
	dataOffset, err := deps.Data.Append(h.buffered)
	if err != nil {
		return fmt.Errorf("handle: flush: append data: %w", err)
	}

	length := int64(len(h.buffered))
	newSize := h.bufferOffset + length
	if newSize < h.Inode.Size {
		newSize = h.Inode.Size
	}
	priorSize := h.Inode.Size
	priorMtime := h.Inode.Mtime

	ext := store.Extent{LogicalOffset: h.bufferOffset, Length: length, DataOffset: dataOffset}
	h.Inode.Extents = append(h.Inode.Extents, ext)
	h.Inode.Size = newSize
	now := deps.Clock.Now().Unix()
	h.Inode.Mtime = now

	rec := record.EncodeExtent(record.ExtentPayload{
		ID:            h.Inode.ID,
		LogicalOffset: uint64(ext.LogicalOffset),
		DataOffset:    uint64(ext.DataOffset),
		Length:        uint32(ext.Length),
		NewSize:       uint64(newSize),
	})
	if _, err := deps.Log.Append(record.Marshal(rec)); err != nil {
		// Roll back: drop the just-added extent, restore size/mtime, and
		// truncate the data segment back to its length before this flush.
		h.Inode.Extents = h.Inode.Extents[:len(h.Inode.Extents)-1]
		h.Inode.Size = priorSize
		h.Inode.Mtime = priorMtime
		if terr := deps.Data.TruncateTo(priorDataLen); terr != nil {
			return fmt.Errorf("handle: flush: append log record: %w (rollback also failed: %v)", err, terr)
		}
		deps.Metrics.FlushRollbacks.Inc()
		return fmt.Errorf("handle: flush: append log record: %w", err)
	}

	deps.Metrics.Flushes.Inc()
	deps.Metrics.FlushBytes.Add(float64(length))

	h.buffered = h.buffered[:0]
	h.bufferOffset = 0
	return nil
}

// Seek updates the handle's position, flushing first if the new
// position would leave the buffer non-contiguous.
func (h *Handle) Seek(deps Deps, newPos int64) error {
	if len(h.buffered) > 0 && newPos != h.bufferOffset+int64(len(h.buffered)) {
		if err := h.Flush(deps); err != nil {
			return err
		}
	}
	h.Pos = newPos
	return nil
}
