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

package store

// DataReader is the narrow interface the extent resolver needs from the
// data segment: a positioned read. package segment's Segment satisfies it.
type DataReader interface {
	ReadAt(p []byte, off int64) (int, error)
}

// ResolveRead clamps [offset, offset+len(buf)) to [0, in.Size), then
// walks extents in insertion order, each later extent's contribution
// overwriting any earlier one already written into buf over the
// overlapping range. The walk must not skip overlapping earlier reads:
// the overwrite IS the latest-wins semantics. Bytes not covered by any
// extent are left as whatever buf already contained, so callers must
// pre-zero buf (the engine does) to make holes read as zero. Returns
// the number of leading bytes of buf that fall within [0, in.Size).
func ResolveRead(data DataReader, in *Inode, offset int64, buf []byte) (int, error) {
	size := in.Size
	if offset >= size || offset < 0 || len(buf) == 0 {
		return 0, nil
	}
	end := offset + int64(len(buf))
	if end > size {
		end = size
	}
	n := int(end - offset)
	if n <= 0 {
		return 0, nil
	}
	window := buf[:n]

	for _, e := range in.Extents {
		extEnd := e.End()
		start := offset
		if e.LogicalOffset > start {
			start = e.LogicalOffset
		}
		stop := end
		if extEnd < stop {
			stop = extEnd
		}
		if start >= stop {
			continue
		}
		length := stop - start
		dataOff := e.DataOffset + (start - e.LogicalOffset)
		dst := window[start-offset : start-offset+length]
		if _, err := data.ReadAt(dst, dataOff); err != nil {
			return 0, err
		}
	}

	return n, nil
}

// Truncate walks the extent list in insertion order and drops the tail
// starting at the first extent whose logical offset is >= newSize;
// retained extents that straddle newSize are shortened to end there. It
// mutates in.Extents in place and does not touch in.Size; the caller
// sets that (and emits the TRUNCATE record) afterward.
func Truncate(in *Inode, newSize int64) {
	kept := in.Extents
	for i, e := range in.Extents {
		if e.LogicalOffset >= newSize {
			kept = in.Extents[:i]
			break
		}
	}
	for i := range kept {
		if kept[i].End() > newSize {
			kept[i].Length = newSize - kept[i].LogicalOffset
		}
	}
	in.Extents = kept
}
