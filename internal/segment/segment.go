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

// Package segment implements the two on-disk append-only byte streams:
// the data segment (raw file content, addressed by absolute offset) and
// the metadata log (packages record/replay frame records on top of it).
// Both share identical durability and append semantics, so one Segment
// type backs both <root>/data and <root>/meta.
package segment

import (
	"fmt"
	"os"
)

// Segment is an append-only file opened read-write, created if absent.
// The length is tracked in memory alongside the file so appends and
// rollbacks don't stat on the hot path.
type Segment struct {
	f    *os.File
	path string
	size int64
}

// Open opens (creating if absent) the segment file at path. The append
// cursor starts at the file's current length.
func Open(path string) (*Segment, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("segment: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("segment: stat %s: %w", path, err)
	}
	return &Segment{f: f, path: path, size: info.Size()}, nil
}

// Len returns the current length of the segment.
func (s *Segment) Len() int64 { return s.size }

// Append writes p at the current end of the segment and returns the
// offset at which it was written. It is the only way the segment grows.
func (s *Segment) Append(p []byte) (offset int64, err error) {
	offset = s.size
	n, err := s.f.WriteAt(p, offset)
	s.size += int64(n)
	if err != nil {
		return offset, fmt.Errorf("segment: append to %s: %w", s.path, err)
	}
	return offset, nil
}

// ReadAt reads into p starting at the absolute offset off, with
// io.ReaderAt semantics.
func (s *Segment) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

// TruncateTo shortens the segment back to length, used by the write
// path to roll back a data append when the paired log append fails.
// length must not exceed the current length.
func (s *Segment) TruncateTo(length int64) error {
	if err := s.f.Truncate(length); err != nil {
		return fmt.Errorf("segment: truncate %s to %d: %w", s.path, length, err)
	}
	s.size = length
	return nil
}

// Sync pushes buffered kernel state for the segment to stable storage.
func (s *Segment) Sync() error {
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("segment: sync %s: %w", s.path, err)
	}
	return nil
}

// Close releases the underlying file descriptor.
func (s *Segment) Close() error {
	return s.f.Close()
}

// SeekReader returns an io.Reader positioned at offset 0, for the
// replay engine's single linear pass over the metadata log.
func (s *Segment) SeekReader() (*SectionReader, error) {
	return &SectionReader{seg: s}, nil
}

// SectionReader reads a Segment sequentially from the start, independent
// of any concurrent Append (which only ever grows the file past this
// reader's cursor).
type SectionReader struct {
	seg *Segment
	pos int64
}

func (r *SectionReader) Read(p []byte) (int, error) {
	n, err := r.seg.ReadAt(p, r.pos)
	r.pos += int64(n)
	return n, err
}
