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

import (
	"fmt"
	"path"
	"strings"
)

// Store is the namespace and inode index: two lookup views (by id, by
// path) over a set of inodes that never physically shrinks during a
// mount — deletion only flags an entry and drops its path mapping.
type Store struct {
	byID   map[uint64]*Inode
	byPath map[string]uint64 // non-deleted only
	nextID uint64
}

// New returns an empty Store. Ids start at 1.
func New() *Store {
	return &Store{
		byID:   make(map[uint64]*Inode),
		byPath: make(map[string]uint64),
		nextID: 1,
	}
}

// AllocateID returns the next id and advances the counter. Ids are
// never reused.
func (s *Store) AllocateID() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

// ObserveID advances the next-id counter past id if needed, so that
// after replay the counter sits at max(observed id) + 1.
func (s *Store) ObserveID(id uint64) {
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

// NextID returns the id the next AllocateID call will hand out.
func (s *Store) NextID() uint64 { return s.nextID }

// Insert adds a brand new inode to the store, indexing it by id and (if
// not deleted) by path. Callers must ensure id is unique.
func (s *Store) Insert(in *Inode) {
	s.byID[in.ID] = in
	if !in.Deleted {
		s.byPath[in.Path] = in.ID
	}
}

// LookupByID returns the inode with the given id, including deleted
// entries — replay addresses records by id regardless of liveness.
func (s *Store) LookupByID(id uint64) (*Inode, bool) {
	in, ok := s.byID[id]
	return in, ok
}

// LookupByPath returns the non-deleted inode at the canonicalised path.
func (s *Store) LookupByPath(p string) (*Inode, bool) {
	id, ok := s.byPath[p]
	if !ok {
		return nil, false
	}
	in, ok := s.byID[id]
	return in, ok
}

// IndexPath registers p as the non-deleted path for an inode's id. Callers
// use this after mutating Inode.Path (create, revival, rename).
func (s *Store) IndexPath(p string, id uint64) {
	s.byPath[p] = id
}

// UnindexPath removes p from the path index if it still maps to id. This
// guards against a revival/rename race clobbering a newer mapping.
func (s *Store) UnindexPath(p string, id uint64) {
	if existing, ok := s.byPath[p]; ok && existing == id {
		delete(s.byPath, p)
	}
}

// Canonicalize normalises a user-supplied path: leading '/', no
// trailing '/' except root, no "." or ".." segments, no repeated
// slashes.
func Canonicalize(p string) string {
	if p == "" {
		p = "/"
	}
	cleaned := path.Clean("/" + p)
	return cleaned
}

// ParentPath returns the canonical path obtained by stripping the last
// '/'-segment. ParentPath("/") returns "" (root has no parent).
func ParentPath(p string) string {
	if p == "/" {
		return ""
	}
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

// BaseName returns the final '/'-segment of p.
func BaseName(p string) string {
	if p == "/" {
		return "/"
	}
	idx := strings.LastIndex(p, "/")
	return p[idx+1:]
}

// JoinChild builds the canonical path of a child named name directly
// under dir. Root is special-cased so "/" + "x" is "/x", not "//x".
func JoinChild(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// ChildInfo is the (name, inode) pair Children hands the caller.
type ChildInfo struct {
	Name  string
	Inode *Inode
}

// Children returns the immediate non-deleted children of dirPath: every
// inode whose path is dirPath + "/" + name with no further '/' in name.
func (s *Store) Children(dirPath string) []ChildInfo {
	var out []ChildInfo
	prefix := dirPath
	if prefix != "/" {
		prefix += "/"
	}
	for p, id := range s.byPath {
		if p == dirPath {
			continue
		}
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		out = append(out, ChildInfo{Name: rest, Inode: s.byID[id]})
	}
	return out
}

// IsEmpty reports whether dirPath has no non-deleted immediate children.
func (s *Store) IsEmpty(dirPath string) bool {
	return len(s.Children(dirPath)) == 0
}

// Descendants returns every non-deleted inode whose path has dirPath as
// a strict path-prefix, used by rename's subtree rewrite.
func (s *Store) Descendants(dirPath string) []*Inode {
	var prefix string
	if dirPath == "/" {
		prefix = "/"
	} else {
		prefix = dirPath + "/"
	}
	var out []*Inode
	for p, id := range s.byPath {
		if p == dirPath {
			continue
		}
		if strings.HasPrefix(p, prefix) {
			out = append(out, s.byID[id])
		}
	}
	return out
}

// All returns every non-deleted inode, in no particular order, for
// diagnostics (e.g. cmd/appendfsck's census).
func (s *Store) All() []*Inode {
	out := make([]*Inode, 0, len(s.byPath))
	for _, id := range s.byPath {
		out = append(out, s.byID[id])
	}
	return out
}

// FindDeleted returns a deleted inode previously located at path, if
// one exists, so create/symlink can revive it. Deleted inodes are not
// path-indexed, so this is an O(n) scan; the namespace is expected to
// stay small enough in practice for that to hold up.
func (s *Store) FindDeleted(path string) (*Inode, bool) {
	for _, in := range s.byID {
		if in.Deleted && in.Path == path {
			return in, true
		}
	}
	return nil, false
}

// CheckInvariants panics on the first structural violation found:
// duplicated live paths, a live inode without a live directory parent,
// an extent out of the data segment's bounds or with non-positive
// length, a size below the extent coverage, or a next-id counter at or
// below the max observed id. It is a test/debug hook, not a per-call
// guard.
func (s *Store) CheckInvariants(dataSegmentLen int64) {
	seenPath := make(map[string]uint64)
	for id, in := range s.byID {
		if in.ID != id {
			panic(fmt.Sprintf("store: id index mismatch: key %d, inode.ID %d", id, in.ID))
		}
		if !in.Deleted {
			if other, ok := seenPath[in.Path]; ok {
				panic(fmt.Sprintf("store: path %q used by both id %d and id %d", in.Path, other, in.ID))
			}
			seenPath[in.Path] = in.ID

			if in.Path != "/" {
				parent := ParentPath(in.Path)
				p, ok := s.LookupByPath(parent)
				if !ok || p.Deleted || !p.IsDir() {
					panic(fmt.Sprintf("store: inode %d at %q has no valid parent directory %q", in.ID, in.Path, parent))
				}
			}
		}
		if in.IsRegular() {
			var maxEnd int64
			for _, e := range in.Extents {
				if e.Length <= 0 {
					panic(fmt.Sprintf("store: inode %d has non-positive extent length %d", in.ID, e.Length))
				}
				if e.DataOffset+e.Length > dataSegmentLen {
					panic(fmt.Sprintf("store: inode %d extent (%d,%d,%d) exceeds data segment length %d", in.ID, e.LogicalOffset, e.Length, e.DataOffset, dataSegmentLen))
				}
				if e.LogicalOffset < 0 {
					panic(fmt.Sprintf("store: inode %d has negative logical offset", in.ID))
				}
				if e.End() > maxEnd {
					maxEnd = e.End()
				}
			}
			if len(in.Extents) > 0 && in.Size < maxEnd {
				panic(fmt.Sprintf("store: inode %d size %d is less than extent coverage %d", in.ID, in.Size, maxEnd))
			}
		}
	}
	if len(s.byID) > 0 {
		var maxID uint64
		for id := range s.byID {
			if id > maxID {
				maxID = id
			}
		}
		if s.nextID <= maxID {
			panic(fmt.Sprintf("store: next id %d is not greater than max observed id %d", s.nextID, maxID))
		}
	}
}
