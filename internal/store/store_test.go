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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkdirInode(s *Store, path string) *Inode {
	in := &Inode{ID: s.AllocateID(), Path: path, Mode: ModeDir | 0o755}
	s.Insert(in)
	return in
}

func TestStore_InsertLookup(t *testing.T) {
	s := New()
	root := mkdirInode(s, "/")
	in, ok := s.LookupByPath("/")
	require.True(t, ok)
	assert.Equal(t, root.ID, in.ID)

	byID, ok := s.LookupByID(root.ID)
	require.True(t, ok)
	assert.Same(t, root, byID)
}

func TestStore_AllocateIDMonotonic(t *testing.T) {
	s := New()
	a := s.AllocateID()
	b := s.AllocateID()
	assert.Less(t, a, b)
	assert.Equal(t, b+1, s.NextID())
}

func TestStore_ObserveIDAdvancesNextID(t *testing.T) {
	s := New()
	s.ObserveID(41)
	assert.Equal(t, uint64(42), s.NextID())

	s.ObserveID(5)
	assert.Equal(t, uint64(42), s.NextID(), "ObserveID must never move next_id backwards")
}

func TestStore_UnindexPathGuardsAgainstRace(t *testing.T) {
	s := New()
	mkdirInode(s, "/")
	a := &Inode{ID: s.AllocateID(), Path: "/x", Mode: ModeRegular}
	s.Insert(a)
	b := &Inode{ID: s.AllocateID(), Path: "/x-renamed"}
	s.Insert(b)
	s.IndexPath("/x", b.ID) // simulate a newer mapping taking over the path

	s.UnindexPath("/x", a.ID)
	_, ok := s.LookupByPath("/x")
	assert.True(t, ok, "unindexing a stale id must not clobber a newer mapping")
}

func TestStore_ChildrenAndIsEmpty(t *testing.T) {
	s := New()
	mkdirInode(s, "/")
	mkdirInode(s, "/a")
	f := &Inode{ID: s.AllocateID(), Path: "/a/f", Mode: ModeRegular}
	s.Insert(f)
	s.Insert(&Inode{ID: s.AllocateID(), Path: "/a/deeper/nested", Mode: ModeRegular})

	children := s.Children("/a")
	require.Len(t, children, 1)
	assert.Equal(t, "f", children[0].Name)

	assert.True(t, s.IsEmpty("/b-does-not-exist"))
	assert.False(t, s.IsEmpty("/a"))
}

func TestStore_ChildrenAtRoot(t *testing.T) {
	s := New()
	mkdirInode(s, "/")
	mkdirInode(s, "/a")
	children := s.Children("/")
	require.Len(t, children, 1)
	assert.Equal(t, "a", children[0].Name)
}

func TestStore_Descendants(t *testing.T) {
	s := New()
	mkdirInode(s, "/")
	mkdirInode(s, "/a")
	mkdirInode(s, "/a/b")
	s.Insert(&Inode{ID: s.AllocateID(), Path: "/a/b/c", Mode: ModeRegular})
	s.Insert(&Inode{ID: s.AllocateID(), Path: "/other", Mode: ModeRegular})

	desc := s.Descendants("/a")
	paths := make(map[string]bool)
	for _, d := range desc {
		paths[d.Path] = true
	}
	assert.Len(t, desc, 2)
	assert.True(t, paths["/a/b"])
	assert.True(t, paths["/a/b/c"])
	assert.False(t, paths["/other"])
}

func TestStore_FindDeleted(t *testing.T) {
	s := New()
	in := &Inode{ID: s.AllocateID(), Path: "/gone", Mode: ModeRegular, Deleted: true}
	s.Insert(in)

	found, ok := s.FindDeleted("/gone")
	require.True(t, ok)
	assert.Equal(t, in.ID, found.ID)

	_, ok = s.FindDeleted("/never-existed")
	assert.False(t, ok)
}

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"":          "/",
		"/":         "/",
		"a":         "/a",
		"/a/b":      "/a/b",
		"/a//b":     "/a/b",
		"/a/./b":    "/a/b",
		"/a/../b":   "/b",
		"/a/b/":     "/a/b",
	}
	for in, want := range cases {
		assert.Equal(t, want, Canonicalize(in), "Canonicalize(%q)", in)
	}
}

func TestParentAndBaseName(t *testing.T) {
	assert.Equal(t, "", ParentPath("/"))
	assert.Equal(t, "/", ParentPath("/a"))
	assert.Equal(t, "/a", ParentPath("/a/b"))

	assert.Equal(t, "/", BaseName("/"))
	assert.Equal(t, "a", BaseName("/a"))
	assert.Equal(t, "b", BaseName("/a/b"))
}

func TestJoinChild(t *testing.T) {
	assert.Equal(t, "/a", JoinChild("/", "a"))
	assert.Equal(t, "/a/b", JoinChild("/a", "b"))
}

func TestCheckInvariants_PanicsOnOrphanedPath(t *testing.T) {
	s := New()
	mkdirInode(s, "/")
	in := &Inode{ID: s.AllocateID(), Path: "/no-parent/child", Mode: ModeRegular}
	s.Insert(in)

	assert.Panics(t, func() { s.CheckInvariants(0) })
}

func TestCheckInvariants_OKOnWellFormedTree(t *testing.T) {
	s := New()
	mkdirInode(s, "/")
	f := &Inode{ID: s.AllocateID(), Path: "/f", Mode: ModeRegular, Size: 10,
		Extents: []Extent{{LogicalOffset: 0, Length: 10, DataOffset: 0}}}
	s.Insert(f)

	assert.NotPanics(t, func() { s.CheckInvariants(10) })
}
