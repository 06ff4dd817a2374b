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

// Package store implements the in-memory namespace and inode model that
// the metadata log materialises, plus the extent resolver the read path
// walks. It holds no locks of its own: the engine-wide lock lives one
// layer up, in package engine, and this package is the plain data
// structure it protects.
package store

// Mode bits. These mirror the standard POSIX S_IF* constants so the
// on-disk CREATE/MKDIR payload is portable across hosts regardless of
// which syscall package constants a given platform exposes.
const (
	ModeTypeMask = 0o170000
	ModeDir      = 0o040000
	ModeRegular  = 0o100000
	ModeSymlink  = 0o120000
	ModePerm     = 0o007777
)

// Extent maps a contiguous logical byte range of a file onto a
// contiguous region of the data segment. Extents are immutable after
// append, except that truncate may shorten the last retained one.
type Extent struct {
	LogicalOffset int64
	Length        int64
	DataOffset    int64
}

// End returns the exclusive logical end of the extent.
func (e Extent) End() int64 { return e.LogicalOffset + e.Length }

// Inode is the in-memory materialisation of a single file, directory,
// or symlink. Deleted inodes stay in memory (and in the id index) so
// later log records that refer to their id remain addressable.
type Inode struct {
	ID            uint64
	Path          string
	Mode          uint32
	Size          int64
	Ctime         int64
	Mtime         int64
	Atime         int64
	Deleted       bool
	SymlinkTarget string
	HasSymlink    bool
	Extents       []Extent

	// Xattrs preserve insertion order for listxattr; the slice of names
	// is the order, the map is for O(1) lookup.
	xattrNames []string
	xattrs     map[string][]byte
}

func newXattrs() (map[string][]byte, []string) {
	return make(map[string][]byte), nil
}

// IsDir reports whether the inode is a directory.
func (in *Inode) IsDir() bool { return in.Mode&ModeTypeMask == ModeDir }

// IsRegular reports whether the inode is a regular file.
func (in *Inode) IsRegular() bool { return in.Mode&ModeTypeMask == ModeRegular }

// IsSymlink reports whether the inode is a symlink.
func (in *Inode) IsSymlink() bool { return in.Mode&ModeTypeMask == ModeSymlink }

// GetXattr returns the value for name and whether it is present.
func (in *Inode) GetXattr(name string) ([]byte, bool) {
	if in.xattrs == nil {
		return nil, false
	}
	v, ok := in.xattrs[name]
	return v, ok
}

// SetXattr inserts or replaces the value for name, preserving the
// insertion-order position of an existing name.
func (in *Inode) SetXattr(name string, value []byte) {
	if in.xattrs == nil {
		in.xattrs, in.xattrNames = newXattrs()
	}
	if _, exists := in.xattrs[name]; !exists {
		in.xattrNames = append(in.xattrNames, name)
	}
	in.xattrs[name] = value
}

// RemoveXattr removes name if present, returning whether it was present.
func (in *Inode) RemoveXattr(name string) bool {
	if in.xattrs == nil {
		return false
	}
	if _, ok := in.xattrs[name]; !ok {
		return false
	}
	delete(in.xattrs, name)
	for i, n := range in.xattrNames {
		if n == name {
			in.xattrNames = append(in.xattrNames[:i], in.xattrNames[i+1:]...)
			break
		}
	}
	return true
}

// ListXattr returns the xattr names in insertion order.
func (in *Inode) ListXattr() []string {
	out := make([]string, len(in.xattrNames))
	copy(out, in.xattrNames)
	return out
}

// ResetForRevival clears everything a CREATE/MKDIR revival must clear:
// extents, xattrs, symlink target. Path, mode, size and times are set
// by the caller afterward.
func (in *Inode) ResetForRevival() {
	in.Extents = nil
	in.xattrs = nil
	in.xattrNames = nil
	in.SymlinkTarget = ""
	in.HasSymlink = false
	in.Deleted = false
}
