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

type fakeData struct {
	buf []byte
}

func (f *fakeData) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, f.buf[off:])
	return n, nil
}

func TestResolveRead_LatestExtentWins(t *testing.T) {
	data := &fakeData{buf: []byte("AAAABBBB")}
	in := &Inode{
		Size: 8,
		Extents: []Extent{
			{LogicalOffset: 0, Length: 8, DataOffset: 0}, // "AAAABBBB"
			{LogicalOffset: 2, Length: 2, DataOffset: 4}, // overlapping write of "BB" at offset 2
		},
	}
	buf := make([]byte, 8)
	n, err := ResolveRead(data, in, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "AABBBBBB", string(buf))
}

func TestResolveRead_ClampsToSize(t *testing.T) {
	data := &fakeData{buf: []byte("0123456789")}
	in := &Inode{Size: 4, Extents: []Extent{{LogicalOffset: 0, Length: 4, DataOffset: 0}}}

	buf := make([]byte, 10)
	n, err := ResolveRead(data, in, 2, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "23", string(buf[:n]))
}

func TestResolveRead_OffsetBeyondEOF(t *testing.T) {
	data := &fakeData{buf: []byte("0123")}
	in := &Inode{Size: 4, Extents: []Extent{{LogicalOffset: 0, Length: 4, DataOffset: 0}}}

	buf := make([]byte, 4)
	n, err := ResolveRead(data, in, 100, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestResolveRead_GapReadsAsZero(t *testing.T) {
	data := &fakeData{buf: []byte("XXXX")}
	in := &Inode{Size: 8, Extents: []Extent{{LogicalOffset: 4, Length: 4, DataOffset: 0}}}

	buf := make([]byte, 8) // caller pre-zeroes, as the engine does
	n, err := ResolveRead(data, in, 0, buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte{0, 0, 0, 0, 'X', 'X', 'X', 'X'}, buf)
}

func TestTruncate_DropsTailExtents(t *testing.T) {
	in := &Inode{
		Extents: []Extent{
			{LogicalOffset: 0, Length: 10, DataOffset: 0},
			{LogicalOffset: 10, Length: 10, DataOffset: 10},
			{LogicalOffset: 20, Length: 10, DataOffset: 20},
		},
	}
	Truncate(in, 15)
	require.Len(t, in.Extents, 2)
	assert.Equal(t, int64(0), in.Extents[0].LogicalOffset)
	assert.Equal(t, int64(10), in.Extents[0].Length)
	assert.Equal(t, int64(10), in.Extents[1].LogicalOffset)
	assert.Equal(t, int64(5), in.Extents[1].Length, "straddling extent must be shortened")
}

func TestTruncate_DropsEverythingAfterFirstOffendingExtent(t *testing.T) {
	// An overwrite that landed before the cut point but was appended
	// after an extent beyond it is dropped with the tail.
	in := &Inode{
		Extents: []Extent{
			{LogicalOffset: 10, Length: 5, DataOffset: 0},
			{LogicalOffset: 0, Length: 8, DataOffset: 5},
		},
	}
	Truncate(in, 5)
	assert.Empty(t, in.Extents)
}

func TestTruncate_ToZero(t *testing.T) {
	in := &Inode{Extents: []Extent{{LogicalOffset: 0, Length: 10, DataOffset: 0}}}
	Truncate(in, 0)
	assert.Empty(t, in.Extents)
}
