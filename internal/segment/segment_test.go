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

package segment

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_AppendAndReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	off1, err := s.Append([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), off1)

	off2, err := s.Append([]byte("world"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), off2)

	assert.Equal(t, int64(10), s.Len())

	buf := make([]byte, 5)
	_, err = s.ReadAt(buf, off2)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf))
}

func TestSegment_ReopenPreservesLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Append([]byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, s.Sync())
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, int64(len("persisted")), s2.Len())
}

func TestSegment_TruncateTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append([]byte("0123456789"))
	require.NoError(t, err)

	require.NoError(t, s.TruncateTo(4))
	assert.Equal(t, int64(4), s.Len())

	buf := make([]byte, 4)
	_, err = s.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf))
}

func TestSegment_SectionReaderSequentialPass(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Append([]byte("abcdef"))
	require.NoError(t, err)

	r, err := s.SeekReader()
	require.NoError(t, err)

	buf := make([]byte, 3)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "abc", string(buf[:n]))

	n, err = r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "def", string(buf[:n]))

	_, err = r.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}
