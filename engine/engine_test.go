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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htbegin/append-fs/internal/config"
)

func openEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(t.TempDir(), config.Defaults())
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestOpen_BootstrapsRoot(t *testing.T) {
	e := openEngine(t)
	info, err := e.Stat("/")
	require.NoError(t, err)
	assert.NotZero(t, info.Mode)
}

func TestCreate_RejectsDuplicateAndMissingParent(t *testing.T) {
	e := openEngine(t)
	_, err := e.Create("/a", 0o644)
	require.NoError(t, err)

	_, err = e.Create("/a", 0o644)
	assert.Equal(t, EEXIST, Errno(err))

	_, err = e.Create("/no-such-dir/x", 0o644)
	assert.Equal(t, ENOENT, Errno(err))
}

func TestMkdirRmdir_EnforcesEmptiness(t *testing.T) {
	e := openEngine(t)
	_, err := e.Mkdir("/d", 0o755)
	require.NoError(t, err)
	_, err = e.Create("/d/f", 0o644)
	require.NoError(t, err)

	err = e.Rmdir("/d")
	assert.Equal(t, ENOTEMPTY, Errno(err))

	require.NoError(t, e.Unlink("/d/f"))
	require.NoError(t, e.Rmdir("/d"))

	_, err = e.Stat("/d")
	assert.Equal(t, ENOENT, Errno(err))
}

func TestWriteReadRoundTrip(t *testing.T) {
	e := openEngine(t)
	_, err := e.Create("/f", 0o644)
	require.NoError(t, err)

	hid, _, err := e.OpenFile("/f", 0, 0o644)
	require.NoError(t, err)

	n, err := e.Write(hid, []byte("hello world"), 0)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	require.NoError(t, e.Flush(hid))

	buf, err := e.Read("/f", 11, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(buf))

	require.NoError(t, e.Release(hid))
}

func TestWrite_OverlappingExtentLatestWins(t *testing.T) {
	e := openEngine(t)
	_, err := e.Create("/f", 0o644)
	require.NoError(t, err)
	hid, _, err := e.OpenFile("/f", 0, 0o644)
	require.NoError(t, err)

	_, err = e.Write(hid, []byte("AAAAAAAA"), 0)
	require.NoError(t, err)
	require.NoError(t, e.Flush(hid))
	_, err = e.Write(hid, []byte("BB"), 2)
	require.NoError(t, err)
	require.NoError(t, e.Flush(hid))

	buf, err := e.Read("/f", 8, 0)
	require.NoError(t, err)
	assert.Equal(t, "AABBAAAA", string(buf))
}

func TestTruncate_ShrinksAndZeroFillsOnGrow(t *testing.T) {
	e := openEngine(t)
	_, err := e.Create("/f", 0o644)
	require.NoError(t, err)
	hid, _, err := e.OpenFile("/f", 0, 0o644)
	require.NoError(t, err)
	_, err = e.Write(hid, []byte("0123456789"), 0)
	require.NoError(t, err)
	require.NoError(t, e.Flush(hid))
	require.NoError(t, e.Release(hid))

	require.NoError(t, e.Truncate("/f", 4))
	buf, err := e.Read("/f", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf))

	require.NoError(t, e.Truncate("/f", 8))
	buf, err = e.Read("/f", 8, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{'0', '1', '2', '3', 0, 0, 0, 0}, buf)
}

func TestRename_MovesFileAndSubtree(t *testing.T) {
	e := openEngine(t)
	_, err := e.Mkdir("/d1", 0o755)
	require.NoError(t, err)
	_, err = e.Mkdir("/d1/sub", 0o755)
	require.NoError(t, err)
	_, err = e.Create("/d1/sub/f", 0o644)
	require.NoError(t, err)

	require.NoError(t, e.Rename("/d1", "/d2"))

	_, err = e.Stat("/d1")
	assert.Equal(t, ENOENT, Errno(err))
	_, err = e.Stat("/d2/sub/f")
	assert.NoError(t, err)
}

func TestRename_KindMismatchErrors(t *testing.T) {
	e := openEngine(t)
	_, err := e.Create("/f", 0o644)
	require.NoError(t, err)
	_, err = e.Mkdir("/d", 0o755)
	require.NoError(t, err)

	err = e.Rename("/f", "/d")
	assert.Equal(t, EISDIR, Errno(err))
}

func TestUnlinkThenCreate_RevivesInode(t *testing.T) {
	e := openEngine(t)
	info1, err := e.Create("/f", 0o644)
	require.NoError(t, err)

	hid, _, err := e.OpenFile("/f", 0, 0o644)
	require.NoError(t, err)
	_, err = e.Write(hid, []byte("x"), 0)
	require.NoError(t, err)
	require.NoError(t, e.Release(hid))

	require.NoError(t, e.Unlink("/f"))
	info2, err := e.Create("/f", 0o644)
	require.NoError(t, err)

	assert.Equal(t, info1.ID, info2.ID, "revival must reuse the deleted inode's id")
	assert.Equal(t, int64(0), info2.Size, "revival must reset size/extents")
}

func TestSymlinkReadlink(t *testing.T) {
	e := openEngine(t)
	_, err := e.Symlink("/target", "/link")
	require.NoError(t, err)

	target, err := e.Readlink("/link")
	require.NoError(t, err)
	assert.Equal(t, "/target", target)

	_, err = e.Create("/regular", 0o644)
	require.NoError(t, err)
	_, err = e.Readlink("/regular")
	assert.Equal(t, EINVAL, Errno(err))
}

func TestLink_AlwaysUnsupported(t *testing.T) {
	e := openEngine(t)
	assert.Equal(t, EOPNOTSUPP, Errno(e.Link("/a", "/b")))
}

func TestXattr_SetGetListRemove(t *testing.T) {
	e := openEngine(t)
	_, err := e.Create("/f", 0o644)
	require.NoError(t, err)

	require.NoError(t, e.SetXattr("/f", "user.a", []byte("1"), XattrNone))

	err = e.SetXattr("/f", "user.a", []byte("2"), XattrCreate)
	assert.Equal(t, EEXIST, Errno(err))

	err = e.SetXattr("/f", "user.b", []byte("x"), XattrReplace)
	assert.Equal(t, ENODATA, Errno(err))

	n, err := e.GetXattr("/f", "user.a", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.GetXattr("/f", "user.a", make([]byte, 0))
	assert.Equal(t, ERANGE, Errno(err))

	buf := make([]byte, 1)
	n, err = e.GetXattr("/f", "user.a", buf)
	require.NoError(t, err)
	assert.Equal(t, "1", string(buf[:n]))

	list, err := e.ListXattr("/f")
	require.NoError(t, err)
	assert.Equal(t, "user.a\x00", string(list))

	require.NoError(t, e.RemoveXattr("/f", "user.a"))
	err = e.RemoveXattr("/f", "user.a")
	assert.Equal(t, ENODATA, Errno(err))
}

func TestSetTimes(t *testing.T) {
	e := openEngine(t)
	_, err := e.Create("/f", 0o644)
	require.NoError(t, err)

	err = e.SetTimes("/f", TimeSpec{Value: 111}, TimeSpec{Value: 222})
	require.NoError(t, err)

	info, err := e.Stat("/f")
	require.NoError(t, err)
	assert.Equal(t, int64(111), info.Atime)
	assert.Equal(t, int64(222), info.Mtime)
}

func TestChildren_IteratesAndStopsEarly(t *testing.T) {
	e := openEngine(t)
	_, err := e.Create("/a", 0o644)
	require.NoError(t, err)
	_, err = e.Create("/b", 0o644)
	require.NoError(t, err)

	var seen []string
	err = e.Children("/", func(name string, info InodeInfo) int {
		seen = append(seen, name)
		return 1 // stop after first
	})
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}

func TestReplay_RebuildsNamespaceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	e1, err := Open(dir, config.Defaults())
	require.NoError(t, err)
	_, err = e1.Create("/f", 0o644)
	require.NoError(t, err)
	hid, _, err := e1.OpenFile("/f", 0, 0o644)
	require.NoError(t, err)
	_, err = e1.Write(hid, []byte("durable"), 0)
	require.NoError(t, err)
	require.NoError(t, e1.Release(hid))
	require.NoError(t, e1.Close())

	e2, err := Open(dir, config.Defaults())
	require.NoError(t, err)
	defer e2.Close()

	buf, err := e2.Read("/f", 7, 0)
	require.NoError(t, err)
	assert.Equal(t, "durable", string(buf))
}

func TestCheckInvariants_PassesOnHealthyTree(t *testing.T) {
	e := openEngine(t)
	_, err := e.Create("/f", 0o644)
	require.NoError(t, err)
	hid, _, err := e.OpenFile("/f", 0, 0o644)
	require.NoError(t, err)
	_, err = e.Write(hid, []byte("data"), 0)
	require.NoError(t, err)
	require.NoError(t, e.Release(hid))

	assert.NoError(t, e.CheckInvariants())
}

func TestCensus_CountsKinds(t *testing.T) {
	e := openEngine(t)
	_, err := e.Mkdir("/d", 0o755)
	require.NoError(t, err)
	_, err = e.Create("/d/f", 0o644)
	require.NoError(t, err)
	_, err = e.Symlink("/d/f", "/link")
	require.NoError(t, err)

	files, dirs, symlinks, _ := e.Census()
	assert.Equal(t, 1, files)
	assert.Equal(t, 2, dirs) // root + /d
	assert.Equal(t, 1, symlinks)
}

func TestWriteReadRoundTrip_AcrossBufferCapacity(t *testing.T) {
	dir := t.TempDir()
	e1, err := Open(dir, config.Defaults())
	require.NoError(t, err)

	_, err = e1.Mkdir("/demo", 0o755)
	require.NoError(t, err)
	_, err = e1.Create("/demo/f", 0o644)
	require.NoError(t, err)
	hid, _, err := e1.OpenFile("/demo/f", 0, 0o644)
	require.NoError(t, err)

	// Larger than one buffer, so the write crosses a capacity flush.
	total := int(config.DefaultWriteBufferSize) + 8192
	data := make([]byte, total)
	for i := range data {
		data[i] = byte(i % 256)
	}
	n, err := e1.Write(hid, data, 0)
	require.NoError(t, err)
	require.Equal(t, total, n)
	require.NoError(t, e1.Release(hid))
	require.NoError(t, e1.Close())

	e2, err := Open(dir, config.Defaults())
	require.NoError(t, err)
	defer e2.Close()

	info, err := e2.Stat("/demo/f")
	require.NoError(t, err)
	assert.Equal(t, int64(total), info.Size)

	tailOff := int64(total - 64)
	buf, err := e2.Read("/demo/f", 64, tailOff)
	require.NoError(t, err)
	assert.Equal(t, data[tailOff:], buf)
}

func TestClose_WithoutReleaseDiscardsStagedBytes(t *testing.T) {
	dir := t.TempDir()
	e1, err := Open(dir, config.Defaults())
	require.NoError(t, err)
	_, err = e1.Create("/f", 0o644)
	require.NoError(t, err)
	hid, _, err := e1.OpenFile("/f", 0, 0o644)
	require.NoError(t, err)
	_, err = e1.Write(hid, []byte("staged but never flushed"), 0)
	require.NoError(t, err)
	require.NoError(t, e1.Close()) // crash stand-in: no Release, no Flush

	e2, err := Open(dir, config.Defaults())
	require.NoError(t, err)
	defer e2.Close()

	info, err := e2.Stat("/f")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size, "bytes that never reached the log must not survive a remount")
}

func TestReopen_SkipsCorruptExtentRecord(t *testing.T) {
	dir := t.TempDir()
	e1, err := Open(dir, config.Defaults())
	require.NoError(t, err)
	_, err = e1.Create("/a", 0o644)
	require.NoError(t, err)
	hid, _, err := e1.OpenFile("/a", 0, 0o644)
	require.NoError(t, err)
	_, err = e1.Write(hid, []byte("AAAA"), 0)
	require.NoError(t, err)
	require.NoError(t, e1.Flush(hid))
	_, err = e1.Write(hid, []byte("BB"), 1)
	require.NoError(t, err)
	require.NoError(t, e1.Flush(hid))
	require.NoError(t, e1.Release(hid))
	require.NoError(t, e1.Close())

	// The second EXTENT record is the last record in the log; flipping
	// its final payload byte fails its checksum without touching anything
	// else.
	meta := filepath.Join(dir, "meta")
	raw, err := os.ReadFile(meta)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(meta, raw, 0o644))

	e2, err := Open(dir, config.Defaults())
	require.NoError(t, err)
	defer e2.Close()

	_, skipped := e2.ReplayStats()
	assert.Equal(t, 1, skipped)

	buf, err := e2.Read("/a", 4, 0)
	require.NoError(t, err)
	assert.Equal(t, "AAAA", string(buf), "only the first extent survives the corrupt record")
}

func TestSeek_FlushesAndRejectsNegative(t *testing.T) {
	e := openEngine(t)
	_, err := e.Create("/f", 0o644)
	require.NoError(t, err)
	hid, _, err := e.OpenFile("/f", 0, 0o644)
	require.NoError(t, err)

	_, err = e.Write(hid, []byte("abcd"), 0)
	require.NoError(t, err)
	require.NoError(t, e.Seek(hid, 100))

	info, err := e.Stat("/f")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size, "seeking away must flush the staged region")

	assert.Equal(t, EINVAL, Errno(e.Seek(hid, -1)))
}

func TestSetWriteBufferSize_RejectsBelowMinimum(t *testing.T) {
	e := openEngine(t)
	err := e.SetWriteBufferSize(config.MinWriteBufferSize - 1)
	assert.Equal(t, EINVAL, Errno(err))
}
