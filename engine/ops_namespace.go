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
	"github.com/htbegin/append-fs/internal/record"
	"github.com/htbegin/append-fs/internal/store"
)

// InodeInfo is the attribute snapshot stat and the directory iterator
// hand back to the adapter.
type InodeInfo struct {
	ID    uint64
	Mode  uint32
	Size  int64
	Ctime int64
	Mtime int64
	Atime int64
}

func infoOf(in *store.Inode) InodeInfo {
	return InodeInfo{ID: in.ID, Mode: in.Mode, Size: in.Size, Ctime: in.Ctime, Mtime: in.Mtime, Atime: in.Atime}
}

func (e *Engine) appendRecord(rec record.Record) error {
	if _, err := e.log.Append(record.Marshal(rec)); err != nil {
		return err
	}
	e.metrics.RecordsAppended.WithLabelValues(rec.Type.String()).Inc()
	return nil
}

// resolveParent validates that the parent of path exists, is
// non-deleted, and is a directory.
func (e *Engine) resolveParent(op, p string) (*store.Inode, error) {
	parent := store.ParentPath(p)
	if parent == "" {
		return nil, nil // p is root; no parent check applies
	}
	in, ok := e.store.LookupByPath(parent)
	if !ok {
		return nil, newErr(op, p, ENOENT)
	}
	if !in.IsDir() {
		return nil, newErr(op, p, ENOTDIR)
	}
	return in, nil
}

// Create makes a new regular file at path. An existing non-deleted
// entry fails with EEXIST; a deleted entry at the same path is revived
// with its id preserved.
func (e *Engine) Create(path string, mode uint32) (InodeInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createLocked("create", path, (mode&store.ModePerm)|store.ModeRegular)
}

// Mkdir makes a new directory at path. Creating "/" is rejected.
func (e *Engine) Mkdir(path string, mode uint32) (InodeInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if path == "/" {
		return InodeInfo{}, newErr("mkdir", path, EEXIST)
	}
	return e.createLocked("mkdir", path, (mode&store.ModePerm)|store.ModeDir)
}

func (e *Engine) createLocked(op, path string, fullMode uint32) (InodeInfo, error) {
	path = store.Canonicalize(path)

	if _, ok := e.store.LookupByPath(path); ok {
		return InodeInfo{}, newErr(op, path, EEXIST)
	}
	if _, err := e.resolveParent(op, path); err != nil {
		return InodeInfo{}, err
	}

	now := uint64(e.clock.Now().Unix())

	// Revival: a deleted inode at this exact path keeps its id.
	revive, _ := e.store.FindDeleted(path)

	var id uint64
	if revive != nil {
		id = revive.ID
	} else {
		id = e.store.AllocateID()
	}

	recType := record.Create
	if fullMode&store.ModeTypeMask == store.ModeDir {
		recType = record.Mkdir
	}
	rec := record.EncodeCreate(record.CreatePayload{
		ID:        id,
		Mode:      fullMode,
		Size:      0,
		Timestamp: now,
		Path:      path,
	})
	rec.Type = recType

	if err := e.appendRecord(rec); err != nil {
		return InodeInfo{}, wrapErr(op, path, EIO, err)
	}

	var in *store.Inode
	if revive != nil {
		in = revive
		in.ResetForRevival()
	} else {
		in = &store.Inode{ID: id}
	}
	in.Path = path
	in.Mode = fullMode
	in.Size = 0
	in.Ctime, in.Mtime, in.Atime = int64(now), int64(now), int64(now)
	in.Deleted = false
	if revive != nil {
		e.store.IndexPath(path, id)
	} else {
		e.store.Insert(in)
	}

	return infoOf(in), nil
}

// Unlink marks path deleted. Directories are rejected with EISDIR.
func (e *Engine) Unlink(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	path = store.Canonicalize(path)

	in, ok := e.store.LookupByPath(path)
	if !ok {
		return newErr("unlink", path, ENOENT)
	}
	if in.IsDir() {
		return newErr("unlink", path, EISDIR)
	}

	rec := record.EncodeUnlink(record.UnlinkPayload{ID: in.ID})
	if err := e.appendRecord(rec); err != nil {
		return wrapErr("unlink", path, EIO, err)
	}

	e.store.UnindexPath(path, in.ID)
	in.Deleted = true
	return nil
}

// Rmdir marks an empty directory deleted.
func (e *Engine) Rmdir(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	path = store.Canonicalize(path)

	in, ok := e.store.LookupByPath(path)
	if !ok {
		return newErr("rmdir", path, ENOENT)
	}
	if !in.IsDir() {
		return newErr("rmdir", path, ENOTDIR)
	}
	if !e.store.IsEmpty(path) {
		return newErr("rmdir", path, ENOTEMPTY)
	}

	rec := record.EncodeUnlink(record.UnlinkPayload{ID: in.ID})
	if err := e.appendRecord(rec); err != nil {
		return wrapErr("rmdir", path, EIO, err)
	}

	e.store.UnindexPath(path, in.ID)
	in.Deleted = true
	return nil
}

// Rename moves from to to. An existing destination must match the
// source's kind (and be empty, for directories) and is unlinked first.
// Renaming a directory rewrites the path of every descendant, one
// RENAME record each, in order.
func (e *Engine) Rename(from, to string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	from = store.Canonicalize(from)
	to = store.Canonicalize(to)

	if from == to {
		return nil
	}

	src, ok := e.store.LookupByPath(from)
	if !ok {
		return newErr("rename", from, ENOENT)
	}
	if _, err := e.resolveParent("rename", to); err != nil {
		return err
	}

	if dst, ok := e.store.LookupByPath(to); ok {
		if src.IsDir() != dst.IsDir() {
			if dst.IsDir() {
				return newErr("rename", to, EISDIR)
			}
			return newErr("rename", to, ENOTDIR)
		}
		if dst.IsDir() && !e.store.IsEmpty(to) {
			return newErr("rename", to, ENOTEMPTY)
		}
		rec := record.EncodeUnlink(record.UnlinkPayload{ID: dst.ID})
		if err := e.appendRecord(rec); err != nil {
			return wrapErr("rename", to, EIO, err)
		}
		e.store.UnindexPath(to, dst.ID)
		dst.Deleted = true
	}

	var descendants []*store.Inode
	var newPaths []string
	if src.IsDir() {
		descendants = e.store.Descendants(from)
		newPaths = make([]string, len(descendants))
		for i, d := range descendants {
			newPaths[i] = to + d.Path[len(from):]
		}
	}

	rec := record.EncodeRename(record.RenamePayload{ID: src.ID, NewPath: to})
	if err := e.appendRecord(rec); err != nil {
		return wrapErr("rename", from, EIO, err)
	}
	e.store.UnindexPath(from, src.ID)
	src.Path = to
	e.store.IndexPath(to, src.ID)

	for i, d := range descendants {
		rec := record.EncodeRename(record.RenamePayload{ID: d.ID, NewPath: newPaths[i]})
		if err := e.appendRecord(rec); err != nil {
			// Stop here. Descendants already rewritten stay rewritten;
			// the log carries the partial result faithfully.
			return wrapErr("rename", d.Path, EIO, err)
		}
		e.store.UnindexPath(d.Path, d.ID)
		d.Path = newPaths[i]
		e.store.IndexPath(d.Path, d.ID)
	}

	return nil
}

// Symlink creates a symlink at linkPath pointing to target. Like
// Create, it revives a deleted entry at the same path.
func (e *Engine) Symlink(target, linkPath string) (InodeInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	linkPath = store.Canonicalize(linkPath)

	if _, ok := e.store.LookupByPath(linkPath); ok {
		return InodeInfo{}, newErr("symlink", linkPath, EEXIST)
	}
	if _, err := e.resolveParent("symlink", linkPath); err != nil {
		return InodeInfo{}, err
	}

	revive, _ := e.store.FindDeleted(linkPath)
	var id uint64
	if revive != nil {
		id = revive.ID
	} else {
		id = e.store.AllocateID()
	}

	now := uint64(e.clock.Now().Unix())
	rec := record.EncodeCreate(record.CreatePayload{
		ID:            id,
		Mode:          store.ModeSymlink | 0o777,
		Size:          uint64(len(target)),
		Timestamp:     now,
		Path:          linkPath,
		SymlinkTarget: []byte(target),
		HasTarget:     true,
	})
	if err := e.appendRecord(rec); err != nil {
		return InodeInfo{}, wrapErr("symlink", linkPath, EIO, err)
	}

	var in *store.Inode
	if revive != nil {
		in = revive
		in.ResetForRevival()
	} else {
		in = &store.Inode{ID: id}
	}
	in.Path = linkPath
	in.Mode = store.ModeSymlink | 0o777
	in.Size = int64(len(target))
	in.Ctime, in.Mtime, in.Atime = int64(now), int64(now), int64(now)
	in.Deleted = false
	in.SymlinkTarget = target
	in.HasSymlink = true
	if revive != nil {
		e.store.IndexPath(linkPath, id)
	} else {
		e.store.Insert(in)
	}

	return infoOf(in), nil
}

// Readlink returns the target stored for a symlink. Targets are never
// served from the data segment.
func (e *Engine) Readlink(path string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	path = store.Canonicalize(path)

	in, ok := e.store.LookupByPath(path)
	if !ok {
		return "", newErr("readlink", path, ENOENT)
	}
	if !in.IsSymlink() {
		return "", newErr("readlink", path, EINVAL)
	}
	return in.SymlinkTarget, nil
}

// Link always fails: hard links are unsupported, link count is always 1.
func (e *Engine) Link(string, string) error {
	return newErr("link", "", EOPNOTSUPP)
}

// Stat returns path's in-memory attributes.
func (e *Engine) Stat(path string) (InodeInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	path = store.Canonicalize(path)
	in, ok := e.store.LookupByPath(path)
	if !ok {
		return InodeInfo{}, newErr("stat", path, ENOENT)
	}
	return infoOf(in), nil
}

// TimeSpec is one of "now", "omit", or a literal value.
type TimeSpec struct {
	Now   bool
	Omit  bool
	Value int64 // whole seconds; callers truncate nanoseconds
}

// SetTimes updates atime and mtime per the two specs and stamps ctime
// with the current time.
func (e *Engine) SetTimes(path string, atime, mtime TimeSpec) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	path = store.Canonicalize(path)

	in, ok := e.store.LookupByPath(path)
	if !ok {
		return newErr("set_times", path, ENOENT)
	}

	now := e.clock.Now().Unix()
	newAtime, newMtime := in.Atime, in.Mtime
	if atime.Now {
		newAtime = now
	} else if !atime.Omit {
		newAtime = atime.Value
	}
	if mtime.Now {
		newMtime = now
	} else if !mtime.Omit {
		newMtime = mtime.Value
	}

	rec := record.EncodeTimes(record.TimesPayload{ID: in.ID, AtimeSec: newAtime, MtimeSec: newMtime})
	if err := e.appendRecord(rec); err != nil {
		return wrapErr("set_times", path, EIO, err)
	}

	in.Atime = newAtime
	in.Mtime = newMtime
	in.Ctime = now
	return nil
}

// Children iterates path's immediate non-deleted children: fn is called
// once per child with (name, info); a non-zero return stops iteration
// early.
func (e *Engine) Children(path string, fn func(name string, info InodeInfo) int) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	path = store.Canonicalize(path)

	dir, ok := e.store.LookupByPath(path)
	if !ok {
		return newErr("readdir", path, ENOENT)
	}
	if !dir.IsDir() {
		return newErr("readdir", path, ENOTDIR)
	}

	for _, c := range e.store.Children(path) {
		if fn(c.Name, infoOf(c.Inode)) != 0 {
			break
		}
	}
	return nil
}
