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

// XattrFlag mirrors the CREATE/REPLACE bits setxattr(2) accepts.
type XattrFlag int

const (
	XattrNone    XattrFlag = 0
	XattrCreate  XattrFlag = 1 << 0
	XattrReplace XattrFlag = 1 << 1
)

// SetXattr inserts or replaces the named attribute. XattrCreate fails
// with EEXIST if the name is present; XattrReplace fails with ENODATA
// if it is absent.
func (e *Engine) SetXattr(path, name string, value []byte, flag XattrFlag) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	path = store.Canonicalize(path)

	in, ok := e.store.LookupByPath(path)
	if !ok {
		return newErr("setxattr", path, ENOENT)
	}

	_, exists := in.GetXattr(name)
	if flag&XattrCreate != 0 && exists {
		return newErr("setxattr", path, EEXIST)
	}
	if flag&XattrReplace != 0 && !exists {
		return newErr("setxattr", path, ENODATA)
	}

	rec := record.EncodeSetxattr(record.SetxattrPayload{ID: in.ID, Name: name, Value: value})
	if err := e.appendRecord(rec); err != nil {
		return wrapErr("setxattr", path, EIO, err)
	}

	in.SetXattr(name, append([]byte(nil), value...))
	return nil
}

// GetXattr returns the value of the named attribute. A nil buf requests
// only the size; a non-nil buf that is too small yields ERANGE.
func (e *Engine) GetXattr(path, name string, buf []byte) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	path = store.Canonicalize(path)

	in, ok := e.store.LookupByPath(path)
	if !ok {
		return 0, newErr("getxattr", path, ENOENT)
	}
	value, ok := in.GetXattr(name)
	if !ok {
		return 0, newErr("getxattr", path, ENODATA)
	}
	if buf == nil {
		return len(value), nil
	}
	if len(buf) < len(value) {
		return 0, newErr("getxattr", path, ERANGE)
	}
	return copy(buf, value), nil
}

// ListXattr returns the attribute names in insertion order, each
// terminated by a NUL byte.
func (e *Engine) ListXattr(path string) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	path = store.Canonicalize(path)

	in, ok := e.store.LookupByPath(path)
	if !ok {
		return nil, newErr("listxattr", path, ENOENT)
	}

	var out []byte
	for _, name := range in.ListXattr() {
		out = append(out, name...)
		out = append(out, 0)
	}
	return out, nil
}

// RemoveXattr removes the named attribute, ENODATA if absent.
func (e *Engine) RemoveXattr(path, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	path = store.Canonicalize(path)

	in, ok := e.store.LookupByPath(path)
	if !ok {
		return newErr("removexattr", path, ENOENT)
	}
	if _, ok := in.GetXattr(name); !ok {
		return newErr("removexattr", path, ENODATA)
	}

	rec := record.EncodeRemovexattr(record.RemovexattrPayload{ID: in.ID, Name: name})
	if err := e.appendRecord(rec); err != nil {
		return wrapErr("removexattr", path, EIO, err)
	}

	in.RemoveXattr(name)
	return nil
}
