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
	"errors"
	"fmt"
	"syscall"
)

// Error is the error type every engine operation returns on failure. It
// wraps a plain syscall.Errno — the same representation
// github.com/jacobsa/fuse uses for fuse.ENOENT and friends — so an
// adapter can recover the errno with errors.As, no translation table
// needed.
type Error struct {
	Op    string
	Path  string
	Errno syscall.Errno
	Err   error // underlying cause, if any (e.g. a host I/O error)
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err != e.Errno {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Errno, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Errno)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Errno
}

// Errno extracts the POSIX errno embedded in err, or 0 if err is nil or
// carries none.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Errno
	}
	return 0
}

func newErr(op, path string, errno syscall.Errno) error {
	return &Error{Op: op, Path: path, Errno: errno}
}

func wrapErr(op, path string, errno syscall.Errno, cause error) error {
	return &Error{Op: op, Path: path, Errno: errno, Err: cause}
}

// POSIX error codes the engine hands back, re-exported so adapters
// don't have to import syscall.
const (
	ENOENT     = syscall.ENOENT
	EEXIST     = syscall.EEXIST
	EISDIR     = syscall.EISDIR
	ENOTDIR    = syscall.ENOTDIR
	ENOTEMPTY  = syscall.ENOTEMPTY
	ERANGE     = syscall.ERANGE
	ENODATA    = syscall.ENODATA
	EOPNOTSUPP = syscall.EOPNOTSUPP
	EINVAL     = syscall.EINVAL
	EIO        = syscall.EIO
	ENOMEM     = syscall.ENOMEM
)
