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

import "fmt"

// CheckInvariants validates the namespace's structural invariants
// (unique paths, live parents, extent bounds, size coverage, id
// monotonicity) against the current data segment length. It returns an
// error rather than panicking, so a caller like cmd/appendfsck can
// report a violation without crashing.
func (e *Engine) CheckInvariants() (err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	e.store.CheckInvariants(e.data.Len())
	return nil
}

// Census reports coarse namespace statistics: counts of regular files,
// directories, and symlinks, and the total logical byte size of all
// regular files. Used by cmd/appendfsck's stats subcommand.
func (e *Engine) Census() (files, dirs, symlinks int, bytes int64) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, in := range e.store.All() {
		switch {
		case in.IsDir():
			dirs++
		case in.IsSymlink():
			symlinks++
		case in.IsRegular():
			files++
			bytes += in.Size
		}
	}
	return
}
