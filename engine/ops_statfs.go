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
	"golang.org/x/sys/unix"
)

// StatfsInfo mirrors the handful of statvfs(2) fields an adapter
// typically needs to answer a kernel statfs request.
type StatfsInfo struct {
	BlockSize       uint64
	Blocks          uint64
	BlocksFree      uint64
	BlocksAvailable uint64
	Files           uint64
	FilesFree       uint64
	NameMax         uint32
}

// Statfs reports block/inode accounting for the host filesystem backing
// the engine's root directory; the engine itself keeps no notion of
// device capacity.
func (e *Engine) Statfs() (StatfsInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var st unix.Statfs_t
	if err := unix.Statfs(e.root, &st); err != nil {
		return StatfsInfo{}, wrapErr("statfs", e.root, EIO, err)
	}

	return StatfsInfo{
		BlockSize:       uint64(st.Bsize),
		Blocks:          st.Blocks,
		BlocksFree:      st.Bfree,
		BlocksAvailable: st.Bavail,
		Files:           st.Files,
		FilesFree:       st.Ffree,
		NameMax:         uint32(st.Namelen),
	}, nil
}
