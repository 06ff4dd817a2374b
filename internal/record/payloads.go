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

package record

import "fmt"

// CreatePayload is the decoded payload of a CREATE or MKDIR record:
// `u64 id, u32 mode, u64 size, u64 timestamp, u32 path_len, bytes path,
// [if mode is symlink: u32 target_len, bytes target]`.
//
// The timestamp field is unsigned, unlike TIMES's signed seconds, and
// seeds ctime/mtime/atime uniformly on apply.
type CreatePayload struct {
	ID            uint64
	Mode          uint32
	Size          uint64
	Timestamp     uint64
	Path          string
	SymlinkTarget []byte // present iff HasTarget
	HasTarget     bool
}

func EncodeCreate(p CreatePayload) Record {
	w := &payloadWriter{}
	w.u64(p.ID)
	w.u32(p.Mode)
	w.u64(p.Size)
	w.u64(p.Timestamp)
	w.u32(uint32(len(p.Path)))
	w.bytes([]byte(p.Path))
	if p.HasTarget {
		w.u32(uint32(len(p.SymlinkTarget)))
		w.bytes(p.SymlinkTarget)
	}
	typ := Create
	return Record{Type: typ, Payload: w.buf.Bytes()}
}

func DecodeCreate(payload []byte) (CreatePayload, error) {
	r := newPayloadReader(payload)
	var p CreatePayload
	p.ID = r.u64()
	p.Mode = r.u32()
	p.Size = r.u64()
	p.Timestamp = r.u64()
	pathLen := r.u32()
	p.Path = string(r.take(pathLen))
	if r.err == nil && r.remaining() > 0 {
		targetLen := r.u32()
		p.SymlinkTarget = append([]byte(nil), r.take(targetLen)...)
		p.HasTarget = true
	}
	if r.err != nil {
		return CreatePayload{}, r.err
	}
	return p, nil
}

// ExtentPayload is the decoded payload of an EXTENT record:
// `u64 id, u64 logical_offset, u64 data_offset, u32 length, u64 new_size`.
type ExtentPayload struct {
	ID            uint64
	LogicalOffset uint64
	DataOffset    uint64
	Length        uint32
	NewSize       uint64
}

func EncodeExtent(p ExtentPayload) Record {
	w := &payloadWriter{}
	w.u64(p.ID)
	w.u64(p.LogicalOffset)
	w.u64(p.DataOffset)
	w.u32(p.Length)
	w.u64(p.NewSize)
	return Record{Type: Extent, Payload: w.buf.Bytes()}
}

func DecodeExtent(payload []byte) (ExtentPayload, error) {
	r := newPayloadReader(payload)
	var p ExtentPayload
	p.ID = r.u64()
	p.LogicalOffset = r.u64()
	p.DataOffset = r.u64()
	p.Length = r.u32()
	p.NewSize = r.u64()
	if r.err != nil {
		return ExtentPayload{}, r.err
	}
	return p, nil
}

// TruncatePayload is the decoded payload of a TRUNCATE record:
// `u64 id, u64 new_size`.
type TruncatePayload struct {
	ID      uint64
	NewSize uint64
}

func EncodeTruncate(p TruncatePayload) Record {
	w := &payloadWriter{}
	w.u64(p.ID)
	w.u64(p.NewSize)
	return Record{Type: Truncate, Payload: w.buf.Bytes()}
}

func DecodeTruncate(payload []byte) (TruncatePayload, error) {
	r := newPayloadReader(payload)
	var p TruncatePayload
	p.ID = r.u64()
	p.NewSize = r.u64()
	if r.err != nil {
		return TruncatePayload{}, r.err
	}
	return p, nil
}

// UnlinkPayload is the decoded payload of an UNLINK record: `u64 id`.
type UnlinkPayload struct {
	ID uint64
}

func EncodeUnlink(p UnlinkPayload) Record {
	w := &payloadWriter{}
	w.u64(p.ID)
	return Record{Type: Unlink, Payload: w.buf.Bytes()}
}

func DecodeUnlink(payload []byte) (UnlinkPayload, error) {
	r := newPayloadReader(payload)
	var p UnlinkPayload
	p.ID = r.u64()
	if r.err != nil {
		return UnlinkPayload{}, r.err
	}
	return p, nil
}

// RenamePayload is the decoded payload of a RENAME record:
// `u64 id, u32 path_len, bytes new_path`.
type RenamePayload struct {
	ID      uint64
	NewPath string
}

func EncodeRename(p RenamePayload) Record {
	w := &payloadWriter{}
	w.u64(p.ID)
	w.u32(uint32(len(p.NewPath)))
	w.bytes([]byte(p.NewPath))
	return Record{Type: Rename, Payload: w.buf.Bytes()}
}

func DecodeRename(payload []byte) (RenamePayload, error) {
	r := newPayloadReader(payload)
	var p RenamePayload
	p.ID = r.u64()
	pathLen := r.u32()
	p.NewPath = string(r.take(pathLen))
	if r.err != nil {
		return RenamePayload{}, r.err
	}
	return p, nil
}

// SetxattrPayload is the decoded payload of a SETXATTR record:
// `u64 id, u32 name_len, u32 value_len, bytes name, bytes value`.
type SetxattrPayload struct {
	ID    uint64
	Name  string
	Value []byte
}

func EncodeSetxattr(p SetxattrPayload) Record {
	w := &payloadWriter{}
	w.u64(p.ID)
	w.u32(uint32(len(p.Name)))
	w.u32(uint32(len(p.Value)))
	w.bytes([]byte(p.Name))
	w.bytes(p.Value)
	return Record{Type: Setxattr, Payload: w.buf.Bytes()}
}

func DecodeSetxattr(payload []byte) (SetxattrPayload, error) {
	r := newPayloadReader(payload)
	var p SetxattrPayload
	p.ID = r.u64()
	nameLen := r.u32()
	valueLen := r.u32()
	p.Name = string(r.take(nameLen))
	p.Value = append([]byte(nil), r.take(valueLen)...)
	if r.err != nil {
		return SetxattrPayload{}, r.err
	}
	return p, nil
}

// RemovexattrPayload is the decoded payload of a REMOVEXATTR record:
// `u64 id, u32 name_len, bytes name`.
type RemovexattrPayload struct {
	ID   uint64
	Name string
}

func EncodeRemovexattr(p RemovexattrPayload) Record {
	w := &payloadWriter{}
	w.u64(p.ID)
	w.u32(uint32(len(p.Name)))
	w.bytes([]byte(p.Name))
	return Record{Type: Removexattr, Payload: w.buf.Bytes()}
}

func DecodeRemovexattr(payload []byte) (RemovexattrPayload, error) {
	r := newPayloadReader(payload)
	var p RemovexattrPayload
	p.ID = r.u64()
	nameLen := r.u32()
	p.Name = string(r.take(nameLen))
	if r.err != nil {
		return RemovexattrPayload{}, r.err
	}
	return p, nil
}

// TimesPayload is the decoded payload of a TIMES record:
// `u64 id, i64 atime_sec, i64 mtime_sec`.
type TimesPayload struct {
	ID       uint64
	AtimeSec int64
	MtimeSec int64
}

func EncodeTimes(p TimesPayload) Record {
	w := &payloadWriter{}
	w.u64(p.ID)
	w.i64(p.AtimeSec)
	w.i64(p.MtimeSec)
	return Record{Type: Times, Payload: w.buf.Bytes()}
}

func DecodeTimes(payload []byte) (TimesPayload, error) {
	r := newPayloadReader(payload)
	var p TimesPayload
	p.ID = r.u64()
	p.AtimeSec = r.i64()
	p.MtimeSec = r.i64()
	if r.err != nil {
		return TimesPayload{}, r.err
	}
	return p, nil
}

func (t Type) String() string {
	switch t {
	case Create:
		return "CREATE"
	case Extent:
		return "EXTENT"
	case Truncate:
		return "TRUNCATE"
	case Unlink:
		return "UNLINK"
	case Rename:
		return "RENAME"
	case Mkdir:
		return "MKDIR"
	case Setxattr:
		return "SETXATTR"
	case Removexattr:
		return "REMOVEXATTR"
	case Times:
		return "TIMES"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}
