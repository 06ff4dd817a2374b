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

// Package record implements the on-disk codec for the metadata log: a
// fixed 9-byte envelope (type, payload length, payload CRC-32) wrapping a
// per-type payload. See the CREATE/EXTENT/TRUNCATE/... layouts below.
package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Type identifies the kind of payload carried by a record.
type Type byte

const (
	Create      Type = 1
	Extent      Type = 2
	Truncate    Type = 3
	Unlink      Type = 4
	Rename      Type = 5
	Mkdir       Type = 6
	Setxattr    Type = 7
	Removexattr Type = 8
	Times       Type = 9
)

// HeaderSize is the size in bytes of the fixed record envelope: 1 byte
// type, 4 bytes little-endian payload length, 4 bytes little-endian CRC-32
// of the payload.
const HeaderSize = 9

// ErrShortRead is returned by Read when fewer than HeaderSize bytes, or
// fewer than the declared payload length, could be read. Callers in the
// replay path treat this as "stop, nothing more to apply".
var ErrShortRead = errors.New("record: short read")

// ErrChecksum is returned by Read when the payload's CRC-32 does not
// match the header. Callers in the replay path treat this as "skip this
// record and continue".
var ErrChecksum = errors.New("record: checksum mismatch")

// Record is a decoded log entry: an envelope plus its raw payload bytes.
// Per-type helpers below encode/decode the payload into typed fields.
type Record struct {
	Type    Type
	Payload []byte
}

// crcTable is the standard reflected CRC-32 (polynomial 0xEDB88320,
// initial value 0xFFFFFFFF, final XOR 0xFFFFFFFF), which is exactly
// what hash/crc32's IEEE table computes. The checksum covers the
// payload only, never the header.
var crcTable = crc32.MakeTable(crc32.IEEE)

func checksum(payload []byte) uint32 {
	return crc32.Checksum(payload, crcTable)
}

// Marshal serialises rec into the 9-byte-header + payload wire format.
func Marshal(rec Record) []byte {
	buf := make([]byte, HeaderSize+len(rec.Payload))
	buf[0] = byte(rec.Type)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(rec.Payload)))
	binary.LittleEndian.PutUint32(buf[5:9], checksum(rec.Payload))
	copy(buf[HeaderSize:], rec.Payload)
	return buf
}

// Read decodes a single record from r. It returns ErrShortRead if the
// header or payload could not be fully read (a partially-written trailing
// record), and ErrChecksum if the payload's CRC-32 does not match the
// header. Both are expected, recoverable conditions during replay; see
// package replay for how they are handled. Any other error is an I/O
// failure from the underlying reader.
func Read(r io.Reader) (Record, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, ErrShortRead
		}
		return Record{}, err
	}

	typ := Type(header[0])
	length := binary.LittleEndian.Uint32(header[1:5])
	wantCRC := binary.LittleEndian.Uint32(header[5:9])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, ErrShortRead
		}
		return Record{}, err
	}

	if checksum(payload) != wantCRC {
		return Record{}, ErrChecksum
	}

	return Record{Type: typ, Payload: payload}, nil
}

// payloadWriter accumulates a payload out of little-endian fixed-width
// fields and length-prefixed byte strings.
type payloadWriter struct {
	buf bytes.Buffer
}

func (w *payloadWriter) u32(v uint32) { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *payloadWriter) u64(v uint64) { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *payloadWriter) i64(v int64)  { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *payloadWriter) bytes(b []byte) {
	w.buf.Write(b)
}

type payloadReader struct {
	b   []byte
	off int
	err error
}

func newPayloadReader(b []byte) *payloadReader { return &payloadReader{b: b} }

func (r *payloadReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.off+4 > len(r.b) {
		r.err = fmt.Errorf("record: payload truncated reading u32 at %d", r.off)
		return 0
	}
	v := binary.LittleEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v
}

func (r *payloadReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	if r.off+8 > len(r.b) {
		r.err = fmt.Errorf("record: payload truncated reading u64 at %d", r.off)
		return 0
	}
	v := binary.LittleEndian.Uint64(r.b[r.off:])
	r.off += 8
	return v
}

func (r *payloadReader) i64() int64 { return int64(r.u64()) }

func (r *payloadReader) take(n uint32) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+int(n) > len(r.b) {
		r.err = fmt.Errorf("record: payload truncated reading %d bytes at %d", n, r.off)
		return nil
	}
	out := r.b[r.off : r.off+int(n)]
	r.off += int(n)
	return out
}

// remaining reports how many payload bytes are left unread.
func (r *payloadReader) remaining() int { return len(r.b) - r.off }
