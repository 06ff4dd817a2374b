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

// Package replay rebuilds the namespace/inode store by consuming the
// metadata log's record stream from the start. The record sequence is
// the authoritative history; replay applies it in order.
package replay

import (
	"errors"
	"fmt"
	"math"

	"github.com/htbegin/append-fs/internal/logger"
	"github.com/htbegin/append-fs/internal/metrics"
	"github.com/htbegin/append-fs/internal/record"
	"github.com/htbegin/append-fs/internal/segment"
	"github.com/htbegin/append-fs/internal/store"
)

// Options controls replay behavior. StopOnFirstCorruptRecord trades
// the default skip-and-continue tolerance of isolated corrupt records
// for a hard stop at the first checksum failure.
type Options struct {
	StopOnFirstCorruptRecord bool
}

// Run reads log from the start and applies every valid record to s. A
// short read at the tail ends the pass (a partially-written trailing
// record is left in place, and later appends simply continue past it);
// a checksum failure skips just that record. Returns the number of
// records applied and the number skipped.
func Run(log *segment.Segment, s *store.Store, metricsReg *metrics.Registry, opts Options) (applied, skipped int, err error) {
	r, err := log.SeekReader()
	if err != nil {
		return 0, 0, err
	}

	for {
		rec, rerr := record.Read(r)
		if rerr != nil {
			if errors.Is(rerr, record.ErrShortRead) {
				break
			}
			if errors.Is(rerr, record.ErrChecksum) {
				skipped++
				metricsReg.RecordsSkipped.Inc()
				logger.Warnf("replay: skipping record with bad checksum (record #%d)", applied+skipped)
				if opts.StopOnFirstCorruptRecord {
					break
				}
				continue
			}
			return applied, skipped, fmt.Errorf("replay: reading record: %w", rerr)
		}

		if err := apply(s, rec); err != nil {
			return applied, skipped, fmt.Errorf("replay: applying %s record: %w", rec.Type, err)
		}
		applied++
		metricsReg.RecordsAppended.WithLabelValues(rec.Type.String()).Inc()
	}

	return applied, skipped, nil
}

func apply(s *store.Store, rec record.Record) error {
	switch rec.Type {
	case record.Create, record.Mkdir:
		return applyCreate(s, rec)
	case record.Extent:
		return applyExtent(s, rec)
	case record.Truncate:
		return applyTruncate(s, rec)
	case record.Unlink:
		return applyUnlink(s, rec)
	case record.Rename:
		return applyRename(s, rec)
	case record.Setxattr:
		return applySetxattr(s, rec)
	case record.Removexattr:
		return applyRemovexattr(s, rec)
	case record.Times:
		return applyTimes(s, rec)
	default:
		// Unknown type: ignore, so future record types don't break
		// older readers.
		return nil
	}
}

func applyCreate(s *store.Store, rec record.Record) error {
	p, err := record.DecodeCreate(rec.Payload)
	if err != nil {
		return err
	}
	if p.Size > math.MaxInt64 {
		return fmt.Errorf("replay: CREATE/MKDIR size %d overflows int64", p.Size)
	}

	in, existed := s.LookupByID(p.ID)
	if existed {
		if !in.Deleted {
			s.UnindexPath(in.Path, in.ID)
		}
		in.ResetForRevival()
	} else {
		in = &store.Inode{ID: p.ID}
	}

	in.Path = p.Path
	in.Mode = p.Mode
	in.Size = int64(p.Size)
	in.Ctime = int64(p.Timestamp)
	in.Mtime = int64(p.Timestamp)
	in.Atime = int64(p.Timestamp)
	in.Deleted = false
	if p.HasTarget {
		in.SymlinkTarget = string(p.SymlinkTarget)
		in.HasSymlink = true
	}

	if existed {
		s.IndexPath(in.Path, in.ID)
	} else {
		s.Insert(in)
	}
	s.ObserveID(p.ID)
	return nil
}

func applyExtent(s *store.Store, rec record.Record) error {
	p, err := record.DecodeExtent(rec.Payload)
	if err != nil {
		return err
	}
	in, ok := s.LookupByID(p.ID)
	if !ok {
		return nil
	}
	if p.NewSize > math.MaxInt64 {
		return fmt.Errorf("replay: EXTENT new_size %d overflows int64", p.NewSize)
	}
	in.Extents = append(in.Extents, store.Extent{
		LogicalOffset: int64(p.LogicalOffset),
		Length:        int64(p.Length),
		DataOffset:    int64(p.DataOffset),
	})
	if int64(p.NewSize) > in.Size {
		in.Size = int64(p.NewSize)
	}
	return nil
}

func applyTruncate(s *store.Store, rec record.Record) error {
	p, err := record.DecodeTruncate(rec.Payload)
	if err != nil {
		return err
	}
	in, ok := s.LookupByID(p.ID)
	if !ok {
		return nil
	}
	if p.NewSize > math.MaxInt64 {
		return fmt.Errorf("replay: TRUNCATE new_size %d overflows int64", p.NewSize)
	}
	in.Size = int64(p.NewSize)
	store.Truncate(in, in.Size)
	return nil
}

func applyUnlink(s *store.Store, rec record.Record) error {
	p, err := record.DecodeUnlink(rec.Payload)
	if err != nil {
		return err
	}
	in, ok := s.LookupByID(p.ID)
	if !ok {
		return nil
	}
	if !in.Deleted {
		s.UnindexPath(in.Path, in.ID)
	}
	in.Deleted = true
	return nil
}

func applyRename(s *store.Store, rec record.Record) error {
	p, err := record.DecodeRename(rec.Payload)
	if err != nil {
		return err
	}
	in, ok := s.LookupByID(p.ID)
	if !ok {
		return nil
	}
	if !in.Deleted {
		s.UnindexPath(in.Path, in.ID)
	}
	in.Path = p.NewPath
	in.Deleted = false
	s.IndexPath(in.Path, in.ID)
	return nil
}

func applySetxattr(s *store.Store, rec record.Record) error {
	p, err := record.DecodeSetxattr(rec.Payload)
	if err != nil {
		return err
	}
	in, ok := s.LookupByID(p.ID)
	if !ok {
		return nil
	}
	in.SetXattr(p.Name, p.Value)
	return nil
}

func applyRemovexattr(s *store.Store, rec record.Record) error {
	p, err := record.DecodeRemovexattr(rec.Payload)
	if err != nil {
		return err
	}
	in, ok := s.LookupByID(p.ID)
	if !ok {
		return nil
	}
	in.RemoveXattr(p.Name)
	return nil
}

func applyTimes(s *store.Store, rec record.Record) error {
	p, err := record.DecodeTimes(rec.Payload)
	if err != nil {
		return err
	}
	in, ok := s.LookupByID(p.ID)
	if !ok {
		return nil
	}
	in.Atime = p.AtimeSec
	in.Mtime = p.MtimeSec
	return nil
}
