// Copyright 2025 Poiesic Systems
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


package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/trigrep/core"
)

// FormatVersion is the current on-disk format version. Loaders refuse any
// other version rather than silently misreading it.
const FormatVersion uint32 = 1

const headerLen = 12

var magic = [4]byte{'T', 'G', 'R', 'P'}

// encodeSnapshot serializes a snapshot into the single-file format:
// header (magic, version, payload checksum) followed by the MUS payload.
func encodeSnapshot(s *core.Snapshot) []byte {
	payload := make([]byte, payloadSize(s))
	marshalPayload(s, payload)

	buf := make([]byte, headerLen+len(payload))
	copy(buf[0:4], magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(buf[8:12], crc32.ChecksumIEEE(payload))
	copy(buf[headerLen:], payload)
	return buf
}

// decodeSnapshot reconstructs and validates a snapshot, classifying every
// failure as ErrCorrupt or ErrVersionMismatch.
func decodeSnapshot(data []byte) (*core.Snapshot, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrCorrupt, len(data))
	}
	if !bytes.Equal(data[0:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad magic bytes %x", ErrCorrupt, data[0:4])
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: file has version %d, this build reads version %d",
			ErrVersionMismatch, version, FormatVersion)
	}
	payload := data[headerLen:]
	if sum := crc32.ChecksumIEEE(payload); sum != binary.LittleEndian.Uint32(data[8:12]) {
		return nil, fmt.Errorf("%w: payload checksum mismatch", ErrCorrupt)
	}

	s, err := unmarshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := core.ValidateSnapshot(s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return s, nil
}

// sortedTrigrams returns the posting table's keys in byte order, so the
// encoded form is deterministic.
func sortedTrigrams(s *core.Snapshot) []core.Trigram {
	keys := make([]core.Trigram, 0, len(s.Postings))
	for t := range s.Postings {
		keys = append(keys, t)
	}
	slices.SortFunc(keys, func(a, b core.Trigram) int {
		return bytes.Compare(a[:], b[:])
	})
	return keys
}

func payloadSize(s *core.Snapshot) int {
	size := ord.String.Size(s.Root) +
		varint.Int64.Size(s.BuiltAt.UnixNano()) +
		ord.Bool.Size(s.FoldCase) +
		varint.Int.Size(len(s.Files))

	for i := range s.Files {
		rec := &s.Files[i]
		size += ord.String.Size(rec.Path) +
			varint.Int64.Size(rec.Size) +
			varint.Int64.Size(rec.ModTime.UnixNano()) +
			varint.Uint64.Size(rec.Fingerprint) +
			varint.Int.Size(len(rec.LineOffsets))
		prev := uint32(0)
		for _, off := range rec.LineOffsets {
			size += varint.Uint32.Size(off - prev)
			prev = off
		}
	}

	size += varint.Int.Size(len(s.Postings))
	for _, list := range s.Postings {
		size += core.TrigramLen + varint.Int.Size(len(list))
		prev := core.FileID(0)
		for _, id := range list {
			size += varint.Uint32.Size(uint32(id - prev))
			prev = id
		}
	}
	return size
}

func marshalPayload(s *core.Snapshot, buf []byte) int {
	n := ord.String.Marshal(s.Root, buf)
	n += varint.Int64.Marshal(s.BuiltAt.UnixNano(), buf[n:])
	n += ord.Bool.Marshal(s.FoldCase, buf[n:])
	n += varint.Int.Marshal(len(s.Files), buf[n:])

	for i := range s.Files {
		rec := &s.Files[i]
		n += ord.String.Marshal(rec.Path, buf[n:])
		n += varint.Int64.Marshal(rec.Size, buf[n:])
		n += varint.Int64.Marshal(rec.ModTime.UnixNano(), buf[n:])
		n += varint.Uint64.Marshal(rec.Fingerprint, buf[n:])
		n += varint.Int.Marshal(len(rec.LineOffsets), buf[n:])
		prev := uint32(0)
		for _, off := range rec.LineOffsets {
			// Offsets are increasing; deltas keep the varints short.
			n += varint.Uint32.Marshal(off-prev, buf[n:])
			prev = off
		}
	}

	n += varint.Int.Marshal(len(s.Postings), buf[n:])
	for _, t := range sortedTrigrams(s) {
		n += copy(buf[n:], t[:])
		list := s.Postings[t]
		n += varint.Int.Marshal(len(list), buf[n:])
		prev := core.FileID(0)
		for _, id := range list {
			// Strictly increasing FileIDs delta-encode the same way.
			n += varint.Uint32.Marshal(uint32(id-prev), buf[n:])
			prev = id
		}
	}
	return n
}

func unmarshalPayload(buf []byte) (*core.Snapshot, error) {
	var n int

	root, c, err := ord.String.Unmarshal(buf[n:])
	if err != nil {
		return nil, err
	}
	n += c

	builtAt, c, err := varint.Int64.Unmarshal(buf[n:])
	if err != nil {
		return nil, err
	}
	n += c

	foldCase, c, err := ord.Bool.Unmarshal(buf[n:])
	if err != nil {
		return nil, err
	}
	n += c

	fileCount, c, err := varint.Int.Unmarshal(buf[n:])
	if err != nil {
		return nil, err
	}
	n += c
	if fileCount < 0 {
		return nil, fmt.Errorf("negative file count %d", fileCount)
	}

	files := make([]core.FileRecord, fileCount)
	for i := range files {
		rec := &files[i]
		rec.ID = core.FileID(i)

		rec.Path, c, err = ord.String.Unmarshal(buf[n:])
		if err != nil {
			return nil, err
		}
		n += c

		rec.Size, c, err = varint.Int64.Unmarshal(buf[n:])
		if err != nil {
			return nil, err
		}
		n += c

		var modNano int64
		modNano, c, err = varint.Int64.Unmarshal(buf[n:])
		if err != nil {
			return nil, err
		}
		n += c
		rec.ModTime = time.Unix(0, modNano)

		rec.Fingerprint, c, err = varint.Uint64.Unmarshal(buf[n:])
		if err != nil {
			return nil, err
		}
		n += c

		var offsetCount int
		offsetCount, c, err = varint.Int.Unmarshal(buf[n:])
		if err != nil {
			return nil, err
		}
		n += c
		if offsetCount < 0 {
			return nil, fmt.Errorf("negative line-offset count %d", offsetCount)
		}
		if offsetCount > 0 {
			rec.LineOffsets = make([]uint32, offsetCount)
			prev := uint32(0)
			for j := range rec.LineOffsets {
				var delta uint32
				delta, c, err = varint.Uint32.Unmarshal(buf[n:])
				if err != nil {
					return nil, err
				}
				n += c
				prev += delta
				rec.LineOffsets[j] = prev
			}
		}
	}

	trigramCount, c, err := varint.Int.Unmarshal(buf[n:])
	if err != nil {
		return nil, err
	}
	n += c
	if trigramCount < 0 {
		return nil, fmt.Errorf("negative trigram count %d", trigramCount)
	}

	postings := make(map[core.Trigram]core.PostingList, trigramCount)
	for i := 0; i < trigramCount; i++ {
		if n+core.TrigramLen > len(buf) {
			return nil, fmt.Errorf("truncated trigram table")
		}
		var t core.Trigram
		n += copy(t[:], buf[n:n+core.TrigramLen])

		var listLen int
		listLen, c, err = varint.Int.Unmarshal(buf[n:])
		if err != nil {
			return nil, err
		}
		n += c
		if listLen < 0 {
			return nil, fmt.Errorf("negative posting list length %d", listLen)
		}

		list := make(core.PostingList, listLen)
		prev := core.FileID(0)
		for j := range list {
			var delta uint32
			delta, c, err = varint.Uint32.Unmarshal(buf[n:])
			if err != nil {
				return nil, err
			}
			n += c
			prev += core.FileID(delta)
			list[j] = prev
		}
		postings[t] = list
	}

	return &core.Snapshot{
		Root:     root,
		BuiltAt:  time.Unix(0, builtAt),
		FoldCase: foldCase,
		Files:    files,
		Postings: postings,
	}, nil
}
