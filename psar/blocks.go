// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of psxtract-go.
//
// psxtract-go is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// psxtract-go is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with psxtract-go.  If not, see <https://www.gnu.org/licenses/>.

package psar

import (
	"encoding/binary"
	"fmt"
	"io"

	lru "github.com/hashicorp/golang-lru/v2"

	ibinary "github.com/has207/psxtract-go/internal/binary"
	"github.com/has207/psxtract-go/lz"
)

// sectorBytes is the raw CD-ROM sector size the trash/overdump scan steps
// over; it intentionally duplicates sector.Size rather than importing the
// sector package, since the scan is a byte-pattern search unrelated to
// sector-header fixing.
const sectorBytes = 2352

// trashPattern marks the sentinel DWORD the scan looks for: little-endian
// 0xFFFFFF00.
const trashPattern = 0xFFFFFF00

// ParseIsoEntries reads a disc's compressed ISO block table from its
// decrypted header, stopping at the first record whose Size is zero.
func ParseIsoEntries(header []byte) []IsoEntry {
	var entries []IsoEntry
	for off := isoEntryTableOffset; off+isoEntryRecordSize <= len(header); off += isoEntryRecordSize {
		e := ParseIsoEntry(header[off : off+isoEntryRecordSize])
		if e.Size == 0 {
			break
		}
		entries = append(entries, e)
	}
	return entries
}

// Assembler reconstructs a disc's raw data track, one ISO_BLOCK_SIZE chunk
// at a time, decompressing and caching recently-used blocks.
type Assembler struct {
	r          io.ReaderAt
	discOffset uint32
	entries    []IsoEntry
	decomp     lz.Decompressor
	cache      *lru.Cache[int, []byte]
}

// NewAssembler builds an Assembler for one disc. header is that disc's
// already-decrypted ISO header (Container.DiscHeader's result); cacheBlocks
// bounds how many decompressed ISO_BLOCK_SIZE blocks stay resident.
func NewAssembler(r io.ReaderAt, discOffset uint32, header []byte, decomp lz.Decompressor, cacheBlocks int) (*Assembler, error) {
	if cacheBlocks <= 0 {
		cacheBlocks = 32
	}
	cache, err := lru.New[int, []byte](cacheBlocks)
	if err != nil {
		return nil, fmt.Errorf("psar: build block cache: %w", err)
	}
	return &Assembler{
		r:          r,
		discOffset: discOffset,
		entries:    ParseIsoEntries(header),
		decomp:     decomp,
		cache:      cache,
	}, nil
}

// NumBlocks returns the number of ISO blocks this disc's table describes.
func (a *Assembler) NumBlocks() int {
	return len(a.entries)
}

// Block returns the decompressed bytes of ISO block i, exactly
// isoBlockSize (37632) bytes long.
func (a *Assembler) Block(i int) ([]byte, error) {
	if block, ok := a.cache.Get(i); ok {
		return block, nil
	}
	if i < 0 || i >= len(a.entries) {
		return nil, fmt.Errorf("psar: block index %d out of range", i)
	}
	e := a.entries[i]

	raw, err := ibinary.ReadBytesAt(a.r, int64(isoBaseOffset)+int64(a.discOffset)+int64(e.Offset), int(e.Size))
	if err != nil {
		return nil, fmt.Errorf("psar: read block %d: %w", i, err)
	}

	var block []byte
	if int(e.Size) < isoBlockSize {
		block = make([]byte, isoBlockSize)
		n, err := a.decomp.Decompress(block, raw)
		if err != nil {
			return nil, fmt.Errorf("psar: decompress block %d: %w", i, err)
		}
		if n != isoBlockSize {
			return nil, fmt.Errorf("psar: block %d decompressed to %d bytes, want %d", i, n, isoBlockSize)
		}
	} else {
		block = raw
	}

	a.cache.Add(i, block)
	return block, nil
}

// Entry returns the raw table record for block i, so a caller can decide
// whether a trash/overdump scan applies (Marker == 0).
func (a *Assembler) Entry(i int) IsoEntry {
	return a.entries[i]
}

// TrashOverdumpSplit finds, within one decompressed ISO block, the boundary
// between residual "trash" bytes following a run of 0xFFFFFF00 sentinel
// DWORDs and the all-zero-delimited "overdump" tail. Marker-0 blocks are
// scanned this way; other blocks are copied to the data track whole.
func TrashOverdumpSplit(block []byte) (trashStart, trashSize int) {
	pos := 0
	for pos+4 <= len(block) && binary.LittleEndian.Uint32(block[pos:pos+4]) == trashPattern {
		pos += sectorBytes
	}
	trashStart = pos - sectorBytes
	if trashStart < 0 {
		trashStart = 0
	}

	scan := trashStart
	size := 0
	for scan+4 <= len(block) && binary.LittleEndian.Uint32(block[scan:scan+4]) != 0 {
		scan += 4
		size += 4
	}
	size -= 4
	if size < 0 {
		size = 0
	}
	return trashStart, size
}

// BuildDataTrackResult summarizes one BuildDataTrack run.
type BuildDataTrackResult struct {
	Blocks          int
	TrashWritten    bool
	OverdumpWritten bool
}

// BuildDataTrack drives asm across every block it describes, writing each
// decompressed block whole to dataTrack and routing any marker-0 block's
// trailing trash/overdump bytes to trash and overdump in turn.
func BuildDataTrack(asm *Assembler, dataTrack, trash, overdump io.Writer) (*BuildDataTrackResult, error) {
	result := &BuildDataTrackResult{}
	for i := 0; i < asm.NumBlocks(); i++ {
		block, err := asm.Block(i)
		if err != nil {
			return result, fmt.Errorf("psar: build data track: %w", err)
		}
		entry := asm.Entry(i)
		if entry.Marker == 0 {
			_, size := TrashOverdumpSplit(block)
			if size != 0 {
				result.TrashWritten = true
			}
			result.OverdumpWritten = true
		}
		if err := WriteBlock(dataTrack, trash, overdump, entry, block); err != nil {
			return result, fmt.Errorf("psar: build data track: block %d: %w", i, err)
		}
		result.Blocks++
	}
	return result, nil
}

// WriteBlock appends one disc block to dataTrack, routing trash/overdump
// bytes to their own streams when the block's table entry marks it
// (Marker == 0) as carrying them.
func WriteBlock(dataTrack, trash, overdump io.Writer, entry IsoEntry, block []byte) error {
	if entry.Marker == 0 {
		start, size := TrashOverdumpSplit(block)
		if size != 0 {
			if _, err := trash.Write(block[start : start+size]); err != nil {
				return fmt.Errorf("psar: write trash: %w", err)
			}
			if _, err := overdump.Write(block[start+size:]); err != nil {
				return fmt.Errorf("psar: write overdump: %w", err)
			}
		} else {
			if _, err := overdump.Write(block); err != nil {
				return fmt.Errorf("psar: write overdump: %w", err)
			}
		}
	}

	if _, err := dataTrack.Write(block); err != nil {
		return fmt.Errorf("psar: write data track: %w", err)
	}
	return nil
}
