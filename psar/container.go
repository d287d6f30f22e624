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

	"github.com/has207/psxtract-go/crypto"
	ibinary "github.com/has207/psxtract-go/internal/binary"
)

// Container wraps an opened DATA.PSAR stream, exposing its single- or
// multi-disc framing and per-disc headers.
type Container struct {
	r         io.ReaderAt
	size      int64
	multiDisc bool
	discMap   *DiscMap // nil for a single-disc container
}

// Open inspects r's leading bytes to determine whether it holds one disc or
// several, and parses the multi-disc map up front when present.
func Open(r io.ReaderAt, size int64, pgd crypto.PGDDecryptor) (*Container, error) {
	head, err := ibinary.ReadBytesAt(r, 0, len(multiDiscMagic))
	if err != nil {
		return nil, fmt.Errorf("psar: read container header: %w", err)
	}

	c := &Container{r: r, size: size}
	switch {
	case ibinary.BytesEqual(head[:len(multiDiscMagic)], multiDiscMagic):
		c.multiDisc = true
		discMap, err := c.decryptDiscMap(pgd)
		if err != nil {
			return nil, fmt.Errorf("psar: decrypt disc map: %w", err)
		}
		c.discMap = discMap
	case ibinary.BytesEqual(head[:len(singleDiscMagic)], singleDiscMagic):
		c.multiDisc = false
	default:
		return nil, ErrBadMagic
	}

	return c, nil
}

// IsMultiDisc reports whether this PSAR holds more than one disc.
func (c *Container) IsMultiDisc() bool {
	return c.multiDisc
}

// DiscCount returns the number of discs this PSAR holds: one for a
// single-disc container, or the number of nonzero entries in the decrypted
// disc map for a multi-disc one.
func (c *Container) DiscCount() int {
	if !c.multiDisc {
		return 1
	}
	n := 0
	for _, off := range c.discMap.DiscOffsets {
		if off != 0 {
			n++
		}
	}
	return n
}

// Serial returns the multi-disc title's serial, or "" for a single-disc
// container (whose serial instead comes from the decrypted ISO header).
func (c *Container) Serial() string {
	if c.discMap == nil {
		return ""
	}
	return c.discMap.Serial
}

// Title returns the multi-disc title's display name, or "" for a
// single-disc container.
func (c *Container) Title() string {
	if c.discMap == nil {
		return ""
	}
	return c.discMap.Title
}

// DiscOffset returns the byte offset of disc index within the PSAR stream,
// the base a caller adds to an IsoEntry's or CddaEntry's own Offset field.
func (c *Container) DiscOffset(index int) (uint32, error) {
	return c.discOffset(index)
}

// discOffset returns the byte offset of disc index within the PSAR stream.
func (c *Container) discOffset(index int) (uint32, error) {
	if !c.multiDisc {
		if index != 0 {
			return 0, fmt.Errorf("psar: disc index %d out of range for single-disc container", index)
		}
		return 0, nil
	}
	if index < 0 || index >= len(c.discMap.DiscOffsets) || c.discMap.DiscOffsets[index] == 0 {
		return 0, fmt.Errorf("psar: disc index %d out of range", index)
	}
	return c.discMap.DiscOffsets[index], nil
}

// decryptDiscMap reads and decrypts the multi-disc map at its fixed offset.
func (c *Container) decryptDiscMap(pgd crypto.PGDDecryptor) (*DiscMap, error) {
	raw, err := ibinary.ReadBytesAt(c.r, discMapOffset, discMapSize)
	if err != nil {
		return nil, fmt.Errorf("read encrypted disc map: %w", err)
	}
	plain := make([]byte, len(raw))
	n, err := pgd.DecryptPGD(raw, 2, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	copy(plain, raw[:n])
	return ParseDiscMap(plain[:n])
}

// DiscHeader decrypts and returns the raw decrypted ISO header bytes for
// the disc at index (0-based), the region an Assembler reads its ISO
// entry table and other per-disc tables from.
func (c *Container) DiscHeader(index int, pgd crypto.PGDDecryptor) ([]byte, error) {
	base, err := c.discOffset(index)
	if err != nil {
		return nil, err
	}

	encOffset := int64(isoBaseOffset) + int64(base) + isoHeaderOffset
	raw, err := ibinary.ReadBytesAt(c.r, encOffset, isoHeaderSize)
	if err != nil {
		return nil, fmt.Errorf("psar: read disc %d header: %w", index, err)
	}

	plain := make([]byte, len(raw))
	n, err := pgd.DecryptPGD(raw, 2, nil)
	if err != nil {
		return nil, fmt.Errorf("psar: decrypt disc %d header: %w", index, err)
	}
	copy(plain, raw[:n])
	return plain[:n], nil
}

// ReadCddaTrack reads one disc's raw scrambled ATRAC3 track bytes, at the
// same isoBaseOffset+discOffset+entry.Offset addressing an IsoEntry uses.
func (c *Container) ReadCddaTrack(index int, entry CddaEntry) ([]byte, error) {
	base, err := c.discOffset(index)
	if err != nil {
		return nil, err
	}
	raw, err := ibinary.ReadBytesAt(c.r, int64(isoBaseOffset)+int64(base)+int64(entry.Offset), int(entry.Size))
	if err != nil {
		return nil, fmt.Errorf("psar: read disc %d CDDA track: %w", index, err)
	}
	return raw, nil
}

// SpecialData decrypts the disc's optional special-data blob — an
// intro-screen PNG wrapped in a small header — read from specialDataOffset
// to the end of the PSAR stream, matching the original extractor's
// "always trailing" assumption about this region. pgd.DecryptPGD is taken
// to already strip the PGD envelope's own 0x90-byte header, so the PNG
// payload begins pngHeaderExtra bytes into the returned blob.
func (c *Container) SpecialData(pgd crypto.PGDDecryptor, specialDataOffset uint32) (blob, png []byte, err error) {
	if specialDataOffset == 0 {
		return nil, nil, fmt.Errorf("psar: no special data present")
	}
	size := c.size - int64(specialDataOffset)
	raw, err := ibinary.ReadBytesAt(c.r, int64(specialDataOffset), int(size))
	if err != nil {
		return nil, nil, fmt.Errorf("psar: read special data: %w", err)
	}
	plain := make([]byte, len(raw))
	n, err := pgd.DecryptPGD(raw, 2, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("psar: decrypt special data: %w", err)
	}
	copy(plain, raw[:n])
	blob = plain[:n]
	if pngHeaderExtra > len(blob) {
		return blob, nil, nil
	}
	return blob, blob[pngHeaderExtra:], nil
}

// UnknownData decrypts the disc's optional unknown-data blob: an
// unidentified binary region always found after the ISO and before the
// STARTDAT trailer. startdatOffset bounds the read; when it is zero or not
// past unknownDataOffset, the region is read to the end of the PSAR stream.
func (c *Container) UnknownData(pgd crypto.PGDDecryptor, unknownDataOffset, startdatOffset uint32) ([]byte, error) {
	if unknownDataOffset == 0 {
		return nil, fmt.Errorf("psar: no unknown data present")
	}
	size := int64(startdatOffset) - int64(unknownDataOffset)
	if size <= 0 {
		size = c.size - int64(unknownDataOffset)
	}
	raw, err := ibinary.ReadBytesAt(c.r, int64(unknownDataOffset), int(size))
	if err != nil {
		return nil, fmt.Errorf("psar: read unknown data: %w", err)
	}
	plain := make([]byte, len(raw))
	n, err := pgd.DecryptPGD(raw, 2, nil)
	if err != nil {
		return nil, fmt.Errorf("psar: decrypt unknown data: %w", err)
	}
	copy(plain, raw[:n])
	return plain[:n], nil
}

// Startdat locates and splits a disc's STARTDAT trailer into its BIN and
// PNG payloads. off is the PSAR-absolute offset of the STARTDAT header, as
// read from the single-/multi-disc container's startdat offset field.
func (c *Container) Startdat(off int64) (binData, pngData []byte, err error) {
	hdr, err := ParseStartdatHeader(c.r, off)
	if err != nil {
		return nil, nil, err
	}

	total := int64(hdr.HeaderSize) + int64(hdr.DataSize)
	full, err := ibinary.ReadBytesAt(c.r, off, int(total))
	if err != nil {
		return nil, nil, fmt.Errorf("psar: read STARTDAT payload: %w", err)
	}

	binData = full
	pngStart := int64(hdr.HeaderSize)
	if pngStart > int64(len(full)) {
		pngStart = int64(len(full))
	}
	pngData = full[pngStart:]
	return binData, pngData, nil
}

// StartdatOffset reads the container's startdat_offset field, at the fixed
// position its single- or multi-disc marker field layout puts it.
func StartdatOffset(r io.ReaderAt, multiDisc bool) (uint32, error) {
	pos := int64(singleDiscStartdatOffsetPos)
	if multiDisc {
		pos = multiDiscStartdatOffsetPos
	}
	buf, err := ibinary.ReadBytesAt(r, pos, 4)
	if err != nil {
		return 0, fmt.Errorf("psar: read startdat offset: %w", err)
	}
	return binary.LittleEndian.Uint32(buf), nil
}
