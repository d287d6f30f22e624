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

// Package psar parses the DATA.PSAR inner container of a PBP EBOOT: the
// single/multi-disc framing, the STARTDAT trailer, the per-disc encrypted
// header, and the ISO block table that header describes.
package psar

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/japanese"

	ibinary "github.com/has207/psxtract-go/internal/binary"
)

// Container markers, padded to their on-disk field widths.
var (
	singleDiscMagic = []byte("PSISOIMG0000")
	multiDiscMagic  = []byte("PSTITLEIMG0000")
)

// Fixed offsets within a PSAR stream and within a decrypted disc header.
const (
	singleDiscStartdatOffsetPos = 0x0C
	multiDiscStartdatOffsetPos  = 0x10

	discMapOffset = 0x200
	discMapSize   = 0x2A0

	isoBaseOffset   = 0x100000
	isoHeaderOffset = 0x400
	isoHeaderSize   = 0xB6600

	discHeaderSerialOffset      = 0x001
	discHeaderSerialSize        = 15
	discHeaderSpecialDataOffset = 0xE20
	discHeaderTitleOffset       = 0xE2C
	discHeaderTitleSize         = 128
	discHeaderUnknownDataOffset = 0xED4

	isoEntryTableOffset  = 0x3C00
	isoEntryRecordSize   = 32
	cddaEntryTableOffset = 0x800
	cddaEntryRecordSize  = 16
	cueEntryTableOffset  = 0x41E
	cueEntryRecordSize   = 10

	isoBlockSize = 16 * 2352 // 37632
)

// cueLeadoutType is the CUE_ENTRY.Type value marking the lead-out: it
// terminates the track list rather than describing a playable track.
const cueLeadoutType = 0xA2

// pngHeaderExtra is the extra offset, beyond a decrypted special-data blob's
// own start, at which the embedded intro-screen PNG payload begins.
const pngHeaderExtra = 0x1C

// ErrBadMagic indicates the PSAR stream starts with neither the
// single-disc nor multi-disc container signature.
var ErrBadMagic = errors.New("psar: unrecognized container signature")

// StartdatHeader is the trailer marking the start of the STARTDAT.BIN/PNG
// payload embedded after a disc's compressed data.
type StartdatHeader struct {
	HeaderSize uint32
	DataSize   uint32
}

const startdatHeaderRecordSize = 8 + 4 + 4 + 4 + 4 // magic + unk1 + unk2 + header_size + data_size

var startdatMagic = []byte("STARTDAT")

// ParseStartdatHeader reads a STARTDAT trailer at off within r.
func ParseStartdatHeader(r io.ReaderAt, off int64) (*StartdatHeader, error) {
	buf, err := ibinary.ReadBytesAt(r, off, startdatHeaderRecordSize)
	if err != nil {
		return nil, fmt.Errorf("psar: read STARTDAT header: %w", err)
	}
	if !ibinary.BytesEqual(buf[:8], startdatMagic) {
		return nil, fmt.Errorf("psar: %w: STARTDAT magic", ErrBadMagic)
	}
	return &StartdatHeader{
		HeaderSize: binary.LittleEndian.Uint32(buf[16:20]),
		DataSize:   binary.LittleEndian.Uint32(buf[20:24]),
	}, nil
}

// DiscMap is the decrypted multi-disc map: per-disc PSAR offsets plus the
// title's serial and display title.
type DiscMap struct {
	DiscOffsets       [5]uint32
	Serial            string
	Title             string
	SpecialDataOffset uint32
}

// ParseDiscMap decodes an already-PGD-decrypted disc map buffer (the bytes
// following a successful crypto.PGDDecryptor.DecryptPGD call over the raw
// discMapSize-byte region at discMapOffset).
func ParseDiscMap(plain []byte) (*DiscMap, error) {
	if len(plain) < 0x18C {
		return nil, fmt.Errorf("psar: disc map too short: %d bytes", len(plain))
	}
	m := &DiscMap{}
	for i := range m.DiscOffsets {
		m.DiscOffsets[i] = binary.LittleEndian.Uint32(plain[i*4 : i*4+4])
	}
	m.Serial = ibinary.CleanString(plain[0x65 : 0x65+15])
	m.Title = decodeTitle(plain[0x10C : 0x10C+128])
	m.SpecialDataOffset = binary.LittleEndian.Uint32(plain[0x84 : 0x88])
	return m, nil
}

// DiscHeaderInfo is the subset of a decrypted disc header's fixed fields
// that describe the disc itself, as opposed to its block/audio/cue tables.
type DiscHeaderInfo struct {
	Serial            string
	Title             string
	SpecialDataOffset uint32
	UnknownDataOffset uint32
}

// ParseDiscHeaderInfo reads a disc's serial, title, and the two optional
// auxiliary-blob offsets from an already-PGD-decrypted disc header buffer.
func ParseDiscHeaderInfo(decrypted []byte) (*DiscHeaderInfo, error) {
	if len(decrypted) < discHeaderUnknownDataOffset+4 {
		return nil, fmt.Errorf("psar: disc header too short: %d bytes", len(decrypted))
	}
	return &DiscHeaderInfo{
		Serial:            ibinary.CleanString(decrypted[discHeaderSerialOffset : discHeaderSerialOffset+discHeaderSerialSize]),
		Title:             decodeTitle(decrypted[discHeaderTitleOffset : discHeaderTitleOffset+discHeaderTitleSize]),
		SpecialDataOffset: binary.LittleEndian.Uint32(decrypted[discHeaderSpecialDataOffset : discHeaderSpecialDataOffset+4]),
		UnknownDataOffset: binary.LittleEndian.Uint32(decrypted[discHeaderUnknownDataOffset : discHeaderUnknownDataOffset+4]),
	}, nil
}

// decodeTitle cleans a disc's embedded title field the way ibinary.CleanString
// does, then falls back to Shift-JIS decoding when any byte isn't plain
// ASCII. Most PSOne Classics encode their title field as ASCII, but Japanese
// releases pack it as Shift-JIS; a failed decode just keeps the raw bytes.
func decodeTitle(data []byte) string {
	end := len(data)
	for i, c := range data {
		if c == 0 {
			end = i
			break
		}
	}
	raw := data[:end]
	for _, b := range raw {
		if b >= 0x80 {
			if decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(raw); err == nil {
				return strings.TrimSpace(string(decoded))
			}
			break
		}
	}
	return strings.TrimSpace(string(raw))
}

// IsoEntry is one record of a disc's compressed ISO block table.
type IsoEntry struct {
	Offset     uint32
	Size       uint16
	Marker     uint16
	SHA1Prefix [16]byte
}

// ParseIsoEntry decodes a single 32-byte ISO_ENTRY record: 4-byte offset,
// 2-byte size, 2-byte marker, 16-byte SHA-1 prefix, and 8 bytes of padding
// this struct does not parse.
func ParseIsoEntry(buf []byte) IsoEntry {
	var e IsoEntry
	e.Offset = binary.LittleEndian.Uint32(buf[0:4])
	e.Size = binary.LittleEndian.Uint16(buf[4:6])
	e.Marker = binary.LittleEndian.Uint16(buf[6:8])
	copy(e.SHA1Prefix[:], buf[8:24])
	return e
}

// CddaEntry is one record of a disc's CDDA track table. Checksum is the
// XOR-descramble seed cdda.Descramble needs for this track.
type CddaEntry struct {
	Offset   uint32
	Size     uint32
	Checksum uint32
}

// ParseCddaEntry decodes a single 16-byte CDDA_ENTRY record: 4-byte offset,
// 4-byte size, 4 bytes of padding, 4-byte checksum.
func ParseCddaEntry(buf []byte) CddaEntry {
	return CddaEntry{
		Offset:   binary.LittleEndian.Uint32(buf[0:4]),
		Size:     binary.LittleEndian.Uint32(buf[4:8]),
		Checksum: binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// CueEntry is one record of a disc's CUE index table: a track-type/number
// pair plus two BCD timestamps, INDEX 00 (pregap start) and INDEX 01
// (playback start).
type CueEntry struct {
	Type          uint16
	Num           byte
	I0M, I0S, I0F byte // BCD INDEX 00 minutes/seconds/frames
	I1M, I1S, I1F byte // BCD INDEX 01 minutes/seconds/frames
}

// ParseCueEntry decodes a single 10-byte CUE_ENTRY record.
func ParseCueEntry(buf []byte) CueEntry {
	return CueEntry{
		Type: binary.LittleEndian.Uint16(buf[0:2]),
		Num:  buf[2],
		I0M:  buf[3],
		I0S:  buf[4],
		I0F:  buf[5],
		// buf[6] is padding.
		I1M: buf[7],
		I1S: buf[8],
		I1F: buf[9],
	}
}

// CueLeadoutType exports cueLeadoutType for callers that need to recognize
// or fetch the disc's lead-out entry directly.
const CueLeadoutType = cueLeadoutType

// ParseCueLeadout scans a disc's CUE index table the same way ParseCueEntries
// does, but returns the lead-out record itself (Type == CueLeadoutType)
// instead of stopping before it. Its Index01Frames gives the disc's total
// length in frames, the implicit "next track" boundary for the last track.
func ParseCueLeadout(header []byte) (CueEntry, bool) {
	for off := cueEntryTableOffset; off+cueEntryRecordSize <= len(header); off += cueEntryRecordSize {
		e := ParseCueEntry(header[off : off+cueEntryRecordSize])
		if e.Type == cueLeadoutType {
			return e, true
		}
		if !ValidTrackTypes[e.Type] {
			return CueEntry{}, false
		}
	}
	return CueEntry{}, false
}

// ValidTrackTypes are the CUE_ENTRY.Type values a real track carries (data,
// audio, and their 0x20-bit variants). cueLeadoutType (0xA2) terminates the
// table rather than naming a playable track.
var ValidTrackTypes = map[uint16]bool{0x01: true, 0x21: true, 0x41: true, 0x61: true}

func bcdToDec(b byte) int {
	return 10*int(b-b%16)/16 + int(b%16)
}

func bcdFrames(mm, ss, ff byte) int {
	return bcdToDec(mm)*60*75 + bcdToDec(ss)*75 + bcdToDec(ff)
}

// Index00Frames converts the entry's INDEX 00 (pregap start) timestamp to a
// total 75-Hz frame count.
func (e CueEntry) Index00Frames() int {
	return bcdFrames(e.I0M, e.I0S, e.I0F)
}

// Index01Frames converts the entry's INDEX 01 (playback start) timestamp to
// a total 75-Hz frame count.
func (e CueEntry) Index01Frames() int {
	return bcdFrames(e.I1M, e.I1S, e.I1F)
}

// ParseCddaEntries reads a disc's CDDA track table, stopping at the first
// record whose Size is zero (the same sentinel convention as the ISO block
// table).
func ParseCddaEntries(header []byte) []CddaEntry {
	var entries []CddaEntry
	for off := cddaEntryTableOffset; off+cddaEntryRecordSize <= len(header); off += cddaEntryRecordSize {
		e := ParseCddaEntry(header[off : off+cddaEntryRecordSize])
		if e.Size == 0 {
			break
		}
		entries = append(entries, e)
	}
	return entries
}

// ParseCueEntries reads a disc's CUE index table. The first record is
// always track 01 (the data track); each surviving record thereafter
// corresponds to track number (index+1). Iteration stops at the lead-out
// record (Type == cueLeadoutType) or at the first record whose Type is
// otherwise not in ValidTrackTypes.
func ParseCueEntries(header []byte) []CueEntry {
	var entries []CueEntry
	for off := cueEntryTableOffset; off+cueEntryRecordSize <= len(header); off += cueEntryRecordSize {
		e := ParseCueEntry(header[off : off+cueEntryRecordSize])
		if e.Type == cueLeadoutType {
			break
		}
		if !ValidTrackTypes[e.Type] {
			break
		}
		entries = append(entries, e)
	}
	return entries
}
