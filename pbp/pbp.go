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

// Package pbp parses the outer EBOOT.PBP container: a fixed eight-segment
// table of little-endian offsets following a four-byte magic.
package pbp

import (
	"errors"
	"fmt"
	"io"

	ibinary "github.com/has207/psxtract-go/internal/binary"
)

// Magic is the four-byte signature at the start of every PBP file.
var Magic = [4]byte{0x00, 'P', 'B', 'P'}

// Segment identifies one of the eight entries in a PBP's offset table.
type Segment int

// The eight segments a PBP header enumerates, in on-disk order.
const (
	SegmentParamSFO Segment = iota
	SegmentIcon0PNG
	SegmentIcon1PMF
	SegmentPic0PNG
	SegmentPic1PNG
	SegmentSnd0AT3
	SegmentDataPSP
	SegmentDataPSAR
	segmentCount
)

func (s Segment) String() string {
	names := [segmentCount]string{
		"PARAM.SFO", "ICON0.PNG", "ICON1.PMF", "PIC0.PNG",
		"PIC1.PNG", "SND0.AT3", "DATA.PSP", "DATA.PSAR",
	}
	if s < 0 || int(s) >= len(names) {
		return fmt.Sprintf("Segment(%d)", int(s))
	}
	return names[s]
}

// ErrInvalidMagic indicates the file does not begin with the PBP signature.
var ErrInvalidMagic = errors.New("pbp: invalid magic")

// ErrTruncated indicates the file is too short to hold a full header or a
// segment's bounds run past the end of the file.
var ErrTruncated = errors.New("pbp: truncated file")

const headerSize = 4 + 4 + 4*int(segmentCount)

// Package is a parsed PBP container: the magic, segment offset table, and a
// handle to the underlying file used to read each segment on demand.
type Package struct {
	reader  io.ReaderAt
	size    int64
	version uint32
	offsets [segmentCount]uint32
}

// Open parses the PBP header from r, which must report size total bytes.
func Open(r io.ReaderAt, size int64) (*Package, error) {
	if size < int64(headerSize) {
		return nil, fmt.Errorf("pbp: header: %w", ErrTruncated)
	}

	header, err := ibinary.ReadBytesAt(r, 0, headerSize)
	if err != nil {
		return nil, fmt.Errorf("pbp: read header: %w", err)
	}

	if !ibinary.BytesEqual(header[:4], Magic[:]) {
		return nil, ErrInvalidMagic
	}

	pkg := &Package{reader: r, size: size, version: leUint32(header[4:8])}
	for i := range pkg.offsets {
		off := 8 + i*4
		pkg.offsets[i] = leUint32(header[off : off+4])
	}

	for i := 0; i < int(segmentCount); i++ {
		start, end, err := pkg.bounds(Segment(i))
		if err != nil {
			return nil, err
		}
		if end < start || end > size {
			return nil, fmt.Errorf("pbp: segment %s: %w", Segment(i), ErrTruncated)
		}
	}

	return pkg, nil
}

// bounds returns the absolute [start, end) byte range of seg within the
// file. The final segment (DATA.PSAR) runs to the end of the file.
func (p *Package) bounds(seg Segment) (start, end int64, err error) {
	if seg < 0 || int(seg) >= int(segmentCount) {
		return 0, 0, fmt.Errorf("pbp: %w: segment index %d", ErrTruncated, seg)
	}
	start = int64(p.offsets[seg])
	if int(seg)+1 < int(segmentCount) {
		end = int64(p.offsets[seg+1])
	} else {
		end = p.size
	}
	return start, end, nil
}

// Version returns the raw four-byte version field following the magic.
func (p *Package) Version() uint32 {
	return p.version
}

// Offset returns the absolute byte offset of seg within the PBP file.
func (p *Package) Offset(seg Segment) int64 {
	return int64(p.offsets[seg])
}

// Size returns the byte length of seg.
func (p *Package) Size(seg Segment) int64 {
	start, end, err := p.bounds(seg)
	if err != nil {
		return 0
	}
	return end - start
}

// Segment returns an io.SectionReader scoped to seg's bytes within the PBP.
func (p *Package) Segment(seg Segment) (*io.SectionReader, error) {
	start, end, err := p.bounds(seg)
	if err != nil {
		return nil, err
	}
	return io.NewSectionReader(p.reader, start, end-start), nil
}

// ReadSegment reads the entirety of seg into memory.
func (p *Package) ReadSegment(seg Segment) ([]byte, error) {
	start, end, err := p.bounds(seg)
	if err != nil {
		return nil, err
	}
	buf, err := ibinary.ReadBytesAt(p.reader, start, int(end-start))
	if err != nil {
		return nil, fmt.Errorf("pbp: read segment %s: %w", seg, err)
	}
	return buf, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
