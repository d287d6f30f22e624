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

// Package sector rebuilds CD-ROM Mode 2 sector headers, EDC, and RS-PC P/Q
// parity for a raw (sync-less) data-track byte stream, producing a
// byte-exact 2352-bytes-per-sector image.
package sector

import (
	"errors"
	"fmt"
	"io"
)

// Size is the fixed length of a CD-ROM sector.
const Size = 2352

// Byte offsets within a sector.
const (
	headerOffset     = 12
	headerSize       = 4
	subheaderOffset  = 16
	subheaderSize    = 8
	form1UserOffset  = subheaderOffset + subheaderSize // 24
	form1UserSize    = 2048
	form1EDCOffset   = form1UserOffset + form1UserSize // 2072
	form1ParityPOff  = form1EDCOffset + 4              // 2076
	form1ParityPSize = 172
	form1ParityQOff  = form1ParityPOff + form1ParityPSize // 2248
	form1ParityQSize = 104
	form2UserOffset  = subheaderOffset + subheaderSize // 24
	form2UserSize    = 2324
	form2EDCOffset   = form2UserOffset + form2UserSize // 2348
)

// Sector modes, read from byte 3 of the header.
const (
	Mode0 = 0x00
	Mode1 = 0x01
	Mode2 = 0x02
)

// syncPattern is written verbatim to the first 12 bytes of every sector.
var syncPattern = [12]byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

// Errors returned by Fix, matching the taxonomy's fatal kinds.
var (
	ErrTruncated       = errors.New("sector: image shorter than expected sector count")
	ErrUnsupportedMode = errors.New("sector: mode 1 sector encountered, unsupported")
	ErrUnexpectedMode  = errors.New("sector: sector mode is not 0, 1, or 2")
	ErrMode0NotZero    = errors.New("sector: mode 0 sector contains non-zero user data")
)

// EDCPolicy controls how a Mode 2 Form 2 sector's EDC field is treated.
type EDCPolicy int

const (
	// PolicyInfer examines the bootloader's first four Form 2 sectors
	// (indices 12-15) to decide between Compute and Zero.
	PolicyInfer EDCPolicy = iota
	// PolicyKeep leaves the Form 2 EDC field untouched.
	PolicyKeep
	// PolicyCompute recomputes the Form 2 EDC field.
	PolicyCompute
	// PolicyZero writes four zero bytes to the Form 2 EDC field.
	PolicyZero
)

// MSF is a BCD-encoded Minutes:Seconds:Frames CD-ROM timestamp.
type MSF struct {
	MM, SS, FF byte
}

// Bytes returns the MSF as the three header bytes [mm, ss, ff].
func (m MSF) Bytes() [3]byte {
	return [3]byte{m.MM, m.SS, m.FF}
}

// Incr advances an MSF by one frame, carrying BCD digits the way the
// original fixer does: a low nibble reaching 0xA is corrected by adding 6.
func (m MSF) Incr() MSF {
	m.FF++
	if m.FF&0x0F == 0x0A {
		m.FF += 0x06
	}
	if m.FF == 0x75 {
		m.FF = 0x00
		m.SS++
		if m.SS&0x0F == 0x0A {
			m.SS += 0x06
		}
		if m.SS == 0x60 {
			m.SS = 0x00
			m.MM++
			if m.MM&0x0F == 0x0A {
				m.MM += 0x06
			}
		}
	}
	return m
}

// startMSF is the address of the first sector of the data track.
var startMSF = MSF{MM: 0x00, SS: 0x02, FF: 0x00}

// WarningKind classifies a non-fatal condition noticed while fixing sectors.
type WarningKind int

// Warning kinds.
const (
	WarningSubheaderMismatch WarningKind = iota
)

// Warning records a single non-fatal anomaly encountered during Fix.
type Warning struct {
	MSF     MSF
	Kind    WarningKind
	Details string
}

// maxWarnings bounds the number of warnings retained; additional warnings
// are only reflected in Result.WarningsDropped.
const maxWarnings = 256

// Result summarizes one Fix run.
type Result struct {
	Mode0Sectors               int
	Mode2Form1Sectors          int
	Mode2Form2Sectors          int
	Form2BootSectorsWithEDC    int
	Form2BootSectorsWithoutEDC int
	TotalSectors               int
	Warnings                   []Warning
	WarningsDropped            int
}

func (r *Result) addWarning(w Warning) {
	if len(r.Warnings) < maxWarnings {
		r.Warnings = append(r.Warnings, w)
		return
	}
	r.WarningsDropped++
}

// Fix reads numSectors raw 2352-byte sectors from r (already block-aligned,
// no synthesized sync/header yet), rebuilds sync, BCD MSF headers, EDC, and
// RS-PC P/Q parity, and writes the result to w. policy controls Form 2 EDC
// handling and must already be resolved: Fix returns an error for
// PolicyInfer. The bootloader inference pass is done by FixImage, which
// then calls Fix with the resolved policy.
//
// A confirmed-zero Mode 0 sector is never assumed to be the start of the
// track's trailing zero-padding on its own: Fix scans everything after it
// to confirm the rest of the stream really is all zero before switching to
// synthesizing zero sectors for the remainder of numSectors. If the scan
// finds more non-zero data, the Mode 0 sector is treated like a Mode 2
// sector instead — sync and an MSF header are written over it, its mode
// byte is forced to Mode2 — and Fix keeps reading normally.
func Fix(r io.ReaderAt, w io.Writer, numSectors int, policy EDCPolicy) (*Result, error) {
	if policy == PolicyInfer {
		return nil, fmt.Errorf("sector: Fix requires a resolved policy, got PolicyInfer: %w", errUseInfer)
	}

	result := &Result{}
	sector := make([]byte, Size)
	msf := startMSF
	reachedZeroPadding := false
	var pos int64

	for i := 0; i < numSectors; i++ {
		if !reachedZeroPadding {
			if n, err := r.ReadAt(sector, pos); n < Size {
				if err == nil {
					err = io.ErrUnexpectedEOF
				}
				return result, fmt.Errorf("sector %d: %w: %v", i, ErrTruncated, err)
			}
		} else {
			for j := range sector {
				sector[j] = 0
			}
		}

		mode := sector[headerOffset+3]
		if reachedZeroPadding {
			mode = Mode0
		}

		switch mode {
		case Mode0:
			if !reachedZeroPadding {
				if err := checkModeZeroIsZero(sector); err != nil {
					return result, err
				}
				isPadding, err := remainderIsZero(r, pos+Size)
				if err != nil {
					return result, err
				}
				if isPadding {
					reachedZeroPadding = true
					for j := range sector {
						sector[j] = 0
					}
				} else {
					writeMode2Header(sector, msf)
				}
			}
			result.Mode0Sectors++
		case Mode1:
			return result, ErrUnsupportedMode
		case Mode2:
			fixMode2Sector(sector, msf, policy, result)
		default:
			return result, ErrUnexpectedMode
		}
		result.TotalSectors++

		if _, err := w.Write(sector); err != nil {
			return result, fmt.Errorf("sector %d: write: %w", i, err)
		}
		msf = msf.Incr()
		pos += Size
	}

	return result, nil
}

var errUseInfer = errors.New("call FixImage, which performs bootloader inference before delegating to Fix")

func checkModeZeroIsZero(sector []byte) error {
	for _, b := range sector[headerOffset+headerSize:] {
		if b != 0 {
			return ErrMode0NotZero
		}
	}
	return nil
}

// remainderIsZero reports whether every byte from pos to the end of r is
// zero, reading in Size-byte chunks. A partial trailing chunk is treated as
// a truncated image, the same fatal condition a short read anywhere else in
// the stream would be. Reaching end-of-stream with no partial chunk counts
// as an all-zero (empty) remainder.
func remainderIsZero(r io.ReaderAt, pos int64) (bool, error) {
	buf := make([]byte, Size)
	for {
		n, err := r.ReadAt(buf, pos)
		if n == 0 && errors.Is(err, io.EOF) {
			return true, nil
		}
		if n < Size {
			if err == nil {
				err = io.ErrUnexpectedEOF
			}
			return false, fmt.Errorf("sector: scan for zero padding: %w: %v", ErrTruncated, err)
		}
		for _, b := range buf {
			if b != 0 {
				return false, nil
			}
		}
		pos += Size
	}
}

// writeMode2Header overwrites a confirmed-zero Mode 0 sector's sync field
// and header with the canonical sync pattern and this sector's MSF address,
// forcing its mode byte to Mode2. The sector's body is left untouched (it is
// already known to be all zero), so no EDC/parity recompute is needed.
func writeMode2Header(sector []byte, msf MSF) {
	copy(sector[:12], syncPattern[:])
	b := msf.Bytes()
	sector[headerOffset+0] = b[0]
	sector[headerOffset+1] = b[1]
	sector[headerOffset+2] = b[2]
	sector[headerOffset+3] = Mode2
}

func fixMode2Sector(sector []byte, msf MSF, policy EDCPolicy, result *Result) {
	fileNum := sector[subheaderOffset+0]
	channel := sector[subheaderOffset+1]
	submode := sector[subheaderOffset+2]
	datatype := sector[subheaderOffset+3]
	fileNumCopy := sector[subheaderOffset+4]
	channelCopy := sector[subheaderOffset+5]
	submodeCopy := sector[subheaderOffset+6]
	datatypeCopy := sector[subheaderOffset+7]

	if fileNum != fileNumCopy || channel != channelCopy || submode != submodeCopy || datatype != datatypeCopy {
		result.addWarning(Warning{
			MSF:  msf,
			Kind: WarningSubheaderMismatch,
			Details: fmt.Sprintf("subheader copy mismatch: %02x%02x%02x%02x vs %02x%02x%02x%02x",
				fileNum, channel, submode, datatype, fileNumCopy, channelCopy, submodeCopy, datatypeCopy),
		})
	}

	isForm2 := submode&0x20 != 0
	writeMode2Header(sector, msf)

	if isForm2 {
		fixForm2EDC(sector, policy)
		result.Mode2Form2Sectors++
		return
	}

	fixForm1(sector)
	result.Mode2Form1Sectors++
}

func fixForm2EDC(sector []byte, policy EDCPolicy) {
	switch policy {
	case PolicyKeep:
		return
	case PolicyCompute:
		edc := computeEDC(sector[subheaderOffset:form2EDCOffset])
		copy(sector[form2EDCOffset:form2EDCOffset+4], edc[:])
	case PolicyZero, PolicyInfer:
		for i := 0; i < 4; i++ {
			sector[form2EDCOffset+i] = 0
		}
	}
}

func fixForm1(sector []byte) {
	edc := computeEDC(sector[subheaderOffset:form1EDCOffset])
	copy(sector[form1EDCOffset:form1EDCOffset+4], edc[:])

	// Parity is computed with the header temporarily zeroed.
	var savedHeader [headerSize]byte
	copy(savedHeader[:], sector[headerOffset:headerOffset+headerSize])
	for i := 0; i < headerSize; i++ {
		sector[headerOffset+i] = 0
	}

	pInput := sector[headerOffset:form1EDCOffset+4]
	p := pParity(pInput)
	copy(sector[form1ParityPOff:form1ParityPOff+form1ParityPSize], p)

	qInput := sector[headerOffset : form1ParityPOff+form1ParityPSize]
	q := qParity(qInput)
	copy(sector[form1ParityQOff:form1ParityQOff+form1ParityQSize], q)

	copy(sector[headerOffset:headerOffset+headerSize], savedHeader[:])
}

// FormOf reports whether sector's submode byte marks it Form 2.
func FormOf(sector []byte) bool {
	return sector[subheaderOffset+2]&0x20 != 0
}
