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

package cdda

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ATRAC3's WAVE_FORMAT tag and fixed stream parameters, as the PSP firmware
// always encodes CDDA tracks.
const (
	atrac3CodecID  = 624 // 0x270
	atrac3Channels = 2
	sampleRate     = 44100
	atrac3Unknown1 = 16538
	bytesPerFrame  = 384
	paramSize      = 14

	sectorSize = 2352
)

// HeaderSize is the fixed byte length of an AT3 RIFF/WAVE header, not
// including the PCM payload that follows it: RIFF+size+WAVE (12) + fmt
// chunk header+body (8+32) + fact chunk header+body (8+8) + data chunk
// header (8).
const HeaderSize = 76

// AT3Header is the RIFF/WAVE/fact header PSXTRACT prepends to every
// descrambled ATRAC3 track before the raw frame data.
type AT3Header struct {
	RiffSize   uint32
	FactParam1 uint32
	DataSize   uint32
}

// NewAT3Header builds the header for a track whose descrambled payload is
// dataSize bytes, spanning trackSectors CD-ROM sectors once converted back
// to a data rate the fact chunk can describe.
func NewAT3Header(trackSectors int, dataSize uint32) AT3Header {
	return AT3Header{
		RiffSize:   dataSize + HeaderSize - 8,
		FactParam1: uint32(trackSectors) * sectorSize / 4,
		DataSize:   dataSize,
	}
}

// WriteTo writes the 76-byte RIFF/WAVE/fact/data header to w, in the exact
// byte layout PSXTRACT's decoder expects.
func (h AT3Header) WriteTo(w io.Writer) (int64, error) {
	fields := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		h.RiffSize,
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(32), // fmt chunk size
		uint16(atrac3CodecID),
		uint16(atrac3Channels),
		uint32(sampleRate),
		uint32(atrac3Unknown1),
		uint16(bytesPerFrame),
		uint16(0), // bits per sample
		uint16(paramSize),
		uint16(1),    // param1
		uint16(4096), // param2
		uint16(0),    // param3
		uint16(0),    // param4
		uint16(0),    // param5
		uint16(1),    // param6
		uint16(0),    // param7
		[4]byte{'f', 'a', 'c', 't'},
		uint32(8), // fact chunk size
		h.FactParam1,
		uint32(1024), // fact param2
		[4]byte{'d', 'a', 't', 'a'},
		h.DataSize,
	}

	var written int64
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return written, fmt.Errorf("cdda: write AT3 header: %w", err)
		}
		written += int64(binarySize(f))
	}
	return written, nil
}

func binarySize(v any) int {
	switch v.(type) {
	case [4]byte:
		return 4
	case uint32:
		return 4
	case uint16:
		return 2
	default:
		return 0
	}
}
