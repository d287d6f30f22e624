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

// Package cdda reconstructs CDDA audio tracks stored as scrambled ATRAC3
// data inside a PSAR container: descrambling, RIFF/WAVE header synthesis,
// and WAV-to-BIN reassembly with pregap handling.
package cdda

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// chunkBytes is the size of one descrambling chunk.
const chunkBytes = 0x180

// chunkWords is chunkBytes expressed in 32-bit words.
const chunkWords = chunkBytes / 4

// ErrMisaligned indicates a descramble buffer's length isn't a multiple of
// four bytes, so it cannot be read as a stream of 32-bit words.
var ErrMisaligned = errors.New("cdda: descramble buffer not word-aligned")

// Descramble reverses the PSAR container's CDDA scrambling in place. seed is
// the per-track checksum from the CDDA entry table; data is the raw track
// bytes read from the PSAR (a whole number of chunkBytes-sized chunks is not
// required — a trailing partial chunk is simply left untouched, matching
// how the original extractor only processes whole 0x180-byte chunks).
func Descramble(data []byte, seed uint32) error {
	if len(data)%4 != 0 {
		return fmt.Errorf("descramble %d bytes: %w", len(data), ErrMisaligned)
	}

	totalChunks := len(data) / chunkBytes
	blocks := totalChunks / 16
	rest := totalChunks % 16

	tmp2 := seed
	wordOffset := 0

	processChunk := func() {
		tmp := tmp2
		for k := 0; k < chunkWords; k++ {
			off := (wordOffset + k) * 4
			value := binary.LittleEndian.Uint32(data[off : off+4])
			binary.LittleEndian.PutUint32(data[off:off+4], tmp^value)
			tmp = tmp2 + value*123456789
		}
		tmp2 = rotr32(tmp2, 1)
		wordOffset += chunkWords
	}

	for b := 0; b < blocks; b++ {
		for c := 0; c < 16; c++ {
			processChunk()
		}
	}
	for c := 0; c < rest; c++ {
		processChunk()
	}

	return nil
}

func rotr32(v uint32, n uint) uint32 {
	n &= 31
	if n == 0 {
		return v
	}
	return (v >> n) | (v << (32 - n))
}
