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

package sector

import "fmt"

const polyEDC = 0xD8018001

var edcLUT [256]uint32

// gfPow/gfLog implement GF(2^8) multiplication for the RS-PC parity code,
// built over the field generator 0x11d. gfPow is extended to 509 entries so
// a sum of two logs never needs a modulo reduction.
var gfPow [509]byte
var gfLog [256]byte

func init() {
	for i := 0; i < 256; i++ {
		r := uint32(i)
		for j := 0; j < 8; j++ {
			if r&1 != 0 {
				r = (r >> 1) ^ polyEDC
			} else {
				r >>= 1
			}
		}
		edcLUT[i] = r
	}

	var b uint16 = 1
	for i := 0; i < 255; i++ {
		gfPow[i] = byte(b)
		gfLog[b] = byte(i)
		b <<= 1
		if b&0x100 != 0 {
			b ^= 0x11d
		}
	}
	for i := 255; i < 509; i++ {
		gfPow[i] = gfPow[i-255]
	}
}

// computeEDC returns the little-endian four-byte reflected CRC-32 (poly
// 0xD8018001) used for CD-ROM XA EDC fields.
func computeEDC(data []byte) [4]byte {
	var edc uint32
	for _, b := range data {
		index := byte(edc) ^ b
		edc = (edc >> 8) ^ edcLUT[index]
	}
	return [4]byte{byte(edc), byte(edc >> 8), byte(edc >> 16), byte(edc >> 24)}
}

func gfMult(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfPow[int(gfLog[a])+int(gfLog[b])]
}

// pParityInputLen and qParityInputLen are the input lengths pParity and qParity
// require: header+subheader+user-data+edc, and that plus the P-parity
// field respectively.
const (
	pParityInputLen = headerSize + subheaderSize + form1UserSize + 4 // 2064
	qParityInputLen = pParityInputLen + form1ParityPSize             // 2236
)

// pParity computes the 172-byte P-parity field of a Form 1 sector. data
// must be exactly pParityInputLen bytes: the header (treated as zero),
// subheader, user data, and EDC, in that order.
func pParity(data []byte) []byte {
	if len(data) != pParityInputLen {
		panic(fmt.Sprintf("sector: pParity: want %d bytes, got %d", pParityInputLen, len(data)))
	}

	parity := make([]byte, form1ParityPSize)
	for col := 0; col < 43; col++ {
		var r0Lsb, r0Msb, r1Lsb, r1Msb byte
		pos := 2 * col
		for row := 0; row < 24; row++ {
			dataLsb := data[pos]
			dataMsb := data[pos+1]
			if pos < headerSize {
				dataLsb = 0
			}
			if pos < headerSize-1 {
				dataMsb = 0
			}

			feedbackLsb := dataLsb ^ r1Lsb
			feedbackMsb := dataMsb ^ r1Msb
			r1Lsb = r0Lsb ^ gfMult(feedbackLsb, 3)
			r1Msb = r0Msb ^ gfMult(feedbackMsb, 3)
			r0Lsb = gfMult(feedbackLsb, 2)
			r0Msb = gfMult(feedbackMsb, 2)

			pos += 86
		}
		parity[col*2] = r1Lsb
		parity[col*2+1] = r1Msb
		parity[86+col*2] = r0Lsb
		parity[86+col*2+1] = r0Msb
	}
	return parity
}

// qParity computes the 104-byte Q-parity field of a Form 1 sector. data
// must be exactly qParityInputLen bytes: the header (treated as zero),
// subheader, user data, EDC, and P-parity, in that order.
func qParity(data []byte) []byte {
	if len(data) != qParityInputLen {
		panic(fmt.Sprintf("sector: qParity: want %d bytes, got %d", qParityInputLen, len(data)))
	}

	parity := make([]byte, form1ParityQSize)
	for diag := 0; diag < 26; diag++ {
		var r0Lsb, r0Msb, r1Lsb, r1Msb byte
		pos := 2 * 43 * diag
		for step := 0; step < 43; step++ {
			if pos >= qParityInputLen {
				pos -= qParityInputLen
			}
			dataLsb := data[pos]
			dataMsb := data[pos+1]
			if pos < headerSize {
				dataLsb = 0
			}
			if pos < headerSize-1 {
				dataMsb = 0
			}

			feedbackLsb := dataLsb ^ r1Lsb
			feedbackMsb := dataMsb ^ r1Msb
			r1Lsb = r0Lsb ^ gfMult(feedbackLsb, 3)
			r1Msb = r0Msb ^ gfMult(feedbackMsb, 3)
			r0Lsb = gfMult(feedbackLsb, 2)
			r0Msb = gfMult(feedbackMsb, 2)

			pos += 88
		}
		parity[diag*2] = r1Lsb
		parity[diag*2+1] = r1Msb
		parity[52+diag*2] = r0Lsb
		parity[52+diag*2+1] = r0Msb
	}
	return parity
}
