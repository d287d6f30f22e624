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

// Package binary reads the fixed-offset record layouts PBP and PSAR
// containers are built from: magic-number checks, length-prefixed field
// slices, and the null/space-padded ASCII strings PSAR packs serials and
// titles into. Every format in this module describes its fields as byte
// offsets into a container, not as a sequence of scalars read off a
// stream, so the helpers here work against an io.ReaderAt rather than
// binary.Read onto a struct.
package binary

import (
	"fmt"
	"io"
	"strings"
)

// ReadAt reads len(buf) bytes from r at offset, wrapping any error with the
// offset that failed so callers can report which field read broke.
func ReadAt(r io.ReaderAt, offset int64, buf []byte) error {
	_, err := r.ReadAt(buf, offset)
	if err != nil {
		return fmt.Errorf("read at offset %d: %w", offset, err)
	}
	return nil
}

// ReadBytesAt reads n bytes from r at offset, the shape every PBP/PSAR
// record field (magic, header block, ISO/CDDA/CUE entry, disc-map slot)
// is read as before its own package decodes it further.
func ReadBytesAt(r io.ReaderAt, offset int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := ReadAt(r, offset, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// CleanString converts a fixed-width serial or title field to a string,
// trimming at the first null byte and any padding whitespace either side
// of it. PSAR pads both fields with nulls to a fixed width rather than
// length-prefixing them.
func CleanString(data []byte) string {
	end := len(data)
	for i, c := range data {
		if c == 0 {
			end = i
			break
		}
	}
	return strings.TrimSpace(string(data[:end]))
}

// BytesEqual compares two byte slices for equality; used throughout PBP
// and PSAR for magic-number and sync-pattern checks.
func BytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
