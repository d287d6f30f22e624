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

// Package lz declares the block decompressor a compressed ISO block in a
// PSAR container depends on. The PSP firmware's LZ-class block codec is
// undocumented outside Sony's own SDK; this package models it purely as an
// interface so callers can plug in whatever implementation they have access
// to without this module needing to reproduce it.
package lz

import "errors"

// ErrNotImplemented is returned by FakeDecompressor when asked to handle a
// block that was actually compressed; it only passes stored data through.
var ErrNotImplemented = errors.New("lz: no block decompressor configured")

// Decompressor expands a single compressed ISO block into dst, returning
// the number of bytes written. Implementations must not retain src or dst
// past the call.
type Decompressor interface {
	Decompress(dst, src []byte) (int, error)
}

// FakeDecompressor is a Decompressor for tests: it requires the input to
// already be the decompressed size (i.e. a "stored" block) and simply
// copies it, returning ErrNotImplemented for anything smaller.
type FakeDecompressor struct{}

// Decompress implements Decompressor by copying src into dst unchanged.
func (FakeDecompressor) Decompress(dst, src []byte) (int, error) {
	if len(src) < len(dst) {
		return 0, ErrNotImplemented
	}
	return copy(dst, src[:len(dst)]), nil
}
