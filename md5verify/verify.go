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

package md5verify

import (
	"crypto/md5" //nolint:gosec // matching a redump-style catalog, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
)

// Result is the outcome of checking a reconstructed data track against a
// catalog. It never causes extraction to fail on its own; a mismatch is
// surfaced to the caller as a warning, since a disc can legitimately not
// appear in the catalog or (for a patched/homebrew release) not match one
// that does.
type Result struct {
	Serial    string
	Expected  string // "" if the serial has no catalog entry
	Actual    string
	Matched   bool
	InCatalog bool
}

// Sum computes the lowercase hex MD5 of r's full contents.
func Sum(r io.Reader) (string, error) {
	h := md5.New() //nolint:gosec // see import comment
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("md5verify: hash data track: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify hashes r and compares it against the catalog entry for serial. A
// missing catalog entry is reported via InCatalog == false rather than an
// error.
func Verify(cat *Catalog, serial string, r io.Reader) (Result, error) {
	actual, err := Sum(r)
	if err != nil {
		return Result{}, err
	}
	res := Result{Serial: serial, Actual: actual}

	entry, ok := cat.Lookup(serial)
	if !ok {
		return res, nil
	}
	res.InCatalog = true
	res.Expected = entry.MD5
	res.Matched = entry.MD5 == actual
	return res, nil
}
