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

// Package md5verify checks a reconstructed data track's MD5 against a
// catalog of known-good checksums, so a reconstructed disc can be flagged
// as matching (or not matching) a reference dump without shelling out to
// an external checker.
package md5verify

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// recordSep delimits catalog entries within the decompressed blob. It is a
// control byte that never legitimately appears in a CUE sheet's text.
const recordSep = '\x1e'

// Entry is one title's catalog record: its serial, the data track's known
// MD5 (lowercase hex), and the CUE text it was extracted from.
type Entry struct {
	Serial  string
	MD5     string
	CueText string
}

// Catalog is a serial-indexed MD5 checksum lookup, loaded from a
// zstd-compressed blob of concatenated CUE sheet texts.
type Catalog struct {
	bySerial map[string]Entry
}

// NewCatalog returns an empty, ready-to-populate catalog.
func NewCatalog() *Catalog {
	return &Catalog{bySerial: make(map[string]Entry)}
}

// Add inserts or replaces the entry for serial.
func (c *Catalog) Add(serial, md5Hex, cueText string) {
	c.bySerial[normalizeSerial(serial)] = Entry{Serial: serial, MD5: strings.ToLower(md5Hex), CueText: cueText}
}

// Lookup finds a catalog entry by serial, normalizing '-' and '_' and case
// the way redump-style serials are commonly written inconsistently.
func (c *Catalog) Lookup(serial string) (Entry, bool) {
	e, ok := c.bySerial[normalizeSerial(serial)]
	return e, ok
}

// Len returns the number of entries in the catalog.
func (c *Catalog) Len() int {
	return len(c.bySerial)
}

func normalizeSerial(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// LoadCatalog decompresses and parses a catalog blob written by SaveCatalog.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("md5verify: open zstd reader: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("md5verify: decompress catalog: %w", err)
	}

	cat := NewCatalog()
	for _, record := range strings.Split(string(raw), string(recordSep)) {
		if strings.TrimSpace(record) == "" {
			continue
		}
		serial, md5Hex, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("md5verify: parse catalog record: %w", err)
		}
		cat.Add(serial, md5Hex, record)
	}
	return cat, nil
}

// parseRecord extracts a record's serial (from its leading "SERIAL <id>"
// line) and its data track MD5 (from a "REM MD5 <hex32>" line, the
// convention redump-style CUE sheets use to embed a reference checksum).
func parseRecord(record string) (serial, md5Hex string, err error) {
	scanner := bufio.NewScanner(strings.NewReader(record))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "SERIAL "):
			serial = strings.TrimSpace(strings.TrimPrefix(line, "SERIAL "))
		case strings.HasPrefix(strings.ToUpper(line), "REM MD5 "):
			fields := strings.Fields(line)
			if len(fields) == 3 {
				md5Hex = strings.ToLower(fields[2])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", "", err
	}
	if serial == "" {
		return "", "", fmt.Errorf("missing SERIAL line")
	}
	if len(md5Hex) != 32 {
		return "", "", fmt.Errorf("missing or malformed REM MD5 line for serial %s", serial)
	}
	return serial, md5Hex, nil
}

// SaveCatalog zstd-compresses entries (each rendered as "SERIAL
// <serial>\n<cueText>", record-separated) and writes the blob to w.
func SaveCatalog(w io.Writer, entries []Entry) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("md5verify: open zstd writer: %w", err)
	}
	for i, e := range entries {
		if i > 0 {
			if _, err := zw.Write([]byte{recordSep}); err != nil {
				return fmt.Errorf("md5verify: write record separator: %w", err)
			}
		}
		if _, err := fmt.Fprintf(zw, "SERIAL %s\n%s", e.Serial, e.CueText); err != nil {
			return fmt.Errorf("md5verify: write record: %w", err)
		}
		if !strings.Contains(e.CueText, "REM MD5") {
			if _, err := fmt.Fprintf(zw, "\nREM MD5 %s\n", strings.ToLower(e.MD5)); err != nil {
				return fmt.Errorf("md5verify: write MD5 line: %w", err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("md5verify: close zstd writer: %w", err)
	}
	return nil
}
