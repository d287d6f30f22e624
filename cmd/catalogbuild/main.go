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

// Command catalogbuild walks a directory of redump-style .cue/.bin dumps and
// produces the zstd-compressed MD5 catalog blob psxtract's -catalog flag
// consumes.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/has207/psxtract-go/md5verify"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <dump-dir> <output-catalog>\n", os.Args[0])
		os.Exit(1)
	}

	dumpDir := os.Args[1]
	outputPath := os.Args[2]

	var entries []md5verify.Entry
	err := filepath.Walk(dumpDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ".cue") {
			return nil
		}
		entry, err := buildEntry(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", path, err)
			return nil
		}
		entries = append(entries, entry)
		fmt.Printf("Added %s (%s)\n", entry.Serial, entry.MD5)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error walking %s: %v\n", dumpDir, err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no .cue files found under %s\n", dumpDir)
		os.Exit(1)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", outputPath, err)
		os.Exit(1)
	}
	defer f.Close()

	if err := md5verify.SaveCatalog(f, entries); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing catalog: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d entries to %s\n", len(entries), outputPath)
}

// buildEntry reads the cue sheet at cuePath, locates the first FILE line's
// referenced BIN, and hashes it to build this title's catalog entry. The
// serial is taken from the cue file's base name, the same naming convention
// redump-style dump sets use.
func buildEntry(cuePath string) (md5verify.Entry, error) {
	raw, err := os.ReadFile(cuePath)
	if err != nil {
		return md5verify.Entry{}, fmt.Errorf("read cue: %w", err)
	}

	binName, err := firstFileName(string(raw))
	if err != nil {
		return md5verify.Entry{}, err
	}
	binPath := filepath.Join(filepath.Dir(cuePath), binName)

	binFile, err := os.Open(binPath)
	if err != nil {
		return md5verify.Entry{}, fmt.Errorf("open data track %s: %w", binName, err)
	}
	defer binFile.Close()

	md5Hex, err := md5verify.Sum(binFile)
	if err != nil {
		return md5verify.Entry{}, fmt.Errorf("hash data track: %w", err)
	}

	base := filepath.Base(cuePath)
	serial := strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
	serial = strings.ReplaceAll(serial, "-", "_")

	return md5verify.Entry{Serial: serial, MD5: md5Hex, CueText: string(raw)}, nil
}

// firstFileName extracts the quoted filename from a cue sheet's first FILE
// line: FILE "DATA_TRACK.BIN" BINARY.
func firstFileName(cueText string) (string, error) {
	for _, line := range strings.Split(cueText, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToUpper(line), "FILE ") {
			continue
		}
		start := strings.IndexByte(line, '"')
		if start < 0 {
			continue
		}
		end := strings.IndexByte(line[start+1:], '"')
		if end < 0 {
			continue
		}
		return line[start+1 : start+1+end], nil
	}
	return "", fmt.Errorf("no FILE line found")
}
