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

// Command psxtract reconstructs a PSOne Classic EBOOT.PBP into redump-style
// BIN/CUE disc images.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/has207/psxtract-go/cdda"
	"github.com/has207/psxtract-go/crypto"
	"github.com/has207/psxtract-go/extract"
	"github.com/has207/psxtract-go/lz"
	"github.com/has207/psxtract-go/md5verify"
)

var (
	inputFile   = flag.String("i", "", "input EBOOT.PBP path (required)")
	outDir      = flag.String("o", "", "output directory (required)")
	codecPath   = flag.String("codec", "", "path to an external ATRAC3-to-WAV decoder executable")
	codecArgs   = flag.String("codec-args", "", "space-separated arguments passed to -codec")
	catalogPath = flag.String("catalog", "", "path to a catalog blob built by catalogbuild, for MD5 verification")
	jsonOutput  = flag.Bool("json", false, "output results as JSON")
	version     = flag.Bool("version", false, "print version and exit")
)

const appVersion = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -i <eboot.pbp> -o <outdir> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Reconstructs a PSOne Classic EBOOT.PBP into BIN/CUE disc images.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -i GAME.PBP -o out/\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i GAME.PBP -o out/ -codec at3tool -codec-args '-d' -catalog redump.cat\n", os.Args[0])
	}
	flag.Parse()

	if *version {
		fmt.Printf("psxtract version %s\n", appVersion)
		os.Exit(0)
	}

	if *inputFile == "" || *outDir == "" {
		fmt.Fprintf(os.Stderr, "Error: -i and -o are required\n")
		flag.Usage()
		os.Exit(1)
	}

	f, err := os.Open(*inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening input: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error stating input: %v\n", err)
		os.Exit(1)
	}

	ectx := &extract.ExtractionContext{
		PGD:    crypto.FakeDecryptor{},
		KIRK:   crypto.FakeDecryptor{},
		Decomp: lz.FakeDecompressor{},
		Codec:  cdda.FakeCodec{},
		Fs:     afero.NewOsFs(),
	}

	if *codecPath != "" {
		var args []string
		if *codecArgs != "" {
			args = strings.Fields(*codecArgs)
		}
		ectx.Codec = cdda.ExecCodec{Path: *codecPath, Args: args}
	}

	if *catalogPath != "" {
		cf, err := os.Open(*catalogPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening catalog: %v\n", err)
			os.Exit(1)
		}
		cat, err := md5verify.LoadCatalog(cf)
		cf.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
			os.Exit(1)
		}
		ectx.Catalog = cat
	}

	results, err := extract.Extract(context.Background(), ectx, f, info.Size(), *outDir)
	if err != nil && len(results) == 0 {
		fmt.Fprintf(os.Stderr, "Error extracting: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		outputJSON(results, err)
	} else {
		outputText(results, err)
	}

	if err != nil {
		os.Exit(1)
	}
	for _, r := range results {
		if r.StoppedEarly {
			os.Exit(2)
		}
	}
}

func outputJSON(results []*extract.DiscResult, extractErr error) {
	out := struct {
		Discs []*extract.DiscResult `json:"discs"`
		Error string                `json:"error,omitempty"`
	}{Discs: results}
	if extractErr != nil {
		out.Error = extractErr.Error()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func outputText(results []*extract.DiscResult, extractErr error) {
	for _, r := range results {
		fmt.Printf("Disc %d: %s (%s)\n", r.Disc+1, r.Title, r.Serial)
		fmt.Printf("  CUE: %s\n", r.CuePath)
		fmt.Printf("  Data track: %s (%d sectors)\n", r.DataTrackPath, r.Sector.TotalSectors)
		if r.StoppedEarly {
			fmt.Printf("  WARNING: data track truncated at an unexpected sector mode\n")
		}
		fmt.Printf("  Audio tracks: %d\n", r.AudioTracks)
		if r.MD5 != nil {
			switch {
			case !r.MD5.InCatalog:
				fmt.Printf("  MD5: %s (no catalog entry)\n", r.MD5.Actual)
			case r.MD5.Matched:
				fmt.Printf("  MD5: %s (matches catalog)\n", r.MD5.Actual)
			default:
				fmt.Printf("  MD5: %s (catalog expects %s)\n", r.MD5.Actual, r.MD5.Expected)
			}
		}
		for _, w := range r.Warnings {
			fmt.Printf("  Warning: %s\n", w)
		}
	}
	if extractErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", extractErr)
	}
}
