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

// Package cue builds CUE sheets for reconstructed PSX discs: the BIN/CUE
// text format itself, and the catalog of per-disc audio pregap lengths that
// some titles need in place of the standard 150-frame default.
package cue

import (
	"fmt"
	"io"
)

// GapFrames is the standard CD-ROM pregap length, in 75-Hz frames (2
// seconds). Audio tracks default to this unless the disc's serial appears
// in the pregap override catalog.
const GapFrames = 150

// SectorBytes is the byte size of one CD-ROM sector.
const SectorBytes = 2352

// GapBytes is GapFrames expressed in bytes.
const GapBytes = GapFrames * SectorBytes

// Track is one line group of a CUE sheet: a FILE declaration followed by a
// TRACK declaration and its INDEX lines.
type Track struct {
	FileName string
	Number   int
	Audio    bool
	// HasIndex00 controls whether an INDEX 00 (pregap) line is emitted;
	// track 1 never has one.
	HasIndex00    bool
	Index00Frames int
	Index01Frames int
}

// WriteSheet writes tracks as a standard multi-FILE BIN/CUE sheet.
func WriteSheet(w io.Writer, tracks []Track) error {
	for _, t := range tracks {
		if _, err := fmt.Fprintf(w, "FILE %q BINARY\n", t.FileName); err != nil {
			return err
		}
		mode := "MODE2/2352"
		if t.Audio {
			mode = "AUDIO"
		}
		if _, err := fmt.Fprintf(w, "  TRACK %02d %s\n", t.Number, mode); err != nil {
			return err
		}
		if t.HasIndex00 {
			if _, err := fmt.Fprintf(w, "    INDEX 00 %s\n", FormatMSF(t.Index00Frames)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "    INDEX 01 %s\n", FormatMSF(t.Index01Frames)); err != nil {
			return err
		}
	}
	return nil
}

// FormatMSF renders a total 75-Hz frame count as CUE's mm:ss:ff timestamp.
func FormatMSF(frames int) string {
	if frames < 0 {
		frames = 0
	}
	ff := frames % 75
	totalSeconds := frames / 75
	ss := totalSeconds % 60
	mm := totalSeconds / 60
	return fmt.Sprintf("%02d:%02d:%02d", mm, ss, ff)
}

// TrackIndices returns a track's INDEX 00 (pregap start) and INDEX 01
// (playback start) frame offsets, given the track's absolute start frame
// (ff1, as recorded in the PSAR's own CUE table) and its pregap length.
func TrackIndices(startFrame, pregapFrames int) (index00, index01 int) {
	return startFrame - pregapFrames, startFrame
}

// ResolvePregapFrames returns the pregap length, in frames, that trackNum
// (1-based, audio tracks start at 2) should use for a disc identified by
// serial: the catalog override if one exists for this track, else
// GapFrames.
func ResolvePregapFrames(serial string, trackNum int) int {
	override, ok := LookupPregapOverride(serial)
	if !ok {
		return GapFrames
	}
	idx := trackNum - 2
	if idx < 0 || idx >= len(override.Timestamps) {
		return GapFrames
	}
	return override.Timestamps[idx].Frames()
}
