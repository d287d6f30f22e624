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
	"errors"
	"fmt"
	"io"
)

// wavHeaderSize is the canonical 44-byte PCM WAVE header a decoder emits
// ahead of raw samples.
const wavHeaderSize = 44

// ErrWAVTooShort indicates a decoded WAV file is too small to contain even
// its own header, let alone any audio.
var ErrWAVTooShort = errors.New("cdda: decoded WAV shorter than its header")

// BuildBinOptions parameterizes BuildTrackBin's pregap and padding
// arithmetic for a single audio track.
type BuildBinOptions struct {
	// PregapFrames is this track's own pregap length in CD-ROM frames
	// (75 frames/second); track 2 uses the disc's computed data gap,
	// later tracks default to 150 unless a catalog override applies.
	PregapFrames int
	// NextPregapFrames and HasNextOverride describe the following
	// track's pregap, when a catalog override specifies one shorter
	// than the default: this track is extended to absorb the shortfall.
	NextPregapFrames int
	HasNextOverride  bool
	// DefaultGapFrames is the gap length an unmapped track assumes
	// (conventionally 150, i.e. the cue package's GapFrames).
	DefaultGapFrames int
	// ExpectedSize is the AT3 track's fact_param1*4 byte length, used to
	// clamp the reassembled track to its known true size. A negative
	// value skips clamping and trailing zero-padding.
	ExpectedSize int64
}

// BuildTrackBin reassembles one CDDA track's final BIN bytes from a decoded
// WAV stream: a run of zero bytes standing in for the track's pregap,
// followed by the track's PCM payload (the WAV's body, past its 44-byte
// header). wavSize is the total size of the WAV the decoder produced.
func BuildTrackBin(w io.Writer, wav io.ReaderAt, wavSize int64, opts BuildBinOptions) (int64, error) {
	if wavSize < wavHeaderSize {
		return 0, ErrWAVTooShort
	}

	pregapSize := int64(opts.PregapFrames-1) * sectorSize
	if pregapSize < 0 {
		pregapSize = 0
	}

	dataSize := wavSize - wavHeaderSize - pregapSize
	if opts.HasNextOverride && opts.NextPregapFrames < opts.DefaultGapFrames {
		dataSize += int64(opts.DefaultGapFrames-opts.NextPregapFrames) * sectorSize
	}

	if opts.ExpectedSize >= 0 && dataSize+pregapSize > opts.ExpectedSize {
		dataSize = opts.ExpectedSize - pregapSize
	}
	if dataSize < 0 {
		dataSize = 0
	}

	var total int64
	n, err := writeZeros(w, pregapSize)
	total += n
	if err != nil {
		return total, fmt.Errorf("cdda: write pregap: %w", err)
	}

	copied, err := io.Copy(w, io.NewSectionReader(wav, wavHeaderSize, dataSize))
	total += copied
	if err != nil {
		return total, fmt.Errorf("cdda: copy PCM payload: %w", err)
	}

	if opts.ExpectedSize >= 0 && total < opts.ExpectedSize {
		n, err := writeZeros(w, opts.ExpectedSize-total)
		total += n
		if err != nil {
			return total, fmt.Errorf("cdda: pad to expected size: %w", err)
		}
	}

	return total, nil
}

func writeZeros(w io.Writer, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	const chunk = 32 * 1024
	buf := make([]byte, chunk)
	var written int64
	for written < n {
		want := n - written
		if want > chunk {
			want = chunk
		}
		wrote, err := w.Write(buf[:want])
		written += int64(wrote)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
