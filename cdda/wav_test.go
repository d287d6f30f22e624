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
	"bytes"
	"testing"
)

func fakeWAV(pcmSize int) ([]byte, int64) {
	data := make([]byte, wavHeaderSize+pcmSize)
	for i := wavHeaderSize; i < len(data); i++ {
		data[i] = byte(i)
	}
	return data, int64(len(data))
}

func TestBuildTrackBin_TooShort(t *testing.T) {
	t.Parallel()
	wav := make([]byte, 10)
	_, err := BuildTrackBin(&bytes.Buffer{}, bytes.NewReader(wav), int64(len(wav)), BuildBinOptions{
		PregapFrames: 150, DefaultGapFrames: 150, ExpectedSize: -1,
	})
	if err != ErrWAVTooShort {
		t.Errorf("BuildTrackBin() error = %v, want ErrWAVTooShort", err)
	}
}

func TestBuildTrackBin_WritesPregapThenPCM(t *testing.T) {
	t.Parallel()

	pregapFrames := 150
	pcmSize := 1_000_000
	wav, wavSize := fakeWAV(pcmSize)

	var out bytes.Buffer
	n, err := BuildTrackBin(&out, bytes.NewReader(wav), wavSize, BuildBinOptions{
		PregapFrames:     pregapFrames,
		DefaultGapFrames: 150,
		ExpectedSize:     -1,
	})
	if err != nil {
		t.Fatalf("BuildTrackBin() error = %v", err)
	}

	wantPregap := int64(pregapFrames-1) * sectorSize
	wantDataSize := wavSize - wavHeaderSize - wantPregap
	wantTotal := wantPregap + wantDataSize
	if n != wantTotal {
		t.Fatalf("BuildTrackBin() returned %d, want %d", n, wantTotal)
	}

	result := out.Bytes()
	for i, b := range result[:wantPregap] {
		if b != 0 {
			t.Fatalf("pregap byte %d = %#x, want 0", i, b)
		}
	}
	wantPCM := wav[wavHeaderSize : wavHeaderSize+wantDataSize]
	if !bytes.Equal(result[wantPregap:], wantPCM) {
		t.Errorf("PCM payload mismatch")
	}
}

func TestBuildTrackBin_ExtendsForShortNextPregap(t *testing.T) {
	t.Parallel()

	pcmSize := 500000
	wav, wavSize := fakeWAV(pcmSize)

	baseline, _ := BuildTrackBin(&bytes.Buffer{}, bytes.NewReader(wav), wavSize, BuildBinOptions{
		PregapFrames:     150,
		DefaultGapFrames: 150,
		ExpectedSize:     -1,
	})
	extended, _ := BuildTrackBin(&bytes.Buffer{}, bytes.NewReader(wav), wavSize, BuildBinOptions{
		PregapFrames:     150,
		DefaultGapFrames: 150,
		HasNextOverride:  true,
		NextPregapFrames: 100,
		ExpectedSize:     -1,
	})

	wantExtra := int64(150-100) * sectorSize
	if extended-baseline != wantExtra {
		t.Errorf("extension = %d, want %d", extended-baseline, wantExtra)
	}
}

func TestBuildTrackBin_ClampsToExpectedSize(t *testing.T) {
	t.Parallel()

	pcmSize := 1_000_000
	wav, wavSize := fakeWAV(pcmSize)
	// Unclamped data+pregap always equals pcmSize by construction of
	// fakeWAV; an expected size smaller than that forces the clamp.
	expected := int64(pcmSize) - 1000

	var out bytes.Buffer
	n, err := BuildTrackBin(&out, bytes.NewReader(wav), wavSize, BuildBinOptions{
		PregapFrames:     150,
		DefaultGapFrames: 150,
		ExpectedSize:     expected,
	})
	if err != nil {
		t.Fatalf("BuildTrackBin() error = %v", err)
	}
	if n != expected {
		t.Errorf("BuildTrackBin() wrote %d bytes total, want clamped %d", n, expected)
	}
	if int64(out.Len()) != expected {
		t.Errorf("output length = %d, want %d", out.Len(), expected)
	}
}

func TestBuildTrackBin_PadsToExpectedSize(t *testing.T) {
	t.Parallel()

	pcmSize := 1_000_000
	wav, wavSize := fakeWAV(pcmSize)
	expected := int64(pcmSize) + 5000 // larger than the unclamped total

	var out bytes.Buffer
	n, err := BuildTrackBin(&out, bytes.NewReader(wav), wavSize, BuildBinOptions{
		PregapFrames:     150,
		DefaultGapFrames: 150,
		ExpectedSize:     expected,
	})
	if err != nil {
		t.Fatalf("BuildTrackBin() error = %v", err)
	}
	if n != expected {
		t.Errorf("BuildTrackBin() wrote %d bytes total, want padded %d", n, expected)
	}
	if int64(out.Len()) != expected {
		t.Errorf("output length = %d, want %d", out.Len(), expected)
	}
}
