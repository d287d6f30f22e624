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

// Package extract is the top-level PBP-to-BIN/CUE orchestrator: it opens a
// PBP's DATA.PSAR segment, walks every disc the PSAR describes, rebuilds
// each disc's fixed data track and CDDA audio tracks, and writes a BIN/CUE
// pair (plus diagnostic intermediates) per disc.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/has207/psxtract-go/cdda"
	"github.com/has207/psxtract-go/crypto"
	"github.com/has207/psxtract-go/cue"
	"github.com/has207/psxtract-go/lz"
	"github.com/has207/psxtract-go/md5verify"
	"github.com/has207/psxtract-go/pbp"
	"github.com/has207/psxtract-go/psar"
	"github.com/has207/psxtract-go/sector"
)

// ExtractionContext bundles the pluggable primitives a full extraction
// needs but does not implement itself (PGD/KIRK crypto, the ISO block
// decompressor, the ATRAC3 codec), plus the output filesystem and the
// optional catalogs that refine its output.
type ExtractionContext struct {
	PGD  crypto.PGDDecryptor
	KIRK crypto.KIRKInitializer

	Decomp lz.Decompressor
	Codec  cdda.AudioCodec

	// Fs is the filesystem Extract writes every output file to.
	Fs afero.Fs

	// CacheBlocks bounds each disc's decompressed-ISO-block LRU cache; zero
	// uses psar.NewAssembler's own default.
	CacheBlocks int

	// Pregap, when set, overrides the built-in pregap catalog for this
	// extraction's serial, taking precedence over cue.LookupPregapOverride.
	Pregap *cue.PregapOverride

	// Catalog, when set, is checked against each disc's fixed data track
	// and the verdict recorded on its DiscResult. A missing or mismatched
	// entry is never fatal.
	Catalog *md5verify.Catalog
}

// DiscResult summarizes one disc's reconstruction.
type DiscResult struct {
	Disc   int // 0-based
	Serial string
	Title  string

	CuePath       string
	DataTrackPath string // the fixed, sector-rebuilt data track referenced by CuePath

	Sector       *sector.Result
	StoppedEarly bool // true when sector.ErrUnexpectedMode truncated the image

	AudioTracks int
	Warnings    []string
	MD5         *md5verify.Result
}

func (r *DiscResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Extract reconstructs every disc a PBP describes, writing BIN/CUE output
// (plus diagnostic intermediates) under outDir on ectx.Fs. Discs are
// processed serially; ctx is checked once per disc, not per sector.
func Extract(ctx context.Context, ectx *ExtractionContext, pbpData io.ReaderAt, pbpSize int64, outDir string) ([]*DiscResult, error) {
	pkg, err := pbp.Open(pbpData, pbpSize)
	if err != nil {
		return nil, fmt.Errorf("extract: open PBP: %w", err)
	}
	psarSeg, err := pkg.Segment(pbp.SegmentDataPSAR)
	if err != nil {
		return nil, fmt.Errorf("extract: locate DATA.PSAR: %w", err)
	}

	container, err := psar.Open(psarSeg, psarSeg.Size(), ectx.PGD)
	if err != nil {
		return nil, fmt.Errorf("extract: open PSAR: %w", err)
	}

	if err := ectx.Fs.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("extract: create output directory: %w", err)
	}

	if err := extractStartdat(container, psarSeg, ectx, outDir); err != nil {
		return nil, fmt.Errorf("extract: STARTDAT: %w", err)
	}

	multi := container.IsMultiDisc()
	discCount := container.DiscCount()

	results := make([]*DiscResult, 0, discCount)
	for d := 0; d < discCount; d++ {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		res, err := extractDisc(ctx, ectx, container, psarSeg, d, multi, outDir)
		if err != nil {
			return results, fmt.Errorf("extract: disc %d: %w", d+1, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// names is the fixed intermediate/output filename scheme for one disc,
// parameterized by the disc's 1-based number and whether the title is
// multi-disc (single-disc titles use unsuffixed names).
type names struct {
	dir string // where diagnostic intermediates for this disc are written

	rawDataTrack string
	fixedTrack   string
	isoHeader    string
	trash        string
	overdump     string
	specialData  string
	specialPNG   string
	unknownData  string
	cueSheet     string
}

func namesFor(outDir string, disc int, multi bool) names {
	discNum := disc + 1
	suffix := ""
	dir := outDir
	if multi {
		suffix = fmt.Sprintf("_%d", discNum)
		dir = filepath.Join(outDir, fmt.Sprintf("disc_%d", discNum))
	}
	return names{
		dir:          dir,
		rawDataTrack: filepath.Join(dir, "DATA_TRACK"+suffix+".BIN"),
		fixedTrack:   filepath.Join(outDir, "DATA_TRACK"+suffix+"_FIXED.BIN"),
		isoHeader:    filepath.Join(dir, "ISO_HEADER.BIN"),
		trash:        filepath.Join(dir, "TRASH.BIN"),
		overdump:     filepath.Join(dir, "OVERDUMP.BIN"),
		specialData:  filepath.Join(dir, "SPECIAL_DATA.BIN"),
		specialPNG:   filepath.Join(dir, "SPECIAL_DATA.PNG"),
		unknownData:  filepath.Join(dir, "UNKNOWN_DATA.BIN"),
		cueSheet:     filepath.Join(outDir, "CDROM"+suffix+".CUE"),
	}
}

func audioNames(outDir, diagDir string, discNum, trackNum int) (at3, wav, bin string) {
	base := fmt.Sprintf("D%d_TRACK%02d", discNum, trackNum)
	return filepath.Join(diagDir, base+".AT3"), filepath.Join(diagDir, base+".WAV"), filepath.Join(outDir, base+".BIN")
}

// extractStartdat writes the container-level STARTDAT.BIN/PNG intro image,
// when the container declares one. A zero startdat_offset is valid (no
// STARTDAT.* is emitted) and is not an error.
func extractStartdat(container *psar.Container, psarSeg io.ReaderAt, ectx *ExtractionContext, outDir string) error {
	off, err := psar.StartdatOffset(psarSeg, container.IsMultiDisc())
	if err != nil {
		return fmt.Errorf("read startdat offset: %w", err)
	}
	if off == 0 {
		return nil
	}
	binData, pngData, err := container.Startdat(int64(off))
	if err != nil {
		return fmt.Errorf("read STARTDAT payload: %w", err)
	}
	if err := writeFile(ectx.Fs, filepath.Join(outDir, "STARTDAT.BIN"), binData); err != nil {
		return err
	}
	return writeFile(ectx.Fs, filepath.Join(outDir, "STARTDAT.PNG"), pngData)
}

func extractDisc(ctx context.Context, ectx *ExtractionContext, container *psar.Container, psarSeg io.ReaderAt, disc int, multi bool, outDir string) (*DiscResult, error) {
	n := namesFor(outDir, disc, multi)
	if err := ectx.Fs.MkdirAll(n.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create disc directory: %w", err)
	}

	res := &DiscResult{Disc: disc, CuePath: n.cueSheet, DataTrackPath: n.fixedTrack}

	header, err := container.DiscHeader(disc, ectx.PGD)
	if err != nil {
		return nil, fmt.Errorf("decrypt disc header: %w", err)
	}
	if err := writeFile(ectx.Fs, n.isoHeader, header); err != nil {
		res.warn("write ISO_HEADER.BIN: %v", err)
	}

	info, err := psar.ParseDiscHeaderInfo(header)
	if err != nil {
		return nil, fmt.Errorf("parse disc header: %w", err)
	}
	res.Serial, res.Title = info.Serial, info.Title
	if res.Serial == "" {
		res.Serial = container.Serial()
	}
	if res.Title == "" {
		res.Title = container.Title()
	}

	discOffset, err := container.DiscOffset(disc)
	if err != nil {
		return nil, fmt.Errorf("disc offset: %w", err)
	}

	asm, err := psar.NewAssembler(psarSeg, discOffset, header, ectx.Decomp, ectx.CacheBlocks)
	if err != nil {
		return nil, fmt.Errorf("build block assembler: %w", err)
	}

	if err := buildDataTrack(ectx.Fs, asm, n); err != nil {
		return nil, fmt.Errorf("build data track: %w", err)
	}

	entries := psar.ParseCueEntries(header)
	if len(entries) == 0 {
		return nil, fmt.Errorf("disc %d: no CUE entries in header", disc+1)
	}
	expectedSectors := entries[0].Index01Frames() - cue.GapFrames

	secResult, stoppedEarly, err := fixDataTrack(ectx.Fs, n, expectedSectors)
	if err != nil {
		return nil, fmt.Errorf("fix sectors: %w", err)
	}
	res.Sector = secResult
	res.StoppedEarly = stoppedEarly
	if stoppedEarly {
		res.warn("sector fixup stopped early at an unexpected sector mode; image kept partial")
	}
	dataGap := expectedSectors - secResult.TotalSectors + cue.GapFrames

	cueTracks := []cue.Track{{
		FileName:   filepath.Base(n.fixedTrack),
		Number:     1,
		Audio:      false,
		HasIndex00: false,
	}}

	audioTracks, err := extractAudioTracks(ctx, ectx, container, header, entries, disc, res.Serial, dataGap, outDir, n.dir)
	if err != nil {
		return nil, fmt.Errorf("extract audio tracks: %w", err)
	}
	cueTracks = append(cueTracks, audioTracks...)
	res.AudioTracks = len(audioTracks)

	cueFile, err := ectx.Fs.Create(n.cueSheet)
	if err != nil {
		return nil, fmt.Errorf("create CUE sheet: %w", err)
	}
	defer cueFile.Close()
	if err := cue.WriteSheet(cueFile, cueTracks); err != nil {
		return nil, fmt.Errorf("write CUE sheet: %w", err)
	}

	if info.SpecialDataOffset != 0 {
		if err := extractSpecialData(ectx, container, info.SpecialDataOffset, n); err != nil {
			res.warn("special data: %v", err)
		}
	}
	if info.UnknownDataOffset != 0 {
		if err := extractUnknownData(ectx, container, info.UnknownDataOffset, n); err != nil {
			res.warn("unknown data: %v", err)
		}
	}

	if ectx.Catalog != nil {
		md5res, err := verifyDataTrack(ectx.Fs, n.fixedTrack, res.Serial, ectx.Catalog)
		if err != nil {
			res.warn("md5 verify: %v", err)
		} else {
			res.MD5 = &md5res
			if md5res.InCatalog && !md5res.Matched {
				res.warn("md5 mismatch against catalog entry for %s", res.Serial)
			}
		}
	}

	return res, nil
}

func buildDataTrack(fs afero.Fs, asm *psar.Assembler, n names) error {
	dataTrack, err := fs.Create(n.rawDataTrack)
	if err != nil {
		return fmt.Errorf("create %s: %w", n.rawDataTrack, err)
	}
	defer dataTrack.Close()
	trash, err := fs.Create(n.trash)
	if err != nil {
		return fmt.Errorf("create %s: %w", n.trash, err)
	}
	defer trash.Close()
	overdump, err := fs.Create(n.overdump)
	if err != nil {
		return fmt.Errorf("create %s: %w", n.overdump, err)
	}
	defer overdump.Close()

	_, err = psar.BuildDataTrack(asm, dataTrack, trash, overdump)
	return err
}

// fixDataTrack runs sector.FixImage over the raw data track, treating
// sector.ErrUnexpectedMode as a non-fatal early stop (the original
// extractor's make_cdrom behavior on an anomalous sector mode): the
// partial Result and whatever was already written are kept.
func fixDataTrack(fs afero.Fs, n names, expectedSectors int) (*sector.Result, bool, error) {
	raw, err := fs.Open(n.rawDataTrack)
	if err != nil {
		return nil, false, fmt.Errorf("open raw data track: %w", err)
	}
	defer raw.Close()

	fixed, err := fs.Create(n.fixedTrack)
	if err != nil {
		return nil, false, fmt.Errorf("create fixed data track: %w", err)
	}
	defer fixed.Close()

	result, err := sector.FixImage(raw, fixed, expectedSectors, sector.PolicyInfer)
	if err != nil {
		if errors.Is(err, sector.ErrUnexpectedMode) {
			return result, true, nil
		}
		return nil, false, err
	}
	return result, false, nil
}

func extractAudioTracks(
	ctx context.Context,
	ectx *ExtractionContext,
	container *psar.Container,
	header []byte,
	entries []psar.CueEntry,
	disc int,
	serial string,
	dataGap int,
	outDir, diagDir string,
) ([]cue.Track, error) {
	cddaEntries := psar.ParseCddaEntries(header)
	if len(cddaEntries) == 0 {
		return nil, nil
	}

	leadout, hasLeadout := psar.ParseCueLeadout(header)
	var tracks []cue.Track

	for idx, cddaEntry := range cddaEntries {
		trackNum := idx + 2
		cueIdx := idx + 1
		if cueIdx >= len(entries) {
			break
		}
		cueEntry := entries[cueIdx]

		var nextFrames int
		switch {
		case cueIdx+1 < len(entries):
			nextFrames = entries[cueIdx+1].Index01Frames()
		case hasLeadout:
			nextFrames = leadout.Index01Frames()
		default:
			nextFrames = cueEntry.Index01Frames()
		}
		trackSectors := nextFrames - cueEntry.Index01Frames()
		if trackSectors < 0 {
			return tracks, fmt.Errorf("track %d: track size calculation failed: next INDEX 01 at frame %d precedes this track's at frame %d",
				trackNum, nextFrames, cueEntry.Index01Frames())
		}

		track, err := extractOneAudioTrack(ctx, ectx, container, disc, trackNum, cddaEntry, cueEntry, trackSectors, serial, dataGap, outDir, diagDir)
		if err != nil {
			return tracks, fmt.Errorf("track %d: %w", trackNum, err)
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func extractOneAudioTrack(
	ctx context.Context,
	ectx *ExtractionContext,
	container *psar.Container,
	disc, trackNum int,
	cddaEntry psar.CddaEntry,
	cueEntry psar.CueEntry,
	trackSectors int,
	serial string,
	dataGap int,
	outDir, diagDir string,
) (cue.Track, error) {
	raw, err := container.ReadCddaTrack(disc, cddaEntry)
	if err != nil {
		return cue.Track{}, fmt.Errorf("read CDDA track: %w", err)
	}
	if err := cdda.Descramble(raw, cddaEntry.Checksum); err != nil {
		return cue.Track{}, fmt.Errorf("descramble: %w", err)
	}

	at3Header := cdda.NewAT3Header(trackSectors, cddaEntry.Size)
	at3Path, wavPath, binPath := audioNames(outDir, diagDir, disc+1, trackNum)

	at3File, err := ectx.Fs.Create(at3Path)
	if err != nil {
		return cue.Track{}, fmt.Errorf("create AT3: %w", err)
	}
	if _, err := at3Header.WriteTo(at3File); err != nil {
		at3File.Close()
		return cue.Track{}, fmt.Errorf("write AT3 header: %w", err)
	}
	if _, err := at3File.Write(raw); err != nil {
		at3File.Close()
		return cue.Track{}, fmt.Errorf("write AT3 payload: %w", err)
	}
	if err := at3File.Close(); err != nil {
		return cue.Track{}, fmt.Errorf("close AT3: %w", err)
	}

	if err := decodeToWAV(ctx, ectx, at3Path, wavPath); err != nil {
		return cue.Track{}, err
	}

	pregapFrames := ectx.pregapFor(serial, trackNum)
	if trackNum == 2 {
		pregapFrames = dataGap
	}
	nextPregapFrames, hasNextOverride := ectx.nextPregapFor(serial, trackNum)

	if err := reassembleTrackBin(ectx.Fs, wavPath, binPath, cdda.BuildBinOptions{
		PregapFrames:     pregapFrames,
		NextPregapFrames: nextPregapFrames,
		HasNextOverride:  hasNextOverride,
		DefaultGapFrames: cue.GapFrames,
		ExpectedSize:     int64(at3Header.FactParam1) * 4,
	}); err != nil {
		return cue.Track{}, err
	}

	ff1 := cueEntry.Index01Frames() - cue.GapFrames
	index00, index01 := cue.TrackIndices(ff1, pregapFrames)
	return cue.Track{
		FileName:      filepath.Base(binPath),
		Number:        trackNum,
		Audio:         true,
		HasIndex00:    true,
		Index00Frames: index00,
		Index01Frames: index01,
	}, nil
}

func decodeToWAV(ctx context.Context, ectx *ExtractionContext, at3Path, wavPath string) error {
	at3In, err := ectx.Fs.Open(at3Path)
	if err != nil {
		return fmt.Errorf("reopen AT3: %w", err)
	}
	defer at3In.Close()

	wavOut, err := ectx.Fs.Create(wavPath)
	if err != nil {
		return fmt.Errorf("create WAV: %w", err)
	}
	defer wavOut.Close()

	if err := ectx.Codec.DecodeToWAV(ctx, at3In, wavOut); err != nil {
		return fmt.Errorf("decode ATRAC3: %w", err)
	}
	return nil
}

func reassembleTrackBin(fs afero.Fs, wavPath, binPath string, opts cdda.BuildBinOptions) error {
	wavIn, err := fs.Open(wavPath)
	if err != nil {
		return fmt.Errorf("reopen WAV: %w", err)
	}
	defer wavIn.Close()

	stat, err := fs.Stat(wavPath)
	if err != nil {
		return fmt.Errorf("stat WAV: %w", err)
	}

	binOut, err := fs.Create(binPath)
	if err != nil {
		return fmt.Errorf("create track BIN: %w", err)
	}
	defer binOut.Close()

	_, err = cdda.BuildTrackBin(binOut, wavIn, stat.Size(), opts)
	if err != nil {
		return fmt.Errorf("reassemble track BIN: %w", err)
	}
	return nil
}

// pregapFor resolves trackNum's own pregap length: an explicitly supplied
// override takes precedence over the built-in catalog, which in turn
// defaults to cue.GapFrames.
func (ectx *ExtractionContext) pregapFor(serial string, trackNum int) int {
	if ectx.Pregap != nil && ectx.Pregap.Serial == serial {
		if idx := trackNum - 2; idx >= 0 && idx < len(ectx.Pregap.Timestamps) {
			return ectx.Pregap.Timestamps[idx].Frames()
		}
	}
	return cue.ResolvePregapFrames(serial, trackNum)
}

// nextPregapFor resolves the pregap length the track following trackNum
// will use, reporting ok == false when no override (explicit or cataloged)
// applies to it.
func (ectx *ExtractionContext) nextPregapFor(serial string, trackNum int) (frames int, ok bool) {
	nextTrack := trackNum + 1
	if ectx.Pregap != nil && ectx.Pregap.Serial == serial {
		if idx := nextTrack - 2; idx >= 0 && idx < len(ectx.Pregap.Timestamps) {
			return ectx.Pregap.Timestamps[idx].Frames(), true
		}
	}
	if ov, found := cue.LookupPregapOverride(serial); found {
		if idx := nextTrack - 2; idx >= 0 && idx < len(ov.Timestamps) {
			return ov.Timestamps[idx].Frames(), true
		}
	}
	return 0, false
}

// extractSpecialData decrypts and writes a disc's optional intro-screen PNG
// blob. Failure is never fatal to the surrounding extraction: the spec
// treats this payload as diagnostic, not structural.
func extractSpecialData(ectx *ExtractionContext, container *psar.Container, offset uint32, n names) error {
	blob, png, err := container.SpecialData(ectx.PGD, offset)
	if err != nil {
		return err
	}
	if err := writeFile(ectx.Fs, n.specialData, blob); err != nil {
		return err
	}
	if len(png) > 0 {
		if err := writeFile(ectx.Fs, n.specialPNG, png); err != nil {
			return err
		}
	}
	return nil
}

// extractUnknownData decrypts and writes a disc's optional unidentified
// binary region. The STARTDAT bound is left unresolved here (0), which
// makes Container.UnknownData fall back to reading to the end of the PSAR
// stream; this is a best-effort diagnostic dump, not a structural input.
func extractUnknownData(ectx *ExtractionContext, container *psar.Container, offset uint32, n names) error {
	data, err := container.UnknownData(ectx.PGD, offset, 0)
	if err != nil {
		return err
	}
	return writeFile(ectx.Fs, n.unknownData, data)
}

func verifyDataTrack(fs afero.Fs, path, serial string, cat *md5verify.Catalog) (md5verify.Result, error) {
	f, err := fs.Open(path)
	if err != nil {
		return md5verify.Result{}, err
	}
	defer f.Close()
	return md5verify.Verify(cat, serial, f)
}

func writeFile(fs afero.Fs, path string, data []byte) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}
