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

package iso9660

import (
	"fmt"
	"strings"
)

// DiscCheck is the outcome of comparing a freshly written disc image against
// the serial decrypted from the PSAR header it was built from. It never
// causes extraction to fail; it is surfaced to the caller as a warning when
// the two disagree.
type DiscCheck struct {
	VolumeID   string
	RootSerial string // best-guess serial derived from the volume identifier
	ExpectedOK bool   // true if a root file name or RootSerial matches the expected serial
	RootFiles  []string
}

// VerifyAgainstSerial opens the CUE sheet just written for a disc and checks
// that its ISO9660 volume carries the expected disc serial somewhere in its
// root directory listing or volume identifier. This is a sanity check only:
// a PBP's disc header serial and its filesystem contents can legitimately
// disagree for homebrew or patched discs.
func VerifyAgainstSerial(cuePath, expectedSerial string) (*DiscCheck, error) {
	iso, err := OpenCue(cuePath)
	if err != nil {
		return nil, fmt.Errorf("open written cue for verification: %w", err)
	}
	defer func() { _ = iso.Close() }()

	files, err := iso.IterFiles(true)
	if err != nil {
		return nil, fmt.Errorf("list root files for verification: %w", err)
	}

	check := &DiscCheck{
		VolumeID: iso.GetVolumeID(),
	}
	check.RootSerial = serialFromVolumeID(check.VolumeID)

	normalizedExpected := normalizeSerial(expectedSerial)
	for _, f := range files {
		name := strings.TrimPrefix(f.Path, "/")
		if idx := strings.Index(name, ";"); idx != -1 {
			name = name[:idx]
		}
		check.RootFiles = append(check.RootFiles, name)
		if normalizeSerial(name) == normalizedExpected {
			check.ExpectedOK = true
		}
	}

	if !check.ExpectedOK && normalizeSerial(check.RootSerial) == normalizedExpected {
		check.ExpectedOK = true
	}

	return check, nil
}

// serialFromVolumeID extracts a PSX-style serial (e.g. SLUS_01234) from an
// ISO9660 volume identifier, which is sometimes the only place it appears.
func serialFromVolumeID(volumeID string) string {
	if volumeID == "" {
		return ""
	}
	serial := strings.ReplaceAll(volumeID, "-", "_")
	parts := strings.Split(serial, "_")
	if len(parts) > 2 {
		serial = strings.Join(parts[:2], "_")
	}
	return serial
}

func normalizeSerial(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}
