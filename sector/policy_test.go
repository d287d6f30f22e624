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

package sector

import (
	"bytes"
	"testing"
)

// bootImage builds a synthetic image whose first 16 sectors form the
// bootloader with a chosen EDC fill, followed by extraSectors identical
// Form 2 sectors.
func bootImage(t *testing.T, bootEDCFilled [4]bool, extraSectors int) []byte {
	t.Helper()

	var buf bytes.Buffer
	for i := 0; i < bootloaderSectors; i++ {
		s := rawSector(Mode2, 0x20, 0x11) // Form 2
		filled := false
		for j, idx := range inferredBootSectors {
			if idx == i {
				filled = bootEDCFilled[j]
			}
		}
		if filled {
			copy(s[form2EDCOffset:form2EDCOffset+4], []byte{0x01, 0x02, 0x03, 0x04})
		} else {
			copy(s[form2EDCOffset:form2EDCOffset+4], []byte{0, 0, 0, 0})
		}
		buf.Write(s)
	}
	for i := 0; i < extraSectors; i++ {
		buf.Write(rawSector(Mode2, 0x20, 0x22))
	}
	return buf.Bytes()
}

func TestFixImage_InfersZeroPolicy(t *testing.T) {
	t.Parallel()

	img := bootImage(t, [4]bool{false, false, false, true}, 0) // 3 without, 1 with -> ZERO
	var out bytes.Buffer
	result, err := FixImage(bytes.NewReader(img), &out, bootloaderSectors, PolicyInfer)
	if err != nil {
		t.Fatalf("FixImage() error = %v", err)
	}
	if result.Form2BootSectorsWithoutEDC != 3 || result.Form2BootSectorsWithEDC != 1 {
		t.Errorf("boot EDC tally = %d/%d, want 3/1", result.Form2BootSectorsWithoutEDC, result.Form2BootSectorsWithEDC)
	}

	fixed := out.Bytes()
	sec15 := fixed[15*Size : 16*Size]
	if got := sec15[form2EDCOffset : form2EDCOffset+4]; !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Errorf("sector 15 EDC = %x, want zero under inferred ZERO policy", got)
	}
}

func TestFixImage_InfersComputePolicy(t *testing.T) {
	t.Parallel()

	img := bootImage(t, [4]bool{true, true, true, false}, 0) // 3 with, 1 without -> COMPUTE
	var out bytes.Buffer
	result, err := FixImage(bytes.NewReader(img), &out, bootloaderSectors, PolicyInfer)
	if err != nil {
		t.Fatalf("FixImage() error = %v", err)
	}
	if result.Form2BootSectorsWithEDC != 3 || result.Form2BootSectorsWithoutEDC != 1 {
		t.Errorf("boot EDC tally = %d/%d, want 3/1", result.Form2BootSectorsWithEDC, result.Form2BootSectorsWithoutEDC)
	}

	fixed := out.Bytes()
	sec12 := fixed[12*Size : 13*Size]
	want := computeEDC(sec12[subheaderOffset:form2EDCOffset])
	if got := sec12[form2EDCOffset : form2EDCOffset+4]; !bytes.Equal(got, want[:]) {
		t.Errorf("sector 12 EDC = %x, want computed %x", got, want)
	}
}

func TestFixImage_TieGoesToZero(t *testing.T) {
	t.Parallel()

	img := bootImage(t, [4]bool{true, true, false, false}, 0) // 2/2 tie -> ZERO
	var out bytes.Buffer
	if _, err := FixImage(bytes.NewReader(img), &out, bootloaderSectors, PolicyInfer); err != nil {
		t.Fatalf("FixImage() error = %v", err)
	}
	fixed := out.Bytes()
	sec13 := fixed[13*Size : 14*Size]
	if got := sec13[form2EDCOffset : form2EDCOffset+4]; !bytes.Equal(got, []byte{0, 0, 0, 0}) {
		t.Errorf("sector 13 EDC = %x, want zero on tie", got)
	}
}
