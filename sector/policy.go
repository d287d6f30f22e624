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
	"fmt"
	"io"
)

// bootloaderSectors is the number of sectors inspected to infer the Form 2
// EDC policy: the game's bootloader, always the first ISO block.
const bootloaderSectors = 16

// inferredBootSectors are the bootloader sector indices whose EDC field is
// examined to decide between PolicyCompute and PolicyZero.
var inferredBootSectors = [4]int{12, 13, 14, 15}

// FixImage fixes numSectors raw sectors read from r and writes the rebuilt
// image to w. If policy is PolicyInfer, the first bootloaderSectors sectors
// are inspected up front to choose between PolicyCompute and PolicyZero
// before any sector is written, matching how the original tool resolves an
// unspecified EDC mode from the disc's own bootloader.
func FixImage(r io.ReaderAt, w io.Writer, numSectors int, policy EDCPolicy) (*Result, error) {
	resolved := policy
	var inferResult Result
	if policy == PolicyInfer {
		var err error
		resolved, err = inferEDCPolicy(r, &inferResult)
		if err != nil {
			return nil, fmt.Errorf("sector: infer EDC policy: %w", err)
		}
	}

	sr := io.NewSectionReader(r, 0, sizeOrMax(r))
	result, err := Fix(sr, w, numSectors, resolved)
	if result != nil {
		result.Form2BootSectorsWithEDC = inferResult.Form2BootSectorsWithEDC
		result.Form2BootSectorsWithoutEDC = inferResult.Form2BootSectorsWithoutEDC
	}
	return result, err
}

// inferEDCPolicy reads the bootloader's sectors 12-15 and decides whether
// Form 2 EDC fields in this image were computed or left zero.
func inferEDCPolicy(r io.ReaderAt, result *Result) (EDCPolicy, error) {
	bootloader := make([]byte, bootloaderSectors*Size)
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, int64(len(bootloader))), bootloader); err != nil {
		return 0, fmt.Errorf("read bootloader: %w", err)
	}

	for _, idx := range inferredBootSectors {
		sec := bootloader[idx*Size : (idx+1)*Size]
		edc := uint32(sec[form2EDCOffset]) | uint32(sec[form2EDCOffset+1])<<8 |
			uint32(sec[form2EDCOffset+2])<<16 | uint32(sec[form2EDCOffset+3])<<24
		if edc == 0 {
			result.Form2BootSectorsWithoutEDC++
		} else {
			result.Form2BootSectorsWithEDC++
		}
	}

	if result.Form2BootSectorsWithoutEDC >= result.Form2BootSectorsWithEDC {
		return PolicyZero, nil
	}
	return PolicyCompute, nil
}

func sizeOrMax(r io.ReaderAt) int64 {
	type sizer interface{ Size() int64 }
	if s, ok := r.(sizer); ok {
		return s.Size()
	}
	return 1<<62 - 1
}
