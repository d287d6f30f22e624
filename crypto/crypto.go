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

// Package crypto declares the PGD and KIRK primitives a PSAR container
// depends on but that this module does not implement itself. The PSP's
// KIRK engine and the PGD envelope format are closed, device-specific
// cryptography; callers supply their own implementation (typically a cgo
// binding to a vendor library, or a hardware-backed service) and this
// package only defines the contract extract consumes.
package crypto

import "errors"

// ErrNotImplemented is returned by the fake implementations in this package.
// Production callers must supply a real PGDDecryptor and KIRKInitializer.
var ErrNotImplemented = errors.New("crypto: no PGD/KIRK implementation configured")

// PGDDecryptor decrypts a PGD-wrapped buffer in place, returning the number
// of plaintext bytes written to buf. macType selects the MAC/hashing variant
// used by the envelope (PSAR headers and DOCUMENT.DAT entries use different
// values); key is the 16-byte decryption key recovered from DOCUMENT.DAT or
// KEYS.BIN, or nil when the envelope is self-keyed.
type PGDDecryptor interface {
	DecryptPGD(buf []byte, macType int, key *[16]byte) (int, error)
}

// KIRKInitializer prepares the KIRK crypto engine state machine before any
// PGD operation is attempted. On real hardware or a vendor library this
// seeds internal tables; it is a no-op for software-only decryptors that
// don't need the stateful initialization step.
type KIRKInitializer interface {
	KIRKInit() error
}

// FakeDecryptor is a PGDDecryptor that treats its input as already
// plaintext, copying buf unchanged and reporting the full length consumed.
// It exists so that extraction pipelines can be exercised end to end in
// tests without a real PGD/KIRK implementation.
type FakeDecryptor struct{}

// DecryptPGD implements PGDDecryptor by leaving buf untouched.
func (FakeDecryptor) DecryptPGD(buf []byte, _ int, _ *[16]byte) (int, error) {
	return len(buf), nil
}

// KIRKInit implements KIRKInitializer as a no-op.
func (FakeDecryptor) KIRKInit() error {
	return nil
}
