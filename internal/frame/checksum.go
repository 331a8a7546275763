// go-iselmc1
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-iselmc1.
//
// go-iselmc1 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-iselmc1 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-iselmc1; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package frame

import (
	"fmt"
	"strconv"
)

// Checksum computes an optional one-byte integrity field over a frame body.
// The stock MC1 firmware sends none; a nil Checksum disables the field.
type Checksum func(data []byte) byte

// SumMod256 is the arithmetic sum of all bytes truncated to 8 bits.
func SumMod256(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// XOR folds all bytes with exclusive or.
func XOR(data []byte) byte {
	var x byte
	for _, b := range data {
		x ^= b
	}
	return x
}

const hexDigits = "0123456789ABCDEF"

func appendChecksum(dst []byte, sum byte) []byte {
	return append(dst, hexDigits[sum>>4], hexDigits[sum&0x0F])
}

// splitChecksum separates the trailing hex checksum from body and verifies it.
func splitChecksum(frm []byte, fn Checksum) ([]byte, error) {
	if len(frm) < checksumDigits+1 {
		return nil, fmt.Errorf("%w: frame too short for checksum", ErrMalformed)
	}
	body := frm[:len(frm)-checksumDigits]
	field := frm[len(frm)-checksumDigits:]

	want, err := strconv.ParseUint(string(field), 16, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: checksum field %q", ErrMalformed, field)
	}
	if got := fn(body); got != byte(want) {
		return nil, fmt.Errorf("%w: wire=0x%02X, computed=0x%02X", ErrChecksumMismatch, want, got)
	}
	return body, nil
}
