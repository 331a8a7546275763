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

// Package testing builds controller replies and request frames for tests.
package testing

import (
	"strconv"

	"github.com/ZaparooProject/go-iselmc1/internal/frame"
)

// BuildAck creates a terminated OK reply carrying payload
func BuildAck(payload string) []byte {
	return frame.Codec{}.EncodeResponse(frame.StatusOK, payload)
}

// BuildBareAck creates the unterminated single-byte OK reply sent by the
// stock firmware for commands without payload
func BuildBareAck() []byte {
	return []byte{frame.StatusOK}
}

// BuildErrorResponse creates a terminated reply with a controller error code
func BuildErrorResponse(code byte) []byte {
	return frame.Codec{}.EncodeResponse(code, "")
}

// BuildPositionResponse creates a position reply in hex two's complement
// with the given digit count
func BuildPositionResponse(steps int64, digits int) []byte {
	return BuildAck(frame.FormatHexSigned(steps, digits))
}

// BuildPortResponse creates a read_port reply
func BuildPortResponse(level uint8) []byte {
	return BuildAck(strconv.Itoa(int(level)))
}

// BuildVersionResponse creates a get_version_info reply
func BuildVersionResponse(version string) []byte {
	return BuildAck(version)
}

// BuildRequest renders the request frame the driver is expected to send
func BuildRequest(deviceID int, op frame.Opcode, args ...string) []byte {
	raw, err := frame.Codec{}.Encode(deviceID, frame.NewCommand(op, args...))
	if err != nil {
		panic(err)
	}
	return raw
}
