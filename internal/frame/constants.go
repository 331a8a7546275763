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

// Package frame provides the DNC wire codec and protocol constants for MC1 communication
package frame

// Frame markers
const (
	StartMarker = '@'  // First byte of every request frame
	Terminator  = '\r' // Ends a request frame
	LineFeed    = '\n' // Some firmware revisions follow responses with CR LF
	StatusOK    = '0'  // Response status for an accepted/completed command
)

// Frame size limits
const (
	MaxFrameLength = 128 // Maximum request/response length including markers
	MaxDeviceID    = 9   // Device ids are a single decimal digit on the wire
	MaxHexDigits   = 15  // Widest hex position reply we accept
	PositionDigits = 6   // Width of the controller's 24-bit position register
	checksumDigits = 2
)

// Control is a single-byte immediate code. Immediate codes are not framed,
// carry no device id and are never acknowledged.
type Control byte

// Immediate control codes
const (
	CtrlStop  Control = 0xFD // Stop motion
	CtrlReset Control = 0xFE // Stop motion and reset controller state
	CtrlBreak Control = 0xFF // Emergency break
)

func (c Control) String() string {
	switch c {
	case CtrlStop:
		return "stop"
	case CtrlReset:
		return "reset"
	case CtrlBreak:
		return "break"
	default:
		return "unknown"
	}
}

// IsControl reports whether b is one of the immediate control codes.
func IsControl(b byte) bool {
	return b >= byte(CtrlStop)
}
