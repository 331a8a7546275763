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

package mc1

import (
	"time"
)

// Transport is the byte link to an MC1 controller. Write may be called
// concurrently with a Read in progress.
type Transport interface {
	// Write sends p in full or returns an error
	Write(p []byte) (int, error)

	// Read waits up to timeout for at least one byte. It returns
	// ErrTransportTimeout (possibly wrapped) when nothing arrived.
	Read(p []byte, timeout time.Duration) (int, error)

	// Flush discards unread input
	Flush() error

	// Close closes the transport connection. Calling it twice is safe.
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSerial represents a serial port transport.
	TransportSerial TransportType = "serial"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// PortNamer is implemented by transports that know their port name; it is
// used to annotate errors and logs.
type PortNamer interface {
	PortName() string
}

func portName(t Transport) string {
	if n, ok := t.(PortNamer); ok {
		return n.PortName()
	}
	return string(t.Type())
}
