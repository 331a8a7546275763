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

/*
Package mc1 provides a pure Go driver for Isel MC1 single-axis motion
controllers speaking the DNC ASCII protocol over a serial link.

Features:
  - Axis state machine guarding every command (init, homing, moves, release)
  - Blocking and non-blocking calls with derived default timeouts
  - Out-of-band stop/reset/break that interrupt a blocked call
  - Digital port I/O and onboard display output
  - Typed errors for transport, protocol, timeout, state and range failures

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-iselmc1"
	    "github.com/ZaparooProject/go-iselmc1/transport/serial"
	)

	cfg := mc1.DefaultConfig()
	cfg.RailLength = 5.23
	cfg.StepsPerMeter = 1_000_000

	err := mc1.WithDevice(ctx, func() (mc1.Transport, error) {
	    return serial.Open("/dev/ttyUSB0")
	}, cfg, func(dev *mc1.Device) error {
	    if err := dev.Init(ctx, mc1.CallConfig{}); err != nil {
	        return err
	    }
	    if err := dev.Homing(ctx, mc1.CallConfig{}); err != nil {
	        return err
	    }
	    _, err := dev.MoveAbsolute(ctx, 2.0, 0.4, mc1.CallConfig{})
	    return err
	})

Blocking and Non-blocking Calls:

Every command takes a CallConfig. The zero value blocks until the
controller reports completion, bounded by a timeout derived from the
command (travel time for moves, rail length for homing). With NonBlocking
set the call returns once the frame is written; the acknowledgment is
collected by Wait, GetPos or the next command.

Stopping:

Stop, Reset and Break write a single control byte and may be called from
any goroutine while another call is blocked. The blocked call returns
ErrCancelled within one poll interval.

Error Handling:

	var se *mc1.StateError
	switch {
	case errors.As(err, &se):
	    // command not legal in se.State
	case errors.Is(err, mc1.ErrOutOfRange):
	    // rejected before anything was written
	case errors.Is(err, mc1.ErrTimeout):
	    // the device is now Faulted; call Reset
	}

Thread Safety:

Commands are serialized internally. State and Position never wait for an
in-flight command.
*/
package mc1
