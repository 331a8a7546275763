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
	"github.com/ZaparooProject/go-iselmc1/internal/frame"
)

// Stop halts motion immediately. Any blocked call returns ErrCancelled
// within one poll interval and the axis becomes Idle. A faulted device
// stays Faulted.
//
// Stop, Break and Reset may be called from any goroutine at any time.
func (d *Device) Stop() error {
	return d.control("stop", frame.CtrlStop)
}

// Break is an emergency halt. It leaves the axis Idle like Stop, and no
// interrupted motion resumes. Faults are not cleared.
func (d *Device) Break() error {
	return d.control("break", frame.CtrlBreak)
}

// Reset halts motion and resets the controller's internal state. The axis
// becomes Uninitialized, which also clears a fault.
func (d *Device) Reset() error {
	return d.control("reset", frame.CtrlReset)
}

func (d *Device) control(op string, code frame.Control) error {
	if d.shut.Load() {
		return ErrClosed
	}
	return d.halt(op, code)
}

// halt applies the resulting state first so that a waiter released by the
// control code already observes it.
func (d *Device) halt(op string, code frame.Control) error {
	d.stateMu.Lock()
	from := d.state
	to := haltTarget(from)
	if code == frame.CtrlReset {
		to = StateUninitialized
		d.known = false
	}
	d.state = to
	d.stale = true
	d.stateMu.Unlock()
	d.logTransition(from, to)

	if err := d.disp.sendImmediate(code); err != nil {
		if d.shut.Load() {
			return ErrClosed
		}
		d.fault(op, err)
		return err
	}
	return nil
}
