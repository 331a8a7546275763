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
	"bytes"
	"context"
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/gpio"

	"github.com/ZaparooProject/go-iselmc1/internal/frame"
)

// PortLines is the number of lines of a digital port.
const PortLines = 8

// PortValue is the level mask of a digital port; bit i is line i.
type PortValue uint8

// Pin returns the level of line i. Lines outside the port read Low.
func (v PortValue) Pin(i int) gpio.Level {
	if i < 0 || i >= PortLines {
		return gpio.Low
	}
	return gpio.Level(v&(1<<uint(i)) != 0)
}

// With returns v with line i set to level.
func (v PortValue) With(i int, level gpio.Level) PortValue {
	if i < 0 || i >= PortLines {
		return v
	}
	if level == gpio.High {
		return v | 1<<uint(i)
	}
	return v &^ (1 << uint(i))
}

func (v PortValue) String() string {
	return fmt.Sprintf("%08b", uint8(v))
}

// ReadPort queries the level of port n. It is permitted in any state.
func (d *Device) ReadPort(ctx context.Context, n int) (PortValue, error) {
	const op = "read_port"
	if err := d.checkPort(op, n); err != nil {
		return 0, err
	}

	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.begin(ctx); err != nil {
		return 0, err
	}
	return d.readPortLocked(ctx, op, n)
}

func (d *Device) readPortLocked(ctx context.Context, op string, n int) (PortValue, error) {
	rsp, err := d.disp.send(ctx, op, frame.NewCommand(frame.OpReadPort, strconv.Itoa(n)), Blocking,
		d.config.BaseTimeout, nil)
	if err != nil {
		return 0, err
	}
	v, err := parsePortValue(rsp.Payload)
	if err != nil {
		return 0, &ProtocolError{Op: op, Raw: rsp.Raw, Err: err}
	}
	return v, nil
}

// WritePort sets all lines of port n.
func (d *Device) WritePort(ctx context.Context, n int, v PortValue, call CallConfig) error {
	const op = "write_port"
	if err := d.checkPort(op, n); err != nil {
		return err
	}
	return d.simple(ctx, op, writePortCommand(n, v), call)
}

func writePortCommand(n int, v PortValue) frame.Command {
	return frame.NewCommand(frame.OpWritePort, strconv.Itoa(n), strconv.Itoa(int(v)))
}

// ReadPin returns the level of one line of port n.
func (d *Device) ReadPin(ctx context.Context, n, line int) (gpio.Level, error) {
	if err := checkLine("read_pin", line); err != nil {
		return gpio.Low, err
	}
	v, err := d.ReadPort(ctx, n)
	if err != nil {
		return gpio.Low, err
	}
	return v.Pin(line), nil
}

// WritePin changes one line of port n, keeping the others as read back
// from the controller. No other command runs between the read and the
// write.
func (d *Device) WritePin(ctx context.Context, n, line int, level gpio.Level, call CallConfig) error {
	const op = "write_pin"
	if err := checkLine(op, line); err != nil {
		return err
	}
	if err := d.checkPort(op, n); err != nil {
		return err
	}

	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.begin(ctx); err != nil {
		return err
	}
	v, err := d.readPortLocked(ctx, op, n)
	if err != nil {
		return err
	}
	return d.simpleLocked(ctx, op, writePortCommand(n, v.With(line, level)), call)
}

func (d *Device) checkPort(op string, n int) error {
	if n < 0 || n > d.config.MaxPort {
		return &RangeError{Op: op, Field: "port", Value: float64(n), Min: 0, Max: float64(d.config.MaxPort)}
	}
	return nil
}

func checkLine(op string, line int) error {
	if line < 0 || line >= PortLines {
		return &RangeError{Op: op, Field: "line", Value: float64(line), Min: 0, Max: PortLines - 1}
	}
	return nil
}

// parsePortValue accepts a decimal level or a hex level with an 'h' suffix.
func parsePortValue(payload []byte) (PortValue, error) {
	s := bytes.TrimSpace(payload)
	base := 10
	if n := len(s); n > 1 && (s[n-1] == 'h' || s[n-1] == 'H') {
		s, base = s[:n-1], 16
	}
	v, err := strconv.ParseUint(string(s), base, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: port value %q", ErrMalformed, payload)
	}
	return PortValue(v), nil
}
