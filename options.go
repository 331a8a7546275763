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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-iselmc1/logger"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithLogger sets the logger for frame traces, state transitions and faults
func WithLogger(l logger.Logger) Option {
	return func(d *Device) error {
		if l == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidArgument)
		}
		d.log = l
		return nil
	}
}

// WithPollInterval sets the read timeout of one poll iteration
func WithPollInterval(interval time.Duration) Option {
	return func(d *Device) error {
		d.config.PollInterval = interval
		return nil
	}
}

// WithDeviceID sets the controller address
func WithDeviceID(id int) Option {
	return func(d *Device) error {
		d.config.DeviceID = id
		return nil
	}
}

// WithDisplay sets the display geometry
func WithDisplay(rows, columns int) Option {
	return func(d *Device) error {
		d.config.Display = DisplayGeometry{Rows: rows, Columns: columns}
		return nil
	}
}

// WithOverflowPolicy sets how display text past the last column is handled
func WithOverflowPolicy(policy OverflowPolicy) Option {
	return func(d *Device) error {
		d.config.Overflow = policy
		return nil
	}
}

// WithBaseTimeout sets the completion budget of commands without travel
func WithBaseTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		d.config.BaseTimeout = timeout
		return nil
	}
}

// WithReleaseTimeout sets the default budget of Release
func WithReleaseTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		d.config.ReleaseTimeout = timeout
		return nil
	}
}

// WithHomingVelocity sets the reference run speed used to bound homing
func WithHomingVelocity(metersPerSecond float64) Option {
	return func(d *Device) error {
		d.config.HomingVelocity = metersPerSecond
		return nil
	}
}

// WithMaxPort sets the highest accepted port index
func WithMaxPort(maxPort int) Option {
	return func(d *Device) error {
		d.config.MaxPort = maxPort
		return nil
	}
}

// WithChecksum enables an integrity field, for firmware that expects one
func WithChecksum(fn func(data []byte) byte) Option {
	return func(d *Device) error {
		d.config.Checksum = fn
		return nil
	}
}
