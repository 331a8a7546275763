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
	"context"
	"errors"
	"fmt"
)

// Opener opens the transport of a session.
type Opener func() (Transport, error)

// WithDevice opens a transport, runs fn with a device on it and then, on
// every exit path including a panic in fn, releases the controller if it is
// still bound and closes the transport. Errors from fn and from cleanup are
// joined.
func WithDevice(ctx context.Context, open Opener, cfg Config, fn func(context.Context, *Device) error,
	opts ...Option,
) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("session: %w: %w", ErrCancelled, err)
	}
	transport, err := open()
	if err != nil {
		return err
	}
	device, err := New(transport, cfg, opts...)
	if err != nil {
		return errors.Join(err, transport.Close())
	}

	defer func() {
		if r := recover(); r != nil {
			_ = device.Close()
			panic(r)
		}
		err = errors.Join(err, device.Close())
	}()

	return fn(ctx, device)
}
