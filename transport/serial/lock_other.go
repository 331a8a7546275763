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

//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package serial

import "errors"

// ErrPortBusy is returned when another process holds the port lock.
var ErrPortBusy = errors.New("port locked by another process")

// portLock is a no-op where the OS already opens serial ports exclusively.
type portLock struct{}

func lockPort(string) (*portLock, error) {
	return &portLock{}, nil
}

func (*portLock) Close() error { return nil }
