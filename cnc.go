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
	"fmt"
)

// CNCCommand is one instruction of the controller's stored-program (CNC)
// command set.
type CNCCommand struct {
	Name string
	Args []string
}

// RunProgram would download and execute a CNC program. The program command
// set is not supported by this driver; the call never touches the
// transport.
func (*Device) RunProgram(_ context.Context, _ string) error {
	return fmt.Errorf("run_program: %w: CNC program commands", ErrUnsupported)
}

// SendCNC would send a single CNC program command. Like RunProgram it is
// not supported.
func (*Device) SendCNC(_ context.Context, cmd CNCCommand) error {
	return fmt.Errorf("cnc %s: %w: CNC program commands", cmd.Name, ErrUnsupported)
}
