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

import "fmt"

// AxisState is the operational mode of the axis as tracked by the host.
type AxisState int32

// Axis states
const (
	StateUninitialized AxisState = iota
	StateInitializing
	StateIdle
	StateHoming
	StateSimulatedHoming
	StateMoving
	StateTestMode
	StateReleased
	StateFaulted
)

var stateNames = [...]string{
	StateUninitialized:   "uninitialized",
	StateInitializing:    "initializing",
	StateIdle:            "idle",
	StateHoming:          "homing",
	StateSimulatedHoming: "simulated-homing",
	StateMoving:          "moving",
	StateTestMode:        "test-mode",
	StateReleased:        "released",
	StateFaulted:         "faulted",
}

func (s AxisState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("AxisState(%d)", int32(s))
}

// Operable reports whether the state accepts non-motion commands such as
// port writes and display output.
func (s AxisState) Operable() bool {
	return s != StateFaulted && s != StateReleased
}

// Busy reports whether a motion-class command is in flight.
func (s AxisState) Busy() bool {
	switch s {
	case StateInitializing, StateHoming, StateSimulatedHoming, StateMoving:
		return true
	default:
		return false
	}
}

// bound reports whether the host still holds the controller and should
// release it on close.
func (s AxisState) bound() bool {
	return s != StateUninitialized && s != StateReleased && s != StateFaulted
}

// haltTarget is the state a stop or break leaves behind. Faults survive, and
// an unclaimed or released controller stays so.
func haltTarget(s AxisState) AxisState {
	switch s {
	case StateFaulted, StateUninitialized, StateReleased:
		return s
	default:
		return StateIdle
	}
}

// allowed checks s against the states a command accepts.
func allowed(op string, s AxisState, states ...AxisState) error {
	for _, want := range states {
		if s == want {
			return nil
		}
	}
	return &StateError{Op: op, State: s}
}

// requireOperable rejects commands in Faulted and Released.
func requireOperable(op string, s AxisState) error {
	if !s.Operable() {
		return &StateError{Op: op, State: s}
	}
	return nil
}
