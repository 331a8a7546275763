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
	"math"

	"periph.io/x/conn/v3/physic"
)

// Meters converts a periph distance to meters.
func Meters(d physic.Distance) float64 {
	return float64(d) / float64(physic.Metre)
}

// MetersPerSecond converts a periph speed to m/s.
func MetersPerSecond(s physic.Speed) float64 {
	return float64(s) / float64(physic.MetrePerSecond)
}

// Distance converts meters to a periph distance, rounded to the nanometer.
func Distance(meters float64) physic.Distance {
	return physic.Distance(math.Round(meters * float64(physic.Metre)))
}

// MoveTo is MoveAbsolute with periph units.
func (d *Device) MoveTo(ctx context.Context, position physic.Distance, velocity physic.Speed,
	call CallConfig,
) (physic.Distance, error) {
	reached, err := d.MoveAbsolute(ctx, Meters(position), MetersPerSecond(velocity), call)
	if err != nil {
		return 0, err
	}
	return Distance(reached), nil
}

// MoveBy is MoveRelative with periph units.
func (d *Device) MoveBy(ctx context.Context, distance physic.Distance, velocity physic.Speed,
	call CallConfig,
) (physic.Distance, error) {
	reached, err := d.MoveRelative(ctx, Meters(distance), MetersPerSecond(velocity), call)
	if err != nil {
		return 0, err
	}
	return Distance(reached), nil
}

// PositionDistance returns the cached position as a periph distance.
func (d *Device) PositionDistance() (physic.Distance, bool) {
	m, ok := d.Position()
	return Distance(m), ok
}
