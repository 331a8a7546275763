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

package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/physic"

	mc1 "github.com/ZaparooProject/go-iselmc1"
)

var errUsage = errors.New("usage")

// parseDistance accepts periph distances such as "2m" or "-500mm". A bare
// number is meters.
func parseDistance(s string) (physic.Distance, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")

	var d physic.Distance
	if v, err := strconv.ParseFloat(body, 64); err == nil {
		d = mc1.Distance(v)
	} else if err := d.Set(body); err != nil {
		return 0, fmt.Errorf("invalid distance %q: %w", s, err)
	}
	if neg {
		d = -d
	}
	return d, nil
}

// parseSpeed accepts "<distance>/s" such as "400mm/s", any unit periph
// knows for speed, or a bare number of meters per second.
func parseSpeed(s string) (physic.Speed, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return physic.Speed(math.Round(v * float64(physic.MetrePerSecond))), nil
	}
	if per, ok := strings.CutSuffix(s, "/s"); ok {
		d, err := parseDistance(per)
		if err != nil {
			return 0, fmt.Errorf("invalid speed %q: %w", s, err)
		}
		// both are stored in nanometers
		return physic.Speed(d), nil
	}

	var sp physic.Speed
	if err := sp.Set(s); err != nil {
		return 0, fmt.Errorf("invalid speed %q: %w", s, err)
	}
	return sp, nil
}

// parsePortValue accepts decimal, 0x hex or 0b binary.
func parsePortValue(s string) (mc1.PortValue, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid port value %q: %w", s, err)
	}
	return mc1.PortValue(v), nil
}

func parseIndex(name, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return v, nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected on or off, got %q", errUsage, s)
	}
}

func formatMeters(m float64) string {
	return strconv.FormatFloat(m, 'f', 6, 64) + " m"
}
