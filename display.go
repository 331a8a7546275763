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
	"strconv"

	"github.com/ZaparooProject/go-iselmc1/internal/frame"
)

// DisplayGeometry is the character grid of the controller display. Rows
// and columns are numbered from 1.
type DisplayGeometry struct {
	Rows    int
	Columns int
}

// DefaultDisplay is the 4x20 character display of the MC1.
var DefaultDisplay = DisplayGeometry{Rows: 4, Columns: 20}

// OverflowPolicy decides what happens to text that runs past the last
// column.
type OverflowPolicy int

const (
	// OverflowTruncate cuts the text at the last column.
	OverflowTruncate OverflowPolicy = iota
	// OverflowReject fails with a RangeError.
	OverflowReject
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowTruncate:
		return "truncate"
	case OverflowReject:
		return "reject"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy maps "truncate" or "reject" to a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "truncate", "":
		return OverflowTruncate, nil
	case "reject":
		return OverflowReject, nil
	default:
		return 0, fmt.Errorf("%w: overflow policy %q", ErrInvalidArgument, s)
	}
}

// DisplayCell is text placed at a row and column.
type DisplayCell struct {
	Text   string
	Row    int
	Column int
}

// Fit validates cell against the geometry and applies policy. It returns
// the text that will be sent.
func (g DisplayGeometry) Fit(op string, cell DisplayCell, policy OverflowPolicy) (string, error) {
	if err := g.checkRow(op, cell.Row); err != nil {
		return "", err
	}
	if cell.Column < 1 || cell.Column > g.Columns {
		return "", &RangeError{Op: op, Field: "column", Value: float64(cell.Column), Min: 1, Max: float64(g.Columns)}
	}
	for i := 0; i < len(cell.Text); i++ {
		if b := cell.Text[i]; b < 0x20 || b > 0x7E || b == frame.StartMarker {
			return "", fmt.Errorf("%s: %w: display text byte 0x%02X at %d", op, ErrInvalidArgument, b, i)
		}
	}

	limit := g.Columns - cell.Column + 1
	if len(cell.Text) <= limit {
		return cell.Text, nil
	}
	if policy == OverflowReject {
		return "", &RangeError{Op: op, Field: "text length", Value: float64(len(cell.Text)), Min: 0, Max: float64(limit)}
	}
	return cell.Text[:limit], nil
}

func (g DisplayGeometry) checkRow(op string, row int) error {
	if row < 1 || row > g.Rows {
		return &RangeError{Op: op, Field: "row", Value: float64(row), Min: 1, Max: float64(g.Rows)}
	}
	return nil
}

// ClearDisplayRow blanks one display row.
func (d *Device) ClearDisplayRow(ctx context.Context, row int, call CallConfig) error {
	const op = "clear_display_row"
	if err := d.config.Display.checkRow(op, row); err != nil {
		return err
	}
	return d.simple(ctx, op, frame.NewCommand(frame.OpClearRow, strconv.Itoa(row)), call)
}

// PrintToDisplay writes text starting at row and column. Text past the last
// column is handled per Config.Overflow.
func (d *Device) PrintToDisplay(ctx context.Context, row, column int, text string, call CallConfig) error {
	const op = "print_to_display"
	fitted, err := d.config.Display.Fit(op, DisplayCell{Row: row, Column: column, Text: text}, d.config.Overflow)
	if err != nil {
		return err
	}
	cmd := frame.NewCommand(frame.OpPrint, strconv.Itoa(row), strconv.Itoa(column), fitted)
	return d.simple(ctx, op, cmd, call)
}
