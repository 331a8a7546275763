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

package frame

// Opcode is the single ASCII command character of a DNC request.
type Opcode byte

// DNC opcodes understood by the MC1 controller
const (
	OpInit           Opcode = '1'
	OpMoveRelative   Opcode = 'a'
	OpReadPort       Opcode = 'b'
	OpWritePort      Opcode = 'B'
	OpRelease        Opcode = 'F'
	OpSaveCNC        Opcode = 'i'
	OpFlushCNC       Opcode = 'k'
	OpClearRow       Opcode = 'l'
	OpPrint          Opcode = 'L'
	OpMoveAbsolute   Opcode = 'M'
	OpSimulateHoming Opcode = 'N'
	OpPosition       Opcode = 'P'
	OpHoming         Opcode = 'r'
	OpStart          Opcode = 's'
	OpTestMode       Opcode = 'T'
	OpVersion        Opcode = 'V'
)

// opcodeInfo describes the argument shape of an opcode.
// freeText marks opcodes whose last argument may itself contain commas.
type opcodeInfo struct {
	name     string
	arity    int
	freeText bool
}

var opcodes = map[Opcode]opcodeInfo{
	OpInit:           {name: "init", arity: 1},
	OpMoveRelative:   {name: "move_relative", arity: 2},
	OpReadPort:       {name: "read_port", arity: 1},
	OpWritePort:      {name: "write_port", arity: 2},
	OpRelease:        {name: "release", arity: 1},
	OpSaveCNC:        {name: "save_cnc_data", arity: 0},
	OpFlushCNC:       {name: "flush_cnc_data", arity: 0},
	OpClearRow:       {name: "clear_display_row", arity: 1},
	OpPrint:          {name: "print_to_display", arity: 3, freeText: true},
	OpMoveAbsolute:   {name: "move_absolute", arity: 2},
	OpSimulateHoming: {name: "simulate_homing", arity: 1},
	OpPosition:       {name: "get_pos", arity: 0},
	OpHoming:         {name: "homing", arity: 1},
	OpStart:          {name: "cmd_start", arity: 0},
	OpTestMode:       {name: "test_mode", arity: 1},
	OpVersion:        {name: "get_version_info", arity: 0},
}

// Known reports whether o is part of the supported DNC command set.
func (o Opcode) Known() bool {
	_, ok := opcodes[o]
	return ok
}

// Arity returns the number of arguments the opcode takes.
func (o Opcode) Arity() int {
	return opcodes[o].arity
}

func (o Opcode) String() string {
	if info, ok := opcodes[o]; ok {
		return info.name
	}
	return "opcode(" + string(rune(o)) + ")"
}

// Opcodes returns every supported opcode.
func Opcodes() []Opcode {
	out := make([]Opcode, 0, len(opcodes))
	for op := range opcodes {
		out = append(out, op)
	}
	return out
}

// errorTexts maps controller status characters to the meaning given in the
// MC1 DNC reference.
var errorTexts = map[byte]string{
	'0': "ok",
	'1': "error in transferred number",
	'2': "limit switch error",
	'3': "invalid axis specification",
	'4': "no axis defined",
	'5': "syntax error",
	'6': "end of memory",
	'7': "invalid number of parameters",
	'8': "command to be stored is invalid",
	'9': "system error",
	'A': "controller not initialized",
	'D': "invalid velocity",
	'F': "user stop",
	'G': "invalid data field",
	'H': "cover command error",
	'R': "reference error",
	'=': "processor error",
}

// ErrorText describes a controller status character.
func ErrorText(status byte) string {
	if s, ok := errorTexts[status]; ok {
		return s
	}
	return "unknown error"
}
