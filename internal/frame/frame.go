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

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Codec errors
var (
	ErrMalformed        = errors.New("malformed frame")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrFrameTooLong     = errors.New("frame too long")
	ErrInvalidArgument  = errors.New("invalid frame argument")
)

// Command is a logical DNC command. It is treated as immutable once built.
type Command struct {
	Args      []string
	Opcode    Opcode
	ExpectAck bool
}

// NewCommand builds an acknowledged command.
func NewCommand(op Opcode, args ...string) Command {
	return Command{Opcode: op, Args: args, ExpectAck: true}
}

func (c Command) String() string {
	return fmt.Sprintf("%s(%s)", c.Opcode, strings.Join(c.Args, ","))
}

// Response is a decoded controller reply.
type Response struct {
	Payload []byte
	Raw     []byte
	Status  byte
	// Pending is set for commands sent without waiting for completion.
	Pending bool
}

// OK reports whether the controller accepted/completed the command.
func (r Response) OK() bool {
	return r.Status == StatusOK
}

// Codec encodes requests and decodes responses. The zero value matches the
// stock controller (no integrity field).
type Codec struct {
	Checksum Checksum
}

// Encode renders cmd addressed to deviceID into its wire frame:
//
//	'@' id opcode arg[,arg...] [checksum] '\r'
func (c Codec) Encode(deviceID int, cmd Command) ([]byte, error) {
	if deviceID < 0 || deviceID > MaxDeviceID {
		return nil, fmt.Errorf("%w: device id %d not in [0, %d]", ErrInvalidArgument, deviceID, MaxDeviceID)
	}
	info, ok := opcodes[cmd.Opcode]
	if !ok {
		return nil, fmt.Errorf("%w: unknown opcode %q", ErrInvalidArgument, rune(cmd.Opcode))
	}
	if len(cmd.Args) != info.arity {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrInvalidArgument, info.name, info.arity, len(cmd.Args))
	}

	buf := make([]byte, 0, 16)
	buf = append(buf, StartMarker, byte('0'+deviceID), byte(cmd.Opcode))
	for i, arg := range cmd.Args {
		last := i == len(cmd.Args)-1
		if err := validateArg(arg, last && info.freeText); err != nil {
			return nil, fmt.Errorf("%s argument %d: %w", info.name, i, err)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, arg...)
	}
	if c.Checksum != nil {
		buf = appendChecksum(buf, c.Checksum(buf))
	}
	buf = append(buf, Terminator)

	if len(buf) > MaxFrameLength {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrFrameTooLong, len(buf), MaxFrameLength)
	}
	return buf, nil
}

func validateArg(arg string, freeText bool) error {
	for i := 0; i < len(arg); i++ {
		b := arg[i]
		switch {
		case b < 0x20 || b > 0x7E:
			return fmt.Errorf("%w: non-printable byte 0x%02X", ErrInvalidArgument, b)
		case b == StartMarker:
			return fmt.Errorf("%w: %q is reserved", ErrInvalidArgument, b)
		case b == ',' && !freeText:
			return fmt.Errorf("%w: unexpected separator", ErrInvalidArgument)
		}
	}
	return nil
}

// DecodeCommand parses a request frame back into its device id and command.
func (c Codec) DecodeCommand(raw []byte) (int, Command, error) {
	frm := trimTerminator(raw)
	if len(frm) < 3 || frm[0] != StartMarker {
		return 0, Command{}, fmt.Errorf("%w: missing start marker or opcode", ErrMalformed)
	}
	if len(raw) > MaxFrameLength {
		return 0, Command{}, fmt.Errorf("%w: %w", ErrMalformed, ErrFrameTooLong)
	}
	if c.Checksum != nil {
		var err error
		if frm, err = splitChecksum(frm, c.Checksum); err != nil {
			return 0, Command{}, err
		}
		if len(frm) < 3 {
			return 0, Command{}, fmt.Errorf("%w: missing opcode", ErrMalformed)
		}
	}
	if frm[1] < '0' || frm[1] > '9' {
		return 0, Command{}, fmt.Errorf("%w: device id %q", ErrMalformed, frm[1])
	}
	id := int(frm[1] - '0')

	op := Opcode(frm[2])
	info, ok := opcodes[op]
	if !ok {
		return 0, Command{}, fmt.Errorf("%w: unknown opcode %q", ErrMalformed, rune(op))
	}

	rest := string(frm[3:])
	cmd := Command{Opcode: op, ExpectAck: true}
	switch {
	case info.arity == 0 && rest != "":
		return 0, Command{}, fmt.Errorf("%w: %s takes no arguments", ErrMalformed, info.name)
	case info.arity > 0:
		cmd.Args = strings.SplitN(rest, ",", info.arity)
		if len(cmd.Args) != info.arity {
			return 0, Command{}, fmt.Errorf("%w: %s takes %d arguments, got %d",
				ErrMalformed, info.name, info.arity, len(cmd.Args))
		}
	}
	return id, cmd, nil
}

// Decode parses one response frame. A trailing CR and/or LF is optional
// since the controller terminates bare acks by silence.
func (c Codec) Decode(raw []byte) (Response, error) {
	if len(raw) > MaxFrameLength {
		return Response{}, fmt.Errorf("%w: %w", ErrMalformed, ErrFrameTooLong)
	}
	frm := trimTerminator(raw)
	if len(frm) == 0 {
		return Response{}, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	for _, b := range frm {
		if b < 0x20 || b > 0x7E {
			return Response{}, fmt.Errorf("%w: non-printable byte 0x%02X", ErrMalformed, b)
		}
	}
	if c.Checksum != nil {
		var err error
		if frm, err = splitChecksum(frm, c.Checksum); err != nil {
			return Response{}, err
		}
	}
	if frm[0] == ' ' || frm[0] == StartMarker {
		return Response{}, fmt.Errorf("%w: invalid status %q", ErrMalformed, frm[0])
	}

	rsp := Response{
		Status: frm[0],
		Raw:    append([]byte(nil), raw...),
	}
	if len(frm) > 1 {
		rsp.Payload = append([]byte(nil), frm[1:]...)
	}
	return rsp, nil
}

// EncodeResponse renders a controller reply. It is used by simulated
// controllers.
func (c Codec) EncodeResponse(status byte, payload string) []byte {
	buf := make([]byte, 0, len(payload)+5)
	buf = append(buf, status)
	buf = append(buf, payload...)
	if c.Checksum != nil {
		buf = appendChecksum(buf, c.Checksum(buf))
	}
	return append(buf, Terminator, LineFeed)
}

func trimTerminator(raw []byte) []byte {
	return bytes.TrimRight(raw, "\r\n")
}

// ParseHexSigned decodes a hex position reply. The controller reports a
// 24-bit two's-complement register; a reply shorter than PositionDigits is
// a zero-padded positive value, a wider one carries its sign in its own top
// digit.
func ParseHexSigned(s []byte) (int64, error) {
	n := len(s)
	if n == 0 || n > MaxHexDigits {
		return 0, fmt.Errorf("%w: hex value of %d digits", ErrMalformed, n)
	}
	u, err := strconv.ParseUint(string(s), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if n < PositionDigits {
		return int64(u), nil
	}
	bits := uint(4 * n)
	if u >= 1<<(bits-1) {
		return int64(u) - int64(1)<<bits, nil
	}
	return int64(u), nil
}

// FormatHexSigned is the inverse of ParseHexSigned for the given digit count.
func FormatHexSigned(v int64, digits int) string {
	mask := uint64(1)<<(4*uint(digits)) - 1
	s := strconv.FormatUint(uint64(v)&mask, 16)
	return strings.ToUpper(strings.Repeat("0", digits-len(s)) + s)
}
