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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_Encode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		name    string
		want    string
		cmd     Command
		id      int
	}{
		{name: "init", cmd: NewCommand(OpInit, "0"), want: "@010\r"},
		{name: "move absolute", cmd: NewCommand(OpMoveAbsolute, "2000000", "400000"), want: "@0M2000000,400000\r"},
		{name: "negative relative move", cmd: NewCommand(OpMoveRelative, "-500", "100"), want: "@0a-500,100\r"},
		{name: "position query", cmd: NewCommand(OpPosition), want: "@0P\r"},
		{name: "device id", id: 3, cmd: NewCommand(OpVersion), want: "@3V\r"},
		{name: "display text with commas", cmd: NewCommand(OpPrint, "1", "1", "a,b"), want: "@0L1,1,a,b\r"},
		{name: "device id out of range", id: 10, cmd: NewCommand(OpVersion), wantErr: ErrInvalidArgument},
		{name: "unknown opcode", cmd: NewCommand(Opcode('z')), wantErr: ErrInvalidArgument},
		{name: "wrong arity", cmd: NewCommand(OpMoveAbsolute, "1"), wantErr: ErrInvalidArgument},
		{name: "separator in numeric arg", cmd: NewCommand(OpReadPort, "1,2"), wantErr: ErrInvalidArgument},
		{name: "carriage return in text", cmd: NewCommand(OpPrint, "1", "1", "a\rb"), wantErr: ErrInvalidArgument},
		{name: "start marker in text", cmd: NewCommand(OpPrint, "1", "1", "a@b"), wantErr: ErrInvalidArgument},
		{
			name:    "too long",
			cmd:     NewCommand(OpPrint, "1", "1", strings.Repeat("x", MaxFrameLength)),
			wantErr: ErrFrameTooLong,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Codec{}.Encode(tt.id, tt.cmd)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	sample := map[Opcode][]string{
		OpInit:           {"0"},
		OpMoveRelative:   {"-1500", "100000"},
		OpReadPort:       {"1"},
		OpWritePort:      {"0", "255"},
		OpRelease:        {"1"},
		OpClearRow:       {"2"},
		OpPrint:          {"1", "1", "Hello, World!"},
		OpMoveAbsolute:   {"5230000", "400000"},
		OpSimulateHoming: {"1"},
		OpHoming:         {"1"},
		OpTestMode:       {"0"},
	}

	codecs := map[string]Codec{
		"plain": {},
		"sum":   {Checksum: SumMod256},
		"xor":   {Checksum: XOR},
	}

	for name, codec := range codecs {
		for _, op := range Opcodes() {
			cmd := NewCommand(op, sample[op]...)
			t.Run(name+"/"+op.String(), func(t *testing.T) {
				t.Parallel()
				raw, err := codec.Encode(7, cmd)
				require.NoError(t, err)

				id, got, err := codec.DecodeCommand(raw)
				require.NoError(t, err)
				assert.Equal(t, 7, id)
				assert.Equal(t, cmd.Opcode, got.Opcode)
				assert.Equal(t, cmd.ExpectAck, got.ExpectAck)
				assert.Equal(t, len(cmd.Args), len(got.Args))
				for i := range cmd.Args {
					assert.Equal(t, cmd.Args[i], got.Args[i])
				}
			})
		}
	}
}

func TestCodec_DecodeCommand_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "no start marker", raw: "0P\r"},
		{name: "no opcode", raw: "@0\r"},
		{name: "bad device id", raw: "@xP\r"},
		{name: "unknown opcode", raw: "@0z\r"},
		{name: "args on zero arity", raw: "@0P12\r"},
		{name: "missing argument", raw: "@0M100\r"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Codec{}.DecodeCommand([]byte(tt.raw))
			require.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestCodec_Decode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr     error
		name        string
		raw         string
		wantPayload string
		codec       Codec
		wantStatus  byte
	}{
		{name: "bare ack", raw: "0", wantStatus: '0'},
		{name: "ack with CR LF", raw: "0\r\n", wantStatus: '0'},
		{name: "position payload", raw: "01E8480\r", wantStatus: '0', wantPayload: "1E8480"},
		{name: "controller error", raw: "2", wantStatus: '2'},
		{name: "checksummed ack", raw: "030\r\n", codec: Codec{Checksum: SumMod256}, wantStatus: '0'},
		{name: "empty", raw: "\r\n", wantErr: ErrMalformed},
		{name: "binary garbage", raw: "0\x01", wantErr: ErrMalformed},
		{name: "echoed request", raw: "@0P", wantErr: ErrMalformed},
		{name: "too long", raw: strings.Repeat("0", MaxFrameLength+1), wantErr: ErrFrameTooLong},
		{
			name:    "bad checksum",
			raw:     "031\r\n",
			codec:   Codec{Checksum: SumMod256},
			wantErr: ErrChecksumMismatch,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rsp, err := tt.codec.Decode([]byte(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, rsp.Status)
			assert.Equal(t, tt.wantPayload, string(rsp.Payload))
			assert.Equal(t, tt.raw, string(rsp.Raw))
			assert.Equal(t, tt.wantStatus == StatusOK, rsp.OK())
		})
	}
}

func TestCodec_EncodeResponse(t *testing.T) {
	t.Parallel()

	codec := Codec{Checksum: SumMod256}
	raw := codec.EncodeResponse(StatusOK, "MC1 V2.1")
	rsp, err := codec.Decode(raw)
	require.NoError(t, err)
	assert.True(t, rsp.OK())
	assert.Equal(t, "MC1 V2.1", string(rsp.Payload))
}

func TestParseHexSigned(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr bool
	}{
		{name: "zero", in: "000000", want: 0},
		{name: "positive", in: "1E8480", want: 2000000},
		{name: "minus one", in: "FFFFFF", want: -1},
		{name: "most negative 24 bit", in: "800000", want: -8388608},
		{name: "short width is positive", in: "F4240", want: 1000000},
		{name: "single digit", in: "F", want: 15},
		{name: "wide negative", in: "FFFFFFFF", want: -1},
		{name: "lower case", in: "7fffff", want: 8388607},
		{name: "empty", in: "", wantErr: true},
		{name: "not hex", in: "12G4", wantErr: true},
		{name: "too wide", in: strings.Repeat("1", MaxHexDigits+1), wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseHexSigned([]byte(tt.in))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatHexSigned(t *testing.T) {
	t.Parallel()

	for _, v := range []int64{0, 1, -1, 2000000, -2000000, 8388607, -8388608} {
		s := FormatHexSigned(v, 6)
		assert.Len(t, s, 6)
		got, err := ParseHexSigned([]byte(s))
		require.NoError(t, err)
		assert.Equal(t, v, got, "value %d via %q", v, s)
	}
}

func TestErrorText(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "limit switch error", ErrorText('2'))
	assert.Equal(t, "unknown error", ErrorText('~'))
}

func TestControl(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "stop", CtrlStop.String())
	assert.Equal(t, "reset", CtrlReset.String())
	assert.Equal(t, "break", CtrlBreak.String())
	assert.True(t, IsControl(0xFD))
	assert.False(t, IsControl('@'))
}
