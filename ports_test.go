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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/ZaparooProject/go-iselmc1/internal/frame"
	testutil "github.com/ZaparooProject/go-iselmc1/internal/testing"
)

func TestPortValue_Pins(t *testing.T) {
	t.Parallel()

	v := PortValue(0).With(0, gpio.High).With(7, gpio.High).With(3, gpio.High).With(3, gpio.Low)
	assert.Equal(t, PortValue(0x81), v)
	assert.Equal(t, gpio.High, v.Pin(0))
	assert.Equal(t, gpio.Low, v.Pin(3))
	assert.Equal(t, gpio.High, v.Pin(7))
	assert.Equal(t, gpio.Low, v.Pin(8))
	assert.Equal(t, v, v.With(-1, gpio.High))
	assert.Equal(t, "10000001", v.String())
}

func TestParsePortValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		want    PortValue
		wantErr bool
	}{
		{name: "decimal", payload: "170", want: 170},
		{name: "zero", payload: "0", want: 0},
		{name: "hex suffix", payload: "AAh", want: 0xAA},
		{name: "upper hex suffix", payload: "0FH", want: 0x0F},
		{name: "padded", payload: " 12 ", want: 12},
		{name: "too large", payload: "256", wantErr: true},
		{name: "empty", payload: "", wantErr: true},
		{name: "bare suffix", payload: "h", wantErr: true},
		{name: "garbage", payload: "on", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parsePortValue([]byte(tt.payload))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDevice_WriteThenReadPort(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	device, mock := newHomedDevice(t)

	require.NoError(t, device.WritePort(ctx, 1, 0xA5, Blocking))
	assert.Equal(t, PortValue(0xA5), mock.Port(1))

	got, err := device.ReadPort(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, PortValue(0xA5), got)

	writes := mock.Writes()
	assert.Equal(t, testutil.BuildRequest(0, frame.OpWritePort, "1", "165"), writes[len(writes)-2])
	assert.Equal(t, testutil.BuildRequest(0, frame.OpReadPort, "1"), writes[len(writes)-1])
}

func TestDevice_Pins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	device, mock := newHomedDevice(t)
	mock.SetPort(2, 0x0F)

	require.NoError(t, device.WritePin(ctx, 2, 7, gpio.High, Blocking))
	require.NoError(t, device.WritePin(ctx, 2, 0, gpio.Low, Blocking))
	assert.Equal(t, PortValue(0x8E), mock.Port(2))

	level, err := device.ReadPin(ctx, 2, 7)
	require.NoError(t, err)
	assert.Equal(t, gpio.High, level)

	_, err = device.ReadPin(ctx, 2, PortLines)
	require.ErrorIs(t, err, ErrOutOfRange)
	require.ErrorIs(t, device.WritePin(ctx, 2, -1, gpio.High, Blocking), ErrOutOfRange)
}

func TestDevice_WritePinHoldsDevice(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	device, mock := newHomedDevice(t)
	mock.SetDelay(frame.OpReadPort, 50*time.Millisecond)

	pinDone := make(chan error, 1)
	go func() {
		pinDone <- device.WritePin(ctx, 1, 0, gpio.High, Blocking)
	}()

	// the read of WritePin is in flight; a whole-port write must queue behind it
	require.Eventually(t, func() bool { return mock.CallCount(frame.OpReadPort) == 1 },
		time.Second, time.Millisecond)
	require.NoError(t, device.WritePort(ctx, 1, 0x80, Blocking))
	require.NoError(t, <-pinDone)

	assert.Equal(t, PortValue(0x80), mock.Port(1))
	writes := mock.Writes()
	require.GreaterOrEqual(t, len(writes), 3)
	assert.Equal(t, testutil.BuildRequest(0, frame.OpReadPort, "1"), writes[len(writes)-3])
	assert.Equal(t, testutil.BuildRequest(0, frame.OpWritePort, "1", "1"), writes[len(writes)-2])
	assert.Equal(t, testutil.BuildRequest(0, frame.OpWritePort, "1", "128"), writes[len(writes)-1])
}

func TestDevice_PortRange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	device, mock := newHomedDevice(t, WithMaxPort(3))
	writes := mock.WriteCount()

	_, err := device.ReadPort(ctx, 4)
	var re *RangeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "port", re.Field)
	require.ErrorIs(t, device.WritePort(ctx, -1, 1, Blocking), ErrOutOfRange)
	assert.Equal(t, writes, mock.WriteCount())
}

func TestDevice_ReadPortMalformedReply(t *testing.T) {
	t.Parallel()

	device, mock := newTestDevice(t)
	mock.SetHang(frame.OpReadPort, true)
	mock.Inject(testutil.BuildAck("high"))

	_, err := device.ReadPort(context.Background(), 0)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	require.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, StateUninitialized, device.State())
}

func TestDevice_ReadPortAnyState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	device, mock := newTestDevice(t)
	mock.SetPort(0, 3)

	v, err := device.ReadPort(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, PortValue(3), v)

	require.NoError(t, device.Release(ctx, Blocking))
	v, err = device.ReadPort(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, PortValue(3), v)
}

func TestDevice_NonBlockingPortWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	device, mock := newHomedDevice(t)

	require.NoError(t, device.WritePort(ctx, 5, 0x10, NonBlocking))
	require.NoError(t, device.Wait(ctx, 0))
	assert.Equal(t, PortValue(0x10), mock.Port(5))
	assert.Equal(t, StateIdle, device.State())
}
