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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetErrorType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want ErrorType
	}{
		{name: "nil error", err: nil, want: ErrorTypePermanent},
		{name: "read timeout", err: ErrTransportTimeout, want: ErrorTypeTimeout},
		{name: "wrapped read timeout", err: fmt.Errorf("poll: %w", ErrTransportTimeout), want: ErrorTypeTimeout},
		{name: "read failure", err: ErrTransportRead, want: ErrorTypeTransient},
		{name: "write failure", err: ErrTransportWrite, want: ErrorTypeTransient},
		{name: "port unavailable", err: ErrPortUnavailable, want: ErrorTypePermanent},
		{name: "unrelated", err: errors.New("boom"), want: ErrorTypePermanent},
		{
			name: "transport error keeps its type",
			err:  NewTransportError("open", "/dev/ttyUSB0", ErrPortUnavailable, ErrorTypeTransient),
			want: ErrorTypeTransient,
		},
		{name: "timeout constructor", err: NewReadTimeoutError("read", "mock"), want: ErrorTypeTimeout},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestErrorType_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "transient", ErrorTypeTransient.String())
	assert.Equal(t, "timeout", ErrorTypeTimeout.String())
	assert.Equal(t, "permanent", ErrorTypePermanent.String())
	assert.Equal(t, "ErrorType(9)", ErrorType(9).String())
}

func TestErrorTaxonomy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err      error
		sentinel error
		name     string
		contains string
		faults   bool
	}{
		{
			name:     "transport",
			err:      NewTransportError("read", "/dev/ttyS0", ErrTransportRead, ErrorTypeTransient),
			sentinel: ErrTransportRead,
			contains: "read /dev/ttyS0",
			faults:   true,
		},
		{
			name:     "protocol",
			err:      &ProtocolError{Op: "get_pos", Raw: []byte("0ZZ"), Err: ErrMalformed},
			sentinel: ErrMalformed,
			contains: `raw "0ZZ"`,
			faults:   true,
		},
		{
			name:     "timeout",
			err:      &TimeoutError{Op: "release", Timeout: 10 * time.Second},
			sentinel: ErrTimeout,
			contains: "no completion within 10s",
			faults:   true,
		},
		{
			name:     "device",
			err:      &DeviceError{Op: "homing", Code: '2'},
			sentinel: ErrDevice,
			contains: "limit switch error",
			faults:   true,
		},
		{
			name:     "state",
			err:      &StateError{Op: "move_absolute", State: StateUninitialized},
			sentinel: ErrInvalidState,
			contains: "not permitted in state uninitialized",
		},
		{
			name:     "state with reason",
			err:      &StateError{Op: "move_absolute", State: StateIdle, Reason: "position unknown"},
			sentinel: ErrInvalidState,
			contains: "idle: position unknown",
		},
		{
			name:     "range",
			err:      &RangeError{Op: "move_absolute", Field: "position", Value: 6, Min: 0, Max: 5.23},
			sentinel: ErrOutOfRange,
			contains: "position 6 not in [0, 5.23]",
		},
		{
			name:     "cancelled",
			err:      cancelled("move_absolute", nil),
			sentinel: ErrCancelled,
			contains: "move_absolute: operation cancelled",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, tt.err, tt.sentinel)
			assert.Contains(t, tt.err.Error(), tt.contains)
			assert.Equal(t, tt.faults, faults(tt.err))
			assert.Equal(t, tt.faults, faults(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestCancelled_JoinsContextError(t *testing.T) {
	t.Parallel()

	err := cancelled("homing", context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDeviceError_Text(t *testing.T) {
	t.Parallel()

	err := &DeviceError{Op: "init", Code: 'A'}
	assert.Equal(t, "controller not initialized", err.Text())

	var de *DeviceError
	require.ErrorAs(t, fmt.Errorf("outer: %w", err), &de)
	assert.Equal(t, byte('A'), de.Code)
}
