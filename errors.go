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
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-iselmc1/internal/frame"
)

// Transport errors
var (
	ErrPortUnavailable  = errors.New("serial port unavailable")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportTimeout = errors.New("transport read timeout")
	ErrTransportClosed  = errors.New("transport closed")
)

// Protocol errors, shared with the frame codec
var (
	ErrMalformed        = frame.ErrMalformed
	ErrChecksumMismatch = frame.ErrChecksumMismatch
	ErrFrameTooLong     = frame.ErrFrameTooLong
	ErrInvalidArgument  = frame.ErrInvalidArgument
)

// Device errors
var (
	ErrTimeout      = errors.New("operation timeout")
	ErrInvalidState = errors.New("command not permitted in current state")
	ErrOutOfRange   = errors.New("value out of range")
	ErrDevice       = errors.New("controller error")
	ErrCancelled    = errors.New("operation cancelled")
	ErrUnsupported  = errors.New("not supported")
	ErrClosed       = errors.New("device closed")
)

// ErrorType classifies transport failures.
type ErrorType int

const (
	// ErrorTypeTransient is an I/O failure that may not recur.
	ErrorTypeTransient ErrorType = iota
	// ErrorTypeTimeout is a read that saw no data in time.
	ErrorTypeTimeout
	// ErrorTypePermanent means the port is gone or was never usable.
	ErrorTypePermanent
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypePermanent:
		return "permanent"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError is a failure of the underlying byte link.
type TransportError struct {
	Err  error
	Op   string
	Port string
	Type ErrorType
}

// NewTransportError wraps err for the given port operation.
func NewTransportError(op, port string, err error, typ ErrorType) *TransportError {
	return &TransportError{Op: op, Port: port, Err: err, Type: typ}
}

// NewReadTimeoutError reports a read that received nothing in time.
func NewReadTimeoutError(op, port string) *TransportError {
	return &TransportError{Op: op, Port: port, Err: ErrTransportTimeout, Type: ErrorTypeTimeout}
}

func (e *TransportError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// GetErrorType classifies err. Errors that are not transport failures are permanent.
func GetErrorType(err error) ErrorType {
	var te *TransportError
	switch {
	case err == nil:
		return ErrorTypePermanent
	case errors.As(err, &te):
		return te.Type
	case errors.Is(err, ErrTransportTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrTransportRead), errors.Is(err, ErrTransportWrite):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// ProtocolError is a reply the codec could not accept.
type ProtocolError struct {
	Err error
	Op  string
	Raw []byte
}

func (e *ProtocolError) Error() string {
	if len(e.Raw) == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v (raw %q)", e.Op, e.Err, e.Raw)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// TimeoutError reports a blocking call whose completion did not arrive
// within its budget.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no completion within %s", e.Op, e.Timeout)
}

func (*TimeoutError) Unwrap() error {
	return ErrTimeout
}

// StateError rejects a command that is illegal in the current AxisState.
type StateError struct {
	Op     string
	Reason string
	State  AxisState
}

func (e *StateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: not permitted in state %s: %s", e.Op, e.State, e.Reason)
	}
	return fmt.Sprintf("%s: not permitted in state %s", e.Op, e.State)
}

func (*StateError) Unwrap() error {
	return ErrInvalidState
}

// RangeError rejects an argument outside its valid interval.
type RangeError struct {
	Op    string
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: %s %g not in [%g, %g]", e.Op, e.Field, e.Value, e.Min, e.Max)
}

func (*RangeError) Unwrap() error {
	return ErrOutOfRange
}

// DeviceError is a non-zero status returned by the controller.
type DeviceError struct {
	Op   string
	Code byte
}

// Text describes the status code.
func (e *DeviceError) Text() string {
	return frame.ErrorText(e.Code)
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: controller error %q: %s", e.Op, e.Code, e.Text())
}

func (*DeviceError) Unwrap() error {
	return ErrDevice
}

// cancelled builds the error returned to a waiter interrupted by a control
// code or by its context.
func cancelled(op string, ctxErr error) error {
	if ctxErr != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrCancelled, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, ErrCancelled)
}

// faults reports whether err moves the device to StateFaulted.
func faults(err error) bool {
	var (
		te *TransportError
		pe *ProtocolError
		to *TimeoutError
		de *DeviceError
	)
	return errors.As(err, &te) || errors.As(err, &pe) || errors.As(err, &to) || errors.As(err, &de)
}
