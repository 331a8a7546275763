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

// Package serial implements the MC1 transport over an RS-232 port.
package serial

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	mc1 "github.com/ZaparooProject/go-iselmc1"
)

// Serial defaults of the MC1 DNC interface
const (
	DefaultBaudRate    = 19200
	DefaultDataBits    = 8
	DefaultReadTimeout = 200 * time.Millisecond
)

// Option configures a Transport before the port is opened
type Option func(*options)

type options struct {
	mode        serial.Mode
	readTimeout time.Duration
	noLock      bool
}

// WithBaudRate sets the line speed
func WithBaudRate(baud int) Option {
	return func(o *options) { o.mode.BaudRate = baud }
}

// WithDataBits sets the character size
func WithDataBits(bits int) Option {
	return func(o *options) { o.mode.DataBits = bits }
}

// WithParity sets the parity mode
func WithParity(parity serial.Parity) Option {
	return func(o *options) { o.mode.Parity = parity }
}

// WithStopBits sets the number of stop bits
func WithStopBits(bits serial.StopBits) Option {
	return func(o *options) { o.mode.StopBits = bits }
}

// WithReadTimeout sets the read timeout used when Read is called without
// one.
func WithReadTimeout(timeout time.Duration) Option {
	return func(o *options) { o.readTimeout = timeout }
}

// WithoutLock skips the advisory lock on the device node, for ports shared
// with a tool that does not take it.
func WithoutLock() Option {
	return func(o *options) { o.noLock = true }
}

// Transport is a serial port claimed for exclusive use.
type Transport struct {
	port        serial.Port
	lock        io.Closer
	portName    string
	readTimeout time.Duration
	mu          sync.Mutex
	timeoutSet  time.Duration
	closed      atomic.Bool
}

// Open claims and configures portName. The defaults are 19200 baud 8N1.
func Open(portName string, opts ...Option) (*Transport, error) {
	o := options{
		mode: serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: DefaultDataBits,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var lock io.Closer = nopCloser{}
	if !o.noLock {
		l, err := lockPort(portName)
		if err != nil {
			return nil, mc1.NewTransportError("open", portName,
				fmt.Errorf("%w: %w", mc1.ErrPortUnavailable, err), mc1.ErrorTypePermanent)
		}
		lock = l
	}

	port, err := serial.Open(portName, &o.mode)
	if err != nil {
		_ = lock.Close()
		return nil, mc1.NewTransportError("open", portName,
			fmt.Errorf("%w: %w", mc1.ErrPortUnavailable, err), mc1.ErrorTypePermanent)
	}
	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		_ = lock.Close()
		return nil, mc1.NewTransportError("open", portName, fmt.Errorf("%w: %w", mc1.ErrPortUnavailable, err),
			mc1.ErrorTypePermanent)
	}

	return &Transport{
		port:        port,
		lock:        lock,
		portName:    portName,
		readTimeout: o.readTimeout,
	}, nil
}

// Opener returns an mc1.Opener for portName, for use with mc1.WithDevice.
func Opener(portName string, opts ...Option) mc1.Opener {
	return func() (mc1.Transport, error) {
		t, err := Open(portName, opts...)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// Write sends p in full. It may run concurrently with Read.
func (t *Transport) Write(p []byte) (int, error) {
	if t.closed.Load() {
		return 0, mc1.NewTransportError("write", t.portName, mc1.ErrTransportClosed, mc1.ErrorTypePermanent)
	}
	n, err := t.port.Write(p)
	if err != nil {
		return n, t.wrap("write", mc1.ErrTransportWrite, err)
	}
	return n, nil
}

// Read waits up to timeout for at least one byte. A timeout of zero uses
// the configured read timeout.
func (t *Transport) Read(p []byte, timeout time.Duration) (int, error) {
	if t.closed.Load() {
		return 0, mc1.NewTransportError("read", t.portName, mc1.ErrTransportClosed, mc1.ErrorTypePermanent)
	}
	if timeout <= 0 {
		timeout = t.readTimeout
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timeout != t.timeoutSet {
		if err := t.port.SetReadTimeout(timeout); err != nil {
			return 0, t.wrap("read", mc1.ErrTransportRead, err)
		}
		t.timeoutSet = timeout
	}

	n, err := t.port.Read(p)
	switch {
	case err != nil:
		return n, t.wrap("read", mc1.ErrTransportRead, err)
	case n == 0:
		// go.bug.st/serial reports a timeout as an empty read
		return 0, mc1.NewReadTimeoutError("read", t.portName)
	}
	return n, nil
}

// Flush discards unread input
func (t *Transport) Flush() error {
	if t.closed.Load() {
		return mc1.NewTransportError("flush", t.portName, mc1.ErrTransportClosed, mc1.ErrorTypePermanent)
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return t.wrap("flush", mc1.ErrTransportRead, err)
	}
	return nil
}

// Close closes the port and drops the lock. Calling it twice is safe.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if err := t.port.ResetOutputBuffer(); err != nil && !isClosed(err) {
		errs = append(errs, err)
	}
	if err := t.port.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := t.lock.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return mc1.NewTransportError("close", t.portName, err, mc1.ErrorTypePermanent)
	}
	return nil
}

// IsConnected returns true until Close
func (t *Transport) IsConnected() bool {
	return t.port != nil && !t.closed.Load()
}

// Type returns the transport type
func (*Transport) Type() mc1.TransportType {
	return mc1.TransportSerial
}

// PortName returns the device path the transport was opened on
func (t *Transport) PortName() string {
	return t.portName
}

// wrap classifies a go.bug.st/serial failure. A vanished or closed port is
// permanent; everything else may recover.
func (t *Transport) wrap(op string, sentinel, err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortClosed:
			return mc1.NewTransportError(op, t.portName, fmt.Errorf("%w: %w", mc1.ErrTransportClosed, err),
				mc1.ErrorTypePermanent)
		case serial.PortNotFound, serial.InvalidSerialPort, serial.PermissionDenied:
			return mc1.NewTransportError(op, t.portName, fmt.Errorf("%w: %w", mc1.ErrPortUnavailable, err),
				mc1.ErrorTypePermanent)
		default:
		}
	}
	return mc1.NewTransportError(op, t.portName, fmt.Errorf("%w: %w", sentinel, err), mc1.ErrorTypeTransient)
}

func isClosed(err error) bool {
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortClosed
}

// PortInfo describes a serial port found on the system.
type PortInfo struct {
	Name         string
	VID          string
	PID          string
	SerialNumber string
	Product      string
	IsUSB        bool
}

// ListPorts enumerates the serial ports of the system with their USB
// identity when known.
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
