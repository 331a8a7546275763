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
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ZaparooProject/go-iselmc1/internal/frame"
	"github.com/ZaparooProject/go-iselmc1/logger"
)

// Config contains the fixed configuration of a Device
type Config struct {
	// Checksum enables an integrity field on both directions. The stock
	// controller uses none.
	Checksum func(data []byte) byte
	// Display is the character grid of the onboard display
	Display DisplayGeometry
	// RailLength is the usable travel in meters
	RailLength float64
	// HomingVelocity is the fixed reference run speed in m/s, used to bound
	// homing
	HomingVelocity float64
	// StepsPerMeter converts meters to controller steps
	StepsPerMeter int
	// DeviceID is the single-digit address prefixed to every request
	DeviceID int
	// MaxPort is the highest accepted port index
	MaxPort int
	// Overflow decides what happens to display text past the last column
	Overflow OverflowPolicy
	// PollInterval is the read timeout of one poll iteration and therefore
	// the latency of a stop
	PollInterval time.Duration
	// BaseTimeout is the completion budget of commands without travel
	BaseTimeout time.Duration
	// ReleaseTimeout is the default budget of Release
	ReleaseTimeout time.Duration
}

// DefaultConfig returns default device configuration. RailLength and
// StepsPerMeter depend on the mechanics and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		Display:        DefaultDisplay,
		HomingVelocity: 0.1,
		MaxPort:        255,
		Overflow:       OverflowTruncate,
		PollInterval:   20 * time.Millisecond,
		BaseTimeout:    5 * time.Second,
		ReleaseTimeout: 10 * time.Second,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	const op = "config"
	positive := []struct {
		name  string
		value float64
	}{
		{"rail length", c.RailLength},
		{"steps per meter", float64(c.StepsPerMeter)},
		{"homing velocity", c.HomingVelocity},
		{"poll interval", c.PollInterval.Seconds()},
		{"base timeout", c.BaseTimeout.Seconds()},
		{"release timeout", c.ReleaseTimeout.Seconds()},
		{"display rows", float64(c.Display.Rows)},
		{"display columns", float64(c.Display.Columns)},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return &RangeError{Op: op, Field: p.name, Value: p.value, Min: math.SmallestNonzeroFloat64, Max: math.MaxFloat64}
		}
	}
	if c.DeviceID < 0 || c.DeviceID > frame.MaxDeviceID {
		return &RangeError{Op: op, Field: "device id", Value: float64(c.DeviceID), Min: 0, Max: frame.MaxDeviceID}
	}
	if c.MaxPort < 0 {
		return &RangeError{Op: op, Field: "max port", Value: float64(c.MaxPort), Min: 0, Max: math.MaxInt32}
	}
	if c.Overflow != OverflowTruncate && c.Overflow != OverflowReject {
		return fmt.Errorf("%s: %w: overflow policy %d", op, ErrInvalidArgument, c.Overflow)
	}
	return nil
}

// Device represents one MC1 controller on an exclusively owned transport.
//
// Commands are serialized by the device. Stop, Reset and Break bypass that
// serialization so they can interrupt a blocked call from another goroutine.
type Device struct {
	transport Transport
	disp      *dispatcher
	log       logger.Logger
	stateMu   *xsync.RBMutex
	config    Config
	steps     int64
	opMu      sync.Mutex
	state     AxisState
	known     bool
	stale     bool
	closed    atomic.Bool
	// shut is set once the transport is closed; control codes pass until then
	shut      atomic.Bool
}

// New creates a device on transport. The transport is owned by the device
// from here on and closed by Close.
func New(transport Transport, cfg Config, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidArgument)
	}
	device := &Device{
		transport: transport,
		config:    cfg,
		log:       logger.Nop(),
		stateMu:   xsync.NewRBMutex(),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}
	if err := device.config.Validate(); err != nil {
		return nil, err
	}

	device.log = device.log.With("port", portName(transport), "device", device.config.DeviceID)
	device.disp = newDispatcher(transport, frame.Codec{Checksum: device.config.Checksum},
		device.config.DeviceID, device.config.PollInterval, device.log)
	return device, nil
}

// Config returns the device configuration.
func (d *Device) Config() Config {
	return d.config
}

// Transport returns the underlying transport.
func (d *Device) Transport() Transport {
	return d.transport
}

// State returns the current axis state without waiting for an in-flight
// command.
func (d *Device) State() AxisState {
	t := d.stateMu.RLock()
	defer d.stateMu.RUnlock(t)
	return d.state
}

// Position returns the cached position in meters. ok is false until the
// axis has been homed.
func (d *Device) Position() (meters float64, ok bool) {
	t := d.stateMu.RLock()
	defer d.stateMu.RUnlock(t)
	return d.toMeters(d.steps), d.known
}

func (d *Device) snapshot() (state AxisState, steps int64, known, stale bool) {
	t := d.stateMu.RLock()
	defer d.stateMu.RUnlock(t)
	return d.state, d.steps, d.known, d.stale
}

func (d *Device) setState(to AxisState) {
	d.stateMu.Lock()
	from := d.state
	d.state = to
	d.stateMu.Unlock()
	d.logTransition(from, to)
}

func (d *Device) logTransition(from, to AxisState) {
	if from != to {
		d.log.Info("axis state changed", "from", from.String(), "to", to.String())
	}
}

// settle records a completed command: the new state and, when steps is not
// nil, the new position.
func (d *Device) settle(to AxisState, steps *int64, known bool) {
	d.stateMu.Lock()
	from := d.state
	d.state = to
	if steps != nil {
		d.steps = *steps
		d.stale = false
	}
	d.known = known
	d.stateMu.Unlock()
	d.logTransition(from, to)
}

func (d *Device) fault(op string, err error) {
	d.setState(StateFaulted)
	d.log.Warn("command failed, device faulted", "op", op, "error", err)
}

func (d *Device) toMeters(steps int64) float64 {
	return float64(steps) / float64(d.config.StepsPerMeter)
}

func (d *Device) toSteps(meters float64) int64 {
	return int64(math.Round(meters * float64(d.config.StepsPerMeter)))
}

// begin admits a serialized command: the device must be open and earlier
// non-blocking commands are completed first. The caller holds opMu.
func (d *Device) begin(ctx context.Context) error {
	if d.closed.Load() {
		return ErrClosed
	}
	return d.disp.collect(ctx, 0)
}

// noTransition marks a command that does not pass through a busy state.
const noTransition AxisState = -1

// exchange describes one command sent on behalf of a device operation.
type exchange struct {
	cmd       frame.Command
	onSuccess func(frame.Response)
	op        string
	call      CallConfig
	timeout   time.Duration
	busy      AxisState
	prev      AxisState
}

// exec sends x and applies its outcome to the device state. For
// non-blocking calls the outcome is applied when the ack is collected.
func (d *Device) exec(ctx context.Context, x exchange) (frame.Response, error) {
	x.prev = d.State()
	if x.busy != noTransition {
		d.setState(x.busy)
	}

	rsp, err := d.disp.send(ctx, x.op, x.cmd, x.call, x.call.timeout(x.timeout), func(rsp frame.Response, err error) {
		d.finish(x, rsp, err)
	})
	if err == nil && rsp.Pending {
		return rsp, nil
	}
	if errors.Is(err, ErrCancelled) && ctx.Err() != nil && x.busy != noTransition {
		// the axis may still be travelling
		if herr := d.halt("stop", frame.CtrlStop); herr != nil {
			d.log.Warn("stop after cancellation failed", "op", x.op, "error", herr)
		}
	}
	d.finish(x, rsp, err)
	return rsp, err
}

func (d *Device) finish(x exchange, rsp frame.Response, err error) {
	switch {
	case err == nil:
		if x.onSuccess != nil {
			x.onSuccess(rsp)
		}
	case faults(err):
		d.fault(x.op, err)
	case errors.Is(err, ErrCancelled):
		// the halt that cancelled the wait already set the state
	case x.busy != noTransition:
		d.setState(x.prev)
	}
}

// Close releases the controller if the host still holds it and closes the
// transport. It waits for an in-flight command, which Stop, Break and Reset
// can still interrupt, and is safe to call twice.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}

	d.opMu.Lock()
	defer d.opMu.Unlock()

	var errs []error
	if d.State().bound() {
		ctx, cancel := context.WithTimeout(context.Background(), d.config.ReleaseTimeout+d.config.PollInterval)
		if err := d.release(ctx, CallConfig{}, nil); err != nil {
			d.log.Warn("release on close failed", "error", err)
			errs = append(errs, err)
		}
		cancel()
	}
	d.shut.Store(true)
	if err := d.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
	}
	return errors.Join(errs...)
}
