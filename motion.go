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
	"math"
	"strconv"
	"time"

	"github.com/ZaparooProject/go-iselmc1/internal/frame"
)

// Init initializes the axis. It is accepted from Uninitialized, from Idle
// (re-initialization) and from Released (reclaiming the controller). The
// position is unknown afterwards until the axis is homed.
func (d *Device) Init(ctx context.Context, call CallConfig) error {
	const op = "init"
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.begin(ctx); err != nil {
		return err
	}
	if err := allowed(op, d.State(), StateUninitialized, StateIdle, StateReleased); err != nil {
		return err
	}

	_, err := d.exec(ctx, exchange{
		op:      op,
		cmd:     frame.NewCommand(frame.OpInit, "0"),
		call:    call,
		timeout: d.config.BaseTimeout,
		busy:    StateInitializing,
		onSuccess: func(frame.Response) {
			d.settle(StateIdle, nil, false)
		},
	})
	return err
}

// Homing runs the reference travel to the limit switch and sets the
// position to zero. The default timeout covers a full rail at the homing
// velocity.
func (d *Device) Homing(ctx context.Context, call CallConfig) error {
	timeout := d.config.BaseTimeout + seconds(d.config.RailLength/d.config.HomingVelocity)
	return d.home(ctx, "homing", frame.OpHoming, StateHoming, timeout, call)
}

// SimulateHoming declares the current position to be zero without travel.
func (d *Device) SimulateHoming(ctx context.Context, call CallConfig) error {
	return d.home(ctx, "simulate_homing", frame.OpSimulateHoming, StateSimulatedHoming, d.config.BaseTimeout, call)
}

func (d *Device) home(ctx context.Context, op string, opcode frame.Opcode, busy AxisState,
	timeout time.Duration, call CallConfig,
) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.begin(ctx); err != nil {
		return err
	}
	if err := allowed(op, d.State(), StateIdle); err != nil {
		return err
	}

	_, err := d.exec(ctx, exchange{
		op:      op,
		cmd:     frame.NewCommand(opcode, "1"),
		call:    call,
		timeout: timeout,
		busy:    busy,
		onSuccess: func(frame.Response) {
			var zero int64
			d.settle(StateIdle, &zero, true)
		},
	})
	return err
}

// MoveAbsolute moves to position meters at velocity m/s and returns the
// position reached, quantized to whole steps. A non-blocking call returns
// the target.
func (d *Device) MoveAbsolute(ctx context.Context, position, velocity float64, call CallConfig) (float64, error) {
	const op = "move_absolute"
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.begin(ctx); err != nil {
		return 0, err
	}
	if err := d.checkMotion(op); err != nil {
		return 0, err
	}
	velSteps, err := d.velocitySteps(op, velocity)
	if err != nil {
		return 0, err
	}
	if err := d.checkPosition(op, "position", position); err != nil {
		return 0, err
	}

	from, err := d.currentSteps(ctx, op)
	if err != nil {
		return 0, err
	}
	target := d.toSteps(position)
	cmd := frame.NewCommand(frame.OpMoveAbsolute, itoa(target), itoa(velSteps))
	return d.move(ctx, op, cmd, from, target, velocity, call)
}

// MoveRelative moves by distance meters (negative towards home) at
// velocity m/s and returns the position reached.
func (d *Device) MoveRelative(ctx context.Context, distance, velocity float64, call CallConfig) (float64, error) {
	const op = "move_relative"
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.begin(ctx); err != nil {
		return 0, err
	}
	if err := d.checkMotion(op); err != nil {
		return 0, err
	}
	velSteps, err := d.velocitySteps(op, velocity)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(distance) || math.IsInf(distance, 0) {
		return 0, &RangeError{Op: op, Field: "distance", Value: distance, Min: -d.config.RailLength, Max: d.config.RailLength}
	}

	from, err := d.currentSteps(ctx, op)
	if err != nil {
		return 0, err
	}
	delta := d.toSteps(distance)
	target := from + delta
	if err := d.checkPosition(op, "resulting position", d.toMeters(target)); err != nil {
		return 0, err
	}
	cmd := frame.NewCommand(frame.OpMoveRelative, itoa(delta), itoa(velSteps))
	return d.move(ctx, op, cmd, from, target, velocity, call)
}

func (d *Device) move(ctx context.Context, op string, cmd frame.Command, from, target int64, velocity float64,
	call CallConfig,
) (float64, error) {
	travel := math.Abs(d.toMeters(target - from))
	_, err := d.exec(ctx, exchange{
		op:      op,
		cmd:     cmd,
		call:    call,
		timeout: d.config.BaseTimeout + seconds(travel/velocity),
		busy:    StateMoving,
		onSuccess: func(frame.Response) {
			d.settle(StateIdle, &target, true)
		},
	})
	if err != nil {
		return 0, err
	}
	return d.toMeters(target), nil
}

// checkMotion requires an idle axis with a known position.
func (d *Device) checkMotion(op string) error {
	state, _, known, _ := d.snapshot()
	if err := allowed(op, state, StateIdle); err != nil {
		return err
	}
	if !known {
		return &StateError{Op: op, State: state, Reason: "position unknown, home the axis first"}
	}
	return nil
}

func (d *Device) velocitySteps(op string, velocity float64) (int64, error) {
	minVelocity := 1 / float64(d.config.StepsPerMeter)
	if !(velocity > 0) || math.IsInf(velocity, 0) || d.toSteps(velocity) < 1 {
		return 0, &RangeError{Op: op, Field: "velocity", Value: velocity, Min: minVelocity, Max: math.MaxFloat64}
	}
	return d.toSteps(velocity), nil
}

func (d *Device) checkPosition(op, field string, meters float64) error {
	if !(meters >= 0 && meters <= d.config.RailLength) {
		return &RangeError{Op: op, Field: field, Value: meters, Min: 0, Max: d.config.RailLength}
	}
	return nil
}

// currentSteps returns the cached position, refreshing it from the
// controller when a stop may have left the axis short of its target.
func (d *Device) currentSteps(ctx context.Context, op string) (int64, error) {
	_, steps, _, stale := d.snapshot()
	if !stale {
		return steps, nil
	}
	return d.queryPosition(ctx, op)
}

// TestMode switches the controller in (Idle to TestMode) or out of test mode.
func (d *Device) TestMode(ctx context.Context, on bool, call CallConfig) error {
	const op = "test_mode"
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.begin(ctx); err != nil {
		return err
	}
	from, to, arg := StateIdle, StateTestMode, "1"
	if !on {
		from, to, arg = StateTestMode, StateIdle, "0"
	}
	if err := allowed(op, d.State(), from); err != nil {
		return err
	}

	_, err := d.exec(ctx, exchange{
		op:      op,
		cmd:     frame.NewCommand(frame.OpTestMode, arg),
		call:    call,
		timeout: d.config.BaseTimeout,
		busy:    noTransition,
		onSuccess: func(frame.Response) {
			d.setState(to)
		},
	})
	return err
}

// Release hands the axis back to the controller's manual control. Motion
// commands fail with a StateError until Init reclaims it. The default
// timeout is Config.ReleaseTimeout and covers the whole call, including
// the wait for earlier non-blocking commands.
func (d *Device) Release(ctx context.Context, call CallConfig) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if d.closed.Load() {
		return ErrClosed
	}
	return d.release(ctx, call, requireOperable)
}

// release completes outstanding acks and sends the release command within
// one deadline. Acks still missing at the deadline stay pending and the
// release frame is not sent. admit, when set, vets the state in between.
func (d *Device) release(ctx context.Context, call CallConfig, admit func(op string, s AxisState) error) error {
	budget := call.timeout(d.config.ReleaseTimeout)
	deadline := time.Now().Add(budget)

	if err := d.disp.collectBy(ctx, deadline); err != nil {
		return err
	}
	call.Timeout = time.Until(deadline)
	if d.disp.hasPending() || call.Timeout <= 0 {
		return &TimeoutError{Op: "release", Timeout: budget}
	}
	if admit != nil {
		if err := admit("release", d.State()); err != nil {
			return err
		}
	}

	_, err := d.exec(ctx, exchange{
		op:      "release",
		cmd:     frame.NewCommand(frame.OpRelease, "1"),
		call:    call,
		timeout: d.config.ReleaseTimeout,
		busy:    noTransition,
		onSuccess: func(frame.Response) {
			d.settle(StateReleased, nil, false)
		},
	})
	var te *TimeoutError
	if errors.As(err, &te) && te.Op == "release" {
		te.Timeout = budget
	}
	return err
}

// Start sends cmd_start, which resumes a stored program or motion.
func (d *Device) Start(ctx context.Context, call CallConfig) error {
	return d.simple(ctx, "cmd_start", frame.NewCommand(frame.OpStart), call)
}

// SaveCNCData stores the controller's program memory.
func (d *Device) SaveCNCData(ctx context.Context, call CallConfig) error {
	return d.simple(ctx, "save_cnc_data", frame.NewCommand(frame.OpSaveCNC), call)
}

// FlushCNCData clears the controller's program memory.
func (d *Device) FlushCNCData(ctx context.Context, call CallConfig) error {
	return d.simple(ctx, "flush_cnc_data", frame.NewCommand(frame.OpFlushCNC), call)
}

// simple sends a command that leaves the axis state untouched on success.
func (d *Device) simple(ctx context.Context, op string, cmd frame.Command, call CallConfig) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.begin(ctx); err != nil {
		return err
	}
	return d.simpleLocked(ctx, op, cmd, call)
}

func (d *Device) simpleLocked(ctx context.Context, op string, cmd frame.Command, call CallConfig) error {
	if err := requireOperable(op, d.State()); err != nil {
		return err
	}
	_, err := d.exec(ctx, exchange{
		op:      op,
		cmd:     cmd,
		call:    call,
		timeout: d.config.BaseTimeout,
		busy:    noTransition,
	})
	return err
}

// GetPos returns the axis position in meters. A pending motion ack is
// collected if it is ready within one poll interval. The controller is only
// queried when the axis is at rest; otherwise the cached position is
// returned. GetPos never changes the axis state.
func (d *Device) GetPos(ctx context.Context) (float64, error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if d.closed.Load() {
		return 0, ErrClosed
	}
	if d.disp.hasPending() {
		if err := d.disp.collect(ctx, d.config.PollInterval); err != nil {
			return 0, err
		}
	}

	state, steps, _, _ := d.snapshot()
	if (state != StateIdle && state != StateTestMode) || d.disp.hasPending() {
		return d.toMeters(steps), nil
	}
	steps, err := d.queryPosition(ctx, "get_pos")
	if err != nil {
		return 0, err
	}
	return d.toMeters(steps), nil
}

func (d *Device) queryPosition(ctx context.Context, op string) (int64, error) {
	rsp, err := d.disp.send(ctx, op, frame.NewCommand(frame.OpPosition), Blocking, d.config.BaseTimeout, nil)
	if err != nil {
		return 0, err
	}
	steps, err := frame.ParseHexSigned(rsp.Payload)
	if err != nil {
		return 0, &ProtocolError{Op: op, Raw: rsp.Raw, Err: err}
	}

	d.stateMu.Lock()
	d.steps = steps
	d.stale = false
	d.stateMu.Unlock()
	return steps, nil
}

// GetVersionInfo returns the controller's version string.
func (d *Device) GetVersionInfo(ctx context.Context) (string, error) {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if err := d.begin(ctx); err != nil {
		return "", err
	}
	rsp, err := d.disp.send(ctx, "get_version_info", frame.NewCommand(frame.OpVersion), Blocking,
		d.config.BaseTimeout, nil)
	if err != nil {
		return "", err
	}
	return string(rsp.Payload), nil
}

// Wait completes commands sent with CallConfig.NonBlocking. A positive
// timeout bounds the wait for each outstanding command; commands still
// running when it expires stay pending and Wait returns a TimeoutError.
func (d *Device) Wait(ctx context.Context, timeout time.Duration) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if d.closed.Load() {
		return ErrClosed
	}
	if err := d.disp.collect(ctx, timeout); err != nil {
		return err
	}
	if d.disp.hasPending() {
		return &TimeoutError{Op: "wait", Timeout: timeout}
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
