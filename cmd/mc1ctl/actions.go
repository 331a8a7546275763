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

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	mc1 "github.com/ZaparooProject/go-iselmc1"
)

// requirement is what a one-shot command needs before it can run. The
// shell never prepares the axis on its own.
type requirement int

const (
	needNothing requirement = iota
	needInit
	needHome
)

// action is one device operation shared by the cobra commands and the
// shell.
type action struct {
	run     func(ctx context.Context, d *mc1.Device, out io.Writer, args []string) error
	path    []string
	use     string
	short   string
	minArgs int
	maxArgs int
	needs   requirement
}

func (a action) name() string {
	return strings.Join(a.path, " ")
}

func (a action) checkArgs(args []string) error {
	if len(args) < a.minArgs || (a.maxArgs >= 0 && len(args) > a.maxArgs) {
		return fmt.Errorf("%w: %s %s", errUsage, a.name(), a.use)
	}
	return nil
}

var actions = []action{
	{path: []string{"info"}, short: "Print the controller version", run: runInfo},
	{path: []string{"state"}, short: "Print the host-side axis state and position", run: runState},
	{path: []string{"init"}, short: "Initialize the axis", run: runInit},
	{
		path: []string{"home"}, use: "[simulate]", maxArgs: 1, needs: needInit,
		short: "Run the reference travel, or declare the current position zero",
		run:   runHome,
	},
	{
		path: []string{"move", "abs"}, use: "<position> <speed> [nowait]", minArgs: 2, maxArgs: 3, needs: needHome,
		short: "Move to an absolute position, e.g. move abs 2m 400mm/s",
		run:   runMoveAbsolute,
	},
	{
		path: []string{"move", "rel"}, use: "<distance> <speed> [nowait]", minArgs: 2, maxArgs: 3, needs: needHome,
		short: "Move by a signed distance, e.g. move rel -50mm 0.1",
		run:   runMoveRelative,
	},
	{path: []string{"pos"}, short: "Query the axis position", needs: needHome, run: runPos},
	{
		path: []string{"wait"}, use: "[timeout]", maxArgs: 1,
		short: "Wait for commands sent with nowait",
		run:   runWait,
	},
	{path: []string{"port", "read"}, use: "<port>", minArgs: 1, maxArgs: 1, short: "Read a digital port", run: runPortRead},
	{
		path: []string{"port", "write"}, use: "<port> <value>", minArgs: 2, maxArgs: 2,
		short: "Write a digital port, value as 42, 0x2a or 0b101010",
		run:   runPortWrite,
	},
	{
		path: []string{"display", "print"}, use: "<row> <column> <text...>", minArgs: 3, maxArgs: -1,
		short: "Print text on the controller display",
		run:   runDisplayPrint,
	},
	{
		path: []string{"display", "clear"}, use: "<row>", minArgs: 1, maxArgs: 1,
		short: "Clear a display row",
		run:   runDisplayClear,
	},
	{
		path: []string{"test-mode"}, use: "on|off", minArgs: 1, maxArgs: 1, needs: needInit,
		short: "Switch the controller test mode",
		run:   runTestMode,
	},
	{path: []string{"start"}, short: "Send the start command", needs: needInit, run: simple((*mc1.Device).Start)},
	{
		path: []string{"cnc", "save"}, short: "Store the CNC data in the controller", needs: needInit,
		run: simple((*mc1.Device).SaveCNCData),
	},
	{
		path: []string{"cnc", "flush"}, short: "Discard the CNC data of the controller", needs: needInit,
		run: simple((*mc1.Device).FlushCNCData),
	},
	{path: []string{"release"}, short: "Hand the axis back to manual control", needs: needInit, run: runRelease},
	{path: []string{"stop"}, short: "Halt motion immediately", run: control((*mc1.Device).Stop)},
	{path: []string{"break"}, short: "Emergency halt", run: control((*mc1.Device).Break)},
	{path: []string{"reset"}, short: "Halt and reset the controller", run: control((*mc1.Device).Reset)},
}

// lookup finds the action named by the leading words of fields and
// returns the remaining arguments.
func lookup(fields []string) (action, []string, bool) {
	var (
		best action
		rest []string
		ok   bool
	)
	for _, a := range actions {
		if len(a.path) > len(fields) || (ok && len(a.path) <= len(best.path)) {
			continue
		}
		match := true
		for i, word := range a.path {
			if !strings.EqualFold(fields[i], word) {
				match = false
				break
			}
		}
		if match {
			best, rest, ok = a, fields[len(a.path):], true
		}
	}
	return best, rest, ok
}

// prepare brings the axis into the state a one-shot command needs.
func prepare(ctx context.Context, d *mc1.Device, needs requirement, simulateHome bool) error {
	if needs == needNothing {
		return nil
	}
	switch d.State() {
	case mc1.StateUninitialized, mc1.StateReleased:
		if err := d.Init(ctx, mc1.Blocking); err != nil {
			return err
		}
	default:
	}
	if needs != needHome {
		return nil
	}
	if _, known := d.Position(); known {
		return nil
	}
	if simulateHome {
		return d.SimulateHoming(ctx, mc1.Blocking)
	}
	return d.Homing(ctx, mc1.Blocking)
}

func runInfo(ctx context.Context, d *mc1.Device, out io.Writer, _ []string) error {
	version, err := d.GetVersionInfo(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, version)
	return nil
}

func runState(_ context.Context, d *mc1.Device, out io.Writer, _ []string) error {
	pos := "unknown"
	if m, known := d.Position(); known {
		pos = formatMeters(m)
	}
	_, _ = fmt.Fprintf(out, "state: %s\nposition: %s\n", d.State(), pos)
	return nil
}

func runInit(ctx context.Context, d *mc1.Device, out io.Writer, _ []string) error {
	if err := d.Init(ctx, mc1.Blocking); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "initialized")
	return nil
}

func runHome(ctx context.Context, d *mc1.Device, out io.Writer, args []string) error {
	var err error
	switch {
	case len(args) == 0:
		err = d.Homing(ctx, mc1.Blocking)
	case strings.EqualFold(args[0], "simulate"):
		err = d.SimulateHoming(ctx, mc1.Blocking)
	default:
		return fmt.Errorf("%w: home [simulate]", errUsage)
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "homed")
	return nil
}

// callFor strips a trailing "nowait" from args.
func callFor(args []string) (mc1.CallConfig, []string) {
	if n := len(args); n > 0 && strings.EqualFold(args[n-1], "nowait") {
		return mc1.NonBlocking, args[:n-1]
	}
	return mc1.Blocking, args
}

func runMoveAbsolute(ctx context.Context, d *mc1.Device, out io.Writer, args []string) error {
	call, args := callFor(args)
	if len(args) != 2 {
		return fmt.Errorf("%w: move abs <position> <speed> [nowait]", errUsage)
	}
	pos, err := parseDistance(args[0])
	if err != nil {
		return err
	}
	speed, err := parseSpeed(args[1])
	if err != nil {
		return err
	}
	reached, err := d.MoveTo(ctx, pos, speed, call)
	if err != nil {
		return err
	}
	reportMove(out, call, reached.String())
	return nil
}

func runMoveRelative(ctx context.Context, d *mc1.Device, out io.Writer, args []string) error {
	call, args := callFor(args)
	if len(args) != 2 {
		return fmt.Errorf("%w: move rel <distance> <speed> [nowait]", errUsage)
	}
	dist, err := parseDistance(args[0])
	if err != nil {
		return err
	}
	speed, err := parseSpeed(args[1])
	if err != nil {
		return err
	}
	reached, err := d.MoveBy(ctx, dist, speed, call)
	if err != nil {
		return err
	}
	reportMove(out, call, reached.String())
	return nil
}

func reportMove(out io.Writer, call mc1.CallConfig, reached string) {
	if call.NonBlocking {
		_, _ = fmt.Fprintf(out, "moving to %s\n", reached)
		return
	}
	_, _ = fmt.Fprintf(out, "at %s\n", reached)
}

func runPos(ctx context.Context, d *mc1.Device, out io.Writer, _ []string) error {
	m, err := d.GetPos(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, formatMeters(m))
	return nil
}

func runWait(ctx context.Context, d *mc1.Device, out io.Writer, args []string) error {
	var timeout time.Duration
	if len(args) == 1 {
		var err error
		if timeout, err = time.ParseDuration(args[0]); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", args[0], err)
		}
	}
	if err := d.Wait(ctx, timeout); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "done, state %s\n", d.State())
	return nil
}

func runPortRead(ctx context.Context, d *mc1.Device, out io.Writer, args []string) error {
	n, err := parseIndex("port", args[0])
	if err != nil {
		return err
	}
	v, err := d.ReadPort(ctx, n)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "port %d: %d (0b%s)\n", n, uint8(v), v)
	return nil
}

func runPortWrite(ctx context.Context, d *mc1.Device, out io.Writer, args []string) error {
	n, err := parseIndex("port", args[0])
	if err != nil {
		return err
	}
	v, err := parsePortValue(args[1])
	if err != nil {
		return err
	}
	if err := d.WritePort(ctx, n, v, mc1.Blocking); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "port %d set to 0b%s\n", n, v)
	return nil
}

func runDisplayPrint(ctx context.Context, d *mc1.Device, _ io.Writer, args []string) error {
	row, err := parseIndex("row", args[0])
	if err != nil {
		return err
	}
	col, err := parseIndex("column", args[1])
	if err != nil {
		return err
	}
	return d.PrintToDisplay(ctx, row, col, strings.Join(args[2:], " "), mc1.Blocking)
}

func runDisplayClear(ctx context.Context, d *mc1.Device, _ io.Writer, args []string) error {
	row, err := parseIndex("row", args[0])
	if err != nil {
		return err
	}
	return d.ClearDisplayRow(ctx, row, mc1.Blocking)
}

func runTestMode(ctx context.Context, d *mc1.Device, out io.Writer, args []string) error {
	on, err := parseSwitch(args[0])
	if err != nil {
		return err
	}
	if err := d.TestMode(ctx, on, mc1.Blocking); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "state: %s\n", d.State())
	return nil
}

func runRelease(ctx context.Context, d *mc1.Device, out io.Writer, _ []string) error {
	if err := d.Release(ctx, mc1.Blocking); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "released")
	return nil
}

func simple(fn func(*mc1.Device, context.Context, mc1.CallConfig) error) func(
	context.Context, *mc1.Device, io.Writer, []string,
) error {
	return func(ctx context.Context, d *mc1.Device, _ io.Writer, _ []string) error {
		return fn(d, ctx, mc1.Blocking)
	}
}

func control(fn func(*mc1.Device) error) func(context.Context, *mc1.Device, io.Writer, []string) error {
	return func(_ context.Context, d *mc1.Device, out io.Writer, _ []string) error {
		if err := fn(d); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "state: %s\n", d.State())
		return nil
	}
}
