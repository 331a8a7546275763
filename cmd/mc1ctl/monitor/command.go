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

// Package monitor implements the mc1ctl monitor view.
package monitor

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	mc1 "github.com/ZaparooProject/go-iselmc1"
	"github.com/ZaparooProject/go-iselmc1/polling"
)

// Session runs fn with an open device
type Session func(ctx context.Context, fn func(context.Context, *mc1.Device) error) error

// Settings are resolved when the command runs, after the config is loaded
type Settings struct {
	Watcher      *polling.Config
	Home         bool
	SimulateHome bool
}

// Command returns the monitor command
func Command(session Session, settings func() Settings) *cobra.Command {
	var home bool
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Show the axis state and position live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := settings()
			s.Home = s.Home || home
			return session(cmd.Context(), func(ctx context.Context, d *mc1.Device) error {
				return run(ctx, d, s)
			})
		},
	}
	cmd.Flags().BoolVar(&home, "home", false, "home the axis before monitoring")
	return cmd
}

func run(ctx context.Context, d *mc1.Device, s Settings) error {
	if err := d.Init(ctx, mc1.Blocking); err != nil {
		return err
	}
	if s.Home {
		home := d.Homing
		if s.SimulateHome {
			home = d.SimulateHoming
		}
		if err := home(ctx, mc1.Blocking); err != nil {
			return err
		}
	}

	var tui *tea.Program
	watcher, err := polling.NewWatcher(d, s.Watcher, polling.Callbacks{
		OnStateChange:    func(mc1.AxisState, mc1.AxisState) { tui.Send(snapshotOf(d)) },
		OnPositionChange: func(snap polling.Snapshot) { tui.Send(SnapshotMsg(snap)) },
		OnError:          func(err error) { tui.Send(ErrorMsg{Err: err}) },
	})
	if err != nil {
		return err
	}

	model := NewModel(fmt.Sprintf("MC1 axis, %.3f m rail", d.Config().RailLength),
		d.Config().RailLength, Controls{Stop: d.Stop, Break: d.Break, Reset: d.Reset}, watcher.Metrics)
	tui = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if err := watcher.Start(ctx); err != nil {
		return err
	}
	defer watcher.Stop()

	_, err = tui.Run()
	if err != nil && ctx.Err() != nil {
		// interrupted from outside the program
		return nil
	}
	return err
}

func snapshotOf(d *mc1.Device) SnapshotMsg {
	pos, known := d.Position()
	return SnapshotMsg{State: d.State(), Position: pos, Known: known}
}
