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

// Command mc1ctl drives an Isel MC1 axis controller from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mc1 "github.com/ZaparooProject/go-iselmc1"
	"github.com/ZaparooProject/go-iselmc1/cmd/mc1ctl/monitor"
	"github.com/ZaparooProject/go-iselmc1/detection"
	"github.com/ZaparooProject/go-iselmc1/internal/config"
	"github.com/ZaparooProject/go-iselmc1/logger"
	"github.com/ZaparooProject/go-iselmc1/transport/serial"
)

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"
)

// probeTimeout bounds the version query sent to each candidate port
const probeTimeout = 500 * time.Millisecond

type app struct {
	log          logger.Logger
	stdout       io.Writer
	stderr       io.Writer
	configPath   string
	port         string
	cfg          config.Config
	debug        bool
	simulateHome bool
}

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr, log: logger.Nop()}

	// Ctrl-C cancels the command context, which halts a running motion
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := a.rootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mc1ctl",
		Short:         "Control an Isel MC1 axis over a serial port",
		Version:       fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.loadConfig()
		},
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "configuration file (default is the user config dir)")
	flags.StringVar(&a.port, "port", "", "serial port of the controller, detected when empty")
	flags.BoolVar(&a.debug, "debug", false, "log frame traffic and state changes")
	flags.BoolVar(&a.simulateHome, "simulate-home", false,
		"when a command needs a homed axis, declare the current position zero instead of running the reference travel")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the mc1ctl version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			_, _ = fmt.Fprintln(a.stdout, cmd.Version)
		},
	})
	cmd.AddCommand(a.portsCommand())
	cmd.AddCommand(a.shellCommand())
	cmd.AddCommand(monitor.Command(a.session, a.monitorSettings))
	a.addActions(cmd)
	return cmd
}

// addActions builds a cobra command per action, grouping multi-word paths
// under a parent such as "move".
func (a *app) addActions(root *cobra.Command) {
	parents := map[string]*cobra.Command{}
	for _, act := range actions {
		parent := root
		for _, word := range act.path[:len(act.path)-1] {
			group, ok := parents[word]
			if !ok {
				group = &cobra.Command{Use: word, Short: "Commands for " + word}
				parents[word] = group
				parent.AddCommand(group)
			}
			parent = group
		}
		parent.AddCommand(a.actionCommand(act))
	}
}

func (a *app) actionCommand(act action) *cobra.Command {
	leaf := act.path[len(act.path)-1]
	cmd := &cobra.Command{
		Use:   leaf + " " + act.use,
		Short: act.short,
		Args: func(_ *cobra.Command, args []string) error {
			return act.checkArgs(args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.session(cmd.Context(), func(ctx context.Context, d *mc1.Device) error {
				if err := prepare(ctx, d, act.needs, a.simulateHome); err != nil {
					return err
				}
				return act.run(ctx, d, a.stdout, args)
			})
		},
	}
	if leaf == "home" {
		simulate := cmd.Flags().Bool("simulate", false, "declare the current position zero without travel")
		run := cmd.RunE
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			if *simulate {
				args = append(args, "simulate")
			}
			return run(cmd, args)
		}
	}
	return cmd
}

func (a *app) loadConfig() error {
	path, optional := a.configPath, false
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path, optional = p, true
	}

	cfg, err := config.Load(path, optional)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = cfg.Logger(a.stderr, a.debug)
	return nil
}

// session runs fn with a device on the resolved port. The controller is
// released on the way out.
func (a *app) session(ctx context.Context, fn func(context.Context, *mc1.Device) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	devCfg, err := a.cfg.Device()
	if err != nil {
		return err
	}
	port, err := a.resolvePort(ctx)
	if err != nil {
		return err
	}
	a.log.Debug("opening controller", "port", port)

	return mc1.WithDevice(ctx, serial.Opener(port, a.cfg.SerialOptions()...), devCfg, fn,
		mc1.WithLogger(a.log.With("port", port)))
}

func (a *app) monitorSettings() monitor.Settings {
	return monitor.Settings{
		Watcher:      a.cfg.Watcher(a.log),
		SimulateHome: a.simulateHome,
	}
}

func (a *app) resolvePort(ctx context.Context) (string, error) {
	switch {
	case a.port != "":
		return a.port, nil
	case a.cfg.Port != "":
		return a.cfg.Port, nil
	}

	devices, err := detection.Detect(ctx, a.cfg.DetectionOptions(a.probe, 0))
	if err != nil {
		return "", fmt.Errorf("no port configured and detection failed: %w", err)
	}
	found := devices[0]
	a.log.Info("detected port", "port", found.Path, "name", found.Name, "confidence", found.Confidence.String())
	return found.Path, nil
}

// probe asks the controller on path for its version. It is the detection
// probe when the config enables probing.
func (a *app) probe(ctx context.Context, path string) (string, error) {
	devCfg, err := a.cfg.Device()
	if err != nil {
		return "", err
	}
	var info string
	err = mc1.WithDevice(ctx, serial.Opener(path, a.cfg.SerialOptions()...), devCfg,
		func(ctx context.Context, d *mc1.Device) error {
			v, err := d.GetVersionInfo(ctx)
			info = v
			return err
		}, mc1.WithBaseTimeout(probeTimeout))
	return info, err
}

func (a *app) portsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports and how likely each is to be an MC1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			devices, err := detection.Detect(cmd.Context(), a.cfg.DetectionOptions(a.probe, 0))
			if errors.Is(err, detection.ErrNoDevicesFound) {
				_, _ = fmt.Fprintln(a.stdout, "no serial ports found")
				return nil
			}
			if err != nil {
				return err
			}
			for _, d := range devices {
				line := fmt.Sprintf("%-24s %-7s %s", d.Path, d.Confidence, d.Name)
				if v, ok := d.Metadata["version"]; ok {
					line += "  [" + v + "]"
				}
				_, _ = fmt.Fprintln(a.stdout, line)
			}
			return nil
		},
	}
}
