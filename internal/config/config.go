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

// Package config loads the mc1ctl configuration file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v4"

	mc1 "github.com/ZaparooProject/go-iselmc1"
	"github.com/ZaparooProject/go-iselmc1/detection"
	"github.com/ZaparooProject/go-iselmc1/logger"
	"github.com/ZaparooProject/go-iselmc1/polling"
	"github.com/ZaparooProject/go-iselmc1/transport/serial"
)

// ErrInvalid marks a configuration that failed validation
var ErrInvalid = errors.New("invalid configuration")

// Config is the mc1ctl configuration file
type Config struct {
	Port      string    `yaml:"port"`
	LogLevel  string    `yaml:"log_level"`
	LogFormat string    `yaml:"log_format"`
	Serial    Serial    `yaml:"serial"`
	Axis      Axis      `yaml:"axis"`
	Display   Display   `yaml:"display"`
	Monitor   Monitor   `yaml:"monitor"`
	Detection Detection `yaml:"detection"`
}

// Serial holds line settings
type Serial struct {
	ReadTimeout Duration `yaml:"read_timeout"`
	BaudRate    int      `yaml:"baud_rate"`
	NoLock      bool     `yaml:"no_lock"`
}

// Axis holds the mechanics and timing of the controller
type Axis struct {
	PollInterval   Duration `yaml:"poll_interval"`
	BaseTimeout    Duration `yaml:"base_timeout"`
	ReleaseTimeout Duration `yaml:"release_timeout"`
	RailLength     float64  `yaml:"rail_length"`
	HomingVelocity float64  `yaml:"homing_velocity"`
	StepsPerMeter  int      `yaml:"steps_per_meter"`
	DeviceID       int      `yaml:"device_id"`
	MaxPort        int      `yaml:"max_port"`
}

// Display holds the onboard display geometry
type Display struct {
	Overflow string `yaml:"overflow"`
	Rows     int    `yaml:"rows"`
	Columns  int    `yaml:"columns"`
}

// Monitor holds the cadence of the monitor view
type Monitor struct {
	Interval     Duration `yaml:"interval"`
	IdleInterval Duration `yaml:"idle_interval"`
}

// Detection holds port discovery settings
type Detection struct {
	IgnorePaths []string `yaml:"ignore_paths,omitempty"`
	Blocklist   []string `yaml:"blocklist,omitempty"`
	Probe       bool     `yaml:"probe"`
}

// Default returns the configuration used when no file exists. RailLength
// and StepsPerMeter describe a 5.23 m rail with 80 steps per millimeter;
// real machines override them.
func Default() Config {
	dev := mc1.DefaultConfig()
	watch := polling.DefaultConfig()
	return Config{
		LogLevel: "info",
		Serial: Serial{
			BaudRate:    serial.DefaultBaudRate,
			ReadTimeout: Duration{serial.DefaultReadTimeout},
		},
		Axis: Axis{
			RailLength:     5.23,
			StepsPerMeter:  80_000,
			HomingVelocity: dev.HomingVelocity,
			MaxPort:        dev.MaxPort,
			PollInterval:   Duration{dev.PollInterval},
			BaseTimeout:    Duration{dev.BaseTimeout},
			ReleaseTimeout: Duration{dev.ReleaseTimeout},
		},
		Display: Display{
			Rows:     dev.Display.Rows,
			Columns:  dev.Display.Columns,
			Overflow: dev.Overflow.String(),
		},
		Monitor: Monitor{
			Interval:     Duration{watch.PollInterval},
			IdleInterval: Duration{watch.IdleInterval},
		},
	}
}

// DefaultPath returns the per-user configuration file location
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "mc1ctl", "mc1ctl.yml"), nil
}

// Load reads path over Default and validates the result. A missing file
// is not an error when optional is true.
func Load(path string, optional bool) (Config, error) {
	c := Default()

	f, err := os.Open(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, fmt.Errorf("failed to open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := Decode(f, &c); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode reads YAML from r into c, which should hold defaults, and
// validates it. Unknown keys are rejected.
func Decode(r io.Reader, c *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return c.Validate()
}

// Save writes c to path, creating the directory when needed
func Save(path string, c Config) error {
	p, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, p, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the fields that are not checked again by mc1.New
func (c Config) Validate() error {
	if _, ok := logger.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	if _, err := c.Format(); err != nil {
		return err
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("%w: serial.baud_rate must be positive", ErrInvalid)
	}
	if c.Serial.ReadTimeout.Duration < 0 {
		return fmt.Errorf("%w: serial.read_timeout is negative", ErrInvalid)
	}
	if _, err := mc1.ParseOverflowPolicy(c.Display.Overflow); err != nil {
		return fmt.Errorf("%w: display.overflow: %w", ErrInvalid, err)
	}
	if c.Monitor.Interval.Duration <= 0 {
		return fmt.Errorf("%w: monitor.interval must be positive", ErrInvalid)
	}
	if _, err := c.Device(); err != nil {
		return err
	}
	return nil
}

// Format returns the logger format named by log_format
func (c Config) Format() (logger.Format, error) {
	switch c.LogFormat {
	case "", "auto":
		return logger.FormatAuto, nil
	case "console":
		return logger.FormatConsole, nil
	case "json":
		return logger.FormatJSON, nil
	default:
		return 0, fmt.Errorf("%w: log_format %q", ErrInvalid, c.LogFormat)
	}
}

// Logger builds the logger described by the file. debug forces DebugLevel.
func (c Config) Logger(w io.Writer, debug bool) logger.Logger {
	level, _ := logger.ParseLevel(c.LogLevel)
	if debug {
		level = logger.DebugLevel
	}
	format, err := c.Format()
	if err != nil {
		format = logger.FormatAuto
	}
	return logger.New(w, level, format)
}

// Device returns the validated mc1 configuration
func (c Config) Device() (mc1.Config, error) {
	overflow, err := mc1.ParseOverflowPolicy(c.Display.Overflow)
	if err != nil {
		return mc1.Config{}, fmt.Errorf("%w: display.overflow: %w", ErrInvalid, err)
	}

	dev := mc1.DefaultConfig()
	dev.RailLength = c.Axis.RailLength
	dev.StepsPerMeter = c.Axis.StepsPerMeter
	dev.DeviceID = c.Axis.DeviceID
	dev.MaxPort = c.Axis.MaxPort
	dev.HomingVelocity = c.Axis.HomingVelocity
	dev.PollInterval = c.Axis.PollInterval.Duration
	dev.BaseTimeout = c.Axis.BaseTimeout.Duration
	dev.ReleaseTimeout = c.Axis.ReleaseTimeout.Duration
	dev.Display = mc1.DisplayGeometry{Rows: c.Display.Rows, Columns: c.Display.Columns}
	dev.Overflow = overflow

	if err := dev.Validate(); err != nil {
		return mc1.Config{}, fmt.Errorf("%w: axis: %w", ErrInvalid, err)
	}
	return dev, nil
}

// SerialOptions returns the transport options for the configured line
func (c Config) SerialOptions() []serial.Option {
	opts := []serial.Option{serial.WithBaudRate(c.Serial.BaudRate)}
	if c.Serial.ReadTimeout.Duration > 0 {
		opts = append(opts, serial.WithReadTimeout(c.Serial.ReadTimeout.Duration))
	}
	if c.Serial.NoLock {
		opts = append(opts, serial.WithoutLock())
	}
	return opts
}

// Watcher returns the polling cadence of the monitor view
func (c Config) Watcher(log logger.Logger) *polling.Config {
	watch := polling.DefaultConfig()
	watch.Logger = log
	watch.PollInterval = c.Monitor.Interval.Duration
	if c.Monitor.IdleInterval.Duration > 0 {
		watch.IdleInterval = c.Monitor.IdleInterval.Duration
	}
	// one step is the finest change worth redrawing
	if c.Axis.StepsPerMeter > 0 {
		watch.Tolerance = 1 / float64(c.Axis.StepsPerMeter)
	}
	return watch
}

// DetectionOptions returns port discovery options. probe is the version
// query used in probe mode.
func (c Config) DetectionOptions(probe detection.ProbeFunc, timeout time.Duration) detection.Options {
	opts := detection.DefaultOptions()
	opts.IgnorePaths = c.Detection.IgnorePaths
	if len(c.Detection.Blocklist) > 0 {
		opts.Blocklist = append(opts.Blocklist, c.Detection.Blocklist...)
	}
	if c.Detection.Probe && probe != nil {
		opts.Mode = detection.Probe
		opts.Probe = probe
	}
	if timeout > 0 {
		opts.Timeout = timeout
	}
	return opts
}
