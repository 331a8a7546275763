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

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mc1 "github.com/ZaparooProject/go-iselmc1"
	"github.com/ZaparooProject/go-iselmc1/detection"
	"github.com/ZaparooProject/go-iselmc1/logger"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	c := Default()
	require.NoError(t, c.Validate())

	dev, err := c.Device()
	require.NoError(t, err)
	assert.InDelta(t, 5.23, dev.RailLength, 1e-12)
	assert.Equal(t, 80_000, dev.StepsPerMeter)
	assert.Equal(t, mc1.DefaultDisplay, dev.Display)
	assert.Equal(t, 5*time.Second, dev.BaseTimeout)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	const doc = `
port: /dev/ttyUSB1
log_level: debug
log_format: json
serial:
  baud_rate: 9600
  read_timeout: 150ms
  no_lock: true
axis:
  rail_length: 2.5
  steps_per_meter: 100000
  device_id: 3
  poll_interval: 10ms
display:
  rows: 2
  columns: 16
  overflow: reject
monitor:
  interval: 50ms
detection:
  probe: true
  ignore_paths: [/dev/ttyS0]
  blocklist: ["0403:6015"]
`
	c := Default()
	require.NoError(t, Decode(strings.NewReader(doc), &c))

	assert.Equal(t, "/dev/ttyUSB1", c.Port)
	assert.Equal(t, 9600, c.Serial.BaudRate)
	assert.Equal(t, 150*time.Millisecond, c.Serial.ReadTimeout.Duration)
	assert.True(t, c.Serial.NoLock)
	assert.Len(t, c.SerialOptions(), 3)

	dev, err := c.Device()
	require.NoError(t, err)
	assert.InDelta(t, 2.5, dev.RailLength, 1e-12)
	assert.Equal(t, 3, dev.DeviceID)
	assert.Equal(t, 10*time.Millisecond, dev.PollInterval)
	// keys absent from the file keep their defaults
	assert.Equal(t, 10*time.Second, dev.ReleaseTimeout)
	assert.Equal(t, mc1.OverflowReject, dev.Overflow)
	assert.Equal(t, mc1.DisplayGeometry{Rows: 2, Columns: 16}, dev.Display)

	format, err := c.Format()
	require.NoError(t, err)
	assert.Equal(t, logger.FormatJSON, format)
	assert.Equal(t, logger.DebugLevel, c.Logger(os.Stderr, false).Level())

	watch := c.Watcher(logger.Nop())
	assert.Equal(t, 50*time.Millisecond, watch.PollInterval)
	assert.InDelta(t, 1e-5, watch.Tolerance, 1e-12)

	probe := func(context.Context, string) (string, error) { return "", nil }
	opts := c.DetectionOptions(probe, time.Second)
	assert.Equal(t, detection.Probe, opts.Mode)
	assert.Equal(t, []string{"/dev/ttyS0"}, opts.IgnorePaths)
	assert.True(t, detection.IsBlocked("0403:6015", opts.Blocklist))
	assert.True(t, detection.IsBlocked("2E8A:000A", opts.Blocklist))
	assert.Equal(t, time.Second, opts.Timeout)
}

func TestDecode_Empty(t *testing.T) {
	t.Parallel()

	c := Default()
	require.NoError(t, Decode(strings.NewReader(""), &c))
	assert.Equal(t, Default(), c)
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		doc     string
		invalid bool
	}{
		{name: "unknown key", doc: "prot: /dev/ttyUSB0\n"},
		{name: "bad duration", doc: "axis:\n  base_timeout: soon\n"},
		{name: "bad level", doc: "log_level: loud\n", invalid: true},
		{name: "bad format", doc: "log_format: xml\n", invalid: true},
		{name: "zero baud", doc: "serial:\n  baud_rate: 0\n", invalid: true},
		{name: "bad overflow", doc: "display:\n  overflow: wrap\n", invalid: true},
		{name: "zero rail", doc: "axis:\n  rail_length: 0\n", invalid: true},
		{name: "device id too large", doc: "axis:\n  device_id: 12\n", invalid: true},
		{name: "zero monitor interval", doc: "monitor:\n  interval: 0s\n", invalid: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := Default()
			err := Decode(strings.NewReader(tt.doc), &c)
			require.Error(t, err)
			if tt.invalid {
				require.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestLoadAndSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "mc1ctl.yml")

	_, err := Load(path, false)
	require.ErrorIs(t, err, os.ErrNotExist)

	c, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	c.Port = "COM4"
	c.Axis.BaseTimeout = Duration{2 * time.Second}
	require.NoError(t, Save(path, c))

	loaded, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, c, loaded)
}

func TestDefaultPath(t *testing.T) {
	t.Parallel()

	path, err := DefaultPath()
	if err != nil {
		t.Skip("no user config directory")
	}
	assert.Equal(t, "mc1ctl.yml", filepath.Base(path))
}
