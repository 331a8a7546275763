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
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mc1 "github.com/ZaparooProject/go-iselmc1"
	"github.com/ZaparooProject/go-iselmc1/internal/frame"
)

func newTestDevice(t *testing.T) (*mc1.Device, *mc1.MockTransport) {
	t.Helper()

	cfg := mc1.DefaultConfig()
	cfg.RailLength = 5
	cfg.StepsPerMeter = 1_000_000
	cfg.PollInterval = 5 * time.Millisecond
	cfg.BaseTimeout = time.Second
	cfg.ReleaseTimeout = time.Second

	mock := mc1.NewMockTransport()
	device, err := mc1.New(mock, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })
	return device, mock
}

func TestLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		name string
		rest []string
		ok   bool
	}{
		{line: "move abs 2m 1", name: "move abs", rest: []string{"2m", "1"}, ok: true},
		{line: "MOVE REL -1 1", name: "move rel", rest: []string{"-1", "1"}, ok: true},
		{line: "home simulate", name: "home", rest: []string{"simulate"}, ok: true},
		{line: "pos", name: "pos", rest: []string{}, ok: true},
		{line: "display print 1 1 hello world", name: "display print", rest: []string{"1", "1", "hello", "world"}, ok: true},
		{line: "move", ok: false},
		{line: "jump 3", ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.line, func(t *testing.T) {
			t.Parallel()
			act, rest, ok := lookup(strings.Fields(tt.line))
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.name, act.name())
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestActionArgs(t *testing.T) {
	t.Parallel()

	act, _, ok := lookup([]string{"move", "abs"})
	require.True(t, ok)
	require.ErrorIs(t, act.checkArgs([]string{"2m"}), errUsage)
	require.NoError(t, act.checkArgs([]string{"2m", "1"}))
	require.NoError(t, act.checkArgs([]string{"2m", "1", "nowait"}))
	require.ErrorIs(t, act.checkArgs([]string{"2m", "1", "nowait", "x"}), errUsage)

	act, _, ok = lookup([]string{"display", "print"})
	require.True(t, ok)
	require.NoError(t, act.checkArgs([]string{"1", "1", "a", "b", "c"}))
}

func TestPrepare(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("Nothing", func(t *testing.T) {
		t.Parallel()
		d, mock := newTestDevice(t)
		require.NoError(t, prepare(ctx, d, needNothing, false))
		assert.Equal(t, mc1.StateUninitialized, d.State())
		assert.Zero(t, mock.WriteCount())
	})

	t.Run("Init", func(t *testing.T) {
		t.Parallel()
		d, mock := newTestDevice(t)
		require.NoError(t, prepare(ctx, d, needInit, false))
		assert.Equal(t, mc1.StateIdle, d.State())
		assert.Equal(t, 1, mock.CallCount(frame.OpInit))

		// an initialized axis is left alone
		require.NoError(t, prepare(ctx, d, needInit, false))
		assert.Equal(t, 1, mock.CallCount(frame.OpInit))
	})

	t.Run("Home", func(t *testing.T) {
		t.Parallel()
		d, mock := newTestDevice(t)
		require.NoError(t, prepare(ctx, d, needHome, false))
		_, known := d.Position()
		assert.True(t, known)
		assert.Equal(t, 1, mock.CallCount(frame.OpHoming))
	})

	t.Run("Simulated_Home", func(t *testing.T) {
		t.Parallel()
		d, mock := newTestDevice(t)
		require.NoError(t, prepare(ctx, d, needHome, true))
		assert.Equal(t, 1, mock.CallCount(frame.OpSimulateHoming))
		assert.Zero(t, mock.CallCount(frame.OpHoming))
	})
}

func TestActions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d, mock := newTestDevice(t)
	require.NoError(t, prepare(ctx, d, needHome, true))

	run := func(line string) string {
		t.Helper()
		act, args, ok := lookup(strings.Fields(line))
		require.True(t, ok, line)
		require.NoError(t, act.checkArgs(args), line)
		var out bytes.Buffer
		require.NoError(t, act.run(ctx, d, &out, args), line)
		return out.String()
	}

	assert.Equal(t, "MC1 DNC V2.10\n", run("info"))
	assert.True(t, strings.HasPrefix(run("move abs 2m 400mm/s"), "at "))
	assert.Equal(t, int64(2_000_000), mock.Position())
	assert.True(t, strings.HasPrefix(run("move rel -500mm 0.1"), "at "))
	assert.Equal(t, int64(1_500_000), mock.Position())
	assert.Equal(t, "1.500000 m\n", run("pos"))
	assert.Contains(t, run("state"), "state: idle")

	assert.Equal(t, "port 3 set to 0b00101010\n", run("port write 3 0x2a"))
	assert.Equal(t, "port 3: 42 (0b00101010)\n", run("port read 3"))

	run("display print 2 1 hello world")
	assert.Equal(t, "hello world", mock.DisplayRow(2))
	run("display clear 2")
	assert.Empty(t, mock.DisplayRow(2))

	assert.Equal(t, "state: test-mode\n", run("test-mode on"))
	assert.Equal(t, "state: idle\n", run("test-mode off"))

	run("cnc save")
	run("cnc flush")
	run("start")
	assert.Equal(t, 1, mock.CallCount(frame.OpSaveCNC))
	assert.Equal(t, 1, mock.CallCount(frame.OpFlushCNC))
	assert.Equal(t, 1, mock.CallCount(frame.OpStart))

	assert.True(t, strings.HasPrefix(run("move abs 3 1 nowait"), "moving to "))
	assert.Contains(t, run("wait 1s"), "done, state idle")

	assert.Equal(t, "state: idle\n", run("stop"))
	assert.Equal(t, "released\n", run("release"))
	assert.True(t, mock.Released())
	assert.Equal(t, "state: uninitialized\n", run("reset"))
}

func TestActionErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d, _ := newTestDevice(t)

	tests := []struct {
		line string
		want error
	}{
		{line: "move abs 2m 1", want: mc1.ErrInvalidState},
		{line: "home sideways", want: errUsage},
		{line: "test-mode maybe", want: errUsage},
	}
	for _, tt := range tests {
		act, args, ok := lookup(strings.Fields(tt.line))
		require.True(t, ok)
		err := act.run(ctx, d, &bytes.Buffer{}, args)
		require.ErrorIs(t, err, tt.want, tt.line)
	}

	act, args, _ := lookup(strings.Fields("port read x"))
	require.Error(t, act.run(ctx, d, &bytes.Buffer{}, args))
	act, args, _ = lookup(strings.Fields("move abs 2m slow"))
	require.Error(t, act.run(ctx, d, &bytes.Buffer{}, args))
}
