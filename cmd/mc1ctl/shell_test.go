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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mc1 "github.com/ZaparooProject/go-iselmc1"
)

func TestShellExecute(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d, mock := newTestDevice(t)
	var out bytes.Buffer
	sh := &shell{device: d, out: &out}

	quit, err := sh.execute(ctx, "   ")
	require.NoError(t, err)
	assert.False(t, quit)

	// the shell does not prepare the axis on its own
	_, err = sh.execute(ctx, "move abs 1 1")
	require.ErrorIs(t, err, mc1.ErrInvalidState)

	for _, line := range []string{"init", "home simulate", "move abs 1 1"} {
		_, err = sh.execute(ctx, line)
		require.NoError(t, err, line)
	}
	assert.Equal(t, int64(1_000_000), mock.Position())

	_, err = sh.execute(ctx, "move abs")
	require.ErrorIs(t, err, errUsage)

	_, err = sh.execute(ctx, "teleport")
	require.ErrorContains(t, err, "unknown command")

	out.Reset()
	quit, err = sh.execute(ctx, "help")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, out.String(), "move abs <position> <speed> [nowait]")
	assert.Contains(t, out.String(), "quit")

	quit, err = sh.execute(ctx, "exit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestCompleter(t *testing.T) {
	t.Parallel()

	c := completer()
	names := map[string]int{}
	for _, child := range c.GetChildren() {
		names[string(child.GetName())] = len(child.GetChildren())
	}
	assert.Equal(t, 2, names["move "])
	assert.Equal(t, 2, names["display "])
	assert.Equal(t, 0, names["pos "])
	assert.Contains(t, names, "quit ")
}
