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

package monitor

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mc1 "github.com/ZaparooProject/go-iselmc1"
	"github.com/ZaparooProject/go-iselmc1/polling"
)

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_Snapshot(t *testing.T) {
	t.Parallel()

	m := NewModel("axis", 5, Controls{}, func() polling.Metrics {
		return polling.Metrics{Polls: 12, Queries: 9, Errors: 1}
	})
	assert.Contains(t, m.View(), "waiting")

	_, _ = m.Update(SnapshotMsg{State: mc1.StateMoving, Position: 2.5, Known: true})
	view := m.View()
	assert.Contains(t, view, "moving")
	assert.Contains(t, view, "2.500000 m")
	assert.Contains(t, view, "12 (9 queries)")
	assert.Contains(t, view, strings.Repeat("█", barWidth/2))

	_, _ = m.Update(ErrorMsg{Err: errors.New("line noise")})
	assert.Contains(t, m.View(), "error: line noise")
}

func TestModel_Keys(t *testing.T) {
	t.Parallel()

	var sent []string
	record := func(name string) func() error {
		return func() error {
			sent = append(sent, name)
			return nil
		}
	}
	m := NewModel("axis", 5, Controls{
		Stop:  record("stop"),
		Break: record("break"),
		Reset: func() error { return mc1.ErrClosed },
	}, nil)

	_, _ = m.Update(key("s"))
	_, _ = m.Update(key("b"))
	assert.Equal(t, []string{"stop", "break"}, sent)
	assert.Contains(t, m.View(), "break sent")

	_, _ = m.Update(key("r"))
	assert.Contains(t, m.View(), "reset failed")

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestRailBar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		pos   float64
		rail  float64
		known bool
		fill  int
	}{
		{name: "start", pos: 0, rail: 5, known: true, fill: 0},
		{name: "middle", pos: 2.5, rail: 5, known: true, fill: barWidth / 2},
		{name: "end", pos: 5, rail: 5, known: true, fill: barWidth},
		{name: "past end", pos: 7, rail: 5, known: true, fill: barWidth},
		{name: "negative", pos: -1, rail: 5, known: true, fill: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			bar := railBar(tt.pos, tt.rail, tt.known)
			assert.Equal(t, tt.fill, strings.Count(bar, "█"))
			assert.Equal(t, barWidth, len([]rune(bar)))
		})
	}

	assert.Equal(t, strings.Repeat("·", barWidth), railBar(1, 5, false))
	assert.Equal(t, strings.Repeat("·", barWidth), railBar(1, 0, true))
}
