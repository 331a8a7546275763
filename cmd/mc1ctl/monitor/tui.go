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
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	mc1 "github.com/ZaparooProject/go-iselmc1"
	"github.com/ZaparooProject/go-iselmc1/polling"
)

const barWidth = 40

// SnapshotMsg carries a watcher observation into the program
type SnapshotMsg polling.Snapshot

// ErrorMsg carries a failed poll into the program
type ErrorMsg struct{ Err error }

// Controls are the immediate codes bound to keys
type Controls struct {
	Stop  func() error
	Break func() error
	Reset func() error
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00afff"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	busyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaf00"))
	idleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd75f"))
)

// Model is the bubbletea model of the monitor view
type Model struct {
	controls Controls
	metrics  func() polling.Metrics
	lastErr  error
	title    string
	status   string
	table    table.Model
	snap     polling.Snapshot
	rail     float64
	seen     bool
}

// NewModel returns a monitor for a rail of the given length in meters.
// metrics may be nil.
func NewModel(title string, rail float64, controls Controls, metrics func() polling.Metrics) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Axis", Width: 12},
			{Title: "Value", Width: barWidth + 4},
		}),
		table.WithFocused(false),
		table.WithHeight(9),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		Foreground(lipgloss.Color("#00afff")).
		BorderForeground(lipgloss.Color("#00afff")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#ffffff")).
		Bold(false)
	t.SetStyles(s)

	m := &Model{title: title, rail: rail, controls: controls, metrics: metrics, table: t}
	m.refresh()
	return m
}

// Init implements tea.Model
func (*Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
	case SnapshotMsg:
		m.snap = polling.Snapshot(msg)
		m.seen = true
		m.lastErr = nil
		m.refresh()
	case ErrorMsg:
		m.lastErr = msg.Err
		m.refresh()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s", " ":
			m.send("stop", m.controls.Stop)
		case "b":
			m.send("break", m.controls.Break)
		case "r":
			m.send("reset", m.controls.Reset)
		}
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if m.lastErr != nil {
		b.WriteString(errStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("s/space stop • b break • r reset • q quit"))
	return b.String()
}

func (m *Model) send(name string, fn func() error) {
	if fn == nil {
		return
	}
	if err := fn(); err != nil {
		m.status = errStyle.Render(fmt.Sprintf("%s failed: %v", name, err))
		return
	}
	m.status = fmt.Sprintf("%s sent at %s", name, time.Now().Format(time.TimeOnly))
}

func (m *Model) refresh() {
	state, pos, bar := "waiting", "unknown", railBar(0, m.rail, false)
	if m.seen {
		style := idleStyle
		if m.snap.State.Busy() || m.snap.State == mc1.StateFaulted {
			style = busyStyle
		}
		state = style.Render(m.snap.State.String())
		if m.snap.Known {
			pos = fmt.Sprintf("%.6f m", m.snap.Position)
		}
		bar = railBar(m.snap.Position, m.rail, m.snap.Known)
	}

	rows := []table.Row{
		{"State", state},
		{"Position", pos},
		{"Rail", bar},
	}
	if m.metrics != nil {
		mt := m.metrics()
		rows = append(rows,
			table.Row{"Polls", fmt.Sprintf("%d (%d queries)", mt.Polls, mt.Queries)},
			table.Row{"Errors", fmt.Sprintf("%d", mt.Errors)},
			table.Row{"Latency", mt.LastPollLatency.Round(time.Microsecond).String()},
		)
	}
	m.table.SetRows(rows)
}

// railBar draws the position on a rail of the given length
func railBar(pos, rail float64, known bool) string {
	if !known || rail <= 0 {
		return strings.Repeat("·", barWidth)
	}
	fill := int(math.Round(pos / rail * barWidth))
	fill = min(max(fill, 0), barWidth)
	return strings.Repeat("█", fill) + strings.Repeat("░", barWidth-fill)
}
