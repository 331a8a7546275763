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
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	mc1 "github.com/ZaparooProject/go-iselmc1"
	"github.com/ZaparooProject/go-iselmc1/internal/config"
)

func (a *app) shellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open an interactive session that keeps the axis state between commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "mc1> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
				HistoryFile:     historyPath(),
				AutoComplete:    completer(),
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}
			defer func() { _ = rl.Close() }()

			// log lines must not tear the prompt
			a.log = a.cfg.Logger(rl.Stderr(), a.debug)

			// the session outlives any single Ctrl-C
			ctx := context.WithoutCancel(cmd.Context())
			return a.session(ctx, func(ctx context.Context, d *mc1.Device) error {
				sh := &shell{device: d, out: rl.Stdout()}
				return sh.run(ctx, rl)
			})
		},
	}
}

type shell struct {
	device *mc1.Device
	out    io.Writer
}

func (s *shell) run(ctx context.Context, rl *readline.Instance) error {
	_, _ = fmt.Fprintln(s.out, "Connected. Type 'help' for commands.")
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if err != nil {
			// EOF
			return nil
		}

		cmdCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		quit, err := s.execute(cmdCtx, line)
		stop()
		if err != nil {
			_, _ = fmt.Fprintln(s.out, "Error:", err)
		}
		if quit {
			return nil
		}
	}
}

// execute runs one command line. Ctrl-C during a blocking command cancels
// ctx, which halts the axis.
func (s *shell) execute(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		s.printHelp()
		return false, nil
	}

	act, args, ok := lookup(fields)
	if !ok {
		return false, fmt.Errorf("unknown command %q (type 'help' for commands)", strings.Join(fields, " "))
	}
	if err := act.checkArgs(args); err != nil {
		return false, err
	}
	return false, act.run(ctx, s.device, s.out, args)
}

func (s *shell) printHelp() {
	lines := make([]string, 0, len(actions)+2)
	for _, a := range actions {
		lines = append(lines, fmt.Sprintf("  %-36s %s", strings.TrimSpace(a.name()+" "+a.use), a.short))
	}
	lines = append(lines,
		fmt.Sprintf("  %-36s %s", "help", "Show this help"),
		fmt.Sprintf("  %-36s %s", "quit", "Release the axis and exit"))
	_, _ = fmt.Fprintln(s.out, "Commands:\n"+strings.Join(lines, "\n"))
}

// completer offers every action path word by word
func completer() *readline.PrefixCompleter {
	children := map[string][]string{}
	var roots []string
	for _, a := range actions {
		head := a.path[0]
		if _, seen := children[head]; !seen {
			roots = append(roots, head)
			children[head] = nil
		}
		if len(a.path) > 1 {
			children[head] = append(children[head], a.path[1])
		}
	}
	roots = append(roots, "help", "quit")
	sort.Strings(roots)

	items := make([]readline.PrefixCompleterInterface, 0, len(roots))
	for _, root := range roots {
		subs := make([]readline.PrefixCompleterInterface, 0, len(children[root]))
		for _, sub := range children[root] {
			subs = append(subs, readline.PcItem(sub))
		}
		items = append(items, readline.PcItem(root, subs...))
	}
	return readline.NewPrefixCompleter(items...)
}

func historyPath() string {
	path, err := config.DefaultPath()
	if err != nil {
		return ""
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}
