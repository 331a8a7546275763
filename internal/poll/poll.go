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

// Package poll provides the bounded poll loop used to await controller completions
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Poll loop outcomes other than success
var (
	ErrDeadline  = errors.New("poll deadline exceeded")
	ErrCancelled = errors.New("poll cancelled")
)

// Operation performs one poll iteration and must not block longer than budget.
// Returns: result, done, error
//   - result: the value to return once done
//   - done: true ends the loop successfully
//   - error: a permanent error that ends the loop
type Operation[T any] func(budget time.Duration) (T, bool, error)

// Config bounds a poll loop.
type Config struct {
	// Cancelled is checked before every iteration; returning true ends the
	// loop with ErrCancelled.
	Cancelled func() bool
	// Timeout is the total budget of the loop.
	Timeout time.Duration
	// Interval caps the budget handed to a single iteration.
	Interval time.Duration
}

// Until runs op until it reports done, fails, the deadline passes, the
// cancellation check fires or ctx ends. Context errors are reported wrapped
// in ErrCancelled.
func Until[T any](ctx context.Context, cfg Config, op Operation[T]) (T, error) {
	var zero T
	deadline := time.Now().Add(cfg.Timeout)

	for {
		if cfg.Cancelled != nil && cfg.Cancelled() {
			return zero, ErrCancelled
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		default:
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return zero, ErrDeadline
		}

		budget := remaining
		if cfg.Interval > 0 && cfg.Interval < budget {
			budget = cfg.Interval
		}

		result, done, err := op(budget)
		if err != nil {
			return zero, err
		}
		if done {
			return result, nil
		}
	}
}
