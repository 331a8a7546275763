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

// Package polling watches an MC1 axis and reports state and position
// changes to callbacks.
package polling

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	mc1 "github.com/ZaparooProject/go-iselmc1"
	"github.com/ZaparooProject/go-iselmc1/logger"
)

// Watcher errors
var (
	ErrAlreadyRunning = errors.New("watcher is already running")
	ErrNilAxis        = errors.New("axis cannot be nil")
)

// Axis is the part of *mc1.Device a Watcher reads.
type Axis interface {
	State() mc1.AxisState
	Position() (meters float64, ok bool)
	GetPos(ctx context.Context) (float64, error)
}

// Config holds the polling cadence
type Config struct {
	Logger logger.Logger
	// PollInterval is the period while the axis moves or recently moved
	PollInterval time.Duration
	// IdleInterval is the period once the axis has been still for IdleAfter
	IdleInterval time.Duration
	// IdleAfter is how long the axis must be still before polling slows down
	IdleAfter time.Duration
	// QueryTimeout bounds one position query. It does not bound the wait for
	// a command that already holds the device, such as a Release, since
	// GetPos queues behind it; zero passes the watcher's context unchanged.
	QueryTimeout time.Duration
	// Tolerance is the smallest position change in meters that is reported
	Tolerance float64
}

// DefaultConfig returns a cadence suited to an operator display
func DefaultConfig() *Config {
	return &Config{
		PollInterval: 100 * time.Millisecond,
		IdleInterval: 500 * time.Millisecond,
		IdleAfter:    5 * time.Second,
		QueryTimeout: time.Second,
		Tolerance:    1e-6,
	}
}

// Snapshot is one observation of the axis
type Snapshot struct {
	Time     time.Time
	Position float64
	State    mc1.AxisState
	Known    bool
}

// Callbacks are invoked from the watcher goroutine. Any may be nil.
type Callbacks struct {
	OnStateChange    func(from, to mc1.AxisState)
	OnPositionChange func(Snapshot)
	OnError          func(error)
}

// Metrics counts watcher activity
type Metrics struct {
	Polls           int64
	Queries         int64
	Errors          int64
	StateChanges    int64
	LastPollLatency time.Duration
}

// Watcher polls an axis on its own goroutine.
type Watcher struct {
	axis      Axis
	config    *Config
	callbacks Callbacks
	last      atomic.Pointer[Snapshot]
	cancel    context.CancelFunc
	done      chan struct{}
	lastMove  time.Time

	polls        atomic.Int64
	queries      atomic.Int64
	errs         atomic.Int64
	stateChanges atomic.Int64
	latency      atomic.Int64
	interval     atomic.Int64

	mu      sync.Mutex
	running atomic.Bool
}

// NewWatcher creates a watcher. A nil config uses DefaultConfig.
func NewWatcher(axis Axis, config *Config, callbacks Callbacks) (*Watcher, error) {
	if axis == nil {
		return nil, ErrNilAxis
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.IdleInterval < config.PollInterval {
		config.IdleInterval = config.PollInterval
	}
	w := &Watcher{axis: axis, config: config, callbacks: callbacks}
	w.interval.Store(int64(config.PollInterval))
	return w, nil
}

// Start begins polling in the background. It returns immediately.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running.Load() {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.lastMove = time.Now()
	w.running.Store(true)

	go w.loop(ctx, cancel, w.done)
	return nil
}

// Stop ends polling and waits for the goroutine to exit. Stopping a
// watcher that is not running is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running.Load() {
		return
	}
	w.cancel()
	<-w.done
}

// IsRunning reports whether the polling goroutine is active
func (w *Watcher) IsRunning() bool {
	return w.running.Load()
}

// Snapshot returns the latest observation. ok is false before the first
// poll.
func (w *Watcher) Snapshot() (Snapshot, bool) {
	s := w.last.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// Metrics returns the current counters
func (w *Watcher) Metrics() Metrics {
	return Metrics{
		Polls:           w.polls.Load(),
		Queries:         w.queries.Load(),
		Errors:          w.errs.Load(),
		StateChanges:    w.stateChanges.Load(),
		LastPollLatency: time.Duration(w.latency.Load()),
	}
}

// CurrentInterval returns the adaptive polling period
func (w *Watcher) CurrentInterval() time.Duration {
	return time.Duration(w.interval.Load())
}

func (w *Watcher) loop(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer w.running.Store(false)
	defer cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := w.poll(ctx); errors.Is(err, mc1.ErrClosed) {
			w.config.Logger.Debug("axis closed, watcher stopping")
			return
		}
		timer.Reset(w.adjustInterval())
	}
}

// poll takes one observation. A busy axis is read from the host's cache:
// a blocking command holds the device until it completes, so querying
// would stall the watcher for the whole move.
func (w *Watcher) poll(ctx context.Context) error {
	start := time.Now()
	defer func() {
		w.polls.Add(1)
		w.latency.Store(int64(time.Since(start)))
	}()

	snap := Snapshot{Time: start}
	if !w.axis.State().Busy() {
		qctx := ctx
		if w.config.QueryTimeout > 0 {
			var cancel context.CancelFunc
			qctx, cancel = context.WithTimeout(ctx, w.config.QueryTimeout)
			defer cancel()
		}
		w.queries.Add(1)
		if _, err := w.axis.GetPos(qctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.errs.Add(1)
			w.config.Logger.Debug("position query failed", "error", err)
			if w.callbacks.OnError != nil {
				w.callbacks.OnError(err)
			}
			if errors.Is(err, mc1.ErrClosed) {
				return err
			}
		}
	}
	snap.State = w.axis.State()
	snap.Position, snap.Known = w.axis.Position()

	w.publish(snap)
	return nil
}

func (w *Watcher) publish(snap Snapshot) {
	prev := w.last.Swap(&snap)

	changed := prev != nil && prev.State != snap.State
	if changed {
		w.stateChanges.Add(1)
		w.config.Logger.Debug("axis state observed", "from", prev.State.String(), "to", snap.State.String())
		if w.callbacks.OnStateChange != nil {
			w.callbacks.OnStateChange(prev.State, snap.State)
		}
	}

	moved := prev == nil || prev.Known != snap.Known ||
		math.Abs(prev.Position-snap.Position) > w.config.Tolerance
	if moved && w.callbacks.OnPositionChange != nil {
		w.callbacks.OnPositionChange(snap)
	}

	if changed || moved || snap.State.Busy() {
		w.lastMove = snap.Time
	}
}

// adjustInterval slows polling down once the axis has been still for
// IdleAfter and speeds it up again on any change.
func (w *Watcher) adjustInterval() time.Duration {
	interval := w.config.PollInterval
	if w.config.IdleAfter > 0 && time.Since(w.lastMove) > w.config.IdleAfter {
		interval = w.config.IdleInterval
	}
	w.interval.Store(int64(interval))
	return interval
}
