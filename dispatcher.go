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

package mc1

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-iselmc1/internal/frame"
	"github.com/ZaparooProject/go-iselmc1/internal/poll"
	"github.com/ZaparooProject/go-iselmc1/logger"
)

// CallConfig controls how a single command waits for the controller.
// The zero value blocks with the command's derived default timeout.
type CallConfig struct {
	// Timeout overrides the derived completion budget when positive.
	Timeout time.Duration
	// NonBlocking returns as soon as the frame has been written.
	NonBlocking bool
}

func (c CallConfig) timeout(derived time.Duration) time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return derived
}

// Blocking is the default call configuration.
var Blocking = CallConfig{}

// NonBlocking returns without waiting for completion.
var NonBlocking = CallConfig{NonBlocking: true}

// ackFunc receives the outcome of a command sent without waiting.
type ackFunc func(rsp frame.Response, err error)

type pendingAck struct {
	deadline time.Time
	onAck    ackFunc
	op       string
	timeout  time.Duration
	gen      uint64
}

// dispatcher owns the request/response exchange on a Transport. Reads and
// the pending queue are guarded by readMu; writes take only writeMu so that
// control codes can be sent while a call is polling.
type dispatcher struct {
	transport    Transport
	log          logger.Logger
	codec        frame.Codec
	port         string
	rx           []byte
	buf          []byte
	pending      []pendingAck
	deviceID     int
	pollInterval time.Duration
	readMu       sync.Mutex
	writeMu      sync.Mutex
	generation   atomic.Uint64
	flushInput   atomic.Bool
}

func newDispatcher(t Transport, codec frame.Codec, deviceID int, pollInterval time.Duration,
	log logger.Logger,
) *dispatcher {
	return &dispatcher{
		transport:    t,
		codec:        codec,
		deviceID:     deviceID,
		pollInterval: pollInterval,
		log:          log,
		port:         portName(t),
		buf:          make([]byte, frame.MaxFrameLength),
	}
}

// send writes cmd and, unless call is non-blocking, polls until the
// controller reports completion. Outstanding non-blocking acks are collected
// first within the same budget.
func (d *dispatcher) send(ctx context.Context, op string, cmd frame.Command, call CallConfig,
	timeout time.Duration, onAck ackFunc,
) (frame.Response, error) {
	raw, err := d.codec.Encode(d.deviceID, cmd)
	if err != nil {
		return frame.Response{}, fmt.Errorf("%s: %w", op, err)
	}

	d.readMu.Lock()
	defer d.readMu.Unlock()

	gen := d.generation.Load()
	if err := d.collectLocked(ctx, timeout, time.Time{}, false); err != nil {
		return frame.Response{}, err
	}
	if d.generation.Load() != gen {
		return frame.Response{}, cancelled(op, nil)
	}

	if d.flushInput.Swap(false) {
		d.rx = d.rx[:0]
		if err := d.transport.Flush(); err != nil {
			return frame.Response{}, d.wrapTransport(op, ErrTransportRead, err)
		}
	}

	if err := d.write(op, raw); err != nil {
		return frame.Response{}, err
	}
	d.log.Debug("tx", "op", op, "frame", string(raw))

	if !cmd.ExpectAck {
		return frame.Response{}, nil
	}
	if call.NonBlocking {
		d.pending = append(d.pending, pendingAck{
			op:       op,
			onAck:    onAck,
			timeout:  timeout,
			deadline: time.Now().Add(timeout),
			gen:      gen,
		})
		return frame.Response{Pending: true}, nil
	}

	sent := time.Now()
	rsp, err := d.await(ctx, op, gen, timeout)
	if errors.Is(err, ErrCancelled) && d.generation.Load() == gen {
		// the caller gave up but the reply is still due; consume it later
		d.pending = append(d.pending, pendingAck{
			op:       op,
			timeout:  timeout,
			deadline: sent.Add(timeout),
			gen:      gen,
		})
	}
	return rsp, err
}

// sendImmediate writes a single control byte. It never waits for readMu, so
// it interrupts a call that is currently polling.
func (d *dispatcher) sendImmediate(code frame.Control) error {
	d.generation.Add(1)
	d.flushInput.Store(true)
	if err := d.write(code.String(), []byte{byte(code)}); err != nil {
		return err
	}
	d.log.Debug("tx", "op", code.String(), "control", fmt.Sprintf("0x%02X", byte(code)))
	return nil
}

func (d *dispatcher) write(op string, raw []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	n, err := d.transport.Write(raw)
	if err != nil {
		return d.wrapTransport(op, ErrTransportWrite, err)
	}
	if n != len(raw) {
		return NewTransportError(op, d.port,
			fmt.Errorf("%w: short write %d of %d bytes", ErrTransportWrite, n, len(raw)), ErrorTypeTransient)
	}
	return nil
}

// collect completes pending acknowledgments in order. A positive limit
// bounds the wait per ack; an ack that does not arrive within limit stays
// pending.
func (d *dispatcher) collect(ctx context.Context, limit time.Duration) error {
	d.readMu.Lock()
	defer d.readMu.Unlock()
	return d.collectLocked(ctx, limit, time.Time{}, true)
}

// collectBy is collect with one deadline shared by all pending acks.
func (d *dispatcher) collectBy(ctx context.Context, until time.Time) error {
	d.readMu.Lock()
	defer d.readMu.Unlock()
	return d.collectLocked(ctx, 0, until, true)
}

// hasPending reports whether non-blocking commands still await their ack.
func (d *dispatcher) hasPending() bool {
	d.readMu.Lock()
	defer d.readMu.Unlock()
	return len(d.pending) > 0
}

// collectLocked waits for each pending ack until its own deadline, cut
// short by a positive limit per ack or a non-zero until for the whole
// collection. With keep set, an ack cut short stays pending.
func (d *dispatcher) collectLocked(ctx context.Context, limit time.Duration, until time.Time, keep bool) error {
	for len(d.pending) > 0 {
		p := d.pending[0]
		if d.generation.Load() != p.gen {
			d.pending = d.pending[1:]
			d.complete(p, frame.Response{}, cancelled(p.op, nil))
			continue
		}

		budget := time.Until(p.deadline)
		bounded := limit > 0 && limit < budget
		if bounded {
			budget = limit
		}
		if rest := time.Until(until); !until.IsZero() && rest < budget {
			budget, bounded = rest, true
		}
		if bounded && keep && budget <= 0 {
			return nil
		}

		rsp, err := d.await(ctx, p.op, p.gen, budget)
		var te *TimeoutError
		switch {
		case errors.As(err, &te) && bounded && keep:
			return nil
		case errors.As(err, &te) && !bounded:
			te.Timeout = p.timeout
		case errors.Is(err, ErrCancelled) && d.generation.Load() == p.gen:
			// context ended; the ack may still arrive later
			return err
		}

		d.pending = d.pending[1:]
		d.complete(p, rsp, err)
		if err != nil && !errors.Is(err, ErrCancelled) {
			return err
		}
	}
	return nil
}

func (*dispatcher) complete(p pendingAck, rsp frame.Response, err error) {
	if p.onAck != nil {
		p.onAck(rsp, err)
	}
}

// await polls for one response frame. The wait ends early when a control
// code bumps the generation or ctx is done.
func (d *dispatcher) await(ctx context.Context, op string, gen uint64, timeout time.Duration) (frame.Response, error) {
	isCancelled := func() bool { return d.generation.Load() != gen }

	raw, err := poll.Until(ctx, poll.Config{
		Cancelled: isCancelled,
		Timeout:   timeout,
		Interval:  d.pollInterval,
	}, func(budget time.Duration) ([]byte, bool, error) {
		return d.readFrame(op, budget)
	})
	switch {
	case errors.Is(err, poll.ErrDeadline):
		return frame.Response{}, &TimeoutError{Op: op, Timeout: timeout}
	case errors.Is(err, poll.ErrCancelled):
		return frame.Response{}, cancelled(op, ctx.Err())
	case err != nil:
		return frame.Response{}, err
	}
	if isCancelled() {
		return frame.Response{}, cancelled(op, nil)
	}

	rsp, err := d.codec.Decode(raw)
	if err != nil {
		return frame.Response{}, &ProtocolError{Op: op, Raw: raw, Err: err}
	}
	d.log.Debug("rx", "op", op, "frame", string(bytes.TrimRight(raw, "\r\n")))
	if !rsp.OK() {
		return rsp, &DeviceError{Op: op, Code: rsp.Status}
	}
	return rsp, nil
}

// readFrame performs one poll iteration. A frame ends at CR/LF or, since
// bare acks are unterminated, at a read that sees silence after data.
func (d *dispatcher) readFrame(op string, budget time.Duration) ([]byte, bool, error) {
	if frm, ok := d.takeFrame(false); ok {
		return frm, true, nil
	}

	n, err := d.transport.Read(d.buf, budget)
	if n > 0 {
		d.rx = append(d.rx, d.buf[:n]...)
	}
	if err != nil && !errors.Is(err, ErrTransportTimeout) {
		return nil, false, d.wrapTransport(op, ErrTransportRead, err)
	}

	frm, ok := d.takeFrame(n == 0)
	if !ok && len(d.rx) > frame.MaxFrameLength {
		raw := d.rx
		d.rx = nil
		return nil, false, &ProtocolError{Op: op, Raw: raw, Err: ErrFrameTooLong}
	}
	return frm, ok, nil
}

func (d *dispatcher) takeFrame(silent bool) ([]byte, bool) {
	d.rx = bytes.TrimLeft(d.rx, "\r\n")
	if i := bytes.IndexAny(d.rx, "\r\n"); i >= 0 {
		frm := append([]byte(nil), d.rx[:i+1]...)
		d.rx = d.rx[i+1:]
		return frm, true
	}
	if silent && len(d.rx) > 0 {
		frm := append([]byte(nil), d.rx...)
		d.rx = d.rx[:0]
		return frm, true
	}
	return nil, false
}

func (d *dispatcher) wrapTransport(op string, sentinel, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, sentinel) || errors.Is(err, ErrTransportClosed) {
		return NewTransportError(op, d.port, err, GetErrorType(err))
	}
	return NewTransportError(op, d.port, fmt.Errorf("%w: %w", sentinel, err), ErrorTypeTransient)
}
