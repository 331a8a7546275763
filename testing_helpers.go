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
	"strconv"
	"sync"
	"time"

	"github.com/ZaparooProject/go-iselmc1/internal/frame"
)

// MockTransport is a Transport backed by a simulated MC1 controller. It
// decodes every request, tracks position, port levels and display rows,
// and answers like the controller. Completions can be delayed, replaced by
// error codes or withheld entirely, which makes it usable for timeout and
// cancellation tests.
type MockTransport struct {
	codec    frame.Codec
	readErr  error
	writeErr error
	notify   chan struct{}
	done     chan struct{}
	errCodes map[frame.Opcode]byte
	delays   map[frame.Opcode]time.Duration
	hangs    map[frame.Opcode]bool
	calls    map[frame.Opcode]int
	ports    map[int]PortValue
	display  map[int]string
	timers   map[*time.Timer]struct{}
	version  string
	out      []byte
	writes   [][]byte
	controls []byte
	position int64
	mu       sync.Mutex
	closed   bool
	bareAcks bool
	testMode bool
	released bool
	initDone bool
	flushes  int
	deviceID int
}

// NewMockTransport creates a simulated controller answering to device id 0.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		errCodes: make(map[frame.Opcode]byte),
		delays:   make(map[frame.Opcode]time.Duration),
		hangs:    make(map[frame.Opcode]bool),
		calls:    make(map[frame.Opcode]int),
		ports:    make(map[int]PortValue),
		display:  make(map[int]string),
		timers:   make(map[*time.Timer]struct{}),
		version:  "MC1 DNC V2.10",
	}
}

// Write accepts one request frame or one control byte.
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, NewTransportError("write", "mock", ErrTransportClosed, ErrorTypePermanent)
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes = append(m.writes, append([]byte(nil), p...))

	if len(p) == 1 && frame.IsControl(p[0]) {
		m.handleControl(frame.Control(p[0]))
		return len(p), nil
	}

	id, cmd, err := m.codec.DecodeCommand(p)
	if err != nil {
		m.replyLocked('5', "")
		return len(p), nil
	}
	if id != m.deviceID {
		// addressed to another controller on the line
		return len(p), nil
	}
	m.calls[cmd.Opcode]++

	if m.hangs[cmd.Opcode] {
		return len(p), nil
	}
	if code, ok := m.errCodes[cmd.Opcode]; ok {
		m.replyLocked(code, "")
		return len(p), nil
	}

	if delay := m.delays[cmd.Opcode]; delay > 0 {
		var timer *time.Timer
		timer = time.AfterFunc(delay, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, live := m.timers[timer]; !live || m.closed {
				return
			}
			delete(m.timers, timer)
			m.executeLocked(cmd)
		})
		m.timers[timer] = struct{}{}
		return len(p), nil
	}

	m.executeLocked(cmd)
	return len(p), nil
}

// handleControl aborts every delayed completion. Reset also forgets the
// initialization.
func (m *MockTransport) handleControl(code frame.Control) {
	m.controls = append(m.controls, byte(code))
	for t := range m.timers {
		t.Stop()
		delete(m.timers, t)
	}
	if code == frame.CtrlReset {
		m.initDone = false
		m.testMode = false
	}
}

func (m *MockTransport) executeLocked(cmd frame.Command) {
	arg := func(i int) int64 {
		v, _ := strconv.ParseInt(cmd.Args[i], 10, 64)
		return v
	}

	payload := ""
	switch cmd.Opcode {
	case frame.OpInit:
		m.initDone = true
		m.released = false
	case frame.OpHoming, frame.OpSimulateHoming:
		m.position = 0
	case frame.OpMoveAbsolute:
		m.position = arg(0)
	case frame.OpMoveRelative:
		m.position += arg(0)
	case frame.OpPosition:
		payload = frame.FormatHexSigned(m.position, frame.PositionDigits)
	case frame.OpReadPort:
		payload = strconv.Itoa(int(m.ports[int(arg(0))]))
	case frame.OpWritePort:
		m.ports[int(arg(0))] = PortValue(arg(1))
	case frame.OpRelease:
		m.released = true
	case frame.OpClearRow:
		delete(m.display, int(arg(0)))
	case frame.OpPrint:
		m.display[int(arg(0))] = cmd.Args[2]
	case frame.OpTestMode:
		m.testMode = cmd.Args[0] == "1"
	case frame.OpVersion:
		payload = m.version
	case frame.OpSaveCNC, frame.OpFlushCNC, frame.OpStart:
	}
	m.replyLocked(frame.StatusOK, payload)
}

func (m *MockTransport) replyLocked(status byte, payload string) {
	if m.bareAcks {
		m.out = append(m.out, status)
		m.out = append(m.out, payload...)
	} else {
		m.out = append(m.out, m.codec.EncodeResponse(status, payload)...)
	}
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Read returns buffered reply bytes, waiting up to timeout for some to
// arrive.
func (m *MockTransport) Read(p []byte, timeout time.Duration) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m.mu.Lock()
		switch {
		case m.closed:
			m.mu.Unlock()
			return 0, NewTransportError("read", "mock", ErrTransportClosed, ErrorTypePermanent)
		case m.readErr != nil:
			err := m.readErr
			m.mu.Unlock()
			return 0, err
		case len(m.out) > 0:
			n := copy(p, m.out)
			m.out = m.out[n:]
			m.mu.Unlock()
			return n, nil
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-m.done:
		case <-timer.C:
			return 0, NewReadTimeoutError("read", "mock")
		}
	}
}

// Flush discards unread reply bytes
func (m *MockTransport) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = nil
	m.flushes++
	return nil
}

// Close stops delayed completions and unblocks readers
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		for t := range m.timers {
			t.Stop()
			delete(m.timers, t)
		}
		close(m.done)
	}
	return nil
}

// IsConnected returns false once closed
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// SetError makes the controller answer op with an error status code.
func (m *MockTransport) SetError(op frame.Opcode, code byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errCodes[op] = code
}

// ClearError restores normal answers for op.
func (m *MockTransport) ClearError(op frame.Opcode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errCodes, op)
}

// SetDelay postpones the completion of op, as travel would.
func (m *MockTransport) SetDelay(op frame.Opcode, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays[op] = delay
}

// SetHang makes the controller never answer op.
func (m *MockTransport) SetHang(op frame.Opcode, hang bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hangs[op] = hang
}

// SetWriteError makes every Write fail with err; nil restores writes.
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// SetReadError makes every Read fail with err; nil restores reads.
func (m *MockTransport) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// SetBareAcks drops the CR LF terminator from replies, as the stock
// firmware does for short acknowledgments.
func (m *MockTransport) SetBareAcks(bare bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bareAcks = bare
}

// SetChecksum enables an integrity field on both directions.
func (m *MockTransport) SetChecksum(fn func(data []byte) byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codec.Checksum = fn
}

// SetDeviceID changes the address the controller answers to.
func (m *MockTransport) SetDeviceID(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deviceID = id
}

// SetPosition moves the simulated axis without a command.
func (m *MockTransport) SetPosition(steps int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = steps
}

// SetPort sets the level the controller reports for port n.
func (m *MockTransport) SetPort(n int, v PortValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ports[n] = v
}

// Inject appends raw bytes to the reply stream.
func (m *MockTransport) Inject(raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = append(m.out, raw...)
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Position returns the simulated axis position in steps.
func (m *MockTransport) Position() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Port returns the level last written to port n.
func (m *MockTransport) Port(n int) PortValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ports[n]
}

// DisplayRow returns the text printed to row.
func (m *MockTransport) DisplayRow(row int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.display[row]
}

// Initialized reports whether an init has been received since the last reset.
func (m *MockTransport) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initDone
}

// Released reports whether the axis was released and not re-initialized.
func (m *MockTransport) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// TestModeOn reports the simulated test mode.
func (m *MockTransport) TestModeOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.testMode
}

// Writes returns a copy of every frame and control byte written.
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.writes))
	for i, w := range m.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// WriteCount returns the number of writes.
func (m *MockTransport) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// Controls returns the control bytes received, in order.
func (m *MockTransport) Controls() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.controls...)
}

// CallCount returns how often op was received.
func (m *MockTransport) CallCount(op frame.Opcode) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// FlushCount returns the number of Flush calls.
func (m *MockTransport) FlushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}
