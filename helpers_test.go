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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testRail          = 5.23
	testStepsPerMeter = 1_000_000
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RailLength = testRail
	cfg.StepsPerMeter = testStepsPerMeter
	cfg.PollInterval = testPollInterval
	cfg.BaseTimeout = time.Second
	cfg.ReleaseTimeout = time.Second
	return cfg
}

// newTestDevice returns an uninitialized device on a fresh simulated
// controller. Both are closed when the test ends.
func newTestDevice(t *testing.T, opts ...Option) (*Device, *MockTransport) {
	t.Helper()

	mock := NewMockTransport()
	device, err := New(mock, testConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })
	return device, mock
}

// newHomedDevice returns an initialized device homed at zero.
func newHomedDevice(t *testing.T, opts ...Option) (*Device, *MockTransport) {
	t.Helper()

	device, mock := newTestDevice(t, opts...)
	ctx := context.Background()
	require.NoError(t, device.Init(ctx, Blocking))
	require.NoError(t, device.SimulateHoming(ctx, Blocking))
	require.Equal(t, StateIdle, device.State())
	return device, mock
}

// lockedBuffer is a bytes.Buffer safe for a logger and a test reading it.
type lockedBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
