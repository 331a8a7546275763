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

// Package detection finds serial ports that may carry an MC1 controller.
//
// Ports are listed through go.bug.st/serial/enumerator, filtered by an
// ignore list and a USB VID:PID blocklist, and optionally probed by asking
// the controller for its version.
package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
)

// Detection errors
var (
	ErrNoDevicesFound   = errors.New("no devices found")
	ErrDetectionTimeout = errors.New("detection timeout")
)

// Confidence ranks how likely a port is to be an MC1.
type Confidence int

// Confidence levels
const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Confidence(%d)", int(c))
	}
}

// Mode selects how much detection may talk to a port.
type Mode int

const (
	// Passive only enumerates and never writes to a port.
	Passive Mode = iota
	// Probe asks every candidate for its version.
	Probe
)

// ProbeFunc asks the controller on path for its version string.
type ProbeFunc func(ctx context.Context, path string) (string, error)

// Options controls detection
type Options struct {
	Probe        ProbeFunc
	Blocklist    []string
	IgnorePaths  []string
	Timeout      time.Duration
	ProbeTimeout time.Duration
	Mode         Mode
}

// DefaultOptions returns passive detection with the default blocklist.
func DefaultOptions() Options {
	return Options{
		Mode:         Passive,
		Blocklist:    DefaultBlocklist(),
		Timeout:      5 * time.Second,
		ProbeTimeout: time.Second,
	}
}

// DeviceInfo describes a detected port.
type DeviceInfo struct {
	Metadata   map[string]string
	Path       string
	Name       string
	VIDPID     string
	Confidence Confidence
}

// Detect returns candidate ports, most likely first.
func Detect(ctx context.Context, opts Options) ([]DeviceInfo, error) {
	return detect(ctx, opts, enumerator.GetDetailedPortsList)
}

func detect(ctx context.Context, opts Options, listPorts func() ([]*enumerator.PortDetails, error)) (
	[]DeviceInfo, error,
) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(ports))
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return devices, ErrDetectionTimeout
		default:
		}

		device, skip := createDeviceInfo(ctx, port, opts)
		if skip {
			continue
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	return devices, nil
}

func createDeviceInfo(ctx context.Context, port *enumerator.PortDetails, opts Options) (DeviceInfo, bool) {
	if IsPathIgnored(port.Name, opts.IgnorePaths) {
		return DeviceInfo{}, true
	}

	device := DeviceInfo{
		Path:       port.Name,
		Name:       port.Name,
		Confidence: Low,
		Metadata:   map[string]string{},
	}
	if port.IsUSB {
		device.VIDPID = strings.ToUpper(port.VID + ":" + port.PID)
		if IsBlocked(device.VIDPID, opts.Blocklist) {
			return DeviceInfo{}, true
		}
		// the MC1 has a plain RS-232 port; a USB adapter is the common way in
		device.Confidence = Medium
		device.Metadata["vidpid"] = device.VIDPID
		if port.Product != "" {
			device.Name = port.Product + " (" + port.Name + ")"
			device.Metadata["product"] = port.Product
		}
		if port.SerialNumber != "" {
			device.Metadata["serial"] = port.SerialNumber
		}
	}

	if opts.Mode != Probe || opts.Probe == nil {
		return device, false
	}

	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	version, err := opts.Probe(probeCtx, port.Name)
	cancel()
	if err != nil {
		// nothing answered; keep USB adapters, which may just be unpowered
		return device, device.Confidence == Low
	}
	device.Confidence = High
	device.Metadata["version"] = version
	return device, false
}
