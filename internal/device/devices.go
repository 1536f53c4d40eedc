// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package device

import (
	"bufio"
	"strings"
)

// StateOnline is the `adb devices` state of a reachable device.
const StateOnline = "device"

// Device is one row of `adb devices`.
type Device struct {
	Serial string `json:"serial"`
	State  string `json:"state"`
}

// DeviceList is the parsed device listing plus the raw tool output.
type DeviceList struct {
	Devices []Device `json:"devices"`
	Raw     string   `json:"raw"`
}

// Online reports whether serial is listed as online. A bare host matches any
// port on that host.
func (l DeviceList) Online(serial string) bool {
	host := hostOnly(serial)
	bare := host == serial
	for _, d := range l.Devices {
		if d.State != StateOnline {
			continue
		}
		if d.Serial == serial || d.Serial == host || (bare && hostOnly(d.Serial) == host) {
			return true
		}
	}
	return false
}

// ParseDevices parses `adb devices` output. Daemon chatter lines ("* daemon
// started successfully") and the header are skipped.
func ParseDevices(out string) []Device {
	devices := []Device{}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "List of devices") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		devices = append(devices, Device{Serial: fields[0], State: fields[1]})
	}
	return devices
}
