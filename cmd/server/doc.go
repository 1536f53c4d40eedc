// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

/*
Command server runs TVShim, the HTTP bridge between a rental booking system
and the Android televisions in each rental unit.

The booking system starts a timer when a rental begins. When it fires the
shim returns the unit's television to its home screen and plays the timeout
video over the device bridge (adb). Front-desk dashboards follow a rental
through /events/{rentalID} (Server-Sent Events) or /ws (WebSocket). Every
television operation and timer transition is kept in a bounded audit trail
listed at /audit.

# Process Layout

	RootSupervisor ("tvshim")
	├── data-layer
	│   ├── journal-gc (MONITOR_JOURNAL_ENABLED=true)
	│   └── audit-logger (AUDIT_ENABLED=true)
	├── messaging-layer
	│   ├── rental-monitor
	│   └── websocket-hub
	└── api-layer
	    └── http-server

# Configuration

Settings load through koanf: built-in defaults, then a YAML file, then
environment variables. The file is CONFIG_PATH or --config:

	tvshim --config /etc/tvshim/config.yaml

Commonly set variables:

	PORT=5000
	ADB_PATH=/usr/bin/adb
	CORS_ORIGINS=http://desk.local
	MONITOR_JOURNAL_ENABLED=true
	MONITOR_JOURNAL_PATH=/data/monitor

Television profiles (input key sequences, video commands) live in the YAML
file under devices.profiles.

# Signal Handling

SIGINT and SIGTERM cancel the tree. The HTTP server drains, the monitor
cancels its timers and waits for in-flight timeout actions, and the journal
is closed last so persisted timers survive the restart.
*/
package main
