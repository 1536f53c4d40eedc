// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

/*
Package websocket streams rental monitor events to dashboard clients.

The Hub is installed as the monitor's Observer, so every event the monitor
publishes to a rental's SSE subscriber (monitor_started, monitor_stopped,
timeout_video_played) is also fanned out here. Heartbeats and per-subscriber
connected events are not forwarded.

	monitor ──Observer──▶ Hub ──▶ Client (all rentals)
	                          └──▶ Client (?rental_id=42)

Each client has two goroutines:
  - readPump: reads client frames, answers {"type":"ping"} with a pong
  - writePump: writes hub messages and keep-alive ping frames

Clients whose send buffer fills are disconnected rather than blocking the
hub. The hub runs under the supervisor tree via RunWithContext.

Message format:

	{"type": "rental_event", "data": {"type": "timeout_video_played", "rental_id": 42, ...}}
*/
package websocket
