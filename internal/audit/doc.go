// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

// Package audit keeps a bounded trail of the operations TVShim performed on
// televisions and rental timers, served at GET /audit.
//
// # Event Types
//
// Television operations, recorded by the API handlers with the caller's
// address and request ID:
//   - tv.connect, tv.disconnect
//   - tv.input_switch, tv.key_sent, tv.control
//   - tv.video_played
//   - bridge.restart
//
// Rental timer lifecycle, recorded from the monitor's Observer:
//   - rental.monitor_started, rental.monitor_stopped
//   - rental.timeout_fired (scheduled and manual)
//
// Read-only requests such as /devices and /test-connection are not audited.
//
// # Architecture
//
//	Logger.Log() -> Event Buffer (chan) -> Logger.Serve -> Store
//	     |                                       |
//	 Non-blocking                        supervised service
//
// Log drops the event when the buffer is full and counts it in
// audit_events_dropped_total. Serve runs under the supervisor's data layer;
// it also prunes events older than the configured retention.
//
// # Storage
//
// MemoryStore keeps the newest events in memory. When full it evicts the
// oldest tenth. The trail is lost on restart.
//
// # Usage
//
//	log := audit.NewLogger(audit.NewMemoryStore(cfg.Audit.MaxEvents), audit.ConfigFrom(cfg.Audit))
//	tree.AddDataService(log)
//
//	mon := monitor.New(action, monitor.Options{
//	    Observer: monitor.Observers(hub.Observer(), log.Observer()),
//	})
//
//	events, err := log.Query(ctx, audit.QueryFilter{RentalID: 42, Limit: 50})
package audit
