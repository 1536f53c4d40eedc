// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

/*
Package api provides the HTTP surface of the shim: JSON operations on
televisions, the rental timer endpoints, a per-rental Server-Sent Events
stream, a WebSocket dashboard feed and the /audit operation trail.

Routing uses chi with this global stack:

  - RequestIDWithLogging: X-Request-ID plus a debug access log line
  - RealIP, Recoverer (chi)
  - CORS (go-chi/cors)
  - PrometheusMetrics

Groups add httprate limits and security headers.

Every JSON response uses the same envelope:

	{"success": false,
	 "error": {"code": "TOOL_TIMEOUT", "message": "...", "details": {...}},
	 "metadata": {"request_id": "...", "timestamp": "...", "duration_ms": 15012}}

Domain errors map to status codes in classifyError:

	bridge.ErrToolInvocationFailed  502 TOOL_INVOCATION_FAILED
	bridge.ErrToolTimeout           504 TOOL_TIMEOUT
	device.ErrNoMatchingProfile     404 NO_MATCHING_PROFILE
	device.ErrUnknownAction         400 UNKNOWN_ACTION
	validation failures             400 VALIDATION_ERROR

The event stream at /events/{rentalID} writes frames of the form

	event: timeout_video_played
	data: {"type":"timeout_video_played","rental_id":42,"success":true,...}

and is the one place where a client disconnect has a side effect: it
cancels the rental's live timer.
*/
package api
