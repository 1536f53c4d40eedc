// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - RequestID: reuses or generates X-Request-ID and threads it into the
    logging context
  - PrometheusMetrics: request count, latency and in-flight instrumentation

Both are written as func(http.HandlerFunc) http.HandlerFunc and adapted to
chi's middleware signature by the api package:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

The metrics writer forwards Flush and Hijack, so it can wrap the SSE event
stream and the WebSocket upgrade without breaking either.
*/
package middleware
