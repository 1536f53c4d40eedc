// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	rentalIDKey  contextKey = "rental_id"
)

// GenerateRequestID creates a new request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a context carrying the HTTP request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRentalID tags a context with the rental it is working for.
// Monitor firings use it so device calls made on behalf of a rental are traceable.
func ContextWithRentalID(ctx context.Context, rentalID int64) context.Context {
	return context.WithValue(ctx, rentalIDKey, rentalID)
}

// RentalIDFromContext returns the rental ID and whether one was set.
func RentalIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(rentalIDKey).(int64)
	return id, ok
}

// Ctx returns the global logger enriched with request_id and rental_id
// when the context carries them.
//
//	logging.Ctx(ctx).Info().Msg("processing")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		logCtx = logCtx.Str("request_id", requestID)
	}
	if rentalID, ok := RentalIDFromContext(ctx); ok {
		logCtx = logCtx.Int64("rental_id", rentalID)
	}
	l := logCtx.Logger()
	return &l
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
