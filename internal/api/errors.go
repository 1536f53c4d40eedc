// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/tvshim/internal/bridge"
	"github.com/tomtom215/tvshim/internal/device"
	"github.com/tomtom215/tvshim/internal/monitor"
	"github.com/tomtom215/tvshim/internal/validation"
)

// Error codes for API responses
const (
	ErrCodeBadRequest           = "BAD_REQUEST"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeTooManyRequests      = "TOO_MANY_REQUESTS"
	ErrCodeInternalError        = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	ErrCodeValidation           = validation.ErrorCode
	ErrCodeToolInvocationFailed = "TOOL_INVOCATION_FAILED"
	ErrCodeToolTimeout          = "TOOL_TIMEOUT"
	ErrCodeNoMatchingProfile    = "NO_MATCHING_PROFILE"
	ErrCodeUnknownAction        = "UNKNOWN_ACTION"
	ErrCodeRequestCancelled     = "REQUEST_CANCELLED"
)

// statusClientClosedRequest is the de facto status for a client that went
// away mid-request. It is never seen by that client but shows up in metrics.
const statusClientClosedRequest = 499

// classifyError maps an error to an HTTP status and API error code. Domain
// sentinels are checked before bridge sentinels since device errors may wrap
// a bridge failure.
func classifyError(err error) (int, string) {
	var verr *validation.RequestValidationError
	var berr *badRequestError
	switch {
	case errors.As(err, &berr):
		return http.StatusBadRequest, ErrCodeBadRequest
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, device.ErrNoMatchingProfile):
		return http.StatusNotFound, ErrCodeNoMatchingProfile
	case errors.Is(err, device.ErrUnknownAction):
		return http.StatusBadRequest, ErrCodeUnknownAction
	case errors.Is(err, monitor.ErrInvalidDelay):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, monitor.ErrClosed):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	case errors.Is(err, bridge.ErrToolTimeout):
		return http.StatusGatewayTimeout, ErrCodeToolTimeout
	case errors.Is(err, bridge.ErrToolInvocationFailed):
		return http.StatusBadGateway, ErrCodeToolInvocationFailed
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, ErrCodeRequestCancelled
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}
