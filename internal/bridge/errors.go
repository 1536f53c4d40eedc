// TVShim - Rental Television Control Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tvshim

package bridge

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for device-bridge failures. Match with errors.Is.
var (
	// ErrToolInvocationFailed covers non-zero exits, start failures and
	// rejections by an open circuit breaker.
	ErrToolInvocationFailed = errors.New("device-bridge invocation failed")

	// ErrToolTimeout means the invocation exceeded its enforced timeout and was killed.
	ErrToolTimeout = errors.New("device-bridge invocation timed out")
)

// ToolError describes one failed invocation.
type ToolError struct {
	// Kind is ErrToolInvocationFailed or ErrToolTimeout.
	Kind    error
	Args    []string
	Result  Result
	Timeout time.Duration
	Cause   error
}

// NewToolError builds a ToolError. kind must be one of the package sentinels.
func NewToolError(kind error, args []string, res Result, timeout time.Duration, cause error) *ToolError {
	return &ToolError{Kind: kind, Args: args, Result: res, Timeout: timeout, Cause: cause}
}

func (e *ToolError) Error() string {
	cmd := strings.Join(e.Args, " ")
	if errors.Is(e.Kind, ErrToolTimeout) {
		return fmt.Sprintf("command timeout after %s: %s", e.Timeout, cmd)
	}

	detail := strings.TrimSpace(e.Result.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(e.Result.Stdout)
	}
	if detail == "" && e.Cause != nil {
		detail = e.Cause.Error()
	}
	if detail == "" {
		return fmt.Sprintf("%s: exit code %d", cmd, e.Result.ExitCode)
	}
	return fmt.Sprintf("%s: exit code %d: %s", cmd, e.Result.ExitCode, detail)
}

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *ToolError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}
